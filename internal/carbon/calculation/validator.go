package calculation

import (
	"strings"
	"time"
)

const (
	fieldAreaHa            = "area_ha"
	fieldEstablishmentDate = "establishment_date"
	fieldCropType          = "crop_type"
)

// Validation messages surfaced to auditors
const (
	msgMissingField    = "Missing required field: "
	MsgInvalidDate     = "Invalid establishment date format. Use YYYY-MM-DD"
	MsgFutureDate      = "Establishment date cannot be in the future"
	MsgNonPositiveArea = "Farm area must be greater than 0"
)

// Validator checks farm records before any calculation runs
type Validator struct {
	requiredFields []string
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		requiredFields: []string{fieldAreaHa, fieldEstablishmentDate, fieldCropType},
	}
}

// MissingFieldMessage formats the error reported for an absent required field
func MissingFieldMessage(field string) string {
	return msgMissingField + field
}

// Validate returns every rule violation of the record, in rule order.
// An empty slice means the record is valid as of the given instant.
func (v *Validator) Validate(record *FarmRecord, asOf time.Time) []string {
	errs := []string{}

	// Rule 1: required fields
	for _, field := range v.requiredFields {
		if !hasField(record, field) {
			errs = append(errs, MissingFieldMessage(field))
		}
	}

	// Rule 2: establishment date format and not future-dated
	if record.EstablishmentDate != nil {
		established, err := ParseEstablishmentDate(*record.EstablishmentDate, asOf.Location())
		if err != nil {
			errs = append(errs, MsgInvalidDate)
		} else if established.After(asOf) {
			errs = append(errs, MsgFutureDate)
		}
	}

	// Rule 3: positive area; an absent area is already reported by rule 1
	if record.AreaHa != nil && *record.AreaHa <= 0 {
		errs = append(errs, MsgNonPositiveArea)
	}

	return errs
}

// ParseEstablishmentDate parses a YYYY-MM-DD date at midnight in loc
func ParseEstablishmentDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(EstablishmentDateLayout, s, loc)
}

func hasField(record *FarmRecord, field string) bool {
	switch field {
	case fieldAreaHa:
		return record.AreaHa != nil
	case fieldEstablishmentDate:
		return record.EstablishmentDate != nil
	case fieldCropType:
		return strings.TrimSpace(record.CropType) != ""
	}
	return false
}
