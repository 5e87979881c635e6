package calculation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var validationNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func floatPtr(v float64) *float64 { return &v }
func stringPtr(s string) *string  { return &s }

func validRecord() *FarmRecord {
	return &FarmRecord{
		FarmID:            "farm-001",
		CropType:          "agroforestry",
		AreaHa:            floatPtr(10),
		EstablishmentDate: stringPtr("2016-03-01"),
		TreeCount:         100,
	}
}

func TestValidateWellFormedRecord(t *testing.T) {
	errs := NewValidator().Validate(validRecord(), validationNow)
	assert.NotNil(t, errs)
	assert.Empty(t, errs)
}

func TestValidateEstablishedToday(t *testing.T) {
	record := validRecord()
	record.EstablishmentDate = stringPtr("2026-10-18")

	assert.Empty(t, NewValidator().Validate(record, validationNow))
}

func TestValidateMissingAreaAndMalformedDate(t *testing.T) {
	record := validRecord()
	record.AreaHa = nil
	record.EstablishmentDate = stringPtr("01/03/2016")

	errs := NewValidator().Validate(record, validationNow)
	assert.Equal(t, []string{
		"Missing required field: area_ha",
		"Invalid establishment date format. Use YYYY-MM-DD",
	}, errs)
}

func TestValidateFutureDate(t *testing.T) {
	record := validRecord()
	record.EstablishmentDate = stringPtr("2026-10-19")

	errs := NewValidator().Validate(record, validationNow)
	assert.Equal(t, []string{"Establishment date cannot be in the future"}, errs)
}

func TestValidateReportsEveryViolation(t *testing.T) {
	record := &FarmRecord{
		FarmID:            "farm-002",
		AreaHa:            floatPtr(-2),
		EstablishmentDate: stringPtr("2030-01-01"),
	}

	errs := NewValidator().Validate(record, validationNow)
	assert.Equal(t, []string{
		"Missing required field: crop_type",
		"Establishment date cannot be in the future",
		"Farm area must be greater than 0",
	}, errs)
}

func TestValidateAllFieldsMissing(t *testing.T) {
	errs := NewValidator().Validate(&FarmRecord{}, validationNow)
	assert.Equal(t, []string{
		"Missing required field: area_ha",
		"Missing required field: establishment_date",
		"Missing required field: crop_type",
	}, errs)
}

func TestValidateZeroArea(t *testing.T) {
	record := validRecord()
	record.AreaHa = floatPtr(0)

	errs := NewValidator().Validate(record, validationNow)
	assert.Equal(t, []string{MsgNonPositiveArea}, errs)
}

func TestValidateRejectsTimestampDates(t *testing.T) {
	record := validRecord()
	record.EstablishmentDate = stringPtr("2016-03-01T00:00:00Z")

	errs := NewValidator().Validate(record, validationNow)
	assert.Equal(t, []string{MsgInvalidDate}, errs)
}
