package calculation

import (
	"time"

	"github.com/google/uuid"
)

// EstablishmentDateLayout is the only accepted establishment date format
const EstablishmentDateLayout = "2006-01-02"

// FarmRecord describes one project site as delivered by a farm-record source.
// AreaHa and EstablishmentDate are pointers because their absence is a
// validation finding distinct from a zero or empty value.
type FarmRecord struct {
	FarmID            string   `json:"farm_id" bson:"farm_id"`
	CropType          string   `json:"crop_type" bson:"crop_type"`
	AreaHa            *float64 `json:"area_ha,omitempty" bson:"area_ha,omitempty"`
	EstablishmentDate *string  `json:"establishment_date,omitempty" bson:"establishment_date,omitempty"`

	// Agroforestry
	TreeCount int `json:"tree_count,omitempty" bson:"tree_count,omitempty"`

	// Rice
	Practices []string `json:"practices,omitempty" bson:"practices,omitempty"`

	// Enrichment supplied by boundary and remote-sensing collaborators
	BoundaryAreaHa  *float64              `json:"boundary_area_ha,omitempty" bson:"boundary_area_ha,omitempty"`
	VegetationIndex *VegetationIndexStats `json:"vegetation_index,omitempty" bson:"vegetation_index,omitempty"`
}

// VegetationIndexStats are NDVI summary statistics measured for a farm
type VegetationIndexStats struct {
	Mean           float64    `json:"mean" bson:"mean"`
	Median         float64    `json:"median" bson:"median"`
	Std            float64    `json:"std" bson:"std"`
	Min            float64    `json:"min" bson:"min"`
	Max            float64    `json:"max" bson:"max"`
	DateCalculated *time.Time `json:"date_calculated,omitempty" bson:"date_calculated,omitempty"`
}

// CalculationResult is the itemized outcome of one credit calculation.
// Exactly one of the breakdowns is set, matching ModelType.
type CalculationResult struct {
	*AgroforestryBreakdown
	*RiceBreakdown

	ModelType         ProjectType       `json:"model_type"`
	ProjectAgeYears   float64           `json:"project_age_years"`
	BaselineEmissions float64           `json:"baseline_emissions"`
	TotalCredits      float64           `json:"total_credits"`
	CreditsPerYear    float64           `json:"credits_per_year"`
	CalculationDate   time.Time         `json:"calculation_date"`
	CalculationSteps  []CalculationStep `json:"calculation_steps,omitempty"`
}

// AgroforestryBreakdown holds the agroforestry-specific components
type AgroforestryBreakdown struct {
	TreeCarbon     float64 `json:"tree_carbon"`
	SoilCarbon     float64 `json:"soil_carbon"`
	MaturityFactor float64 `json:"maturity_factor"`
}

// RiceBreakdown holds the rice-specific components
type RiceBreakdown struct {
	ProjectEmissions  float64 `json:"project_emissions"`
	EmissionReduction float64 `json:"emission_reduction"`
	PracticeFactor    float64 `json:"practice_factor"`
}

// CalculationStep represents a step in the calculation process
type CalculationStep struct {
	StepNumber  int                    `json:"step_number"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Formula     string                 `json:"formula"`
	Inputs      map[string]interface{} `json:"inputs"`
	Outputs     map[string]interface{} `json:"outputs"`
}

// VerificationStatus is the audit readiness of a report
type VerificationStatus string

const (
	VerificationStatusPending              VerificationStatus = "pending"
	VerificationStatusReadyForVerification VerificationStatus = "ready_for_verification"
)

// VerificationReport is the auditable record of one calculation attempt
type VerificationReport struct {
	ReportID           uuid.UUID          `json:"report_id"`
	FarmID             string             `json:"farm_id"`
	CalculationDate    time.Time          `json:"calculation_date"`
	ModelType          ProjectType        `json:"model_type"`
	ValidationErrors   []string           `json:"validation_errors"`
	CalculationResults *CalculationResult `json:"calculation_results,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Recommendations    []string           `json:"recommendations"`
}

// IsReady reports whether the report can go to a verifier
func (r *VerificationReport) IsReady() bool {
	return r.VerificationStatus == VerificationStatusReadyForVerification
}
