package calculation

import (
	"fmt"
	"math"
	"time"
)

// DaysPerYear converts elapsed days to project years, absorbing leap-year drift
const DaysPerYear = 365.25

// Methodology defines the interface for a project type's credit model
type Methodology interface {
	// Calculate performs the carbon credit calculation as of the given instant
	Calculate(record *FarmRecord, asOf time.Time) (*CalculationResult, error)

	// GetMetadata returns methodology metadata
	GetMetadata() *MethodologyMetadata

	// Parameters returns the catalog coefficients the methodology was built with
	Parameters() ProjectParameters
}

// MethodologyMetadata contains information about a methodology
type MethodologyMetadata struct {
	ProjectType        ProjectType `json:"project_type"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	Version            string      `json:"version"`
	CreditUnit         string      `json:"credit_unit"`
	RequiredDataFields []string    `json:"required_data_fields"`
	OptionalDataFields []string    `json:"optional_data_fields"`
}

// ProjectAge returns the elapsed years between establishment and asOf.
// Only whole elapsed days count, so a project established today has age 0.
func ProjectAge(established, asOf time.Time) float64 {
	days := math.Floor(asOf.Sub(established).Hours() / 24)
	return days / DaysPerYear
}

// MaturityFactor ramps linearly to 1.0 at maturity and stays there
func MaturityFactor(projectAge, maturityAge float64) float64 {
	return math.Min(projectAge/maturityAge, 1.0)
}

// AnnualRate spreads total credits over the project age, floored at one year
func AnnualRate(total, projectAge float64) float64 {
	return total / math.Max(projectAge, 1)
}

// recordInputs extracts the area and project age every model needs
func recordInputs(record *FarmRecord, asOf time.Time) (float64, float64, error) {
	if record.AreaHa == nil {
		return 0, 0, fmt.Errorf("%w: %s is required", ErrIncompleteRecord, fieldAreaHa)
	}
	if record.EstablishmentDate == nil {
		return 0, 0, fmt.Errorf("%w: %s is required", ErrIncompleteRecord, fieldEstablishmentDate)
	}

	established, err := ParseEstablishmentDate(*record.EstablishmentDate, asOf.Location())
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrIncompleteRecord, MsgInvalidDate)
	}

	return *record.AreaHa, ProjectAge(established, asOf), nil
}

// AgroforestryMethodology credits tree growth, soil carbon and avoided emissions
type AgroforestryMethodology struct {
	params AgroforestryParameters
}

// NewAgroforestryMethodology creates the agroforestry model from catalog parameters
func NewAgroforestryMethodology(params AgroforestryParameters) *AgroforestryMethodology {
	return &AgroforestryMethodology{params: params}
}

// Parameters returns the agroforestry coefficients
func (m *AgroforestryMethodology) Parameters() ProjectParameters {
	return m.params
}

// GetMetadata returns agroforestry methodology metadata
func (m *AgroforestryMethodology) GetMetadata() *MethodologyMetadata {
	return &MethodologyMetadata{
		ProjectType:        ProjectTypeAgroforestry,
		Name:               "Smallholder Agroforestry",
		Description:        "Tree sequestration with maturity ramp, capped soil carbon accumulation and avoided baseline emissions",
		Version:            "1.0",
		CreditUnit:         "tCO2e",
		RequiredDataFields: []string{fieldAreaHa, fieldEstablishmentDate, fieldCropType},
		OptionalDataFields: []string{"tree_count"},
	}
}

// Calculate performs the agroforestry credit calculation
func (m *AgroforestryMethodology) Calculate(record *FarmRecord, asOf time.Time) (*CalculationResult, error) {
	area, age, err := recordInputs(record, asOf)
	if err != nil {
		return nil, err
	}
	p := m.params
	trees := float64(record.TreeCount)

	// Step 1: tree carbon with maturity ramp
	maturity := MaturityFactor(age, p.MaturityAgeYears)
	treeCarbon := trees * p.TreeGrowthRate * age * maturity

	// Step 2: soil carbon saturates at the project lifespan
	soilCarbon := p.SoilCarbonAccumulation * area * math.Min(age, p.LifespanYears)

	// Step 3: avoided baseline emissions accrue every year, uncapped
	baseline := p.BaselineEmissions * area * age

	total := treeCarbon + soilCarbon + baseline

	steps := []CalculationStep{
		{
			StepNumber:  1,
			Name:        "Calculate Tree Carbon",
			Description: "Sequestration by trees, ramping until maturity age",
			Formula:     "C_tree = N_trees × r_growth × age × min(age / age_maturity, 1)",
			Inputs: map[string]interface{}{
				"tree_count":       record.TreeCount,
				"tree_growth_rate": p.TreeGrowthRate,
				"project_age":      age,
				"maturity_age":     p.MaturityAgeYears,
			},
			Outputs: map[string]interface{}{
				"maturity_factor": maturity,
				"tree_carbon":     treeCarbon,
			},
		},
		{
			StepNumber:  2,
			Name:        "Calculate Soil Carbon",
			Description: "Soil organic carbon accumulation capped at the project lifespan",
			Formula:     "C_soil = r_soil × A × min(age, lifespan)",
			Inputs: map[string]interface{}{
				"soil_carbon_accumulation": p.SoilCarbonAccumulation,
				"area_ha":                  area,
				"lifespan":                 p.LifespanYears,
			},
			Outputs: map[string]interface{}{
				"soil_carbon": soilCarbon,
			},
		},
		{
			StepNumber:  3,
			Name:        "Calculate Avoided Baseline Emissions",
			Description: "Baseline emissions avoided for every year the project exists",
			Formula:     "E_baseline = r_baseline × A × age",
			Inputs: map[string]interface{}{
				"baseline_emissions_rate": p.BaselineEmissions,
				"area_ha":                 area,
				"project_age":             age,
			},
			Outputs: map[string]interface{}{
				"baseline_emissions": baseline,
			},
		},
		{
			StepNumber:  4,
			Name:        "Total Credits",
			Description: "Sequestration plus avoided emissions",
			Formula:     "Credits = C_tree + C_soil + E_baseline",
			Outputs: map[string]interface{}{
				"total_credits": total,
			},
		},
	}

	return &CalculationResult{
		AgroforestryBreakdown: &AgroforestryBreakdown{
			TreeCarbon:     treeCarbon,
			SoilCarbon:     soilCarbon,
			MaturityFactor: maturity,
		},
		ModelType:         ProjectTypeAgroforestry,
		ProjectAgeYears:   age,
		BaselineEmissions: baseline,
		TotalCredits:      total,
		CreditsPerYear:    AnnualRate(total, age),
		CalculationDate:   asOf,
		CalculationSteps:  steps,
	}, nil
}

// RiceMethodology credits emission reductions from improved paddy practices
type RiceMethodology struct {
	params RiceParameters
}

// NewRiceMethodology creates the rice model from catalog parameters
func NewRiceMethodology(params RiceParameters) *RiceMethodology {
	return &RiceMethodology{params: params}
}

// Parameters returns the rice coefficients
func (m *RiceMethodology) Parameters() ProjectParameters {
	return m.params
}

// GetMetadata returns rice methodology metadata
func (m *RiceMethodology) GetMetadata() *MethodologyMetadata {
	return &MethodologyMetadata{
		ProjectType:        ProjectTypeRice,
		Name:               "Rice Cultivation Emission Reduction",
		Description:        "Baseline paddy emissions reduced by the product of applied practice factors",
		Version:            "1.0",
		CreditUnit:         "tCO2e",
		RequiredDataFields: []string{fieldAreaHa, fieldEstablishmentDate, fieldCropType},
		OptionalDataFields: []string{"practices"},
	}
}

// PracticeFactor multiplies the catalog factor of every applied practice.
// Unknown practices contribute 1.0.
func (m *RiceMethodology) PracticeFactor(practices []string) float64 {
	factor := 1.0
	for _, practice := range practices {
		factor *= m.params.PracticeFactor(practice)
	}
	return factor
}

// Calculate performs the rice credit calculation
func (m *RiceMethodology) Calculate(record *FarmRecord, asOf time.Time) (*CalculationResult, error) {
	area, age, err := recordInputs(record, asOf)
	if err != nil {
		return nil, err
	}

	factor := m.PracticeFactor(record.Practices)
	baseline := m.params.BaselineEmissions * area * age
	projectEmissions := baseline * factor
	reduction := baseline - projectEmissions

	steps := []CalculationStep{
		{
			StepNumber:  1,
			Name:        "Combine Practice Factors",
			Description: "Product of catalog factors for applied practices; unknown practices are neutral",
			Formula:     "F = Π f_practice",
			Inputs: map[string]interface{}{
				"practices": record.Practices,
			},
			Outputs: map[string]interface{}{
				"practice_factor": factor,
			},
		},
		{
			StepNumber:  2,
			Name:        "Calculate Baseline Emissions",
			Description: "Emissions under conventional flooded cultivation",
			Formula:     "E_baseline = r_baseline × A × age",
			Inputs: map[string]interface{}{
				"baseline_emissions_rate": m.params.BaselineEmissions,
				"area_ha":                 area,
				"project_age":             age,
			},
			Outputs: map[string]interface{}{
				"baseline_emissions": baseline,
			},
		},
		{
			StepNumber:  3,
			Name:        "Calculate Project Emissions",
			Description: "Emissions after applying improved practices",
			Formula:     "E_project = E_baseline × F",
			Outputs: map[string]interface{}{
				"project_emissions": projectEmissions,
			},
		},
		{
			StepNumber:  4,
			Name:        "Calculate Emission Reduction",
			Description: "Credits equal the avoided emissions",
			Formula:     "Credits = E_baseline − E_project",
			Outputs: map[string]interface{}{
				"emission_reduction": reduction,
			},
		},
	}

	return &CalculationResult{
		RiceBreakdown: &RiceBreakdown{
			ProjectEmissions:  projectEmissions,
			EmissionReduction: reduction,
			PracticeFactor:    factor,
		},
		ModelType:         ProjectTypeRice,
		ProjectAgeYears:   age,
		BaselineEmissions: baseline,
		TotalCredits:      reduction,
		CreditsPerYear:    AnnualRate(reduction, age),
		CalculationDate:   asOf,
		CalculationSteps:  steps,
	}, nil
}
