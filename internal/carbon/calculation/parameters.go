package calculation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ProjectType identifies the emission/sequestration model applied to a farm
type ProjectType string

const (
	ProjectTypeAgroforestry ProjectType = "agroforestry"
	ProjectTypeRice         ProjectType = "rice"
)

// DefaultProjectType is selected when a record does not name its crop type
const DefaultProjectType = ProjectTypeAgroforestry

// ErrUnsupportedProjectType is returned for any project type outside the catalog
var ErrUnsupportedProjectType = errors.New("unsupported project type")

// UnsupportedProjectTypeError carries the offending project type
type UnsupportedProjectTypeError struct {
	ProjectType string
}

func (e *UnsupportedProjectTypeError) Error() string {
	return fmt.Sprintf("unsupported project type: %q", e.ProjectType)
}

// Is reports ErrUnsupportedProjectType as the sentinel for errors.Is
func (e *UnsupportedProjectTypeError) Is(target error) bool {
	return target == ErrUnsupportedProjectType
}

// ParseProjectType normalizes a crop type string into a known ProjectType
func ParseProjectType(s string) (ProjectType, error) {
	switch t := ProjectType(strings.ToLower(strings.TrimSpace(s))); t {
	case ProjectTypeAgroforestry, ProjectTypeRice:
		return t, nil
	default:
		return "", &UnsupportedProjectTypeError{ProjectType: s}
	}
}

// ProjectParameters is the closed set of coefficient sets, one per project type
type ProjectParameters interface {
	ProjectType() ProjectType
	sealed()
}

// AgroforestryParameters holds the agroforestry model coefficients
type AgroforestryParameters struct {
	TreeGrowthRate         float64 `json:"tree_growth_rate"`         // CO2 per tree per year
	SoilCarbonAccumulation float64 `json:"soil_carbon_accumulation"` // tCO2/ha/year
	BaselineEmissions      float64 `json:"baseline_emissions"`       // tCO2/ha/year
	LifespanYears          float64 `json:"lifespan"`
	MaturityAgeYears       float64 `json:"maturity_age"`
}

func (AgroforestryParameters) ProjectType() ProjectType { return ProjectTypeAgroforestry }
func (AgroforestryParameters) sealed()                  {}

// RiceParameters holds the rice cultivation model coefficients
type RiceParameters struct {
	BaselineEmissions float64 `json:"baseline_emissions"` // tCO2eq/ha/year
	practiceFactors   map[string]float64
}

func (RiceParameters) ProjectType() ProjectType { return ProjectTypeRice }
func (RiceParameters) sealed()                  {}

// PracticeFactor returns the multiplicative reduction factor for a practice.
// Practices outside the catalog are neutral (1.0) and are not reported as errors,
// so an auditor should check practice names against KnownPractices.
func (p RiceParameters) PracticeFactor(practice string) float64 {
	if f, ok := p.practiceFactors[practice]; ok {
		return f
	}
	return 1.0
}

// PracticeFactors returns a copy of the practice factor table
func (p RiceParameters) PracticeFactors() map[string]float64 {
	out := make(map[string]float64, len(p.practiceFactors))
	for k, v := range p.practiceFactors {
		out[k] = v
	}
	return out
}

// MarshalJSON exposes the practice factor table alongside the baseline rate
func (p RiceParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BaselineEmissions float64            `json:"baseline_emissions"`
		PracticeFactors   map[string]float64 `json:"practice_factors"`
	}{
		BaselineEmissions: p.BaselineEmissions,
		PracticeFactors:   p.practiceFactors,
	})
}

// KnownPractices returns the catalog practice names in sorted order
func (p RiceParameters) KnownPractices() []string {
	names := make([]string, 0, len(p.practiceFactors))
	for k := range p.practiceFactors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParametersFor returns the fixed coefficient set for a project type
func ParametersFor(projectType string) (ProjectParameters, error) {
	t, err := ParseProjectType(projectType)
	if err != nil {
		return nil, err
	}

	switch t {
	case ProjectTypeAgroforestry:
		return AgroforestryParameters{
			TreeGrowthRate:         0.8,
			SoilCarbonAccumulation: 0.3,
			BaselineEmissions:      2.5,
			LifespanYears:          30,
			MaturityAgeYears:       10,
		}, nil
	case ProjectTypeRice:
		return RiceParameters{
			BaselineEmissions: 3.2,
			practiceFactors: map[string]float64{
				"AWD":             0.4,
				"compost":         0.7,
				"cover_crop":      0.8,
				"reduced_tillage": 0.9,
			},
		}, nil
	}

	return nil, &UnsupportedProjectTypeError{ProjectType: projectType}
}

// SupportedProjectTypes lists every project type in the catalog
func SupportedProjectTypes() []ProjectType {
	return []ProjectType{ProjectTypeAgroforestry, ProjectTypeRice}
}
