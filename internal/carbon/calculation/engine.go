package calculation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrIncompleteRecord is returned when a calculation is asked for a record
// lacking the inputs the models need. Callers should validate first.
var ErrIncompleteRecord = errors.New("incomplete farm record")

// methodologyFactories is the single dispatch table from project type to model.
// Adding a project type means adding its parameters and one entry here.
var methodologyFactories = map[ProjectType]func(ProjectParameters) Methodology{
	ProjectTypeAgroforestry: func(p ProjectParameters) Methodology {
		return NewAgroforestryMethodology(p.(AgroforestryParameters))
	},
	ProjectTypeRice: func(p ProjectParameters) Methodology {
		return NewRiceMethodology(p.(RiceParameters))
	},
}

// Engine handles carbon credit calculations for every supported project type
type Engine struct {
	validator     *Validator
	methodologies map[ProjectType]Methodology
}

// NewEngine creates a new credit calculation engine
func NewEngine() *Engine {
	engine := &Engine{
		validator:     NewValidator(),
		methodologies: make(map[ProjectType]Methodology),
	}

	// Register built-in methodologies
	engine.registerMethodologies()

	return engine
}

// registerMethodologies binds every catalog parameter set to its model
func (e *Engine) registerMethodologies() {
	for _, projectType := range SupportedProjectTypes() {
		params, err := ParametersFor(string(projectType))
		if err != nil {
			panic(fmt.Sprintf("catalog missing parameters for %s: %v", projectType, err))
		}
		e.methodologies[projectType] = methodologyFactories[projectType](params)
	}
}

// ResolveProjectType returns the model type for a record. A record without a
// crop type falls back to DefaultProjectType; validation still reports it.
func (e *Engine) ResolveProjectType(record *FarmRecord) (ProjectType, error) {
	if strings.TrimSpace(record.CropType) == "" {
		return DefaultProjectType, nil
	}
	return ParseProjectType(record.CropType)
}

// Methodology returns the registered model for a project type
func (e *Engine) Methodology(projectType ProjectType) (Methodology, error) {
	methodology, exists := e.methodologies[projectType]
	if !exists {
		return nil, &UnsupportedProjectTypeError{ProjectType: string(projectType)}
	}
	return methodology, nil
}

// Validate validates a farm record as of the given instant
func (e *Engine) Validate(record *FarmRecord, asOf time.Time) []string {
	return e.validator.Validate(record, asOf)
}

// CalculateCredits performs the credit calculation for a record's project type
func (e *Engine) CalculateCredits(record *FarmRecord, asOf time.Time) (*CalculationResult, error) {
	projectType, err := e.ResolveProjectType(record)
	if err != nil {
		return nil, err
	}

	methodology, err := e.Methodology(projectType)
	if err != nil {
		return nil, err
	}

	result, err := methodology.Calculate(record, asOf)
	if err != nil {
		return nil, fmt.Errorf("calculation failed for farm %q: %w", record.FarmID, err)
	}

	return result, nil
}

// Assess validates the record, calculates only when it is valid, and
// assembles the verification report. Only an unsupported project type is
// returned as an error; validation problems land in the report.
func (e *Engine) Assess(record *FarmRecord, asOf time.Time) (*VerificationReport, error) {
	projectType, err := e.ResolveProjectType(record)
	if err != nil {
		return nil, err
	}

	var result *CalculationResult
	if errs := e.Validate(record, asOf); len(errs) == 0 {
		result, err = e.CalculateCredits(record, asOf)
		if err != nil {
			return nil, err
		}
	}

	report := e.BuildReport(record, result, asOf)
	report.ModelType = projectType
	return report, nil
}

// GetSupportedMethodologies returns metadata for every registered methodology
func (e *Engine) GetSupportedMethodologies() []MethodologyMetadata {
	methodologies := make([]MethodologyMetadata, 0, len(e.methodologies))
	for _, methodology := range e.methodologies {
		methodologies = append(methodologies, *methodology.GetMetadata())
	}
	sort.Slice(methodologies, func(i, j int) bool {
		return methodologies[i].ProjectType < methodologies[j].ProjectType
	})
	return methodologies
}
