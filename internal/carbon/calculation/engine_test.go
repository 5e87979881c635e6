package calculation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineRegistersEveryProjectType(t *testing.T) {
	engine := NewEngine()
	for _, projectType := range SupportedProjectTypes() {
		methodology, err := engine.Methodology(projectType)
		require.NoError(t, err)
		assert.Equal(t, projectType, methodology.Parameters().ProjectType())
		assert.Equal(t, projectType, methodology.GetMetadata().ProjectType)
	}
}

func TestGetSupportedMethodologies(t *testing.T) {
	methodologies := NewEngine().GetSupportedMethodologies()
	require.Len(t, methodologies, 2)
	assert.Equal(t, ProjectTypeAgroforestry, methodologies[0].ProjectType)
	assert.Equal(t, ProjectTypeRice, methodologies[1].ProjectType)
	for _, m := range methodologies {
		assert.Equal(t, "tCO2e", m.CreditUnit)
		assert.NotEmpty(t, m.RequiredDataFields)
	}
}

func TestResolveProjectType(t *testing.T) {
	engine := NewEngine()

	pt, err := engine.ResolveProjectType(&FarmRecord{})
	require.NoError(t, err)
	assert.Equal(t, DefaultProjectType, pt)

	pt, err = engine.ResolveProjectType(&FarmRecord{CropType: "Rice"})
	require.NoError(t, err)
	assert.Equal(t, ProjectTypeRice, pt)

	_, err = engine.ResolveProjectType(&FarmRecord{CropType: "maize"})
	assert.True(t, errors.Is(err, ErrUnsupportedProjectType))
}

func TestCalculateCreditsUnsupportedType(t *testing.T) {
	record := validRecord()
	record.CropType = "maize"

	result, err := NewEngine().CalculateCredits(record, validationNow)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrUnsupportedProjectType))
}

func TestAssessValidRecord(t *testing.T) {
	record := validRecord()
	asOf := yearsAfter(t, "2016-03-01", 12)

	report, err := NewEngine().Assess(record, asOf)
	require.NoError(t, err)
	assert.True(t, report.IsReady())
	require.NotNil(t, report.CalculationResults)
	assert.InDelta(t, 960.0+36.0+300.0, report.CalculationResults.TotalCredits, 1e-6)
	assert.Equal(t, asOf, report.CalculationDate)
	assert.Equal(t, report.CalculationDate, report.CalculationResults.CalculationDate)
}

func TestAssessInvalidRecordSkipsCalculation(t *testing.T) {
	record := &FarmRecord{
		FarmID:            "farm-c",
		CropType:          "agroforestry",
		EstablishmentDate: stringPtr("2016/03/01"),
		TreeCount:         50,
	}

	report, err := NewEngine().Assess(record, validationNow)
	require.NoError(t, err)
	assert.Equal(t, VerificationStatusPending, report.VerificationStatus)
	assert.Nil(t, report.CalculationResults)
	assert.Len(t, report.ValidationErrors, 2)
}

func TestAssessMissingCropTypeUsesDefaultModel(t *testing.T) {
	record := validRecord()
	record.CropType = ""

	report, err := NewEngine().Assess(record, validationNow)
	require.NoError(t, err)
	assert.Equal(t, DefaultProjectType, report.ModelType)
	assert.Equal(t, []string{"Missing required field: crop_type"}, report.ValidationErrors)
	assert.Nil(t, report.CalculationResults)
}

func TestAssessUnsupportedType(t *testing.T) {
	record := validRecord()
	record.CropType = "cocoa"

	report, err := NewEngine().Assess(record, validationNow)
	assert.Nil(t, report)

	var typed *UnsupportedProjectTypeError
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "cocoa", typed.ProjectType)
}
