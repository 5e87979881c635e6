package credits

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/auth"
	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

func passThrough(c *gin.Context) { c.Next() }

func setupRouter(sink *memorySink, protect gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	var service *Service
	if sink != nil {
		service = NewService(calculation.NewEngine(), sink, nil, zap.NewNop())
	} else {
		service = NewService(calculation.NewEngine(), nil, nil, zap.NewNop())
	}
	NewHandler(service, zap.NewNop()).RegisterRoutes(router.Group("/api/v1"), protect)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const pinned = "?as_of=2026-10-18T12:00:00Z"

func TestGetParameters(t *testing.T) {
	router := setupRouter(nil, passThrough)

	w := doJSON(t, router, http.MethodGet, "/api/v1/credits/parameters/rice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"project_type":"rice"`)

	w = doJSON(t, router, http.MethodGet, "/api/v1/credits/parameters/cocoa", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		SupportedTypes []string `json:"supported_types"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"agroforestry", "rice"}, body.SupportedTypes)
}

func TestGetMethodologies(t *testing.T) {
	router := setupRouter(nil, passThrough)

	w := doJSON(t, router, http.MethodGet, "/api/v1/credits/methodologies", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Methodologies []calculation.MethodologyMetadata `json:"methodologies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Methodologies, 2)
}

func TestValidateRecord(t *testing.T) {
	router := setupRouter(nil, passThrough)

	w := doJSON(t, router, http.MethodPost, "/api/v1/credits/validate"+pinned,
		`{"farm_id":"F-1","crop_type":"rice","establishment_date":"2027-01-01","area_ha":-1}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Valid            bool     `json:"valid"`
		ValidationErrors []string `json:"validation_errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Valid)
	assert.Len(t, body.ValidationErrors, 2)
}

func TestCalculateCredits(t *testing.T) {
	router := setupRouter(nil, passThrough)

	t.Run("valid record", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/credits/calculate"+pinned, agroRecord("F-1"), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "agroforestry", result["model_type"])
		assert.Contains(t, result, "total_credits")
	})

	t.Run("invalid record", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/credits/calculate"+pinned,
			`{"farm_id":"F-2","crop_type":"rice"}`, nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "Missing required field: area_ha")
	})

	t.Run("unsupported type", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/credits/calculate"+pinned,
			`{"farm_id":"F-3","crop_type":"cocoa","area_ha":2,"establishment_date":"2020-01-01"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/credits/calculate", `{"farm_id":`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad as_of", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/v1/credits/calculate?as_of=yesterday", agroRecord("F-1"), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAssessRecordStoresReport(t *testing.T) {
	sink := &memorySink{}
	router := setupRouter(sink, passThrough)

	w := doJSON(t, router, http.MethodPost, "/api/v1/credits/assess"+pinned, agroRecord("F-1"), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var report calculation.VerificationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "F-1", report.FarmID)
	assert.Equal(t, calculation.VerificationStatusReadyForVerification, report.VerificationStatus)
	require.Len(t, sink.reports, 1)
	assert.Equal(t, report.ReportID, sink.reports[0].ReportID)
}

func TestAssessRecordStorageFailure(t *testing.T) {
	sink := &memorySink{fail: map[string]bool{"F-1": true}}
	router := setupRouter(sink, passThrough)

	w := doJSON(t, router, http.MethodPost, "/api/v1/credits/assess"+pinned, agroRecord("F-1"), nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "storage unavailable")
}

func TestAssessRequiresToken(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", "carbon-scribe")
	router := setupRouter(&memorySink{}, tokens.Middleware())

	w := doJSON(t, router, http.MethodPost, "/api/v1/credits/assess"+pinned, agroRecord("F-1"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := tokens.Issue("auditor-1", "verifier", time.Hour)
	require.NoError(t, err)

	w = doJSON(t, router, http.MethodPost, "/api/v1/credits/assess"+pinned, agroRecord("F-1"),
		http.Header{"Authorization": []string{"Bearer " + token}})
	assert.Equal(t, http.StatusCreated, w.Code)

	// reads stay public
	w = doJSON(t, router, http.MethodGet, "/api/v1/credits/methodologies", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAssessBatchEndpoint(t *testing.T) {
	router := setupRouter(&memorySink{}, passThrough)

	body := `{"records":[
		{"farm_id":"A","crop_type":"agroforestry","area_ha":10,"establishment_date":"2016-03-01","tree_count":100},
		null,
		{"farm_id":"C","crop_type":"rice"}
	],"workers":2}`

	w := doJSON(t, router, http.MethodPost, "/api/v1/credits/batch"+pinned, body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Summary  BatchSummary   `json:"summary"`
		Outcomes []BatchOutcome `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, BatchSummary{Total: 3, Ready: 1, Pending: 1, Failed: 1}, resp.Summary)
	require.Len(t, resp.Outcomes, 3)
	assert.Equal(t, "A", resp.Outcomes[0].FarmID)
	assert.Equal(t, "farm record is null", resp.Outcomes[1].Error)
	assert.Equal(t, "C", resp.Outcomes[2].FarmID)
}

func TestAssessBatchLimits(t *testing.T) {
	router := setupRouter(nil, passThrough)

	w := doJSON(t, router, http.MethodPost, "/api/v1/credits/batch", `{"records":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	records := strings.TrimSuffix(strings.Repeat(`{"farm_id":"x"},`, MaxBatchSize+1), ",")
	w = doJSON(t, router, http.MethodPost, "/api/v1/credits/batch", `{"records":[`+records+`]}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestParseAsOf(t *testing.T) {
	got, err := ParseAsOf("2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseAsOf("2026-10-18T12:00:00+02:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)))

	_, err = ParseAsOf("18/10/2026")
	assert.Error(t, err)
}
