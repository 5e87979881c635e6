package farms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/auth"
	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context, farmID string) (*calculation.FarmRecord, error) {
	args := m.Called(ctx, farmID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calculation.FarmRecord), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context) ([]*calculation.FarmRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*calculation.FarmRecord), args.Error(1)
}

func (m *MockRepository) Upsert(ctx context.Context, record *calculation.FarmRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func passThrough(c *gin.Context) { c.Next() }

func setupRouter(repo Repository, protect gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(repo, zap.NewNop()).RegisterRoutes(router.Group("/api/v1"), protect)
	return router
}

func serve(router *gin.Engine, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUpsertFarm(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(r *calculation.FarmRecord) bool {
		return r.FarmID == "F-100" && r.TreeCount == 100 && r.AreaHa != nil && *r.AreaHa == 10
	})).Return(nil).Once()

	router := setupRouter(repo, passThrough)
	w := serve(router, http.MethodPost, "/api/v1/farms",
		`{"farm_id":"F-100","crop_type":"agroforestry","area_ha":10,"establishment_date":"2016-03-01","tree_count":100}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var stored calculation.FarmRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, "F-100", stored.FarmID)
	repo.AssertExpectations(t)
}

func TestUpsertFarmRejectsBadBodies(t *testing.T) {
	repo := new(MockRepository)
	router := setupRouter(repo, passThrough)

	w := serve(router, http.MethodPost, "/api/v1/farms", `{"crop_type":"rice"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "farm_id is required")

	w = serve(router, http.MethodPost, "/api/v1/farms", `{"farm_id":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestUpsertFarmStoreFailure(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("replica set unavailable"))

	w := serve(setupRouter(repo, passThrough), http.MethodPost, "/api/v1/farms", `{"farm_id":"F-1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "replica set unavailable")
}

func TestUpsertFarmRequiresToken(t *testing.T) {
	tokens := auth.NewTokenManager("s3cret", "carbon-scribe")
	repo := new(MockRepository)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()
	router := setupRouter(repo, tokens.Middleware())

	w := serve(router, http.MethodPost, "/api/v1/farms", `{"farm_id":"F-1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := tokens.Issue("field-officer", "editor", time.Hour)
	require.NoError(t, err)
	w = serve(router, http.MethodPost, "/api/v1/farms", `{"farm_id":"F-1"}`, http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusCreated, w.Code)
	repo.AssertExpectations(t)
}

func TestGetFarm(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, "F-100").Return(&calculation.FarmRecord{FarmID: "F-100", CropType: "rice"}, nil)
	repo.On("Get", mock.Anything, "nope").Return(nil, ErrNotFound)
	repo.On("Get", mock.Anything, "broken").Return(nil, errors.New("timeout"))
	router := setupRouter(repo, passThrough)

	w := serve(router, http.MethodGet, "/api/v1/farms/F-100", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var record calculation.FarmRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "rice", record.CropType)

	w = serve(router, http.MethodGet, "/api/v1/farms/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(router, http.MethodGet, "/api/v1/farms/broken", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListFarms(t *testing.T) {
	repo := new(MockRepository)
	repo.On("List", mock.Anything).Return([]*calculation.FarmRecord{{FarmID: "a"}, {FarmID: "b"}}, nil)

	w := serve(setupRouter(repo, passThrough), http.MethodGet, "/api/v1/farms", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Farms []calculation.FarmRecord `json:"farms"`
		Count int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "b", resp.Farms[1].FarmID)
}
