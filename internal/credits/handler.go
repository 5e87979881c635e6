package credits

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// MaxBatchSize bounds the records accepted by one batch request
const MaxBatchSize = 1000

// Handler handles HTTP requests for credit calculation
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new credits handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// BatchRequest is the body of POST /credits/batch
type BatchRequest struct {
	Records []*calculation.FarmRecord `json:"records"`
	Workers int                       `json:"workers,omitempty"`
}

// RegisterRoutes registers credit routes. Writes go through protect.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, protect gin.HandlerFunc) {
	credits := router.Group("/credits")
	{
		credits.GET("/parameters/:type", h.getParameters)
		credits.GET("/methodologies", h.getMethodologies)
		credits.POST("/validate", h.validateRecord)
		credits.POST("/calculate", h.calculateCredits)

		credits.POST("/assess", protect, h.assessRecord)
		credits.POST("/batch", protect, h.assessBatch)
	}
}

// getParameters handles GET /api/v1/credits/parameters/:type
func (h *Handler) getParameters(c *gin.Context) {
	params, err := h.service.Parameters(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           err.Error(),
			"supported_types": calculation.SupportedProjectTypes(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_type": params.ProjectType(),
		"parameters":   params,
	})
}

// getMethodologies handles GET /api/v1/credits/methodologies
func (h *Handler) getMethodologies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methodologies": h.service.Methodologies()})
}

// validateRecord handles POST /api/v1/credits/validate
func (h *Handler) validateRecord(c *gin.Context) {
	record, asOf, ok := h.bindRecord(c)
	if !ok {
		return
	}

	errs := h.service.Validate(record, asOf)
	c.JSON(http.StatusOK, gin.H{
		"valid":             len(errs) == 0,
		"validation_errors": errs,
		"as_of":             asOf,
	})
}

// calculateCredits handles POST /api/v1/credits/calculate
func (h *Handler) calculateCredits(c *gin.Context) {
	record, asOf, ok := h.bindRecord(c)
	if !ok {
		return
	}

	result, err := h.service.Calculate(record, asOf)
	if err != nil {
		var invalid *ValidationError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":             "invalid farm record",
				"validation_errors": invalid.Errors,
			})
		case errors.Is(err, calculation.ErrUnsupportedProjectType):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to calculate credits", zap.String("farm_id", record.FarmID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// assessRecord handles POST /api/v1/credits/assess
func (h *Handler) assessRecord(c *gin.Context) {
	record, asOf, ok := h.bindRecord(c)
	if !ok {
		return
	}

	report, err := h.service.Assess(c.Request.Context(), record, asOf)
	if err != nil {
		if errors.Is(err, calculation.ErrUnsupportedProjectType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
		return
	}

	c.JSON(http.StatusCreated, report)
}

// assessBatch handles POST /api/v1/credits/batch
func (h *Handler) assessBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "records must not be empty"})
		return
	}
	if len(req.Records) > MaxBatchSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("at most %d records per batch", MaxBatchSize)})
		return
	}

	asOf, err := h.asOf(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcomes, err := h.service.AssessBatch(c.Request.Context(), req.Records, asOf, req.Workers)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":  Summarize(outcomes),
		"outcomes": outcomes,
	})
}

func (h *Handler) bindRecord(c *gin.Context) (*calculation.FarmRecord, time.Time, bool) {
	var record calculation.FarmRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, time.Time{}, false
	}

	asOf, err := h.asOf(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, time.Time{}, false
	}
	return &record, asOf, true
}

// asOf reads the optional as_of query parameter, defaulting to now
func (h *Handler) asOf(c *gin.Context) (time.Time, error) {
	raw := c.Query("as_of")
	if raw == "" {
		return h.service.Now(), nil
	}
	return ParseAsOf(raw)
}

// ParseAsOf accepts an RFC 3339 timestamp or a YYYY-MM-DD date (UTC midnight)
func ParseAsOf(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(calculation.EstablishmentDateLayout, raw, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid as_of %q: use RFC 3339 or YYYY-MM-DD", raw)
}
