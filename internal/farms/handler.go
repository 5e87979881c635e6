package farms

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// Handler serves the farm store over HTTP
type Handler struct {
	repo   Repository
	logger *zap.Logger
}

// NewHandler creates a new farms handler
func NewHandler(repo Repository, logger *zap.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// RegisterRoutes registers farm routes. Writes go through protect.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, protect gin.HandlerFunc) {
	farms := router.Group("/farms")
	{
		farms.GET("", h.listFarms)
		farms.GET("/:farm_id", h.getFarm)
		farms.POST("", protect, h.upsertFarm)
	}
}

// listFarms handles GET /api/v1/farms
func (h *Handler) listFarms(c *gin.Context) {
	records, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list farms", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"farms": records, "count": len(records)})
}

// getFarm handles GET /api/v1/farms/:farm_id
func (h *Handler) getFarm(c *gin.Context) {
	record, err := h.repo.Get(c.Request.Context(), c.Param("farm_id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to get farm", zap.String("farm_id", c.Param("farm_id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

// upsertFarm handles POST /api/v1/farms. Records are stored as submitted;
// validation happens when they are assessed.
func (h *Handler) upsertFarm(c *gin.Context) {
	var record calculation.FarmRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if record.FarmID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "farm_id is required"})
		return
	}

	if err := h.repo.Upsert(c.Request.Context(), &record); err != nil {
		h.logger.Error("Failed to store farm", zap.String("farm_id", record.FarmID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Stored farm record", zap.String("farm_id", record.FarmID))
	c.JSON(http.StatusCreated, &record)
}
