package reports

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for report history
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers report history routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	{
		reports.GET("/farms/:farm_id", h.getLatestReport)
		reports.GET("/farms/:farm_id/history", h.getReportHistory)
	}
}

// getLatestReport handles GET /api/v1/reports/farms/:farm_id
func (h *Handler) getLatestReport(c *gin.Context) {
	farmID := c.Param("farm_id")

	report, err := h.service.LatestReport(c.Request.Context(), farmID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no report for farm " + farmID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// getReportHistory handles GET /api/v1/reports/farms/:farm_id/history
func (h *Handler) getReportHistory(c *gin.Context) {
	farmID := c.Param("farm_id")
	limit := h.getIntParam(c, "limit", DefaultHistoryLimit)

	history, err := h.service.ReportHistory(c.Request.Context(), farmID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"farm_id": farmID,
		"reports": history,
		"count":   len(history),
	})
}

func (h *Handler) getIntParam(c *gin.Context, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
