package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves portfolio aggregates
type Handler struct {
	aggregator *Aggregator
	logger     *zap.Logger
}

// NewHandler creates a new dashboard handler
func NewHandler(aggregator *Aggregator, logger *zap.Logger) *Handler {
	return &Handler{aggregator: aggregator, logger: logger}
}

// RegisterRoutes registers dashboard routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	dashboard := router.Group("/dashboard")
	{
		dashboard.GET("/portfolio", h.getPortfolio)
	}
}

// getPortfolio handles GET /api/v1/dashboard/portfolio
func (h *Handler) getPortfolio(c *gin.Context) {
	summary, err := h.aggregator.PortfolioSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute portfolio summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute portfolio summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
