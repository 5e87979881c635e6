package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/auth"
	"carbon-scribe/mrv/mrv-backend/internal/credits"
	"carbon-scribe/mrv/mrv-backend/internal/farms"
	"carbon-scribe/mrv/mrv-backend/internal/reports"
	"carbon-scribe/mrv/mrv-backend/internal/reports/dashboard"
)

// NewRouter builds the HTTP API over the components
func NewRouter(c *Components) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(c.Logger), cors())

	api := router.Group("/api/v1")
	{
		credits.NewHandler(c.CreditsService(), c.Logger).RegisterRoutes(api, c.Tokens.Middleware())
		auth.RegisterRoutes(api, auth.NewHandler(c.Tokens))

		if c.Farms != nil {
			farms.NewHandler(c.Farms, c.Logger).RegisterRoutes(api, c.Tokens.Middleware())
		}

		if c.Reports != nil {
			reports.NewHandler(reports.NewService(c.Reports, c.Logger), c.Logger).RegisterRoutes(api)
			dashboard.NewHandler(c.Dashboard, c.Logger).RegisterRoutes(api)
		}
	}

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"timestamp":    time.Now().UTC(),
			"report_sinks": c.Sink.Len(),
			"history":      c.Reports != nil,
			"farm_store":   c.Farms != nil,
		})
	})

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
