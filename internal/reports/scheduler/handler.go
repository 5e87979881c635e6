package scheduler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Status is the recalculation worker state served on GET /status
type Status struct {
	Running bool       `json:"running"`
	NextRun *time.Time `json:"next_run,omitempty"`
	LastRun *RunResult `json:"last_run,omitempty"`
}

// Status reports whether the schedule is active and the last and next passes
func (m *Manager) Status() Status {
	status := Status{LastRun: m.LastRun()}
	if next, ok := m.NextRun(); ok {
		status.Running = true
		status.NextRun = &next
	}
	return status
}

// RegisterRoutes registers the worker status routes
func (m *Manager) RegisterRoutes(router gin.IRouter) {
	router.GET("/status", m.getStatus)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
}

// getStatus handles GET /status
func (m *Manager) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, m.Status())
}
