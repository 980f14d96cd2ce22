package handler

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-grading-api/internal/service"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
	"github.com/noah-isme/classroom-grading-api/pkg/response"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether one backing dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	checks  map[string]ReadinessCheck
}

// NewMetricsHandler constructs a metrics handler. Checks are keyed by dependency name.
func NewMetricsHandler(metrics *service.MetricsService, checks map[string]ReadinessCheck) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, checks: checks}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready runs every readiness check and fails with 503 when any dependency is down.
func (h *MetricsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	var down []string
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = "down"
			down = append(down, name)
			continue
		}
		status[name] = "up"
	}
	if len(down) > 0 {
		sort.Strings(down)
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "dependency unavailable: "+strings.Join(down, ", ")))
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
