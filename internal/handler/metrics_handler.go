package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courseflow/courseflow/internal/metrics"
)

// MetricsHandler exposes the Prometheus text exposition.
type MetricsHandler struct {
	handler gin.HandlerFunc
}

func NewMetricsHandler(m *metrics.Metrics) *MetricsHandler {
	h := promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})
	return &MetricsHandler{handler: gin.WrapH(h)}
}

func (h *MetricsHandler) Expose(c *gin.Context) {
	h.handler(c)
}
