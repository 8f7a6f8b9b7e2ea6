package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courseflow/courseflow/internal/pkg/response"
	"github.com/courseflow/courseflow/internal/service"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	courseService *service.CourseService
}

func NewHealthHandler(courseService *service.CourseService) *HealthHandler {
	return &HealthHandler{courseService: courseService}
}

// Health is the liveness probe. It never depends on downstream services.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports 200 only when both Postgres and the intake queue respond.
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.courseService.Readiness(c.Request.Context()); err != nil {
		response.ErrorFrom(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
