package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/courseflow/courseflow/internal/pkg/response"
	"github.com/courseflow/courseflow/internal/service"
)

// CourseHandler serves the course read surface.
type CourseHandler struct {
	courseService *service.CourseService
}

func NewCourseHandler(courseService *service.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

// List returns all courses with their current seat state.
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.courseService.ListCourses(c.Request.Context())
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, courses)
}

// Snapshot returns the JSON metrics snapshot for one course. course_id
// defaults to 1 for compatibility with the original dashboard probe.
func (h *CourseHandler) Snapshot(c *gin.Context) {
	courseID := int64(1)
	if raw := c.Query("course_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			response.UnprocessableEntity(c, "course_id must be a positive integer")
			return
		}
		courseID = parsed
	}

	snapshot, err := h.courseService.Snapshot(c.Request.Context(), courseID)
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, snapshot)
}
