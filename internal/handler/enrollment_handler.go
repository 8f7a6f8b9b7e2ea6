package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/courseflow/courseflow/internal/pkg/response"
	"github.com/courseflow/courseflow/internal/service"
)

// EnrollmentHandler handles enrollment intake and status lookup.
type EnrollmentHandler struct {
	enrollmentService *service.EnrollmentService
}

func NewEnrollmentHandler(enrollmentService *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

// EnrollRequest is the intake payload. Priority is a pointer so that an
// absent field defaults to 0 while an explicit negative value still fails
// validation.
type EnrollRequest struct {
	StudentID      int64  `json:"student_id" binding:"required,gt=0"`
	CourseID       int64  `json:"course_id" binding:"required,gt=0"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=64"`
	Priority       *int   `json:"priority" binding:"omitempty,gte=0"`
}

// Enroll accepts a request, places it in the course's intake queue, and
// replies with a queued receipt. The allocation outcome is asynchronous.
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.UnprocessableEntity(c, "Invalid request: "+err.Error())
		return
	}

	priority := 0
	if req.Priority != nil {
		priority = *req.Priority
	}

	receipt, err := h.enrollmentService.Enqueue(c.Request.Context(), service.EnrollRequest{
		StudentID:      req.StudentID,
		CourseID:       req.CourseID,
		IdempotencyKey: req.IdempotencyKey,
		Priority:       priority,
	})
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, receipt)
}

// Lookup resolves an idempotency key to its enrollment, if allocated.
func (h *EnrollmentHandler) Lookup(c *gin.Context) {
	enrollment, err := h.enrollmentService.LookupByKey(c.Request.Context(), c.Param("idempotency_key"))
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, enrollment)
}
