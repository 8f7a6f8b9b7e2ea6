package handler

import "github.com/google/wire"

// Handlers aggregates the HTTP handlers for route registration.
type Handlers struct {
	Enrollment *EnrollmentHandler
	Course     *CourseHandler
	Health     *HealthHandler
	Metrics    *MetricsHandler
}

// ProvideHandlers creates the Handlers struct.
func ProvideHandlers(
	enrollmentHandler *EnrollmentHandler,
	courseHandler *CourseHandler,
	healthHandler *HealthHandler,
	metricsHandler *MetricsHandler,
) *Handlers {
	return &Handlers{
		Enrollment: enrollmentHandler,
		Course:     courseHandler,
		Health:     healthHandler,
		Metrics:    metricsHandler,
	}
}

// ProviderSet is the Wire provider set for all handlers.
var ProviderSet = wire.NewSet(
	NewEnrollmentHandler,
	NewCourseHandler,
	NewHealthHandler,
	NewMetricsHandler,
	ProvideHandlers,
)
