package service

import (
	"github.com/google/wire"

	"github.com/courseflow/courseflow/internal/metrics"
)

// ProviderSet is the Wire provider set for services.
var ProviderSet = wire.NewSet(
	metrics.New,
	NewEnrollmentService,
	NewCourseService,
	NewWorkerManager,
)
