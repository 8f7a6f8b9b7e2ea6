package repository

import "github.com/google/wire"

// ProviderSet is the Wire provider set for infrastructure clients and
// repositories.
var ProviderSet = wire.NewSet(
	NewSQLDB,
	NewRedisClient,
	NewCourseRepository,
	NewIntakeQueue,
)
