// Package ctxkey defines type-safe keys for context.Value.
package ctxkey

// Key avoids the built-in string type for context keys (staticcheck SA1029).
type Key string

const (
	// RequestID is the server-generated or propagated request ID.
	RequestID Key = "ctx_request_id"

	// CourseID is the course a request or worker iteration is acting on,
	// used for unified log fields across the allocation path.
	CourseID Key = "ctx_course_id"
)
