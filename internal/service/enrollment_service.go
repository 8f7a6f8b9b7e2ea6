package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/courseflow/courseflow/internal/domain"
	"github.com/courseflow/courseflow/internal/metrics"
	infraerrors "github.com/courseflow/courseflow/internal/pkg/errors"
	"github.com/courseflow/courseflow/internal/pkg/logger"
)

// MaxIdempotencyKeyLength matches the enrollments.idempotency_key column.
const MaxIdempotencyKeyLength = 64

var (
	ErrInvalidStudent  = infraerrors.UnprocessableEntity("INVALID_STUDENT_ID", "student_id must be a positive integer")
	ErrInvalidCourse   = infraerrors.UnprocessableEntity("INVALID_COURSE_ID", "course_id must be a positive integer")
	ErrInvalidKey      = infraerrors.UnprocessableEntity("INVALID_IDEMPOTENCY_KEY", "idempotency_key must be 1-64 characters")
	ErrInvalidPriority = infraerrors.UnprocessableEntity("INVALID_PRIORITY", "priority must be >= 0")
	// ErrQueueUnavailable surfaces as 503; the client retries with the same
	// idempotency key, which either re-enqueues or updates the score in place.
	ErrQueueUnavailable   = infraerrors.ServiceUnavailable("QUEUE_UNAVAILABLE", "intake queue unavailable, retry with the same idempotency key")
	ErrEnrollmentNotFound = infraerrors.NotFound("ENROLLMENT_NOT_FOUND", "no enrollment for this idempotency key")
)

// IntakeQueue is the ordered-set service holding queued requests per course.
// Add is idempotent on member identity: the same canonical payload updates
// the score instead of duplicating the entry. PopMin is atomic.
type IntakeQueue interface {
	Add(ctx context.Context, req domain.QueuedRequest, score float64) error
	PopMin(ctx context.Context, courseID int64) (req domain.QueuedRequest, rawMember string, found bool, err error)
	Rank(ctx context.Context, req domain.QueuedRequest) (rank int64, found bool, err error)
	Depth(ctx context.Context, courseID int64) (int64, error)
	Ping(ctx context.Context) error
}

// EnrollRequest is the validated intake payload.
type EnrollRequest struct {
	StudentID      int64
	CourseID       int64
	IdempotencyKey string
	Priority       int
}

// EnrollReceipt is what the client gets back: the request is queued, not
// allocated. Outcomes are observed through the read APIs.
type EnrollReceipt struct {
	Status        string `json:"status"`
	QueuePosition *int64 `json:"queue_position"`
}

// EnrollmentService implements the intake stage: validate, score, enqueue,
// report queue position. It never touches the relational store.
type EnrollmentService struct {
	queue   IntakeQueue
	repo    CourseRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEnrollmentService(queue IntakeQueue, repo CourseRepository, m *metrics.Metrics) *EnrollmentService {
	return &EnrollmentService{
		queue:   queue,
		repo:    repo,
		metrics: m,
		now:     time.Now,
	}
}

func (s *EnrollmentService) validate(req EnrollRequest) error {
	if req.StudentID <= 0 {
		return ErrInvalidStudent
	}
	if req.CourseID <= 0 {
		return ErrInvalidCourse
	}
	if req.IdempotencyKey == "" || len(req.IdempotencyKey) > MaxIdempotencyKeyLength {
		return ErrInvalidKey
	}
	if req.Priority < 0 {
		return ErrInvalidPriority
	}
	return nil
}

// Enqueue validates the request and places it in the course's intake queue.
// A retry with the same idempotency key while the first attempt is still
// queued updates the score in place and never creates a duplicate member.
func (s *EnrollmentService) Enqueue(ctx context.Context, req EnrollRequest) (*EnrollReceipt, error) {
	start := s.now()
	if err := s.validate(req); err != nil {
		return nil, err
	}

	payload := domain.QueuedRequest{
		StudentID:      req.StudentID,
		CourseID:       req.CourseID,
		IdempotencyKey: req.IdempotencyKey,
	}
	score := ComputeScore(start, req.Priority)

	if err := s.queue.Add(ctx, payload, score); err != nil {
		s.metrics.EnrollmentRequests.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Warn("intake enqueue failed",
			zap.Int64("course_id", req.CourseID),
			zap.Error(err),
		)
		return nil, ErrQueueUnavailable.WithCause(err)
	}

	receipt := &EnrollReceipt{Status: "queued"}
	if rank, found, err := s.queue.Rank(ctx, payload); err == nil && found {
		position := rank + 1
		receipt.QueuePosition = &position
	}
	// Rank failure is not worth failing the request over: the enqueue
	// already succeeded, so the receipt just omits the position.

	s.metrics.EnrollmentRequests.WithLabelValues("queued").Inc()
	s.metrics.EnrollmentLatency.Observe(s.now().Sub(start).Seconds())
	return receipt, nil
}

// LookupByKey resolves an idempotency key to its enrollment, if any. This is
// the optional status-lookup surface: queued and waitlisted requests report
// not found here.
func (s *EnrollmentService) LookupByKey(ctx context.Context, idempotencyKey string) (*domain.Enrollment, error) {
	if idempotencyKey == "" || len(idempotencyKey) > MaxIdempotencyKeyLength {
		return nil, ErrInvalidKey
	}
	enrollment, err := s.repo.GetEnrollmentByKey(ctx, idempotencyKey)
	if err != nil {
		return nil, infraerrors.Internal("ENROLLMENT_LOOKUP_FAILED", "enrollment lookup failed").WithCause(err)
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	return enrollment, nil
}
