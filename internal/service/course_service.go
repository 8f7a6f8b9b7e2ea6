package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/courseflow/courseflow/internal/domain"
	infraerrors "github.com/courseflow/courseflow/internal/pkg/errors"
)

// courseListCacheTTL bounds staleness of GET /courses. Seat counts move fast
// during registration bursts, so the window is deliberately short.
const courseListCacheTTL = 2 * time.Second

const courseListCacheKey = "courses:list"

var ErrCourseNotFound = infraerrors.NotFound("COURSE_NOT_FOUND", "course not found")

// CourseRepository is the durable-state port. Allocate is the transactional
// seat decision; everything else is plain reads plus fixture-only writes.
type CourseRepository interface {
	GetCourse(ctx context.Context, id int64) (*domain.Course, error)
	ListCourses(ctx context.Context) ([]domain.Course, error)
	ListCourseIDs(ctx context.Context) ([]int64, error)
	CreateCourse(ctx context.Context, name string, capacity int) (*domain.Course, error)
	CreateStudent(ctx context.Context, name string) (int64, error)
	GetEnrollmentByKey(ctx context.Context, idempotencyKey string) (*domain.Enrollment, error)
	CountEnrollments(ctx context.Context, courseID int64) (int, error)
	CountWaitlist(ctx context.Context, courseID int64) (int, error)
	Allocate(ctx context.Context, req domain.QueuedRequest) (domain.AllocationOutcome, error)
	Ping(ctx context.Context) error
}

// CourseSnapshot is the JSON metrics snapshot for one course.
type CourseSnapshot struct {
	CourseID   int64  `json:"course_id"`
	QueueDepth int64  `json:"queue_depth"`
	SeatsTaken *int   `json:"seats_taken"`
	Capacity   *int   `json:"capacity"`
	Status     string `json:"status"`
}

// CourseService serves the read surface: course listing, per-course
// snapshots, and the readiness probe.
type CourseService struct {
	repo  CourseRepository
	queue IntakeQueue
	cache *ristretto.Cache
}

func NewCourseService(repo CourseRepository, queue IntakeQueue) (*CourseService, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 10,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("course cache: %w", err)
	}
	return &CourseService{repo: repo, queue: queue, cache: cache}, nil
}

// ListCourses returns all courses through a short-TTL read cache.
func (s *CourseService) ListCourses(ctx context.Context) ([]domain.Course, error) {
	if cached, ok := s.cache.Get(courseListCacheKey); ok {
		if courses, ok := cached.([]domain.Course); ok {
			return courses, nil
		}
	}
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, infraerrors.Internal("COURSE_LIST_FAILED", "course listing failed").WithCause(err)
	}
	if courses == nil {
		courses = []domain.Course{}
	}
	s.cache.SetWithTTL(courseListCacheKey, courses, int64(len(courses)+1), courseListCacheTTL)
	return courses, nil
}

// Snapshot reports queue depth and seat state for one course. A missing
// course still reports queue depth with null seat fields, matching the
// original operational endpoint.
func (s *CourseService) Snapshot(ctx context.Context, courseID int64) (*CourseSnapshot, error) {
	depth, err := s.queue.Depth(ctx, courseID)
	if err != nil {
		return nil, infraerrors.ServiceUnavailable("QUEUE_UNAVAILABLE", "intake queue unavailable").WithCause(err)
	}
	snapshot := &CourseSnapshot{
		CourseID:   courseID,
		QueueDepth: depth,
		Status:     "operational",
	}
	course, err := s.repo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, infraerrors.Internal("COURSE_READ_FAILED", "course read failed").WithCause(err)
	}
	if course != nil {
		snapshot.SeatsTaken = &course.SeatsTaken
		snapshot.Capacity = &course.Capacity
	}
	return snapshot, nil
}

// Readiness probes both downstream dependencies. Liveness (/health) must not
// call this.
func (s *CourseService) Readiness(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return infraerrors.ServiceUnavailable("DATABASE_NOT_READY", "database not ready").WithCause(err)
	}
	if err := s.queue.Ping(ctx); err != nil {
		return infraerrors.ServiceUnavailable("QUEUE_NOT_READY", "intake queue not ready").WithCause(err)
	}
	return nil
}
