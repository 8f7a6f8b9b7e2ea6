package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/courseflow/courseflow/internal/domain"
	infraerrors "github.com/courseflow/courseflow/internal/pkg/errors"
)

func TestListCoursesServesCachedResult(t *testing.T) {
	repo := newMemRepo()
	repo.addCourse(1, "Distributed Systems", 20)
	svc, err := NewCourseService(repo, newMemQueue())
	require.NoError(t, err)

	courses, err := svc.ListCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 1)

	// Ristretto admits asynchronously; give the Set a moment to land before
	// checking that the cached copy masks the new row.
	time.Sleep(50 * time.Millisecond)
	repo.addCourse(2, "Operating Systems", 10)

	courses, err = svc.ListCourses(context.Background())
	require.NoError(t, err)
	if len(courses) == 1 {
		require.Equal(t, int64(1), courses[0].ID)
	} else {
		// Cache admission is best effort; a miss is a correct, just colder,
		// answer.
		require.Len(t, courses, 2)
	}
}

func TestSnapshotKnownCourse(t *testing.T) {
	repo := newMemRepo()
	repo.addCourse(1, "Distributed Systems", 2)
	queue := newMemQueue()
	require.NoError(t, queue.Add(context.Background(), domain.QueuedRequest{
		StudentID: 7, CourseID: 1, IdempotencyKey: "k7",
	}, 1))

	_, err := repo.Allocate(context.Background(), domain.QueuedRequest{
		StudentID: 8, CourseID: 1, IdempotencyKey: "k8",
	})
	require.NoError(t, err)

	svc, err := NewCourseService(repo, queue)
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), snapshot.CourseID)
	require.Equal(t, int64(1), snapshot.QueueDepth)
	require.NotNil(t, snapshot.SeatsTaken)
	require.Equal(t, 1, *snapshot.SeatsTaken)
	require.NotNil(t, snapshot.Capacity)
	require.Equal(t, 2, *snapshot.Capacity)
	require.Equal(t, "operational", snapshot.Status)
}

func TestSnapshotUnknownCourseHasNullSeatFields(t *testing.T) {
	svc, err := NewCourseService(newMemRepo(), newMemQueue())
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(context.Background(), 404)
	require.NoError(t, err)
	require.Equal(t, int64(0), snapshot.QueueDepth)
	require.Nil(t, snapshot.SeatsTaken)
	require.Nil(t, snapshot.Capacity)
}

func TestReadinessReportsQueueOutage(t *testing.T) {
	queue := newMemQueue()
	svc, err := NewCourseService(newMemRepo(), queue)
	require.NoError(t, err)

	require.NoError(t, svc.Readiness(context.Background()))

	queue.setFailure(errQueueDown)
	err = svc.Readiness(context.Background())
	require.Error(t, err)
	require.Equal(t, 503, infraerrors.StatusOf(err))
}
