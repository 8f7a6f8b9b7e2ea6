package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/courseflow/courseflow/internal/domain"
)

func newMockRepo(t *testing.T) (*courseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &courseRepository{sql: db}, mock
}

var (
	lockCourseQuery   = regexp.QuoteMeta(`SELECT seats_taken, capacity FROM courses WHERE id = $1 FOR UPDATE`)
	idempotencyQuery  = regexp.QuoteMeta(`SELECT id FROM enrollments WHERE idempotency_key = $1`)
	incrementSeats    = regexp.QuoteMeta(`UPDATE courses SET seats_taken = seats_taken + 1 WHERE id = $1`)
	insertEnrollment  = regexp.QuoteMeta(`INSERT INTO enrollments (student_id, course_id, idempotency_key) VALUES ($1, $2, $3)`)
	insertWaitlist    = regexp.QuoteMeta(`INSERT INTO waitlist (student_id, course_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`)
)

var allocReq = domain.QueuedRequest{StudentID: 7, CourseID: 1, IdempotencyKey: "enroll-7-1"}

func TestAllocateEnrollsWhenSeatFree(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockCourseQuery).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"seats_taken", "capacity"}).AddRow(3, 20))
	mock.ExpectQuery(idempotencyQuery).WithArgs("enroll-7-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(incrementSeats).WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEnrollment).WithArgs(int64(7), int64(1), "enroll-7-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	outcome, err := repo.Allocate(context.Background(), allocReq)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeEnrolled, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateWaitlistsWhenFull(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockCourseQuery).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"seats_taken", "capacity"}).AddRow(20, 20))
	mock.ExpectQuery(idempotencyQuery).WithArgs("enroll-7-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(insertWaitlist).WithArgs(int64(7), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := repo.Allocate(context.Background(), allocReq)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeWaitlisted, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateUnknownCourse(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockCourseQuery).WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	outcome, err := repo.Allocate(context.Background(), allocReq)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeNotFound, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateAlreadyProcessedKey(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockCourseQuery).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"seats_taken", "capacity"}).AddRow(3, 20))
	mock.ExpectQuery(idempotencyQuery).WithArgs("enroll-7-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(55)))
	mock.ExpectCommit()

	outcome, err := repo.Allocate(context.Background(), allocReq)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAlreadyProcessed, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateUniqueViolationReadsAsAlreadyProcessed(t *testing.T) {
	repo, mock := newMockRepo(t)

	// A concurrent writer took the idempotency key between our lookup and
	// insert. The constraint is the ground truth: report already_processed.
	mock.ExpectBegin()
	mock.ExpectQuery(lockCourseQuery).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"seats_taken", "capacity"}).AddRow(3, 20))
	mock.ExpectQuery(idempotencyQuery).WithArgs("enroll-7-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(incrementSeats).WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEnrollment).WithArgs(int64(7), int64(1), "enroll-7-1").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	outcome, err := repo.Allocate(context.Background(), allocReq)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAlreadyProcessed, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateTransientErrorRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockCourseQuery).WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	outcome, err := repo.Allocate(context.Background(), allocReq)
	require.Error(t, err)
	require.Equal(t, domain.OutcomeError, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCourse(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, capacity, seats_taken FROM courses WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "capacity", "seats_taken"}).
			AddRow(int64(1), "Distributed Systems", 20, 5))

	course, err := repo.GetCourse(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Distributed Systems", course.Name)
	require.Equal(t, 20, course.Capacity)
	require.Equal(t, 5, course.SeatsTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCourseMissingReturnsNil(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, capacity, seats_taken FROM courses WHERE id = $1`)).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	course, err := repo.GetCourse(context.Background(), 404)
	require.NoError(t, err)
	require.Nil(t, course)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEnrollmentByKeyMissingReturnsNil(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, student_id, course_id, idempotency_key, booked_at`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	enrollment, err := repo.GetEnrollmentByKey(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, enrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}
