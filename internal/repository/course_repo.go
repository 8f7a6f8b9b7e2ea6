package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/courseflow/courseflow/internal/domain"
	"github.com/courseflow/courseflow/internal/service"
)

// pqUniqueViolation is the Postgres error code for unique_violation.
const pqUniqueViolation = "23505"

type courseRepository struct {
	sql *sql.DB
}

func NewCourseRepository(sqlDB *sql.DB) service.CourseRepository {
	return &courseRepository{sql: sqlDB}
}

func (r *courseRepository) GetCourse(ctx context.Context, id int64) (*domain.Course, error) {
	query := `SELECT id, name, capacity, seats_taken FROM courses WHERE id = $1`
	course := &domain.Course{}
	err := scanSingleRow(ctx, r.sql, query, []any{id},
		&course.ID, &course.Name, &course.Capacity, &course.SeatsTaken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (r *courseRepository) ListCourses(ctx context.Context) ([]domain.Course, error) {
	query := `SELECT id, name, capacity, seats_taken FROM courses ORDER BY id`
	rows, err := r.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var courses []domain.Course
	for rows.Next() {
		var course domain.Course
		if err := rows.Scan(&course.ID, &course.Name, &course.Capacity, &course.SeatsTaken); err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

func (r *courseRepository) ListCourseIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.sql.QueryContext(ctx, `SELECT id FROM courses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateCourse inserts a course row. Used by fixtures and tests only; course
// CRUD is not part of the service surface.
func (r *courseRepository) CreateCourse(ctx context.Context, name string, capacity int) (*domain.Course, error) {
	query := `
		INSERT INTO courses (name, capacity, seats_taken)
		VALUES ($1, $2, 0)
		RETURNING id, name, capacity, seats_taken
	`
	course := &domain.Course{}
	err := scanSingleRow(ctx, r.sql, query, []any{name, capacity},
		&course.ID, &course.Name, &course.Capacity, &course.SeatsTaken)
	if err != nil {
		return nil, err
	}
	return course, nil
}

// CreateStudent inserts a student row. Fixture/test surface, like CreateCourse.
func (r *courseRepository) CreateStudent(ctx context.Context, name string) (int64, error) {
	var id int64
	err := scanSingleRow(ctx, r.sql,
		`INSERT INTO students (name) VALUES ($1) RETURNING id`, []any{name}, &id)
	return id, err
}

func (r *courseRepository) GetEnrollmentByKey(ctx context.Context, idempotencyKey string) (*domain.Enrollment, error) {
	query := `
		SELECT id, student_id, course_id, idempotency_key, booked_at
		FROM enrollments
		WHERE idempotency_key = $1
	`
	enrollment := &domain.Enrollment{}
	err := scanSingleRow(ctx, r.sql, query, []any{idempotencyKey},
		&enrollment.ID, &enrollment.StudentID, &enrollment.CourseID,
		&enrollment.IdempotencyKey, &enrollment.BookedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (r *courseRepository) CountEnrollments(ctx context.Context, courseID int64) (int, error) {
	var n int
	err := scanSingleRow(ctx, r.sql,
		`SELECT COUNT(*) FROM enrollments WHERE course_id = $1`, []any{courseID}, &n)
	return n, err
}

func (r *courseRepository) CountWaitlist(ctx context.Context, courseID int64) (int, error) {
	var n int
	err := scanSingleRow(ctx, r.sql,
		`SELECT COUNT(*) FROM waitlist WHERE course_id = $1`, []any{courseID}, &n)
	return n, err
}

// Allocate runs the seat-allocation decision in a single transaction. The
// course row lock serializes all allocations for a course, which makes the
// check-then-increment atomic. Unique constraints remain the ground truth:
// a lost race on the idempotency key surfaces as unique_violation and is
// reported as already_processed.
func (r *courseRepository) Allocate(ctx context.Context, req domain.QueuedRequest) (domain.AllocationOutcome, error) {
	tx, err := r.sql.BeginTx(ctx, nil)
	if err != nil {
		return domain.OutcomeError, fmt.Errorf("begin allocation tx: %w", err)
	}
	outcome, err := r.allocateInTx(ctx, tx, req)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			// Enrollment insert lost a race on the idempotency key; the
			// intended state already holds.
			return domain.OutcomeAlreadyProcessed, nil
		}
		return domain.OutcomeError, err
	}
	if err := tx.Commit(); err != nil {
		return domain.OutcomeError, fmt.Errorf("commit allocation tx: %w", err)
	}
	return outcome, nil
}

func (r *courseRepository) allocateInTx(ctx context.Context, tx *sql.Tx, req domain.QueuedRequest) (domain.AllocationOutcome, error) {
	var seatsTaken, capacity int
	err := tx.QueryRowContext(ctx,
		`SELECT seats_taken, capacity FROM courses WHERE id = $1 FOR UPDATE`,
		req.CourseID,
	).Scan(&seatsTaken, &capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OutcomeNotFound, nil
	}
	if err != nil {
		return domain.OutcomeError, fmt.Errorf("lock course row: %w", err)
	}

	// Fast-path idempotency check inside the transaction; the unique
	// constraint still backstops concurrent writers.
	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM enrollments WHERE idempotency_key = $1`,
		req.IdempotencyKey,
	).Scan(&existing)
	if err == nil {
		return domain.OutcomeAlreadyProcessed, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.OutcomeError, fmt.Errorf("idempotency lookup: %w", err)
	}

	if seatsTaken >= capacity {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO waitlist (student_id, course_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			req.StudentID, req.CourseID,
		); err != nil {
			return domain.OutcomeError, fmt.Errorf("insert waitlist: %w", err)
		}
		return domain.OutcomeWaitlisted, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE courses SET seats_taken = seats_taken + 1 WHERE id = $1`,
		req.CourseID,
	); err != nil {
		return domain.OutcomeError, fmt.Errorf("increment seats: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO enrollments (student_id, course_id, idempotency_key) VALUES ($1, $2, $3)`,
		req.StudentID, req.CourseID, req.IdempotencyKey,
	); err != nil {
		return domain.OutcomeError, fmt.Errorf("insert enrollment: %w", err)
	}
	return domain.OutcomeEnrolled, nil
}

func (r *courseRepository) Ping(ctx context.Context) error {
	return r.sql.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
