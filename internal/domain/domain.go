// Package domain holds the CourseFlow entities and allocation outcomes.
package domain

import "time"

// Course is a seat-capacity-bounded course. seats_taken never exceeds
// capacity at a transaction boundary; the allocation transaction is the sole
// writer of SeatsTaken.
type Course struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	SeatsTaken int    `json:"seats_taken"`
}

// Enrollment is created exactly once per idempotency key, never mutated,
// never deleted.
type Enrollment struct {
	ID             int64     `json:"id"`
	StudentID      int64     `json:"student_id"`
	CourseID       int64     `json:"course_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	BookedAt       time.Time `json:"booked_at"`
}

// WaitlistEntry records interest in a full course. (student, course) unique;
// promotion is out of scope.
type WaitlistEntry struct {
	StudentID int64 `json:"student_id"`
	CourseID  int64 `json:"course_id"`
}

// QueuedRequest is the transient payload that lives in the intake queue.
// The JSON field order defines the canonical member encoding; changing it
// breaks in-place score updates for already-queued retries.
type QueuedRequest struct {
	StudentID      int64  `json:"student_id"`
	CourseID       int64  `json:"course_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// AllocationOutcome is the structured result of one allocation transaction.
type AllocationOutcome string

const (
	// OutcomeEnrolled: a seat was taken and the enrollment row created.
	OutcomeEnrolled AllocationOutcome = "success"
	// OutcomeWaitlisted: course full, waitlist row holds (or already held).
	OutcomeWaitlisted AllocationOutcome = "waitlisted"
	// OutcomeAlreadyProcessed: the idempotency key is already bound to an
	// enrollment; the intended state holds.
	OutcomeAlreadyProcessed AllocationOutcome = "already_processed"
	// OutcomeNotFound: the course does not exist. Terminal, item dropped.
	OutcomeNotFound AllocationOutcome = "not_found"
	// OutcomeError: transient infrastructure failure; the worker backs off.
	OutcomeError AllocationOutcome = "error"
)

// Terminal reports whether the outcome ends the request's lifecycle (as
// opposed to a transient error the client may retry through).
func (o AllocationOutcome) Terminal() bool {
	return o != OutcomeError
}
