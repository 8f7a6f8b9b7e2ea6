package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/courseflow/courseflow/internal/domain"
)

// encodeMember mirrors the canonical queue-member encoding: json.Marshal of
// the request struct, byte-identical for the same logical request.
func encodeMember(req domain.QueuedRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeMember(member string) (domain.QueuedRequest, error) {
	var req domain.QueuedRequest
	if err := json.Unmarshal([]byte(member), &req); err != nil {
		return domain.QueuedRequest{}, err
	}
	if req.IdempotencyKey == "" {
		return domain.QueuedRequest{}, errors.New("empty idempotency key")
	}
	return req, nil
}

// memQueue is an in-memory ordered set with the same contract as the Redis
// intake queue: Add dedups on the canonical member and updates the score,
// PopMin removes the minimum-score member, ties break lexicographically.
type memQueue struct {
	mu      sync.Mutex
	entries map[int64]map[string]float64
	rawNext []string // raw members returned by the next pops, for decode-failure tests
	failAll error    // when set, every operation fails with this error
}

func newMemQueue() *memQueue {
	return &memQueue{entries: make(map[int64]map[string]float64)}
}

func (q *memQueue) setFailure(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failAll = err
}

func (q *memQueue) injectRaw(member string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rawNext = append(q.rawNext, member)
}

func (q *memQueue) Add(_ context.Context, req domain.QueuedRequest, score float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failAll != nil {
		return q.failAll
	}
	member, err := encodeMember(req)
	if err != nil {
		return err
	}
	if q.entries[req.CourseID] == nil {
		q.entries[req.CourseID] = make(map[string]float64)
	}
	q.entries[req.CourseID][member] = score
	return nil
}

func (q *memQueue) sortedMembers(courseID int64) []string {
	members := make([]string, 0, len(q.entries[courseID]))
	for member := range q.entries[courseID] {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		si := q.entries[courseID][members[i]]
		sj := q.entries[courseID][members[j]]
		if si != sj {
			return si < sj
		}
		return members[i] < members[j]
	})
	return members
}

func (q *memQueue) PopMin(_ context.Context, courseID int64) (domain.QueuedRequest, string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failAll != nil {
		return domain.QueuedRequest{}, "", false, q.failAll
	}
	if len(q.rawNext) > 0 {
		raw := q.rawNext[0]
		q.rawNext = q.rawNext[1:]
		req, err := decodeMember(raw)
		return req, raw, true, err
	}
	members := q.sortedMembers(courseID)
	if len(members) == 0 {
		return domain.QueuedRequest{}, "", false, nil
	}
	member := members[0]
	delete(q.entries[courseID], member)
	req, err := decodeMember(member)
	return req, member, true, err
}

func (q *memQueue) Rank(_ context.Context, req domain.QueuedRequest) (int64, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failAll != nil {
		return 0, false, q.failAll
	}
	member, err := encodeMember(req)
	if err != nil {
		return 0, false, err
	}
	for i, m := range q.sortedMembers(req.CourseID) {
		if m == member {
			return int64(i), true, nil
		}
	}
	return 0, false, nil
}

func (q *memQueue) Depth(_ context.Context, courseID int64) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failAll != nil {
		return 0, q.failAll
	}
	return int64(len(q.entries[courseID])), nil
}

func (q *memQueue) Ping(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failAll
}

// memRepo is an in-memory CourseRepository applying the same allocation rule
// as the SQL implementation, serialized under one lock.
type memRepo struct {
	mu          sync.Mutex
	nextID      int64
	courses     map[int64]*domain.Course
	enrollments map[string]*domain.Enrollment
	waitlist    map[[2]int64]struct{}
	failAlloc   error // when set, Allocate reports a transient error
}

func newMemRepo() *memRepo {
	return &memRepo{
		nextID:      1,
		courses:     make(map[int64]*domain.Course),
		enrollments: make(map[string]*domain.Enrollment),
		waitlist:    make(map[[2]int64]struct{}),
	}
}

func (r *memRepo) addCourse(id int64, name string, capacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses[id] = &domain.Course{ID: id, Name: name, Capacity: capacity}
}

func (r *memRepo) GetCourse(_ context.Context, id int64) (*domain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	course, ok := r.courses[id]
	if !ok {
		return nil, nil
	}
	cp := *course
	return &cp, nil
}

func (r *memRepo) ListCourses(_ context.Context) ([]domain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.courses))
	for id := range r.courses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]domain.Course, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.courses[id])
	}
	return out, nil
}

func (r *memRepo) ListCourseIDs(ctx context.Context) ([]int64, error) {
	courses, err := r.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(courses))
	for _, course := range courses {
		ids = append(ids, course.ID)
	}
	return ids, nil
}

func (r *memRepo) CreateCourse(_ context.Context, name string, capacity int) (*domain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	course := &domain.Course{ID: r.nextID, Name: name, Capacity: capacity}
	r.nextID++
	r.courses[course.ID] = course
	cp := *course
	return &cp, nil
}

func (r *memRepo) CreateStudent(_ context.Context, _ string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return id, nil
}

func (r *memRepo) GetEnrollmentByKey(_ context.Context, idempotencyKey string) (*domain.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	enrollment, ok := r.enrollments[idempotencyKey]
	if !ok {
		return nil, nil
	}
	cp := *enrollment
	return &cp, nil
}

func (r *memRepo) CountEnrollments(_ context.Context, courseID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.enrollments {
		if e.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CountWaitlist(_ context.Context, courseID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for pair := range r.waitlist {
		if pair[1] == courseID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) Allocate(_ context.Context, req domain.QueuedRequest) (domain.AllocationOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAlloc != nil {
		return domain.OutcomeError, r.failAlloc
	}
	course, ok := r.courses[req.CourseID]
	if !ok {
		return domain.OutcomeNotFound, nil
	}
	if _, exists := r.enrollments[req.IdempotencyKey]; exists {
		return domain.OutcomeAlreadyProcessed, nil
	}
	if course.SeatsTaken >= course.Capacity {
		r.waitlist[[2]int64{req.StudentID, req.CourseID}] = struct{}{}
		return domain.OutcomeWaitlisted, nil
	}
	course.SeatsTaken++
	r.enrollments[req.IdempotencyKey] = &domain.Enrollment{
		ID:             r.nextID,
		StudentID:      req.StudentID,
		CourseID:       req.CourseID,
		IdempotencyKey: req.IdempotencyKey,
	}
	r.nextID++
	return domain.OutcomeEnrolled, nil
}

func (r *memRepo) Ping(_ context.Context) error { return nil }

var errQueueDown = errors.New("connection refused")
