package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/courseflow/courseflow/internal/config"
	"github.com/courseflow/courseflow/internal/domain"
	"github.com/courseflow/courseflow/internal/metrics"
	"github.com/courseflow/courseflow/internal/pkg/logger"
)

// WorkerManager runs exactly one allocator worker per course id in this
// process. Scaling is by adding courses, not workers per course; the
// queue-position and priority semantics assume a single consumer per queue.
type WorkerManager struct {
	cfg     *config.Config
	repo    CourseRepository
	queue   IntakeQueue
	metrics *metrics.Metrics
	cron    *cron.Cron

	mu      sync.Mutex
	workers map[int64]struct{}
	wg      sync.WaitGroup

	workerCtx    context.Context
	workerCancel context.CancelFunc
	startOnce    sync.Once
	stopOnce     sync.Once
}

func NewWorkerManager(cfg *config.Config, repo CourseRepository, queue IntakeQueue, m *metrics.Metrics) *WorkerManager {
	workerCtx, workerCancel := context.WithCancel(context.Background())
	return &WorkerManager{
		cfg:          cfg,
		repo:         repo,
		queue:        queue,
		metrics:      m,
		cron:         cron.New(),
		workers:      make(map[int64]struct{}),
		workerCtx:    workerCtx,
		workerCancel: workerCancel,
	}
}

// Start spawns workers for every known course plus the configured extra ids,
// and schedules the rescan job that picks up operator-created courses and
// refreshes the per-course gauges.
func (m *WorkerManager) Start() error {
	var startErr error
	m.startOnce.Do(func() {
		m.rescan()
		for _, id := range m.cfg.Courses.ExtraWorkerIDs {
			m.ensureWorker(id)
		}

		spec := m.cfg.Worker.RescanCron
		if spec == "" {
			spec = "@every 30s"
		}
		if _, err := m.cron.AddFunc(spec, m.rescan); err != nil {
			startErr = err
			return
		}
		m.cron.Start()
		logger.With(zap.String("component", "worker.manager")).Info("worker manager started",
			zap.Int("workers", m.workerCount()),
			zap.String("rescan_cron", spec),
		)
	})
	return startErr
}

// Stop halts pops and waits for in-flight allocations to finish. Unpopped
// queued items survive in the external ordered set.
func (m *WorkerManager) Stop() {
	m.stopOnce.Do(func() {
		ctx := m.cron.Stop()
		<-ctx.Done()
		m.workerCancel()
		m.wg.Wait()
		logger.With(zap.String("component", "worker.manager")).Info("worker manager stopped")
	})
}

func (m *WorkerManager) workerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// rescan discovers course rows that do not have a worker yet and refreshes
// the queue-depth and seat gauges.
func (m *WorkerManager) rescan() {
	ctx, cancel := context.WithTimeout(m.workerCtx, 10*time.Second)
	defer cancel()

	ids, err := m.repo.ListCourseIDs(ctx)
	if err != nil {
		logger.With(zap.String("component", "worker.manager")).Warn("course rescan failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		m.ensureWorker(id)
	}
	m.refreshGauges(ctx, ids)
}

func (m *WorkerManager) refreshGauges(ctx context.Context, ids []int64) {
	for _, id := range ids {
		depth, err := m.queue.Depth(ctx, id)
		if err != nil {
			continue
		}
		course, err := m.repo.GetCourse(ctx, id)
		if err != nil || course == nil {
			continue
		}
		m.metrics.SetCourseGauges(id, depth, course.SeatsTaken, course.Capacity)
	}
}

func (m *WorkerManager) ensureWorker(courseID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[courseID]; exists {
		return
	}
	select {
	case <-m.workerCtx.Done():
		return
	default:
	}
	m.workers[courseID] = struct{}{}
	m.wg.Add(1)
	go m.runWorker(courseID)
}

// runWorker is the single-consumer loop for one course queue. Pop is
// destructive: a popped item whose allocation fails transiently is not
// re-enqueued; the client's idempotent retry is the recovery channel.
func (m *WorkerManager) runWorker(courseID int64) {
	defer m.wg.Done()

	log := logger.With(
		zap.String("component", "worker.allocator"),
		zap.Int64("course_id", courseID),
	)
	log.Info("allocator worker started")

	for {
		select {
		case <-m.workerCtx.Done():
			log.Info("allocator worker stopped")
			return
		default:
		}

		if backoff := m.runIteration(log, courseID); backoff > 0 {
			if !sleepCtx(m.workerCtx, backoff) {
				log.Info("allocator worker stopped")
				return
			}
		}
	}
}

// runIteration processes at most one queued request and returns how long to
// back off before the next pop (zero means pop again immediately). The loop
// must not die: panics are contained here and treated as transient errors.
func (m *WorkerManager) runIteration(log *zap.Logger, courseID int64) (backoff time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("allocator iteration panicked", zap.Any("panic", r), zap.Stack("stacktrace"))
			backoff = m.cfg.Worker.ErrorBackoff()
		}
	}()

	popCtx, cancelPop := context.WithTimeout(m.workerCtx, 10*time.Second)
	req, rawMember, found, err := m.queue.PopMin(popCtx, courseID)
	cancelPop()
	if err != nil && !found {
		// Queue unreachable; nothing was consumed.
		log.Warn("queue pop failed", zap.Error(err))
		return m.cfg.Worker.ErrorBackoff()
	}
	if !found {
		return m.cfg.Worker.EmptyPollInterval()
	}
	if err != nil {
		// Malformed member: popped and gone. Log and drop; there is nothing
		// to allocate and nothing safe to re-enqueue.
		log.Error("dropping malformed queue member",
			zap.String("member", rawMember),
			zap.Error(err),
		)
		return 0
	}

	// The allocation context deliberately does not inherit the shutdown
	// signal: an in-flight transaction is finished (or times out on its own
	// hard deadline) before the worker exits.
	allocCtx, cancelAlloc := context.WithTimeout(context.Background(), m.cfg.Worker.AllocationTimeout())
	outcome, allocErr := m.repo.Allocate(allocCtx, req)
	cancelAlloc()

	m.metrics.AllocationOutcomes.WithLabelValues(string(outcome)).Inc()

	switch outcome {
	case domain.OutcomeEnrolled:
		log.Info("enrolled",
			zap.Int64("student_id", req.StudentID),
			zap.String("idempotency_key", req.IdempotencyKey),
		)
	case domain.OutcomeWaitlisted:
		log.Info("waitlisted",
			zap.Int64("student_id", req.StudentID),
			zap.String("idempotency_key", req.IdempotencyKey),
		)
	case domain.OutcomeAlreadyProcessed:
		log.Info("already processed", zap.String("idempotency_key", req.IdempotencyKey))
	case domain.OutcomeNotFound:
		log.Warn("course not found, dropping request",
			zap.Int64("student_id", req.StudentID),
			zap.String("idempotency_key", req.IdempotencyKey),
		)
	default:
		log.Warn("allocation failed, backing off",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Error(allocErr),
		)
		return m.cfg.Worker.ErrorBackoff()
	}
	return 0
}

// sleepCtx sleeps for d unless ctx is cancelled first; reports whether the
// full sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
