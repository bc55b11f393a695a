package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sk-governance-api/internal/models"
	"github.com/noah-isme/sk-governance-api/pkg/jobs"
)

// JobTypeReconcileTerms is the queue job type that completes overdue terms.
const JobTypeReconcileTerms = "terms.reconcile"

// reconcileAgent is recorded as the user agent of audit entries written by the sweep.
const reconcileAgent = "reconcile-worker"

type termReconciler interface {
	ReconcileOverdue(ctx context.Context, actor models.Actor) (*ReconcileResult, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ReconcileWorker schedules and runs the overdue term sweep through the job queue.
type ReconcileWorker struct {
	terms    termReconciler
	queue    jobEnqueuer
	interval time.Duration
	logger   *zap.Logger
}

// NewReconcileWorker constructs a worker. A non-positive interval disables the ticker;
// sweeps can still be triggered manually.
func NewReconcileWorker(terms termReconciler, queue jobEnqueuer, interval time.Duration, logger *zap.Logger) *ReconcileWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileWorker{terms: terms, queue: queue, interval: interval, logger: logger}
}

// Handle processes a reconcile job.
func (w *ReconcileWorker) Handle(ctx context.Context, job jobs.Job) error {
	result, err := w.terms.ReconcileOverdue(ctx, models.Actor{UserAgent: reconcileAgent})
	if err != nil {
		return err
	}
	w.logger.Debug("reconcile sweep finished",
		zap.String("job_id", job.ID),
		zap.Int("checked", result.Checked),
		zap.Int("completed", len(result.Completed)),
	)
	return nil
}

// Trigger enqueues a sweep.
func (w *ReconcileWorker) Trigger(source string) error {
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeReconcileTerms, Payload: source}
	if err := w.queue.Enqueue(job); err != nil {
		w.logger.Warn("failed to enqueue reconcile sweep", zap.String("source", source), zap.Error(err))
		return err
	}
	return nil
}

// Start enqueues one sweep immediately and then one per interval until ctx is done.
func (w *ReconcileWorker) Start(ctx context.Context) {
	_ = w.Trigger("startup")
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = w.Trigger("schedule")
			}
		}
	}()
}
