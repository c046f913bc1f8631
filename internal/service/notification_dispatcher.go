package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/models"
	"github.com/noah-isme/datashare-api/pkg/jobs"
)

// Notifier is one destination informed of committed transitions.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, notice models.TransitionNotice) error
}

// DispatcherConfig tunes the notification worker pool.
type DispatcherConfig struct {
	Workers        int
	BufferSize     int
	MaxRetries     int
	RetryDelay     time.Duration
	SinkTimeout    time.Duration
	EnqueueTimeout time.Duration
}

// NotificationDispatcher fans transition notices out to every sink on a
// background queue. Each sink is retried independently and a failure never
// reaches the caller that committed the transition.
type NotificationDispatcher struct {
	queue          *jobs.Queue
	sinks          map[string]Notifier
	enqueueTimeout time.Duration
	metrics        *MetricsService
	logger         *zap.Logger
}

// NewNotificationDispatcher wires sinks to a job queue. Call Start before use.
func NewNotificationDispatcher(sinks []Notifier, cfg DispatcherConfig, metrics *MetricsService, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 250 * time.Millisecond
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 10 * time.Second
	}

	d := &NotificationDispatcher{
		sinks:          make(map[string]Notifier, len(sinks)),
		enqueueTimeout: cfg.EnqueueTimeout,
		metrics:        metrics,
		logger:         logger,
	}
	for _, sink := range sinks {
		if sink != nil {
			d.sinks[sink.Name()] = sink
		}
	}

	d.queue = jobs.NewQueue("transition-notifications", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		JobTimeout: cfg.SinkTimeout,
		OnDrop:     d.dropped,
		Logger:     logger,
	})
	return d
}

// Start launches the workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop halts the workers. Buffered notices are discarded.
func (d *NotificationDispatcher) Stop() {
	if pending := d.queue.Pending(); pending > 0 {
		d.logger.Warn("discarding pending notifications", zap.Int("pending", pending))
	}
	d.queue.Stop()
}

// Notify queues notice for every sink. It is fire-and-forget: enqueue
// failures are logged and counted, never returned.
func (d *NotificationDispatcher) Notify(ctx context.Context, notice models.TransitionNotice) {
	if d == nil {
		return
	}
	// Detach from the request so a finished request does not cancel the enqueue.
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.enqueueTimeout)
	defer cancel()

	for name := range d.sinks {
		job := jobs.Job{
			ID:      fmt.Sprintf("%s:%s:%s", notice.EventID, notice.Tag, name),
			Type:    name,
			Payload: notice,
		}
		if err := d.queue.EnqueueContext(enqueueCtx, job); err != nil {
			d.metrics.RecordNotification(name, err)
			d.logger.Error("notification not queued",
				zap.String("sink", name),
				zap.String("transaction_id", notice.TransactionID),
				zap.String("tag", string(notice.Tag)),
				zap.Error(err),
			)
		}
	}
}

func (d *NotificationDispatcher) handle(ctx context.Context, job jobs.Job) error {
	sink, ok := d.sinks[job.Type]
	if !ok {
		return nil
	}
	notice, ok := job.Payload.(models.TransitionNotice)
	if !ok {
		d.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	err := sink.Notify(ctx, notice)
	d.metrics.RecordNotification(sink.Name(), err)
	return err
}

func (d *NotificationDispatcher) dropped(job jobs.Job, err error) {
	notice, _ := job.Payload.(models.TransitionNotice)
	d.logger.Error("notification dropped after retries",
		zap.String("sink", job.Type),
		zap.String("transaction_id", notice.TransactionID),
		zap.String("tag", string(notice.Tag)),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)
}
