// Package outbox delivers the notification events that workflow transitions append to the outbox table.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/notification"
	"procurement/internal/repository"

	"go.uber.org/zap"
)

// Config controls polling and retry behaviour
type Config struct {
	PollInterval    time.Duration
	BatchSize       int
	MaxAttempts     int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	DeliveryTimeout time.Duration
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		PollInterval:    2 * time.Second,
		BatchSize:       50,
		MaxAttempts:     5,
		BaseBackoff:     5 * time.Second,
		MaxBackoff:      10 * time.Minute,
		DeliveryTimeout: 10 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (1-based): base * 2^(attempt-1), capped at max.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := c.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.MaxBackoff > 0 && d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

// Worker polls due outbox events and hands them to the notifier. Delivery is at least once:
// an event is marked delivered only after Notify succeeds.
type Worker struct {
	repo     repository.OutboxRepository
	tx       repository.TransactionManager
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time

	wake chan struct{}

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewWorker(
	repo repository.OutboxRepository,
	tx repository.TransactionManager,
	notifier notification.Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg Config,
) *Worker {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = def.DeliveryTimeout
	}
	return &Worker{
		repo:     repo,
		tx:       tx,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		wake:     make(chan struct{}, 1),
	}
}

// Start starts the polling loop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("outbox worker is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("OutboxWorker started",
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Int("max_attempts", w.cfg.MaxAttempts))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the in-flight batch to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("OutboxWorker stopped")
}

func (w *Worker) Name() string {
	return "OutboxWorker"
}

// Notify asks the loop to poll now instead of waiting for the next tick. It never blocks.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-w.wake:
			w.drain(ctx)
		}
	}
}

// drain processes full batches until the queue has nothing due.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.ProcessBatch(ctx)
		if err != nil {
			w.logger.Error("Failed to process outbox batch", zap.Error(err))
			return
		}
		if n < w.cfg.BatchSize {
			return
		}
	}
}

// ProcessBatch claims up to BatchSize due events and attempts each once.
// It returns the number of events claimed.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	var claimed int
	err := w.tx.RunInTx(ctx, func(txCtx context.Context) error {
		events, err := w.repo.ClaimDue(txCtx, w.now(), w.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("claim due events: %w", err)
		}
		claimed = len(events)
		for i := range events {
			if err := w.deliver(txCtx, events[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// deliver returns an error only when the outcome cannot be recorded.
func (w *Worker) deliver(ctx context.Context, event model.OutboxEvent) error {
	log := w.logger.With(
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.EventType),
		zap.String("request_id", event.RequestID.String()))

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.DeliveryTimeout)
	sendErr := w.notifier.Notify(sendCtx, notification.FromEvent(event))
	cancel()

	if sendErr == nil {
		w.metrics.OutboxDelivery(event.EventType, "delivered")
		log.Debug("Outbox event delivered")
		return w.repo.MarkDelivered(ctx, event.ID, w.now())
	}

	attempts := event.Attempts + 1
	if attempts >= w.cfg.MaxAttempts {
		w.metrics.OutboxDelivery(event.EventType, "failed")
		log.Error("Outbox event failed permanently", zap.Int("attempts", attempts), zap.Error(sendErr))
		return w.repo.MarkFailed(ctx, event.ID, attempts, sendErr.Error())
	}

	next := w.now().Add(w.cfg.Backoff(attempts))
	w.metrics.OutboxDelivery(event.EventType, "retry")
	log.Warn("Outbox delivery failed, will retry",
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(sendErr))
	return w.repo.MarkRetry(ctx, event.ID, attempts, next, sendErr.Error())
}
