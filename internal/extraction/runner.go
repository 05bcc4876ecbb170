package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"procurement/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrQueueFull  = errors.New("extraction queue is full")
	ErrNotRunning = errors.New("extraction runner is not running")
)

// Outcome is the final state of a job: Result on success, Err after the last failed attempt.
type Outcome struct {
	RequestID    uuid.UUID
	Kind         Kind
	DocumentName string
	Result       *Result
	Err          error
	Attempts     int
}

// ResultHandler receives each finished job exactly once.
type ResultHandler interface {
	HandleExtraction(ctx context.Context, outcome Outcome) error
}

// RunnerConfig controls concurrency and retries
type RunnerConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Timeout     time.Duration
	BaseBackoff time.Duration
}

// DefaultRunnerConfig returns the settings used when none are configured
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:     2,
		QueueSize:   100,
		MaxAttempts: 3,
		Timeout:     90 * time.Second,
		BaseBackoff: 2 * time.Second,
	}
}

type jobKey struct {
	requestID uuid.UUID
	kind      Kind
}

type job struct {
	doc        Document
	generation uint64
}

// Runner executes extraction jobs on a fixed pool of workers.
// Jobs are keyed by request and kind: when a document is re-uploaded, the outcome of the older job is dropped.
type Runner struct {
	gateway Gateway
	handler ResultHandler
	metrics *metrics.Metrics
	logger  *zap.Logger
	cfg     RunnerConfig

	queue chan job

	mu          sync.Mutex
	generations map[jobKey]uint64
	isRunning   bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewRunner(gateway Gateway, m *metrics.Metrics, logger *zap.Logger, cfg RunnerConfig) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BaseBackoff < 0 {
		cfg.BaseBackoff = 0
	}
	return &Runner{
		gateway:     gateway,
		metrics:     m,
		logger:      logger,
		cfg:         cfg,
		queue:       make(chan job, cfg.QueueSize),
		generations: make(map[jobKey]uint64),
	}
}

// SetHandler installs the outcome receiver. Call before Start.
func (r *Runner) SetHandler(h ResultHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("extraction runner is already running")
	}
	if r.handler == nil {
		return fmt.Errorf("extraction runner has no result handler")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.isRunning = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work()
	}

	r.logger.Info("ExtractionRunner started",
		zap.Int("workers", r.cfg.Workers),
		zap.Int("queue_size", r.cfg.QueueSize),
		zap.Int("max_attempts", r.cfg.MaxAttempts))
	return nil
}

// Stop cancels in-flight jobs and waits for the workers. Queued jobs are discarded.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("ExtractionRunner stopped")
}

func (r *Runner) Name() string {
	return "ExtractionRunner"
}

// Submit queues doc without blocking.
func (r *Runner) Submit(doc Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return ErrNotRunning
	}
	key := jobKey{requestID: doc.RequestID, kind: doc.Kind}
	gen := r.generations[key] + 1

	select {
	case r.queue <- job{doc: doc, generation: gen}:
		r.generations[key] = gen
		return nil
	default:
		return ErrQueueFull
	}
}

// current reports whether j is the latest submission for its key and forgets the key if so.
func (r *Runner) current(j job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := jobKey{requestID: j.doc.RequestID, kind: j.doc.Kind}
	if r.generations[key] != j.generation {
		return false
	}
	delete(r.generations, key)
	return true
}

func (r *Runner) work() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case j := <-r.queue:
			r.run(j)
		}
	}
}

func (r *Runner) run(j job) {
	log := r.logger.With(
		zap.String("request_id", j.doc.RequestID.String()),
		zap.String("kind", string(j.doc.Kind)))

	outcome := Outcome{RequestID: j.doc.RequestID, Kind: j.doc.Kind, DocumentName: j.doc.Name}
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		outcome.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
		start := time.Now()
		result, err := r.gateway.Extract(attemptCtx, j.doc)
		cancel()
		r.metrics.ExtractionAttempt(string(j.doc.Kind), time.Since(start).Seconds())

		if err == nil {
			outcome.Result, outcome.Err = result, nil
			break
		}
		outcome.Err = err
		if r.ctx.Err() != nil {
			log.Info("Extraction cancelled", zap.Int("attempt", attempt))
			return
		}
		if IsPermanent(err) || attempt == r.cfg.MaxAttempts {
			break
		}

		wait := r.cfg.BaseBackoff << (attempt - 1)
		log.Warn("Extraction attempt failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(err))
		select {
		case <-r.ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	if !r.current(j) {
		log.Info("Dropping outcome of superseded extraction job")
		return
	}

	status := "success"
	if outcome.Err != nil {
		status = "failed"
		log.Error("Extraction failed", zap.Int("attempts", outcome.Attempts), zap.Error(outcome.Err))
	}
	r.metrics.ExtractionJob(string(j.doc.Kind), status)

	handleCtx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()
	if err := r.handler.HandleExtraction(handleCtx, outcome); err != nil {
		log.Error("Failed to store extraction outcome", zap.Error(err))
	}
}
