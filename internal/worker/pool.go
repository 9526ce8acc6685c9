package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/config"
)

// ErrQueueFull is returned by Submit when the backlog is at capacity.
var ErrQueueFull = errors.New("worker queue full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker pool stopped")

// Job is a unit of background work.
type Job struct {
	Name string
	Key  string
	Run  func(ctx context.Context) error
}

// Pool runs jobs on a fixed number of goroutines with bounded retries.
type Pool struct {
	name        string
	workers     int
	maxAttempts int
	backoff     time.Duration
	permanent   func(error) bool
	logger      *zap.Logger

	mu      sync.Mutex
	queue   chan Job
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// PoolOption customizes a Pool.
type PoolOption func(*Pool)

// WithPermanentErrors marks errors that must not be retried.
func WithPermanentErrors(fn func(error) bool) PoolOption {
	return func(p *Pool) { p.permanent = fn }
}

// NewPool builds an idle pool sized from cfg.
func NewPool(name string, cfg config.WorkerConfig, logger *zap.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		name:        name,
		workers:     cfg.AnalysisWorkers,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff(),
		logger:      logger.With(zap.String("pool", name)),
	}
	if p.workers <= 0 {
		p.workers = 1
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 100
	}
	p.queue = make(chan Job, size)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Jobs run with a context derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.queue {
				p.run(ctx, job)
			}
		}()
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workers), zap.Int("queue", cap(p.queue)))
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new jobs, lets queued ones drain and waits for the workers.
// Jobs still running when ctx expires are canceled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	cancel := p.cancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return ctx.Err()
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	for attempt := 1; ; attempt++ {
		err := job.Run(ctx)
		if err == nil {
			return
		}
		fields := []zap.Field{
			zap.String("job", job.Name),
			zap.String("key", job.Key),
			zap.Int("attempt", attempt),
			zap.Error(err),
		}
		if p.permanent != nil && p.permanent(err) {
			p.logger.Warn("job failed permanently", fields...)
			return
		}
		if attempt >= p.maxAttempts || ctx.Err() != nil {
			p.logger.Error("job failed; giving up", fields...)
			return
		}
		p.logger.Warn("job failed; retrying", fields...)

		select {
		case <-time.After(p.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return
		}
	}
}
