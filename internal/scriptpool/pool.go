package scriptpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/flowstore"
	"github.com/oriys/rift/internal/logging"
	"github.com/oriys/rift/internal/metrics"
	"github.com/oriys/rift/internal/observability"
)

// ErrQueueFull is returned when the bounded job queue has no room and the
// caller must fail open (treat the request as no fault injected).
var ErrQueueFull = errors.New("scriptpool: queue full")

// ErrTimedOut is returned when a job's timeout elapses before the worker
// that picked it up finishes; the worker itself is left to run to
// completion and simply discards the result.
var ErrTimedOut = errors.New("scriptpool: timed out")

// Config configures the bounded worker pool.
type Config struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// DefaultWorkers returns min(16, max(2, cpus/2)).
func DefaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 2 {
		n = 2
	}
	if n > 16 {
		n = 16
	}
	return n
}

type job struct {
	compiled Compiled
	req      *domain.Request
	flow     *BoundFlow
	resultCh chan jobResult
}

type jobResult struct {
	decision Decision
	err      error
}

// Pool is the bounded worker pool behind script execution. Workers read
// from a fixed-capacity channel; Submit fails immediately with
// ErrQueueFull when the channel has no room, rather than blocking.
type Pool struct {
	cfg    Config
	taskCh chan job
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	started bool
}

// New builds a Pool with cfg; non-positive values fall back to sane
// defaults rather than erroring.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Second
	}
	return &Pool{
		cfg:    cfg,
		taskCh: make(chan job, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Start launches the fixed worker goroutines.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logging.Op().Info("script pool started", "workers", p.cfg.Workers, "queue_size", p.cfg.QueueSize)
}

// Stop signals workers to exit after their current job and waits for them.
// An idle worker sees the signal at once, since it selects on stopCh and
// the job queue together.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logging.Op().Info("script pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case j := <-p.taskCh:
			decision, err := j.compiled.ShouldInject(j.req, j.flow)
			select {
			case j.resultCh <- jobResult{decision: decision, err: err}:
			default:
			}
		}
	}
}

// Submit enqueues a should_inject call and blocks until the worker
// finishes or cfg.JobTimeout elapses, whichever is first. It never blocks
// on enqueue: if the queue has no room, it returns ErrQueueFull
// immediately.
func (p *Pool) Submit(ctx context.Context, compiled Compiled, req *domain.Request, store flowstore.Store, flowID string) (Decision, error) {
	ctx, span := observability.Tracer().Start(ctx, "scriptpool.submit")
	defer span.End()
	span.SetAttributes(attribute.String("rift.flow_id", flowID))

	j := job{
		compiled: compiled,
		req:      req,
		flow:     NewBoundFlow(store, flowID),
		resultCh: make(chan jobResult, 1),
	}

	select {
	case p.taskCh <- j:
	default:
		metrics.Global().RecordScriptExecution(false, true)
		return Decision{}, ErrQueueFull
	}

	timer := time.NewTimer(p.cfg.JobTimeout)
	defer timer.Stop()

	select {
	case res := <-j.resultCh:
		metrics.Global().RecordScriptExecution(false, false)
		if res.err != nil {
			return Decision{}, fmt.Errorf("scriptpool: %w", res.err)
		}
		return res.decision, nil
	case <-timer.C:
		metrics.Global().RecordScriptExecution(true, false)
		return Decision{}, ErrTimedOut
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}
