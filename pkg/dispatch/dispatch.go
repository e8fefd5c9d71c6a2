// Package dispatch fans origin nodes out over a fixed pool of workers.
//
// Each worker is created once by a WorkerFactory and owns its own trees and
// scratch memory for the whole batch. Workers write results into shared
// structures that are partitioned by origin, so no cell is written twice.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"access_router/pkg/metrics"
)

// ErrInvalidThreads is returned for a thread count below one.
var ErrInvalidThreads = errors.New("dispatch: thread count must be at least 1")

// Worker processes one origin at a time. A Worker is used by a single
// goroutine only.
type Worker interface {
	Process(origin int32) error
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(origin int32) error

func (f WorkerFunc) Process(origin int32) error { return f(origin) }

// WorkerFactory creates the worker for goroutine id. It is called exactly
// once per goroutine, before the first origin is popped.
type WorkerFactory func(id int) (Worker, error)

// Stats summarises a finished batch.
type Stats struct {
	Origins   int           // origins processed successfully
	PerWorker []int         // origins processed by each worker
	Elapsed   time.Duration // wall time including worker setup
}

type options struct {
	metrics *metrics.Dispatch
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*options)

// WithMetrics records batch progress in m.
func WithMetrics(m *metrics.Dispatch) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger overrides slog.Default for batch progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run processes every origin exactly once on threads goroutines and blocks
// until all of them have returned.
//
// When a worker fails or panics the queue is closed, the remaining workers
// finish their current origin, and the first error is returned once all
// goroutines have joined. Cancelling ctx likewise only stops new origins
// from being taken. Results must not be trusted when err != nil.
func Run(ctx context.Context, threads int, origins []int32, newWorker WorkerFactory, opts ...Option) (Stats, error) {
	if threads < 1 {
		return Stats{}, fmt.Errorf("%w: got %d", ErrInvalidThreads, threads)
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	q := NewOriginQueue(origins)
	perWorker := make([]int, threads)

	o.logger.Debug("dispatch started", "origins", len(origins), "threads", threads)

	var g errgroup.Group
	for id := range threads {
		g.Go(func() error {
			if o.metrics != nil {
				o.metrics.ActiveWorkers.Inc()
				defer o.metrics.ActiveWorkers.Dec()
			}
			err := drain(ctx, q, id, newWorker, &perWorker[id], o.metrics)
			if err != nil {
				q.Close()
				if o.metrics != nil {
					o.metrics.WorkerFailures.Inc()
				}
			}
			return err
		})
	}
	err := g.Wait()

	stats := Stats{PerWorker: perWorker, Elapsed: time.Since(start)}
	for _, n := range perWorker {
		stats.Origins += n
	}
	if o.metrics != nil {
		o.metrics.BatchDuration.Observe(stats.Elapsed.Seconds())
	}
	if err == nil && stats.Origins < len(origins) {
		// Only cancellation leaves origins behind without a worker error.
		err = ctx.Err()
	}
	if err != nil {
		o.logger.Warn("dispatch failed", "processed", stats.Origins, "origins", len(origins), "error", err)
		return stats, err
	}
	o.logger.Debug("dispatch finished", "origins", stats.Origins, "elapsed", stats.Elapsed)
	return stats, nil
}

func drain(ctx context.Context, q *OriginQueue, id int, newWorker WorkerFactory, count *int, m *metrics.Dispatch) error {
	w, err := newWorker(id)
	if err != nil {
		return fmt.Errorf("dispatch: create worker %d: %w", id, err)
	}
	for ctx.Err() == nil {
		origin, ok := q.Pop()
		if !ok {
			return nil
		}
		began := time.Now()
		if err := process(w, id, origin); err != nil {
			if m != nil {
				m.OriginsProcessed.WithLabelValues("error").Inc()
			}
			return err
		}
		*count++
		if m != nil {
			m.OriginsProcessed.WithLabelValues("ok").Inc()
			m.OriginDuration.Observe(time.Since(began).Seconds())
		}
	}
	return nil
}

// process runs one origin and turns a panic into an error so that the
// batch fails instead of the program.
func process(w Worker, id int, origin int32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: worker %d panicked on origin %d: %v", id, origin, r)
		}
	}()
	if err := w.Process(origin); err != nil {
		return fmt.Errorf("dispatch: origin %d: %w", origin, err)
	}
	return nil
}

// OriginQueue hands out origins to concurrent workers through an atomic
// cursor. Each origin is popped at most once.
type OriginQueue struct {
	origins []int32
	next    atomic.Int64
	closed  atomic.Bool
}

func NewOriginQueue(origins []int32) *OriginQueue {
	return &OriginQueue{origins: origins}
}

// Pop returns the next origin, or false once the queue is drained or closed.
func (q *OriginQueue) Pop() (int32, bool) {
	if q.closed.Load() {
		return 0, false
	}
	i := q.next.Add(1) - 1
	if i >= int64(len(q.origins)) {
		return 0, false
	}
	return q.origins[i], true
}

// Close stops further pops.
func (q *OriginQueue) Close() { q.closed.Store(true) }

// Remaining returns how many origins have not been popped yet.
func (q *OriginQueue) Remaining() int {
	if q.closed.Load() {
		return 0
	}
	return max(0, len(q.origins)-int(q.next.Load()))
}
