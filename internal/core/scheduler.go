package core

/*
rxglyph — fast tool in Go for hunting homoglyph lookalike domains
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/time/rate"

	"github.com/x-stp/rxglyph/internal/metrics"
)

// SchedulerConfig sizes a Scheduler.
type SchedulerConfig struct {
	// Name labels log lines and metrics, e.g. "dns" or "whois".
	Name string
	// Workers is the number of worker goroutines, clamped to [1, MaxWorkers].
	Workers int
	// Rate is the initial per-worker rate in items per second. Zero or less means unlimited.
	Rate float64
	// Burst is the limiter burst. Defaults to 1.
	Burst int
	// QueueSize is the per-worker queue capacity. Defaults to MaxShardQueueSize.
	QueueSize int
	// Affinity pins each worker's OS thread to a CPU core where supported.
	Affinity bool
}

// Scheduler runs a fixed pool of workers, each with its own queue and rate limiter, and
// routes WorkItems to them by hashing the item key. Submission never blocks: a full queue is
// reported as ErrQueueFull and the caller decides how to back off.
type Scheduler struct {
	name         string
	numWorkers   int
	workers      []*worker
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex // held for reading while sending, for writing while closing queues
	shutdown     atomic.Bool
	workItemPool sync.Pool
	activeWork   sync.WaitGroup
	workersDone  sync.WaitGroup
	metrics      *metrics.Metrics
}

type worker struct {
	id          int
	cpuAffinity int
	queue       chan *WorkItem
	scheduler   *Scheduler
	limiter     *rate.Limiter

	processed atomic.Int64
	errors    atomic.Int64
	panics    atomic.Int64
}

// WorkerStats is a snapshot of one worker's counters.
type WorkerStats struct {
	ID        int
	Processed int64
	Errors    int64
	Panics    int64
	Queued    int
}

// NewScheduler creates the worker pool and starts its goroutines. The pool stops when
// Shutdown is called; cancelling parentCtx only stops new submissions.
func NewScheduler(parentCtx context.Context, cfg SchedulerConfig) (*Scheduler, error) {
	if parentCtx == nil {
		return nil, fmt.Errorf("scheduler %q: nil context", cfg.Name)
	}
	numWorkers := min(max(cfg.Workers, 1), MaxWorkers)
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = MaxShardQueueSize
	}
	burst := max(cfg.Burst, 1)
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	sctx, cancel := context.WithCancel(parentCtx)
	s := &Scheduler{
		name:       cfg.Name,
		numWorkers: numWorkers,
		workers:    make([]*worker, numWorkers),
		ctx:        sctx,
		cancel:     cancel,
		workItemPool: sync.Pool{
			New: func() interface{} {
				return &WorkItem{}
			},
		},
		metrics: metrics.GetMetrics(),
	}

	cpus := runtime.NumCPU()
	for i := 0; i < numWorkers; i++ {
		w := &worker{
			id:          i,
			cpuAffinity: i % cpus,
			queue:       make(chan *WorkItem, queueSize),
			scheduler:   s,
			limiter:     rate.NewLimiter(limit, burst),
		}
		s.workers[i] = w
		s.metrics.UpdateWorkerRateLimit(s.name, i, float64(limit))
		s.workersDone.Add(1)
		go w.run(cfg.Affinity)
	}

	log.Printf("Scheduler %s initialized with %d workers (CPU affinity: %v).", s.name, numWorkers, cfg.Affinity && affinitySupported)
	return s, nil
}

// run processes the worker's queue until Shutdown closes it. Items still queued at shutdown
// are processed; their callbacks observe their own context.
func (w *worker) run(affinity bool) {
	defer w.scheduler.workersDone.Done()
	if affinity {
		setAffinity(w.id, w.cpuAffinity)
	}
	for item := range w.queue {
		w.process(item)
	}
}

func (w *worker) process(item *WorkItem) {
	s := w.scheduler
	defer func() {
		if r := recover(); r != nil {
			w.panics.Add(1)
			s.metrics.RecordPanic(s.name, w.id)
			log.Printf("Panic recovered in %s worker %d processing %s: %v", s.name, w.id, item.Key, r)
		}
		w.processed.Add(1)
		s.metrics.RecordCompleted(s.name)
		*item = WorkItem{}
		s.workItemPool.Put(item)
		s.activeWork.Done()
	}()

	if err := item.Callback(item); err != nil {
		w.errors.Add(1)
		log.Printf("Error processing %s in %s worker %d: %v", item.Key, s.name, w.id, err)
	}
}

func (s *Scheduler) workerFor(key string) *worker {
	return s.workers[xxh3.HashString(key)%uint64(s.numWorkers)]
}

// Limiter returns the rate limiter of the worker that owns key. Callers Wait on it before
// SubmitWork.
func (s *Scheduler) Limiter(key string) *rate.Limiter {
	return s.workerFor(key).limiter
}

// SetRate retunes every worker limiter to r items per second.
func (s *Scheduler) SetRate(r float64) {
	for _, w := range s.workers {
		w.limiter.SetLimit(rate.Limit(r))
		s.metrics.UpdateWorkerRateLimit(s.name, w.id, r)
	}
}

// SubmitWork queues callback on the worker owning key without blocking. It returns an error
// wrapping ErrQueueFull when that queue is full and ErrWorkerShutdown after Shutdown or
// cancellation of the scheduler context.
func (s *Scheduler) SubmitWork(ctx context.Context, key string, callback WorkCallback) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.shutdown.Load() || s.ctx.Err() != nil {
		return fmt.Errorf("scheduler %s: %w", s.name, ErrWorkerShutdown)
	}
	target := s.workerFor(key)

	item := s.workItemPool.Get().(*WorkItem)
	item.Key = key
	item.Callback = callback
	item.Ctx = ctx
	item.CreatedAt = time.Now()
	item.Attempt = 0
	s.activeWork.Add(1)

	select {
	case target.queue <- item:
		s.metrics.RecordSubmitted(s.name)
		return nil
	default:
		s.activeWork.Done()
		*item = WorkItem{}
		s.workItemPool.Put(item)
		s.metrics.RecordBackpressure(s.name, target.id)
		return fmt.Errorf("worker %d for %s: %w", target.id, key, ErrQueueFull)
	}
}

// Wait blocks until every submitted item has been processed.
func (s *Scheduler) Wait() {
	s.activeWork.Wait()
}

// Shutdown rejects further submissions, lets the workers drain their queues and waits for
// them to exit. It is safe to call more than once.
func (s *Scheduler) Shutdown() {
	if !s.shutdown.CompareAndSwap(false, true) {
		return
	}
	s.cancel()

	s.mu.Lock()
	for _, w := range s.workers {
		close(w.queue)
	}
	s.mu.Unlock()

	s.workersDone.Wait()
}

// NumWorkers returns the size of the pool.
func (s *Scheduler) NumWorkers() int {
	return s.numWorkers
}

// Stats returns a snapshot of every worker's counters.
func (s *Scheduler) Stats() []WorkerStats {
	out := make([]WorkerStats, len(s.workers))
	for i, w := range s.workers {
		out[i] = WorkerStats{
			ID:        w.id,
			Processed: w.processed.Load(),
			Errors:    w.errors.Load(),
			Panics:    w.panics.Load(),
			Queued:    len(w.queue),
		}
	}
	return out
}
