package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type fileJob struct {
	path  string
	index int
}

// workerPool runs process over submitted jobs on a fixed set of
// goroutines. Results are delivered on a single channel that closes once
// every worker has exited.
//
// Usage:
//
//	pool := newWorkerPool(n, process, logger)
//	pool.start(ctx)
//	go func() {
//	    for i, f := range files {
//	        if pool.submit(ctx, fileJob{path: f, index: i}) != nil {
//	            break
//	        }
//	    }
//	    pool.finishSubmitting()
//	}()
//	for r := range pool.results() { ... }
type workerPool struct {
	numWorkers int
	jobs       chan fileJob
	out        chan FileReport
	process    func(context.Context, fileJob) FileReport
	wg         sync.WaitGroup
	logger     *slog.Logger

	started    atomic.Bool
	jobsClosed atomic.Bool

	submitted atomic.Int64
	processed atomic.Int64
}

func newWorkerPool(numWorkers int, process func(context.Context, fileJob) FileReport, logger *slog.Logger) *workerPool {
	return &workerPool{
		numWorkers: numWorkers,
		jobs:       make(chan fileJob, numWorkers*2),
		out:        make(chan FileReport, numWorkers),
		process:    process,
		logger:     logger,
	}
}

func (wp *workerPool) start(ctx context.Context) {
	if !wp.started.CompareAndSwap(false, true) {
		return
	}
	wp.logger.Debug("starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	go func() {
		wp.wg.Wait()
		close(wp.out)
		wp.logger.Debug("worker pool drained",
			"jobs_submitted", wp.submitted.Load(),
			"jobs_processed", wp.processed.Load())
	}()
}

func (wp *workerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			wp.logger.Debug("worker cancelled", "worker_id", id)
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			report := wp.process(ctx, job)
			wp.processed.Add(1)

			select {
			case wp.out <- report:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (wp *workerPool) submit(ctx context.Context, job fileJob) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("worker pool cancelled: %w", ctx.Err())
	case wp.jobs <- job:
		wp.submitted.Add(1)
		return nil
	}
}

// finishSubmitting is idempotent.
func (wp *workerPool) finishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
	}
}

func (wp *workerPool) results() <-chan FileReport {
	return wp.out
}
