package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/1broseidon/hallmonitor/internal/logging"
)

// workerPool is a bounded pool of goroutines draining a queue of task
// closures. It backs both the scheduler's own job submissions and
// check-all's internally bounded fan-out (spec.md section 6).
type workerPool struct {
	size          int
	queue         chan func(ctx context.Context)
	logger        *logging.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	activeWorkers int32
	processedJobs int64
}

// newWorkerPool creates a pool of size workers with a 2x-buffered queue.
// A size <= 0 falls back to 32, the default named in spec.md section 4.7.
func newWorkerPool(size int, logger *logging.Logger) *workerPool {
	if size <= 0 {
		size = 32
	}
	return &workerPool{
		size:   size,
		queue:  make(chan func(ctx context.Context), size*2),
		logger: logger,
	}
}

func (wp *workerPool) Start(ctx context.Context) {
	wp.ctx, wp.cancel = context.WithCancel(ctx)
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.run(wp.ctx)
	}
}

// Stop cancels in-flight work's context and waits for all workers to
// drain. Callers enforce the 30s shutdown budget from spec.md section 5.
func (wp *workerPool) Stop() {
	wp.cancel()
	close(wp.queue)
	wp.wg.Wait()
}

// Submit enqueues task, returning false without blocking if the queue is
// full (the caller's job is simply skipped for this tick).
func (wp *workerPool) Submit(task func(ctx context.Context)) bool {
	select {
	case wp.queue <- task:
		return true
	default:
		return false
	}
}

func (wp *workerPool) ActiveWorkers() int { return int(atomic.LoadInt32(&wp.activeWorkers)) }
func (wp *workerPool) ProcessedJobs() int64 { return atomic.LoadInt64(&wp.processedJobs) }

func (wp *workerPool) run(ctx context.Context) {
	defer wp.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-wp.queue:
			if !ok {
				return
			}
			wp.runTask(ctx, task)
		}
	}
}

func (wp *workerPool) runTask(ctx context.Context, task func(ctx context.Context)) {
	atomic.AddInt32(&wp.activeWorkers, 1)
	defer atomic.AddInt32(&wp.activeWorkers, -1)
	defer atomic.AddInt64(&wp.processedJobs, 1)

	defer func() {
		if r := recover(); r != nil && wp.logger != nil {
			wp.logger.WithComponent(logging.ComponentScheduler).
				WithFields(map[string]interface{}{"panic": r}).
				Error("scheduler worker panic recovered")
		}
	}()

	task(ctx)
}
