package kitsu

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Task represents a unit of work
type Task func(ctx context.Context) error

// WorkerPool manages concurrent processing
type WorkerPool struct {
	workerCount int
	taskQueue   chan Task
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	closed      bool
	closeMux    sync.Mutex
	log         zerolog.Logger
}

// NewWorkerPool creates a pool with specified number of workers, stopped
// when parent is cancelled
func NewWorkerPool(parent context.Context, workerCount int, logger zerolog.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(parent)
	return &WorkerPool{
		workerCount: workerCount,
		taskQueue:   make(chan Task, workerCount*2),
		ctx:         ctx,
		cancel:      cancel,
		log:         logger,
	}
}

// Start launches worker goroutines
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Debug().Int("workers", wp.workerCount).Msg("Worker pool started")
}

// Submit adds a task to the queue. It reports false if the pool is shutting down.
func (wp *WorkerPool) Submit(task Task) bool {
	select {
	case wp.taskQueue <- task:
		return true
	case <-wp.ctx.Done():
		wp.log.Debug().Msg("Pool is shutting down, task rejected")
		return false
	}
}

// Wait blocks until all queued tasks complete, or until the parent context
// is cancelled, in which case queued tasks may be dropped
func (wp *WorkerPool) Wait() {
	wp.closeMux.Lock()
	if !wp.closed {
		close(wp.taskQueue)
		wp.closed = true
	}
	wp.closeMux.Unlock()

	wp.wg.Wait()
	wp.cancel()
}

// worker processes tasks from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case task, ok := <-wp.taskQueue:
			if !ok {
				return
			}

			if err := task(wp.ctx); err != nil {
				wp.log.Warn().Err(err).Int("worker", id).Msg("Task failed")
			}

		case <-wp.ctx.Done():
			return
		}
	}
}
