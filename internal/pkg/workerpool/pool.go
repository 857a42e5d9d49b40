package workerpool

import (
	"sync"

	"go.uber.org/zap"

	"invitegate/internal/pkg/logger"
)

// Pool is a bounded worker pool for asynchronous event handling. When
// every worker is busy, submitted jobs queue up instead of being
// rejected. A panicking job is recovered and logged so one bad handler
// cannot take a worker down with it.
type Pool struct {
	jobs    chan func()
	workers int
	wg      sync.WaitGroup
	quit    chan struct{}
	logger  *logger.Logger
}

// New creates a pool with the given worker count and queue capacity.
func New(workers, queueSize int, log *logger.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		jobs:    make(chan func(), queueSize),
		workers: workers,
		quit:    make(chan struct{}),
		logger:  log,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workers))
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.invoke(id, job)
		case <-p.quit:
			return
		}
	}
}

// invoke runs a single job, recovering a panic so the worker survives.
func (p *Pool) invoke(id int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker recovered from panic",
				zap.Int("worker", id),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	job()
}

// Submit queues a job for execution. If the queue is full this blocks
// until a worker frees a slot; events wait rather than being dropped.
func (p *Pool) Submit(job func()) {
	p.jobs <- job
}

// Stop signals the workers and waits for in-flight jobs to finish.
// Jobs still sitting in the queue are discarded.
func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}
