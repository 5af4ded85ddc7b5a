package message

import (
	"sync"
)

// Executor runs dispatch work off the reader goroutine.
type Executor interface {
	Submit(task func())
}

// GoExecutor runs every task on its own goroutine. It is the default executor.
type GoExecutor struct{}

func (GoExecutor) Submit(task func()) {
	go task()
}

// WorkerPool runs tasks on a fixed number of goroutines.
//
// Submit blocks while the backlog is full. Tasks submitted after Close are dropped.
type WorkerPool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool starts workers goroutines sharing a backlog of queueSize tasks.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &WorkerPool{tasks: make(chan func(), queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}

	return p
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

func (p *WorkerPool) Submit(task func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	p.tasks <- task
}

// Close stops accepting tasks and waits for the queued ones to finish.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
