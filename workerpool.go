package quartz

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// WorkerPool runs submitted work items on a bounded set of goroutines,
// built on golang.org/x/sync's weighted semaphore.
type WorkerPool interface {
	// Submit blocks until a worker slot is free, then runs fn on a new
	// goroutine. It returns immediately once the goroutine is launched.
	Submit(fn func())

	// Available reports how many worker slots are currently free; the
	// scheduler loop bounds its acquisition batch by this count.
	Available() int

	// Shutdown waits for all in-flight work items to finish if wait is
	// true; otherwise it returns immediately, letting in-flight work
	// items run to completion in the background.
	Shutdown(wait bool)
}

type semaphoreWorkerPool struct {
	size   int
	sem    *semaphore.Weighted
	inUse  int32
	wg     sync.WaitGroup
}

// NewWorkerPool constructs a pool with the given number of worker
// slots (configured via threadPool.threadCount).
func NewWorkerPool(size int) WorkerPool {
	if size <= 0 {
		size = 1
	}

	return &semaphoreWorkerPool{
		size: size,
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

func (p *semaphoreWorkerPool) Submit(fn func()) {
	_ = p.sem.Acquire(context.Background(), 1)

	atomic.AddInt32(&p.inUse, 1)

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer atomic.AddInt32(&p.inUse, -1)

		fn()
	}()
}

func (p *semaphoreWorkerPool) Available() int {
	return p.size - int(atomic.LoadInt32(&p.inUse))
}

func (p *semaphoreWorkerPool) Shutdown(wait bool) {
	if wait {
		p.wg.Wait()
	}
}
