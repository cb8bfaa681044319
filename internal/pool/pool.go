// Package pool provides the fixed-size worker pool the difference engine
// fans work out to. The pool is an explicit handle owned by the caller, not
// process-global state, so components with different parallelism settings
// coexist in one process.
package pool

import (
	"runtime"
	"sync"
)

// Pool runs data-parallel fork-join batches on a fixed set of long-lived
// workers.
type Pool struct {
	size      int
	tasks     chan func()
	workers   sync.WaitGroup
	closeOnce sync.Once
}

// New starts a pool with the given number of workers. A size of zero (or
// less) selects the number of logical CPUs.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		size:  size,
		tasks: make(chan func()),
	}
	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.workers.Done()
	for task := range p.tasks {
		task()
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Map runs fn(i) for every i in [0, n) across the pool and returns once all
// invocations have finished. Multiple goroutines may call Map concurrently;
// fn must not call back into Map on the same pool.
func (p *Pool) Map(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	var done sync.WaitGroup
	done.Add(n)
	for i := 0; i < n; i++ {
		i := i
		p.tasks <- func() {
			defer done.Done()
			fn(i)
		}
	}
	done.Wait()
}

// Close stops the workers once in-flight tasks finish. The pool must not be
// used after Close. Close is idempotent.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.workers.Wait()
}
