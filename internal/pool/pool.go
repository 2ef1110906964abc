// Package pool provides the fixed-size worker machinery behind parallel
// point and range search.
//
// ThreadPool is a generic fixed-size pool draining an unbounded FIFO
// task queue. WorkerPool composes a ThreadPool and adds the fan-out
// idiom: Launch submits the same task once per worker, tasks may
// re-submit themselves to claim further units of work, and WaitAll
// blocks on the transitive closure of all submissions — not just the
// initial fan-out.
//
// Cancellation is cooperative: tasks observe shared state to decide to
// stop early; there is no forced abort.
package pool

import "sync"

// ThreadPool is a fixed set of workers draining a FIFO task queue.
//
// The queue is unbounded, so a running task may enqueue more work
// without risk of deadlock. Close stops the pool after the queue has
// drained and joins every worker.
type ThreadPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	stopped bool
	workers sync.WaitGroup
	size    int
}

// NewThreadPool starts a pool of size workers.
func NewThreadPool(size int) *ThreadPool {
	if size < 1 {
		size = 1
	}
	p := &ThreadPool{size: size}
	p.cond = sync.NewCond(&p.mu)
	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// Size returns the number of workers in the pool.
func (p *ThreadPool) Size() int {
	return p.size
}

// Enqueue appends task to the queue. Once a task is enqueued it runs to
// completion exactly once. Enqueueing on a closed pool is a caller bug.
func (p *ThreadPool) Enqueue(task func()) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		panic("pool: enqueue on closed ThreadPool")
	}
	p.tasks = append(p.tasks, task)
	p.mu.Unlock()
	p.cond.Signal()
}

// Close signals workers to stop once the queue is drained and joins
// them. Close must not be called twice.
func (p *ThreadPool) Close() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.workers.Wait()
}

func (p *ThreadPool) worker() {
	defer p.workers.Done()
	for {
		p.mu.Lock()
		for !p.stopped && len(p.tasks) == 0 {
			p.cond.Wait()
		}
		if p.stopped && len(p.tasks) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.tasks[0]
		p.tasks = p.tasks[1:]
		p.mu.Unlock()
		task()
	}
}

// WorkerPool owns a ThreadPool and exposes the fan-out idiom used by
// parallel search.
type WorkerPool struct {
	pool    *ThreadPool
	pending sync.WaitGroup
}

// NewWorkerPool starts a worker pool of the given size.
func NewWorkerPool(size int) *WorkerPool {
	return &WorkerPool{pool: NewThreadPool(size)}
}

// Size returns the number of workers.
func (w *WorkerPool) Size() int {
	return w.pool.Size()
}

// Submit enqueues a single task. Tasks may call Submit on their own
// pool to re-queue themselves; WaitAll accounts for such re-submissions.
func (w *WorkerPool) Submit(task func()) {
	w.pending.Add(1)
	w.pool.Enqueue(func() {
		defer w.pending.Done()
		task()
	})
}

// Launch submits the same task once per worker.
func (w *WorkerPool) Launch(task func()) {
	for i := 0; i < w.pool.Size(); i++ {
		w.Submit(task)
	}
}

// WaitAll blocks until every submitted task — including tasks
// re-submitted from inside running tasks — has completed.
func (w *WorkerPool) WaitAll() {
	w.pending.Wait()
}

// Close shuts the underlying pool down after draining its queue.
func (w *WorkerPool) Close() {
	w.pool.Close()
}
