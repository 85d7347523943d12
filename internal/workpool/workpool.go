// Package workpool implements a fixed-then-growable pool of OS
// threads: each worker pulls a job off a blocking queue, runs a
// handler, and reports the outcome through a callback that never
// panics the worker. The mutex+condition-variable shape is grounded
// on blobWriter's own `descNotify *sync.Cond` in blobwriter.go,
// generalized from a single-writer wait to a multi-worker dispatch
// queue.
package workpool

import (
	"sync"
)

// Job is one unit of work: an opaque payload plus the callback invoked
// once a worker has run it.
type Job struct {
	ID       int64
	Payload  any
	Callback func(result any, err error)
}

// Pool runs handler against each enqueued Job's Payload on one of its
// worker goroutines, growing up to max on request and draining on
// Stop.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Job
	handler func(payload any) (any, error)

	workers int
	max     int
	started bool
	closed  bool
	nextID  int64

	wg sync.WaitGroup
}

// New returns a pool bounded to max concurrent workers. Call Start to
// bring it up.
func New(max int) *Pool {
	p := &Pool{max: max}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start brings the pool up with initialN workers running handler.
// Idempotent: a second call is a no-op.
func (p *Pool) Start(initialN int, handler func(payload any) (any, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true
	p.handler = handler
	p.growToLocked(initialN)
}

// GrowTo increases the worker count up to max; shrinking is never
// performed.
func (p *Pool) GrowTo(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.growToLocked(n)
}

func (p *Pool) growToLocked(n int) {
	if n > p.max {
		n = p.max
	}
	for p.workers < n {
		p.workers++
		p.wg.Add(1)
		go p.runWorker()
	}
}

// Enqueue pushes payload with its completion callback and returns an
// opaque job id.
func (p *Pool) Enqueue(payload any, callback func(result any, err error)) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.queue = append(p.queue, Job{ID: id, Payload: payload, Callback: callback})
	p.cond.Signal()
	return id
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		result, err := p.invoke(job)

		// Callback exceptions must never propagate out of the worker
		//: a panicking callback is recorded, not fatal.
		func() {
			defer func() {
				if r := recover(); r != nil {
					_ = r
				}
			}()
			job.Callback(result, err)
		}()
	}
}

// invoke runs handler, translating a panic into a job failure instead
// of killing the worker.
func (p *Pool) invoke(job Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{r}
		}
	}()
	return p.handler(job.Payload)
}

type panicError struct{ v any }

func (e panicError) Error() string { return "workpool: handler panic" }

// Stop drains the queue by signalling all workers and joining them.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers reports the current worker count.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}
