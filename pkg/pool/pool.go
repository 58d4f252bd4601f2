// Package pool runs tasks on a fixed set of worker goroutines sharing one
// FIFO queue. Tasks may enqueue further tasks; WaitAll returns only once the
// queue is empty and no task is running, so work spawned by a running task is
// always waited for.
package pool

import (
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

var ErrClosed = errors.New("pool is closed")

type Task func()

// Observer is notified about the life cycle of every task. Calls for a queued
// task happen under the pool lock and must not call back into the pool.
type Observer interface {
	TaskQueued()
	TaskStarted()
	TaskFinished(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) TaskQueued()                {}
func (nopObserver) TaskStarted()               {}
func (nopObserver) TaskFinished(time.Duration) {}

type Option func(*Pool)

func WithObserver(o Observer) Option {
	return func(p *Pool) { p.obs = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

type Pool struct {
	mu      sync.Mutex
	work    *sync.Cond // signalled when a task is queued or the pool closes
	idle    *sync.Cond // signalled when a task finishes or the pool closes
	queue   []Task
	busy    int
	running bool

	size   int
	wg     sync.WaitGroup
	obs    Observer
	logger *slog.Logger
}

// New starts a pool of n workers. n is clamped to at least 1.
func New(n int, opts ...Option) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{running: true, size: n, obs: nopObserver{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) Size() int { return p.size }

func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.running
}

// Execute queues t and wakes one worker. It is safe to call from a running
// task.
func (p *Pool) Execute(t Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrClosed
	}
	p.queue = append(p.queue, t)
	p.obs.TaskQueued()
	p.work.Signal()
	return nil
}

// WaitAll blocks until the queue is empty and no task is in flight, or until
// the pool is closed.
func (p *Pool) WaitAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.running && (len(p.queue) > 0 || p.busy > 0) {
		p.idle.Wait()
	}
}

// Close stops the workers without draining the queue. Tasks already running
// are finished; queued ones are dropped and their number is returned. Close
// must not be called from a task.
func (p *Pool) Close() int {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return 0
	}
	p.running = false
	abandoned := len(p.queue)
	p.queue = nil
	p.work.Broadcast()
	p.idle.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	if abandoned > 0 {
		p.logger.Warn("pool closed with pending tasks", "abandoned", abandoned)
	}
	return abandoned
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.running && len(p.queue) == 0 {
			p.work.Wait()
		}
		if !p.running {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.busy++
		p.mu.Unlock()

		p.run(t)

		p.mu.Lock()
		p.busy--
		p.idle.Broadcast()
		p.mu.Unlock()
	}
}

func (p *Pool) run(t Task) {
	start := time.Now()
	p.obs.TaskStarted()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
		p.obs.TaskFinished(time.Since(start))
	}()
	t()
}
