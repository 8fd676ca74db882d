// Package browserpool serializes access to a single headless browser engine.
//
// Launching chromium is expensive and portal sessions cannot share a page, so
// every piece of page-level work in the process goes through one Pool. Tasks
// run strictly in submission order. The engine is launched lazily when the
// first task arrives and closed again once the queue drains, trading a little
// startup latency for not keeping an idle chromium around.
package browserpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/browserpool")

// relaunchBound is the number of retries granted to the head task after an
// engine fault (each on a freshly relaunched engine) before the pool gives
// up and fails everything still queued.
const relaunchBound = 3

var (
	ErrShutdown = fmt.Errorf("browser pool is shutting down")
	ErrClosed   = fmt.Errorf("browser pool is closed")
)

// FatalError is returned to every queued task when the engine keeps faulting
// past the relaunch bound. Callers should treat it as an infrastructure
// outage rather than a bad request.
type FatalError struct {
	Err error
}

func (e FatalError) Error() string {
	return fmt.Sprintf("browser engine is unrecoverable: %v", e.Err)
}

func (e FatalError) Unwrap() error { return e.Err }

// EngineFault marks an error as an infrastructure-level engine failure.
// The pool relaunches the engine on these; any other task error only fails
// that one task.
type EngineFault struct {
	Err error
}

func (e EngineFault) Error() string {
	return fmt.Sprintf("engine fault: %v", e.Err)
}

func (e EngineFault) Unwrap() error { return e.Err }

// Task is a unit of page-level work. It owns the engine exclusively for its
// whole duration.
type Task func(ctx context.Context, eng Engine) error

type pending struct {
	ctx  context.Context
	task Task
	done chan error
	once sync.Once
}

// deliver resolves the task's future exactly once. A task can be rejected
// by a force Close while it is also being completed by the drain loop.
func (p *pending) deliver(err error) {
	p.once.Do(func() {
		p.done <- err
	})
}

// LaunchFunc produces a live engine. Swapped for a fake in tests.
type LaunchFunc func(ctx context.Context) (Engine, error)

type Options struct {
	// Launch defaults to launching a headless chromium through rod.
	Launch LaunchFunc
}

type Pool struct {
	launch LaunchFunc

	mu       sync.Mutex
	queue    []*pending
	engine   Engine
	draining bool
	closed   bool
	idle     chan struct{}
}

func New(opts Options) *Pool {
	launch := opts.Launch
	if launch == nil {
		launch = launchChromium
	}
	p := &Pool{
		launch: launch,
		idle:   make(chan struct{}),
	}
	close(p.idle)
	return p
}

// Submit enqueues a task and returns a channel that resolves with its
// outcome. Execution order is submission order.
func (p *Pool) Submit(ctx context.Context, task Task) <-chan error {
	entry := &pending{
		ctx:  ctx,
		task: task,
		done: make(chan error, 1),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		entry.deliver(ErrClosed)
		return entry.done
	}
	p.queue = append(p.queue, entry)
	if !p.draining {
		p.draining = true
		p.idle = make(chan struct{})
		go p.drain()
	}
	p.mu.Unlock()

	return entry.done
}

// Do submits a task and blocks until it has run. There is no mid-task
// cancellation: once a task reaches the head of the queue it runs to
// completion, so Do keeps waiting even if ctx expires while queued.
func (p *Pool) Do(ctx context.Context, task Task) error {
	return <-p.Submit(ctx, task)
}

// drain executes queued tasks one at a time. It is an explicit loop with a
// relaunch accumulator: an engine fault closes the engine and retries the
// same head task on a fresh one, up to relaunchBound relaunches in a row.
func (p *Pool) drain() {
	relaunches := 0

	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			eng := p.engine
			p.engine = nil
			p.draining = false
			close(p.idle)
			p.mu.Unlock()

			if eng != nil {
				if err := eng.Close(); err != nil {
					slog.Warn("failed to close browser engine", "err", err)
				}
			}
			return
		}
		head := p.queue[0]
		p.mu.Unlock()

		eng, err := p.ensureEngine(head.ctx)
		if err != nil {
			relaunches++
			slog.ErrorContext(head.ctx, "failed to launch browser engine", "err", err, "attempt", relaunches)
			if relaunches > relaunchBound {
				p.failAll(FatalError{Err: err})
				return
			}
			continue
		}

		err = p.runTask(head, eng)
		if err == nil || !IsEngineFault(err) {
			p.pop(head, err)
			relaunches = 0
			continue
		}

		// engine fault: tear the engine down and retry the same task
		relaunches++
		slog.ErrorContext(head.ctx, "browser engine fault", "err", err, "relaunch", relaunches)
		p.closeEngine()
		if relaunches > relaunchBound {
			p.failAll(FatalError{Err: err})
			return
		}
	}
}

func (p *Pool) runTask(entry *pending, eng Engine) (err error) {
	ctx, span := tracer.Start(entry.ctx, "browserpool:task")
	defer span.End()

	defer func() {
		// a panicking task fails like any other bad task: the engine is
		// presumed healthy and the queue keeps draining
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return entry.task(ctx, eng)
}

func (p *Pool) ensureEngine(ctx context.Context) (Engine, error) {
	p.mu.Lock()
	eng := p.engine
	p.mu.Unlock()
	if eng != nil {
		return eng, nil
	}

	eng, err := p.launch(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.engine = eng
	p.mu.Unlock()
	return eng, nil
}

func (p *Pool) closeEngine() {
	p.mu.Lock()
	eng := p.engine
	p.engine = nil
	p.mu.Unlock()

	if eng != nil {
		if err := eng.Close(); err != nil {
			slog.Warn("failed to close faulted browser engine", "err", err)
		}
	}
}

func (p *Pool) pop(entry *pending, result error) {
	p.mu.Lock()
	if len(p.queue) > 0 && p.queue[0] == entry {
		p.queue = p.queue[1:]
	}
	p.mu.Unlock()
	entry.deliver(result)
}

// failAll rejects the head and everything queued behind it, then parks the
// pool. A later Submit starts a fresh drain with a fresh engine.
func (p *Pool) failAll(fatal error) {
	p.mu.Lock()
	rejected := p.queue
	p.queue = nil
	p.draining = false
	close(p.idle)
	p.mu.Unlock()

	p.closeEngine()
	for _, entry := range rejected {
		entry.deliver(fatal)
	}
}

// Close shuts the pool down. With force, queued tasks are rejected
// immediately with ErrShutdown; otherwise Close waits for the queue to
// drain first. Either way the engine is closed and later submissions fail
// with ErrClosed.
func (p *Pool) Close(force bool) error {
	p.mu.Lock()
	p.closed = true
	var rejected []*pending
	if force {
		rejected = p.queue
		p.queue = nil
	}
	idle := p.idle
	p.mu.Unlock()

	for _, entry := range rejected {
		entry.deliver(ErrShutdown)
	}

	if !force {
		<-idle
	}

	p.closeEngine()
	return nil
}

// IsEngineFault reports whether err carries the engine-fault discriminant.
func IsEngineFault(err error) bool {
	var fault EngineFault
	return errors.As(err, &fault)
}
