package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/mandelsoft/logging"
	"k8s.io/client-go/util/workqueue"
)

var REALM = logging.DefineRealm("vergraph/pool", "worker pool for asynchronous tasks")

// Task is a unit of work executed by a pool worker.
type Task func()

// Pool executes tasks on a fixed number of workers fed
// by a workqueue. Tasks may be added before the pool is started.
type Pool struct {
	logging.UnboundLogger
	name string
	size int
	lctx logging.AttributionContext

	lock    sync.Mutex
	seq     uint64
	tasks   map[uint64]Task
	closed  bool
	started bool

	pending int
	idle    *sync.Cond

	workqueue workqueue.RateLimitingInterface
	workers   sync.WaitGroup
}

func NewPool(lctx logging.Context, name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	actx := lctx.AttributionContext().WithContext(REALM, logging.NewAttribute("pool", name))
	p := &Pool{
		UnboundLogger: logging.DynamicLogger(actx),
		name:          name,
		size:          size,
		lctx:          actx,
		tasks:         map[uint64]Task{},
		workqueue: workqueue.NewRateLimitingQueueWithConfig(workqueue.DefaultControllerRateLimiter(), workqueue.RateLimitingQueueConfig{
			Name: name,
		}),
	}
	p.idle = sync.NewCond(&p.lock)
	p.Info("created pool {{name}}", "name", name, "size", size)
	return p
}

// Len reports the number of queued tasks.
func (p *Pool) Len() int {
	return p.workqueue.Len()
}

// Start starts the workers. The pool is shut down
// when the given context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.started || p.closed {
		return
	}
	p.started = true
	p.Info("starting worker pool {{name}}", "name", p.name, "workers", p.size)
	for i := 0; i < p.size; i++ {
		p.workers.Add(1)
		w := newWorker(p, i)
		go func() {
			defer p.workers.Done()
			w.Run()
		}()
	}
	go func() {
		<-ctx.Done()
		p.Shutdown()
	}()
}

// Execute enqueues a task. Tasks added after shutdown are dropped.
func (p *Pool) Execute(f func()) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.closed {
		p.Warn("pool {{name}} is shut down, dropping task", "name", p.name)
		return
	}
	p.seq++
	p.tasks[p.seq] = f
	p.pending++
	p.workqueue.Add(p.seq)
}

// Wait blocks until all tasks enqueued so far have been executed.
func (p *Pool) Wait() {
	p.lock.Lock()
	defer p.lock.Unlock()
	for p.pending > 0 {
		p.idle.Wait()
	}
}

func (p *Pool) done(n int) {
	p.pending -= n
	if p.pending <= 0 {
		p.idle.Broadcast()
	}
}

// Shutdown stops the workers after the queued tasks have been processed.
func (p *Pool) Shutdown() {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return
	}
	p.closed = true
	started := p.started
	p.lock.Unlock()

	if started {
		p.Info("waiting for pool workers to shutdown", "name", p.name)
		p.workqueue.ShutDownWithDrain()
		p.workers.Wait()
	} else {
		p.workqueue.ShutDown()
	}
	p.discard()
}

// discard drops tasks which never got a chance to run.
func (p *Pool) discard() {
	p.lock.Lock()
	defer p.lock.Unlock()
	n := len(p.tasks)
	clear(p.tasks)
	p.done(n)
}

func (p *Pool) take(obj interface{}) (Task, error) {
	id, ok := obj.(uint64)
	if !ok {
		return nil, fmt.Errorf("expected task id in workqueue but got %#v", obj)
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	t := p.tasks[id]
	if t == nil {
		return nil, fmt.Errorf("unknown task %d", id)
	}
	delete(p.tasks, id)
	return t, nil
}

func (p *Pool) finished() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.done(1)
}
