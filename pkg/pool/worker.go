package pool

import (
	"fmt"
	"strconv"

	"github.com/mandelsoft/logging"
)

// worker is a single goroutine draining the pool's workqueue.
type worker struct {
	logging.UnboundLogger
	pool *Pool
}

func newWorker(p *Pool, number int) *worker {
	lgr := logging.DynamicLogger(p.lctx,
		logging.NewName(fmt.Sprintf("worker %d", number)),
		logging.NewAttribute("worker", strconv.Itoa(number)),
	)
	return &worker{
		UnboundLogger: lgr,
		pool:          p,
	}
}

func (w *worker) Run() {
	w.Debug("starting worker")
	for w.processNextWorkItem() {
	}
	w.Debug("exit worker")
}

func (w *worker) processNextWorkItem() bool {
	obj, shutdown := w.pool.workqueue.Get()
	if shutdown {
		return false
	}
	defer w.pool.workqueue.Done(obj)

	task, err := w.pool.take(obj)
	w.pool.workqueue.Forget(obj)
	if err != nil {
		w.LogError(err, "internal error")
		return true
	}
	defer w.pool.finished()
	w.Debug("executing task {{task}}", "task", obj)
	w.execute(task)
	return true
}

func (w *worker) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			w.Error("task panicked: {{panic}}", "panic", fmt.Sprint(r))
		}
	}()
	task()
}
