package scheduler

import (
	"errors"
	"sync"

	"github.com/mandelsoft/logging"

	"github.com/mandelsoft/vergraph/pkg/future"
)

var REALM = logging.DefineRealm("vergraph/scheduler", "join scheduler")

var log = logging.DynamicLogger(logging.DefaultContext(), REALM)

// ErrNoConditions is returned for a registration without conditions.
// Such a registration could never fire.
var ErrNoConditions = errors.New("no conditions given")

// Condition is the name of an asynchronous completion event.
type Condition string

// Executor runs released callbacks.
type Executor interface {
	Execute(f func())
}

type ExecutorFunc func(f func())

func (e ExecutorFunc) Execute(f func()) {
	e(f)
}

// GoExecutor runs every callback on its own goroutine.
var GoExecutor = ExecutorFunc(func(f func()) { go f() })

type registration struct {
	count    int
	callback func()
}

// Scheduler is a one-shot countdown join over named conditions.
// A registered callback is released once every condition it has
// been registered for has been notified.
type Scheduler struct {
	lock     sync.Mutex
	executor Executor
	pending  map[Condition][]*registration
}

func New(exec ...Executor) *Scheduler {
	var e Executor = GoExecutor
	if len(exec) > 0 && exec[0] != nil {
		e = exec[0]
	}
	return &Scheduler{
		executor: e,
		pending:  map[Condition][]*registration{},
	}
}

// Register adds a callback waiting for all given conditions.
// The required count is the number of listed conditions, a condition
// listed twice is consumed twice by a single notification.
func (s *Scheduler) Register(conds []Condition, cb func()) error {
	if len(conds) == 0 {
		return ErrNoConditions
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	reg := &registration{count: len(conds), callback: cb}
	for _, c := range conds {
		s.pending[c] = append(s.pending[c], reg)
	}
	log.Trace("registered join for {{conditions}}", "conditions", conds)
	return nil
}

// Notify signals a condition. Released callbacks are handed to the
// executor, never called inline. All registrations for the condition
// are removed afterwards.
func (s *Scheduler) Notify(cond Condition) {
	var fire []func()

	s.lock.Lock()
	regs := s.pending[cond]
	delete(s.pending, cond)
	for i := len(regs) - 1; i >= 0; i-- {
		r := regs[i]
		r.count--
		if r.count == 0 {
			fire = append(fire, r.callback)
		}
	}
	s.lock.Unlock()

	log.Trace("notified {{condition}}", "condition", cond, "released", len(fire))
	for _, f := range fire {
		s.executor.Execute(f)
	}
}

// Pending returns the number of registrations waiting for a condition.
func (s *Scheduler) Pending(cond Condition) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.pending[cond])
}

// Join returns a future resolved once all given conditions are notified.
func (s *Scheduler) Join(conds ...Condition) (future.Future[struct{}], error) {
	p := future.NewPromise[struct{}]()
	err := s.Register(conds, func() { p.Resolve(struct{}{}) })
	if err != nil {
		return nil, err
	}
	return p, nil
}
