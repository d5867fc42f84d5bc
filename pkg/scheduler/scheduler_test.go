package scheduler_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mandelsoft/logging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vergraph/pkg/pool"
	me "github.com/mandelsoft/vergraph/pkg/scheduler"
)

// queue collects released callbacks to run them explicitly.
type queue struct {
	callbacks []func()
}

func (q *queue) Execute(f func()) {
	q.callbacks = append(q.callbacks, f)
}

func (q *queue) Run() int {
	n := len(q.callbacks)
	for _, f := range q.callbacks {
		f()
	}
	q.callbacks = nil
	return n
}

var _ = Describe("scheduler", func() {
	var q *queue
	var sched *me.Scheduler
	var cnt int

	BeforeEach(func() {
		q = &queue{}
		sched = me.New(q)
		cnt = 0
	})

	It("fires once after all conditions", func() {
		Expect(sched.Register([]me.Condition{"A", "B"}, func() { cnt++ })).To(Succeed())

		sched.Notify("A")
		Expect(q.Run()).To(Equal(0))
		Expect(cnt).To(Equal(0))

		sched.Notify("B")
		Expect(q.Run()).To(Equal(1))
		Expect(cnt).To(Equal(1))

		sched.Notify("A")
		Expect(q.Run()).To(Equal(0))
		Expect(cnt).To(Equal(1))
	})

	It("does not fire inline", func() {
		Expect(sched.Register([]me.Condition{"A"}, func() { cnt++ })).To(Succeed())
		sched.Notify("A")
		Expect(cnt).To(Equal(0))
		q.Run()
		Expect(cnt).To(Equal(1))
	})

	It("ignores unknown conditions", func() {
		sched.Notify("X")
		Expect(q.Run()).To(Equal(0))
	})

	It("rejects empty condition sets", func() {
		Expect(sched.Register(nil, func() { cnt++ })).To(MatchError(me.ErrNoConditions))
		_, err := sched.Join()
		Expect(err).To(MatchError(me.ErrNoConditions))
	})

	It("consumes duplicates with one notification", func() {
		Expect(sched.Register([]me.Condition{"A", "A", "B"}, func() { cnt++ })).To(Succeed())
		Expect(sched.Pending("A")).To(Equal(2))
		sched.Notify("A")
		Expect(sched.Pending("A")).To(Equal(0))
		Expect(q.Run()).To(Equal(0))
		sched.Notify("B")
		Expect(q.Run()).To(Equal(1))
	})

	It("handles multiple registrations", func() {
		Expect(sched.Register([]me.Condition{"A", "B"}, func() { cnt += 1 })).To(Succeed())
		Expect(sched.Register([]me.Condition{"B"}, func() { cnt += 10 })).To(Succeed())
		Expect(sched.Register([]me.Condition{"C"}, func() { cnt += 100 })).To(Succeed())

		sched.Notify("B")
		q.Run()
		Expect(cnt).To(Equal(10))
		sched.Notify("A")
		q.Run()
		Expect(cnt).To(Equal(11))
		Expect(sched.Pending("C")).To(Equal(1))
	})

	It("requires re-registration for subsequent waits", func() {
		Expect(sched.Register([]me.Condition{"A"}, func() { cnt++ })).To(Succeed())
		sched.Notify("A")
		Expect(sched.Register([]me.Condition{"A"}, func() { cnt++ })).To(Succeed())
		sched.Notify("A")
		q.Run()
		Expect(cnt).To(Equal(2))
	})

	Context("asynchronous", func() {
		var ctx context.Context
		var cancel context.CancelFunc

		BeforeEach(func() {
			ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		})
		AfterEach(func() {
			cancel()
		})

		It("joins with futures", func() {
			sched = me.New()
			f, err := sched.Join("A", "B")
			Expect(err).To(Succeed())
			go sched.Notify("B")
			go sched.Notify("A")
			_, err = f.Wait(ctx)
			Expect(err).To(Succeed())
		})

		It("releases on a worker pool", func() {
			p := pool.NewPool(logging.DefaultContext(), "scheduler", 2)
			p.Start(ctx)
			defer p.Shutdown()

			sched = me.New(p)
			var fired atomic.Int32
			for i := 0; i < 10; i++ {
				Expect(sched.Register([]me.Condition{"A", "B"}, func() { fired.Add(1) })).To(Succeed())
			}
			sched.Notify("A")
			sched.Notify("B")
			p.Wait()
			Expect(fired.Load()).To(Equal(int32(10)))
		})
	})
})
