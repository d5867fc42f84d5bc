package locks_test

import (
	"context"
	"runtime"
	"time"

	. "github.com/mandelsoft/vergraph/pkg/testutils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vergraph/pkg/future"
	me "github.com/mandelsoft/vergraph/pkg/locks"
)

func waitFor(cond func() bool) {
	for i := 0; i < 1000 && !cond(); i++ {
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
}

var _ = Describe("locks", func() {
	var ctx context.Context
	var cancel context.CancelFunc

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	})
	AfterEach(func() {
		cancel()
	})

	Context("element locks", func() {
		var locks *me.ElementLocks[string]

		BeforeEach(func() {
			locks = me.NewElementLocks[string]()
		})

		It("locks and unlocks", func() {
			MustBeSuccessful(locks.Lock(ctx, "A"))
			MustBeSuccessful(locks.Lock(ctx, "B"))

			Expect(locks.TryLock("A")).To(BeFalse())
			Expect(locks.TryLock("B")).To(BeFalse())
			Expect(locks.TryLock("C")).To(BeTrue())
			Expect(locks.TryLock("C")).To(BeFalse())

			locks.Unlock("A")
			Expect(locks.TryLock("A")).To(BeTrue())
			Expect(locks.TryLock("B")).To(BeFalse())

			locks.Unlock("B")
			locks.Unlock("C")
			Expect(locks.IsLocked("A")).To(BeTrue())
			Expect(locks.IsLocked("B")).To(BeFalse())
			Expect(locks.IsLocked("C")).To(BeFalse())
		})

		It("blocks and unlocks", func() {
			MustBeSuccessful(locks.Lock(ctx, "A"))

			fA := future.NewPromise[bool]()
			fB := future.NewPromise[bool]()

			for _, f := range []future.Promise[bool]{fA, fB} {
				go func(f future.Promise[bool]) {
					defer GinkgoRecover()
					MustBeSuccessful(locks.Lock(ctx, "A"))
					f.Resolve(true)
					locks.Unlock("A")
				}(f)
			}

			waitFor(func() bool { return locks.HasWaiting("A") })
			Expect(fA.Done()).NotTo(BeClosed())
			locks.Unlock("A")
			Expect(Must(fA.Wait(ctx))).To(BeTrue())
			Expect(Must(fB.Wait(ctx))).To(BeTrue())
			waitFor(func() bool { return !locks.IsLocked("A") })
			Expect(locks.IsLocked("A")).To(BeFalse())
		})

		It("withdraws cancelled requests", func() {
			MustBeSuccessful(locks.Lock(ctx, "A"))
			c, cf := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cf()
			Expect(locks.Lock(c, "A")).To(MatchError(context.DeadlineExceeded))
			Expect(locks.HasWaiting("A")).To(BeFalse())
			locks.Unlock("A")
			Expect(locks.IsLocked("A")).To(BeFalse())
		})

		It("panics on unlocked elements", func() {
			Expect(func() { locks.Unlock("X") }).To(Panic())
		})
	})

	Context("mutex", func() {
		It("serializes", func() {
			var m me.Mutex
			MustBeSuccessful(m.Lock(ctx))
			Expect(m.TryLock()).To(BeFalse())

			done := future.Go(func() (bool, error) {
				err := m.Lock(ctx)
				return err == nil, err
			})
			waitFor(m.HasWaiting)
			m.Unlock()
			Expect(Must(done.Wait(ctx))).To(BeTrue())
			Expect(m.IsLocked()).To(BeTrue())
			m.Unlock()
			Expect(m.IsLocked()).To(BeFalse())
		})

		It("withdraws cancelled requests", func() {
			var m me.Mutex
			MustBeSuccessful(m.Lock(ctx))
			c, cf := context.WithCancel(ctx)
			cf()
			Expect(m.Lock(c)).To(MatchError(context.Canceled))
			Expect(m.HasWaiting()).To(BeFalse())
			m.Unlock()
			Expect(m.TryLock()).To(BeTrue())
		})
	})
})
