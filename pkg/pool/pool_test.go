package pool_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mandelsoft/logging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	me "github.com/mandelsoft/vergraph/pkg/pool"
)

var _ = Describe("pool", func() {
	var ctx context.Context
	var cancel context.CancelFunc
	var pool *me.Pool

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		pool = me.NewPool(logging.DefaultContext(), "test", 3)
	})

	AfterEach(func() {
		cancel()
		pool.Shutdown()
	})

	It("executes all tasks", func() {
		pool.Start(ctx)
		var lock sync.Mutex
		var got []int
		for i := 0; i < 100; i++ {
			i := i
			pool.Execute(func() {
				lock.Lock()
				defer lock.Unlock()
				got = append(got, i)
			})
		}
		pool.Wait()
		Expect(got).To(HaveLen(100))
		Expect(got).To(ContainElements(0, 50, 99))
	})

	It("runs tasks queued before start", func() {
		var cnt atomic.Int32
		pool.Execute(func() { cnt.Add(1) })
		pool.Execute(func() { cnt.Add(1) })
		Expect(pool.Len()).To(Equal(2))
		Expect(cnt.Load()).To(Equal(int32(0)))
		pool.Start(ctx)
		pool.Wait()
		Expect(cnt.Load()).To(Equal(int32(2)))
	})

	It("survives panicking tasks", func() {
		pool.Start(ctx)
		var cnt atomic.Int32
		pool.Execute(func() { panic("boom") })
		pool.Execute(func() { cnt.Add(1) })
		pool.Wait()
		Expect(cnt.Load()).To(Equal(int32(1)))
	})

	It("drops tasks after shutdown", func() {
		pool.Start(ctx)
		pool.Shutdown()
		var cnt atomic.Int32
		pool.Execute(func() { cnt.Add(1) })
		pool.Wait()
		Expect(cnt.Load()).To(Equal(int32(0)))
	})

	It("shuts down with the context", func() {
		pool.Start(ctx)
		cancel()
		Eventually(func() bool {
			var cnt atomic.Int32
			pool.Execute(func() { cnt.Add(1) })
			pool.Wait()
			return cnt.Load() == 0
		}).Should(BeTrue())
	})
})
