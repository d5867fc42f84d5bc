package redis_test

import (
	"context"
	"os"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vergraph/pkg/bucket"
	"github.com/mandelsoft/vergraph/pkg/bucket/buckettest"
	. "github.com/mandelsoft/vergraph/pkg/testutils"

	me "github.com/mandelsoft/vergraph/pkg/bucket/redis"
)

// The tests require a redis server given by VERGRAPH_REDIS_ADDRESS.
var _ = Describe("redis bucket", func() {
	var stores []*me.Store
	address := os.Getenv("VERGRAPH_REDIS_ADDRESS")
	prefix := "vergraph-test-" + uuid.NewString() + "/"

	BeforeEach(func() {
		if address == "" {
			Skip("VERGRAPH_REDIS_ADDRESS not set")
		}
	})

	AfterEach(func() {
		for _, s := range stores {
			MustBeSuccessful(s.Reset(context.Background()))
			s.Close()
		}
		stores = nil
	})

	buckettest.Run(func() bucket.Store {
		s := Must(me.Connect(context.Background(), address, "", 0, prefix))
		stores = append(stores, s)
		return s
	})

	It("separates prefixes", func() {
		ctx := context.Background()
		a := Must(me.Connect(ctx, address, "", 0, prefix+"a/"))
		b := Must(me.Connect(ctx, address, "", 0, prefix+"b/"))
		stores = append(stores, a, b)

		MustBeSuccessful(a.Put(ctx, "x", []byte("a")))
		MustBeSuccessful(b.Put(ctx, "x", []byte("b")))
		MustBeSuccessful(a.Reset(ctx))
		_, err := a.Get(ctx, "x")
		Expect(err).To(MatchError(bucket.ErrNotFound))
		Expect(string(Must(b.Get(ctx, "x")))).To(Equal("b"))
	})
})
