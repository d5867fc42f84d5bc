package buckettest

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vergraph/pkg/bucket"
	. "github.com/mandelsoft/vergraph/pkg/testutils"
)

// Run defines the behaviour every bucket store has to show.
func Run(create func() bucket.Store) {
	var ctx context.Context
	var store bucket.Store

	BeforeEach(func() {
		ctx = context.Background()
		store = create()
		MustBeSuccessful(store.Reset(ctx))
	})

	It("stores and retrieves entries", func() {
		MustBeSuccessful(store.Put(ctx, "a", []byte("alice")))
		MustBeSuccessful(store.Put(ctx, "edge/b/c", []byte("bob")))
		Expect(string(Must(store.Get(ctx, "a")))).To(Equal("alice"))
		Expect(string(Must(store.Get(ctx, "edge/b/c")))).To(Equal("bob"))
	})

	It("overwrites entries", func() {
		MustBeSuccessful(store.Put(ctx, "a", []byte("alice")))
		MustBeSuccessful(store.Put(ctx, "a", []byte("bob")))
		Expect(string(Must(store.Get(ctx, "a")))).To(Equal("bob"))
	})

	It("reports unknown entries", func() {
		_, err := store.Get(ctx, "unknown")
		Expect(err).To(MatchError(bucket.ErrNotFound))
	})

	It("handles empty and large payloads", func() {
		large := []byte(strings.Repeat("vergraph", 10000))
		MustBeSuccessful(store.Put(ctx, "empty", []byte{}))
		MustBeSuccessful(store.Put(ctx, "large", large))
		Expect(Must(store.Get(ctx, "empty"))).To(BeEmpty())
		Expect(Must(store.Get(ctx, "large"))).To(Equal(large))
	})

	It("resets the store", func() {
		MustBeSuccessful(store.Put(ctx, "a", []byte("alice")))
		MustBeSuccessful(store.Reset(ctx))
		_, err := store.Get(ctx, "a")
		Expect(err).To(MatchError(bucket.ErrNotFound))
		MustBeSuccessful(store.Put(ctx, "a", []byte("bob")))
		Expect(string(Must(store.Get(ctx, "a")))).To(Equal("bob"))
	})
}
