package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vergraph/pkg/graphdb"
	"github.com/mandelsoft/vergraph/pkg/graphdb/graphdbtest"
	. "github.com/mandelsoft/vergraph/pkg/testutils"

	me "github.com/mandelsoft/vergraph/pkg/graphdb/sqlite"
)

var _ = Describe("sqlite graph", func() {
	var closers []func() error

	AfterEach(func() {
		for _, c := range closers {
			c()
		}
		closers = nil
	})

	graphdbtest.Run(
		func() graphdb.Backend[string, string] {
			b := Must(me.Open[string, string](":memory:"))
			closers = append(closers, b.Close)
			return b
		},
		func() graphdb.Backend[int, int] {
			b := Must(me.Open[int, int](":memory:"))
			closers = append(closers, b.Close)
			return b
		},
	)

	It("persists edges", func() {
		ctx := context.Background()
		dir := Must(os.MkdirTemp("", "vergraph-"))
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "graph.db")

		b := Must(me.Open[string, string](path))
		db := graphdb.New[string, string](b)
		MustBeSuccessful(db.AddEdge(ctx, "a", "x", "b"))
		MustBeSuccessful(db.PutRecord(ctx, "edge/a/x", []byte("data")))
		MustBeSuccessful(b.Close())

		b = Must(me.Open[string, string](path))
		defer b.Close()
		db = graphdb.New[string, string](b)
		Expect(Must(db.QueryEdge(ctx, "a", "x"))).To(Equal("b"))
		Expect(db.AddEdge(ctx, "c", "x", "b")).To(MatchError(graphdb.ErrDuplicateEdge))
		Expect(string(Must(db.GetRecord(ctx, "edge/a/x")))).To(Equal("data"))
	})

	It("fails for a database path it cannot open", func() {
		dir := Must(os.MkdirTemp("", "vergraph-"))
		defer os.RemoveAll(dir)
		_, err := me.Open[string, string](filepath.Join(dir, "missing", "graph.db"))
		Expect(err).To(HaveOccurred())
	})
})
