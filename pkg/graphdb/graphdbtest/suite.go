package graphdbtest

import (
	"context"
	"time"

	"github.com/go-test/deep"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vergraph/pkg/graphdb"
	. "github.com/mandelsoft/vergraph/pkg/testutils"
)

type (
	StringStep = graphdb.PathStep[string, string]
	IntStep    = graphdb.PathStep[int, int]
)

// Run defines the behaviour every graph backend has to show.
// It must be called inside a container node.
func Run(strings func() graphdb.Backend[string, string], ints func() graphdb.Backend[int, int]) {
	var ctx context.Context
	var cancel context.CancelFunc

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	})
	AfterEach(func() {
		cancel()
	})

	Context("strings", func() {
		var db *graphdb.GraphDB[string, string]

		BeforeEach(func() {
			db = graphdb.New(strings())
			MustBeSuccessful(db.Clear(ctx))
		})

		Context("edges", func() {
			It("adds and queries an edge", func() {
				MustBeSuccessful(db.AddEdge(ctx, "foo", "likes", "bar"))
				Expect(Must(db.QueryEdge(ctx, "foo", "likes"))).To(Equal("bar"))
			})

			It("maps the destination back to the source", func() {
				MustBeSuccessful(db.AddEdge(ctx, "foo", "likes", "bar"))
				Expect(Must(db.QueryBackEdge(ctx, "bar", "likes"))).To(Equal("foo"))
			})

			It("reports missing edges", func() {
				MustBeSuccessful(db.AddEdge(ctx, "foo", "likes", "bar"))
				_, err := db.QueryEdge(ctx, "foo", "hates")
				Expect(err).To(MatchError(graphdb.ErrNotFound))
				_, err = db.QueryBackEdge(ctx, "foo", "likes")
				Expect(err).To(MatchError(graphdb.ErrNotFound))
			})

			It("accepts an identical edge twice", func() {
				MustBeSuccessful(db.AddEdge(ctx, "foo", "likes", "bar"))
				MustBeSuccessful(db.AddEdge(ctx, "foo", "likes", "bar"))
				edges := Must(db.Backend().Outgoing(ctx, "foo"))
				Expect(edges).To(HaveLen(1))
			})

			It("rejects conflicting edges", func() {
				MustBeSuccessful(db.AddEdge(ctx, "foo", "likes", "bar"))
				Expect(db.AddEdge(ctx, "foo", "likes", "baz")).To(MatchError(graphdb.ErrDuplicateEdge))
				Expect(db.AddEdge(ctx, "alice", "likes", "bar")).To(MatchError(graphdb.ErrDuplicateEdge))
				Expect(Must(db.QueryEdge(ctx, "foo", "likes"))).To(Equal("bar"))
			})

			It("lists edges in insertion order", func() {
				MustBeSuccessful(db.AddEdge(ctx, "a", "z", "b"))
				MustBeSuccessful(db.AddEdge(ctx, "a", "y", "c"))
				MustBeSuccessful(db.AddEdge(ctx, "a", "x", "d"))
				MustBeSuccessful(db.AddEdge(ctx, "e", "w", "d"))
				Expect(Must(db.Backend().Outgoing(ctx, "a"))).To(Equal([]graphdb.Edge[string, string]{
					{"a", "z", "b"}, {"a", "y", "c"}, {"a", "x", "d"},
				}))
				Expect(Must(db.Backend().Incoming(ctx, "d"))).To(Equal([]graphdb.Edge[string, string]{
					{"a", "x", "d"}, {"e", "w", "d"},
				}))
			})

			It("clears the graph", func() {
				MustBeSuccessful(db.AddEdge(ctx, "foo", "likes", "bar"))
				MustBeSuccessful(db.Clear(ctx))
				_, err := db.QueryEdge(ctx, "foo", "likes")
				Expect(err).To(MatchError(graphdb.ErrNotFound))
				MustBeSuccessful(db.AddEdge(ctx, "foo", "likes", "baz"))
			})

			It("checks edges without adding them", func() {
				MustBeSuccessful(db.AddEdge(ctx, "foo", "likes", "bar"))
				Expect(Must(db.CheckEdge(ctx, "foo", "likes", "bar"))).To(BeTrue())
				Expect(Must(db.CheckEdge(ctx, "foo", "hates", "bar"))).To(BeFalse())
				_, err := db.CheckEdge(ctx, "foo", "likes", "baz")
				Expect(err).To(MatchError(graphdb.ErrDuplicateEdge))
				_, err = db.CheckEdge(ctx, "alice", "likes", "bar")
				Expect(err).To(MatchError(graphdb.ErrDuplicateEdge))
				Expect(Must(db.Backend().Outgoing(ctx, "foo"))).To(HaveLen(1))
				Expect(Must(db.Backend().Outgoing(ctx, "alice"))).To(BeEmpty())
			})
		})

		Context("records", func() {
			It("stores and retrieves records", func() {
				MustBeSuccessful(db.PutRecord(ctx, "edge/a/b", []byte("first")))
				MustBeSuccessful(db.PutRecord(ctx, "pair/a/b", []byte("second")))
				Expect(string(Must(db.GetRecord(ctx, "edge/a/b")))).To(Equal("first"))
				Expect(string(Must(db.GetRecord(ctx, "pair/a/b")))).To(Equal("second"))
			})

			It("replaces records", func() {
				MustBeSuccessful(db.PutRecord(ctx, "r", []byte("first")))
				MustBeSuccessful(db.PutRecord(ctx, "r", []byte("second")))
				Expect(string(Must(db.GetRecord(ctx, "r")))).To(Equal("second"))
			})

			It("reports unknown records", func() {
				_, err := db.GetRecord(ctx, "unknown")
				Expect(err).To(MatchError(graphdb.ErrNotFound))
			})

			It("clears records with the graph", func() {
				MustBeSuccessful(db.AddEdge(ctx, "foo", "likes", "bar"))
				MustBeSuccessful(db.PutRecord(ctx, "r", []byte("data")))
				MustBeSuccessful(db.Clear(ctx))
				_, err := db.GetRecord(ctx, "r")
				Expect(err).To(MatchError(graphdb.ErrNotFound))
			})
		})

		Context("ancestors", func() {
			BeforeEach(func() {
				MustBeSuccessful(db.AddEdge(ctx, "terah", "p1", "abraham"))
				MustBeSuccessful(db.AddEdge(ctx, "abraham", "p2", "isaac"))
				MustBeSuccessful(db.AddEdge(ctx, "isaac", "p3", "jacob"))
				MustBeSuccessful(db.AddEdge(ctx, "jacob", "p4", "joseph"))
				MustBeSuccessful(db.AddEdge(ctx, "abraham", "p5", "ismael"))
				MustBeSuccessful(db.AddEdge(ctx, "isaac", "p6", "esaw"))
				MustBeSuccessful(db.AddEdge(ctx, "jacob", "p7", "simon"))
			})

			It("finds the common ancestor and the paths", func() {
				x, pa, pb, err := db.FindCommonAncestor(ctx, "simon", "ismael")
				MustBeSuccessful(err)
				Expect(x).To(Equal("abraham"))
				Expect(deep.Equal(pa, []StringStep{{"p2", "isaac"}, {"p3", "jacob"}, {"p7", "simon"}})).To(BeNil())
				Expect(deep.Equal(pb, []StringStep{{"p5", "ismael"}})).To(BeNil())
			})

			It("finds a direct ancestor", func() {
				x, pa, pb, err := db.FindCommonAncestor(ctx, "isaac", "joseph")
				MustBeSuccessful(err)
				Expect(x).To(Equal("isaac"))
				Expect(pa).To(BeEmpty())
				Expect(pb).To(Equal([]StringStep{{"p3", "jacob"}, {"p4", "joseph"}}))
			})

			It("handles identical nodes", func() {
				x, pa, pb, err := db.FindCommonAncestor(ctx, "jacob", "jacob")
				MustBeSuccessful(err)
				Expect(x).To(Equal("jacob"))
				Expect(pa).To(BeEmpty())
				Expect(pb).To(BeEmpty())
			})

			It("fails for unrelated nodes", func() {
				MustBeSuccessful(db.AddEdge(ctx, "adam", "p8", "kain"))
				_, _, _, err := db.FindCommonAncestor(ctx, "kain", "simon")
				Expect(err).To(MatchError(graphdb.ErrNoCommonAncestor))
			})
		})

		Context("paths", func() {
			It("takes the shortest path", func() {
				MustBeSuccessful(db.AddEdge(ctx, "a", "wrong1", "b"))
				MustBeSuccessful(db.AddEdge(ctx, "b", "wrong2", "c"))
				MustBeSuccessful(db.AddEdge(ctx, "a", "right", "c"))
				Expect(Must(db.FindPath(ctx, "a", "c"))).To(Equal([]string{"right"}))
			})

			It("handles directed cycles", func() {
				MustBeSuccessful(db.AddEdge(ctx, "a", "right1", "b"))
				MustBeSuccessful(db.AddEdge(ctx, "b", "right2", "c"))
				MustBeSuccessful(db.AddEdge(ctx, "c", "wrong", "b"))
				MustBeSuccessful(db.AddEdge(ctx, "c", "right3", "d"))
				Expect(Must(db.FindPath(ctx, "a", "d"))).To(Equal([]string{"right1", "right2", "right3"}))
			})

			It("breaks ties by insertion order", func() {
				MustBeSuccessful(db.AddEdge(ctx, "a", "first", "b"))
				MustBeSuccessful(db.AddEdge(ctx, "a", "second", "c"))
				MustBeSuccessful(db.AddEdge(ctx, "b", "x", "d"))
				MustBeSuccessful(db.AddEdge(ctx, "c", "y", "d"))
				Expect(Must(db.FindPath(ctx, "a", "d"))).To(Equal([]string{"first", "x"}))
			})

			It("returns an empty path for identical nodes", func() {
				Expect(Must(db.FindPath(ctx, "a", "a"))).To(BeEmpty())
			})

			It("fails for unreachable nodes", func() {
				MustBeSuccessful(db.AddEdge(ctx, "a", "l", "b"))
				_, err := db.FindPath(ctx, "b", "a")
				Expect(err).To(MatchError(graphdb.ErrNoPath))
			})

			It("uses edge weights if configured", func() {
				weights := map[string]float64{"ab": 1, "bc": 1, "ac": 5}
				db = graphdb.New(db.Backend(), graphdb.WithEdgeWeight[string, string](func(ctx context.Context, e graphdb.Edge[string, string]) (float64, error) {
					return weights[e.Label], nil
				}))
				MustBeSuccessful(db.AddEdge(ctx, "a", "ac", "c"))
				MustBeSuccessful(db.AddEdge(ctx, "a", "ab", "b"))
				MustBeSuccessful(db.AddEdge(ctx, "b", "bc", "c"))
				Expect(Must(db.FindPath(ctx, "a", "c"))).To(Equal([]string{"ab", "bc"}))
				weights["ac"] = 2
				Expect(Must(db.FindPath(ctx, "a", "c"))).To(Equal([]string{"ac"}))
			})
		})
	})

	Context("divisor lattice", func() {
		var db *graphdb.GraphDB[int, int]

		BeforeEach(func() {
			db = graphdb.New(ints())
			MustBeSuccessful(db.Clear(ctx))
			MustBeSuccessful(Lattice(ctx, 30, db.AddEdge))
		})

		It("finds the ancestor in presence of common descendants", func() {
			x, pa, pb, err := db.FindCommonAncestor(ctx, 4, 6)
			MustBeSuccessful(err)
			Expect(x).To(Equal(2))
			Expect(pa).To(Equal([]IntStep{{2, 4}}))
			Expect(pb).To(Equal([]IntStep{{3, 6}}))
		})

		It("returns the paths from the ancestor", func() {
			x, pa, pb, err := db.FindCommonAncestor(ctx, 8, 10)
			MustBeSuccessful(err)
			Expect(x).To(Equal(2))
			Expect(pa).To(Equal([]IntStep{{2, 4}, {2, 8}}))
			Expect(pb).To(Equal([]IntStep{{5, 10}}))
		})

		It("finds the greatest common divisor", func() {
			for _, c := range [][3]int{{18, 14, 2}, {12, 18, 6}, {25, 15, 5}, {7, 11, 1}, {27, 9, 9}} {
				x, _, _, err := db.FindCommonAncestor(ctx, c[0], c[1])
				MustBeSuccessful(err)
				Expect(x).To(Equal(c[2]), "ancestor of %d and %d", c[0], c[1])
			}
		})

		It("returns the labels along the path", func() {
			path := Must(db.FindPath(ctx, 3, 24))
			Expect(path).To(HaveLen(3))
			m := 1
			for _, f := range path {
				m *= f
			}
			Expect(m).To(Equal(8))
		})
	})
}
