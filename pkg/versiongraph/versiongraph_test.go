package versiongraph_test

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-test/deep"
	"github.com/mandelsoft/vfs/pkg/vfs"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vergraph/pkg/bucket"
	"github.com/mandelsoft/vergraph/pkg/ctxutil"
	bfs "github.com/mandelsoft/vergraph/pkg/bucket/filesystem"
	bmem "github.com/mandelsoft/vergraph/pkg/bucket/memory"
	"github.com/mandelsoft/vergraph/pkg/future"
	"github.com/mandelsoft/vergraph/pkg/graphdb"
	gfs "github.com/mandelsoft/vergraph/pkg/graphdb/filesystem"
	gmem "github.com/mandelsoft/vergraph/pkg/graphdb/memory"
	"github.com/mandelsoft/vergraph/pkg/graphdb/sqlite"
	"github.com/mandelsoft/vergraph/pkg/patch"
	. "github.com/mandelsoft/vergraph/pkg/testutils"

	me "github.com/mandelsoft/vergraph/pkg/versiongraph"
)

const MAX = 30

// behaviour defines the version graph checks on the divisor lattice
// for a version graph provided by create.
func behaviour(create func() *me.VersionGraph[int]) {
	var ctx context.Context
	var vg *me.VersionGraph[int]

	BeforeEach(func() {
		ctx = ctxutil.TimeoutContext(context.Background(), 60*time.Second)
		vg = create()
		MustBeSuccessful(vg.Reset(ctx))
		MustBeSuccessful(lattice(ctx, vg, MAX))
	})

	AfterEach(func() {
		ctxutil.Cancel(ctx)
	})

	Context("strategy", func() {
		It("returns the common ancestor", func() {
			_, x, _, _, err := vg.GetMergeStrategy(ctx, V(18), V(14), false)
			MustBeSuccessful(err)
			Expect(x).To(Equal(V(2)))
		})

		It("orders by distance", func() {
			V1, x, V2, mi, err := vg.GetMergeStrategy(ctx, V(6), V(20), false)
			MustBeSuccessful(err)
			Expect(x).To(Equal(V(2)))
			Expect(V1).To(Equal(V(20)))
			Expect(V2).To(Equal(V(6)))
			d1, d2 := mi.Distances()
			Expect(d1).To(BeNumerically("~", math.Log(10), 1e-9))
			Expect(d2).To(BeNumerically("~", math.Log(3), 1e-9))
		})

		It("keeps the order for resolve", func() {
			V1, x, V2, mi, err := vg.GetMergeStrategy(ctx, V(6), V(20), true)
			MustBeSuccessful(err)
			Expect(x).To(Equal(V(2)))
			Expect(V1).To(Equal(V(6)))
			Expect(V2).To(Equal(V(20)))
			Expect(mi.V1()).To(Equal(V(6)))
			Expect(product(mi.Outstanding())).To(BeNumerically("~", 10, 1e-9))
		})

		It("fails for unrelated versions", func() {
			MustBeSuccessful(vg.RecordTrans(ctx, V(-1), mult(2), 1, V(-2)))
			_, _, _, _, err := vg.GetMergeStrategy(ctx, V(-2), V(6), false)
			Expect(err).To(MatchError(graphdb.ErrNoCommonAncestor))
		})
	})

	Context("patches", func() {
		It("returns the patches along the path", func() {
			patches := Must(vg.GetPatches(ctx, V(2), V(18)))
			Expect(patches).To(HaveLen(2))
			Expect(product(patches)).To(BeNumerically("~", 9, 1e-9))
		})

		It("returns no patches for the same version", func() {
			Expect(Must(vg.GetPatches(ctx, V(6), V(6)))).To(BeEmpty())
		})

		It("fails without path", func() {
			_, err := vg.GetPatches(ctx, V(18), V(2))
			Expect(err).To(MatchError(graphdb.ErrNoPath))
		})
	})

	Context("merge", func() {
		It("records a merge", func() {
			V1, _, _, mi, err := vg.GetMergeStrategy(ctx, V(4), V(15), false)
			MustBeSuccessful(err)
			MustBeSuccessful(vg.RecordMerge(ctx, mi, V(1000), mi.Outstanding(), nil))
			Expect(product(Must(vg.GetPatches(ctx, V1, V(1000))))).To(BeNumerically("~", 4, 1e-9))
			Expect(product(Must(vg.GetPatches(ctx, V(1), V(1000))))).To(BeNumerically("~", 60, 1e-9))
		})

		It("does not record conflicting patches", func() {
			v1, v2, newV := V(10), V(24), V(1000)

			_, x, _, mi, err := vg.GetMergeStrategy(ctx, v1, v2, true)
			MustBeSuccessful(err)
			Expect(x).To(Equal(V(2)))

			pxv2 := Must(vg.GetPatches(ctx, x, v2))
			Expect(pxv2).To(HaveLen(3))
			MustBeSuccessful(vg.RecordMerge(ctx, mi, newV, pxv2[:1], pxv2[1:]))

			pv1new := Must(vg.GetPatches(ctx, v1, newV))
			Expect(patch.EqualList(pv1new, pxv2[:1])).To(BeTrue())

			pxv1 := Must(vg.GetPatches(ctx, x, v1))
			pv2new := Must(vg.GetPatches(ctx, v2, newV))
			expected := append(patch.InvertAll(pxv2[1:]), pxv1...)
			Expect(patch.EqualList(pv2new, expected)).To(BeTrue(), "%v", deep.Equal(pv2new, expected))
			Expect(product(pv2new)).To(BeNumerically("~", product(pxv1)/product(pxv2[1:]), 1e-9))
		})

		It("records the weights on the new edges", func() {
			// 12 as merge of 4 and 6, 45 as merge of 9 and 15
			_, _, _, mi, err := vg.GetMergeStrategy(ctx, V(4), V(6), false)
			MustBeSuccessful(err)
			MustBeSuccessful(vg.RecordMerge(ctx, mi, V(1012), mi.Outstanding(), nil))

			_, _, _, mi, err = vg.GetMergeStrategy(ctx, V(9), V(15), false)
			MustBeSuccessful(err)
			MustBeSuccessful(vg.RecordMerge(ctx, mi, V(1045), mi.Outstanding(), nil))

			V5, x, V6, mi, err := vg.GetMergeStrategy(ctx, V(1012), V(1045), false)
			MustBeSuccessful(err)
			Expect(x).To(Equal(V(3)))
			Expect(V5).To(Equal(V(1045)))
			Expect(V6).To(Equal(V(1012)))
			d5, d6 := mi.Distances()
			Expect(d5).To(BeNumerically("~", math.Log(15), 1e-9))
			Expect(d6).To(BeNumerically("~", math.Log(4), 1e-9))

			// merges of merges expand recursively
			MustBeSuccessful(vg.RecordMerge(ctx, mi, V(2180), mi.Outstanding(), nil))
			Expect(product(Must(vg.GetPatches(ctx, V(1045), V(2180))))).To(BeNumerically("~", 4, 1e-9))
			Expect(product(Must(vg.GetPatches(ctx, V(1012), V(2180))))).To(BeNumerically("~", 15, 1e-9))
			Expect(product(Must(vg.GetPatches(ctx, V(1), V(2180))))).To(BeNumerically("~", 180, 1e-9))
		})

		It("rejects incomplete partitions", func() {
			_, _, _, mi, err := vg.GetMergeStrategy(ctx, V(10), V(24), true)
			MustBeSuccessful(err)
			out := mi.Outstanding()
			Expect(vg.RecordMerge(ctx, mi, V(1000), out[1:], nil)).To(MatchError(me.ErrInvalidMerge))
			Expect(vg.RecordMerge(ctx, mi, V(1000), out, out[:1])).To(MatchError(me.ErrInvalidMerge))
			Expect(vg.RecordMerge(ctx, mi, V(1000), append(out, mult(7)), nil)).To(MatchError(me.ErrInvalidMerge))
			Expect(vg.RecordMerge(ctx, mi, V(10), out, nil)).To(MatchError(me.ErrInvalidMerge))
			Expect(vg.RecordMerge(ctx, nil, V(1000), out, nil)).To(MatchError(me.ErrInvalidMerge))
			_, err = vg.GetPatches(ctx, V(10), V(1000))
			Expect(err).To(MatchError(graphdb.ErrNoPath))
		})

		It("accepts permutations of the outstanding patches", func() {
			_, _, _, mi, err := vg.GetMergeStrategy(ctx, V(10), V(24), true)
			MustBeSuccessful(err)
			out := mi.Outstanding()
			MustBeSuccessful(vg.RecordMerge(ctx, mi, V(1000), []patch.Patch{out[2]}, []patch.Patch{out[1], out[0]}))
		})

		It("merges a version with itself", func() {
			_, x, _, mi, err := vg.GetMergeStrategy(ctx, V(6), V(6), false)
			MustBeSuccessful(err)
			Expect(x).To(Equal(V(6)))
			MustBeSuccessful(vg.RecordMerge(ctx, mi, V(1006), nil, nil))
			Expect(Must(vg.GetPatches(ctx, V(6), V(1006)))).To(BeEmpty())
		})

		It("records nothing if one of the merge edges conflicts", func() {
			V1, _, V2, mi, err := vg.GetMergeStrategy(ctx, V(8), V(6), true)
			MustBeSuccessful(err)
			Expect(V1).To(Equal(V(8)))
			Expect(V2).To(Equal(V(6)))
			Expect(vg.RecordMerge(ctx, mi, V(12), mi.Outstanding(), nil)).To(MatchError(graphdb.ErrDuplicateEdge))
			_, err = vg.GetPatches(ctx, V(8), V(12))
			Expect(err).To(MatchError(graphdb.ErrNoPath))
			Expect(Must(vg.Transitions(ctx, V(8)))).To(HaveLen(2))
		})

		It("rejects a merge result closing a cycle", func() {
			V1, _, _, mi, err := vg.GetMergeStrategy(ctx, V(4), V(6), true)
			MustBeSuccessful(err)
			Expect(V1).To(Equal(V(4)))
			Expect(vg.RecordMerge(ctx, mi, V(2), mi.Outstanding(), nil)).To(MatchError(me.ErrInvalidTransition))
			Expect(Must(vg.Transitions(ctx, V(4)))).To(HaveLen(4))
		})
	})

	Context("cycles", func() {
		// -1 -> -2 -> -3 -> -4 -> -5 and -1 -> -6, merged into -100
		BeforeEach(func() {
			for i := -1; i > -5; i-- {
				MustBeSuccessful(vg.RecordTrans(ctx, V(i), mult(2), 1, V(i-1)))
			}
			MustBeSuccessful(vg.RecordTrans(ctx, V(-1), mult(3), 1, V(-6)))
			V1, x, V2, mi, err := vg.GetMergeStrategy(ctx, V(-5), V(-6), false)
			MustBeSuccessful(err)
			Expect([]int{V1.ID, x.ID, V2.ID}).To(Equal([]int{-5, -1, -6}))
			MustBeSuccessful(vg.RecordMerge(ctx, mi, V(-100), mi.Outstanding(), nil))
		})

		It("rejects transitions closing a cycle", func() {
			Expect(vg.RecordTrans(ctx, V(-100), mult(5), 1, V(-5))).To(MatchError(me.ErrInvalidTransition))
			Expect(vg.RecordTrans(ctx, V(-5), mult(5), 1, V(-1))).To(MatchError(me.ErrInvalidTransition))
			Expect(vg.RecordTrans(ctx, V(6), mult(5), 1, V(2))).To(MatchError(me.ErrInvalidTransition))
			_, err := vg.GetPatches(ctx, V(-100), V(-5))
			Expect(err).To(MatchError(graphdb.ErrNoPath))
			Expect(product(Must(vg.GetPatches(ctx, V(-1), V(-100))))).To(BeNumerically("~", 48, 1e-9))
		})

		It("detects merges requiring their own expansion", func() {
			MustBeSuccessful(me.RecordUncheckedTrans(ctx, vg, V(-100), mult(5), 1, V(-5)))
			_, err := vg.GetPatches(ctx, V(-1), V(-100))
			Expect(err).To(MatchError(me.ErrCycle))
		})
	})

	Context("transitions", func() {
		It("accepts identical transitions", func() {
			MustBeSuccessful(vg.RecordTrans(ctx, V(2), mult(3), math.Log(3), V(6)))
		})

		It("rejects different transitions between the same versions", func() {
			Expect(vg.RecordTrans(ctx, V(2), mult(5), math.Log(3), V(6))).To(MatchError(graphdb.ErrDuplicateEdge))
			Expect(vg.RecordTrans(ctx, V(2), mult(3), 1, V(6))).To(MatchError(graphdb.ErrDuplicateEdge))
		})

		It("accepts the same patch for different versions", func() {
			MustBeSuccessful(vg.RecordTrans(ctx, V(2), mult(3), 1, V(-6)))
			MustBeSuccessful(vg.RecordTrans(ctx, V(-2), mult(3), 1, V(6)))
		})

		It("rejects self transitions", func() {
			Expect(vg.RecordTrans(ctx, V(2), mult(1), 0, V(2))).To(MatchError(me.ErrInvalidTransition))
		})

		It("lists transitions", func() {
			list := Must(vg.Transitions(ctx, V(5)))
			Expect(list).To(HaveLen(3))
			Expect([]int{list[0].Target.ID, list[1].Target.ID, list[2].Target.ID}).To(Equal([]int{10, 15, 25}))
			Expect(list[0].Target).To(Equal(V(10)))
			Expect(list[0].Kind).To(Equal(me.KIND_TRANS))
			Expect(product(list[0].Patches)).To(BeNumerically("~", 2, 1e-9))
			Expect(list[0].Weight).To(BeNumerically("~", math.Log(2), 1e-9))
		})
	})

	Context("content", func() {
		It("stores version content", func() {
			MustBeSuccessful(vg.PutContent(ctx, V(6), []byte("six")))
			Expect(string(Must(vg.GetContent(ctx, V(6))))).To(Equal("six"))
			_, err := vg.GetContent(ctx, V(7))
			Expect(err).To(MatchError(bucket.ErrNotFound))
		})

		It("resets", func() {
			MustBeSuccessful(vg.PutContent(ctx, V(6), []byte("six")))
			MustBeSuccessful(vg.Reset(ctx))
			_, err := vg.GetContent(ctx, V(6))
			Expect(err).To(MatchError(bucket.ErrNotFound))
			_, err = vg.GetPatches(ctx, V(2), V(6))
			Expect(err).To(MatchError(graphdb.ErrNoPath))
		})
	})
}

var _ = Describe("version graph", func() {
	Context("memory", func() {
		behaviour(func() *me.VersionGraph[int] {
			return me.New[int](gmem.NewGraphDB[int, string](), bmem.New())
		})
	})

	Context("filesystem", func() {
		var fs vfs.FileSystem

		BeforeEach(func() {
			fs = Must(TestFileSystem())
		})
		AfterEach(func() {
			vfs.Cleanup(fs)
		})

		behaviour(func() *me.VersionGraph[int] {
			g := Must(gfs.New[int, string]("/graph", nil, fs))
			b := Must(bfs.New("/bucket", true, fs))
			return me.New[int](graphdb.New[int, string](g), b)
		})
	})

	Context("sqlite", func() {
		var backend *sqlite.Backend[int, string]

		AfterEach(func() {
			backend.Close()
		})

		behaviour(func() *me.VersionGraph[int] {
			backend = Must(sqlite.Open[int, string](":memory:"))
			return me.New[int](graphdb.New[int, string](backend), bmem.New())
		})
	})

	Context("storage", func() {
		It("keeps edge records with the graph", func() {
			ctx := context.Background()
			g := gmem.NewGraphDB[int, string]()
			b := bmem.New()
			MustBeSuccessful(lattice(ctx, me.New[int](g, b), 13))
			MustBeSuccessful(b.Reset(ctx))

			vg := me.New[int](g, bmem.New())
			Expect(product(Must(vg.GetPatches(ctx, V(1), V(12))))).To(BeNumerically("~", 12, 1e-9))
			Expect(Must(vg.Transitions(ctx, V(2)))).To(HaveLen(3))
		})
	})

	Context("lattice properties", func() {
		var ctx context.Context
		var vg *me.VersionGraph[int]

		BeforeEach(func() {
			ctx = context.Background()
			vg = me.New[int](gmem.NewGraphDB[int, string](), bmem.New())
			MustBeSuccessful(lattice(ctx, vg, MAX))
		})

		It("orders all pairs by distance", func() {
			for a := 1; a < MAX; a++ {
				for b := 1; b < MAX; b++ {
					V1, x, V2, _, err := vg.GetMergeStrategy(ctx, V(a), V(b), false)
					MustBeSuccessful(err)
					Expect(x).To(Equal(V(gcd(a, b))), "ancestor of %d and %d", a, b)
					Expect([]int{V1.ID, V2.ID}).To(ConsistOf(a, b))
					Expect(V1.ID).To(BeNumerically(">=", V2.ID), "strategy for %d and %d", a, b)

					V1, _, V2, _, err = vg.GetMergeStrategy(ctx, V(a), V(b), true)
					MustBeSuccessful(err)
					Expect(V1).To(Equal(V(a)))
					Expect(V2).To(Equal(V(b)))
				}
			}
		})

		It("expands merges", func() {
			n := 1000
			for _, c := range [][2]int{{10, 24}, {18, 14}, {4, 6}, {27, 8}, {5, 5}, {2, 16}, {16, 2}} {
				n++
				v1, v2 := V(c[0]), V(c[1])
				_, x, _, mi, err := vg.GetMergeStrategy(ctx, v1, v2, false)
				MustBeSuccessful(err)
				MustBeSuccessful(vg.RecordMerge(ctx, mi, V(n), mi.Outstanding(), nil))
				desc := fmt.Sprintf("merge of %d and %d", c[0], c[1])
				Expect(product(Must(vg.GetPatches(ctx, v1, V(n))))).To(BeNumerically("~", float64(c[1])/float64(x.ID), 1e-9), desc)
				Expect(product(Must(vg.GetPatches(ctx, v2, V(n))))).To(BeNumerically("~", float64(c[0])/float64(x.ID), 1e-9), desc)
			}
		})

		It("reconstructs merges with conflicts", func() {
			for _, c := range [][2]int{{10, 24}, {18, 14}, {27, 8}, {12, 20}} {
				newV := V(2000 + c[0]*100 + c[1])
				V1, x, V2, mi, err := vg.GetMergeStrategy(ctx, V(c[0]), V(c[1]), false)
				MustBeSuccessful(err)
				out := mi.Outstanding()
				accepted, conflicting := out[:len(out)/2], out[len(out)/2:]
				MustBeSuccessful(vg.RecordMerge(ctx, mi, newV, accepted, conflicting))

				Expect(patch.EqualList(Must(vg.GetPatches(ctx, V1, newV)), accepted)).To(BeTrue())
				expected := append(patch.InvertAll(conflicting), Must(vg.GetPatches(ctx, x, V1))...)
				Expect(patch.EqualList(Must(vg.GetPatches(ctx, V2, newV)), expected)).To(BeTrue())
			}
		})
	})

	Context("weighted paths", func() {
		var ctx context.Context
		var vg *me.VersionGraph[int]

		BeforeEach(func() {
			ctx = context.Background()
			g := gmem.NewGraphDB[int, string](graphdb.WithEdgeWeight[int, string](func(ctx context.Context, e graphdb.Edge[int, string]) (float64, error) {
				return vg.EdgeWeight(ctx, e)
			}))
			vg = me.New[int](g, bmem.New())
			MustBeSuccessful(lattice(ctx, vg, MAX))
		})

		It("prefers the lighter path", func() {
			MustBeSuccessful(vg.RecordTrans(ctx, V(1), mult(12), 10, V(12)))
			patches := Must(vg.GetPatches(ctx, V(1), V(12)))
			Expect(patches).To(HaveLen(3))
			Expect(product(patches)).To(BeNumerically("~", 12, 1e-9))
		})

		It("prefers a direct light transition", func() {
			MustBeSuccessful(vg.RecordTrans(ctx, V(1), mult(12), 1, V(12)))
			patches := Must(vg.GetPatches(ctx, V(1), V(12)))
			Expect(patches).To(HaveLen(1))
			Expect(product(patches)).To(BeNumerically("~", 12, 1e-9))
		})
	})

	Context("async", func() {
		var ctx context.Context
		var cancel context.CancelFunc
		var async *me.Async[int]

		BeforeEach(func() {
			ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
			async = me.NewAsync(me.New[int](gmem.NewGraphDB[int, string](), bmem.New()))
			MustBeSuccessful(lattice(ctx, async.Sync(), MAX))
		})
		AfterEach(func() {
			cancel()
		})

		It("sequences operations", func() {
			f := async.GetMergeStrategy(ctx, V(10), V(24), true)
			done := future.Then(f, func(s *me.Strategy[int]) (*me.Strategy[int], error) {
				_, err := async.RecordMerge(ctx, s.MergeInfo, V(1000), s.MergeInfo.Outstanding(), nil).Wait(ctx)
				return s, err
			})
			patches := future.Then(done, func(s *me.Strategy[int]) ([]patch.Patch, error) {
				return async.GetPatches(ctx, s.V1, V(1000)).Wait(ctx)
			})
			Expect(product(Must(patches.Wait(ctx)))).To(BeNumerically("~", 12, 1e-9))
		})

		It("short-circuits failures", func() {
			called := false
			f := future.Then(async.GetPatches(ctx, V(18), V(2)), func(p []patch.Patch) (struct{}, error) {
				called = true
				return struct{}{}, nil
			})
			_, err := f.Wait(ctx)
			Expect(err).To(MatchError(graphdb.ErrNoPath))
			Expect(called).To(BeFalse())
		})

		It("handles content", func() {
			_, err := async.PutContent(ctx, V(3), []byte("three")).Wait(ctx)
			MustBeSuccessful(err)
			Expect(string(Must(async.GetContent(ctx, V(3)).Wait(ctx)))).To(Equal("three"))
			_, err = async.Reset(ctx).Wait(ctx)
			MustBeSuccessful(err)
			_, err = async.GetContent(ctx, V(3)).Wait(ctx)
			Expect(err).To(MatchError(bucket.ErrNotFound))
		})
	})
})
