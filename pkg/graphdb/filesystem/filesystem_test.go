package filesystem_test

import (
	"context"

	"github.com/mandelsoft/vfs/pkg/vfs"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"sigs.k8s.io/yaml"

	"github.com/mandelsoft/vergraph/pkg/graphdb"
	"github.com/mandelsoft/vergraph/pkg/graphdb/graphdbtest"
	"github.com/mandelsoft/vergraph/pkg/scheduler"
	. "github.com/mandelsoft/vergraph/pkg/testutils"
	"github.com/mandelsoft/vergraph/pkg/utils"

	me "github.com/mandelsoft/vergraph/pkg/graphdb/filesystem"
)

var _ = Describe("filesystem graph", func() {
	var fs vfs.FileSystem

	BeforeEach(func() {
		fs = Must(TestFileSystem())
	})

	AfterEach(func() {
		vfs.Cleanup(fs)
	})

	graphdbtest.Run(
		func() graphdb.Backend[string, string] {
			return Must(me.New[string, string]("/graph/strings", nil, fs))
		},
		func() graphdb.Backend[int, int] {
			return Must(me.New[int, int]("/graph/ints", scheduler.New(), fs))
		},
	)

	Context("layout", func() {
		var ctx context.Context

		BeforeEach(func() {
			ctx = context.Background()
		})

		It("writes both index entries", func() {
			b := Must(me.New[string, string]("/graph", nil, fs))
			MustBeSuccessful(b.Insert(ctx, graphdb.Edge[string, string]{From: "a", Label: "l", To: "b"}))

			data := Must(vfs.ReadFile(fs, "/graph/forward/"+utils.HashData("a")+"/"+utils.HashData("l")+".yaml"))
			var r map[string]interface{}
			MustBeSuccessful(yaml.Unmarshal(data, &r))
			Expect(r).To(Equal(map[string]interface{}{"seq": float64(1), "from": "a", "label": "l", "to": "b"}))
			Expect(vfs.FileExists(fs, "/graph/backward/"+utils.HashData("b")+"/"+utils.HashData("l")+".yaml")).To(BeTrue())
		})

		It("reopens a persisted graph", func() {
			db := graphdb.New[string, string](Must(me.New[string, string]("/graph", nil, fs)))
			MustBeSuccessful(db.AddEdge(ctx, "a", "x", "b"))
			MustBeSuccessful(db.AddEdge(ctx, "a", "y", "c"))

			db = graphdb.New[string, string](Must(me.New[string, string]("/graph", nil, fs)))
			MustBeSuccessful(db.AddEdge(ctx, "a", "z", "d"))
			Expect(Must(db.QueryBackEdge(ctx, "c", "y"))).To(Equal("a"))
			Expect(Must(db.Backend().Outgoing(ctx, "a"))).To(Equal([]graphdb.Edge[string, string]{
				{From: "a", Label: "x", To: "b"},
				{From: "a", Label: "y", To: "c"},
				{From: "a", Label: "z", To: "d"},
			}))
		})

		It("persists records", func() {
			db := graphdb.New[string, string](Must(me.New[string, string]("/graph", nil, fs)))
			MustBeSuccessful(db.PutRecord(ctx, "edge/a/x", []byte("data")))
			Expect(vfs.FileExists(fs, "/graph/records/"+utils.HashData("edge/a/x"))).To(BeTrue())

			db = graphdb.New[string, string](Must(me.New[string, string]("/graph", nil, fs)))
			Expect(string(Must(db.GetRecord(ctx, "edge/a/x")))).To(Equal("data"))
		})

		It("does not start an insert for a cancelled context", func() {
			b := Must(me.New[string, string]("/graph", nil, fs))
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := b.Insert(cctx, graphdb.Edge[string, string]{From: "a", Label: "l", To: "b"})
			Expect(err).To(MatchError(context.Canceled))
			Expect(Must(b.Outgoing(ctx, "a"))).To(BeEmpty())
			Expect(Must(b.Incoming(ctx, "b"))).To(BeEmpty())
			Expect(vfs.FileExists(fs, "/graph/"+me.META)).To(BeFalse())
		})
	})
})
