package filesystem_test

import (
	"context"
	"path/filepath"

	"github.com/mandelsoft/vfs/pkg/vfs"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mandelsoft/vergraph/pkg/bucket"
	"github.com/mandelsoft/vergraph/pkg/bucket/buckettest"
	. "github.com/mandelsoft/vergraph/pkg/testutils"
	"github.com/mandelsoft/vergraph/pkg/utils"

	me "github.com/mandelsoft/vergraph/pkg/bucket/filesystem"
)

var _ = Describe("filesystem bucket", func() {
	var fs vfs.FileSystem

	BeforeEach(func() {
		fs = Must(TestFileSystem())
	})
	AfterEach(func() {
		vfs.Cleanup(fs)
	})

	Context("plain", func() {
		buckettest.Run(func() bucket.Store { return Must(me.New("/bucket", false, fs)) })
	})

	Context("compressed", func() {
		buckettest.Run(func() bucket.Store { return Must(me.New("/bucket", true, fs)) })
	})

	Context("layout", func() {
		var ctx context.Context

		BeforeEach(func() {
			ctx = context.Background()
		})

		It("stores plain entries by hash", func() {
			s := Must(me.New("/bucket", false, fs))
			MustBeSuccessful(s.Put(ctx, "a", []byte("alice")))
			h := utils.HashData("a")
			Expect(string(Must(vfs.ReadFile(fs, filepath.Join("/bucket", h[:2], h))))).To(Equal("alice"))
		})

		It("compresses entries", func() {
			s := Must(me.New("/bucket", true, fs))
			MustBeSuccessful(s.Put(ctx, "a", []byte("alice")))
			h := utils.HashData("a")
			data := Must(vfs.ReadFile(fs, filepath.Join("/bucket", h[:2], h+".zst")))
			Expect(string(data)).NotTo(Equal("alice"))
		})

		It("reads entries written with the other setting", func() {
			MustBeSuccessful(Must(me.New("/bucket", true, fs)).Put(ctx, "a", []byte("alice")))
			plain := Must(me.New("/bucket", false, fs))
			Expect(string(Must(plain.Get(ctx, "a")))).To(Equal("alice"))

			MustBeSuccessful(plain.Put(ctx, "a", []byte("bob")))
			h := utils.HashData("a")
			Expect(vfs.FileExists(fs, filepath.Join("/bucket", h[:2], h+".zst"))).To(BeFalse())
			Expect(string(Must(Must(me.New("/bucket", true, fs)).Get(ctx, "a")))).To(Equal("bob"))
		})
	})
})
