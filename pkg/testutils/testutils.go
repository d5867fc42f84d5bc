package testutils

import (
	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/projectionfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/onsi/gomega"
)

// Must expects a successful call and returns its result.
func Must[T any](o T, err error) T {
	gomega.ExpectWithOffset(1, err).To(gomega.Succeed())
	return o
}

func MustBeSuccessful(err error) {
	gomega.ExpectWithOffset(1, err).To(gomega.Succeed())
}

// TestFileSystem provides a filesystem for tests.
// By default an in-memory filesystem is used, with temp set
// a fresh temporary OS directory projected to the root.
func TestFileSystem(temp ...bool) (vfs.FileSystem, error) {
	if len(temp) == 0 || !temp[0] {
		return memoryfs.New(), nil
	}
	tmpfs, err := osfs.NewTempFileSystem()
	if err != nil {
		return nil, err
	}
	fs, err := projectionfs.New(tmpfs, "/")
	if err != nil {
		vfs.Cleanup(tmpfs)
		return nil, err
	}
	return fs, nil
}
