package memory_test

import (
	. "github.com/onsi/ginkgo/v2"

	"github.com/mandelsoft/vergraph/pkg/graphdb"
	"github.com/mandelsoft/vergraph/pkg/graphdb/graphdbtest"

	me "github.com/mandelsoft/vergraph/pkg/graphdb/memory"
)

var _ = Describe("memory graph", func() {
	graphdbtest.Run(
		func() graphdb.Backend[string, string] { return me.New[string, string]() },
		func() graphdb.Backend[int, int] { return me.New[int, int]() },
	)
})
