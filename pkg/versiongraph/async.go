package versiongraph

import (
	"context"

	"github.com/mandelsoft/vergraph/pkg/future"
	"github.com/mandelsoft/vergraph/pkg/patch"
)

// Async provides the version graph operations with futures.
// Every call is executed asynchronously, callers sequence
// dependent operations with future.Then.
type Async[N comparable] struct {
	graph *VersionGraph[N]
}

func NewAsync[N comparable](g *VersionGraph[N]) *Async[N] {
	return &Async[N]{graph: g}
}

func (a *Async[N]) Sync() *VersionGraph[N] {
	return a.graph
}

func (a *Async[N]) RecordTrans(ctx context.Context, v1 Version[N], p patch.Patch, w Weight, v2 Version[N]) future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		return struct{}{}, a.graph.RecordTrans(ctx, v1, p, w, v2)
	})
}

func (a *Async[N]) GetMergeStrategy(ctx context.Context, v1, v2 Version[N], resolve bool) future.Future[*Strategy[N]] {
	return future.Go(func() (*Strategy[N], error) {
		V1, x, V2, mi, err := a.graph.GetMergeStrategy(ctx, v1, v2, resolve)
		if err != nil {
			return nil, err
		}
		return &Strategy[N]{V1: V1, X: x, V2: V2, MergeInfo: mi}, nil
	})
}

func (a *Async[N]) GetPatches(ctx context.Context, v1, v2 Version[N]) future.Future[[]patch.Patch] {
	return future.Go(func() ([]patch.Patch, error) {
		return a.graph.GetPatches(ctx, v1, v2)
	})
}

func (a *Async[N]) RecordMerge(ctx context.Context, mi *MergeInfo[N], newV Version[N], patches, confPatches []patch.Patch) future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		return struct{}{}, a.graph.RecordMerge(ctx, mi, newV, patches, confPatches)
	})
}

func (a *Async[N]) PutContent(ctx context.Context, v Version[N], data []byte) future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		return struct{}{}, a.graph.PutContent(ctx, v, data)
	})
}

func (a *Async[N]) GetContent(ctx context.Context, v Version[N]) future.Future[[]byte] {
	return future.Go(func() ([]byte, error) {
		return a.graph.GetContent(ctx, v)
	})
}

func (a *Async[N]) Reset(ctx context.Context) future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		return struct{}{}, a.graph.Reset(ctx)
	})
}
