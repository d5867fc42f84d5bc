package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/mandelsoft/vergraph/pkg/bucket"
	bfs "github.com/mandelsoft/vergraph/pkg/bucket/filesystem"
	bmem "github.com/mandelsoft/vergraph/pkg/bucket/memory"
	bredis "github.com/mandelsoft/vergraph/pkg/bucket/redis"
	"github.com/mandelsoft/vergraph/pkg/graphdb"
	gfs "github.com/mandelsoft/vergraph/pkg/graphdb/filesystem"
	gmem "github.com/mandelsoft/vergraph/pkg/graphdb/memory"
	"github.com/mandelsoft/vergraph/pkg/graphdb/sqlite"
	"github.com/mandelsoft/vergraph/pkg/pool"
	"github.com/mandelsoft/vergraph/pkg/scheduler"
	"github.com/mandelsoft/vergraph/pkg/utils"
	"github.com/mandelsoft/vergraph/pkg/versiongraph"
)

// Instance is a version graph wired according to a configuration.
type Instance struct {
	*versiongraph.VersionGraph[string]
	Scheduler *scheduler.Scheduler

	pool    *pool.Pool
	closers []func() error
}

// Open creates the configured stores and the version graph
// on top of them. The worker pool serving the scheduler runs
// until the context is cancelled or the instance is closed.
func Open(ctx context.Context, cfg *Config, lctx logging.Context, fss ...vfs.FileSystem) (*Instance, error) {
	fs := utils.OptionalDefaulted(vfs.FileSystem(osfs.OsFs), fss...)
	if lctx == nil {
		lctx = logging.DefaultContext()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	i := &Instance{
		pool: pool.NewPool(lctx, "scheduler", get(cfg.Workers, 1)),
	}
	i.pool.Start(ctx)
	i.Scheduler = scheduler.New(i.pool)

	backend, err := i.openGraph(cfg, fs)
	if err != nil {
		i.Close()
		return nil, err
	}
	store, err := i.openBucket(ctx, cfg, fs)
	if err != nil {
		i.Close()
		return nil, err
	}

	var opts []graphdb.Option[string, string]
	if get(cfg.WeightedPaths, false) {
		opts = append(opts, graphdb.WithEdgeWeight[string, string](func(ctx context.Context, e graphdb.Edge[string, string]) (float64, error) {
			return i.EdgeWeight(ctx, e)
		}))
	}
	i.VersionGraph = versiongraph.New[string](graphdb.New[string, string](backend, opts...), store, versiongraph.WithLogging(lctx))
	log.Info("opened version graph", "graph", get(cfg.Graph.Type, TYPE_MEMORY), "bucket", get(cfg.Bucket.Type, TYPE_MEMORY))
	return i, nil
}

func (i *Instance) openGraph(cfg *Config, fs vfs.FileSystem) (graphdb.Backend[string, string], error) {
	path := get(cfg.Graph.Path, "")
	switch get(cfg.Graph.Type, TYPE_MEMORY) {
	case TYPE_FILESYSTEM:
		return gfs.New[string, string](path, i.Scheduler, fs)
	case TYPE_SQLITE:
		b, err := sqlite.Open[string, string](path)
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, b.Close)
		return b, nil
	default:
		return gmem.New[string, string](), nil
	}
}

func (i *Instance) openBucket(ctx context.Context, cfg *Config, fs vfs.FileSystem) (bucket.Store, error) {
	b := &cfg.Bucket
	switch get(b.Type, TYPE_MEMORY) {
	case TYPE_FILESYSTEM:
		return bfs.New(get(b.Path, ""), get(b.Compress, false), fs)
	case TYPE_REDIS:
		s, err := bredis.Connect(ctx, get(b.Address, ""), get(b.Password, ""), get(b.DB, 0), get(b.Prefix, ""))
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, s.Close)
		return s, nil
	default:
		return bmem.New(), nil
	}
}

// Close shuts down the worker pool and releases the stores.
func (i *Instance) Close() error {
	var errs []error
	for _, c := range i.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	i.pool.Shutdown()
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing version graph: %w", err)
	}
	return nil
}
