package filesystem

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"sigs.k8s.io/yaml"

	"github.com/mandelsoft/vergraph/pkg/graphdb"
	"github.com/mandelsoft/vergraph/pkg/scheduler"
	"github.com/mandelsoft/vergraph/pkg/utils"
)

var REALM = logging.DefineRealm("vergraph/graphdb/filesystem", "filesystem based graph store")

var log = logging.DynamicLogger(logging.DefaultContext(), REALM)

const (
	FORWARD  = "forward"
	BACKWARD = "backward"
	RECORDS  = "records"
	META     = "meta.yaml"
)

// record is the file content of an index entry.
type record[N, L comparable] struct {
	Seq uint64 `json:"seq"`
	graphdb.Edge[N, L]
}

type meta struct {
	Seq uint64 `json:"seq"`
}

// Backend stores every index entry as a yaml file. The forward
// entry of an edge is stored under forward/<hash(from)>/<hash(label)>.yaml,
// the backward entry under backward/<hash(to)>/<hash(label)>.yaml.
// Records are kept as plain files under records/<hash(id)>.
type Backend[N, L comparable] struct {
	lock  sync.RWMutex
	path  string
	fs    vfs.FileSystem
	sched *scheduler.Scheduler
	seq   uint64
}

var _ graphdb.Backend[string, string] = (*Backend[string, string])(nil)

func New[N, L comparable](path string, sched *scheduler.Scheduler, fss ...vfs.FileSystem) (*Backend[N, L], error) {
	fs := utils.OptionalDefaulted(vfs.FileSystem(osfs.OsFs), fss...)
	if sched == nil {
		sched = scheduler.New()
	}

	err := fs.MkdirAll(path, 0o700)
	if err != nil && !errors.Is(err, vfs.ErrExist) {
		return nil, err
	}
	b := &Backend[N, L]{path: path, fs: fs, sched: sched}

	data, err := vfs.ReadFile(fs, b.Path(META))
	if err == nil {
		var m meta
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("corrupted graph meta data in %s: %w", path, err)
		}
		b.seq = m.Seq
	} else if !errors.Is(err, vfs.ErrNotExist) {
		return nil, err
	}
	log.Info("opened graph store {{path}}", "path", path, "edges", b.seq)
	return b, nil
}

func (b *Backend[N, L]) Path(path ...string) string {
	return filepath.Join(append([]string{b.path}, path...)...)
}

func (b *Backend[N, L]) entry(index string, node N, label L) string {
	return b.Path(index, utils.HashData(node), utils.HashData(label)+".yaml")
}

func (b *Backend[N, L]) Insert(ctx context.Context, e graphdb.Edge[N, L]) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	b.seq++
	r := &record[N, L]{Seq: b.seq, Edge: e}
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	m, err := yaml.Marshal(&meta{Seq: b.seq})
	if err != nil {
		return err
	}
	err = vfs.WriteFile(b.fs, b.Path(META), m, 0o600)
	if err != nil {
		return err
	}

	// both index partitions are written concurrently
	cond := fmt.Sprintf("%s/edge/%d", b.path, b.seq)
	fwd := scheduler.Condition(cond + "/" + FORWARD)
	bwd := scheduler.Condition(cond + "/" + BACKWARD)
	join, err := b.sched.Join(fwd, bwd)
	if err != nil {
		return err
	}
	var errs [2]error
	go func() {
		defer b.sched.Notify(fwd)
		errs[0] = b.write(b.entry(FORWARD, e.From, e.Label), data)
	}()
	go func() {
		defer b.sched.Notify(bwd)
		errs[1] = b.write(b.entry(BACKWARD, e.To, e.Label), data)
	}()
	// once started, the index must be completed regardless of ctx
	_, err = join.Wait(context.Background())
	if err != nil {
		return err
	}
	return errors.Join(errs[:]...)
}

func (b *Backend[N, L]) write(path string, data []byte) error {
	err := b.fs.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return err
	}
	return vfs.WriteFile(b.fs, path, data, 0o600)
}

func (b *Backend[N, L]) read(path string) (*record[N, L], error) {
	data, err := vfs.ReadFile(b.fs, path)
	if err != nil {
		return nil, err
	}
	var r record[N, L]
	err = yaml.Unmarshal(data, &r)
	if err != nil {
		return nil, fmt.Errorf("corrupted graph store: %s: %w", path, err)
	}
	return &r, nil
}

func (b *Backend[N, L]) lookup(index string, node N, label L) (*record[N, L], error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	r, err := b.read(b.entry(index, node, label))
	if err != nil {
		if errors.Is(err, vfs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func (b *Backend[N, L]) Lookup(ctx context.Context, from N, label L) (N, bool, error) {
	r, err := b.lookup(FORWARD, from, label)
	if r == nil {
		var zero N
		return zero, false, err
	}
	return r.Edge.To, true, nil
}

func (b *Backend[N, L]) LookupBack(ctx context.Context, to N, label L) (N, bool, error) {
	r, err := b.lookup(BACKWARD, to, label)
	if r == nil {
		var zero N
		return zero, false, err
	}
	return r.Edge.From, true, nil
}

func (b *Backend[N, L]) list(index string, node N) ([]graphdb.Edge[N, L], error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	dir := b.Path(index, utils.HashData(node))
	entries, err := vfs.ReadDir(b.fs, dir)
	if err != nil {
		if errors.Is(err, vfs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var records []*record[N, L]
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		r, err := b.read(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	return utils.TransformSlice(records, func(r *record[N, L]) graphdb.Edge[N, L] { return r.Edge }), nil
}

func (b *Backend[N, L]) Outgoing(ctx context.Context, from N) ([]graphdb.Edge[N, L], error) {
	return b.list(FORWARD, from)
}

func (b *Backend[N, L]) Incoming(ctx context.Context, to N) ([]graphdb.Edge[N, L], error) {
	return b.list(BACKWARD, to)
}

func (b *Backend[N, L]) PutRecord(ctx context.Context, id string, data []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.write(b.Path(RECORDS, utils.HashData(id)), data)
}

func (b *Backend[N, L]) GetRecord(ctx context.Context, id string) ([]byte, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	data, err := vfs.ReadFile(b.fs, b.Path(RECORDS, utils.HashData(id)))
	if err != nil {
		if errors.Is(err, vfs.ErrNotExist) {
			return nil, fmt.Errorf("%w: record %s", graphdb.ErrNotFound, id)
		}
		return nil, err
	}
	return data, nil
}

func (b *Backend[N, L]) Reset(ctx context.Context) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, n := range []string{FORWARD, BACKWARD, RECORDS, META} {
		err := b.fs.RemoveAll(b.Path(n))
		if err != nil && !errors.Is(err, vfs.ErrNotExist) {
			return err
		}
	}
	b.seq = 0
	log.Debug("reset graph store {{path}}", "path", b.path)
	return nil
}
