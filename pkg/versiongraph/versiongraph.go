package versiongraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/mandelsoft/logging"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/vergraph/pkg/bucket"
	"github.com/mandelsoft/vergraph/pkg/graphdb"
	"github.com/mandelsoft/vergraph/pkg/locks"
	"github.com/mandelsoft/vergraph/pkg/patch"
	"github.com/mandelsoft/vergraph/pkg/utils"
)

var REALM = logging.DefineRealm("vergraph/versiongraph", "version graph")

type Option func(o *options)

type options struct {
	scheme *patch.Scheme
	lctx   logging.Context
}

// WithScheme sets the scheme used to decode recorded patches.
func WithScheme(s *patch.Scheme) Option {
	return func(o *options) {
		o.scheme = s
	}
}

func WithLogging(lctx logging.Context) Option {
	return func(o *options) {
		o.lctx = lctx
	}
}

// VersionGraph records versions as nodes of a graph, whose edges
// carry patches and weights. Edge records are kept as records of
// the graph backend, version content in a bucket store.
type VersionGraph[N comparable] struct {
	logging.UnboundLogger
	graph  *graphdb.GraphDB[N, string]
	bucket bucket.Store
	scheme *patch.Scheme
	locks  *locks.ElementLocks[N]
}

func New[N comparable](g *graphdb.GraphDB[N, string], b bucket.Store, opts ...Option) *VersionGraph[N] {
	o := options{
		scheme: patch.DefaultScheme,
		lctx:   logging.DefaultContext(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &VersionGraph[N]{
		UnboundLogger: logging.DynamicLogger(o.lctx, REALM),
		graph:         g,
		bucket:        b,
		scheme:        o.scheme,
		locks:         locks.NewElementLocks[N](),
	}
}

func (g *VersionGraph[N]) Graph() *graphdb.GraphDB[N, string] {
	return g.graph
}

// RecordTrans records the transition v1 -(p,w)-> v2.
// Recording the identical transition again is a no-op, a
// different transition between the same versions is rejected
// with graphdb.ErrDuplicateEdge. Transitions closing a cycle
// are rejected with ErrInvalidTransition.
func (g *VersionGraph[N]) RecordTrans(ctx context.Context, v1 Version[N], p patch.Patch, w Weight, v2 Version[N]) error {
	r, err := newRecord(KIND_TRANS, v1.ID, v2.ID, []patch.Patch{p}, w)
	if err != nil {
		return err
	}
	err = g.locks.Lock(ctx, v2.ID)
	if err != nil {
		return err
	}
	defer g.locks.Unlock(v2.ID)

	e, err := g.checkEdge(ctx, v1, v2, r)
	if err != nil || e == nil {
		return err
	}
	return g.writeEdge(ctx, e)
}

// pendingEdge is a checked edge not yet written.
type pendingEdge[N comparable] struct {
	from, to Version[N]
	label    string
	record   *record[N]
}

// checkEdge checks whether v1 -r-> v2 can be recorded without
// writing anything. It returns nil if the identical edge is
// already recorded.
func (g *VersionGraph[N]) checkEdge(ctx context.Context, v1, v2 Version[N], r *record[N]) (*pendingEdge[N], error) {
	if v1.ID == v2.ID {
		return nil, fmt.Errorf("%w: %s to itself", ErrInvalidTransition, v1)
	}
	label, err := r.Label()
	if err != nil {
		return nil, err
	}

	old, ok, err := g.pairLabel(ctx, r)
	if err != nil {
		return nil, err
	}
	if ok {
		if old != label {
			return nil, fmt.Errorf("%w: %s -> %s already recorded with different patches", graphdb.ErrDuplicateEdge, v1, v2)
		}
		o, err := g.loadRecord(ctx, v1.ID, label)
		if err != nil {
			return nil, err
		}
		if o.Weight != r.Weight {
			return nil, fmt.Errorf("%w: %s -> %s already recorded with weight %g", graphdb.ErrDuplicateEdge, v1, v2, o.Weight)
		}
		return nil, nil
	}

	_, err = g.graph.CheckEdge(ctx, v1.ID, label, v2.ID)
	if err != nil {
		return nil, err
	}
	_, err = g.graph.FindPath(ctx, v2.ID, v1.ID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s -> %s would close a cycle", ErrInvalidTransition, v1, v2)
	case !errors.Is(err, graphdb.ErrNoPath):
		return nil, err
	}
	return &pendingEdge[N]{from: v1, to: v2, label: label, record: r}, nil
}

func (g *VersionGraph[N]) writeEdge(ctx context.Context, e *pendingEdge[N]) error {
	r := e.record
	g.Debug("recording {{kind}} {{from}} -> {{to}}", "kind", r.Kind, "from", e.from.String(), "to", e.to.String(), "label", e.label, "weight", r.Weight)
	err := g.storeRecord(ctx, e.label, r)
	if err != nil {
		return err
	}
	err = g.graph.AddEdge(ctx, e.from.ID, e.label, e.to.ID)
	if err != nil {
		return err
	}
	return g.graph.PutRecord(ctx, pairId(r.From, r.To), []byte(e.label))
}

// GetMergeStrategy determines the common ancestor x of v1 and v2 and
// the branch order for a merge. Without resolve the branch with the larger
// weighted distance from x becomes V1 (v1 on ties), with resolve V1 is v1
// and V2 is v2.
func (g *VersionGraph[N]) GetMergeStrategy(ctx context.Context, v1, v2 Version[N], resolve bool) (Version[N], Version[N], Version[N], *MergeInfo[N], error) {
	var none Version[N]

	x, p1, p2, err := g.graph.FindCommonAncestor(ctx, v1.ID, v2.ID)
	if err != nil {
		return none, none, none, nil, err
	}
	d1, err := g.distance(ctx, x, p1)
	if err != nil {
		return none, none, none, nil, err
	}
	d2, err := g.distance(ctx, x, p2)
	if err != nil {
		return none, none, none, nil, err
	}
	if !resolve && d2 > d1 {
		v1, v2 = v2, v1
		d1, d2 = d2, d1
	}
	mi := &MergeInfo[N]{
		x:  NewVersion(x),
		v1: v1,
		v2: v2,
		d1: d1,
		d2: d2,
	}
	mi.outstanding, err = g.GetPatches(ctx, mi.x, v2)
	if err != nil {
		return none, none, none, nil, err
	}
	g.Debug("merge strategy {{strategy}}", "strategy", mi.String())
	return v1, mi.x, v2, mi, nil
}

func (g *VersionGraph[N]) distance(ctx context.Context, from N, path []graphdb.PathStep[N, string]) (Weight, error) {
	var sum Weight
	for _, s := range path {
		r, err := g.loadRecord(ctx, from, s.Label)
		if err != nil {
			return 0, err
		}
		sum += r.Weight
		from = s.Node
	}
	return sum, nil
}

// GetPatches returns the patches along the shortest path from v1 to v2.
// Merge edges are expanded to their inverted conflicts followed by
// the patches of the replayed branch.
func (g *VersionGraph[N]) GetPatches(ctx context.Context, v1, v2 Version[N]) ([]patch.Patch, error) {
	return g.getPatches(ctx, v1, v2, sets.New[string]())
}

// getPatches keeps the merge edges currently expanded, a merge
// edge required again for its own expansion is reported as ErrCycle.
func (g *VersionGraph[N]) getPatches(ctx context.Context, v1, v2 Version[N], expanding sets.Set[string]) ([]patch.Patch, error) {
	labels, err := g.graph.FindPath(ctx, v1.ID, v2.ID)
	if err != nil {
		return nil, err
	}

	result := []patch.Patch{}
	cur := v1.ID
	for _, l := range labels {
		r, err := g.loadRecord(ctx, cur, l)
		if err != nil {
			return nil, err
		}
		list, err := g.scheme.DecodeList(r.Patches)
		if err != nil {
			return nil, fmt.Errorf("edge %v -%s->: %w", cur, l, err)
		}
		result = append(result, list...)

		if r.Kind == KIND_MERGE {
			if r.Base == nil || r.Target == nil {
				return nil, fmt.Errorf("corrupted merge record for edge %v -%s->", cur, l)
			}
			id := edgeId(r.From, l)
			if expanding.Has(id) {
				return nil, fmt.Errorf("%w: merge %v -%s-> requires itself", ErrCycle, cur, l)
			}
			expanding.Insert(id)
			sub, err := g.getPatches(ctx, NewVersion(*r.Base), NewVersion(*r.Target), expanding)
			expanding.Delete(id)
			if err != nil {
				return nil, fmt.Errorf("expanding merge %v -%s->: %w", cur, l, err)
			}
			result = append(result, sub...)
		}
		cur, err = g.graph.QueryEdge(ctx, cur, l)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// RecordMerge records newV as merge of V1 and V2 of the merge info.
// patches are the accepted outstanding patches of V2, confPatches
// the conflicting ones. Together they must be the outstanding patches.
// V1 -> newV carries the accepted patches, V2 -> newV undoes the
// conflicts and replays the path from the ancestor to V1.
func (g *VersionGraph[N]) RecordMerge(ctx context.Context, mi *MergeInfo[N], newV Version[N], patches, confPatches []patch.Patch) error {
	if mi == nil {
		return fmt.Errorf("%w: no merge info", ErrInvalidMerge)
	}
	if newV.ID == mi.v1.ID || newV.ID == mi.v2.ID {
		return fmt.Errorf("%w: merge result %s must be a new version", ErrInvalidMerge, newV)
	}
	err := checkPartition(mi.outstanding, patches, confPatches)
	if err != nil {
		return err
	}

	t, err := newRecord(KIND_TRANS, mi.v1.ID, newV.ID, patches, mi.d2)
	if err != nil {
		return err
	}
	var m *record[N]
	if mi.v1.ID != mi.v2.ID {
		m, err = newRecord(KIND_MERGE, mi.v2.ID, newV.ID, patch.InvertAll(confPatches), mi.d1)
		if err != nil {
			return err
		}
		m.Base = &mi.x.ID
		m.Target = &mi.v1.ID
	}

	err = g.locks.Lock(ctx, newV.ID)
	if err != nil {
		return err
	}
	defer g.locks.Unlock(newV.ID)

	// both edges are checked before any of them is written
	var pending []*pendingEdge[N]
	e, err := g.checkEdge(ctx, mi.v1, newV, t)
	if err != nil {
		return err
	}
	pending = append(pending, e)
	if m != nil {
		e, err = g.checkEdge(ctx, mi.v2, newV, m)
		if err != nil {
			return err
		}
		pending = append(pending, e)
	}

	g.Debug("recording merge {{version}}", "version", newV.String(), "merge", mi.String(), "accepted", len(patches), "conflicts", len(confPatches))
	for _, e := range pending {
		if e == nil {
			continue
		}
		err = g.writeEdge(ctx, e)
		if err != nil {
			return err
		}
	}
	return nil
}

// checkPartition checks whether accepted and conflicting patches
// together are a permutation of the outstanding patches.
func checkPartition(outstanding, accepted, conflicting []patch.Patch) error {
	count := map[string]int{}
	for _, p := range outstanding {
		data, err := patch.Encode(p)
		if err != nil {
			return err
		}
		count[string(data)]++
	}
	for _, list := range [][]patch.Patch{accepted, conflicting} {
		for _, p := range list {
			data, err := patch.Encode(p)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidMerge, err)
			}
			if count[string(data)] == 0 {
				return fmt.Errorf("%w: patch %s is not outstanding", ErrInvalidMerge, string(data))
			}
			count[string(data)]--
		}
	}
	for p, n := range count {
		if n > 0 {
			return fmt.Errorf("%w: outstanding patch %s neither accepted nor conflicting", ErrInvalidMerge, p)
		}
	}
	return nil
}

// PutContent stores the payload of a version.
func (g *VersionGraph[N]) PutContent(ctx context.Context, v Version[N], data []byte) error {
	return g.bucket.Put(ctx, contentId(utils.HashData(v.ID)), data)
}

// GetContent returns the payload of a version, bucket.ErrNotFound
// if no content is stored for it.
func (g *VersionGraph[N]) GetContent(ctx context.Context, v Version[N]) ([]byte, error) {
	return g.bucket.Get(ctx, contentId(utils.HashData(v.ID)))
}

// Reset removes all versions and their content.
func (g *VersionGraph[N]) Reset(ctx context.Context) error {
	err := g.graph.Clear(ctx)
	if err != nil {
		return err
	}
	return g.bucket.Reset(ctx)
}

// EdgeWeight provides the recorded weight of an edge.
// It can be used as weight function for the graph.
func (g *VersionGraph[N]) EdgeWeight(ctx context.Context, e graphdb.Edge[N, string]) (float64, error) {
	r, err := g.loadRecord(ctx, e.From, e.Label)
	if err != nil {
		return 0, err
	}
	return r.Weight, nil
}

// Transitions lists the recorded outgoing transitions of a version.
func (g *VersionGraph[N]) Transitions(ctx context.Context, v Version[N]) ([]Transition[N], error) {
	edges, err := g.graph.Backend().Outgoing(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	var result []Transition[N]
	for _, e := range edges {
		r, err := g.loadRecord(ctx, e.From, e.Label)
		if err != nil {
			return nil, err
		}
		t := Transition[N]{
			Label:  e.Label,
			Kind:   r.Kind,
			Target: NewVersion(e.To),
			Weight: r.Weight,
		}
		t.Patches, err = g.scheme.DecodeList(r.Patches)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}
