package graphdb

import (
	"context"
	"fmt"

	"github.com/mandelsoft/logging"

	"github.com/mandelsoft/vergraph/pkg/locks"
)

var REALM = logging.DefineRealm("vergraph/graphdb", "graph store")

var log = logging.DynamicLogger(logging.DefaultContext(), REALM)

type Option[N, L comparable] func(g *GraphDB[N, L])

// WithEdgeWeight switches FindPath to a weighted shortest path search.
func WithEdgeWeight[N, L comparable](f WeightFunc[N, L]) Option[N, L] {
	return func(g *GraphDB[N, L]) {
		g.weight = f
	}
}

// GraphDB is a directed labeled graph with unique forward
// and backward edge indices on top of a storage backend.
// Mutations are serialized.
type GraphDB[N, L comparable] struct {
	lock    locks.Mutex
	backend Backend[N, L]
	weight  WeightFunc[N, L]
}

func New[N, L comparable](b Backend[N, L], opts ...Option[N, L]) *GraphDB[N, L] {
	g := &GraphDB[N, L]{backend: b}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *GraphDB[N, L]) Backend() Backend[N, L] {
	return g.backend
}

// AddEdge adds an edge. Adding an existing edge again is a no-op,
// an edge conflicting with the forward or backward index of an
// existing one is rejected with ErrDuplicateEdge.
func (g *GraphDB[N, L]) AddEdge(ctx context.Context, from N, label L, to N) error {
	err := g.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer g.lock.Unlock()

	e := Edge[N, L]{From: from, Label: label, To: to}
	exists, err := g.checkEdge(ctx, e)
	if err != nil || exists {
		return err
	}
	log.Debug("adding edge {{edge}}", "edge", e.String())
	return g.backend.Insert(ctx, e)
}

// CheckEdge checks whether an edge could be added. exists reports
// an identical edge, a conflicting edge yields ErrDuplicateEdge.
func (g *GraphDB[N, L]) CheckEdge(ctx context.Context, from N, label L, to N) (exists bool, err error) {
	return g.checkEdge(ctx, Edge[N, L]{From: from, Label: label, To: to})
}

func (g *GraphDB[N, L]) checkEdge(ctx context.Context, e Edge[N, L]) (bool, error) {
	old, ok, err := g.backend.Lookup(ctx, e.From, e.Label)
	if err != nil {
		return false, err
	}
	if ok {
		if old == e.To {
			return true, nil
		}
		return false, fmt.Errorf("%w: %s conflicts with target %v", ErrDuplicateEdge, e, old)
	}
	old, ok, err = g.backend.LookupBack(ctx, e.To, e.Label)
	if err != nil {
		return false, err
	}
	if ok {
		return false, fmt.Errorf("%w: %s conflicts with source %v", ErrDuplicateEdge, e, old)
	}
	return false, nil
}

func (g *GraphDB[N, L]) QueryEdge(ctx context.Context, from N, label L) (N, error) {
	n, ok, err := g.backend.Lookup(ctx, from, label)
	if err != nil {
		return n, err
	}
	if !ok {
		return n, fmt.Errorf("%w: %v -%v->", ErrNotFound, from, label)
	}
	return n, nil
}

func (g *GraphDB[N, L]) QueryBackEdge(ctx context.Context, to N, label L) (N, error) {
	n, ok, err := g.backend.LookupBack(ctx, to, label)
	if err != nil {
		return n, err
	}
	if !ok {
		return n, fmt.Errorf("%w: -%v-> %v", ErrNotFound, label, to)
	}
	return n, nil
}

// PutRecord stores a record in the backend of the graph.
func (g *GraphDB[N, L]) PutRecord(ctx context.Context, id string, data []byte) error {
	return g.backend.PutRecord(ctx, id, data)
}

// GetRecord returns a record stored with PutRecord, or ErrNotFound.
func (g *GraphDB[N, L]) GetRecord(ctx context.Context, id string) ([]byte, error) {
	return g.backend.GetRecord(ctx, id)
}

// Clear removes all edges and records.
func (g *GraphDB[N, L]) Clear(ctx context.Context) error {
	err := g.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer g.lock.Unlock()
	return g.backend.Reset(ctx)
}
