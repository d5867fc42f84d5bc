package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/mandelsoft/vergraph/pkg/graphdb"
)

type key[N, L comparable] struct {
	node  N
	label L
}

// Backend keeps the graph in memory.
type Backend[N, L comparable] struct {
	lock     sync.RWMutex
	forward  map[key[N, L]]N
	backward map[key[N, L]]N
	out      map[N][]graphdb.Edge[N, L]
	in       map[N][]graphdb.Edge[N, L]
	records  map[string][]byte
}

var _ graphdb.Backend[string, string] = (*Backend[string, string])(nil)

func New[N, L comparable]() *Backend[N, L] {
	b := &Backend[N, L]{}
	b.reset()
	return b
}

// NewGraphDB provides a graph database working on a new memory backend.
func NewGraphDB[N, L comparable](opts ...graphdb.Option[N, L]) *graphdb.GraphDB[N, L] {
	return graphdb.New[N, L](New[N, L](), opts...)
}

func (b *Backend[N, L]) reset() {
	b.forward = map[key[N, L]]N{}
	b.backward = map[key[N, L]]N{}
	b.out = map[N][]graphdb.Edge[N, L]{}
	b.in = map[N][]graphdb.Edge[N, L]{}
	b.records = map[string][]byte{}
}

func (b *Backend[N, L]) Insert(ctx context.Context, e graphdb.Edge[N, L]) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	fk := key[N, L]{e.From, e.Label}
	if to, ok := b.forward[fk]; ok && to == e.To {
		return nil
	}
	b.forward[fk] = e.To
	b.backward[key[N, L]{e.To, e.Label}] = e.From
	b.out[e.From] = append(b.out[e.From], e)
	b.in[e.To] = append(b.in[e.To], e)
	return nil
}

func (b *Backend[N, L]) Lookup(ctx context.Context, from N, label L) (N, bool, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	to, ok := b.forward[key[N, L]{from, label}]
	return to, ok, nil
}

func (b *Backend[N, L]) LookupBack(ctx context.Context, to N, label L) (N, bool, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	from, ok := b.backward[key[N, L]{to, label}]
	return from, ok, nil
}

func (b *Backend[N, L]) Outgoing(ctx context.Context, from N) ([]graphdb.Edge[N, L], error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return slices.Clone(b.out[from]), nil
}

func (b *Backend[N, L]) Incoming(ctx context.Context, to N) ([]graphdb.Edge[N, L], error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return slices.Clone(b.in[to]), nil
}

func (b *Backend[N, L]) PutRecord(ctx context.Context, id string, data []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.records[id] = slices.Clone(data)
	return nil
}

func (b *Backend[N, L]) GetRecord(ctx context.Context, id string) ([]byte, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	data, ok := b.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: record %s", graphdb.ErrNotFound, id)
	}
	return slices.Clone(data), nil
}

func (b *Backend[N, L]) Reset(ctx context.Context) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.reset()
	return nil
}
