package graphdb

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNoPath           = errors.New("no path")
	ErrNoCommonAncestor = errors.New("no common ancestor")
	ErrDuplicateEdge    = errors.New("duplicate edge")
)

// Edge is a directed labeled edge.
type Edge[N, L comparable] struct {
	From  N `json:"from"`
	Label L `json:"label"`
	To    N `json:"to"`
}

func (e Edge[N, L]) String() string {
	return fmt.Sprintf("%v -%v-> %v", e.From, e.Label, e.To)
}

// PathStep is one hop of a path: the label of the
// traversed edge and the node it leads to.
type PathStep[N, L comparable] struct {
	Label L `json:"l"`
	Node  N `json:"n"`
}

// RecordStore keeps opaque records next to the edges of a graph.
// They are used to store per edge bookkeeping of graph users.
type RecordStore interface {
	PutRecord(ctx context.Context, id string, data []byte) error
	// GetRecord returns ErrNotFound for unknown ids.
	GetRecord(ctx context.Context, id string) ([]byte, error)
}

// Backend is the storage contract for a graph.
// It keeps a forward index (from,label)->to and a backward
// index (to,label)->from. Uniqueness is checked by GraphDB
// before Insert is called, so a backend may store blindly.
type Backend[N, L comparable] interface {
	Insert(ctx context.Context, e Edge[N, L]) error
	// Lookup returns the target of (from,label), ok is false if there is no such edge.
	Lookup(ctx context.Context, from N, label L) (to N, ok bool, err error)
	// LookupBack returns the source of (to,label).
	LookupBack(ctx context.Context, to N, label L) (from N, ok bool, err error)
	// Outgoing lists the edges starting at a node in insertion order.
	Outgoing(ctx context.Context, from N) ([]Edge[N, L], error)
	// Incoming lists the edges ending at a node in insertion order.
	Incoming(ctx context.Context, to N) ([]Edge[N, L], error)
	RecordStore
	// Reset removes all edges and records.
	Reset(ctx context.Context) error
}

// WeightFunc determines the weight of an edge for weighted path searches.
type WeightFunc[N, L comparable] func(ctx context.Context, e Edge[N, L]) (float64, error)
