package versiongraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mandelsoft/vergraph/pkg/graphdb"
	"github.com/mandelsoft/vergraph/pkg/patch"
	"github.com/mandelsoft/vergraph/pkg/utils"
)

const (
	KIND_TRANS = "trans"
	KIND_MERGE = "merge"
)

// edgeKey is the identity of an edge. Its digest is used
// as label of the edge in the graph.
type edgeKey[N comparable] struct {
	Kind    string          `json:"kind"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Patches json.RawMessage `json:"patches"`
	// merge edges additionally replay the path from Base to Target
	Base   *N `json:"base,omitempty"`
	Target *N `json:"target,omitempty"`
}

// record is the bookkeeping kept for every edge.
type record[N comparable] struct {
	edgeKey[N]
	Weight Weight `json:"weight"`
}

func newRecord[N comparable](kind string, from, to N, patches []patch.Patch, w Weight) (*record[N], error) {
	data, err := patch.EncodeList(patches)
	if err != nil {
		return nil, err
	}
	return &record[N]{
		edgeKey: edgeKey[N]{
			Kind:    kind,
			From:    utils.HashData(from),
			To:      utils.HashData(to),
			Patches: data,
		},
		Weight: w,
	}, nil
}

func (r *record[N]) Label() (string, error) {
	data, err := utils.CanonicalJSON(&r.edgeKey)
	if err != nil {
		return "", err
	}
	return patch.DigestData(data), nil
}

func edgeId(from string, label string) string {
	return fmt.Sprintf("edge/%s/%s", from, label)
}

func pairId(from, to string) string {
	return fmt.Sprintf("pair/%s/%s", from, to)
}

func contentId(v string) string {
	return fmt.Sprintf("content/%s", v)
}

func (g *VersionGraph[N]) storeRecord(ctx context.Context, label string, r *record[N]) error {
	data, err := utils.CanonicalJSON(r)
	if err != nil {
		return err
	}
	return g.graph.PutRecord(ctx, edgeId(r.From, label), data)
}

func (g *VersionGraph[N]) loadRecord(ctx context.Context, from N, label string) (*record[N], error) {
	data, err := g.graph.GetRecord(ctx, edgeId(utils.HashData(from), label))
	if err != nil {
		if errors.Is(err, graphdb.ErrNotFound) {
			return nil, fmt.Errorf("missing record for edge %v -%s->: %w", from, label, err)
		}
		return nil, err
	}
	var r record[N]
	err = json.Unmarshal(data, &r)
	if err != nil {
		return nil, fmt.Errorf("corrupted record for edge %v -%s->: %w", from, label, err)
	}
	return &r, nil
}

// pairLabel returns the label of the edge recorded between two
// versions, ok is false if there is none.
func (g *VersionGraph[N]) pairLabel(ctx context.Context, r *record[N]) (label string, ok bool, err error) {
	data, err := g.graph.GetRecord(ctx, pairId(r.From, r.To))
	if err != nil {
		if errors.Is(err, graphdb.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}
