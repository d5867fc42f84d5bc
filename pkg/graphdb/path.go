package graphdb

import (
	"container/heap"
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/vergraph/pkg/utils"
)

// FindPath returns the labels along a shortest path from x to y.
// Without an edge weight function the path with the minimal number
// of hops is chosen. Among equally short paths the first one
// discovered in edge insertion order wins.
func (g *GraphDB[N, L]) FindPath(ctx context.Context, x, y N) ([]L, error) {
	if x == y {
		return []L{}, nil
	}
	if g.weight != nil {
		return g.findWeightedPath(ctx, x, y)
	}

	visited := sets.New[N](x)
	parents := map[N]Edge[N, L]{}
	queue := []N{x}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		edges, err := g.backend.Outgoing(ctx, n)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if visited.Has(e.To) {
				continue
			}
			visited.Insert(e.To)
			parents[e.To] = e
			if e.To == y {
				return labels(parents, x, y), nil
			}
			queue = append(queue, e.To)
		}
	}
	return nil, fmt.Errorf("%w: from %v to %v", ErrNoPath, x, y)
}

func labels[N, L comparable](parents map[N]Edge[N, L], x, y N) []L {
	var result []L
	for n := y; n != x; {
		e := parents[n]
		result = append(result, e.Label)
		n = e.From
	}
	return utils.Reversed(result)
}

////////////////////////////////////////////////////////////////////////////////

type candidate[N comparable] struct {
	node N
	dist float64
	seq  int
}

type candidates[N comparable] []candidate[N]

func (c candidates[N]) Len() int { return len(c) }
func (c candidates[N]) Less(i, j int) bool {
	if c[i].dist != c[j].dist {
		return c[i].dist < c[j].dist
	}
	return c[i].seq < c[j].seq
}
func (c candidates[N]) Swap(i, j int) { c[i], c[j] = c[j], c[i] }
func (c *candidates[N]) Push(x any)   { *c = append(*c, x.(candidate[N])) }
func (c *candidates[N]) Pop() any {
	old := *c
	n := len(old)
	e := old[n-1]
	*c = old[:n-1]
	return e
}

func (g *GraphDB[N, L]) findWeightedPath(ctx context.Context, x, y N) ([]L, error) {
	done := sets.New[N]()
	dist := map[N]float64{x: 0}
	parents := map[N]Edge[N, L]{}
	queue := &candidates[N]{{node: x}}
	seq := 0

	for queue.Len() > 0 {
		c := heap.Pop(queue).(candidate[N])
		if done.Has(c.node) {
			continue
		}
		if c.node == y {
			return labels(parents, x, y), nil
		}
		done.Insert(c.node)

		edges, err := g.backend.Outgoing(ctx, c.node)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if done.Has(e.To) {
				continue
			}
			w, err := g.weight(ctx, e)
			if err != nil {
				return nil, err
			}
			if w < 0 {
				return nil, fmt.Errorf("negative weight %f for edge %s", w, e)
			}
			d := c.dist + w
			if old, ok := dist[e.To]; ok && old <= d {
				continue
			}
			dist[e.To] = d
			parents[e.To] = e
			seq++
			heap.Push(queue, candidate[N]{node: e.To, dist: d, seq: seq})
		}
	}
	return nil, fmt.Errorf("%w: from %v to %v", ErrNoPath, x, y)
}
