package graphdb

import (
	"context"
	"fmt"
)

// search is one side of the bidirectional backward search.
type search[N, L comparable] struct {
	origin   N
	depth    int
	dist     map[N]int
	next     map[N]PathStep[N, L]
	frontier []N
}

func newSearch[N, L comparable](n N) *search[N, L] {
	return &search[N, L]{
		origin:   n,
		dist:     map[N]int{n: 0},
		next:     map[N]PathStep[N, L]{},
		frontier: []N{n},
	}
}

func (s *search[N, L]) active() bool {
	return len(s.frontier) > 0
}

// path returns the forward steps from n to the origin of the search.
func (s *search[N, L]) path(n N) []PathStep[N, L] {
	result := []PathStep[N, L]{}
	for n != s.origin {
		step := s.next[n]
		result = append(result, step)
		n = step.Node
	}
	return result
}

type meeting[N comparable] struct {
	node  N
	sum   int
	found bool
}

func (m *meeting[N]) offer(n N, sum int) {
	if !m.found || sum < m.sum {
		m.node, m.sum, m.found = n, sum, true
	}
}

// FindCommonAncestor searches backwards from a and b at the same time
// and returns the common ancestor with the minimal sum of hop distances,
// together with the forward paths from the ancestor to a and to b.
// The side with the lower depth is expanded next (a first on ties) and
// among meeting points with equal sums the first one discovered wins.
func (g *GraphDB[N, L]) FindCommonAncestor(ctx context.Context, a, b N) (N, []PathStep[N, L], []PathStep[N, L], error) {
	if a == b {
		return a, []PathStep[N, L]{}, []PathStep[N, L]{}, nil
	}
	sa := newSearch[N, L](a)
	sb := newSearch[N, L](b)

	var best meeting[N]
	for sa.active() || sb.active() {
		if best.found && best.sum <= lowerBound(sa, sb) {
			break
		}
		s, o := sa, sb
		if !sa.active() || (sb.active() && sb.depth < sa.depth) {
			s, o = sb, sa
		}
		err := g.expand(ctx, s, o, &best)
		if err != nil {
			var zero N
			return zero, nil, nil, err
		}
	}
	if !best.found {
		var zero N
		return zero, nil, nil, fmt.Errorf("%w: %v and %v", ErrNoCommonAncestor, a, b)
	}
	log.Trace("common ancestor of {{a}} and {{b}} is {{ancestor}}", "a", a, "b", b, "ancestor", best.node, "distance", best.sum)
	return best.node, sa.path(best.node), sb.path(best.node), nil
}

// lowerBound is the minimal distance sum a meeting point
// not yet found could have.
func lowerBound[N, L comparable](sa, sb *search[N, L]) int {
	bound := -1
	for _, s := range []*search[N, L]{sa, sb} {
		if s.active() && (bound < 0 || s.depth+1 < bound) {
			bound = s.depth + 1
		}
	}
	return bound
}

// expand extends the search s by one layer and records nodes
// already reached by the other side o as meeting points.
func (g *GraphDB[N, L]) expand(ctx context.Context, s, o *search[N, L], best *meeting[N]) error {
	var next []N
	for _, n := range s.frontier {
		edges, err := g.backend.Incoming(ctx, n)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if _, ok := s.dist[e.From]; ok {
				continue
			}
			s.dist[e.From] = s.depth + 1
			s.next[e.From] = PathStep[N, L]{Label: e.Label, Node: n}
			next = append(next, e.From)
			if d, ok := o.dist[e.From]; ok {
				best.offer(e.From, s.depth+1+d)
			}
		}
	}
	s.depth++
	s.frontier = next
	return nil
}
