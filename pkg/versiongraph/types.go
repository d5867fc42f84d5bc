package versiongraph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mandelsoft/vergraph/pkg/patch"
)

var (
	ErrInvalidMerge      = errors.New("invalid merge")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrCycle             = errors.New("cycle in version graph")
)

// Weight is the additive edit distance of a transition.
type Weight = float64

// Version is a point in time state of a versioned object,
// identified by a graph node.
type Version[N comparable] struct {
	ID N `json:"id"`
}

func NewVersion[N comparable](id N) Version[N] {
	return Version[N]{ID: id}
}

func (v Version[N]) String() string {
	return fmt.Sprintf("%v", v.ID)
}

// MergeInfo carries the result of a merge strategy
// computation to the recording of the merge.
type MergeInfo[N comparable] struct {
	x, v1, v2   Version[N]
	d1, d2      Weight
	outstanding []patch.Patch
}

// Ancestor returns the merge base.
func (m *MergeInfo[N]) Ancestor() Version[N] {
	return m.x
}

func (m *MergeInfo[N]) V1() Version[N] {
	return m.v1
}

func (m *MergeInfo[N]) V2() Version[N] {
	return m.v2
}

// Distances returns the weighted distances from the ancestor to V1 and V2.
func (m *MergeInfo[N]) Distances() (Weight, Weight) {
	return m.d1, m.d2
}

// Outstanding returns the patches from the ancestor to V2, which
// have to be split into accepted and conflicting ones for the merge.
func (m *MergeInfo[N]) Outstanding() []patch.Patch {
	return slices.Clone(m.outstanding)
}

func (m *MergeInfo[N]) String() string {
	return fmt.Sprintf("merge %s(%g) <- %s -> %s(%g)", m.v1, m.d1, m.x, m.v2, m.d2)
}

// Strategy is the result of a merge strategy computation.
type Strategy[N comparable] struct {
	V1        Version[N]
	X         Version[N]
	V2        Version[N]
	MergeInfo *MergeInfo[N]
}

// Transition describes a recorded edge.
type Transition[N comparable] struct {
	Label   string        `json:"label"`
	Kind    string        `json:"kind"`
	Target  Version[N]    `json:"target"`
	Weight  Weight        `json:"weight"`
	Patches []patch.Patch `json:"patches"`
}
