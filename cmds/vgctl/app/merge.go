package app

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/vergraph/pkg/config"
	"github.com/mandelsoft/vergraph/pkg/patch"
	"github.com/mandelsoft/vergraph/pkg/versiongraph"
)

type strategyResult struct {
	V1          string        `json:"v1"`
	Ancestor    string        `json:"ancestor"`
	V2          string        `json:"v2"`
	D1          float64       `json:"d1"`
	D2          float64       `json:"d2"`
	Outstanding []patch.Patch `json:"outstanding"`
}

func newStrategyResult(mi *versiongraph.MergeInfo[string]) *strategyResult {
	d1, d2 := mi.Distances()
	return &strategyResult{
		V1:          mi.V1().ID,
		Ancestor:    mi.Ancestor().ID,
		V2:          mi.V2().ID,
		D1:          d1,
		D2:          d2,
		Outstanding: mi.Outstanding(),
	}
}

func (r *strategyResult) print(w io.Writer) error {
	fmt.Fprintf(w, "ancestor: %s\n", r.Ancestor)
	fmt.Fprintf(w, "V1:       %s (distance %g)\n", r.V1, r.D1)
	fmt.Fprintf(w, "V2:       %s (distance %g)\n", r.V2, r.D2)
	fmt.Fprintf(w, "outstanding patches:\n")
	return printPatches(w, r.Outstanding)
}

type Strategy struct {
	cmd      *cobra.Command
	mainopts *Options
	resolve  bool
}

func NewStrategy(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy <version> <version> <options>",
		Short: "show the merge strategy for two versions",
		Long: `
Determine the common ancestor of two versions and the order of
the branches for a merge. The outstanding patches are the patches
leading from the ancestor to V2, which have to be applied to V1.
`,
		TraverseChildren: true,
	}
	c := &Strategy{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	cmd.Flags().BoolVarP(&c.resolve, "resolve", "r", false, "keep the given branch order")
	return cmd
}

func (c *Strategy) Run(args []string) error {
	vers, err := versions(args, 2)
	if err != nil {
		return err
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		_, _, _, mi, err := vg.GetMergeStrategy(ctx, vers[0], vers[1], c.resolve)
		if err != nil {
			return err
		}
		r := newStrategyResult(mi)
		return c.mainopts.Print(c.cmd.OutOrStdout(), r, r.print)
	})
}

////////////////////////////////////////////////////////////////////////////////

type Merge struct {
	cmd       *cobra.Command
	mainopts  *Options
	resolve   bool
	id        string
	conflicts []int
}

func NewMerge(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <version> <version> <options>",
		Short: "record the merge of two versions",
		Long: `
Record a new version as merge of two versions. All outstanding
patches are accepted, except the ones selected by their index
with the --conflict option. The id of the new version defaults
to a generated UUID.
`,
		Example:          `  vgctl merge v3 v5 --conflict 0,2 --id v6`,
		TraverseChildren: true,
	}
	c := &Merge{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	flags := cmd.Flags()
	flags.BoolVarP(&c.resolve, "resolve", "r", false, "keep the given branch order")
	flags.StringVarP(&c.id, "id", "i", "", "id of the merged version")
	flags.IntSliceVarP(&c.conflicts, "conflict", "C", nil, "indices of conflicting outstanding patches")
	return cmd
}

func (c *Merge) Run(args []string) error {
	vers, err := versions(args, 2)
	if err != nil {
		return err
	}
	id := c.id
	if id == "" {
		id = uuid.NewString()
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		_, _, _, mi, err := vg.GetMergeStrategy(ctx, vers[0], vers[1], c.resolve)
		if err != nil {
			return err
		}
		accepted, conflicting, err := partition(mi.Outstanding(), c.conflicts)
		if err != nil {
			return err
		}
		err = vg.RecordMerge(ctx, mi, V(id), accepted, conflicting)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.cmd.OutOrStdout(), "%s\n", id)
		return nil
	})
}

func partition(outstanding []patch.Patch, conflicts []int) ([]patch.Patch, []patch.Patch, error) {
	selected := sets.New[int](conflicts...)
	for _, i := range conflicts {
		if i < 0 || i >= len(outstanding) {
			return nil, nil, fmt.Errorf("conflict index %d out of range (%d outstanding patches)", i, len(outstanding))
		}
	}
	var accepted, conflicting []patch.Patch
	for i, p := range outstanding {
		if selected.Has(i) {
			conflicting = append(conflicting, p)
		} else {
			accepted = append(accepted, p)
		}
	}
	return accepted, conflicting, nil
}
