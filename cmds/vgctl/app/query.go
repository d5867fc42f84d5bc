package app

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mandelsoft/vergraph/pkg/config"
	"github.com/mandelsoft/vergraph/pkg/graphdb"
)

type Patches struct {
	cmd      *cobra.Command
	mainopts *Options
}

func NewPatches(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "patches <from> <to>",
		Short:            "show the patches leading from one version to another one",
		TraverseChildren: true,
	}
	c := &Patches{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	return cmd
}

func (c *Patches) Run(args []string) error {
	vers, err := versions(args, 2)
	if err != nil {
		return err
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		patches, err := vg.GetPatches(ctx, vers[0], vers[1])
		if err != nil {
			return err
		}
		return c.mainopts.Print(c.cmd.OutOrStdout(), patches, func(w io.Writer) error {
			return printPatches(w, patches)
		})
	})
}

////////////////////////////////////////////////////////////////////////////////

type Path struct {
	cmd      *cobra.Command
	mainopts *Options
}

func NewPath(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "path <from> <to>",
		Short:            "show the shortest path between two versions",
		TraverseChildren: true,
	}
	c := &Path{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	return cmd
}

func (c *Path) Run(args []string) error {
	vers, err := versions(args, 2)
	if err != nil {
		return err
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		g := vg.Graph()
		labels, err := g.FindPath(ctx, vers[0].ID, vers[1].ID)
		if err != nil {
			return err
		}
		steps := []graphdb.PathStep[string, string]{}
		cur := vers[0].ID
		for _, l := range labels {
			cur, err = g.QueryEdge(ctx, cur, l)
			if err != nil {
				return err
			}
			steps = append(steps, graphdb.PathStep[string, string]{Label: l, Node: cur})
		}
		return c.mainopts.Print(c.cmd.OutOrStdout(), steps, func(w io.Writer) error {
			fmt.Fprintf(w, "%s\n", vers[0])
			for _, s := range steps {
				fmt.Fprintf(w, "  -%s-> %s\n", short(s.Label), s.Node)
			}
			return nil
		})
	})
}

////////////////////////////////////////////////////////////////////////////////

type Ancestor struct {
	cmd      *cobra.Command
	mainopts *Options
}

type ancestorResult struct {
	Ancestor string                             `json:"ancestor"`
	PathA    []graphdb.PathStep[string, string] `json:"pathA"`
	PathB    []graphdb.PathStep[string, string] `json:"pathB"`
}

func NewAncestor(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "ancestor <version> <version>",
		Short:            "show the nearest common ancestor of two versions",
		TraverseChildren: true,
	}
	c := &Ancestor{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	return cmd
}

func (c *Ancestor) Run(args []string) error {
	vers, err := versions(args, 2)
	if err != nil {
		return err
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		x, pa, pb, err := vg.Graph().FindCommonAncestor(ctx, vers[0].ID, vers[1].ID)
		if err != nil {
			return err
		}
		r := &ancestorResult{Ancestor: x, PathA: pa, PathB: pb}
		return c.mainopts.Print(c.cmd.OutOrStdout(), r, func(w io.Writer) error {
			fmt.Fprintf(w, "%s\n", x)
			for i, p := range [][]graphdb.PathStep[string, string]{pa, pb} {
				fmt.Fprintf(w, "  to %s:", vers[i])
				for _, s := range p {
					fmt.Fprintf(w, " %s", s.Node)
				}
				fmt.Fprintln(w)
			}
			return nil
		})
	})
}

////////////////////////////////////////////////////////////////////////////////

type Transitions struct {
	cmd      *cobra.Command
	mainopts *Options
}

func NewTransitions(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "transitions <version>",
		Short:            "list the recorded transitions of a version",
		TraverseChildren: true,
	}
	c := &Transitions{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	return cmd
}

func (c *Transitions) Run(args []string) error {
	vers, err := versions(args, 1)
	if err != nil {
		return err
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		list, err := vg.Transitions(ctx, vers[0])
		if err != nil {
			return err
		}
		return c.mainopts.Print(c.cmd.OutOrStdout(), list, func(w io.Writer) error {
			for _, t := range list {
				fmt.Fprintf(w, "%s %s (%s, weight %g, %d patches)\n", short(t.Label), t.Target, t.Kind, t.Weight, len(t.Patches))
			}
			return nil
		})
	})
}

func short(label string) string {
	if len(label) > 12 {
		return label[:12]
	}
	return label
}
