package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mandelsoft/vergraph/pkg/config"
	"github.com/mandelsoft/vergraph/pkg/patch"
)

type Record struct {
	cmd *cobra.Command

	mainopts *Options
	weight   float64
}

func NewRecord(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <from> <patch> <to> <options>",
		Short: "record a transition",
		Long: `
Record the transition from one version to another one
described by a patch given as JSON object with a _type field.
`,
		Example:          `  vgctl record v1 '{"_type":"edit","line":3}' v2 --weight 2`,
		TraverseChildren: true,
	}

	c := &Record{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	flags := cmd.Flags()
	flags.Float64VarP(&c.weight, "weight", "w", 1, "weight of the transition")
	return cmd
}

func (c *Record) Run(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("source version, patch and target version required")
	}
	vers, err := versions([]string{args[0], args[2]}, 2)
	if err != nil {
		return err
	}
	p, err := patch.Decode([]byte(args[1]))
	if err != nil {
		return err
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		err := vg.RecordTrans(ctx, vers[0], p, c.weight, vers[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.cmd.OutOrStdout(), "recorded %s -> %s\n", vers[0], vers[1])
		return nil
	})
}
