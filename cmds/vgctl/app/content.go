package app

import (
	"context"
	"fmt"
	"io"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"

	"github.com/mandelsoft/vergraph/pkg/config"
)

func NewContent(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "content <cmd>",
		Short:            "manage version content",
		TraverseChildren: true,
	}
	cmd.AddCommand(NewContentPut(opts))
	cmd.AddCommand(NewContentGet(opts))
	return cmd
}

type ContentPut struct {
	cmd      *cobra.Command
	mainopts *Options
	file     string
}

func NewContentPut(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "put <version> <options>",
		Short:            "store the content of a version",
		TraverseChildren: true,
	}
	c := &ContentPut{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	cmd.Flags().StringVarP(&c.file, "file", "f", "-", "content file")
	return cmd
}

func (c *ContentPut) Run(args []string) error {
	vers, err := versions(args, 1)
	if err != nil {
		return err
	}

	var data []byte
	if c.file == "-" {
		data, err = io.ReadAll(c.cmd.InOrStdin())
	} else {
		data, err = vfs.ReadFile(c.mainopts.fs, c.file)
	}
	if err != nil {
		return fmt.Errorf("cannot read content %q: %w", c.file, err)
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		return vg.PutContent(ctx, vers[0], data)
	})
}

type ContentGet struct {
	cmd      *cobra.Command
	mainopts *Options
}

func NewContentGet(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "get <version>",
		Short:            "show the content of a version",
		TraverseChildren: true,
	}
	c := &ContentGet{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	return cmd
}

func (c *ContentGet) Run(args []string) error {
	vers, err := versions(args, 1)
	if err != nil {
		return err
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		data, err := vg.GetContent(ctx, vers[0])
		if err != nil {
			return err
		}
		_, err = c.cmd.OutOrStdout().Write(data)
		return err
	})
}

////////////////////////////////////////////////////////////////////////////////

type Reset struct {
	cmd      *cobra.Command
	mainopts *Options
}

func NewReset(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "reset",
		Short:            "remove all versions",
		TraverseChildren: true,
	}
	c := &Reset{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	return cmd
}

func (c *Reset) Run(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("no arguments expected")
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		return vg.Reset(ctx)
	})
}
