package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mandelsoft/vergraph/pkg/config"
	"github.com/mandelsoft/vergraph/pkg/utils"
	"github.com/mandelsoft/vergraph/pkg/versiongraph"
)

type Options struct {
	fs       vfs.FileSystem
	lctx     logging.Context
	file     string
	logLevel string
	output   string
}

func (o *Options) AddFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.file, "config", "c", "", "config file (yaml or toml)")
	flags.StringVarP(&o.logLevel, "log-level", "L", "", "log level")
	flags.StringVarP(&o.output, "output", "o", "", "output format (text, json, yaml)")
}

// Open reads the configuration and opens the configured version graph.
func (o *Options) Open(ctx context.Context) (*config.Instance, error) {
	cfg, err := config.GetConfig(o.file, o.fs)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = &o.logLevel
	}
	if cfg.LogLevel != nil {
		err = configureLogging(o.lctx, *cfg.LogLevel)
		if err != nil {
			return nil, err
		}
	}
	return config.Open(ctx, cfg, o.lctx, o.fs)
}

func (o *Options) Run(cmd *cobra.Command, f func(ctx context.Context, vg *config.Instance) error) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	vg, err := o.Open(ctx)
	if err != nil {
		return err
	}
	defer vg.Close()
	return f(ctx, vg)
}

func New(fss ...vfs.FileSystem) *cobra.Command {
	opts := &Options{
		fs:   utils.OptionalDefaulted(vfs.FileSystem(osfs.OsFs), fss...),
		lctx: logging.DefaultContext(),
	}

	maincmd := &cobra.Command{
		Use:   "vgctl <options> <cmd> <args>",
		Short: "manage a version graph",
		Long: `
This command records transitions and merges of versions in a
version graph and queries patches, paths and merge strategies.

The stores are configured by a config file (.vgctl in the home
directory, the user config directory or the current directory,
or given with --config) and VERGRAPH_* environment variables.
`,
		Run:              nil,
		TraverseChildren: true,
		SilenceUsage:     true,
	}

	opts.AddFlags(maincmd.PersistentFlags())

	maincmd.AddCommand(NewRecord(opts))
	maincmd.AddCommand(NewPatches(opts))
	maincmd.AddCommand(NewPath(opts))
	maincmd.AddCommand(NewAncestor(opts))
	maincmd.AddCommand(NewStrategy(opts))
	maincmd.AddCommand(NewMerge(opts))
	maincmd.AddCommand(NewTransitions(opts))
	maincmd.AddCommand(NewContent(opts))
	maincmd.AddCommand(NewDemo(opts))
	maincmd.AddCommand(NewReset(opts))
	return maincmd
}

func V(id string) versiongraph.Version[string] {
	return versiongraph.NewVersion(id)
}

func versions(args []string, n int) ([]versiongraph.Version[string], error) {
	if len(args) != n {
		return nil, fmt.Errorf("%d version arguments expected", n)
	}
	var result []versiongraph.Version[string]
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			return nil, fmt.Errorf("non-empty version required")
		}
		result = append(result, V(a))
	}
	return result, nil
}
