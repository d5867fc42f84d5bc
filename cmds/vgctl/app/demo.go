package app

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/goombaio/namegenerator"
	"github.com/spf13/cobra"

	"github.com/mandelsoft/vergraph/pkg/config"
	"github.com/mandelsoft/vergraph/pkg/patch"
	"github.com/mandelsoft/vergraph/pkg/versiongraph"
)

func NewDemo(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "demo <cmd>",
		Short:            "record demo histories",
		TraverseChildren: true,
	}
	cmd.AddCommand(NewLattice(opts))
	cmd.AddCommand(NewRandom(opts))
	return cmd
}

type Mult struct {
	Amount int `json:"amount"`
}

type Lattice struct {
	cmd      *cobra.Command
	mainopts *Options
	max      int
}

func NewLattice(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lattice <options>",
		Short: "record the divisor lattice",
		Long: `
Record the divisor lattice of the numbers below a maximum. Every
number is a version, a number b has a transition to a number a
with a patch multiplying by the prime a/b.
`,
		TraverseChildren: true,
	}
	c := &Lattice{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	cmd.Flags().IntVarP(&c.max, "max", "m", 30, "upper bound")
	return cmd
}

func (c *Lattice) Run(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("no arguments expected")
	}
	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		n := 0
		for a := 2; a < c.max; a++ {
			for b := 1; b < a; b++ {
				if a%b != 0 || !isPrime(a/b) {
					continue
				}
				p, err := patch.NewAtomic("mult", Mult{Amount: a / b})
				if err != nil {
					return err
				}
				err = vg.RecordTrans(ctx, V(strconv.Itoa(b)), p, math.Log(float64(a/b)), V(strconv.Itoa(a)))
				if err != nil {
					return err
				}
				n++
			}
		}
		fmt.Fprintf(c.cmd.OutOrStdout(), "recorded %d transitions\n", n)
		return nil
	})
}

func isPrime(x int) bool {
	if x < 2 {
		return false
	}
	for i := 2; i*i <= x; i++ {
		if x%i == 0 {
			return false
		}
	}
	return true
}

////////////////////////////////////////////////////////////////////////////////

type Edit struct {
	Author string `json:"author"`
	Line   int    `json:"line"`
}

type Random struct {
	cmd      *cobra.Command
	mainopts *Options
	count    int
	merges   int
	seed     int64
}

func NewRandom(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "random <options>",
		Short: "record a random history",
		Long: `
Record a random history starting at the version "root". Versions
are named by generated names, every transition carries an edit
patch. Some of the versions are merges of two random versions.
`,
		TraverseChildren: true,
	}
	c := &Random{cmd: cmd, mainopts: opts}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	flags := cmd.Flags()
	flags.IntVarP(&c.count, "count", "n", 20, "number of transitions")
	flags.IntVarP(&c.merges, "merges", "M", 5, "number of merges")
	flags.Int64VarP(&c.seed, "seed", "s", 0, "random seed (default current time)")
	return cmd
}

func (c *Random) Run(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("no arguments expected")
	}
	seed := c.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))
	names := namegenerator.NewNameGenerator(seed)

	return c.mainopts.Run(c.cmd, func(ctx context.Context, vg *config.Instance) error {
		out := c.cmd.OutOrStdout()
		known := []versiongraph.Version[string]{V("root")}
		used := map[string]bool{"root": true}

		name := func() versiongraph.Version[string] {
			for {
				n := names.Generate()
				if !used[n] {
					used[n] = true
					return V(n)
				}
			}
		}

		merges := c.merges
		for i := 0; i < c.count; i++ {
			if merges > 0 && len(known) > 2 && rnd.Intn(c.count) < c.merges {
				merges--
				v1 := known[rnd.Intn(len(known))]
				v2 := known[rnd.Intn(len(known))]
				_, _, _, mi, err := vg.GetMergeStrategy(ctx, v1, v2, false)
				if err != nil {
					return err
				}
				if mi.V1() == mi.V2() {
					continue
				}
				n := name()
				err = vg.RecordMerge(ctx, mi, n, mi.Outstanding(), nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s = merge(%s, %s)\n", n, mi.V1(), mi.V2())
				known = append(known, n)
				continue
			}
			from := known[rnd.Intn(len(known))]
			p, err := patch.NewAtomic("edit", Edit{Author: names.Generate(), Line: rnd.Intn(100)})
			if err != nil {
				return err
			}
			n := name()
			err = vg.RecordTrans(ctx, from, p, 1, n)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s -> %s\n", from, n)
			known = append(known, n)
		}
		return nil
	})
}
