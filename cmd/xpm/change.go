package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/xpackagemanager/xpm"
	"github.com/xpackagemanager/xpm/internal/feedback"
	"github.com/xpackagemanager/xpm/metadata"
	"github.com/xpackagemanager/xpm/solver"
)

const installLongHelp = `
Install the named packages, along with whatever they depend on. Each argument
is a package or capability name, optionally followed by a version range:

	xpm install editor 'lib>=2.0, <3'

Packages that are already installed are kept at their current version where
possible.
`

const removeLongHelp = `
Remove the named packages. Removal fails if an installed package that stays
still depends on one of them and nothing else provides what it needs.
Dependencies of removed packages are left installed; see autoremove.
`

const upgradeLongHelp = `
Upgrade the named packages to the highest versions that fit the rest of the
installed set. With no arguments, or with --all, every installed package is
considered.
`

// changeFlags are shared by the commands that change the installed set.
type changeFlags struct {
	dryRun bool
	dot    bool
}

func (f *changeFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "print the plan without applying it")
	cmd.Flags().BoolVar(&f.dot, "dot", false, "print the plan as a Graphviz graph instead of applying it")
}

func newInstallCommand(c *Ctx) *cobra.Command {
	var f changeFlags
	cmd := &cobra.Command{
		Use:   "install <package[range]>...",
		Short: "Install packages",
		Long:  installLongHelp,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := parseDeps(args)
			if err != nil {
				return err
			}
			var reqs []solver.Request
			for _, d := range deps {
				reqs = append(reqs, solver.Install(d.Name, d.Range))
			}
			return c.change(cmd.Context(), f, reqs)
		},
	}
	f.register(cmd)
	return cmd
}

func newRemoveCommand(c *Ctx) *cobra.Command {
	var (
		f       changeFlags
		orphans bool
	)
	cmd := &cobra.Command{
		Use:   "remove <package>...",
		Short: "Remove packages",
		Long:  removeLongHelp,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reqs []solver.Request
			for _, name := range args {
				reqs = append(reqs, solver.Remove(name))
			}
			if orphans {
				reqs = append(reqs, solver.RemoveOrphans())
			}
			return c.change(cmd.Context(), f, reqs)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&orphans, "orphans", false, "also remove dependencies nothing needs any more")
	return cmd
}

func newUpgradeCommand(c *Ctx) *cobra.Command {
	var (
		f   changeFlags
		all bool
	)
	cmd := &cobra.Command{
		Use:   "upgrade [package[range]...]",
		Short: "Upgrade installed packages",
		Long:  upgradeLongHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("cannot combine --all with package names")
			}
			if len(args) == 0 {
				return c.change(cmd.Context(), f, []solver.Request{solver.UpgradeAll()})
			}

			deps, err := parseDeps(args)
			if err != nil {
				return err
			}
			var reqs []solver.Request
			for _, d := range deps {
				reqs = append(reqs, solver.Upgrade(d.Name, d.Range))
			}
			return c.change(cmd.Context(), f, reqs)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "upgrade every installed package")
	return cmd
}

func newAutoremoveCommand(c *Ctx) *cobra.Command {
	var f changeFlags
	cmd := &cobra.Command{
		Use:   "autoremove",
		Short: "Remove dependencies nothing needs any more",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.change(cmd.Context(), f, []solver.Request{solver.RemoveOrphans()})
		},
	}
	f.register(cmd)
	return cmd
}

// change resolves reqs, prints the plan, and commits it unless this is a dry
// run.
func (c *Ctx) change(ctx context.Context, f changeFlags, reqs []solver.Request) error {
	return c.withManager(func(m *xpm.Manager) error {
		p, err := m.ResolveAndPlan(ctx, reqs...)
		if err != nil {
			return err
		}

		if f.dot {
			c.Out.Println(p.Graph().String())
			return nil
		}
		if p.Empty() {
			c.Out.Println("Nothing to do.")
			return nil
		}
		c.Out.Print(p.String())
		if f.dryRun {
			return nil
		}

		t, err := m.Commit(ctx, p)
		if err != nil {
			return err
		}
		c.Out.Printf("Transaction %s committed:\n", t.ID)
		for _, cf := range feedback.PlanFeedback(p) {
			cf.LogFeedback(c.Out)
		}
		return nil
	})
}

func parseDeps(args []string) ([]metadata.Dependency, error) {
	deps := make([]metadata.Dependency, 0, len(args))
	for _, arg := range args {
		d, err := metadata.ParseDependency(arg)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, nil
}
