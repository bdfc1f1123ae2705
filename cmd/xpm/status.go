package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/xpackagemanager/xpm"
	"github.com/xpackagemanager/xpm/metadata"
)

func (c *Ctx) table() *tabwriter.Writer {
	return tabwriter.NewWriter(c.Out.Writer(), 0, 4, 2, ' ', 0)
}

func newStatusCommand(c *Ctx) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m *xpm.Manager) error {
				if reason, flagged, err := m.Inconsistent(); err != nil {
					return err
				} else if flagged {
					c.Err.Printf("warning: install root is flagged inconsistent: %s\n", reason)
				}

				is, err := m.Installed()
				if err != nil {
					return err
				}
				w := c.table()
				fmt.Fprintf(w, "PACKAGE\tVERSION\tREASON\tREPOSITORY\n")
				for _, ip := range is.Packages() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ip.Name, ip.Version, ip.Reason, ip.Repository)
				}
				return w.Flush()
			})
		},
	}
}

func newOrphansCommand(c *Ctx) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "List dependencies nothing needs any more",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m *xpm.Manager) error {
				orphans, err := m.Orphans()
				if err != nil {
					return err
				}
				for _, ip := range orphans {
					c.Out.Println(ip.ID())
				}
				return nil
			})
		},
	}
}

func newUpdatesCommand(c *Ctx) *cobra.Command {
	return &cobra.Command{
		Use:   "updates",
		Short: "List installed packages with newer versions available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m *xpm.Manager) error {
				ups, err := m.Updates(cmd.Context())
				if err != nil {
					return err
				}
				w := c.table()
				fmt.Fprintf(w, "PACKAGE\tINSTALLED\tAVAILABLE\n")
				for _, u := range ups {
					fmt.Fprintf(w, "%s\t%s\t%s\n", u.Installed.Name, u.Installed.Version, u.Available.Version)
				}
				return w.Flush()
			})
		},
	}
}

func newSearchCommand(c *Ctx) *cobra.Command {
	return &cobra.Command{
		Use:   "search [prefix]",
		Short: "List available packages by name prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			return c.withManager(func(m *xpm.Manager) error {
				pkgs, err := m.Search(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				w := c.table()
				for _, p := range pkgs {
					fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Version, describe(p))
				}
				return w.Flush()
			})
		},
	}
}

func describe(p metadata.Package) string {
	if p.Description != "" {
		return p.Description
	}
	var parts []string
	for _, pr := range p.Provides {
		parts = append(parts, "provides "+pr.String())
	}
	return strings.Join(parts, ", ")
}

func newVerifyCommand(c *Ctx) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check installed files against the package cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m *xpm.Manager) error {
				bad, err := m.Verify()
				if err != nil {
					return err
				}
				for _, name := range bad {
					c.Out.Printf("%s: modified\n", name)
				}
				if len(bad) > 0 {
					return errors.Errorf("%d packages do not match their payload", len(bad))
				}
				return nil
			})
		},
	}
}

func newJournalCommand(c *Ctx) *cobra.Command {
	return &cobra.Command{
		Use:   "journal",
		Short: "Show the transaction journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m *xpm.Manager) error {
				entries, err := m.Journal()
				if err != nil {
					return err
				}
				w := c.table()
				for _, e := range entries {
					detail := e.Step
					if e.Err != "" {
						detail = strings.TrimSpace(detail + " " + e.Err)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.Seq, e.Time.Format("2006-01-02 15:04:05"), e.Txn, e.Event, detail)
				}
				return w.Flush()
			})
		},
	}
}

func newRepairCommand(c *Ctx) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Clear the inconsistency flag after fixing the install root by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withManager(func(m *xpm.Manager) error {
				reason, flagged, err := m.Inconsistent()
				if err != nil {
					return err
				}
				if !flagged {
					c.Out.Println("Install root is not flagged.")
					return nil
				}
				if err := m.ClearInconsistent(); err != nil {
					return err
				}
				c.Out.Printf("Cleared: %s\n", reason)
				return nil
			})
		},
	}
}
