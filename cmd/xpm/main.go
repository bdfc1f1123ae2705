// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command xpm installs, upgrades and removes packages in an install root.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/xpackagemanager/xpm"
	xlog "github.com/xpackagemanager/xpm/log"
)

func main() {
	c := &Config{
		Args:   os.Args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	os.Exit(c.Run())
}

// A Config specifies a full configuration for an xpm execution.
type Config struct {
	Args           []string  // Command-line arguments, starting with the program name.
	Stdout, Stderr io.Writer // Log output
}

// globals are the flags every command accepts.
type globals struct {
	configPath string
	root       string
	logLevel   string
	trace      bool
}

// Ctx is what a command runs with.
type Ctx struct {
	Out, Err *log.Logger
	stderr   io.Writer
	globals  *globals
}

// Run executes a configuration and returns an exit code.
func (c *Config) Run() (exitCode int) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g := &globals{}
	xc := &Ctx{
		Out:     log.New(c.Stdout, "", 0),
		Err:     log.New(c.Stderr, "", 0),
		stderr:  c.Stderr,
		globals: g,
	}

	root := &cobra.Command{
		Use:           "xpm",
		Short:         "Resolve and apply package changes transactionally",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "configuration file (default: searched in the XDG config directories)")
	pf.StringVar(&g.root, "root", "", "install root, overriding the configuration")
	pf.StringVar(&g.logLevel, "log-level", "", "log level, overriding the configuration")
	pf.BoolVar(&g.trace, "trace", false, "trace the solver's search")

	root.AddCommand(
		newInstallCommand(xc),
		newRemoveCommand(xc),
		newUpgradeCommand(xc),
		newAutoremoveCommand(xc),
		newStatusCommand(xc),
		newOrphansCommand(xc),
		newUpdatesCommand(xc),
		newSearchCommand(xc),
		newVerifyCommand(xc),
		newJournalCommand(xc),
		newRepairCommand(xc),
	)
	root.SetArgs(c.Args[1:])
	root.SetOut(c.Stdout)
	root.SetErr(c.Stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		xc.Err.Printf("xpm: %v\n", err)
		return 1
	}
	return 0
}

// Manager opens the manager for the configured install root. The caller
// closes it.
func (c *Ctx) Manager() (*xpm.Manager, error) {
	cfg, err := xpm.LoadConfig(c.globals.configPath)
	if err != nil {
		return nil, err
	}
	if c.globals.root != "" {
		cfg.Root = c.globals.root
	}
	if c.globals.logLevel != "" {
		cfg.LogLevel = c.globals.logLevel
	}

	l, err := xlog.New(c.stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := []xpm.Option{xpm.WithLogger(l)}
	if c.globals.trace {
		opts = append(opts, xpm.WithTrace(c.stderr))
	}
	return xpm.New(cfg, nil, nil, opts...)
}

func (c *Ctx) withManager(run func(m *xpm.Manager) error) error {
	m, err := c.Manager()
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			c.Err.Printf("xpm: %v\n", err)
		}
	}()
	return run(m)
}
