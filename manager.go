// Package xpm resolves package requests against repository metadata and
// applies the results to an install root as transactions.
//
// A Manager is the single entry point: ResolveAndPlan turns a batch of
// requests into a verified plan without touching anything, and Commit runs
// that plan.
package xpm

import (
	"context"
	"io"
	stdlog "log"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpackagemanager/xpm/backend/dirbackend"
	"github.com/xpackagemanager/xpm/installdb"
	"github.com/xpackagemanager/xpm/log"
	"github.com/xpackagemanager/xpm/metadata"
	"github.com/xpackagemanager/xpm/plan"
	"github.com/xpackagemanager/xpm/solver"
	"github.com/xpackagemanager/xpm/txn"
)

// Manager manages one install root.
type Manager struct {
	cfg     Config
	src     Source
	db      *installdb.DB
	backend txn.Backend
	exec    *txn.Executor
	log     *logrus.Logger
	trace   *stdlog.Logger
}

// An Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. By default a Manager logs to stderr at the
// configured level.
func WithLogger(l *logrus.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// WithTrace writes a trace of every solver run to w.
func WithTrace(w io.Writer) Option {
	return func(m *Manager) {
		m.trace = stdlog.New(w, "", 0)
	}
}

// New opens the install root described by cfg. Metadata comes from src. A
// nil backend means a dirbackend over cfg.Cache and cfg.Root.
func New(cfg Config, src Source, backend txn.Backend, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = DirSource{Dir: cfg.Repositories, Priorities: cfg.Priorities}
	}

	m := &Manager{cfg: cfg, src: src}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		l, err := log.New(os.Stderr, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		m.log = l
	}

	if backend == nil {
		b, err := dirbackend.New(cfg.Cache, cfg.Root, m.log)
		if err != nil {
			return nil, err
		}
		backend = b
	}
	m.backend = backend

	db, err := installdb.Open(cfg.DatabasePath())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open installed database for %s", cfg.Root)
	}
	m.db = db

	m.exec = txn.NewExecutor(context.Background(), db, backend, txn.Options{
		Root:     cfg.Root,
		LockPath: cfg.LockPath(),
		Logger:   m.log,
	})
	return m, nil
}

// Close stops any running transaction at its next step boundary and closes
// the installed database.
func (m *Manager) Close() error {
	m.exec.Close()
	return m.db.Close()
}

// Config returns the configuration the manager was opened with.
func (m *Manager) Config() Config {
	return m.cfg
}

// Installed returns the current installed set.
func (m *Manager) Installed() (metadata.InstalledSet, error) {
	return m.db.Snapshot()
}

// Store loads a fresh metadata store from the manager's source.
func (m *Manager) Store(ctx context.Context) (*metadata.Store, error) {
	repos, err := m.src.Repositories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load repositories")
	}
	return metadata.NewStore(repos...)
}

// Resolve solves requests against the current installed set without
// planning.
func (m *Manager) Resolve(ctx context.Context, requests ...solver.Request) (solver.Solution, error) {
	_, sol, err := m.resolve(ctx, requests)
	return sol, err
}

func (m *Manager) resolve(ctx context.Context, requests []solver.Request) (metadata.InstalledSet, solver.Solution, error) {
	installed, err := m.Installed()
	if err != nil {
		return metadata.InstalledSet{}, solver.Solution{}, err
	}
	store, err := m.Store(ctx)
	if err != nil {
		return metadata.InstalledSet{}, solver.Solution{}, err
	}

	params := solver.Parameters{
		Installed:   installed,
		Requests:    requests,
		Store:       store,
		Logger:      m.log,
		Trace:       m.trace != nil,
		TraceLogger: m.trace,
	}
	sol, err := solver.Solve(ctx, params)
	if err != nil {
		return installed, solver.Solution{}, err
	}
	m.log.WithFields(logrus.Fields{
		"packages": sol.Len(),
		"attempts": sol.Attempts(),
	}).Debug("Resolved")
	return installed, sol, nil
}

// ResolveAndPlan solves requests against the current installed set and
// plans the change from it to the solution. Nothing is modified.
func (m *Manager) ResolveAndPlan(ctx context.Context, requests ...solver.Request) (*plan.Plan, error) {
	installed, sol, err := m.resolve(ctx, requests)
	if err != nil {
		return nil, err
	}
	return plan.New(installed, sol)
}

// Commit runs p as one transaction. Trees the backend set aside are deleted
// once the transaction has committed.
func (m *Manager) Commit(ctx context.Context, p *plan.Plan) (*txn.Transaction, error) {
	t, err := m.exec.Execute(ctx, p)
	if err != nil {
		return t, err
	}

	if tb, ok := m.backend.(interface{ EmptyTrash() error }); ok {
		if err := tb.EmptyTrash(); err != nil {
			m.log.WithError(err).Warn("Failed to clean up after transaction")
		}
	}
	return t, nil
}

// Orphans returns the dependency-reason packages nothing explicitly
// installed still needs.
func (m *Manager) Orphans() ([]metadata.InstalledPackage, error) {
	installed, err := m.Installed()
	if err != nil {
		return nil, err
	}
	return installed.Orphans(), nil
}

// Update pairs an installed package with a newer available version.
type Update struct {
	Installed metadata.InstalledPackage
	Available metadata.Package
}

// Updates lists the installed packages that have a newer version available.
// Prereleases are only offered over prereleases.
func (m *Manager) Updates(ctx context.Context) ([]Update, error) {
	installed, err := m.Installed()
	if err != nil {
		return nil, err
	}
	store, err := m.Store(ctx)
	if err != nil {
		return nil, err
	}

	var ups []Update
	for _, ip := range installed.Packages() {
		for _, p := range store.Lookup(ip.Name) {
			if p.Version.Prerelease() != "" && ip.Version.Prerelease() == "" {
				continue
			}
			if ip.Version.Less(p.Version) {
				ups = append(ups, Update{Installed: ip, Available: p})
			}
			break
		}
	}
	return ups, nil
}

// Search returns the highest version of every package whose name starts
// with prefix, ordered by name.
func (m *Manager) Search(ctx context.Context, prefix string) ([]metadata.Package, error) {
	store, err := m.Store(ctx)
	if err != nil {
		return nil, err
	}

	var pkgs []metadata.Package
	for _, name := range store.Search(prefix) {
		if vs := store.Lookup(name); len(vs) > 0 {
			pkgs = append(pkgs, vs[0])
		}
	}
	return pkgs, nil
}

// Verify returns the names of installed packages whose files no longer
// match their payload. It returns nothing if the backend cannot tell.
func (m *Manager) Verify() ([]string, error) {
	v, ok := m.backend.(interface {
		Verify(metadata.Package) (bool, error)
	})
	if !ok {
		return nil, nil
	}

	installed, err := m.Installed()
	if err != nil {
		return nil, err
	}
	var bad []string
	for _, ip := range installed.Packages() {
		good, err := v.Verify(ip.Package)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to verify %s", ip.ID())
		}
		if !good {
			bad = append(bad, ip.Name)
		}
	}
	return bad, nil
}

// Journal returns the transaction journal, oldest first.
func (m *Manager) Journal() ([]installdb.Entry, error) {
	return m.db.Journal()
}

// Inconsistent reports whether a failed rollback left the install root in an
// unknown state, and why.
func (m *Manager) Inconsistent() (string, bool, error) {
	return m.db.Inconsistent()
}

// ClearInconsistent lifts the flag a failed rollback set, once the install
// root has been repaired by hand, so transactions may run again.
func (m *Manager) ClearInconsistent() error {
	reason, flagged, err := m.db.Inconsistent()
	if err != nil || !flagged {
		return err
	}
	if err := m.db.ClearInconsistent(); err != nil {
		return err
	}
	_, err = m.db.AppendJournal(installdb.Entry{Event: installdb.EventRepaired, Err: reason})
	return err
}
