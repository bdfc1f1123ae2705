// Package txn applies plans to an install root as all-or-nothing
// transactions.
package txn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
	"github.com/sirupsen/logrus"
	"github.com/xpackagemanager/xpm/installdb"
	"github.com/xpackagemanager/xpm/log"
	"github.com/xpackagemanager/xpm/metadata"
	"github.com/xpackagemanager/xpm/plan"
)

// Backend performs the file-level work of each step.
//
// Apply and Reverse are called with a context that is never canceled: a step
// that has started runs to completion. It carries the values of both the
// caller's context and the executor's. Reverse must undo a successful Apply
// of the same step. Neither is ever called with a Group step.
type Backend interface {
	Apply(ctx context.Context, s plan.Step) error
	Reverse(ctx context.Context, s plan.Step) error
}

// Store is the installed database of the root a transaction runs against.
// *installdb.DB implements it.
type Store interface {
	Snapshot() (metadata.InstalledSet, error)
	Put(ip metadata.InstalledPackage) error
	Delete(name string) error
	Replace(is metadata.InstalledSet) error
	MarkInconsistent(reason string) error
	Inconsistent() (string, bool, error)
	AppendJournal(e installdb.Entry) (uint64, error)
}

// Options configures an Executor.
type Options struct {
	// Root identifies the install root. Transactions on the same root
	// exclude each other within the process.
	Root string

	// LockPath is the file locked for the duration of each transaction, to
	// exclude other processes. Optional.
	LockPath string

	// Logger receives progress. Optional.
	Logger logrus.FieldLogger
}

// Executor runs transactions against one install root.
type Executor struct {
	root     string
	lockPath string
	db       Store
	backend  Backend
	log      logrus.FieldLogger

	// ctx is the executor's lifetime; canceling it stops running
	// transactions at their next step boundary.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewExecutor returns an Executor applying plans through backend and
// recording the results in db. It stays usable until ctx is done or Close is
// called.
func NewExecutor(ctx context.Context, db Store, backend Backend, opts Options) *Executor {
	ctx, cf := context.WithCancel(ctx)
	l := opts.Logger
	if l == nil {
		l = log.Discard()
	}
	return &Executor{
		root:     opts.Root,
		lockPath: opts.LockPath,
		db:       db,
		backend:  backend,
		log:      l.WithField("root", opts.Root),
		ctx:      ctx,
		cancel:   cf,
	}
}

// Close ends the executor's lifetime. A transaction in flight stops at its
// next step boundary and rolls back.
func (e *Executor) Close() {
	e.cancel()
}

// Transaction is one run of a plan.
type Transaction struct {
	ID   string
	Plan *plan.Plan

	mu      sync.Mutex
	state   State
	applied []plan.Step
	err     error
}

func newTransaction(p *plan.Plan) *Transaction {
	return &Transaction{
		ID:    fmt.Sprintf("%x", time.Now().UnixNano()),
		Plan:  p,
		state: Planned,
	}
}

// State returns the current state of t.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Applied returns the primitive steps currently applied to the install root
// by t, in the order they were applied.
func (t *Transaction) Applied() []plan.Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]plan.Step(nil), t.applied...)
}

// Err returns the error t ended with, if any.
func (t *Transaction) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Transaction) moveTo(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.canMoveTo(s) {
		panic(fmt.Sprintf("canary - illegal transaction state change from %s to %s", t.state, s))
	}
	t.state = s
}

func (t *Transaction) pushApplied(s plan.Step) {
	t.mu.Lock()
	t.applied = append(t.applied, s)
	t.mu.Unlock()
}

func (t *Transaction) popApplied() {
	t.mu.Lock()
	t.applied = t.applied[:len(t.applied)-1]
	t.mu.Unlock()
}

func (t *Transaction) finish(s State, err error) {
	t.moveTo(s)
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

// Execute runs p as a single transaction, holding the install root's
// transaction lock throughout.
//
// Steps run in plan order. Cancellation of ctx, or of the executor, is
// observed only between steps. If a step fails, or cancellation is observed,
// every step applied so far is reversed, newest first, and the installed
// database restored to its exact state before the transaction: the
// transaction ends RolledBack and an *ExecutionError is returned. If a
// reversal fails, the database is flagged inconsistent, the transaction ends
// Failed, and a *RollbackFailedError is returned.
//
// The plan is refused before anything runs, with a nil Transaction, if it is
// stale, if the database is flagged inconsistent, or if the root is locked.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) (*Transaction, error) {
	if err := e.ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "executor is closed")
	}

	lock, err := tryLock(e.root, e.lockPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.unlock(); err != nil {
			e.log.WithError(err).Warn("Failed to release transaction lock")
		}
	}()

	if reason, flagged, err := e.db.Inconsistent(); err != nil {
		return nil, err
	} else if flagged {
		return nil, errors.Wrap(ErrInconsistent, reason)
	}

	before, err := e.db.Snapshot()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read installed set")
	}
	if p.Stale(before) {
		return nil, ErrStalePlan
	}

	cctx, cancelFunc := constext.Cons(ctx, e.ctx)
	defer cancelFunc() // ensure constext cancel goroutine is cleaned up

	t := newTransaction(p)
	log := e.log.WithField("txn", t.ID)
	t.moveTo(InProgress)
	if err := e.journal(installdb.Entry{Txn: t.ID, Event: installdb.EventBegin}); err != nil {
		t.finish(RolledBack, err)
		return t, err
	}
	log.WithField("steps", len(p.Steps)).Info("Transaction started")

	// Steps that have started always finish, so the backend never sees a
	// cancellation.
	bctx := context.WithoutCancel(cctx)

	xerr := e.run(ctx, cctx, bctx, t, before, log)
	if xerr == nil {
		if err := e.journal(installdb.Entry{Txn: t.ID, Event: installdb.EventCommit}); err != nil {
			log.WithError(err).Warn("Failed to journal commit")
		}
		t.finish(Committed, nil)
		log.Info("Transaction committed")
		return t, nil
	}

	log.WithError(xerr).Warn("Transaction failed, rolling back")
	if rerr := e.rollback(bctx, t, before, xerr, log); rerr != nil {
		t.finish(Failed, rerr)
		log.WithError(rerr).Error("Rollback failed; installed database flagged inconsistent")
		return t, rerr
	}

	t.finish(RolledBack, xerr)
	log.Info("Transaction rolled back")
	return t, xerr
}

// run applies every step of t's plan, then its marks. It stops at the first
// failure.
func (e *Executor) run(ctx, cctx, bctx context.Context, t *Transaction, before metadata.InstalledSet, log logrus.FieldLogger) *ExecutionError {
	for k, s := range t.Plan.Steps {
		if err := e.stopped(ctx, cctx); err != nil {
			return &ExecutionError{Index: k, Step: s, Err: errors.Wrap(err, "transaction canceled")}
		}

		// Group members run back to back; a failing member leaves those
		// before it applied, to be reversed with everything else.
		for _, m := range s.Primitives() {
			if err := e.backend.Apply(bctx, m); err != nil {
				return &ExecutionError{Index: k, Step: s, Err: errors.Wrapf(err, "applying %s", m)}
			}
			t.pushApplied(m)

			if err := e.record(m); err != nil {
				return &ExecutionError{Index: k, Step: s, Err: err}
			}
			if err := e.journal(installdb.Entry{Txn: t.ID, Event: installdb.EventStep, Step: m.String()}); err != nil {
				return &ExecutionError{Index: k, Step: s, Err: err}
			}
			log.WithField("step", m.String()).Debug("Step applied")
		}
	}

	for _, m := range t.Plan.Marks {
		if err := e.db.Put(m); err != nil {
			// Marks are not steps; report the change as an in-place upgrade.
			prev, _ := before.Get(m.Name)
			return &ExecutionError{
				Index: len(t.Plan.Steps),
				Step:  plan.Step{Kind: plan.KindUpgrade, Package: m, Previous: prev},
				Err:   errors.Wrapf(err, "recording %s as %s", m.Name, m.Reason),
			}
		}
		if err := e.journal(installdb.Entry{Txn: t.ID, Event: installdb.EventMarkChange, Step: m.Name + " " + m.Reason.String()}); err != nil {
			log.WithError(err).Warn("Failed to journal mark")
		}
	}
	return nil
}

// record updates the installed database for a primitive step that was just
// applied.
func (e *Executor) record(s plan.Step) error {
	switch s.Kind {
	case plan.KindInstall, plan.KindUpgrade:
		return errors.Wrapf(e.db.Put(s.Package), "recording %s", s)
	case plan.KindRemove:
		return errors.Wrapf(e.db.Delete(s.Package.Name), "recording %s", s)
	}
	return errors.Errorf("cannot record %s step", s.Kind)
}

// unrecord updates the installed database for a primitive step that was just
// reversed.
func (e *Executor) unrecord(s plan.Step) error {
	switch s.Kind {
	case plan.KindInstall:
		return errors.Wrapf(e.db.Delete(s.Package.Name), "unrecording %s", s)
	case plan.KindUpgrade:
		return errors.Wrapf(e.db.Put(s.Previous), "unrecording %s", s)
	case plan.KindRemove:
		return errors.Wrapf(e.db.Put(s.Package), "unrecording %s", s)
	}
	return errors.Errorf("cannot unrecord %s step", s.Kind)
}

// rollback reverses every applied step of t, newest first, and restores the
// installed database to before.
func (e *Executor) rollback(bctx context.Context, t *Transaction, before metadata.InstalledSet, xerr *ExecutionError, log logrus.FieldLogger) error {
	fail := func(s plan.Step, err error) error {
		rerr := &RollbackFailedError{
			Exec:    xerr,
			Step:    s,
			Err:     err,
			Applied: t.Applied(),
		}

		applied := make([]string, 0, len(rerr.Applied))
		for _, a := range rerr.Applied {
			applied = append(applied, a.String())
		}
		if merr := e.db.MarkInconsistent(fmt.Sprintf("transaction %s: %s", t.ID, err)); merr != nil {
			log.WithError(merr).Error("Failed to flag installed database inconsistent")
		}
		if jerr := e.journal(installdb.Entry{Txn: t.ID, Event: installdb.EventFailed, Applied: applied, Err: rerr.Error()}); jerr != nil {
			log.WithError(jerr).Error("Failed to journal rollback failure")
		}
		return rerr
	}

	applied := t.Applied()
	for i := len(applied) - 1; i >= 0; i-- {
		s := applied[i]
		if err := e.backend.Reverse(bctx, s); err != nil {
			return fail(s, errors.Wrapf(err, "reversing %s", s))
		}
		t.popApplied()

		if err := e.unrecord(s); err != nil {
			log.WithError(err).Warn("Failed to record reversal, will restore snapshot")
		}
		if err := e.journal(installdb.Entry{Txn: t.ID, Event: installdb.EventReverse, Step: s.String()}); err != nil {
			log.WithError(err).Warn("Failed to journal reversal")
		}
		log.WithField("step", s.String()).Debug("Step reversed")
	}

	// The per-step records put everything back already, except marks. The
	// snapshot makes the restore exact regardless.
	if err := e.db.Replace(before); err != nil {
		return fail(plan.Step{}, errors.Wrap(err, "restoring installed set"))
	}
	if err := e.journal(installdb.Entry{Txn: t.ID, Event: installdb.EventRollback, Err: xerr.Error()}); err != nil {
		log.WithError(err).Warn("Failed to journal rollback")
	}
	return nil
}

// stopped reports whether cctx, joined from the caller's ctx and the
// executor's lifetime, is done. constext propagates a parent's cancellation
// from its own goroutine, so a parent canceled while the last step ran may
// not show on cctx yet; the parents are then checked directly.
func (e *Executor) stopped(ctx, cctx context.Context) error {
	if err := cctx.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.ctx.Err()
}

func (e *Executor) journal(entry installdb.Entry) error {
	_, err := e.db.AppendJournal(entry)
	return errors.Wrap(err, "failed to write journal")
}
