// Package dirbackend installs packages by copying payload trees out of a local
// cache into an install root.
//
// A package's payload lives at <cache>/<name>/<version>/. Installed, it lives
// at <root>/<name>/. Trees that are removed or replaced are moved aside into
// <root>/.xpm/trash until the transaction is over, so that reversing a step
// never needs the cache.
package dirbackend

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xpackagemanager/xpm/internal/fs"
	"github.com/xpackagemanager/xpm/log"
	"github.com/xpackagemanager/xpm/metadata"
	"github.com/xpackagemanager/xpm/plan"
)

// StateDir is the directory under the install root that the backend, and the
// installed database beside it, keep their own files in. No package may be
// named after it.
const StateDir = ".xpm"

// Backend is a txn.Backend over plain directories.
type Backend struct {
	cache, root string
	log         logrus.FieldLogger
}

// New returns a Backend installing from cache into root. A nil logger
// discards.
func New(cache, root string, l logrus.FieldLogger) (*Backend, error) {
	if cache == "" || root == "" {
		return nil, errors.New("dirbackend needs both a cache and an install root")
	}
	if l == nil {
		l = log.Discard()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create install root %s", root)
	}
	return &Backend{cache: cache, root: root, log: l}, nil
}

// PayloadPath is where the payload of pkg is expected in the cache.
func (b *Backend) PayloadPath(pkg metadata.Package) string {
	return filepath.Join(b.cache, pkg.Name, pkg.Version.String())
}

// InstallPath is where the tree of the named package is installed.
func (b *Backend) InstallPath(name string) string {
	return filepath.Join(b.root, name)
}

func (b *Backend) trashPath(pkg metadata.Package) string {
	return filepath.Join(b.root, StateDir, "trash", pkg.Name+"@"+pkg.Version.String())
}

func (b *Backend) stagingPath(pkg metadata.Package) string {
	return filepath.Join(b.root, StateDir, "staging", pkg.Name+"@"+pkg.Version.String())
}

// Apply performs s on the install root.
func (b *Backend) Apply(ctx context.Context, s plan.Step) error {
	if err := checkName(s); err != nil {
		return err
	}

	switch s.Kind {
	case plan.KindInstall:
		return b.install(s.Package.Package)
	case plan.KindRemove:
		return b.remove(s.Package.Package)
	case plan.KindUpgrade:
		return b.upgrade(s.Previous.Package, s.Package.Package)
	case plan.KindGroup:
		for i, m := range s.Members {
			if err := b.Apply(ctx, m); err != nil {
				b.revertMembers(ctx, s.Members[:i])
				return err
			}
		}
		return nil
	}
	return errors.Errorf("unknown step kind %s", s.Kind)
}

// Reverse undoes a successful Apply of s.
func (b *Backend) Reverse(ctx context.Context, s plan.Step) error {
	if err := checkName(s); err != nil {
		return err
	}

	switch s.Kind {
	case plan.KindInstall:
		return errors.Wrapf(os.RemoveAll(b.InstallPath(s.Package.Name)), "failed to uninstall %s", s.Package.ID())
	case plan.KindRemove:
		return b.restore(s.Package.Package)
	case plan.KindUpgrade:
		if err := os.RemoveAll(b.InstallPath(s.Package.Name)); err != nil {
			return errors.Wrapf(err, "failed to uninstall %s", s.Package.ID())
		}
		return b.restore(s.Previous.Package)
	case plan.KindGroup:
		for i := len(s.Members) - 1; i >= 0; i-- {
			if err := b.Reverse(ctx, s.Members[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.Errorf("unknown step kind %s", s.Kind)
}

func (b *Backend) revertMembers(ctx context.Context, applied []plan.Step) {
	for i := len(applied) - 1; i >= 0; i-- {
		if err := b.Reverse(ctx, applied[i]); err != nil {
			b.log.WithError(err).WithField("step", applied[i].String()).Warn("Failed to reverse group member")
		}
	}
}

func (b *Backend) install(pkg metadata.Package) error {
	dst := b.InstallPath(pkg.Name)
	if ok, err := fs.Exists(dst); err != nil {
		return errors.Wrapf(err, "failed to check %s", dst)
	} else if ok {
		return errors.Errorf("cannot install %s: %s already exists", pkg.ID(), dst)
	}

	if err := b.copyPayload(pkg, dst); err != nil {
		return err
	}
	b.log.WithField("pkg", pkg.ID()).Debug("Installed")
	return nil
}

func (b *Backend) remove(pkg metadata.Package) error {
	if err := b.moveAside(pkg); err != nil {
		return err
	}
	b.log.WithField("pkg", pkg.ID()).Debug("Removed")
	return nil
}

// upgrade stages the new payload first, so a missing or broken payload fails
// the step before the old tree is touched.
func (b *Backend) upgrade(prev, next metadata.Package) error {
	staging := b.stagingPath(next)
	if err := os.RemoveAll(staging); err != nil {
		return errors.Wrapf(err, "failed to clear %s", staging)
	}
	if err := b.copyPayload(next, staging); err != nil {
		return err
	}

	if err := b.moveAside(prev); err != nil {
		os.RemoveAll(staging)
		return err
	}

	dst := b.InstallPath(next.Name)
	if err := fs.RenameWithFallback(staging, dst); err != nil {
		os.RemoveAll(staging)
		if rerr := b.restore(prev); rerr != nil {
			return errors.Wrapf(err, "failed to swap in %s, and then failed to put %s back: %s", next.ID(), prev.ID(), rerr)
		}
		return errors.Wrapf(err, "failed to swap in %s", next.ID())
	}

	b.log.WithFields(logrus.Fields{
		"pkg":  next.Name,
		"from": prev.Version.String(),
		"to":   next.Version.String(),
	}).Debug("Upgraded")
	return nil
}

func (b *Backend) copyPayload(pkg metadata.Package, dst string) error {
	src := b.PayloadPath(pkg)
	if ok, err := fs.IsDir(src); !ok {
		return errors.Wrapf(err, "no payload for %s in cache", pkg.ID())
	}
	return errors.Wrapf(fs.CopyTree(src, dst), "failed to install %s", pkg.ID())
}

// moveAside moves the installed tree of pkg into the trash.
func (b *Backend) moveAside(pkg metadata.Package) error {
	src := b.InstallPath(pkg.Name)
	if ok, err := fs.Exists(src); err != nil {
		return errors.Wrapf(err, "failed to check %s", src)
	} else if !ok {
		return errors.Errorf("cannot remove %s: %s is not installed", pkg.ID(), src)
	}

	dst := b.trashPath(pkg)
	if err := os.RemoveAll(dst); err != nil {
		return errors.Wrapf(err, "failed to clear %s", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, "failed to create trash directory")
	}
	return errors.Wrapf(fs.RenameWithFallback(src, dst), "failed to remove %s", pkg.ID())
}

// restore puts the tree of pkg back from the trash, reinstalling it from the
// cache if the trash no longer has it.
func (b *Backend) restore(pkg metadata.Package) error {
	dst := b.InstallPath(pkg.Name)
	if err := os.RemoveAll(dst); err != nil {
		return errors.Wrapf(err, "failed to clear %s", dst)
	}

	src := b.trashPath(pkg)
	ok, err := fs.Exists(src)
	if err != nil {
		return errors.Wrapf(err, "failed to check %s", src)
	}
	if ok {
		return errors.Wrapf(fs.RenameWithFallback(src, dst), "failed to restore %s", pkg.ID())
	}

	b.log.WithField("pkg", pkg.ID()).Warn("Trashed tree missing, reinstalling from cache")
	return b.copyPayload(pkg, dst)
}

// EmptyTrash deletes the trees that committed transactions moved aside.
func (b *Backend) EmptyTrash() error {
	dir := filepath.Join(b.root, StateDir, "trash")
	return errors.Wrapf(os.RemoveAll(dir), "failed to empty %s", dir)
}

// Verify reports whether the installed tree of pkg matches its payload in the
// cache.
func (b *Backend) Verify(pkg metadata.Package) (bool, error) {
	want, err := fs.TreeDigest(b.PayloadPath(pkg))
	if err != nil {
		return false, errors.Wrapf(err, "no payload for %s in cache", pkg.ID())
	}
	dir := b.InstallPath(pkg.Name)
	if ok, err := fs.Exists(dir); err != nil || !ok {
		return false, err
	}
	got, err := fs.TreeDigest(dir)
	if err != nil {
		return false, err
	}
	return want == got, nil
}

func checkName(s plan.Step) error {
	for _, m := range s.Primitives() {
		n := m.Package.Name
		if n == "" || n == "." || n == ".." || n == StateDir || filepath.Base(n) != n {
			return errors.Errorf("package name %q cannot be used as a directory name", n)
		}
	}
	return nil
}
