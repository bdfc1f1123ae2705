// Package installdb persists the installed set of an install root, together
// with a journal of the transactions applied to it.
package installdb

import (
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/xpackagemanager/xpm/metadata"
)

// DB is the installed database of one install root, backed by a BoltDB file.
//
// Implementation:
//
// At the top level there are three buckets:
//
//	Bucket: "installed"
//	Keys: "<name>"
//	Values: JSON package record, with its install reason
//
//	Bucket: "meta"
//	Keys: "inconsistent"
//	Values: the reason the database was flagged
//
//	Bucket: "journal"
//	Keys: "<sequence_number>", fixed width big endian
//	Values: JSON journal entry
//
// Methods are safe for concurrent use with each other (excluding Close).
// Bolt itself holds an exclusive file lock while the database is open, so a
// second process opening the same file waits, then fails with ErrTimeout.
type DB struct {
	db   *bolt.DB
	path string
}

const (
	installedBucket = "installed"
	metaBucket      = "meta"
	journalBucket   = "journal"

	inconsistentKey = "inconsistent"
)

// ErrTimeout is returned by Open when the database file is held by another
// process.
var ErrTimeout = bolt.ErrTimeout

// Open opens, creating it if necessary, the database at path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if fi, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, os.ModeDir|os.ModePerm); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory: %s", dir)
		}
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to check database directory: %s", dir)
	} else if !fi.IsDir() {
		return nil, errors.Errorf("database path is not a directory: %s", dir)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open installed database %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{installedBucket, metaBucket, journalBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return errors.Wrapf(err, "failed to create bucket: %s", name)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db, path: path}, nil
}

// Close releases all database resources.
// Must not be called concurrently with any other methods.
func (d *DB) Close() error {
	return errors.Wrapf(d.db.Close(), "error closing Bolt database %q", d.path)
}

// Path returns the location of the database file.
func (d *DB) Path() string {
	return d.path
}

// Snapshot returns the installed set as currently recorded.
func (d *DB) Snapshot() (metadata.InstalledSet, error) {
	var pkgs []metadata.InstalledPackage
	err := d.viewBucket(installedBucket, func(b *bolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			ip, err := decodePackage(v)
			if err != nil {
				return errors.Wrapf(err, "failed to decode record for %s", k)
			}
			if ip.Name != string(k) {
				return errors.Errorf("record for %s names %s", k, ip.Name)
			}
			pkgs = append(pkgs, ip)
			return nil
		})
	})
	if err != nil {
		return metadata.InstalledSet{}, err
	}
	return metadata.NewInstalledSet(pkgs...)
}

// Put records ip as installed, replacing any record of the same name.
func (d *DB) Put(ip metadata.InstalledPackage) error {
	v, err := encodePackage(ip)
	if err != nil {
		return err
	}
	return d.updateBucket(installedBucket, func(b *bolt.Bucket) error {
		return errors.Wrapf(b.Put([]byte(ip.Name), v), "failed to put %s", ip.ID())
	})
}

// Delete removes the record for name. Deleting an absent name is not an
// error.
func (d *DB) Delete(name string) error {
	return d.updateBucket(installedBucket, func(b *bolt.Bucket) error {
		return errors.Wrapf(b.Delete([]byte(name)), "failed to delete %s", name)
	})
}

// Replace atomically swaps the whole recorded installed set for is.
func (d *DB) Replace(is metadata.InstalledSet) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(installedBucket)); err != nil && err != bolt.ErrBucketNotFound {
			return errors.Wrap(err, "failed to clear installed bucket")
		}
		b, err := tx.CreateBucket([]byte(installedBucket))
		if err != nil {
			return errors.Wrap(err, "failed to recreate installed bucket")
		}
		for _, ip := range is.Packages() {
			v, err := encodePackage(ip)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(ip.Name), v); err != nil {
				return errors.Wrapf(err, "failed to put %s", ip.ID())
			}
		}
		return nil
	})
}

// MarkInconsistent flags the database as no longer reflecting the install
// root. The flag survives reopening and stays until ClearInconsistent.
func (d *DB) MarkInconsistent(reason string) error {
	if reason == "" {
		reason = "unspecified"
	}
	return d.updateBucket(metaBucket, func(b *bolt.Bucket) error {
		return b.Put([]byte(inconsistentKey), []byte(reason))
	})
}

// Inconsistent reports whether the database is flagged, and why.
func (d *DB) Inconsistent() (reason string, flagged bool, err error) {
	err = d.viewBucket(metaBucket, func(b *bolt.Bucket) error {
		if v := b.Get([]byte(inconsistentKey)); v != nil {
			reason, flagged = string(v), true
		}
		return nil
	})
	return reason, flagged, err
}

// ClearInconsistent removes the inconsistency flag, once the install root
// has been repaired by hand.
func (d *DB) ClearInconsistent() error {
	return d.updateBucket(metaBucket, func(b *bolt.Bucket) error {
		return b.Delete([]byte(inconsistentKey))
	})
}

// viewBucket executes view with the named bucket, if it exists.
func (d *DB) viewBucket(name string, view func(b *bolt.Bucket) error) error {
	return d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return nil
		}
		return view(b)
	})
}

// updateBucket executes update with the named bucket, creating it first if necessary.
func (d *DB) updateBucket(name string, update func(b *bolt.Bucket) error) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return errors.Wrapf(err, "failed to create bucket: %s", name)
		}
		return update(b)
	})
}
