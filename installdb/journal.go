package installdb

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"
)

// Event names what a journal entry records.
type Event string

// The journal events written by the transaction executor.
const (
	EventBegin      Event = "begin"
	EventStep       Event = "step"
	EventReverse    Event = "reverse"
	EventCommit     Event = "commit"
	EventRollback   Event = "rollback"
	EventFailed     Event = "failed"
	EventRepaired   Event = "repaired"
	EventMarkChange Event = "mark"
)

// Entry is one record in the journal.
type Entry struct {
	// Seq is assigned by AppendJournal. Sequence numbers start at 1 and
	// increase by one per entry.
	Seq uint64 `json:"-"`

	Time  time.Time `json:"time"`
	Txn   string    `json:"txn"`
	Event Event     `json:"event"`

	// Step is a description of the step an EventStep or EventReverse entry
	// is about.
	Step string `json:"step,omitempty"`

	// Applied lists, for an EventFailed entry, the steps that remain applied
	// to the install root.
	Applied []string `json:"applied,omitempty"`

	Err string `json:"error,omitempty"`
}

// keyLen is wide enough for every sequence number, which keeps the byte order
// of keys the same as their numeric order. It is 8, so keys also decode as
// plain big endian uint64s.
var keyLen = nuts.KeyLen(math.MaxUint64)

func seqKey(seq uint64) nuts.Key {
	k := make(nuts.Key, keyLen)
	k.Put(seq)
	return k
}

// AppendJournal adds e to the journal, stamping it with the next sequence
// number and, if unset, the current time.
func (d *DB) AppendJournal(e Entry) (uint64, error) {
	err := d.updateBucket(journalBucket, func(b *bolt.Bucket) error {
		seq, err := b.NextSequence()
		if err != nil {
			return errors.Wrap(err, "failed to allocate journal sequence")
		}
		e.Seq = seq
		if e.Time.IsZero() {
			e.Time = time.Now().UTC()
		}

		v, err := encodeEntry(e)
		if err != nil {
			return err
		}
		return errors.Wrap(b.Put(seqKey(seq), v), "failed to append journal entry")
	})
	if err != nil {
		return 0, err
	}
	return e.Seq, nil
}

// Journal returns every journal entry, oldest first.
func (d *DB) Journal() ([]Entry, error) {
	return d.JournalSince(0)
}

// JournalSince returns the journal entries with a sequence number greater
// than seq, oldest first.
func (d *DB) JournalSince(seq uint64) ([]Entry, error) {
	var out []Entry
	err := d.viewBucket(journalBucket, func(b *bolt.Bucket) error {
		c := b.Cursor()
		for k, v := c.Seek(seqKey(seq + 1)); k != nil; k, v = c.Next() {
			e, err := decodeEntry(v)
			if err != nil {
				return errors.Wrapf(err, "failed to decode journal entry %#x", k)
			}
			e.Seq = binary.BigEndian.Uint64(k)
			out = append(out, e)
		}
		return nil
	})
	return out, err
}
