package store

import (
	"errors"
	"fmt"
	"log"

	"github.com/cockroachdb/pebble/v2"
)

// ErrNotFound mirrors pebble's not-found sentinel so callers never import
// pebble directly.
var ErrNotFound = pebble.ErrNotFound

// quietLogger silences pebble's info-level chatter, keeps errors. Grounded
// on db/pebble.go's identically-named helper.
type quietLogger struct{}

func (quietLogger) Infof(format string, args ...interface{}) {}
func (quietLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[store] "+format, args...)
}
func (quietLogger) Fatalf(format string, args ...interface{}) {
	log.Fatalf("[store] "+format, args...)
}

// Options returns the pebble.Options this service opens every DB with,
// carried over from the teacher's cmd/server/main.go pebbleOpts().
func Options() *pebble.Options {
	return &pebble.Options{
		Logger:                    quietLogger{},
		L0CompactionThreshold:     8,
		L0StopWritesThreshold:     24,
		LBaseMaxBytes:             512 << 20,
		MemTableSize:              64 << 20,
		CompactionConcurrencyRange: func() (int, int) { return 4, 8 },
	}
}

// DB is the directory-backed ordered key/value store (spec.md C2). Column
// families are key prefixes (cf.go); writes serialize through pebble's own
// batch commit, reads are lock-free.
type DB struct {
	pdb *pebble.DB
}

// Open opens (creating if absent) a store rooted at path.
func Open(path string) (*DB, error) {
	pdb, err := pebble.Open(path, Options())
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &DB{pdb: pdb}, nil
}

func (d *DB) Close() error {
	return d.pdb.Close()
}

// Flush syncs all pending writes to stable storage (spec.md §4.2 "flush").
func (d *DB) Flush() error {
	return d.pdb.Flush()
}

// Get reads a single row from a column family. The returned bytes are a
// copy the caller owns, never a reference into pebble's internal buffers.
func (d *DB) Get(cf string, key []byte) ([]byte, error) {
	val, closer, err := d.pdb.Get(cfKey(cf, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get %s: %w", cf, err)
	}
	out := make([]byte, len(val))
	copy(out, val)
	if cerr := closer.Close(); cerr != nil {
		return nil, fmt.Errorf("store: get %s: close: %w", cf, cerr)
	}
	return out, nil
}

// Set writes a single row directly (outside a batch). Used for watermarks
// and other singleton rows that don't belong to a block-batch commit.
func (d *DB) Set(cf string, key, value []byte, sync bool) error {
	opt := pebble.NoSync
	if sync {
		opt = pebble.Sync
	}
	if err := d.pdb.Set(cfKey(cf, key), value, opt); err != nil {
		return fmt.Errorf("store: set %s: %w", cf, err)
	}
	return nil
}

// NewBatch starts an atomic write batch spanning any number of column
// families (spec.md §4.2).
func (d *DB) NewBatch() *Batch {
	return &Batch{b: d.pdb.NewBatch()}
}

// DeleteRangeCF deletes every row in a column family. Used only by
// clear_mempool (spec.md §4.6).
func (d *DB) DeleteRangeCF(cf string, sync bool) error {
	b := d.NewBatch()
	b.DeleteRangeCF(cf)
	return b.Commit(sync)
}

// Batch is an atomic write spanning multiple column families. Nothing it
// contains is visible to readers until Commit succeeds.
type Batch struct {
	b *pebble.Batch
}

func (b *Batch) Set(cf string, key, value []byte) {
	b.b.Set(cfKey(cf, key), value, nil)
}

func (b *Batch) Delete(cf string, key []byte) {
	b.b.Delete(cfKey(cf, key), nil)
}

// DeleteRangeCF stages a delete of every key in cf's range.
func (b *Batch) DeleteRangeCF(cf string) {
	lo, hi := cfBounds(cf)
	b.b.DeleteRange(lo, hi, nil)
}

func (b *Batch) Commit(sync bool) error {
	opt := pebble.NoSync
	if sync {
		opt = pebble.Sync
	}
	if err := b.b.Commit(opt); err != nil {
		return fmt.Errorf("store: commit batch: %w", err)
	}
	return nil
}

func (b *Batch) Close() error {
	return b.b.Close()
}

// cfBounds returns the [lower, upper) byte range that contains every key in
// a column family — the prefix followed by the lexicographically-next
// prefix.
func cfBounds(cf string) (lower, upper []byte) {
	lower = append([]byte(cf), ':')
	upper = append([]byte(cf), ';') // ':' + 1 == ';' in ASCII
	return lower, upper
}
