package store

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/pebble/v2"
)

// Iterator scans a single column family. Keys returned by Key() have the
// column-family prefix stripped, so callers only ever see raw composite key
// bytes, matching the key layouts in keycodec.
type Iterator struct {
	it *pebble.Iterator
	cf string
}

// NewPrefixIter opens an iterator bounded to every key in cf starting with
// prefix (prefix may be empty, meaning the whole column family).
func (d *DB) NewPrefixIter(cf string, prefix []byte) (*Iterator, error) {
	lower := cfKey(cf, prefix)
	upper := prefixUpperBound(lower)
	it, err := d.pdb.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("store: new iterator on %s: %w", cf, err)
	}
	return &Iterator{it: it, cf: cf}, nil
}

// NewRangeIter opens an iterator over [lowerKey, upperKey) within cf, raw
// keys (not prefix-anchored). A nil upperKey runs to the end of cf.
func (d *DB) NewRangeIter(cf string, lowerKey, upperKey []byte) (*Iterator, error) {
	lower := cfKey(cf, lowerKey)
	var upper []byte
	if upperKey != nil {
		upper = cfKey(cf, upperKey)
	} else {
		upper = prefixUpperBound([]byte(cf + ":"))
	}
	it, err := d.pdb.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("store: new iterator on %s: %w", cf, err)
	}
	return &Iterator{it: it, cf: cf}, nil
}

func (it *Iterator) First() bool { return it.it.First() }
func (it *Iterator) Last() bool  { return it.it.Last() }
func (it *Iterator) Next() bool  { return it.it.Next() }
func (it *Iterator) Prev() bool  { return it.it.Prev() }
func (it *Iterator) Valid() bool { return it.it.Valid() }

// SeekGE seeks to the first key >= cf-prefixed rawKey.
func (it *Iterator) SeekGE(rawKey []byte) bool {
	return it.it.SeekGE(cfKey(it.cf, rawKey))
}

// SeekLT seeks to the last key < cf-prefixed rawKey.
func (it *Iterator) SeekLT(rawKey []byte) bool {
	return it.it.SeekLT(cfKey(it.cf, rawKey))
}

// Key returns the raw key with the column-family prefix stripped.
func (it *Iterator) Key() []byte {
	full := it.it.Key()
	prefixLen := len(it.cf) + 1
	if len(full) < prefixLen {
		return nil
	}
	return full[prefixLen:]
}

// Value returns a copy of the current row's value.
func (it *Iterator) Value() []byte {
	v := it.it.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (it *Iterator) Close() error {
	return it.it.Close()
}

// SeekLastInCF returns the last key (CF prefix stripped) and value in a
// column family, or (nil, nil, false) if the family is empty. Grounded on
// explorer-server/src/indexdb.rs's last_block_height, which derives the
// watermark by iterating the last key of block_height_idx rather than
// trusting a cached counter.
func (d *DB) SeekLastInCF(cf string) (key, value []byte, ok bool, err error) {
	it, err := d.NewPrefixIter(cf, nil)
	if err != nil {
		return nil, nil, false, err
	}
	defer it.Close()
	if !it.Last() {
		return nil, nil, false, nil
	}
	return it.Key(), it.Value(), true, nil
}

// prefixUpperBound returns the smallest key that sorts after every key
// sharing prefix, by incrementing the last byte that isn't already 0xFF.
func prefixUpperBound(prefix []byte) []byte {
	upper := bytes.Clone(prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xFF: unbounded above
}
