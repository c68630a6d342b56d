// Package query is the read-only surface presentation code calls (spec.md
// C7). Every method is a thin typed wrapper: block_height_idx and
// block_meta are read straight off the store, everything else overlay-aware
// goes through Overlay.
package query

import (
	"fmt"
	"strconv"

	"github.com/ecashx/indexer/keycodec"
	"github.com/ecashx/indexer/overlay"
	"github.com/ecashx/indexer/schema"
	"github.com/ecashx/indexer/store"
)

// API is the query surface. It holds no state beyond the store handles it
// wraps; every method is safe to call concurrently.
type API struct {
	db    *store.DB
	ov    *overlay.Overlay
	addrs AddrCodec
}

func New(db *store.DB, addrs AddrCodec) *API {
	return &API{db: db, ov: overlay.New(db), addrs: addrs}
}

// LastBlockHeight returns the highest confirmed height, derived by seeking
// the last key of block_height_idx rather than a cached counter (spec.md
// §9, grounded on indexdb.rs::last_block_height).
func (a *API) LastBlockHeight() (uint32, bool, error) {
	key, _, ok, err := a.db.SeekLastInCF(store.CFBlockHeightIdx)
	if err != nil {
		return 0, false, fmt.Errorf("query: last_block_height: %w", err)
	}
	if !ok {
		return 0, false, nil
	}
	h, err := keycodec.DecodeHeightKey(key)
	if err != nil {
		return 0, false, fmt.Errorf("query: last_block_height: %w", err)
	}
	return uint32(h), true, nil
}

// BlockHashAt returns the hash stored at a confirmed height.
func (a *API) BlockHashAt(h uint32) ([32]byte, bool, error) {
	v, err := a.db.Get(store.CFBlockHeightIdx, keycodec.HeightKey(h).Encode())
	if err == store.ErrNotFound {
		return [32]byte{}, false, nil
	}
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("query: block_hash_at: %w", err)
	}
	var hash [32]byte
	copy(hash[:], v)
	return hash, true, nil
}

// BlockMeta returns the aggregate metadata for a confirmed block hash.
func (a *API) BlockMeta(hash [32]byte) (schema.BlockMeta, bool, error) {
	v, err := a.db.Get(store.CFBlockMeta, hash[:])
	if err == store.ErrNotFound {
		return schema.BlockMeta{}, false, nil
	}
	if err != nil {
		return schema.BlockMeta{}, false, fmt.Errorf("query: block_meta: %w", err)
	}
	m, err := schema.DecodeBlockMeta(v)
	return m, err == nil, err
}

// BlockRangeEntry is one row of a BlockRange result.
type BlockRangeEntry struct {
	Hash [32]byte
	Meta schema.BlockMeta
}

// BlockRange returns at most n consecutive heights starting at start,
// stopping at the first missing height (spec.md §9's resolved open
// question — not n arbitrary matches, a contiguous run).
func (a *API) BlockRange(start uint32, n int) ([]BlockRangeEntry, error) {
	var out []BlockRangeEntry
	for i := 0; i < n; i++ {
		h := start + uint32(i)
		hash, ok, err := a.BlockHashAt(h)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		meta, ok, err := a.BlockMeta(hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, BlockRangeEntry{Hash: hash, Meta: meta})
	}
	return out, nil
}

func (a *API) TxMeta(hash [32]byte) (schema.TxMeta, bool, error) {
	return a.ov.TxMeta(hash)
}

func (a *API) TokenMeta(tokenID [32]byte) (schema.TokenMeta, bool, error) {
	return a.ov.TokenMeta(tokenID)
}

func (a *API) TxOutSpends(txHash [32]byte) (map[uint32]*schema.OutSpend, error) {
	return a.ov.TxOutSpends(txHash)
}

// TxDetail is the full shape needed to render a transaction page without a
// second chain-source round-trip (SPEC_FULL.md §4, grounded on
// explorer-server/src/indexdb.rs::extract_tx): the aggregate TxMeta, the
// raw input/output list, and which outputs are already spent.
type TxDetail struct {
	Hash    [32]byte
	Meta    schema.TxMeta
	Raw     schema.RawTx
	Spends  map[uint32]*schema.OutSpend
}

// Tx resolves a full TxDetail for hash, or ok=false if no transaction with
// that hash has been indexed (confirmed or mempool).
func (a *API) Tx(hash [32]byte) (TxDetail, bool, error) {
	meta, ok, err := a.ov.TxMeta(hash)
	if err != nil || !ok {
		return TxDetail{}, ok, err
	}
	raw, ok, err := a.ov.RawTx(hash)
	if err != nil {
		return TxDetail{}, false, err
	}
	if !ok {
		return TxDetail{}, false, fmt.Errorf("query: tx_meta present but raw_tx missing for %x", hash)
	}
	spends, err := a.ov.TxOutSpends(hash)
	if err != nil {
		return TxDetail{}, false, err
	}
	return TxDetail{Hash: hash, Meta: meta, Raw: raw, Spends: spends}, true, nil
}

// AddressTxRow is one row of an Address result, with its TxMeta resolved.
type AddressTxRow struct {
	TxHash [32]byte
	Entry  schema.AddrTxEntry
	Meta   schema.TxMeta
}

// Address returns paginated rows for an address, each with its TxMeta
// resolved (spec.md §4.7). Rows are mempool-first, then confirmed
// newest-first, per overlay.AddressTxs.
func (a *API) Address(addr keycodec.AddrPrefix, skip, take int) ([]AddressTxRow, error) {
	rows, err := a.ov.AddressTxs(addr, skip, take)
	if err != nil {
		return nil, err
	}
	out := make([]AddressTxRow, 0, len(rows))
	for _, r := range rows {
		meta, _, err := a.ov.TxMeta(r.TxHash)
		if err != nil {
			return nil, err
		}
		out = append(out, AddressTxRow{TxHash: r.TxHash, Entry: r.Entry, Meta: meta})
	}
	return out, nil
}

func (a *API) AddressNumTxs(addr keycodec.AddrPrefix) (int, error) {
	return a.ov.AddressNumTxs(addr)
}

func (a *API) AddressBalance(addr keycodec.AddrPrefix) ([]overlay.TokenBalance, []schema.Utxo, error) {
	return a.ov.AddressBalance(addr)
}

// Search implements search(query) → canonical_path: try decode as address,
// else parse as little-endian hex and look up a tx then a block, else parse
// as an integer height (spec.md §4.7, §9 scenario 6). First match wins.
func (a *API) Search(q string) (string, bool, error) {
	if a.addrs != nil {
		if _, ok := a.addrs.Decode(q); ok {
			return "/address/" + q, true, nil
		}
	}

	if hash, err := keycodec.FromReverseHex(q); err == nil {
		if _, ok, err := a.ov.TxMeta(hash); err != nil {
			return "", false, err
		} else if ok {
			return "/tx/" + q, true, nil
		}
		if _, ok, err := a.BlockMeta(hash); err != nil {
			return "", false, err
		} else if ok {
			return "/block/" + q, true, nil
		}
	}

	if n, err := strconv.ParseUint(q, 10, 32); err == nil {
		if _, ok, err := a.BlockHashAt(uint32(n)); err != nil {
			return "", false, err
		} else if ok {
			return fmt.Sprintf("/block-height/%d", n), true, nil
		}
	}

	return "", false, nil
}
