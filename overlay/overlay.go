// Package overlay is the read path (spec.md C4): every query goes through
// here so mempool adds/removes are always blended consistently with the
// confirmed layer, per the rule table in spec.md §4.4.
package overlay

import (
	"fmt"

	"github.com/ecashx/indexer/keycodec"
	"github.com/ecashx/indexer/schema"
	"github.com/ecashx/indexer/store"
)

// Overlay combines the confirmed column families with their mempool
// counterparts. It holds no state of its own beyond the store handle —
// ownership is read-only after construction (spec.md §9).
type Overlay struct {
	db *store.DB
}

func New(db *store.DB) *Overlay {
	return &Overlay{db: db}
}

// TxMeta: mempool first, else confirmed.
func (o *Overlay) TxMeta(hash [32]byte) (schema.TxMeta, bool, error) {
	if v, err := o.db.Get(store.CFMempoolTxMeta, hash[:]); err == nil {
		m, derr := schema.DecodeTxMeta(v)
		return m, true, derr
	} else if err != store.ErrNotFound {
		return schema.TxMeta{}, false, fmt.Errorf("overlay: tx_meta mempool lookup: %w", err)
	}

	v, err := o.db.Get(store.CFTxMeta, hash[:])
	if err == store.ErrNotFound {
		return schema.TxMeta{}, false, nil
	}
	if err != nil {
		return schema.TxMeta{}, false, fmt.Errorf("overlay: tx_meta confirmed lookup: %w", err)
	}
	m, err := schema.DecodeTxMeta(v)
	return m, true, err
}

// TokenMeta: mempool first, else confirmed.
func (o *Overlay) TokenMeta(tokenID [32]byte) (schema.TokenMeta, bool, error) {
	if v, err := o.db.Get(store.CFMempoolTokenMeta, tokenID[:]); err == nil {
		m, derr := schema.DecodeTokenMeta(v)
		return m, true, derr
	} else if err != store.ErrNotFound {
		return schema.TokenMeta{}, false, fmt.Errorf("overlay: token_meta mempool lookup: %w", err)
	}

	v, err := o.db.Get(store.CFTokenMeta, tokenID[:])
	if err == store.ErrNotFound {
		return schema.TokenMeta{}, false, nil
	}
	if err != nil {
		return schema.TokenMeta{}, false, fmt.Errorf("overlay: token_meta confirmed lookup: %w", err)
	}
	m, err := schema.DecodeTokenMeta(v)
	return m, true, err
}

// RawTx: mempool first, else confirmed (SPEC_FULL.md §4, same precedence as
// TxMeta).
func (o *Overlay) RawTx(hash [32]byte) (schema.RawTx, bool, error) {
	if v, err := o.db.Get(store.CFMempoolRawTx, hash[:]); err == nil {
		t, derr := schema.DecodeRawTx(v)
		return t, true, derr
	} else if err != store.ErrNotFound {
		return schema.RawTx{}, false, fmt.Errorf("overlay: raw_tx mempool lookup: %w", err)
	}

	v, err := o.db.Get(store.CFRawTx, hash[:])
	if err == store.ErrNotFound {
		return schema.RawTx{}, false, nil
	}
	if err != nil {
		return schema.RawTx{}, false, fmt.Errorf("overlay: raw_tx confirmed lookup: %w", err)
	}
	t, err := schema.DecodeRawTx(v)
	return t, true, err
}

// Utxo: absent if mempool_utxo_set_remove holds the key; else the mempool
// add row if present; else the confirmed row (spec.md §4.4).
func (o *Overlay) Utxo(key keycodec.UtxoKey) (schema.Utxo, bool, error) {
	enc := key.Encode()

	if _, err := o.db.Get(store.CFMempoolUtxoSetRem, enc); err == nil {
		return schema.Utxo{}, false, nil
	} else if err != store.ErrNotFound {
		return schema.Utxo{}, false, fmt.Errorf("overlay: utxo remove-marker lookup: %w", err)
	}

	if v, err := o.db.Get(store.CFMempoolUtxoSetAdd, enc); err == nil {
		u, derr := schema.DecodeUtxo(v)
		return u, true, derr
	} else if err != store.ErrNotFound {
		return schema.Utxo{}, false, fmt.Errorf("overlay: utxo mempool-add lookup: %w", err)
	}

	v, err := o.db.Get(store.CFUtxoSet, enc)
	if err == store.ErrNotFound {
		return schema.Utxo{}, false, nil
	}
	if err != nil {
		return schema.Utxo{}, false, fmt.Errorf("overlay: utxo confirmed lookup: %w", err)
	}
	u, err := schema.DecodeUtxo(v)
	return u, true, err
}

// TxOutSpends reports, for every output of tx, whether it has been spent:
// nil means unspent, non-nil names the spending tx/input (spec.md §4.4).
func (o *Overlay) TxOutSpends(txHash [32]byte) (map[uint32]*schema.OutSpend, error) {
	result := map[uint32]*schema.OutSpend{}

	for _, cf := range []string{store.CFUtxoSet, store.CFMempoolUtxoSetAdd} {
		if err := o.scanOutIdx(cf, txHash, func(idx uint32, _ []byte) error {
			if _, exists := result[idx]; !exists {
				result[idx] = nil
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	for _, cf := range []string{store.CFTxOutSpend, store.CFMempoolTxOutSpend} {
		if err := o.scanOutIdx(cf, txHash, func(idx uint32, value []byte) error {
			spend, err := schema.DecodeOutSpend(value)
			if err != nil {
				return err
			}
			result[idx] = &spend
			return nil
		}); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (o *Overlay) scanOutIdx(cf string, txHash [32]byte, fn func(idx uint32, value []byte) error) error {
	it, err := o.db.NewPrefixIter(cf, txHash[:])
	if err != nil {
		return fmt.Errorf("overlay: scan %s: %w", cf, err)
	}
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		k, err := keycodec.DecodeUtxoKey(it.Key())
		if err != nil {
			return fmt.Errorf("overlay: scan %s: %w", cf, err)
		}
		if err := fn(k.OutIdx, it.Value()); err != nil {
			return err
		}
	}
	return nil
}

// AddrTxRow is one row returned by AddressTxs.
type AddrTxRow struct {
	TxHash [32]byte
	Entry  schema.AddrTxEntry
}

// AddressTxs implements address(addr, skip, take): mempool ascending first,
// then confirmed newest-first, with skip/take spent across both streams in
// that order (spec.md §4.4, §9 — an explicit reverse iterator, not a
// materialized list).
func (o *Overlay) AddressTxs(addr keycodec.AddrPrefix, skip, take int) ([]AddrTxRow, error) {
	if take <= 0 {
		return nil, nil
	}

	var rows []AddrTxRow
	skipLeft := skip
	remaining := take

	mit, err := o.db.NewPrefixIter(store.CFMempoolAddrTxMeta, addr.Encode())
	if err != nil {
		return nil, fmt.Errorf("overlay: address mempool scan: %w", err)
	}
	for ok := mit.First(); ok && remaining > 0; ok = mit.Next() {
		if skipLeft > 0 {
			skipLeft--
			continue
		}
		row, err := decodeAddrTxRow(mit.Key(), mit.Value())
		if err != nil {
			mit.Close()
			return nil, err
		}
		rows = append(rows, row)
		remaining--
	}
	mit.Close()

	if remaining <= 0 {
		return rows, nil
	}

	cit, err := o.db.NewPrefixIter(store.CFAddrTxMeta, addr.Encode())
	if err != nil {
		return nil, fmt.Errorf("overlay: address confirmed scan: %w", err)
	}
	for ok := cit.Last(); ok && remaining > 0; ok = cit.Prev() {
		if skipLeft > 0 {
			skipLeft--
			continue
		}
		row, err := decodeAddrTxRow(cit.Key(), cit.Value())
		if err != nil {
			cit.Close()
			return nil, err
		}
		rows = append(rows, row)
		remaining--
	}
	cit.Close()

	return rows, nil
}

func decodeAddrTxRow(key, value []byte) (AddrTxRow, error) {
	k, err := keycodec.DecodeAddrTxKey(key)
	if err != nil {
		return AddrTxRow{}, fmt.Errorf("overlay: decode addr_tx_meta key: %w", err)
	}
	entry, err := schema.DecodeAddrTxEntry(value)
	if err != nil {
		return AddrTxRow{}, fmt.Errorf("overlay: decode addr_tx_meta value: %w", err)
	}
	return AddrTxRow{TxHash: k.TxHash, Entry: entry}, nil
}

// AddressNumTxs sums row counts across both the mempool and confirmed
// addr_tx_meta families (spec.md §4.4, §8).
func (o *Overlay) AddressNumTxs(addr keycodec.AddrPrefix) (int, error) {
	total := 0
	for _, cf := range []string{store.CFMempoolAddrTxMeta, store.CFAddrTxMeta} {
		it, err := o.db.NewPrefixIter(cf, addr.Encode())
		if err != nil {
			return 0, fmt.Errorf("overlay: count %s: %w", cf, err)
		}
		for it.First(); it.Valid(); it.Next() {
			total++
		}
		it.Close()
	}
	return total, nil
}

// TokenBalance is one bucket of an address's balance, grouped by optional
// token id; HasToken=false is the sats-only "None" bucket, always present.
type TokenBalance struct {
	HasToken bool
	TokenID  [32]byte
	Sats     uint64
	Tokens   uint64
}

// AddressBalance implements address_balance: the union of mempool and
// confirmed addr_utxo prefix scans, each resolved through Utxo so mempool
// removals are honored (spec.md §4.4).
func (o *Overlay) AddressBalance(addr keycodec.AddrPrefix) ([]TokenBalance, []schema.Utxo, error) {
	buckets := map[[32]byte]*TokenBalance{}
	none := &TokenBalance{HasToken: false}
	seen := map[keycodec.UtxoKey]bool{}
	var utxos []schema.Utxo

	scan := func(cf string) error {
		it, err := o.db.NewPrefixIter(cf, addr.Encode())
		if err != nil {
			return fmt.Errorf("overlay: balance scan %s: %w", cf, err)
		}
		defer it.Close()

		for it.First(); it.Valid(); it.Next() {
			au, err := keycodec.DecodeAddrUtxoKey(it.Key())
			if err != nil {
				return fmt.Errorf("overlay: decode addr_utxo key: %w", err)
			}
			if seen[au.Utxo] {
				continue
			}
			seen[au.Utxo] = true

			u, ok, err := o.Utxo(au.Utxo)
			if err != nil {
				return err
			}
			if !ok {
				continue // removed by the overlay
			}
			utxos = append(utxos, u)

			if !u.HasToken {
				none.Sats += u.Sats
				continue
			}
			b, exists := buckets[u.TokenID]
			if !exists {
				b = &TokenBalance{HasToken: true, TokenID: u.TokenID}
				buckets[u.TokenID] = b
			}
			b.Sats += u.Sats
			b.Tokens += u.TokenAmount
		}
		return nil
	}

	if err := scan(store.CFMempoolAddrUtxoAdd); err != nil {
		return nil, nil, err
	}
	if err := scan(store.CFAddrUtxo); err != nil {
		return nil, nil, err
	}

	result := []TokenBalance{*none}
	for _, b := range buckets {
		result = append(result, *b)
	}
	return result, utxos, nil
}
