// Package store is the ordered key/value engine (spec.md C2). Pebble has no
// native column-family concept, unlike the sled trees the original indexer
// used; following the teacher's own pattern in indexers/utxos/store.go
// (prefixPChainUTXO = "p-utxo:", prefixSpent = "spent:", ...), each column
// family here is a fixed string prefix glued onto pebble's single flat
// keyspace.
package store

// CF names, one per confirmed and mempool column family (spec.md §6).
const (
	CFBlockHeightIdx = "block_height_idx"
	CFBlockMeta      = "block_meta"
	CFTxMeta         = "tx_meta"
	CFAddrTxMeta     = "addr_tx_meta"
	CFAddrUtxo       = "addr_utxo"
	CFUtxoSet        = "utxo_set"
	CFTxOutSpend     = "tx_out_spend"
	CFTokenMeta      = "token_meta"
	CFRawTx          = "raw_tx"

	CFMempoolTxMeta        = "mempool_tx_meta"
	CFMempoolAddrTxMeta    = "mempool_addr_tx_meta"
	CFMempoolAddrUtxoAdd   = "mempool_addr_utxo_add"
	CFMempoolAddrUtxoRem   = "mempool_addr_utxo_remove"
	CFMempoolUtxoSetAdd    = "mempool_utxo_set_add"
	CFMempoolUtxoSetRem    = "mempool_utxo_set_remove"
	CFMempoolTxOutSpend    = "mempool_tx_out_spend"
	CFMempoolTokenMeta     = "mempool_token_meta"
	CFMempoolRawTx         = "mempool_raw_tx"
)

// MempoolCFs lists the mempool overlay column families, the exact set
// clear_mempool range-deletes on every resync (spec.md §4.6). Nine rather
// than spec.md's original eight: CFMempoolRawTx was added alongside
// CFRawTx (SPEC_FULL.md §4) to serve query.TxDetail from mempool
// transactions too.
var MempoolCFs = []string{
	CFMempoolTxMeta,
	CFMempoolAddrTxMeta,
	CFMempoolAddrUtxoAdd,
	CFMempoolAddrUtxoRem,
	CFMempoolUtxoSetAdd,
	CFMempoolUtxoSetRem,
	CFMempoolTxOutSpend,
	CFMempoolTokenMeta,
	CFMempoolRawTx,
}

// cfKey glues a column family prefix onto a raw key, colon-separated the way
// the teacher's "p-utxo:" / "spent:" prefixes are.
func cfKey(cf string, key []byte) []byte {
	out := make([]byte, 0, len(cf)+1+len(key))
	out = append(out, cf...)
	out = append(out, ':')
	out = append(out, key...)
	return out
}
