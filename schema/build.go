package schema

import (
	"github.com/ecashx/indexer/chainsource"
	"github.com/ecashx/indexer/keycodec"
	"github.com/ecashx/indexer/store"
)

// addrAccum accumulates the satoshi and token deltas a single transaction
// causes for one address, before being flattened into one AddrTxEntry row
// (spec.md §4.3 step 4).
type addrAccum struct {
	deltaSats   int64
	hasToken    bool
	tokenID     [32]byte
	deltaTokens int64
}

// BuildBlockBatch implements make_block_batches (spec.md §4.3): one atomic
// batch covering every confirmed-layer row a block produces.
func BuildBlockBatch(db *store.DB, block *chainsource.Block) *store.Batch {
	b := db.NewBatch()

	heightKey := keycodec.HeightKey(uint32(block.Height)).Encode()
	b.Set(store.CFBlockHeightIdx, heightKey, block.Hash[:])

	meta := buildBlockMeta(block)
	b.Set(store.CFBlockMeta, block.Hash[:], meta.Encode())

	for _, tx := range block.Txs {
		writeTxBatch(b, tx, block.Height, int64(block.Header.Timestamp), confirmedCFs)
	}

	return b
}

// BuildMempoolTxBatch implements make_mempool_tx_batches (spec.md §4.3):
// same per-tx shape as a confirmed block, written to the parallel mempool
// CFs, with UTXO/addr-UTXO removals additive instead of destructive, and no
// block-height index entry.
func BuildMempoolTxBatch(db *store.DB, txs []*chainsource.Tx, observedAt int64) *store.Batch {
	b := db.NewBatch()
	for _, tx := range txs {
		writeTxBatch(b, *tx, -1, observedAt, mempoolCFs)
	}
	return b
}

// cfSet names the nine column families one writeTxBatch call touches,
// switched between the confirmed and mempool pairs.
type cfSet struct {
	txMeta        string
	addrTxMeta    string
	utxoSet       string // mempool: the "add" CF
	utxoSetRemove string // "" for the confirmed set: removal is a real Delete there
	addrUtxo      string // mempool: the "add" CF
	addrUtxoRemove string
	txOutSpend    string
	tokenMeta     string
	rawTx         string
	mempool       bool
}

var confirmedCFs = cfSet{
	txMeta:     store.CFTxMeta,
	addrTxMeta: store.CFAddrTxMeta,
	utxoSet:    store.CFUtxoSet,
	addrUtxo:   store.CFAddrUtxo,
	txOutSpend: store.CFTxOutSpend,
	tokenMeta:  store.CFTokenMeta,
	rawTx:      store.CFRawTx,
	mempool:    false,
}

var mempoolCFs = cfSet{
	txMeta:         store.CFMempoolTxMeta,
	addrTxMeta:     store.CFMempoolAddrTxMeta,
	utxoSet:        store.CFMempoolUtxoSetAdd,
	utxoSetRemove:  store.CFMempoolUtxoSetRem,
	addrUtxo:       store.CFMempoolAddrUtxoAdd,
	addrUtxoRemove: store.CFMempoolAddrUtxoRem,
	txOutSpend:     store.CFMempoolTxOutSpend,
	tokenMeta:      store.CFMempoolTokenMeta,
	rawTx:          store.CFMempoolRawTx,
	mempool:        true,
}

// mempoolAddrTxHeight sentinel sorts after any real confirmed height, so a
// mempool AddrTxKey never collides with a confirmed one even though both
// share the same key layout.
const mempoolAddrTxHeight = 0xFFFFFFFF

func writeTxBatch(b *store.Batch, tx chainsource.Tx, height int32, timestamp int64, cfs cfSet) {
	isCoinbase := len(tx.Inputs) > 0 && tx.Inputs[0].IsCoinbase()

	var inSum, outSum uint64
	for _, in := range tx.Inputs {
		inSum += in.TokenAmount
	}
	for _, out := range tx.Outputs {
		outSum += out.TokenAmount
	}
	variant := ClassifyTxVariant(tx.Slp, inSum, outSum)

	var totalIn, totalOut uint64
	for _, in := range tx.Inputs {
		totalIn += in.Value
	}
	for _, out := range tx.Outputs {
		totalOut += out.Value
	}

	txMeta := TxMeta{
		BlockHeight:     height,
		Timestamp:       timestamp,
		IsCoinbase:      isCoinbase,
		Size:            tx.Size,
		InputCount:      uint32(len(tx.Inputs)),
		OutputCount:     uint32(len(tx.Outputs)),
		TotalInputSats:  totalIn,
		TotalOutputSats: totalOut,
		Variant:         variant,
	}
	b.Set(cfs.txMeta, tx.Hash[:], txMeta.Encode())

	raw := RawTx{
		Inputs:  make([]RawTxIn, len(tx.Inputs)),
		Outputs: make([]RawTxOut, len(tx.Outputs)),
	}
	for i, in := range tx.Inputs {
		raw.Inputs[i] = RawTxIn{PrevTxHash: in.PrevTxHash, PrevOutIdx: in.PrevOutIdx, PrevScript: in.PrevScript, Value: in.Value}
	}
	for i, out := range tx.Outputs {
		raw.Outputs[i] = RawTxOut{Value: out.Value, Script: out.Script}
	}
	b.Set(cfs.rawTx, tx.Hash[:], raw.Encode())

	deltas := map[keycodec.AddrPrefix]*addrAccum{}
	accum := func(addr *keycodec.AddrPrefix, sats int64, hasToken bool, tokenID [32]byte, tokens int64) {
		if addr == nil {
			return
		}
		a, ok := deltas[*addr]
		if !ok {
			a = &addrAccum{}
			deltas[*addr] = a
		}
		a.deltaSats += sats
		if hasToken {
			a.hasToken = true
			a.tokenID = tokenID
			a.deltaTokens += tokens
		}
	}

	// Step 5/6/7/8: per-output UTXO writes and per-input spends.
	for idx, out := range tx.Outputs {
		_, addr := ClassifyScript(out.Script)
		utxoKey := keycodec.UtxoKey{TxHash: tx.Hash, OutIdx: uint32(idx)}

		var tokenID [32]byte
		hasToken := out.TokenAmount > 0 && variant.Kind == VariantSlp
		if hasToken {
			tokenID = variant.TokenID
		}
		u := Utxo{
			Sats:        out.Value,
			HasToken:    hasToken,
			TokenID:     tokenID,
			TokenAmount: out.TokenAmount,
			IsCoinbase:  isCoinbase,
			BlockHeight: height,
		}
		b.Set(cfs.utxoSet, utxoKey.Encode(), u.Encode())

		if addr != nil {
			au := keycodec.AddrUtxoKey{Addr: *addr, Utxo: utxoKey}
			b.Set(cfs.addrUtxo, au.Encode(), nil)
		}

		accum(addr, int64(out.Value), hasToken, tokenID, int64(out.TokenAmount))
	}

	for idx, in := range tx.Inputs {
		if !in.IsCoinbase() {
			prevKey := keycodec.UtxoKey{TxHash: in.PrevTxHash, OutIdx: in.PrevOutIdx}
			if cfs.mempool {
				b.Set(cfs.utxoSetRemove, prevKey.Encode(), nil)
			} else {
				b.Delete(cfs.utxoSet, prevKey.Encode())
			}

			_, addr := ClassifyScript(in.PrevScript)
			if addr != nil {
				au := keycodec.AddrUtxoKey{Addr: *addr, Utxo: prevKey}
				if cfs.mempool {
					b.Set(cfs.addrUtxoRemove, au.Encode(), nil)
				} else {
					b.Delete(cfs.addrUtxo, au.Encode())
				}
			}

			var tokenID [32]byte
			hasToken := in.TokenAmount > 0 && variant.Kind == VariantSlp
			if hasToken {
				tokenID = variant.TokenID
			}
			accum(addr, -int64(in.Value), hasToken, tokenID, -int64(in.TokenAmount))

			spend := OutSpend{SpendingTxHash: tx.Hash, SpendingIdx: uint32(idx)}
			b.Set(cfs.txOutSpend, prevKey.Encode(), spend.Encode())
		}
	}

	addrHeight := uint32(height)
	if cfs.mempool {
		addrHeight = mempoolAddrTxHeight
	}
	for addr, a := range deltas {
		key := keycodec.AddrTxKey{Addr: addr, BlockHeight: addrHeight, TxHash: tx.Hash}
		entry := AddrTxEntry{
			Timestamp:   timestamp,
			BlockHeight: height,
			DeltaSats:   a.deltaSats,
			HasToken:    a.hasToken,
			TokenID:     a.tokenID,
			DeltaTokens: a.deltaTokens,
		}
		b.Set(cfs.addrTxMeta, key.Encode(), entry.Encode())
	}

	// Step 9: GENESIS token metadata.
	if variant.Kind == VariantSlp && variant.Action.IsGenesis() && tx.Slp != nil && tx.Slp.Genesis != nil {
		g := tx.Slp.Genesis
		tm := TokenMeta{
			TokenType:    variant.Action.TokenType(),
			Ticker:       g.Ticker,
			Name:         g.Name,
			DocumentURL:  g.DocumentURL,
			DocumentHash: g.DocumentHash,
			Decimals:     g.Decimals,
		}
		if g.GroupID != nil {
			tm.HasGroupID = true
			tm.GroupID = *g.GroupID
		}
		b.Set(cfs.tokenMeta, variant.TokenID[:], tm.Encode())
	}
}

func buildBlockMeta(block *chainsource.Block) BlockMeta {
	var totalIn, totalOut uint64
	var coinbaseScript []byte
	for ti, tx := range block.Txs {
		for _, in := range tx.Inputs {
			totalIn += in.Value
		}
		for _, out := range tx.Outputs {
			totalOut += out.Value
		}
		if ti == 0 && len(tx.Inputs) > 0 {
			coinbaseScript = tx.Inputs[0].SignatureScript
		}
	}

	return BlockMeta{
		Height:          block.Height,
		Hash:            block.Hash,
		Version:         block.Header.Version,
		PrevHash:        block.Header.PrevHash,
		MerkleRoot:      block.Header.MerkleRoot,
		Timestamp:       int64(block.Header.Timestamp),
		Bits:            block.Header.Bits,
		Nonce:           block.Header.Nonce,
		Difficulty:      block.Difficulty,
		MedianTime:      block.MedianTime,
		Size:            block.Size,
		TxCount:         uint64(len(block.Txs)),
		CoinbaseScript:  coinbaseScript,
		TotalInputSats:  totalIn,
		TotalOutputSats: totalOut,
	}
}
