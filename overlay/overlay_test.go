package overlay

import (
	"testing"

	"github.com/ecashx/indexer/chainsource"
	"github.com/ecashx/indexer/keycodec"
	"github.com/ecashx/indexer/schema"
	"github.com/ecashx/indexer/store"
)

func hashByte(b byte) [32]byte {
	var h [32]byte
	h[0] = b
	return h
}

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func p2pkhScript(hash byte) []byte {
	s := make([]byte, 25)
	s[0], s[1], s[2] = 0x76, 0xa9, 0x14
	for i := 0; i < 20; i++ {
		s[3+i] = hash
	}
	s[23], s[24] = 0x88, 0xac
	return s
}

// TestOverlayHiding is the invariant from spec.md §8: a mempool removal
// marker hides a utxo even if it's present in both utxo_set and
// mempool_utxo_set_add.
func TestOverlayHiding(t *testing.T) {
	db := newTestDB(t)
	ov := New(db)

	key := keycodec.UtxoKey{TxHash: hashByte(1), OutIdx: 0}
	u := schema.Utxo{Sats: 1000}

	b := db.NewBatch()
	b.Set(store.CFUtxoSet, key.Encode(), u.Encode())
	b.Set(store.CFMempoolUtxoSetAdd, key.Encode(), u.Encode())
	b.Set(store.CFMempoolUtxoSetRem, key.Encode(), nil)
	if err := b.Commit(false); err != nil {
		t.Fatalf("commit: %v", err)
	}

	_, ok, err := ov.Utxo(key)
	if err != nil {
		t.Fatalf("utxo: %v", err)
	}
	if ok {
		t.Error("a removed utxo must stay hidden even if present in utxo_set and mempool add")
	}
}

func TestTxMetaMempoolFirst(t *testing.T) {
	db := newTestDB(t)
	ov := New(db)
	hash := hashByte(5)

	confirmed := schema.TxMeta{BlockHeight: 10}
	mempool := schema.TxMeta{BlockHeight: -1}

	b := db.NewBatch()
	b.Set(store.CFTxMeta, hash[:], confirmed.Encode())
	b.Set(store.CFMempoolTxMeta, hash[:], mempool.Encode())
	if err := b.Commit(false); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, ok, err := ov.TxMeta(hash)
	if err != nil || !ok {
		t.Fatalf("tx meta: ok=%v err=%v", ok, err)
	}
	if got.BlockHeight != -1 {
		t.Errorf("expected mempool entry to win, got block height %d", got.BlockHeight)
	}
}

func TestRawTxMempoolFirst(t *testing.T) {
	db := newTestDB(t)
	ov := New(db)
	hash := hashByte(6)

	confirmed := schema.RawTx{Outputs: []schema.RawTxOut{{Value: 100}}}
	mempool := schema.RawTx{Outputs: []schema.RawTxOut{{Value: 200}}}

	b := db.NewBatch()
	b.Set(store.CFRawTx, hash[:], confirmed.Encode())
	b.Set(store.CFMempoolRawTx, hash[:], mempool.Encode())
	if err := b.Commit(false); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, ok, err := ov.RawTx(hash)
	if err != nil || !ok {
		t.Fatalf("raw tx: ok=%v err=%v", ok, err)
	}
	if len(got.Outputs) != 1 || got.Outputs[0].Value != 200 {
		t.Errorf("expected mempool entry to win, got %+v", got.Outputs)
	}
}

// TestMempoolVisibilityScenario is end-to-end scenario 5 from spec.md §8:
// a mempool spend hides a confirmed utxo until clear_mempool runs.
func TestMempoolVisibilityScenario(t *testing.T) {
	db := newTestDB(t)
	ov := New(db)

	coinbase := chainsource.Tx{
		Hash:    hashByte(1),
		Inputs:  []chainsource.TxIn{{PrevOutIdx: 0xFFFFFFFF}},
		Outputs: []chainsource.TxOut{{Value: 1000, Script: p2pkhScript(0x01)}},
	}
	block := &chainsource.Block{Height: 1, Hash: hashByte(0xA1), Txs: []chainsource.Tx{coinbase}}
	if err := schema.BuildBlockBatch(db, block).Commit(false); err != nil {
		t.Fatalf("commit block: %v", err)
	}

	utxoKey := keycodec.UtxoKey{TxHash: coinbase.Hash, OutIdx: 0}
	if _, ok, err := ov.Utxo(utxoKey); err != nil || !ok {
		t.Fatalf("expected confirmed utxo present before mempool spend, ok=%v err=%v", ok, err)
	}

	mempoolTx := &chainsource.Tx{
		Hash: hashByte(2),
		Inputs: []chainsource.TxIn{
			{PrevTxHash: coinbase.Hash, PrevOutIdx: 0, Value: 1000, PrevScript: p2pkhScript(0x01)},
		},
		Outputs: []chainsource.TxOut{{Value: 900, Script: p2pkhScript(0x02)}},
	}
	if err := schema.BuildMempoolTxBatch(db, []*chainsource.Tx{mempoolTx}, 1).Commit(false); err != nil {
		t.Fatalf("commit mempool batch: %v", err)
	}

	if _, ok, err := ov.Utxo(utxoKey); err != nil || ok {
		t.Fatalf("expected utxo hidden by mempool spend, ok=%v err=%v", ok, err)
	}

	for _, cf := range store.MempoolCFs {
		if err := db.DeleteRangeCF(cf, false); err != nil {
			t.Fatalf("clear_mempool %s: %v", cf, err)
		}
	}

	if _, ok, err := ov.Utxo(utxoKey); err != nil || !ok {
		t.Fatalf("expected utxo visible again after clear_mempool, ok=%v err=%v", ok, err)
	}
}

func TestAddressNumTxsSumsBothLayers(t *testing.T) {
	db := newTestDB(t)
	ov := New(db)
	addr := keycodec.AddrPrefix{Type: keycodec.AddrTypeP2PKH, Hash: [20]byte{1}}

	confirmedKey := keycodec.AddrTxKey{Addr: addr, BlockHeight: 1, TxHash: hashByte(1)}
	mempoolKey := keycodec.AddrTxKey{Addr: addr, BlockHeight: 0xFFFFFFFF, TxHash: hashByte(2)}
	entry := schema.AddrTxEntry{}

	b := db.NewBatch()
	b.Set(store.CFAddrTxMeta, confirmedKey.Encode(), entry.Encode())
	b.Set(store.CFMempoolAddrTxMeta, mempoolKey.Encode(), entry.Encode())
	if err := b.Commit(false); err != nil {
		t.Fatalf("commit: %v", err)
	}

	n, err := ov.AddressNumTxs(addr)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("want 2, got %d", n)
	}
}

func TestAddressTxsOrderingMempoolThenNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ov := New(db)
	addr := keycodec.AddrPrefix{Type: keycodec.AddrTypeP2PKH, Hash: [20]byte{2}}

	entry := schema.AddrTxEntry{}
	b := db.NewBatch()
	b.Set(store.CFAddrTxMeta, keycodec.AddrTxKey{Addr: addr, BlockHeight: 1, TxHash: hashByte(0x11)}.Encode(), entry.Encode())
	b.Set(store.CFAddrTxMeta, keycodec.AddrTxKey{Addr: addr, BlockHeight: 2, TxHash: hashByte(0x22)}.Encode(), entry.Encode())
	b.Set(store.CFMempoolAddrTxMeta, keycodec.AddrTxKey{Addr: addr, BlockHeight: 0xFFFFFFFF, TxHash: hashByte(0x33)}.Encode(), entry.Encode())
	if err := b.Commit(false); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rows, err := ov.AddressTxs(addr, 0, 10)
	if err != nil {
		t.Fatalf("address txs: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
	if rows[0].TxHash != hashByte(0x33) {
		t.Errorf("expected mempool row first, got %x", rows[0].TxHash)
	}
	if rows[1].TxHash != hashByte(0x22) || rows[2].TxHash != hashByte(0x11) {
		t.Errorf("expected confirmed rows newest-first, got %x then %x", rows[1].TxHash, rows[2].TxHash)
	}
}

func TestAddressTxsEmptyOnZeroTake(t *testing.T) {
	db := newTestDB(t)
	ov := New(db)
	addr := keycodec.AddrPrefix{Type: keycodec.AddrTypeP2PKH, Hash: [20]byte{3}}

	rows, err := ov.AddressTxs(addr, 0, 0)
	if err != nil {
		t.Fatalf("address txs: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("want no rows for take=0, got %d", len(rows))
	}
}
