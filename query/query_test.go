package query

import (
	"testing"

	"github.com/ecashx/indexer/chainsource"
	"github.com/ecashx/indexer/keycodec"
	"github.com/ecashx/indexer/schema"
	"github.com/ecashx/indexer/store"
)

type fakeAddrCodec struct {
	known map[string]keycodec.AddrPrefix
}

func (f *fakeAddrCodec) Decode(addr string) (keycodec.AddrPrefix, bool) {
	p, ok := f.known[addr]
	return p, ok
}

func hashByte(b byte) [32]byte {
	var h [32]byte
	h[0] = b
	return h
}

func newTestAPI(t *testing.T) (*API, *store.DB) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, &fakeAddrCodec{known: map[string]keycodec.AddrPrefix{}}), db
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

func commitBlock(t *testing.T, db *store.DB, height int32, hash [32]byte) {
	t.Helper()
	coinbase := chainsource.Tx{
		Hash:    hash,
		Inputs:  []chainsource.TxIn{{PrevOutIdx: 0xFFFFFFFF}},
		Outputs: []chainsource.TxOut{{Value: 100, Script: p2pkhScript(0x01)}},
	}
	block := &chainsource.Block{Height: height, Hash: hash, Txs: []chainsource.Tx{coinbase}}
	if err := schema.BuildBlockBatch(db, block).Commit(false); err != nil {
		t.Fatalf("commit block %d: %v", height, err)
	}
}

func TestLastBlockHeightAndBlockRangeStopsAtGap(t *testing.T) {
	api, db := newTestAPI(t)

	commitBlock(t, db, 1, hashByte(0x11))
	commitBlock(t, db, 2, hashByte(0x12))
	// height 3 intentionally skipped
	commitBlock(t, db, 4, hashByte(0x14))

	h, ok, err := api.LastBlockHeight()
	if err != nil || !ok {
		t.Fatalf("last height: ok=%v err=%v", ok, err)
	}
	if h != 4 {
		t.Errorf("want 4, got %d", h)
	}

	rows, err := api.BlockRange(1, 10)
	if err != nil {
		t.Fatalf("block range: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 consecutive rows stopping at the gap, got %d", len(rows))
	}
	if rows[0].Hash != hashByte(0x11) || rows[1].Hash != hashByte(0x12) {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestBlockHashAtAndBlockMeta(t *testing.T) {
	api, db := newTestAPI(t)
	commitBlock(t, db, 7, hashByte(0x77))

	hash, ok, err := api.BlockHashAt(7)
	if err != nil || !ok {
		t.Fatalf("block hash at: ok=%v err=%v", ok, err)
	}
	if hash != hashByte(0x77) {
		t.Errorf("wrong hash: %x", hash)
	}

	meta, ok, err := api.BlockMeta(hash)
	if err != nil || !ok {
		t.Fatalf("block meta: ok=%v err=%v", ok, err)
	}
	if meta.Height != 7 {
		t.Errorf("want height 7, got %d", meta.Height)
	}
}

func TestSearchByHeightAndByTxHash(t *testing.T) {
	api, db := newTestAPI(t)
	hash := hashByte(0x33)
	commitBlock(t, db, 42, hash)

	path, ok, err := api.Search("42")
	if err != nil || !ok {
		t.Fatalf("search height: ok=%v err=%v", ok, err)
	}
	if path != "/block-height/42" {
		t.Errorf("unexpected path: %s", path)
	}

	txHex := keycodec.ReverseHex(hash)
	path, ok, err = api.Search(txHex)
	if err != nil || !ok {
		t.Fatalf("search tx hash: ok=%v err=%v", ok, err)
	}
	if path != "/tx/"+txHex {
		t.Errorf("unexpected path: %s", path)
	}
}

func TestSearchNoMatchReturnsFalse(t *testing.T) {
	api, _ := newTestAPI(t)
	_, ok, err := api.Search("not-an-address-or-hash")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if ok {
		t.Error("expected no match")
	}
}

func TestTxReturnsResolvedDetailForCoinbase(t *testing.T) {
	api, db := newTestAPI(t)
	hash := hashByte(0x99)
	commitBlock(t, db, 3, hash)

	detail, ok, err := api.Tx(hash)
	if err != nil || !ok {
		t.Fatalf("tx: ok=%v err=%v", ok, err)
	}
	if detail.Meta.BlockHeight != 3 {
		t.Errorf("want height 3, got %d", detail.Meta.BlockHeight)
	}
	if len(detail.Raw.Outputs) != 1 || detail.Raw.Outputs[0].Value != 100 {
		t.Errorf("unexpected raw outputs: %+v", detail.Raw.Outputs)
	}
	if len(detail.Raw.Inputs) != 1 {
		t.Fatalf("want 1 raw input, got %d", len(detail.Raw.Inputs))
	}
	if spend, exists := detail.Spends[0]; exists && spend != nil {
		t.Errorf("coinbase output should be unspent: %+v", spend)
	}
}

func TestTxUnknownHashReturnsFalse(t *testing.T) {
	api, _ := newTestAPI(t)
	_, ok, err := api.Tx(hashByte(0xEE))
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if ok {
		t.Error("expected no match for an unindexed hash")
	}
}

func TestAddressResolvesTxMeta(t *testing.T) {
	api, db := newTestAPI(t)
	hash := hashByte(0x55)
	commitBlock(t, db, 1, hash)

	var addrHash [20]byte
	for i := range addrHash {
		addrHash[i] = 0x01
	}
	addr := keycodec.AddrPrefix{Type: keycodec.AddrTypeP2PKH, Hash: addrHash}
	rows, err := api.Address(addr, 0, 10)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}
	if rows[0].Meta.BlockHeight != 1 {
		t.Errorf("expected resolved tx meta at height 1, got %d", rows[0].Meta.BlockHeight)
	}
}
