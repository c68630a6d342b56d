package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/ecashx/indexer/chainsource"
	"github.com/ecashx/indexer/store"
)

type fakeSource struct {
	tip int32
}

func (f *fakeSource) BlockAtHeight(_ context.Context, height int32) (*chainsource.Block, error) {
	if height > f.tip {
		return nil, chainsource.ErrBlockNotFound
	}
	var hash [32]byte
	hash[0] = byte(height + 1)
	return &chainsource.Block{
		Height: height,
		Hash:   hash,
		Txs: []chainsource.Tx{{
			Hash:    hash,
			Inputs:  []chainsource.TxIn{{PrevOutIdx: 0xFFFFFFFF}},
			Outputs: []chainsource.TxOut{{Value: 50, Script: []byte{0x6a}}},
		}},
	}, nil
}
func (f *fakeSource) BlockByHashOrHeight(context.Context, string) (*chainsource.Block, error) {
	return nil, chainsource.ErrBlockNotFound
}
func (f *fakeSource) FullBlock(context.Context, [32]byte, bool) (*chainsource.Block, error) {
	return nil, chainsource.ErrBlockNotFound
}
func (f *fakeSource) RawTx(context.Context, [32]byte) (*chainsource.Tx, error) {
	return nil, chainsource.ErrBlockNotFound
}
func (f *fakeSource) Mempool(context.Context) ([]*chainsource.Tx, error) { return nil, nil }
func (f *fakeSource) TokenMetaBatch(context.Context, [][32]byte) (map[[32]byte]*chainsource.GenesisMeta, error) {
	return nil, nil
}
func (f *fakeSource) SubscribeBlocks(context.Context) (<-chan *chainsource.Block, <-chan error) {
	return make(chan *chainsource.Block), make(chan error)
}
func (f *fakeSource) SubscribeTxs(context.Context) (<-chan *chainsource.Tx, <-chan error) {
	return make(chan *chainsource.Tx), make(chan error)
}

func TestServiceRunCatchesUpThenBlocksOnLiveFeeds(t *testing.T) {
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	svc := New(&fakeSource{tip: 9}, db, 4, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- svc.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for {
		h, ok, err := svc.Query.LastBlockHeight()
		if err != nil {
			t.Fatalf("last height: %v", err)
		}
		if ok && h == 9 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for catch-up to reach height 9")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	<-runErr

	hash, ok, err := svc.Query.BlockHashAt(0)
	if err != nil || !ok {
		t.Fatalf("expected genesis block indexed: ok=%v err=%v", ok, err)
	}
	if _, err := db.Get(store.CFBlockMeta, hash[:]); err != nil {
		t.Errorf("expected block_meta row: %v", err)
	}
}
