package keycodec

import (
	"bytes"
	"testing"
)

func TestHeightKeyOrdering(t *testing.T) {
	tests := []struct {
		name   string
		h1, h2 HeightKey
	}{
		{"adjacent", 0, 1},
		{"far apart", 100, 70000},
		{"near u32 boundary", 0xFFFFFFFE, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if bytes.Compare(tt.h1.Encode(), tt.h2.Encode()) >= 0 {
				t.Errorf("expected Encode(%d) < Encode(%d) lexicographically", tt.h1, tt.h2)
			}
		})
	}
}

func TestHeightKeyRoundTrip(t *testing.T) {
	for _, h := range []HeightKey{0, 1, 42, 700000, 0xFFFFFFFF} {
		got, err := DecodeHeightKey(h.Encode())
		if err != nil {
			t.Fatalf("decode(%d): %v", h, err)
		}
		if got != h {
			t.Errorf("round trip: want %d, got %d", h, got)
		}
	}
}

func TestUtxoKeyRoundTrip(t *testing.T) {
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	k := UtxoKey{TxHash: hash, OutIdx: 7}
	enc := k.Encode()
	if len(enc) != UtxoKeyLen {
		t.Fatalf("want %d bytes, got %d", UtxoKeyLen, len(enc))
	}
	got, err := DecodeUtxoKey(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != k {
		t.Errorf("round trip mismatch: want %+v, got %+v", k, got)
	}
}

func TestAddrTxKeyOrderingByHeight(t *testing.T) {
	addr := AddrPrefix{Type: AddrTypeP2PKH, Hash: [20]byte{1, 2, 3}}
	var tx1, tx2 [32]byte
	tx1[0], tx2[0] = 0xAA, 0xBB

	k1 := AddrTxKey{Addr: addr, BlockHeight: 5, TxHash: tx1}
	k2 := AddrTxKey{Addr: addr, BlockHeight: 6, TxHash: tx2}

	if bytes.Compare(k1.Encode(), k2.Encode()) >= 0 {
		t.Error("expected lower block height to sort first within the same address prefix")
	}
}

func TestAddrTxKeyRoundTrip(t *testing.T) {
	addr := AddrPrefix{Type: AddrTypeP2SH, Hash: [20]byte{9, 8, 7, 6}}
	var txHash [32]byte
	txHash[31] = 0xFF

	k := AddrTxKey{Addr: addr, BlockHeight: 123456, TxHash: txHash}
	got, err := DecodeAddrTxKey(k.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != k {
		t.Errorf("round trip mismatch: want %+v, got %+v", k, got)
	}
}

func TestAddrUtxoKeyRoundTrip(t *testing.T) {
	addr := AddrPrefix{Type: AddrTypeP2PKH, Hash: [20]byte{1}}
	var txHash [32]byte
	k := AddrUtxoKey{Addr: addr, Utxo: UtxoKey{TxHash: txHash, OutIdx: 3}}

	got, err := DecodeAddrUtxoKey(k.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != k {
		t.Errorf("round trip mismatch: want %+v, got %+v", k, got)
	}
}

func TestSeekToEndIsGreaterThanAnyKeyWithPrefix(t *testing.T) {
	addr := AddrPrefix{Type: AddrTypeP2PKH, Hash: [20]byte{5, 5, 5}}
	end := addr.SeekToEnd()

	k := AddrTxKey{Addr: addr, BlockHeight: 0xFFFFFFFF, TxHash: [32]byte{0xFF, 0xFF}}
	if bytes.Compare(k.Encode(), end) >= 0 {
		t.Error("SeekToEnd must sort after every AddrTxKey sharing its prefix")
	}
}

func TestReverseHexRoundTrip(t *testing.T) {
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i * 3)
	}
	s := ReverseHex(hash)
	got, err := FromReverseHex(s)
	if err != nil {
		t.Fatalf("FromReverseHex: %v", err)
	}
	if got != hash {
		t.Errorf("round trip mismatch: want %x, got %x", hash, got)
	}
}

func TestFromReverseHexRejectsBadLength(t *testing.T) {
	if _, err := FromReverseHex("abcd"); err == nil {
		t.Error("expected error for short hex string")
	}
}
