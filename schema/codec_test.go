package schema

import (
	"bytes"
	"testing"

	"github.com/ecashx/indexer/chainsource"
)

func TestBlockMetaRoundTrip(t *testing.T) {
	m := BlockMeta{
		Height:          700000,
		Hash:            hashWithFirstByte(0x01),
		Version:         2,
		PrevHash:        hashWithFirstByte(0x02),
		MerkleRoot:      hashWithFirstByte(0x03),
		Timestamp:       1700000000,
		Bits:            0x1d00ffff,
		Nonce:           123456,
		Difficulty:      1.5,
		MedianTime:      1699999000,
		Size:            1024,
		TxCount:         12,
		CoinbaseScript:  []byte{0x01, 0x02, 0x03},
		TotalInputSats:  5000,
		TotalOutputSats: 4900,
	}
	got, err := DecodeBlockMeta(m.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !blockMetaEqual(got, m) {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", m, got)
	}
}

func blockMetaEqual(a, b BlockMeta) bool {
	return a.Height == b.Height && a.Hash == b.Hash && a.Version == b.Version &&
		a.PrevHash == b.PrevHash && a.MerkleRoot == b.MerkleRoot && a.Timestamp == b.Timestamp &&
		a.Bits == b.Bits && a.Nonce == b.Nonce && a.Difficulty == b.Difficulty &&
		a.MedianTime == b.MedianTime && a.Size == b.Size && a.TxCount == b.TxCount &&
		bytes.Equal(a.CoinbaseScript, b.CoinbaseScript) &&
		a.TotalInputSats == b.TotalInputSats && a.TotalOutputSats == b.TotalOutputSats
}

func TestTxMetaRoundTripAllVariants(t *testing.T) {
	tokenID := hashWithFirstByte(0x42)
	tests := []TxMeta{
		{BlockHeight: 5, Timestamp: 111, Size: 250, InputCount: 1, OutputCount: 2, Variant: TxMetaVariant{Kind: VariantSatsOnly}},
		{BlockHeight: -1, Timestamp: 222, Variant: TxMetaVariant{
			Kind: VariantSlp, Action: chainsource.SlpActionSendType1, TokenIn: 1000, TokenOut: 1000, TokenID: tokenID,
		}},
		{BlockHeight: 6, Timestamp: 333, Variant: TxMetaVariant{
			Kind: VariantInvalidSlp, TokenIn: 700, TokenID: tokenID,
		}},
	}

	for i, want := range tests {
		got, err := DecodeTxMeta(want.Encode())
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if got != want {
			t.Errorf("case %d: round trip mismatch:\nwant %+v\ngot  %+v", i, want, got)
		}
	}
}

func TestTokenMetaRoundTrip(t *testing.T) {
	groupID := hashWithFirstByte(0x09)
	tm := TokenMeta{
		TokenType:    0x41,
		Ticker:       "TOK",
		Name:         "Test Token",
		DocumentURL:  "https://example.com",
		DocumentHash: []byte{0xde, 0xad},
		Decimals:     8,
		HasGroupID:   true,
		GroupID:      groupID,
	}
	got, err := DecodeTokenMeta(tm.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TokenType != tm.TokenType || got.Ticker != tm.Ticker || got.Name != tm.Name ||
		got.DocumentURL != tm.DocumentURL || !bytes.Equal(got.DocumentHash, tm.DocumentHash) ||
		got.Decimals != tm.Decimals || got.HasGroupID != tm.HasGroupID || got.GroupID != tm.GroupID {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", tm, got)
	}
}

func TestUtxoRoundTrip(t *testing.T) {
	u := Utxo{Sats: 5000, HasToken: true, TokenID: hashWithFirstByte(1), TokenAmount: 400, IsCoinbase: true, BlockHeight: 10}
	got, err := DecodeUtxo(u.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != u {
		t.Errorf("round trip mismatch: want %+v, got %+v", u, got)
	}
}

func TestOutSpendRoundTrip(t *testing.T) {
	s := OutSpend{SpendingTxHash: hashWithFirstByte(9), SpendingIdx: 3}
	got, err := DecodeOutSpend(s.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != s {
		t.Errorf("round trip mismatch: want %+v, got %+v", s, got)
	}
}

func TestAddrTxEntryRoundTrip(t *testing.T) {
	e := AddrTxEntry{Timestamp: 42, BlockHeight: 7, DeltaSats: -500, HasToken: true, TokenID: hashWithFirstByte(2), DeltaTokens: 300}
	got, err := DecodeAddrTxEntry(e.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != e {
		t.Errorf("round trip mismatch: want %+v, got %+v", e, got)
	}
}

func TestRawTxRoundTrip(t *testing.T) {
	r := RawTx{
		Inputs: []RawTxIn{
			{PrevTxHash: hashWithFirstByte(1), PrevOutIdx: 2, PrevScript: []byte{0x76, 0xa9}, Value: 1000},
		},
		Outputs: []RawTxOut{
			{Value: 500, Script: []byte{0x6a, 0x04}},
			{Value: 500, Script: []byte{0x76, 0xa9, 0x14}},
		},
	}
	got, err := DecodeRawTx(r.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Inputs) != 1 ||
		got.Inputs[0].PrevTxHash != r.Inputs[0].PrevTxHash ||
		got.Inputs[0].PrevOutIdx != r.Inputs[0].PrevOutIdx ||
		got.Inputs[0].Value != r.Inputs[0].Value ||
		!bytes.Equal(got.Inputs[0].PrevScript, r.Inputs[0].PrevScript) {
		t.Errorf("input mismatch: want %+v, got %+v", r.Inputs, got.Inputs)
	}
	if len(got.Outputs) != 2 || got.Outputs[0].Value != 500 || !bytes.Equal(got.Outputs[1].Script, r.Outputs[1].Script) {
		t.Errorf("output mismatch: want %+v, got %+v", r.Outputs, got.Outputs)
	}
}

func TestDecodeRejectsTruncatedRecord(t *testing.T) {
	u := Utxo{Sats: 1}
	enc := u.Encode()
	if _, err := DecodeUtxo(enc[:len(enc)-1]); err == nil {
		t.Error("expected an error decoding a truncated record")
	}
}
