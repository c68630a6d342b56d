package schema

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ecashx/indexer/chainsource"
)

// writer is a tiny growable byte-packing buffer, grounded on the teacher's
// manual big-endian packing in db/pebble.go / xchain/fetcher.go.
type writer struct {
	buf []byte
}

func newWriter() *writer { return &writer{buf: make([]byte, 0, 64)} }

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

func (w *writer) f64(v float64) { w.u64(math.Float64bits(v)) }

func (w *writer) fixed32(v [32]byte) { w.buf = append(w.buf, v[:]...) }

func (w *writer) bytes(v []byte) {
	w.u32(uint32(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *writer) str(v string) { w.bytes([]byte(v)) }

func (w *writer) bytesOut() []byte { return w.buf }

// reader walks a byte slice produced by writer, failing closed on any
// length mismatch (spec.md §7 kind 1: decode errors are fatal for the
// calling query).
type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("schema: truncated record: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) f64() (float64, error) {
	v, err := r.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *reader) fixed32() ([32]byte, error) {
	var out [32]byte
	if err := r.need(32); err != nil {
		return out, err
	}
	copy(out[:], r.buf[r.pos:])
	r.pos += 32
	return out, nil
}

func (r *reader) bytesIn() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytesIn()
	return string(b), err
}

// --- BlockMeta ---

func (m BlockMeta) Encode() []byte {
	w := newWriter()
	w.u8(recordVersion)
	w.i32(m.Height)
	w.fixed32(m.Hash)
	w.i32(m.Version)
	w.fixed32(m.PrevHash)
	w.fixed32(m.MerkleRoot)
	w.i64(m.Timestamp)
	w.u32(m.Bits)
	w.u32(m.Nonce)
	w.f64(m.Difficulty)
	w.i64(m.MedianTime)
	w.u64(m.Size)
	w.u64(m.TxCount)
	w.bytes(m.CoinbaseScript)
	w.u64(m.TotalInputSats)
	w.u64(m.TotalOutputSats)
	return w.bytesOut()
}

func DecodeBlockMeta(b []byte) (BlockMeta, error) {
	var m BlockMeta
	r := newReader(b)
	if _, err := r.u8(); err != nil {
		return m, err
	}
	var err error
	if m.Height, err = r.i32(); err != nil {
		return m, err
	}
	if m.Hash, err = r.fixed32(); err != nil {
		return m, err
	}
	if m.Version, err = r.i32(); err != nil {
		return m, err
	}
	if m.PrevHash, err = r.fixed32(); err != nil {
		return m, err
	}
	if m.MerkleRoot, err = r.fixed32(); err != nil {
		return m, err
	}
	if m.Timestamp, err = r.i64(); err != nil {
		return m, err
	}
	if m.Bits, err = r.u32(); err != nil {
		return m, err
	}
	if m.Nonce, err = r.u32(); err != nil {
		return m, err
	}
	if m.Difficulty, err = r.f64(); err != nil {
		return m, err
	}
	if m.MedianTime, err = r.i64(); err != nil {
		return m, err
	}
	if m.Size, err = r.u64(); err != nil {
		return m, err
	}
	if m.TxCount, err = r.u64(); err != nil {
		return m, err
	}
	if m.CoinbaseScript, err = r.bytesIn(); err != nil {
		return m, err
	}
	if m.TotalInputSats, err = r.u64(); err != nil {
		return m, err
	}
	if m.TotalOutputSats, err = r.u64(); err != nil {
		return m, err
	}
	return m, nil
}

// --- TxMeta ---

func (m TxMeta) Encode() []byte {
	w := newWriter()
	w.u8(recordVersion)
	w.i32(m.BlockHeight)
	w.i64(m.Timestamp)
	w.bool(m.IsCoinbase)
	w.u64(m.Size)
	w.u32(m.InputCount)
	w.u32(m.OutputCount)
	w.u64(m.TotalInputSats)
	w.u64(m.TotalOutputSats)
	w.u8(uint8(m.Variant.Kind))
	switch m.Variant.Kind {
	case VariantSlp:
		w.u8(uint8(m.Variant.Action))
		w.u64(m.Variant.TokenIn)
		w.u64(m.Variant.TokenOut)
		w.fixed32(m.Variant.TokenID)
	case VariantInvalidSlp:
		w.u64(m.Variant.TokenIn)
		w.fixed32(m.Variant.TokenID)
	}
	return w.bytesOut()
}

func DecodeTxMeta(b []byte) (TxMeta, error) {
	var m TxMeta
	r := newReader(b)
	if _, err := r.u8(); err != nil {
		return m, err
	}
	var err error
	if m.BlockHeight, err = r.i32(); err != nil {
		return m, err
	}
	if m.Timestamp, err = r.i64(); err != nil {
		return m, err
	}
	if m.IsCoinbase, err = r.boolean(); err != nil {
		return m, err
	}
	if m.Size, err = r.u64(); err != nil {
		return m, err
	}
	if m.InputCount, err = r.u32(); err != nil {
		return m, err
	}
	if m.OutputCount, err = r.u32(); err != nil {
		return m, err
	}
	if m.TotalInputSats, err = r.u64(); err != nil {
		return m, err
	}
	if m.TotalOutputSats, err = r.u64(); err != nil {
		return m, err
	}
	kind, err := r.u8()
	if err != nil {
		return m, err
	}
	m.Variant.Kind = TxMetaVariantKind(kind)
	switch m.Variant.Kind {
	case VariantSlp:
		action, err := r.u8()
		if err != nil {
			return m, err
		}
		m.Variant.Action = chainsource.SlpAction(action)
		if m.Variant.TokenIn, err = r.u64(); err != nil {
			return m, err
		}
		if m.Variant.TokenOut, err = r.u64(); err != nil {
			return m, err
		}
		if m.Variant.TokenID, err = r.fixed32(); err != nil {
			return m, err
		}
	case VariantInvalidSlp:
		if m.Variant.TokenIn, err = r.u64(); err != nil {
			return m, err
		}
		if m.Variant.TokenID, err = r.fixed32(); err != nil {
			return m, err
		}
	case VariantSatsOnly:
	default:
		return m, fmt.Errorf("schema: unknown TxMetaVariantKind %d", kind)
	}
	return m, nil
}

// --- TokenMeta ---

func (m TokenMeta) Encode() []byte {
	w := newWriter()
	w.u8(recordVersion)
	w.u32(m.TokenType)
	w.str(m.Ticker)
	w.str(m.Name)
	w.str(m.DocumentURL)
	w.bytes(m.DocumentHash)
	w.u32(m.Decimals)
	w.bool(m.HasGroupID)
	if m.HasGroupID {
		w.fixed32(m.GroupID)
	}
	return w.bytesOut()
}

func DecodeTokenMeta(b []byte) (TokenMeta, error) {
	var m TokenMeta
	r := newReader(b)
	if _, err := r.u8(); err != nil {
		return m, err
	}
	var err error
	if m.TokenType, err = r.u32(); err != nil {
		return m, err
	}
	if m.Ticker, err = r.str(); err != nil {
		return m, err
	}
	if m.Name, err = r.str(); err != nil {
		return m, err
	}
	if m.DocumentURL, err = r.str(); err != nil {
		return m, err
	}
	if m.DocumentHash, err = r.bytesIn(); err != nil {
		return m, err
	}
	if m.Decimals, err = r.u32(); err != nil {
		return m, err
	}
	if m.HasGroupID, err = r.boolean(); err != nil {
		return m, err
	}
	if m.HasGroupID {
		if m.GroupID, err = r.fixed32(); err != nil {
			return m, err
		}
	}
	return m, nil
}

// --- Utxo ---

func (u Utxo) Encode() []byte {
	w := newWriter()
	w.u8(recordVersion)
	w.u64(u.Sats)
	w.bool(u.HasToken)
	if u.HasToken {
		w.fixed32(u.TokenID)
		w.u64(u.TokenAmount)
	}
	w.bool(u.IsCoinbase)
	w.i32(u.BlockHeight)
	return w.bytesOut()
}

func DecodeUtxo(b []byte) (Utxo, error) {
	var u Utxo
	r := newReader(b)
	if _, err := r.u8(); err != nil {
		return u, err
	}
	var err error
	if u.Sats, err = r.u64(); err != nil {
		return u, err
	}
	if u.HasToken, err = r.boolean(); err != nil {
		return u, err
	}
	if u.HasToken {
		if u.TokenID, err = r.fixed32(); err != nil {
			return u, err
		}
		if u.TokenAmount, err = r.u64(); err != nil {
			return u, err
		}
	}
	if u.IsCoinbase, err = r.boolean(); err != nil {
		return u, err
	}
	if u.BlockHeight, err = r.i32(); err != nil {
		return u, err
	}
	return u, nil
}

// --- OutSpend ---

func (s OutSpend) Encode() []byte {
	w := newWriter()
	w.u8(recordVersion)
	w.fixed32(s.SpendingTxHash)
	w.u32(s.SpendingIdx)
	return w.bytesOut()
}

func DecodeOutSpend(b []byte) (OutSpend, error) {
	var s OutSpend
	r := newReader(b)
	if _, err := r.u8(); err != nil {
		return s, err
	}
	var err error
	if s.SpendingTxHash, err = r.fixed32(); err != nil {
		return s, err
	}
	if s.SpendingIdx, err = r.u32(); err != nil {
		return s, err
	}
	return s, nil
}

// --- RawTx ---

func (t RawTx) Encode() []byte {
	w := newWriter()
	w.u8(recordVersion)
	w.u32(uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		w.fixed32(in.PrevTxHash)
		w.u32(in.PrevOutIdx)
		w.bytes(in.PrevScript)
		w.u64(in.Value)
	}
	w.u32(uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		w.u64(out.Value)
		w.bytes(out.Script)
	}
	return w.bytesOut()
}

func DecodeRawTx(b []byte) (RawTx, error) {
	var t RawTx
	r := newReader(b)
	if _, err := r.u8(); err != nil {
		return t, err
	}
	nIn, err := r.u32()
	if err != nil {
		return t, err
	}
	t.Inputs = make([]RawTxIn, nIn)
	for i := range t.Inputs {
		if t.Inputs[i].PrevTxHash, err = r.fixed32(); err != nil {
			return t, err
		}
		if t.Inputs[i].PrevOutIdx, err = r.u32(); err != nil {
			return t, err
		}
		if t.Inputs[i].PrevScript, err = r.bytesIn(); err != nil {
			return t, err
		}
		if t.Inputs[i].Value, err = r.u64(); err != nil {
			return t, err
		}
	}
	nOut, err := r.u32()
	if err != nil {
		return t, err
	}
	t.Outputs = make([]RawTxOut, nOut)
	for i := range t.Outputs {
		if t.Outputs[i].Value, err = r.u64(); err != nil {
			return t, err
		}
		if t.Outputs[i].Script, err = r.bytesIn(); err != nil {
			return t, err
		}
	}
	return t, nil
}

// --- AddrTxEntry ---

func (e AddrTxEntry) Encode() []byte {
	w := newWriter()
	w.u8(recordVersion)
	w.i64(e.Timestamp)
	w.i32(e.BlockHeight)
	w.i64(e.DeltaSats)
	w.bool(e.HasToken)
	if e.HasToken {
		w.fixed32(e.TokenID)
		w.i64(e.DeltaTokens)
	}
	return w.bytesOut()
}

func DecodeAddrTxEntry(b []byte) (AddrTxEntry, error) {
	var e AddrTxEntry
	r := newReader(b)
	if _, err := r.u8(); err != nil {
		return e, err
	}
	var err error
	if e.Timestamp, err = r.i64(); err != nil {
		return e, err
	}
	if e.BlockHeight, err = r.i32(); err != nil {
		return e, err
	}
	if e.DeltaSats, err = r.i64(); err != nil {
		return e, err
	}
	if e.HasToken, err = r.boolean(); err != nil {
		return e, err
	}
	if e.HasToken {
		if e.TokenID, err = r.fixed32(); err != nil {
			return e, err
		}
		if e.DeltaTokens, err = r.i64(); err != nil {
			return e, err
		}
	}
	return e, nil
}
