// Package keycodec encodes and decodes the store's fixed-width composite
// keys. Every multi-byte integer field is big-endian so that lexicographic
// byte order over the key equals numeric order over the encoded field,
// which is what lets a prefix scan double as a range scan.
package keycodec

import "fmt"

// AddrType distinguishes which script shape produced an address-indexed key.
type AddrType uint8

const (
	AddrTypeP2PKH AddrType = 0
	AddrTypeP2SH  AddrType = 1
)

const (
	HeightKeyLen     = 4
	UtxoKeyLen       = 36
	AddrPrefixLen    = 21
	AddrTxKeyLen     = AddrPrefixLen + 4 + 32 // 57
	AddrUtxoKeyLen   = AddrPrefixLen + UtxoKeyLen
	TxHashLen        = 32
	AddrHashLen      = 20
)

// HeightKey encodes a block height as a 4-byte big-endian key.
type HeightKey uint32

func (h HeightKey) Encode() []byte {
	b := make([]byte, HeightKeyLen)
	putU32(b, uint32(h))
	return b
}

func DecodeHeightKey(b []byte) (HeightKey, error) {
	if len(b) != HeightKeyLen {
		return 0, fmt.Errorf("keycodec: HeightKey wants %d bytes, got %d", HeightKeyLen, len(b))
	}
	return HeightKey(getU32(b)), nil
}

// UtxoKey identifies an output by its transaction hash and output index.
type UtxoKey struct {
	TxHash  [TxHashLen]byte
	OutIdx  uint32
}

func (k UtxoKey) Encode() []byte {
	b := make([]byte, UtxoKeyLen)
	copy(b[:TxHashLen], k.TxHash[:])
	putU32(b[TxHashLen:], k.OutIdx)
	return b
}

func DecodeUtxoKey(b []byte) (UtxoKey, error) {
	if len(b) != UtxoKeyLen {
		return UtxoKey{}, fmt.Errorf("keycodec: UtxoKey wants %d bytes, got %d", UtxoKeyLen, len(b))
	}
	var k UtxoKey
	copy(k.TxHash[:], b[:TxHashLen])
	k.OutIdx = getU32(b[TxHashLen:])
	return k, nil
}

// AddrPrefix identifies an address by its classification type and 20-byte hash.
type AddrPrefix struct {
	Type  AddrType
	Hash  [AddrHashLen]byte
}

func (p AddrPrefix) Encode() []byte {
	b := make([]byte, AddrPrefixLen)
	b[0] = byte(p.Type)
	copy(b[1:], p.Hash[:])
	return b
}

func DecodeAddrPrefix(b []byte) (AddrPrefix, error) {
	if len(b) != AddrPrefixLen {
		return AddrPrefix{}, fmt.Errorf("keycodec: AddrPrefix wants %d bytes, got %d", AddrPrefixLen, len(b))
	}
	var p AddrPrefix
	p.Type = AddrType(b[0])
	copy(p.Hash[:], b[1:])
	return p, nil
}

// AddrTxKey orders an address's transactions by block height, then tx hash.
type AddrTxKey struct {
	Addr        AddrPrefix
	BlockHeight uint32
	TxHash      [TxHashLen]byte
}

func (k AddrTxKey) Encode() []byte {
	b := make([]byte, AddrTxKeyLen)
	copy(b[:AddrPrefixLen], k.Addr.Encode())
	putU32(b[AddrPrefixLen:], k.BlockHeight)
	copy(b[AddrPrefixLen+4:], k.TxHash[:])
	return b
}

func DecodeAddrTxKey(b []byte) (AddrTxKey, error) {
	if len(b) != AddrTxKeyLen {
		return AddrTxKey{}, fmt.Errorf("keycodec: AddrTxKey wants %d bytes, got %d", AddrTxKeyLen, len(b))
	}
	addr, err := DecodeAddrPrefix(b[:AddrPrefixLen])
	if err != nil {
		return AddrTxKey{}, err
	}
	var k AddrTxKey
	k.Addr = addr
	k.BlockHeight = getU32(b[AddrPrefixLen:])
	copy(k.TxHash[:], b[AddrPrefixLen+4:])
	return k, nil
}

// AddrUtxoKey is a presence-only membership key: an address owns (TxHash, OutIdx).
type AddrUtxoKey struct {
	Addr AddrPrefix
	Utxo UtxoKey
}

func (k AddrUtxoKey) Encode() []byte {
	b := make([]byte, AddrUtxoKeyLen)
	copy(b[:AddrPrefixLen], k.Addr.Encode())
	copy(b[AddrPrefixLen:], k.Utxo.Encode())
	return b
}

func DecodeAddrUtxoKey(b []byte) (AddrUtxoKey, error) {
	if len(b) != AddrUtxoKeyLen {
		return AddrUtxoKey{}, fmt.Errorf("keycodec: AddrUtxoKey wants %d bytes, got %d", AddrUtxoKeyLen, len(b))
	}
	addr, err := DecodeAddrPrefix(b[:AddrPrefixLen])
	if err != nil {
		return AddrUtxoKey{}, err
	}
	utxo, err := DecodeUtxoKey(b[AddrPrefixLen:])
	if err != nil {
		return AddrUtxoKey{}, err
	}
	return AddrUtxoKey{Addr: addr, Utxo: utxo}, nil
}

// SeekToEnd returns the greatest possible AddrTxKey with this prefix (block
// height and tx hash all 0xFF); no AddrTxKey sharing the prefix sorts after
// it. Used for seeding a reverse iterator (spec.md §9: address-tx
// pagination is an explicit seek-to-end-then-prev scan, not a materialized
// list).
func (p AddrPrefix) SeekToEnd() []byte {
	b := p.Encode()
	tail := make([]byte, AddrTxKeyLen-AddrPrefixLen)
	for i := range tail {
		tail[i] = 0xFF
	}
	return append(b, tail...)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// ReverseHex renders a 32-byte hash as hex of its byte-reversed form, the
// little-endian display convention used for block and tx hashes (spec.md §6).
func ReverseHex(hash [TxHashLen]byte) string {
	var rev [TxHashLen]byte
	for i := range hash {
		rev[i] = hash[TxHashLen-1-i]
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, TxHashLen*2)
	for i, b := range rev {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0f]
	}
	return string(out)
}

// FromReverseHex parses the little-endian display form back into raw
// big-endian-stored hash bytes.
func FromReverseHex(s string) ([TxHashLen]byte, error) {
	var out [TxHashLen]byte
	if len(s) != TxHashLen*2 {
		return out, fmt.Errorf("keycodec: hash hex wants %d chars, got %d", TxHashLen*2, len(s))
	}
	var rev [TxHashLen]byte
	for i := 0; i < TxHashLen; i++ {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return out, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return out, err
		}
		rev[i] = hi<<4 | lo
	}
	for i := range rev {
		out[i] = rev[TxHashLen-1-i]
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("keycodec: invalid hex digit %q", c)
	}
}
