package query

import (
	"github.com/ecashx/indexer/keycodec"
	"github.com/gcash/bchd/chaincfg"
	"github.com/gcash/bchutil"
)

// AddrCodec decodes a displayed cash address into the internal fixed-width
// prefix used by every key in the store. Cryptographic address encoding is
// explicitly delegated to a library (spec.md §1), so this is a thin seam: a
// production build wires CashAddrCodec, tests can wire a fake.
type AddrCodec interface {
	Decode(addr string) (keycodec.AddrPrefix, bool)
}

// CashAddrCodec decodes cash addresses via gcash/bchutil, the BCH-forked
// continuation of btcsuite/btcutil's address package.
type CashAddrCodec struct {
	params *chaincfg.Params
}

func NewCashAddrCodec(params *chaincfg.Params) *CashAddrCodec {
	return &CashAddrCodec{params: params}
}

func (c *CashAddrCodec) Decode(addr string) (keycodec.AddrPrefix, bool) {
	decoded, err := bchutil.DecodeAddress(addr, c.params)
	if err != nil {
		return keycodec.AddrPrefix{}, false
	}

	switch a := decoded.(type) {
	case *bchutil.AddressPubKeyHash:
		var h [20]byte
		copy(h[:], a.Hash160()[:])
		return keycodec.AddrPrefix{Type: keycodec.AddrTypeP2PKH, Hash: h}, true
	case *bchutil.AddressScriptHash:
		var h [20]byte
		copy(h[:], a.Hash160()[:])
		return keycodec.AddrPrefix{Type: keycodec.AddrTypeP2SH, Hash: h}, true
	default:
		return keycodec.AddrPrefix{}, false
	}
}
