// Package chainsource defines the external collaborator contract: the
// abstract upstream node RPC client the core indexes against. Concrete
// wire-protocol clients (bchd/bchrpc or otherwise) are deliberately out of
// scope here (spec.md §1) — this package only fixes the shapes the core
// needs and the interface it calls.
package chainsource

import (
	"encoding/binary"
	"fmt"
)

// BlockHeader is the fixed 80-byte on-the-wire header (spec.md §6):
// version:i32[LE] || prev[32] || merkle[32] || ts:u32[LE] || bits:u32[LE] || nonce:u32[LE].
type BlockHeader struct {
	Version    int32
	PrevHash   [32]byte
	MerkleRoot [32]byte
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

const BlockHeaderWireLen = 80

func (h BlockHeader) Encode() []byte {
	b := make([]byte, BlockHeaderWireLen)
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Version))
	copy(b[4:36], h.PrevHash[:])
	copy(b[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(b[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(b[72:76], h.Bits)
	binary.LittleEndian.PutUint32(b[76:80], h.Nonce)
	return b
}

func DecodeBlockHeader(b []byte) (BlockHeader, error) {
	var h BlockHeader
	if len(b) != BlockHeaderWireLen {
		return h, errWireLen(BlockHeaderWireLen, len(b))
	}
	h.Version = int32(binary.LittleEndian.Uint32(b[0:4]))
	copy(h.PrevHash[:], b[4:36])
	copy(h.MerkleRoot[:], b[36:68])
	h.Timestamp = binary.LittleEndian.Uint32(b[68:72])
	h.Bits = binary.LittleEndian.Uint32(b[72:76])
	h.Nonce = binary.LittleEndian.Uint32(b[76:80])
	return h, nil
}

// SlpValidity is the chain source's judgement of a transaction's SLP
// well-formedness; the core trusts it (spec.md §1 Non-goals).
type SlpValidity uint8

const (
	SlpUnknownOrInvalid SlpValidity = iota
	SlpValid
)

// SlpAction enumerates the chain source's classification of an SLP
// transaction's purpose. Eight values (Genesis/Mint/Send across
// Type1/NFT1Group/NFT1Child, minus the non-existent NFT1-child mint) are
// "supported"; the rest mark malformed or non-SLP transactions.
type SlpAction uint8

const (
	SlpActionNonSlp SlpAction = iota
	SlpActionNonSlpBurn
	SlpActionParseError
	SlpActionUnsupportedVersion

	SlpActionGenesisType1
	SlpActionGenesisNFT1Group
	SlpActionGenesisNFT1Child
	SlpActionMintType1
	SlpActionMintNFT1Group
	SlpActionSendType1
	SlpActionSendNFT1Group
	SlpActionSendNFT1Child
)

// IsSupportedGenesisMintSend reports whether a is one of the eight
// supported SLP actions (spec.md §4.3 classification rule).
func (a SlpAction) IsSupportedGenesisMintSend() bool {
	switch a {
	case SlpActionGenesisType1, SlpActionGenesisNFT1Group, SlpActionGenesisNFT1Child,
		SlpActionMintType1, SlpActionMintNFT1Group,
		SlpActionSendType1, SlpActionSendNFT1Group, SlpActionSendNFT1Child:
		return true
	default:
		return false
	}
}

func (a SlpAction) IsGenesis() bool {
	switch a {
	case SlpActionGenesisType1, SlpActionGenesisNFT1Group, SlpActionGenesisNFT1Child:
		return true
	default:
		return false
	}
}

// TokenType maps a genesis action to the on-disk token_type tag (spec.md §3,
// grounded on explorer-server/src/indexdb.rs::add_token_meta).
func (a SlpAction) TokenType() uint32 {
	switch a {
	case SlpActionGenesisType1:
		return 0x01
	case SlpActionGenesisNFT1Child:
		return 0x41
	case SlpActionGenesisNFT1Group:
		return 0x81
	default:
		return 0
	}
}

// GenesisMeta carries the SLP GENESIS metadata fields, present only when
// Action.IsGenesis() and Validity == SlpValid.
type GenesisMeta struct {
	Ticker       string
	Name         string
	DocumentURL  string
	DocumentHash []byte
	Decimals     uint32
	GroupID      *[32]byte // set only for NFT1-child genesis
}

// SlpInfo is the chain source's SLP parse result for one transaction. A nil
// *SlpInfo means "no SLP info attached" (spec.md §4.3, first classification
// rule).
type SlpInfo struct {
	Validity SlpValidity
	Action   SlpAction
	TokenID  [32]byte
	Genesis  *GenesisMeta
}

// TxIn is a transaction input as the chain source reports it: the outpoint
// it spends, plus enough of the previous output to classify its address and
// compute balance deltas without a second lookup.
type TxIn struct {
	PrevTxHash      [32]byte
	PrevOutIdx      uint32
	PrevScript      []byte // previous output's pubkey script, for address classification
	Value           uint64 // previous output's satoshi value
	TokenAmount     uint64 // SLP token amount carried by the previous output, if any
	SignatureScript []byte // this input's scriptSig; input 0 of a coinbase carries arbitrary data
}

// IsCoinbase reports whether this input is the null outpoint that marks a
// coinbase transaction (spec.md GLOSSARY; explorer-server/src/indexdb.rs's
// is_coinbase predicate: all-zero hash, index 0xFFFFFFFF).
func (in TxIn) IsCoinbase() bool {
	return in.PrevTxHash == [32]byte{} && in.PrevOutIdx == 0xFFFFFFFF
}

// TxOut is a transaction output.
type TxOut struct {
	Value       uint64
	Script      []byte
	TokenAmount uint64 // SLP token amount this output carries, if any
}

// Tx is a transaction as reported by the chain source, confirmed or
// unconfirmed.
type Tx struct {
	Hash    [32]byte
	Size    uint64
	Inputs  []TxIn
	Outputs []TxOut
	Slp     *SlpInfo // nil if the chain source attached no SLP info
}

// Block is a full block with headers and transaction bodies.
type Block struct {
	Height    int32
	Hash      [32]byte
	Header    BlockHeader
	Txs       []Tx
	Size      uint64
	Difficulty float64
	MedianTime int64
}

type wireLenError struct{ want, got int }

func (e wireLenError) Error() string {
	return fmt.Sprintf("chainsource: wire layout wants %d bytes, got %d", e.want, e.got)
}

func errWireLen(want, got int) error {
	return wireLenError{want, got}
}
