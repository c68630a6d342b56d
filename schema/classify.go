package schema

import (
	"github.com/ecashx/indexer/chainsource"
	"github.com/ecashx/indexer/keycodec"
	"github.com/gcash/bchd/txscript"
)

// ScriptClass is the output of script classification (spec.md §4.3).
type ScriptClass uint8

const (
	ScriptP2PKH ScriptClass = iota
	ScriptP2SH
	ScriptP2PK
	ScriptNulldata
	ScriptUnknown
)

// ClassifyScript pattern-matches raw script bytes against the five shapes
// spec.md §4.3 names. Only P2PKH and P2SH produce an address key; the
// others are recognized but not address-indexed. Opcode values come from
// gcash/bchd/txscript, the BCH fork of btcsuite's script package — this
// module never builds or executes scripts, only reads opcode bytes, so the
// classification stays well inside "script parsing beyond classification"
// being out of scope (spec.md §1).
func ClassifyScript(script []byte) (ScriptClass, *keycodec.AddrPrefix) {
	if isP2PKH(script) {
		var hash [20]byte
		copy(hash[:], script[3:23])
		return ScriptP2PKH, &keycodec.AddrPrefix{Type: keycodec.AddrTypeP2PKH, Hash: hash}
	}
	if isP2SH(script) {
		var hash [20]byte
		copy(hash[:], script[2:22])
		return ScriptP2SH, &keycodec.AddrPrefix{Type: keycodec.AddrTypeP2SH, Hash: hash}
	}
	if isP2PK(script) {
		return ScriptP2PK, nil
	}
	if len(script) >= 1 && script[0] == txscript.OP_RETURN {
		return ScriptNulldata, nil
	}
	return ScriptUnknown, nil
}

// isP2PKH matches OP_DUP OP_HASH160 <20:hash> OP_EQUALVERIFY OP_CHECKSIG.
func isP2PKH(s []byte) bool {
	return len(s) == 25 &&
		s[0] == txscript.OP_DUP &&
		s[1] == txscript.OP_HASH160 &&
		s[2] == 0x14 &&
		s[23] == txscript.OP_EQUALVERIFY &&
		s[24] == txscript.OP_CHECKSIG
}

// isP2SH matches OP_HASH160 <20:hash> OP_EQUAL.
func isP2SH(s []byte) bool {
	return len(s) == 23 &&
		s[0] == txscript.OP_HASH160 &&
		s[1] == 0x14 &&
		s[22] == txscript.OP_EQUAL
}

// isP2PK matches <33|65-byte pubkey> OP_CHECKSIG.
func isP2PK(s []byte) bool {
	if len(s) == 35 && s[0] == 0x21 && s[34] == txscript.OP_CHECKSIG {
		return true
	}
	if len(s) == 67 && s[0] == 0x41 && s[66] == txscript.OP_CHECKSIG {
		return true
	}
	return false
}

// ClassifyTxVariant is the eight-way SLP decision table (spec.md §4.3),
// a pure function of (slp, inSum); outSum only fills TokenOut of the Slp
// variant.
func ClassifyTxVariant(slp *chainsource.SlpInfo, inSum, outSum uint64) TxMetaVariant {
	if slp == nil {
		return TxMetaVariant{Kind: VariantSatsOnly}
	}

	if slp.Validity == chainsource.SlpUnknownOrInvalid {
		if inSum == 0 {
			return TxMetaVariant{Kind: VariantSatsOnly}
		}
		return TxMetaVariant{Kind: VariantInvalidSlp, TokenIn: inSum, TokenID: slp.TokenID}
	}

	switch slp.Action {
	case chainsource.SlpActionNonSlp:
		return TxMetaVariant{Kind: VariantSatsOnly}
	case chainsource.SlpActionNonSlpBurn, chainsource.SlpActionParseError, chainsource.SlpActionUnsupportedVersion:
		return TxMetaVariant{Kind: VariantInvalidSlp, TokenIn: inSum, TokenID: slp.TokenID}
	default:
		if slp.Action.IsSupportedGenesisMintSend() {
			return TxMetaVariant{
				Kind:     VariantSlp,
				Action:   slp.Action,
				TokenIn:  inSum,
				TokenOut: outSum,
				TokenID:  slp.TokenID,
			}
		}
		// Any other chain-source-reported action is treated as invalid
		// rather than silently dropped, matching §4.3's closed table.
		return TxMetaVariant{Kind: VariantInvalidSlp, TokenIn: inSum, TokenID: slp.TokenID}
	}
}
