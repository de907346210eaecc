package script

import (
	"bytes"
	"encoding/binary"

	"github.com/gobch/gobch"
)

// HashType is the signature hash-type byte appended to every DER
// signature, spec.md §4.B.
type HashType byte

const (
	SigHashAll          HashType = 0x01
	SigHashNone         HashType = 0x02
	SigHashSingle       HashType = 0x03
	SigHashForkID       HashType = 0x40
	SigHashAnyOneCanPay HashType = 0x80

	sigHashBaseMask HashType = 0x1f
)

func (ht HashType) base() HashType         { return ht & sigHashBaseMask }
func (ht HashType) hasForkID() bool        { return ht&SigHashForkID != 0 }
func (ht HashType) anyoneCanPay() bool     { return ht&SigHashAnyOneCanPay != 0 }

// SignaturePreimage computes the preimage bytes that get double-SHA256'd
// to produce the message ECDSA signatures cover, spec.md §4.B. subscript
// is the lock script with OP_CODESEPARATOR history applied (§4.B
// "subscript"). outputAmount is the referenced output's value, required
// by the BIP143-style preimage. cashActive selects which preimage
// algorithm is legal: once active, FORKID is mandatory; before, it is
// forbidden.
func SignaturePreimage(tx *gobch.Tx, inputIndex int, subscript Script, outputAmount int64, hashType HashType, cashActive bool) ([]byte, error) {
	if hashType.hasForkID() != cashActive {
		return nil, errHashType("FORKID must be set iff cash is active")
	}
	if cashActive {
		return bip143Preimage(tx, inputIndex, subscript, outputAmount, hashType), nil
	}
	return legacyPreimage(tx, inputIndex, subscript, hashType), nil
}

type errHashType string

func (e errHashType) Error() string { return "script: " + string(e) }

// legacyPreimage builds the pre-UAHF preimage: a modified serialization
// of the whole transaction, with the hash type appended, ready to be
// double-SHA256'd by the caller.
func legacyPreimage(tx *gobch.Tx, inputIndex int, subscript Script, hashType HashType) []byte {
	base := hashType.base()

	txinsOut := make(gobch.TxInList, len(tx.TxIns))
	for i, in := range tx.TxIns {
		script := []byte{}
		sequence := in.Sequence
		if i == inputIndex {
			script = subscript
		} else if hashType.anyoneCanPay() {
			continue // filled below
		} else if base == SigHashNone || base == SigHashSingle {
			sequence = 0
		}
		txinsOut[i] = &gobch.TxIn{PrevOut: in.PrevOut, ScriptSig: script, Sequence: sequence}
	}

	if hashType.anyoneCanPay() {
		txinsOut = gobch.TxInList{{
			PrevOut:   tx.TxIns[inputIndex].PrevOut,
			ScriptSig: subscript,
			Sequence:  tx.TxIns[inputIndex].Sequence,
		}}
	}

	var txoutsOut gobch.TxOutList
	switch base {
	case SigHashNone:
		txoutsOut = gobch.TxOutList{}
	case SigHashSingle:
		if inputIndex >= len(tx.TxOuts) {
			txoutsOut = gobch.TxOutList{}
		} else {
			for i := 0; i < inputIndex; i++ {
				txoutsOut = append(txoutsOut, &gobch.TxOut{Amount: -1, ScriptPubKey: nil})
			}
			txoutsOut = append(txoutsOut, tx.TxOuts[inputIndex])
		}
	default: // SigHashAll and anything else falls back to ALL semantics
		txoutsOut = tx.TxOuts
	}

	modified := &gobch.Tx{
		Version:  tx.Version,
		TxIns:    txinsOut,
		TxOuts:   txoutsOut,
		LockTime: tx.LockTime,
	}

	buf := new(bytes.Buffer)
	gobch.BinWrite(modified, buf)
	binary.Write(buf, binary.LittleEndian, uint32(hashType))
	return buf.Bytes()
}

// bip143Preimage builds the post-UAHF preimage: BIP143-style, covering
// the spent amount and a set of precomputed hashes over prevouts,
// sequences, and outputs. This is the format that makes FORKID
// signatures non-malleable across the amount being spent.
func bip143Preimage(tx *gobch.Tx, inputIndex int, subscript Script, outputAmount int64, hashType HashType) []byte {
	base := hashType.base()
	anyoneCanPay := hashType.anyoneCanPay()

	hashPrevouts := make([]byte, 32)
	if !anyoneCanPay {
		buf := new(bytes.Buffer)
		for _, in := range tx.TxIns {
			buf.Write(in.PrevOut.Hash[:])
			binary.Write(buf, binary.LittleEndian, in.PrevOut.N)
		}
		h := gobch.ShaSha256(buf.Bytes())
		hashPrevouts = h[:]
	}

	hashSequence := make([]byte, 32)
	if !anyoneCanPay && base == SigHashAll {
		buf := new(bytes.Buffer)
		for _, in := range tx.TxIns {
			binary.Write(buf, binary.LittleEndian, in.Sequence)
		}
		h := gobch.ShaSha256(buf.Bytes())
		hashSequence = h[:]
	}

	hashOutputs := make([]byte, 32)
	switch {
	case base == SigHashAll:
		buf := new(bytes.Buffer)
		for _, out := range tx.TxOuts {
			gobch.BinWrite(out, buf)
		}
		h := gobch.ShaSha256(buf.Bytes())
		hashOutputs = h[:]
	case base == SigHashSingle && inputIndex < len(tx.TxOuts):
		buf := new(bytes.Buffer)
		gobch.BinWrite(tx.TxOuts[inputIndex], buf)
		h := gobch.ShaSha256(buf.Bytes())
		hashOutputs = h[:]
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, tx.Version)
	buf.Write(hashPrevouts)
	buf.Write(hashSequence)
	buf.Write(tx.TxIns[inputIndex].PrevOut.Hash[:])
	binary.Write(buf, binary.LittleEndian, tx.TxIns[inputIndex].PrevOut.N)
	writeScriptCode(buf, subscript)
	binary.Write(buf, binary.LittleEndian, outputAmount)
	binary.Write(buf, binary.LittleEndian, tx.TxIns[inputIndex].Sequence)
	buf.Write(hashOutputs)
	binary.Write(buf, binary.LittleEndian, tx.LockTime)
	binary.Write(buf, binary.LittleEndian, uint32(hashType))
	return buf.Bytes()
}

func writeScriptCode(buf *bytes.Buffer, s Script) {
	gobch.WriteVarInt(uint64(len(s)), buf)
	buf.Write(s)
}
