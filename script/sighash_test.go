package script

import (
	"bytes"
	"testing"

	"github.com/gobch/gobch"
)

func twoInputTx() *gobch.Tx {
	return &gobch.Tx{
		Version: 1,
		TxIns: gobch.TxInList{
			{PrevOut: gobch.OutPoint{N: 0}, Sequence: 0xffffffff},
			{PrevOut: gobch.OutPoint{N: 1}, Sequence: 0xffffffff},
		},
		TxOuts: gobch.TxOutList{{Amount: 100, ScriptPubKey: []byte{0x51}}},
	}
}

func Test_SignaturePreimage_rejectsForkIDMismatch(t *testing.T) {
	tx := twoInputTx()
	if _, err := SignaturePreimage(tx, 0, Script{0x51}, 50, SigHashAll, true); err == nil {
		t.Fatal("SignaturePreimage accepted SigHashAll without FORKID while cashActive=true")
	}
	if _, err := SignaturePreimage(tx, 0, Script{0x51}, 50, SigHashAll|SigHashForkID, false); err == nil {
		t.Fatal("SignaturePreimage accepted FORKID set while cashActive=false")
	}
}

func Test_SignaturePreimage_legacyVsBip143Differ(t *testing.T) {
	tx := twoInputTx()
	legacy, err := SignaturePreimage(tx, 0, Script{0x51}, 50, SigHashAll, false)
	if err != nil {
		t.Fatalf("SignaturePreimage(legacy): %v", err)
	}
	bip143, err := SignaturePreimage(tx, 0, Script{0x51}, 50, SigHashAll|SigHashForkID, true)
	if err != nil {
		t.Fatalf("SignaturePreimage(bip143): %v", err)
	}
	if bytes.Equal(legacy, bip143) {
		t.Error("legacy and BIP143 preimages should not be byte-identical")
	}
}

func Test_SignaturePreimage_isDeterministic(t *testing.T) {
	tx := twoInputTx()
	a, err := SignaturePreimage(tx, 1, Script{0x51}, 100, SigHashAll|SigHashForkID, true)
	if err != nil {
		t.Fatalf("SignaturePreimage: %v", err)
	}
	b, err := SignaturePreimage(tx, 1, Script{0x51}, 100, SigHashAll|SigHashForkID, true)
	if err != nil {
		t.Fatalf("SignaturePreimage: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("SignaturePreimage is not deterministic for identical inputs")
	}
}

func Test_SignaturePreimage_inputIndexAffectsResult(t *testing.T) {
	tx := twoInputTx()
	a, err := SignaturePreimage(tx, 0, Script{0x51}, 100, SigHashAll|SigHashForkID, true)
	if err != nil {
		t.Fatalf("SignaturePreimage: %v", err)
	}
	b, err := SignaturePreimage(tx, 1, Script{0x51}, 100, SigHashAll|SigHashForkID, true)
	if err != nil {
		t.Fatalf("SignaturePreimage: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("preimages for different input indices should differ")
	}
}
