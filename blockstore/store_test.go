package blockstore

import (
	"testing"

	"github.com/gobch/gobch"
)

func testBlock(nonce uint32) *gobch.Block {
	cb := &gobch.Tx{
		Version: 1,
		TxIns: gobch.TxInList{{
			PrevOut:   gobch.OutPoint{N: gobch.CoinbaseIndex},
			ScriptSig: []byte{byte(nonce)},
			Sequence:  0xffffffff,
		}},
		TxOuts: gobch.TxOutList{{Amount: 5000000000, ScriptPubKey: []byte{0x51}}},
	}
	bh := &gobch.BlockHeader{Version: 1, Time: 1000000000 + nonce, Nonce: nonce}
	bh.MerkleRoot = cb.Txid()
	return &gobch.Block{BlockHeader: bh, Txs: gobch.TxList{cb}}
}

func Test_AddBlock_then_ReadBlock_roundtrips(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	blk := testBlock(1)
	result, loc, err := s.AddBlock(blk)
	if err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if result != Added {
		t.Errorf("AddBlock result = %v, want Added", result)
	}

	got, err := s.ReadBlock(loc, true)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if got.Hash() != blk.Hash() {
		t.Errorf("ReadBlock returned hash %s, want %s", got.Hash(), blk.Hash())
	}
	if len(got.Txs) != 1 {
		t.Errorf("ReadBlock returned %d txs, want 1", len(got.Txs))
	}
}

func Test_ReadBlock_headerOnly(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	blk := testBlock(2)
	_, loc, err := s.AddBlock(blk)
	if err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	got, err := s.ReadBlock(loc, false)
	if err != nil {
		t.Fatalf("ReadBlock(withTxs=false): %v", err)
	}
	if got.Hash() != blk.Hash() {
		t.Errorf("ReadBlock header hash = %s, want %s", got.Hash(), blk.Hash())
	}
	if got.Txs != nil {
		t.Error("ReadBlock(withTxs=false) populated Txs")
	}
}

func Test_RemoveBlocksAbove_truncatesLaterBlocks(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	blk1 := testBlock(1)
	_, loc1, err := s.AddBlock(blk1)
	if err != nil {
		t.Fatalf("AddBlock(1): %v", err)
	}
	blk2 := testBlock(2)
	if _, _, err := s.AddBlock(blk2); err != nil {
		t.Fatalf("AddBlock(2): %v", err)
	}

	if err := s.RemoveBlocksAbove(loc1.FileID, loc1.Offset); err != nil {
		t.Fatalf("RemoveBlocksAbove: %v", err)
	}

	hashes := s.ReadHashes()
	if len(hashes) != 0 {
		t.Errorf("ReadHashes() after RemoveBlocksAbove(loc1) = %v, want empty", hashes)
	}
}

func Test_Open_reopensExistingStore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	blk := testBlock(3)
	if _, _, err := s.AddBlock(blk); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	hashes := s2.ReadHashes()
	if len(hashes) != 1 || hashes[0] != blk.Hash() {
		t.Errorf("ReadHashes() after reopen = %v, want [%s]", hashes, blk.Hash())
	}
}
