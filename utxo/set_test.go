package utxo

import (
	"testing"

	"github.com/gobch/gobch"
)

func txid(b byte) gobch.Hash {
	var h gobch.Hash
	h[0] = b
	return h
}

func Test_Set_Add_then_Commit_persistsEntry(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	tx := txid(1)
	entry := &Entry{Txid: tx, Index: 0, Amount: 5000, Script: []byte{0x51}, Height: 1}
	if err := s.Add(tx, entry, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.Commit([]gobch.Hash{tx}, 1); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.FindUnspent(tx, 0)
	if err != nil {
		t.Fatalf("FindUnspent: %v", err)
	}
	if got == nil || got.Amount != 5000 {
		t.Fatalf("FindUnspent after commit = %+v, want amount 5000", got)
	}
	if s.Height() != 1 {
		t.Errorf("Height() = %d, want 1", s.Height())
	}
}

func Test_Set_Add_rejectsDuplicateUnlessAllowed(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	tx := txid(2)
	entry := &Entry{Txid: tx, Index: 0, Amount: 1, Script: []byte{0x51}}
	if err := s.Add(tx, entry, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Commit([]gobch.Hash{tx}, 0); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := s.Add(tx, entry, false); err == nil {
		t.Fatal("Add should reject re-adding an already-unspent output")
	}
	if err := s.Add(tx, entry, true); err != nil {
		t.Errorf("Add with allowDuplicate should succeed: %v", err)
	}
}

func Test_Set_Spend_thenCommit_removesEntry(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	tx := txid(3)
	entry := &Entry{Txid: tx, Index: 0, Amount: 1, Script: []byte{0x51}}
	if err := s.Add(tx, entry, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Commit([]gobch.Hash{tx}, 0); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	spendTx := txid(4)
	got, _ := s.FindUnspent(tx, 0)
	s.Spend(spendTx, got)
	if err := s.Commit([]gobch.Hash{spendTx}, 1); err != nil {
		t.Fatalf("Commit(spend): %v", err)
	}

	after, err := s.FindUnspent(tx, 0)
	if err != nil {
		t.Fatalf("FindUnspent: %v", err)
	}
	if after != nil {
		t.Errorf("FindUnspent after spend+commit = %+v, want nil", after)
	}
}

func Test_Set_Revert_discardsUncommittedChanges(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	tx := txid(5)
	entry := &Entry{Txid: tx, Index: 0, Amount: 1, Script: []byte{0x51}}
	if err := s.Add(tx, entry, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.Revert([]gobch.Hash{tx})

	if err := s.Commit([]gobch.Hash{tx}, 0); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := s.FindUnspent(tx, 0)
	if err != nil {
		t.Fatalf("FindUnspent: %v", err)
	}
	if got != nil {
		t.Errorf("FindUnspent after revert+commit = %+v, want nil (the add was reverted)", got)
	}
}

func Test_Set_Save_Open_persistsHeight(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tx := txid(6)
	if err := s.Commit([]gobch.Hash{tx}, 42); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open (reopen): %v", err)
	}
	defer reopened.Close()
	if reopened.Height() != 42 {
		t.Errorf("Height() after reopen = %d, want 42", reopened.Height())
	}
}

func Test_Set_BulkRevert_removesOutputsAboveNewHeight(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	tx1 := txid(7)
	entry1 := &Entry{Txid: tx1, Index: 0, Amount: 1, Script: []byte{0x51}}
	if err := s.Add(tx1, entry1, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Commit([]gobch.Hash{tx1}, 1); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	blockAtHeight2 := &gobch.Tx{
		TxIns:  gobch.TxInList{{PrevOut: gobch.OutPoint{N: gobch.CoinbaseIndex}}},
		TxOuts: gobch.TxOutList{{Amount: 1, ScriptPubKey: []byte{0x51}}},
	}
	tx2 := blockAtHeight2.Txid()
	entry2 := &Entry{Txid: tx2, Index: 0, Amount: 1, Script: []byte{0x51}}
	if err := s.Add(tx2, entry2, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Commit([]gobch.Hash{tx2}, 2); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reader := func(height int) (*gobch.Block, error) {
		return &gobch.Block{
			BlockHeader: &gobch.BlockHeader{},
			Txs:         gobch.TxList{blockAtHeight2},
		}, nil
	}
	if err := s.BulkRevert(1, reader); err != nil {
		t.Fatalf("BulkRevert: %v", err)
	}

	if s.Height() != 1 {
		t.Errorf("Height() after BulkRevert = %d, want 1", s.Height())
	}
	got, err := s.FindUnspent(tx2, 0)
	if err != nil {
		t.Fatalf("FindUnspent: %v", err)
	}
	if got != nil {
		t.Error("output added at height 2 should have been removed by BulkRevert(1)")
	}
}
