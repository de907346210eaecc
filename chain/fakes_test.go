package chain

import (
	"fmt"

	"github.com/gobch/gobch/blockstore"
	"github.com/gobch/gobch"
	"github.com/gobch/gobch/utxo"
)

// fakeBlocks is an in-memory BlockStorage, one slice standing in for a
// single block file: Location.Offset is simply the slot index.
type fakeBlocks struct {
	blocks []*gobch.Block
}

func (f *fakeBlocks) AddBlock(block *gobch.Block) (blockstore.AddResult, blockstore.Location, error) {
	f.blocks = append(f.blocks, block)
	return blockstore.Added, blockstore.Location{FileID: 0, Offset: uint64(len(f.blocks) - 1)}, nil
}

func (f *fakeBlocks) ReadBlock(loc blockstore.Location, withTxs bool) (*gobch.Block, error) {
	if loc.Offset >= uint64(len(f.blocks)) || f.blocks[loc.Offset] == nil {
		return nil, fmt.Errorf("fakeBlocks: no block at offset %d", loc.Offset)
	}
	return f.blocks[loc.Offset], nil
}

// RemoveBlocksAbove drops every block at or after offset, matching
// blockstore.Store's semantics.
func (f *fakeBlocks) RemoveBlocksAbove(fileID uint32, offset uint64) error {
	if offset < uint64(len(f.blocks)) {
		f.blocks = f.blocks[:offset]
	}
	return nil
}

func (f *fakeBlocks) RemoveFile(fileID uint32) error { return nil }

// fakeUTXO is an in-memory UTXOStorage: entries are visible to
// FindUnspent as soon as Add is called (Commit only records the
// height), and disappear on Revert/BulkRevert, enough to let a reorg
// test check that an orphaned block's outputs become unfindable.
type fakeUTXO struct {
	unspent   map[gobch.Hash]map[uint32]*utxo.Entry
	committed []int
}

func (f *fakeUTXO) FindUnspent(txid gobch.Hash, index uint32) (*utxo.Entry, error) {
	return f.unspent[txid][index], nil
}

func (f *fakeUTXO) Spend(txid gobch.Hash, entry *utxo.Entry) {
	delete(f.unspent[txid], entry.Index)
}

func (f *fakeUTXO) Add(txid gobch.Hash, entry *utxo.Entry, allowDuplicate bool) error {
	if f.unspent == nil {
		f.unspent = make(map[gobch.Hash]map[uint32]*utxo.Entry)
	}
	m, ok := f.unspent[txid]
	if !ok {
		m = make(map[uint32]*utxo.Entry)
		f.unspent[txid] = m
	}
	m[entry.Index] = entry
	return nil
}

func (f *fakeUTXO) Commit(txids []gobch.Hash, height int) error {
	f.committed = append(f.committed, height)
	return nil
}

func (f *fakeUTXO) Revert(txids []gobch.Hash) {
	for _, txid := range txids {
		delete(f.unspent, txid)
	}
}

// BulkRevert drops every output added by a block above newHeight,
// reading each one back through reader until it runs out, matching
// utxo.Set.BulkRevert's contract.
func (f *fakeUTXO) BulkRevert(newHeight int, reader func(height int) (*gobch.Block, error)) error {
	for h := newHeight + 1; ; h++ {
		block, err := reader(h)
		if err != nil {
			return nil
		}
		for _, tx := range block.Txs {
			delete(f.unspent, tx.Txid())
		}
	}
}

func (f *fakeUTXO) Save() error { return nil }

type fakePeer struct {
	announced []gobch.Hash
}

func (f *fakePeer) RequestHeaders(locator []gobch.Hash) error    { return nil }
func (f *fakePeer) RequestBlock(hash gobch.Hash, nodeID string) error { return nil }
func (f *fakePeer) AnnounceBlock(hash gobch.Hash) error {
	f.announced = append(f.announced, hash)
	return nil
}
