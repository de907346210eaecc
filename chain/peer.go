package chain

import (
	"github.com/gobch/gobch/blockstore"
	"github.com/gobch/gobch"
	"github.com/gobch/gobch/utxo"
)

// PeerClient is the chain's only outbound collaborator, spec.md §1/§4.H.
// The chain calls into it but never blocks waiting for a reply; replies
// arrive asynchronously through AddPendingBlock.
type PeerClient interface {
	RequestHeaders(locator []gobch.Hash) error
	RequestBlock(hash gobch.Hash, nodeID string) error
	AnnounceBlock(hash gobch.Hash) error
}

// BlockStorage is the block-file half of spec.md §4.H's "Storage
// interface", satisfied directly by *blockstore.Store.
type BlockStorage interface {
	AddBlock(block *gobch.Block) (blockstore.AddResult, blockstore.Location, error)
	ReadBlock(loc blockstore.Location, withTxs bool) (*gobch.Block, error)
	RemoveBlocksAbove(fileID uint32, offset uint64) error
	RemoveFile(fileID uint32) error
}

// UTXOStorage is the UTXO-set half, satisfied directly by *utxo.Set.
// Split from BlockStorage rather than one bundled interface because the
// two concrete types (*blockstore.Store, *utxo.Set) have disjoint
// method sets; a fake for tests implements whichever half it needs.
type UTXOStorage interface {
	FindUnspent(txid gobch.Hash, index uint32) (*utxo.Entry, error)
	Spend(txid gobch.Hash, entry *utxo.Entry)
	Add(txid gobch.Hash, entry *utxo.Entry, allowDuplicate bool) error
	Commit(txids []gobch.Hash, height int) error
	Revert(txids []gobch.Hash)
	BulkRevert(newHeight int, reader func(height int) (*gobch.Block, error)) error
	Save() error
}
