package chain

import (
	"fmt"

	"github.com/gobch/gobch"
	"github.com/gobch/gobch/validate"
)

// Process attempts to attach the next full pending block at the tip,
// spec.md §4.H. On success it advances the tip, commits UTXO changes,
// and announces the block; on failure it black-lists the block hash
// and the requesting node id, discards all pending (they were built on
// the now-untrustworthy tip), and re-checks branches.
func (c *Chain) Process() error {
	c.processing.Lock()
	defer c.processing.Unlock()

	c.pendingMu.RLock()
	if len(c.mainPending) == 0 || c.mainPending[0].State != BodyReceived {
		c.pendingMu.RUnlock()
		return nil
	}
	item := c.mainPending[0]
	c.pendingMu.RUnlock()

	height := c.TipHeight() + 1
	block := item.Block

	txids := make([]gobch.Hash, len(block.Txs))
	for i, tx := range block.Txs {
		txids[i] = tx.Txid()
	}

	err := validate.ProcessBlock(c.utxos, block, height, c.stats, c.forks, c.targetParams(), c.params)
	if err != nil {
		c.utxos.Revert(txids)
		c.blacklistBlock(item, err)
		return err
	}

	// Append to the block file before committing UTXO changes: AddBlock
	// can still fail here, and c.utxos still holds txids as reverseable
	// pending state at this point, not yet durably written.
	added, loc, err := c.blocks.AddBlock(block)
	if err != nil {
		c.utxos.Revert(txids)
		return fmt.Errorf("chain: storage failure appending block %s: %w", item.Hash, err)
	}
	_ = added

	if err := c.utxos.Commit(txids, height); err != nil {
		return fmt.Errorf("chain: storage failure committing utxo changes for block %s: %w", item.Hash, err)
	}

	c.stats.Push(block.Version, block.Time, block.Bits)
	c.forks.Process(c.stats, height)

	c.index.put(&indexEntry{hash: item.Hash, height: height, loc: loc})

	c.pendingMu.Lock()
	c.mainPending = c.mainPending[1:]
	c.tip = tipInfo{hash: item.Hash, height: height, accumulatedWork: c.stats.AccumulatedWorkAt(height)}
	c.heights = append(c.heights, item.Hash)
	c.pendingMu.Unlock()

	c.pendingMu.RLock()
	peer := c.peer
	c.pendingMu.RUnlock()
	if peer != nil {
		_ = peer.AnnounceBlock(item.Hash)
	}

	c.CheckBranches()
	return nil
}

// blacklistBlock implements the "Validation failure on attach" failure
// semantics of spec.md §4.H: black-list this hash and its requesting
// node, clear all pending (tainted), re-check branches.
func (c *Chain) blacklistBlock(item *PendingBlockData, reason error) {
	c.pendingMu.Lock()
	c.blacklistedHashes[item.Hash] = true
	if item.RequestingNode != "" {
		c.blacklistedNodes[item.RequestingNode] = true
	}
	item.State = Rejected
	item.Reason = reason
	c.mainPending = nil
	c.pendingMu.Unlock()

	c.CheckBranches()
}

// CheckBranches promotes a branch that has overtaken main in
// accumulated work, and prunes branches that have fallen too far
// behind the tip, spec.md §4.H. Grounded on the teacher's
// blkGraph.splitCheck longest-chain comparison, generalized from a
// chain-length count to cumulative proof-of-work.
func (c *Chain) CheckBranches() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	var winner *Branch
	for _, b := range c.branches {
		if len(b.Pending) == 0 || b.ForkHeight < 0 {
			continue
		}
		if workGreater(b.AccumulatedWork, c.tip.accumulatedWork) {
			if winner == nil || workGreater(b.AccumulatedWork, winner.AccumulatedWork) {
				winner = b
			}
		}
	}

	if winner != nil {
		c.promoteBranchLocked(winner)
	}

	kept := c.branches[:0]
	for _, b := range c.branches {
		if b == winner {
			continue
		}
		if b.ForkHeight >= 0 && c.tip.height-b.ForkHeight > maxBranchAge {
			continue
		}
		kept = append(kept, b)
	}
	c.branches = kept
}

// promoteBranchLocked reverts main down to the fork height, records the
// orphaned main tip as a one-item branch, and splices the winner's
// pending queue onto the front of the main pending queue. That branch
// holds only the old tip's hash (state Validated): no headers or bodies
// of the orphaned suffix and no accumulated work, so it is never
// promoted back. Callers must hold pendingMu.
func (c *Chain) promoteBranchLocked(winner *Branch) {
	orphanedHeight := c.tip.height
	orphanedHash := c.tip.hash

	if err := c.revertLocked(winner.ForkHeight); err != nil {
		return
	}

	if orphanedHeight > winner.ForkHeight {
		c.branches = append(c.branches, &Branch{
			ForkHeight: winner.ForkHeight,
			ForkHash:   winner.ForkHash,
			Pending:    []*PendingBlockData{{Hash: orphanedHash, State: Validated}},
		})
	}

	c.mainPending = append(winner.Pending, c.mainPending...)
	for i, b := range c.branches {
		if b == winner {
			c.branches = append(c.branches[:i], c.branches[i+1:]...)
			break
		}
	}
}

// workGreater reports whether a > b as big-endian byte strings of
// accumulated work (possibly differing lengths).
func workGreater(a, b []byte) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
