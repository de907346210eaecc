package chain

import (
	"fmt"

	"github.com/gobch/gobch"
)

// Revert undoes the main chain down to height, reverting UTXO, forks,
// stats, and truncating block files, spec.md §4.H. It is atomic with
// respect to external observers, spec.md §5: readers either see the
// pre-revert or post-revert tip, never an intermediate, since the
// whole operation runs under pendingMu's write lock.
func (c *Chain) Revert(height int) error {
	c.processing.Lock()
	defer c.processing.Unlock()

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	return c.revertLocked(height)
}

// revertLocked is Revert's body, factored out so CheckBranches can call
// it while already holding pendingMu (promoteBranchLocked).
func (c *Chain) revertLocked(height int) error {
	if height < 0 || height >= c.tip.height {
		return fmt.Errorf("chain: revert target height %d is not below tip %d", height, c.tip.height)
	}

	if err := c.utxos.BulkRevert(height, c.readBlockAtHeight); err != nil {
		return fmt.Errorf("chain: utxo bulk_revert to height %d: %w", height, err)
	}

	if err := c.truncateBlockFilesAbove(height); err != nil {
		return fmt.Errorf("chain: block file truncation to height %d: %w", height, err)
	}

	for h := c.tip.height; h > height; h-- {
		c.index.delete(c.heights[h])
	}
	c.heights = c.heights[:height+1]

	c.forks.Revert(c.stats, height)
	c.stats.Truncate(height)

	c.tip = tipInfo{
		hash:            c.heights[height],
		height:          height,
		accumulatedWork: c.stats.AccumulatedWorkAt(height),
	}
	c.mainPending = nil

	return nil
}

// readBlockAtHeight is the reader callback utxo.Set.BulkRevert needs to
// recover each reverted block's added outputs.
func (c *Chain) readBlockAtHeight(height int) (*gobch.Block, error) {
	if height < 0 || height >= len(c.heights) {
		return nil, fmt.Errorf("chain: no block at height %d", height)
	}
	entry, ok := c.index.get(c.heights[height])
	if !ok {
		return nil, fmt.Errorf("chain: height %d missing from index", height)
	}
	return c.blocks.ReadBlock(entry.loc, true)
}

// truncateBlockFilesAbove drops every stored block above height:
// files entirely above it are removed outright, the file straddling
// the boundary is truncated at that block's offset.
func (c *Chain) truncateBlockFilesAbove(height int) error {
	if height+1 > c.tip.height {
		return nil
	}
	boundaryEntry, ok := c.index.get(c.heights[height+1])
	if !ok {
		return fmt.Errorf("chain: height %d missing from index", height+1)
	}

	seen := make(map[uint32]bool)
	for h := height + 1; h <= c.tip.height; h++ {
		entry, ok := c.index.get(c.heights[h])
		if !ok {
			continue
		}
		if entry.loc.FileID == boundaryEntry.loc.FileID {
			continue
		}
		seen[entry.loc.FileID] = true
	}
	for fileID := range seen {
		if err := c.blocks.RemoveFile(fileID); err != nil {
			return err
		}
	}
	return c.blocks.RemoveBlocksAbove(boundaryEntry.loc.FileID, boundaryEntry.loc.Offset)
}
