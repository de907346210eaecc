package chain

import "github.com/gobch/gobch"

// BlockInChain reports whether hash is an attached main-chain block,
// spec.md §4.H.
func (c *Chain) BlockInChain(hash gobch.Hash) bool {
	_, ok := c.index.get(hash)
	return ok
}

// HeaderAvailable reports whether hash is known at all, either
// attached to main or sitting pending/in a branch.
func (c *Chain) HeaderAvailable(hash gobch.Hash) bool {
	if c.BlockInChain(hash) {
		return true
	}
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()
	return c.findPending(hash) != nil
}

// HeaderInBranch reports whether hash belongs to a branch's pending
// queue (as opposed to main).
func (c *Chain) HeaderInBranch(hash gobch.Hash) bool {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()
	for _, b := range c.branches {
		for _, p := range b.Pending {
			if p.Hash == hash {
				return true
			}
		}
	}
	return false
}

// BlockHeight returns hash's main-chain height, or -1 if it is not
// attached to main.
func (c *Chain) BlockHeight(hash gobch.Hash) int {
	if e, ok := c.index.get(hash); ok {
		return e.height
	}
	return -1
}

// GetBlock reads a main-chain block by height.
func (c *Chain) GetBlock(height int) (*gobch.Block, error) {
	c.pendingMu.RLock()
	if height < 0 || height >= len(c.heights) {
		c.pendingMu.RUnlock()
		return nil, errHeightOutOfRange(height)
	}
	hash := c.heights[height]
	c.pendingMu.RUnlock()
	return c.GetBlockByHash(hash)
}

// GetBlockByHash reads a main-chain block by hash.
func (c *Chain) GetBlockByHash(hash gobch.Hash) (*gobch.Block, error) {
	entry, ok := c.index.get(hash)
	if !ok {
		return nil, errUnknownHash(hash)
	}
	return c.blocks.ReadBlock(entry.loc, true)
}

// GetBlockHash returns the main-chain hash at height.
func (c *Chain) GetBlockHash(height int) (gobch.Hash, bool) {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()
	if height < 0 || height >= len(c.heights) {
		return gobch.Hash{}, false
	}
	return c.heights[height], true
}

// GetBlockHeaders returns up to count headers starting at height start,
// stopping at stop (inclusive) if reached first.
func (c *Chain) GetBlockHeaders(start, stop, count int) ([]*gobch.BlockHeader, error) {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()

	var out []*gobch.BlockHeader
	for h := start; h <= stop && h < len(c.heights) && len(out) < count; h++ {
		entry, ok := c.index.get(c.heights[h])
		if !ok {
			continue
		}
		blk, err := c.blocks.ReadBlock(entry.loc, false)
		if err != nil {
			return out, err
		}
		out = append(out, blk.BlockHeader)
	}
	return out, nil
}

// GetReverseBlockHashes returns up to count hashes walking back from
// the tip, most recent first (a getheaders-style locator primitive).
func (c *Chain) GetReverseBlockHashes(count int) []gobch.Hash {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()

	var out []gobch.Hash
	for h := len(c.heights) - 1; h >= 0 && len(out) < count; h-- {
		out = append(out, c.heights[h])
	}
	return out
}

type errHeightOutOfRange int

func (e errHeightOutOfRange) Error() string { return "chain: height out of range" }

type errUnknownHash gobch.Hash

func (e errUnknownHash) Error() string { return "chain: unknown block hash" }
