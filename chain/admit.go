package chain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/gobch/gobch"
)

// addWork returns base (big-endian accumulated work bytes) plus the
// work of a single header's bits, so branches accumulate work exactly
// like chainstats.Stats.Push does for main, spec.md §4.H.
func addWork(base []byte, bits uint32) []byte {
	total := new(big.Int).SetBytes(base)
	total.Add(total, gobch.WorkFromBits(bits))
	return total.Bytes()
}

// AddPendingHash is admission control for an announce message, spec.md
// §4.H.
func (c *Chain) AddPendingHash(hash gobch.Hash, nodeID string) AdmitResult {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()

	if c.blacklistedHashes[hash] {
		return BlackListed
	}
	if _, ok := c.index.get(hash); ok {
		return AlreadyHave
	}
	if item := c.findPending(hash); item != nil {
		if item.Block != nil {
			return AlreadyHave
		}
		return NeedBlock
	}
	return NeedHeader
}

// findPending looks for hash across the main pending queue and every
// branch's pending queue. Callers must hold pendingMu.
func (c *Chain) findPending(hash gobch.Hash) *PendingBlockData {
	for _, p := range c.mainPending {
		if p.Hash == hash {
			return p
		}
	}
	for _, b := range c.branches {
		for _, p := range b.Pending {
			if p.Hash == hash {
				return p
			}
		}
	}
	return nil
}

// AddPendingBlock accepts a header or full block, attaching it to the
// main pending queue, an existing branch, or a new branch, per spec.md
// §4.H. Proof-of-work is verified before acceptance; a bad-PoW header
// is rejected and black-listed, mirroring the teacher's graph.add
// parent-lookup-or-error shape generalized to also create branches
// instead of failing outright on an unknown parent.
func (c *Chain) AddPendingBlock(header *gobch.BlockHeader, block *gobch.Block) (bool, error) {
	hash := header.Hash()

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if c.blacklistedHashes[hash] {
		return false, nil
	}
	if _, ok := c.index.get(hash); ok {
		return true, nil
	}
	if !header.HasProofOfWork() {
		c.blacklistedHashes[hash] = true
		return false, fmt.Errorf("chain: block %s fails proof-of-work", hash)
	}

	item := &PendingBlockData{
		Hash: hash, Header: header, Block: block,
		State:      HeaderOnly,
		UpdateTime: time.Now(),
	}
	if block != nil {
		item.State = BodyReceived
	}

	// Extend an existing branch tip.
	for _, b := range c.branches {
		if b.tipHash() == header.PrevHash {
			b.Pending = append(b.Pending, item)
			b.AccumulatedWork = addWork(b.AccumulatedWork, header.Bits)
			return true, nil
		}
	}

	// Continues the main pending queue (which itself continues the tip,
	// or nothing is pending yet and this continues the tip directly).
	if c.continuesMain(header.PrevHash) {
		c.mainPending = append(c.mainPending, item)
		return true, nil
	}

	// Parent is an earlier main-chain block: new branch forking from
	// there.
	if entry, ok := c.index.get(header.PrevHash); ok {
		c.branches = append(c.branches, &Branch{
			ForkHeight:      entry.height,
			ForkHash:        entry.hash,
			Pending:         []*PendingBlockData{item},
			AccumulatedWork: addWork(c.stats.AccumulatedWorkAt(entry.height), header.Bits),
		})
		return true, nil
	}

	// Unknown parent: hold as a rootless branch (ForkHeight -1). Nothing
	// links a rootless branch to main later: CheckBranches neither
	// promotes nor prunes it, and it only grows when a child header
	// extends its tip.
	c.branches = append(c.branches, &Branch{
		ForkHeight:      -1,
		Pending:         []*PendingBlockData{item},
		AccumulatedWork: addWork(nil, header.Bits),
	})
	return true, nil
}

// continuesMain reports whether prevHash is the current main tip or the
// hash of the last item already in the main pending queue. Callers
// must hold pendingMu.
func (c *Chain) continuesMain(prevHash gobch.Hash) bool {
	if len(c.mainPending) == 0 {
		return prevHash == c.tip.hash
	}
	return prevHash == c.mainPending[len(c.mainPending)-1].Hash
}

// GetBlocksNeeded is the scheduling hook: full bodies still missing for
// items at the front of the main pending queue (and, unless reduceOnly,
// every branch too), spec.md §4.H.
func (c *Chain) GetBlocksNeeded(count int, reduceOnly bool) []gobch.Hash {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()

	var out []gobch.Hash
	collect := func(items []*PendingBlockData) {
		for _, p := range items {
			if len(out) >= count {
				return
			}
			if p.State == HeaderOnly {
				out = append(out, p.Hash)
			}
		}
	}
	collect(c.mainPending)
	if !reduceOnly {
		for _, b := range c.branches {
			if len(out) >= count {
				break
			}
			collect(b.Pending)
		}
	}
	return out
}

// MarkBlocksForNode records which node_id is expected to deliver each
// hash, spec.md §4.H downloader accounting.
func (c *Chain) MarkBlocksForNode(hashes []gobch.Hash, nodeID string) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for _, h := range hashes {
		c.inflight[h] = nodeID
		if p := c.findPending(h); p != nil {
			p.State = BodyRequested
			p.RequestingNode = nodeID
			p.RequestedTime = time.Now()
		}
	}
}

func (c *Chain) UpdateBlockProgress(hash gobch.Hash, nodeID string, t time.Time) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if p := c.findPending(hash); p != nil && p.RequestingNode == nodeID {
		p.UpdateTime = t
	}
}

// ReleaseBlocksForNode clears in-flight bookkeeping for a lost peer so
// the scheduler re-requests its blocks elsewhere.
func (c *Chain) ReleaseBlocksForNode(nodeID string) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for h, n := range c.inflight {
		if n == nodeID {
			delete(c.inflight, h)
			if p := c.findPending(h); p != nil && p.State == BodyRequested {
				p.State = HeaderOnly
			}
		}
	}
}
