// Package chain implements spec.md §4.H: the authoritative main chain,
// pending header/block admission, branch tracking, reorg, and the
// queries peers/RPC issue against the chain's state. It is grounded on
// the teacher's graph.go (blkGraph split detection and longest-chain
// selection) and streamer.go (the out-of-order retry queue), generalized
// from a bounded lookback window used only to assign heights into the
// full branch-and-reorg state machine the spec calls for.
package chain

import (
	"fmt"
	"sync"

	"github.com/gobch/gobch/chainparams"
	"github.com/gobch/gobch/chainstats"
	"github.com/gobch/gobch"
)

// maxBranchAge is how many blocks below the tip a branch can fall
// behind before it is pruned, spec.md §4.H "delete branches older than
// 144 blocks below tip".
const maxBranchAge = 144

// maxOrphanAge is a 100-block age limit for unknown-parent branch
// roots. No code reads it: rootless branches are never connected to
// main, and CheckBranches does not prune them.
const maxOrphanAge = 100

type tipInfo struct {
	hash            gobch.Hash
	height          int
	accumulatedWork []byte
}

// Chain owns the block index, pending queues, branches, block-file
// store, and UTXO set exclusively, spec.md §3's "Ownership" note; peer
// threads hold only node_id identifiers.
type Chain struct {
	params chainparams.ChainParams
	blocks BlockStorage
	utxos  UTXOStorage
	peer   PeerClient

	stats *chainstats.Stats
	forks *chainstats.Forks

	index *blockIndex

	// processing serializes block application to the tip, spec.md §5.
	processing sync.Mutex

	// pendingMu guards tip, mainPending, and branches: many readers
	// (downloaders, RPC), exclusive writers (acceptors), spec.md §5.
	pendingMu   sync.RWMutex
	tip         tipInfo
	heights     []gobch.Hash // heights[h] is the main-chain hash at height h
	mainPending []*PendingBlockData
	branches    []*Branch

	blacklistedHashes map[gobch.Hash]bool
	blacklistedNodes  map[string]bool

	// inflight tracks which node_id is downloading which hash, for
	// mark_blocks_for_node/update_block_progress/release_blocks_for_node.
	inflight map[gobch.Hash]string

	stopRequested bool
}

// New constructs a chain rooted at params.Genesis, already indexed at
// height 0.
func New(params chainparams.ChainParams, blocks BlockStorage, utxos UTXOStorage, peer PeerClient) (*Chain, error) {
	c := &Chain{
		params:            params,
		blocks:            blocks,
		utxos:             utxos,
		peer:              peer,
		stats:             chainstats.New(),
		forks:             chainstats.NewForks(forkParamsFor(params)),
		index:             newBlockIndex(),
		blacklistedHashes: make(map[gobch.Hash]bool),
		blacklistedNodes:  make(map[string]bool),
		inflight:          make(map[gobch.Hash]string),
	}

	genesis := params.Genesis
	hash := genesis.Hash()
	c.stats.Push(genesis.Version, genesis.Time, genesis.Bits)
	c.forks.Process(c.stats, 0)

	added, loc, err := blocks.AddBlock(genesis)
	if err != nil {
		return nil, fmt.Errorf("chain: failed to store genesis block: %w", err)
	}
	_ = added
	c.index.put(&indexEntry{hash: hash, height: 0, loc: loc})
	c.tip = tipInfo{hash: hash, height: 0, accumulatedWork: c.stats.AccumulatedWorkAt(0)}
	c.heights = []gobch.Hash{hash}

	return c, nil
}

func forkParamsFor(p chainparams.ChainParams) chainstats.ForkParams {
	return chainstats.ForkParams{
		BIP34Height:          p.BIP34Height,
		BIP65Height:          p.BIP65Height,
		BIP66Height:          p.BIP66Height,
		CashActivationHeight: p.CashActivationHeight,
		DAASwitchTime:        p.DAASwitchTime,
	}
}

func (c *Chain) targetParams() chainstats.TargetParams {
	return chainstats.TargetParams{
		MaxTargetBits:        c.params.MaxTargetBits,
		SpacingSeconds:       600,
		TestNetMinDifficulty: c.params.TestNetMinDifficulty,
	}
}

// SetPeer wires the chain's outbound collaborator after construction,
// for callers that must build the chain before they can dial a peer
// (the peer's own message callbacks need a constructed *Chain to feed).
func (c *Chain) SetPeer(peer PeerClient) {
	c.pendingMu.Lock()
	c.peer = peer
	c.pendingMu.Unlock()
}

// TipHeight and TipHash report the current main-chain tip under the
// pending read lock, spec.md §5's "(tip_hash, tip_height,
// accumulated_work, utxo_height)" consistency guarantee.
func (c *Chain) TipHeight() int {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()
	return c.tip.height
}

func (c *Chain) TipHash() gobch.Hash {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()
	return c.tip.hash
}

// RequestStop sets the cooperative stop flag polled between blocks and
// file iterations in long operations, spec.md §5.
func (c *Chain) RequestStop() {
	c.pendingMu.Lock()
	c.stopRequested = true
	c.pendingMu.Unlock()
}

func (c *Chain) stopping() bool {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()
	return c.stopRequested
}
