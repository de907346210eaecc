package chain

import (
	"time"

	"github.com/gobch/gobch"
)

// PendingState is the per-item lifecycle of spec.md §4.H: "HeaderOnly,
// BodyRequested, BodyReceived, Validated, Rejected".
type PendingState int

const (
	HeaderOnly PendingState = iota
	BodyRequested
	BodyReceived
	Validated
	Rejected
)

func (s PendingState) String() string {
	switch s {
	case HeaderOnly:
		return "header-only"
	case BodyRequested:
		return "body-requested"
	case BodyReceived:
		return "body-received"
	case Validated:
		return "validated"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// PendingBlockData is one entry of a chain's or branch's pending queue,
// spec.md §3.
type PendingBlockData struct {
	Hash   gobch.Hash
	Header *gobch.BlockHeader
	Block  *gobch.Block // set once the body arrives

	State PendingState
	Reason error

	RequestedTime   time.Time
	UpdateTime      time.Time
	RequestingNode  string
}

// Branch is a fork off the main chain, spec.md §3: a pending queue
// rooted at fork_height plus its accumulated work, grounded on the
// teacher's blkGraph split/longest-chain bookkeeping in graph.go,
// generalized from a bounded lookback window to the full attach/revert
// lifecycle spec.md §4.H describes.
type Branch struct {
	ForkHeight      int
	ForkHash        gobch.Hash // hash of the block at ForkHeight, shared with main
	Pending         []*PendingBlockData
	AccumulatedWork []byte
}

func (b *Branch) tipHash() gobch.Hash {
	if len(b.Pending) == 0 {
		return b.ForkHash
	}
	return b.Pending[len(b.Pending)-1].Hash
}

// AdmitResult is the admission-control verdict for add_pending_hash,
// spec.md §4.H.
type AdmitResult int

const (
	AlreadyHave AdmitResult = iota
	NeedHeader
	NeedBlock
	BlackListed
)

func (r AdmitResult) String() string {
	switch r {
	case AlreadyHave:
		return "already-have"
	case NeedHeader:
		return "need-header"
	case NeedBlock:
		return "need-block"
	case BlackListed:
		return "black-listed"
	default:
		return "unknown"
	}
}
