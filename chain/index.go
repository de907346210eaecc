package chain

import (
	"sync"

	"github.com/gobch/gobch/blockstore"
	"github.com/gobch/gobch"
)

const indexBuckets = 65536

// indexEntry is what the chain remembers about an attached block,
// spec.md §3's "BlockInfo (index entry)".
type indexEntry struct {
	hash   gobch.Hash
	height int
	loc    blockstore.Location
}

// blockIndex is the sharded hash->height/location lookup table, spec.md
// §5: "sharded into 65,536 buckets by hash prefix; each bucket has its
// own lock", mirroring the per-shard locking already used by utxo.Set.
type blockIndex struct {
	buckets [indexBuckets]struct {
		mu sync.RWMutex
		m  map[gobch.Hash]*indexEntry
	}
}

func newBlockIndex() *blockIndex {
	idx := &blockIndex{}
	for i := range idx.buckets {
		idx.buckets[i].m = make(map[gobch.Hash]*indexEntry)
	}
	return idx
}

func bucketOf(h gobch.Hash) uint16 {
	return uint16(h[0]) | uint16(h[1])<<8
}

func (idx *blockIndex) get(h gobch.Hash) (*indexEntry, bool) {
	b := &idx.buckets[bucketOf(h)]
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.m[h]
	return e, ok
}

func (idx *blockIndex) put(e *indexEntry) {
	b := &idx.buckets[bucketOf(e.hash)]
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[e.hash] = e
}

func (idx *blockIndex) delete(h gobch.Hash) {
	b := &idx.buckets[bucketOf(h)]
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, h)
}
