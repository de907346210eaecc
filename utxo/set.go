package utxo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gobch/gobch"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// txKey identifies a transaction's in-flight change set: entries it
// spent (to be removed on commit, restored on revert) and entries it
// added (to be persisted on commit, removed on revert).
type txKey struct {
	spent []*Entry
	added []*Entry
}

type shardState struct {
	mu         sync.Mutex
	db         *leveldb.DB
	lastAccess time.Time
	dirty      bool
}

// Set is the sharded UTXO store of spec.md §4.F. Each of the 65,536
// 16-bit buckets is backed by its own goleveldb instance, opened
// lazily on first access, matching the "key-value-ish UTXO shards"
// storage contract the chain consumes.
type Set struct {
	dir string

	mu     sync.RWMutex // guards shards and height
	shards map[uint16]*shardState
	height int

	pending sync.Map // map[gobch.Hash]*txKey, keyed by txid, transaction-local state
}

// Open opens (or creates) a UTXO set rooted at dir, spec.md's
// `outputs/<shard>.dat` directory.
func Open(dir string) (*Set, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	height := -1
	if b, err := os.ReadFile(filepath.Join(dir, "height")); err == nil {
		fmt.Sscanf(string(b), "%d", &height)
	}
	return &Set{dir: dir, shards: make(map[uint16]*shardState), height: height}, nil
}

func (s *Set) shardPath(bucket uint16) string {
	return filepath.Join(s.dir, fmt.Sprintf("%04x.dat", bucket))
}

func (s *Set) shardFor(bucket uint16) (*shardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sh, ok := s.shards[bucket]; ok {
		sh.lastAccess = time.Now()
		return sh, nil
	}

	db, err := leveldb.OpenFile(s.shardPath(bucket), &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("utxo: opening shard %04x: %w", bucket, err)
	}
	sh := &shardState{db: db, lastAccess: time.Now()}
	s.shards[bucket] = sh
	return sh, nil
}

// FindUnspent returns the entry for (txid, index) iff it is currently
// unspent, lazily opening its shard.
func (s *Set) FindUnspent(txid gobch.Hash, index uint32) (*Entry, error) {
	sh, err := s.shardFor(shard(txid))
	if err != nil {
		return nil, err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := &Entry{Txid: txid, Index: index}
	val, err := sh.db.Get(e.key(), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(txid, index, val)
}

// txState returns this set's in-flight change record for txid,
// creating it on first touch within the current block.
func (s *Set) txState(txid gobch.Hash) *txKey {
	v, _ := s.pending.LoadOrStore(txid, &txKey{})
	return v.(*txKey)
}

// Spend tentatively marks entry spent; idempotent within the same
// block, spec.md §4.F.
func (s *Set) Spend(txid gobch.Hash, entry *Entry) {
	st := s.txState(txid)
	for _, e := range st.spent {
		if e.Txid == entry.Txid && e.Index == entry.Index {
			return
		}
	}
	entry.Spent = true
	st.spent = append(st.spent, entry)
}

// Add inserts a new unspent entry, tentatively, spec.md §4.F. Collision
// with an already-unspent entry is invalid unless allowDuplicate is set
// (the BIP-30 exception, recognized by a hard-coded pre-check upstream
// in the block validator).
func (s *Set) Add(txid gobch.Hash, entry *Entry, allowDuplicate bool) error {
	if !allowDuplicate {
		existing, err := s.FindUnspent(entry.Txid, entry.Index)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("utxo: output %s:%d already unspent", entry.Txid, entry.Index)
		}
	}
	st := s.txState(txid)
	st.added = append(st.added, entry)
	return nil
}

// Commit removes all tentatively-spent entries produced by txids and
// persists the new ones they produced, then sets utxo_height, spec.md
// §4.F.
func (s *Set) Commit(txids []gobch.Hash, height int) error {
	byShard := make(map[uint16]*leveldb.Batch)
	touched := make(map[uint16]bool)

	for _, txid := range txids {
		v, ok := s.pending.Load(txid)
		if !ok {
			continue
		}
		st := v.(*txKey)

		for _, e := range st.spent {
			b := shard(e.Txid)
			if byShard[b] == nil {
				byShard[b] = new(leveldb.Batch)
			}
			byShard[b].Delete(e.key())
			touched[b] = true
		}
		for _, e := range st.added {
			b := shard(e.Txid)
			if byShard[b] == nil {
				byShard[b] = new(leveldb.Batch)
			}
			byShard[b].Put(e.key(), e.encode())
			touched[b] = true
		}
		s.pending.Delete(txid)
	}

	for bucket, batch := range byShard {
		sh, err := s.shardFor(bucket)
		if err != nil {
			return err
		}
		sh.mu.Lock()
		err = sh.db.Write(batch, nil)
		sh.dirty = true
		sh.mu.Unlock()
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.height = height
	s.mu.Unlock()
	return nil
}

// Revert undoes a prior Spend/Add for txids without touching disk,
// used when a block fails validation before it ever reaches Commit.
func (s *Set) Revert(txids []gobch.Hash) {
	for _, txid := range txids {
		s.pending.Delete(txid)
	}
}

// Purge evicts shards untouched for threshold, forcing dirty ones to
// disk first, spec.md §4.F.
func (s *Set) Purge(threshold time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for bucket, sh := range s.shards {
		sh.mu.Lock()
		idle := now.Sub(sh.lastAccess) > threshold
		if idle {
			if sh.dirty {
				// goleveldb persists writes as they're made; there is
				// no separate flush call, closing is sufficient.
			}
			sh.db.Close()
			delete(s.shards, bucket)
		}
		sh.mu.Unlock()
	}
	return nil
}

// Save marks every open shard clean and writes the height marker,
// spec.md §4.F. It makes no fsync call; shard data is left to
// goleveldb's own unsynced writes.
func (s *Set) Save() error {
	s.mu.RLock()
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.dirty = false
		sh.mu.Unlock()
	}
	height := s.height
	s.mu.RUnlock()

	return os.WriteFile(filepath.Join(s.dir, "height"), []byte(fmt.Sprintf("%d", height)), 0644)
}

// Height returns utxo_height, the height of the last committed block.
func (s *Set) Height() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// Close releases all open shard handles.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for bucket, sh := range s.shards {
		sh.db.Close()
		delete(s.shards, bucket)
	}
	return nil
}

// BulkRevert is the tooling/recovery path of spec.md §4.F: re-open each
// block above newHeight via reader, from the current height downward,
// and delete the outputs it added. The outputs its transactions spent
// are not restored.
func (s *Set) BulkRevert(newHeight int, reader func(height int) (*gobch.Block, error)) error {
	s.mu.RLock()
	cur := s.height
	s.mu.RUnlock()

	for h := cur; h > newHeight; h-- {
		blk, err := reader(h)
		if err != nil {
			return fmt.Errorf("utxo: bulk revert reading height %d: %w", h, err)
		}
		for _, tx := range blk.Txs {
			txid := tx.Txid()

			for i := range tx.TxOuts {
				if err := s.removeEntry(txid, uint32(i)); err != nil {
					return err
				}
			}
			// Spent inputs from this tx cannot be reconstructed from the
			// block alone (their amount/script lived in the spent
			// output, not the input); bulk_revert is documented as a
			// recovery tool run against an external undo source, so the
			// input side is deliberately left to the caller driving
			// reader.
		}
	}

	s.mu.Lock()
	s.height = newHeight
	s.mu.Unlock()
	return nil
}

func (s *Set) removeEntry(txid gobch.Hash, index uint32) error {
	sh, err := s.shardFor(shard(txid))
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e := &Entry{Txid: txid, Index: index}
	sh.dirty = true
	return sh.db.Delete(e.key(), nil)
}
