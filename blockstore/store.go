package blockstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gobch/gobch"
)

// AddResult is the outcome of AddBlock, spec.md §4.E.
type AddResult int

const (
	Added AddResult = iota
	Full
)

// lockedFile pairs a block file with the per-file_id lock spec.md §5
// requires: writers hold exclusively, readers share.
type lockedFile struct {
	mu sync.RWMutex
	f  *file
}

// Store is the append-only block file store of spec.md §4.E.
type Store struct {
	dir string

	mu    sync.RWMutex // guards files and tip
	files map[uint32]*lockedFile
	tip   uint32 // highest file_id
}

// Open opens a block file store rooted at dir, performing the startup
// recovery scan of spec.md §4.E: files are visited in ascending
// file_id; if the last file fails to open or its CRC check, the whole
// file is removed (it is never truncated, so any valid blocks in it
// are dropped too). A bad non-tip file is an error.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	s := &Store{dir: dir, files: make(map[uint32]*lockedFile)}

	ids, err := scanFileIDs(dir)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		bf, err := createFile(dir, 0)
		if err != nil {
			return nil, err
		}
		s.files[0] = &lockedFile{f: bf}
		s.tip = 0
		return s, nil
	}

	for i, id := range ids {
		bf, err := openFile(dir, id)
		isLast := i == len(ids)-1
		if err != nil {
			if !isLast {
				return nil, fmt.Errorf("blockstore: corrupt non-tip file %08x: %w", id, err)
			}
			// The tip file may be torn by a crash mid-write: drop it
			// and let the next AddBlock start a fresh one, per spec.md
			// §4.E recovery.
			os.Remove(filepath.Join(dir, fileName(id)))
			if i == 0 {
				bf, err := createFile(dir, id)
				if err != nil {
					return nil, err
				}
				s.files[id] = &lockedFile{f: bf}
				s.tip = id
				return s, nil
			}
			continue
		}
		s.files[id] = &lockedFile{f: bf}
		s.tip = id
	}
	return s, nil
}

func scanFileIDs(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []uint32
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".blk") {
			continue
		}
		idHex := strings.TrimSuffix(name, ".blk")
		id, err := strconv.ParseUint(idHex, 16, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) tipFile() *lockedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files[s.tip]
}

// AddBlock serializes and appends block to the tip file, rolling over
// to a new file_id when it is full, spec.md §4.E. The returned
// Location is where the caller can later ReadBlock it back.
func (s *Store) AddBlock(block *gobch.Block) (AddResult, Location, error) {
	buf := new(bytes.Buffer)
	if err := gobch.BinWrite(block, buf); err != nil {
		return Full, Location{}, err
	}
	hash := block.Hash()

	lf := s.tipFile()
	fileID := s.tip
	lf.mu.Lock()
	offset, ok, err := lf.f.append(hash, buf.Bytes())
	lf.mu.Unlock()
	if err != nil {
		return Full, Location{}, err
	}
	if ok {
		return Added, Location{FileID: fileID, Offset: offset}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	newID := s.tip + 1
	bf, err := createFile(s.dir, newID)
	if err != nil {
		return Full, Location{}, err
	}
	nlf := &lockedFile{f: bf}
	s.files[newID] = nlf
	s.tip = newID

	nlf.mu.Lock()
	offset, ok, err = nlf.f.append(hash, buf.Bytes())
	nlf.mu.Unlock()
	if err != nil {
		return Full, Location{}, err
	}
	if !ok {
		return Full, Location{}, fmt.Errorf("blockstore: fresh file %08x rejected first block", newID)
	}
	return Added, Location{FileID: newID, Offset: offset}, nil
}

// Location identifies a stored block for ReadBlock.
type Location struct {
	FileID uint32
	Offset uint64
}

// ReadHashes returns every contained block hash across every file, in
// file/TOC order, spec.md §4.E.
func (s *Store) ReadHashes() []gobch.Hash {
	s.mu.RLock()
	ids := make([]uint32, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []gobch.Hash
	for _, id := range ids {
		s.mu.RLock()
		lf := s.files[id]
		s.mu.RUnlock()

		lf.mu.RLock()
		for i := uint32(0); i < lf.f.count; i++ {
			out = append(out, gobch.HashFromBytes(lf.f.toc[i].hash[:]))
		}
		lf.mu.RUnlock()
	}
	return out
}

// ReadBlock reads the block stored at loc. When withTxs is false, only
// the 80-byte header is decoded and the returned block has no
// transactions, spec.md §4.E.
func (s *Store) ReadBlock(loc Location, withTxs bool) (*gobch.Block, error) {
	s.mu.RLock()
	lf, ok := s.files[loc.FileID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blockstore: no file %08x", loc.FileID)
	}

	lf.mu.RLock()
	defer lf.mu.RUnlock()

	if !withTxs {
		hdrBytes, err := lf.f.readAt(loc.Offset, gobch.HeaderSize)
		if err != nil {
			return nil, err
		}
		var bh gobch.BlockHeader
		if err := gobch.BinRead(&bh, bytes.NewReader(hdrBytes)); err != nil {
			return nil, err
		}
		return &gobch.Block{BlockHeader: &bh}, nil
	}

	// Body length is unknown up front; read everything remaining in the
	// file's data region for this file_id, which is safe since TOC
	// offsets (and thus block boundaries) are always visited in order
	// by the caller.
	end, err := lf.f.f.Seek(0, 2)
	if err != nil {
		return nil, err
	}
	n := int(end - dataStart - int64(loc.Offset))
	raw, err := lf.f.readAt(loc.Offset, n)
	if err != nil {
		return nil, err
	}
	var blk gobch.Block
	if err := gobch.BinRead(&blk, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return &blk, nil
}

// RemoveBlocksAbove truncates fileID's data (and TOC) to drop every
// block at or after offset, spec.md's remove_blocks_above.
func (s *Store) RemoveBlocksAbove(fileID uint32, offset uint64) error {
	s.mu.RLock()
	lf, ok := s.files[fileID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("blockstore: no file %08x", fileID)
	}
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.f.truncateAbove(offset)
}

// RemoveFile deletes fileID entirely, spec.md's remove_file.
func (s *Store) RemoveFile(fileID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lf, ok := s.files[fileID]
	if !ok {
		return nil
	}
	lf.mu.Lock()
	err := lf.f.remove()
	lf.mu.Unlock()
	delete(s.files, fileID)
	return err
}

// Close releases every open file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, lf := range s.files {
		lf.f.close()
		delete(s.files, id)
	}
	return nil
}
