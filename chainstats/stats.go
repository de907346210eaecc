// Package chainstats implements spec.md §4.G: the append-only
// per-height block stats vector, median-past-time, and the Forks
// soft-fork activation state machine.
package chainstats

import (
	"bytes"
	"io"
	"math/big"
	"os"
	"sort"

	"github.com/gobch/gobch"
)

// BlockStat is one height's recorded header fields plus the running
// accumulated work, spec.md §4.G.
type BlockStat struct {
	Version         uint32
	Time            uint32
	Bits            uint32
	Target          uint32 // alias of Bits, kept for symmetry with target_bits naming in spec.md
	AccumulatedWork []byte // big.Int bytes, big-endian
}

// Stats is the append-only per-height vector, indexed directly by
// height (Stats.rows[0] is the genesis block).
type Stats struct {
	rows []BlockStat
}

func New() *Stats { return &Stats{} }

// Height is the index of the last recorded row, or -1 if empty.
func (s *Stats) Height() int { return len(s.rows) - 1 }

// Push records a new height's stats, accumulating work on top of the
// previous height's total.
func (s *Stats) Push(version, time_, bits uint32) {
	work := gobch.WorkFromBits(bits)
	if len(s.rows) > 0 {
		prev := new(big.Int).SetBytes(s.rows[len(s.rows)-1].AccumulatedWork)
		work.Add(work, prev)
	}
	s.rows = append(s.rows, BlockStat{
		Version: version, Time: time_, Bits: bits, Target: bits,
		AccumulatedWork: work.Bytes(),
	})
}

// Truncate drops every row above height (exclusive), spec.md's revert.
func (s *Stats) Truncate(height int) {
	if height+1 < len(s.rows) {
		s.rows = s.rows[:height+1]
	}
}

func (s *Stats) At(height int) (BlockStat, bool) {
	if height < 0 || height >= len(s.rows) {
		return BlockStat{}, false
	}
	return s.rows[height], true
}

// AccumulatedWorkAt returns the total proof-of-work accumulated through
// height, as a big-endian byte string suitable for lexicographic branch
// comparison.
func (s *Stats) AccumulatedWorkAt(height int) []byte {
	row, ok := s.At(height)
	if !ok {
		return nil
	}
	return row.AccumulatedWork
}

// MedianPastTime returns the median of time[h-10..=h], spec.md §4.G.
func (s *Stats) MedianPastTime(h int) uint32 {
	lo := h - 10
	if lo < 0 {
		lo = 0
	}
	var times []uint32
	for i := lo; i <= h; i++ {
		if row, ok := s.At(i); ok {
			times = append(times, row.Time)
		}
	}
	if len(times) == 0 {
		return 0
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times[len(times)/2]
}

// medianPast returns the median time and median accumulated work over
// [h-window+1, h], used by the DAA's two three-block medians.
func (s *Stats) medianPast(h, window int) (time_ uint32, work []byte) {
	lo := h - window + 1
	if lo < 0 {
		lo = 0
	}
	type sample struct {
		t uint32
		w []byte
	}
	var samples []sample
	for i := lo; i <= h; i++ {
		if row, ok := s.At(i); ok {
			samples = append(samples, sample{row.Time, row.AccumulatedWork})
		}
	}
	if len(samples) == 0 {
		return 0, nil
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].t < samples[j].t })
	mid := samples[len(samples)/2]
	return mid.t, mid.w
}

func (s *Stats) BinWrite(w io.Writer) error {
	if err := gobch.WriteVarInt(uint64(len(s.rows)), w); err != nil {
		return err
	}
	for _, r := range s.rows {
		if err := gobch.BinWrite(r.Version, w); err != nil {
			return err
		}
		if err := gobch.BinWrite(r.Time, w); err != nil {
			return err
		}
		if err := gobch.BinWrite(r.Bits, w); err != nil {
			return err
		}
		if err := gobch.WriteVarInt(uint64(len(r.AccumulatedWork)), w); err != nil {
			return err
		}
		if _, err := w.Write(r.AccumulatedWork); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stats) BinRead(r io.Reader) error {
	n, err := gobch.ReadVarInt(r)
	if err != nil {
		return err
	}
	s.rows = make([]BlockStat, 0, n)
	for i := uint64(0); i < n; i++ {
		var row BlockStat
		if err := gobch.BinRead(&row.Version, r); err != nil {
			return err
		}
		if err := gobch.BinRead(&row.Time, r); err != nil {
			return err
		}
		if err := gobch.BinRead(&row.Bits, r); err != nil {
			return err
		}
		row.Target = row.Bits
		wlen, err := gobch.ReadVarInt(r)
		if err != nil {
			return err
		}
		row.AccumulatedWork = make([]byte, wlen)
		if _, err := io.ReadFull(r, row.AccumulatedWork); err != nil {
			return err
		}
		s.rows = append(s.rows, row)
	}
	return nil
}

// Save/Load persist the stats vector to a flat file, spec.md §4.G
// "forks.save/load persists state so startup re-derivation is bounded"
// — applied here to the stats vector it depends on too.
func (s *Stats) Save(path string) error {
	buf := new(bytes.Buffer)
	if err := s.BinWrite(buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func (s *Stats) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.BinRead(bytes.NewReader(data))
}
