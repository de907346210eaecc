package chainstats

import (
	"testing"

	"github.com/gobch/gobch"
)

func buildStats(n int, spacing uint32, bits uint32) *Stats {
	s := New()
	var t uint32 = 1231006505
	for i := 0; i < n; i++ {
		s.Push(1, t, bits)
		t += spacing
	}
	return s
}

func Test_classicRetarget_tightensWhenFast(t *testing.T) {
	const bits = 0x1d00ffff
	s := buildStats(2017, 300, bits) // half the target spacing
	params := TargetParams{MaxTargetBits: bits, SpacingSeconds: 600}

	got := classicRetarget(s, params, 2016)
	if gobch.BitsToTarget(got).Cmp(gobch.BitsToTarget(bits)) >= 0 {
		t.Errorf("classicRetarget did not tighten for fast blocks: prev=%08x got=%08x", bits, got)
	}
}

func Test_classicRetarget_easesWhenSlow(t *testing.T) {
	const bits = 0x1b0404cb
	s := buildStats(2017, 1200, bits) // twice the target spacing
	params := TargetParams{MaxTargetBits: 0x1d00ffff, SpacingSeconds: 600}

	got := classicRetarget(s, params, 2016)
	if got == bits {
		t.Errorf("classicRetarget = %08x, want an eased (larger target / smaller-precision bits) value", got)
	}
}

func Test_NextTargetBits_genesisUsesMaxBits(t *testing.T) {
	s := New()
	f := NewForks(ForkParams{})
	params := TargetParams{MaxTargetBits: 0x1d00ffff}

	got := NextTargetBits(s, f, params, 0, 0)
	if got != params.MaxTargetBits {
		t.Errorf("NextTargetBits(h=0) = %08x, want MaxTargetBits %08x", got, params.MaxTargetBits)
	}
}

func Test_NextTargetBits_testNetMinDifficultyAfterGap(t *testing.T) {
	const bits = 0x1b0404cb
	const maxBits = 0x1d00ffff
	s := buildStats(10, 600, bits)
	f := NewForks(ForkParams{})
	params := TargetParams{MaxTargetBits: maxBits, SpacingSeconds: 600, TestNetMinDifficulty: true}

	prevRow, ok := s.At(9)
	if !ok {
		t.Fatal("buildStats did not populate height 9")
	}
	blockTime := prevRow.Time + 2*600 + 1 // just over the 20-minute exception

	got := NextTargetBits(s, f, params, 10, blockTime)
	if got != maxBits {
		t.Errorf("NextTargetBits with TestNetMinDifficulty after a gap = %08x, want MaxTargetBits %08x", got, maxBits)
	}
}

func Test_NextTargetBits_testNetMinDifficultyNotTriggeredWithoutGap(t *testing.T) {
	const bits = 0x1b0404cb
	const maxBits = 0x1d00ffff
	s := buildStats(10, 600, bits)
	f := NewForks(ForkParams{})
	params := TargetParams{MaxTargetBits: maxBits, SpacingSeconds: 600, TestNetMinDifficulty: true}

	prevRow, ok := s.At(9)
	if !ok {
		t.Fatal("buildStats did not populate height 9")
	}
	blockTime := prevRow.Time + 600 // normal spacing, no exception

	got := NextTargetBits(s, f, params, 10, blockTime)
	if got == maxBits {
		t.Errorf("NextTargetBits without a gap unexpectedly returned MaxTargetBits %08x", maxBits)
	}
}

func Test_edaBump_increasesTarget(t *testing.T) {
	const prevBits = 0x1b0404cb
	params := TargetParams{MaxTargetBits: 0x1d00ffff}
	got := edaBump(prevBits, params)
	if gobch.BitsToTarget(got).Cmp(gobch.BitsToTarget(prevBits)) <= 0 {
		t.Errorf("edaBump target did not increase: prev=%08x got=%08x", prevBits, got)
	}
}
