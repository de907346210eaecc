package chainstats

import (
	"math/big"

	"github.com/gobch/gobch"
)

// TargetParams carries the network constants the difficulty algorithm
// needs beyond what Stats/Forks already track.
type TargetParams struct {
	MaxTargetBits        uint32
	SpacingSeconds       int64 // 600 for both BCH networks
	TestNetMinDifficulty bool
}

const (
	daaSwitchMedianTime = 1510600000
	daaWindow           = 144
	edaWindow           = 6
	edaStaleSeconds     = 43200
	retargetInterval    = 2016
	targetTimespan      = 1209600 // 2 weeks, in seconds
)

// NextTargetBits computes target_bits for the block at height h, given
// its timestamp and the chain's accumulated fork/stats state so far
// (through height h-1), spec.md §4.H "Target update (DAA)" steps 1-5.
func NextTargetBits(stats *Stats, forks *Forks, params TargetParams, h int, blockTime uint32) uint32 {
	if h <= 1 {
		return params.MaxTargetBits
	}

	prevBits := mustBits(stats, h-1)

	if params.TestNetMinDifficulty {
		if prevRow, ok := stats.At(h - 1); ok && int64(blockTime)-int64(prevRow.Time) > 2*params.SpacingSeconds {
			return params.MaxTargetBits
		}
	}

	if forks.CashActive && stats.MedianPastTime(h) > daaSwitchMedianTime && h > 146 {
		return daa144(stats, params, h)
	}

	if forks.CashActive && h > 7 &&
		stats.MedianPastTime(h)-stats.MedianPastTime(h-6) >= edaStaleSeconds {
		return edaBump(prevBits, params)
	}

	if h%retargetInterval == 0 && !forks.DAAActive {
		return classicRetarget(stats, params, h)
	}

	return prevBits
}

func mustBits(stats *Stats, h int) uint32 {
	row, ok := stats.At(h)
	if !ok {
		return 0
	}
	return row.Bits
}

// daa144 is the November-2017 BCH difficulty algorithm: a 144-block
// trailing window of median(time, work) samples, spec.md §4.H step 2.
func daa144(stats *Stats, params TargetParams, h int) uint32 {
	tLast, workLastBytes := stats.medianPast(h-1, 3)
	tFirst, workFirstBytes := stats.medianPast(h-daaWindow-1, 3)

	span := int64(tLast) - int64(tFirst)
	minSpan := int64(params.SpacingSeconds) * daaWindow / 2
	maxSpan := int64(params.SpacingSeconds) * daaWindow * 2
	if span < minSpan {
		span = minSpan
	}
	if span > maxSpan {
		span = maxSpan
	}

	workLast := new(big.Int).SetBytes(workLastBytes)
	workFirst := new(big.Int).SetBytes(workFirstBytes)
	w := new(big.Int).Sub(workLast, workFirst)
	if w.Sign() <= 0 {
		w = big.NewInt(1)
	}

	pw := new(big.Int).Mul(w, big.NewInt(params.SpacingSeconds))
	pw.Div(pw, big.NewInt(span))

	maxUint256 := new(big.Int).Lsh(big.NewInt(1), 256)
	target := new(big.Int).Sub(maxUint256, pw)
	target.Div(target, pw)

	maxTarget := gobch.BitsToTarget(params.MaxTargetBits)
	if target.Cmp(maxTarget) > 0 {
		target = maxTarget
	}
	return gobch.TargetToBits(target)
}

// edaBump implements the emergency difficulty adjustment: ease off by
// 25% when no block landed for 12+ hours, spec.md §4.H step 3.
func edaBump(prevBits uint32, params TargetParams) uint32 {
	target := gobch.BitsToTarget(prevBits)
	target.Mul(target, big.NewInt(5))
	target.Div(target, big.NewInt(4))
	maxTarget := gobch.BitsToTarget(params.MaxTargetBits)
	if target.Cmp(maxTarget) > 0 {
		target = maxTarget
	}
	return gobch.TargetToBits(target)
}

// classicRetarget is Satoshi's original 2016-block retarget, preserving
// the historical off-by-one: it measures the span across 2015
// intervals (time[h-1] - time[h-2016]) rather than 2016, spec.md §4.H
// step 4.
func classicRetarget(stats *Stats, params TargetParams, h int) uint32 {
	last, ok1 := stats.At(h - 1)
	first, ok2 := stats.At(h - retargetInterval)
	if !ok1 || !ok2 {
		return mustBits(stats, h-1)
	}

	actualTimespan := int64(last.Time) - int64(first.Time)
	const minTimespan = targetTimespan / 4
	const maxTimespan = targetTimespan * 4
	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	}
	if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	target := gobch.BitsToTarget(last.Bits)
	target.Mul(target, big.NewInt(actualTimespan))
	target.Div(target, big.NewInt(targetTimespan))

	maxTarget := gobch.BitsToTarget(params.MaxTargetBits)
	if target.Cmp(maxTarget) > 0 {
		target = maxTarget
	}
	return gobch.TargetToBits(target)
}
