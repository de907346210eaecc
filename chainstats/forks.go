package chainstats

// Forks tracks the height/version-threshold soft-fork activations of
// spec.md §4.G, re-derived from a rolling window of the last 1000
// block versions the way original_source/src/chain.cpp's
// updateBlockVersionFlags does.
//
// The original counts thresholds with `&=` (bitwise AND) against the
// flag it means to *set*, which can only ever clear bits — a bug. This
// implementation uses `|=` (spec.md §9 Open Question: the source's
// AND-for-OR defect is fixed here, not reproduced).
type Forks struct {
	BIP34Active  bool
	BIP34Require bool
	BIP66Active  bool
	BIP66Require bool
	BIP65Active  bool
	BIP112Active bool // CHECKSEQUENCEVERIFY
	BIP68Active  bool
	BIP113Active bool

	CashActive bool
	DAAActive  bool

	versions []uint32 // most recent block versions, newest first, capped at 1000

	params ForkParams
}

// ForkParams carries the network-specific height thresholds a Forks
// needs, mirroring chainparams.ChainParams without importing it (forks
// must not depend on chainparams, chainparams does not depend on
// chainstats either — both are independent leaves off gobch).
type ForkParams struct {
	BIP34Height          int
	BIP65Height          int
	BIP66Height          int
	CashActivationHeight int
	DAASwitchTime        uint32
}

func NewForks(params ForkParams) *Forks {
	return &Forks{params: params}
}

const versionWindow = 1000

// Process advances the fork state machine by one block, spec.md §4.G
// "forks.process(stats, height) advances fork state machines".
func (f *Forks) Process(stats *Stats, height int) {
	row, ok := stats.At(height)
	if !ok {
		return
	}

	f.versions = append([]uint32{row.Version}, f.versions...)
	if len(f.versions) > versionWindow {
		f.versions = f.versions[:versionWindow]
	}
	f.updateBlockVersionFlags()

	if height >= f.params.BIP34Height {
		f.BIP34Active = true
	}
	if height >= f.params.BIP65Height {
		f.BIP65Active = true
	}
	if height >= f.params.BIP66Height {
		f.BIP66Active = true
	}
	// BIP-112/68/113 (relative locktime/CSV) activate alongside BIP-65 on
	// BCH, since BCH never had a separate segwit-bundled activation
	// height for them.
	if height >= f.params.BIP65Height {
		f.BIP112Active = true
		f.BIP68Active = true
		f.BIP113Active = true
	}

	if height >= f.params.CashActivationHeight {
		f.CashActive = true
	}
	if f.CashActive && stats.MedianPastTime(height) > f.params.DAASwitchTime {
		f.DAAActive = true
	}
}

// updateBlockVersionFlags mirrors the teacher's source's windowed
// version-count thresholds (750/950 of the last 1000 blocks), fixed to
// set (not clear) the corresponding flag.
func (f *Forks) updateBlockVersionFlags() {
	if f.BIP34Require {
		return
	}

	v4OrHigher, v2OrHigher := 0, 0
	limit := len(f.versions)
	if limit > versionWindow {
		limit = versionWindow
	}
	for i := 0; i < limit; i++ {
		v := f.versions[i]
		if v >= 4 {
			v4OrHigher++
			v2OrHigher++
		} else if v >= 2 {
			v2OrHigher++
		}
	}

	if v4OrHigher >= 750 {
		f.BIP66Active = true
	}
	if v4OrHigher >= 950 {
		f.BIP66Require = true
	}
	if v2OrHigher >= 750 {
		f.BIP34Active = true
	}
	if v2OrHigher >= 950 {
		f.BIP34Require = true
	}
}

// Revert rolls fork state back to height by recomputing it from
// scratch against stats rows 0..height (rows above height are not
// read), spec.md §4.G
// "forks.revert(stats, height)".
func (f *Forks) Revert(stats *Stats, height int) {
	*f = *NewForks(f.params)
	for h := 0; h <= height; h++ {
		f.Process(stats, h)
	}
}

// EnabledScriptVersion maps fork state to the script package's
// version-gated behavior (strict DER at 3, CHECKLOCKTIMEVERIFY at 4),
// spec.md §4.B.
func (f *Forks) EnabledScriptVersion() int {
	switch {
	case f.BIP65Active:
		return 4
	case f.BIP66Active:
		return 3
	case f.BIP34Active:
		return 2
	default:
		return 1
	}
}
