package chainstats

import "testing"

func pushRows(stats *Stats, n int, version uint32) {
	for i := 0; i < n; i++ {
		stats.Push(version, uint32(1000000000+i*600), 0x1d00ffff)
	}
}

func Test_Forks_activatesAtHeightThresholds(t *testing.T) {
	stats := New()
	pushRows(stats, 10, 1)

	f := NewForks(ForkParams{BIP34Height: 3, BIP65Height: 5, BIP66Height: 4, CashActivationHeight: 7})
	for h := 0; h <= 9; h++ {
		f.Process(stats, h)
	}

	if !f.BIP34Active {
		t.Error("BIP34Active should be set once height passes BIP34Height")
	}
	if !f.BIP65Active || !f.BIP66Active {
		t.Error("BIP65/BIP66 should be active by height 9")
	}
	if !f.CashActive {
		t.Error("CashActive should be set once height passes CashActivationHeight")
	}
	if !f.BIP112Active || !f.BIP68Active || !f.BIP113Active {
		t.Error("BIP112/68/113 should activate alongside BIP65")
	}
}

func Test_Forks_versionWindow_setsNotClears(t *testing.T) {
	stats := New()
	pushRows(stats, versionWindow, 4)

	f := NewForks(ForkParams{BIP34Height: 1 << 30, BIP65Height: 1 << 30, BIP66Height: 1 << 30, CashActivationHeight: 1 << 30})
	for h := 0; h < versionWindow; h++ {
		f.Process(stats, h)
	}

	if !f.BIP34Active || !f.BIP34Require {
		t.Error("window of version>=4 blocks should set and require BIP34, not clear it")
	}
	if !f.BIP66Active || !f.BIP66Require {
		t.Error("window of version>=4 blocks should set and require BIP66")
	}
}

func Test_Forks_Revert_recomputesFromScratch(t *testing.T) {
	stats := New()
	pushRows(stats, 10, 1)

	f := NewForks(ForkParams{BIP34Height: 3, BIP65Height: 5, BIP66Height: 4, CashActivationHeight: 100})
	for h := 0; h <= 9; h++ {
		f.Process(stats, h)
	}
	if !f.BIP65Active {
		t.Fatal("expected BIP65Active before revert")
	}

	f.Revert(stats, 4)
	if f.BIP65Active {
		t.Error("BIP65Active should be false after reverting below its activation height")
	}
	if !f.BIP34Active {
		t.Error("BIP34Active should still be set after reverting to height 4 (>= BIP34Height 3)")
	}
}

func Test_EnabledScriptVersion_picksHighestActive(t *testing.T) {
	cases := []struct {
		f    Forks
		want int
	}{
		{Forks{}, 1},
		{Forks{BIP34Active: true}, 2},
		{Forks{BIP34Active: true, BIP66Active: true}, 3},
		{Forks{BIP34Active: true, BIP66Active: true, BIP65Active: true}, 4},
	}
	for _, tc := range cases {
		if got := tc.f.EnabledScriptVersion(); got != tc.want {
			t.Errorf("EnabledScriptVersion(%+v) = %d, want %d", tc.f, got, tc.want)
		}
	}
}
