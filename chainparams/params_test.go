package chainparams

import "testing"

func Test_MainNetParams_genesisHashIsWellKnown(t *testing.T) {
	got := MainNetParams.Genesis.Hash().String()
	want := "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26"
	if got != want {
		t.Errorf("MainNetParams.Genesis.Hash() = %s, want %s", got, want)
	}
}

func Test_CoinbaseSubsidy_halvesOnSchedule(t *testing.T) {
	p := MainNetParams
	const initial = 50 * 100000000
	if got := p.CoinbaseSubsidy(0); got != initial {
		t.Errorf("CoinbaseSubsidy(0) = %d, want %d", got, initial)
	}
	if got := p.CoinbaseSubsidy(p.SubsidyHalvingInterval); got != initial/2 {
		t.Errorf("CoinbaseSubsidy(halving) = %d, want %d", got, initial/2)
	}
	if got := p.CoinbaseSubsidy(p.SubsidyHalvingInterval * 64); got != 0 {
		t.Errorf("CoinbaseSubsidy(64 halvings) = %d, want 0", got)
	}
}

func Test_ChainParams_String(t *testing.T) {
	if MainNetParams.String() != "mainnet" {
		t.Errorf("MainNetParams.String() = %q, want mainnet", MainNetParams.String())
	}
	if TestNetParams.String() != "testnet" {
		t.Errorf("TestNetParams.String() = %q, want testnet", TestNetParams.String())
	}
}
