// Package chainparams carries the network-specific values spec.md §9
// calls for replacing the reference implementation's process-wide
// Chain::sInstance/Network singleton: an explicit value threaded into
// chain.New at construction time.
package chainparams

import (
	"bytes"
	"encoding/hex"

	"github.com/gobch/gobch"
)

// Network selects which of the hard-coded parameter sets a chain runs
// against.
type Network int

const (
	MainNet Network = iota
	TestNet
)

type ChainParams struct {
	Network Network
	Magic   uint32

	// Genesis is the network's genesis block; it must round-trip to the
	// exact raw bytes of spec.md §8 scenario 1/2.
	Genesis *gobch.Block

	// MaxTargetBits is the compact-bits form of the easiest allowed
	// target ("powLimit").
	MaxTargetBits uint32

	// CashActivationHeight is the mainnet/testnet height at which the
	// August-2017 hard fork (FORKID-mandatory sighashes, UAHF) activated.
	CashActivationHeight int

	// DAASwitchTime is the median-past-time threshold (spec.md §4.H
	// step 2) after which the November-2017 144-block DAA replaces the
	// EDA, once cash is active.
	DAASwitchTime uint32

	// BIP34Height/BIP65Height/BIP66Height are height-gated activations;
	// chainstats.Forks activates BIP68/112/113 at BIP65Height as well.
	BIP34Height int
	BIP65Height int
	BIP66Height int

	// TestNetMinDifficulty enables the 20-minute-since-last-block
	// exception to 0x1d00ffff noted in spec.md §4.H.
	TestNetMinDifficulty bool

	// SubsidyHalvingInterval is the height interval (210,000 on both
	// networks) at which the coinbase subsidy halves.
	SubsidyHalvingInterval int
}

const genesisCoinbaseHex = "01000000010000000000000000000000000000000000000000000000000000" +
	"000000000000ffffffff4d04ffff001d0104455468652054696d65732030332f4a616e2f" +
	"32303039204368616e63656c6c6f72206f6e206272696e6b206f66207365636f6e6420" +
	"6261696c6f757420666f722062616e6b73ffffffff0100f2052a0100000043410467" +
	"8afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3" +
	"f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf11d5fac00000000"

func mustGenesisCoinbase() *gobch.Tx {
	raw, err := hex.DecodeString(genesisCoinbaseHex)
	if err != nil {
		panic(err)
	}
	var tx gobch.Tx
	if err := gobch.BinRead(&tx, bytes.NewReader(raw)); err != nil {
		panic(err)
	}
	return &tx
}

func buildGenesis(time_, bits, nonce uint32) *gobch.Block {
	cb := mustGenesisCoinbase()
	bh := &gobch.BlockHeader{
		Version: 1,
		Time:    time_,
		Bits:    bits,
		Nonce:   nonce,
	}
	bh.MerkleRoot = cb.Txid()
	return &gobch.Block{
		BlockHeader: bh,
		Txs:         gobch.TxList{cb},
	}
}

const (
	MainNetMagic = 0xd9b4bef9
	TestNetMagic = 0x0709110b

	maxTargetBitsMainNet = 0x1d00ffff
	maxTargetBitsTestNet = 0x1d00ffff
)

// MainNetParams are the Bitcoin Cash mainnet parameters.
var MainNetParams = ChainParams{
	Network:                MainNet,
	Magic:                  MainNetMagic,
	Genesis:                buildGenesis(1231006505, maxTargetBitsMainNet, 2083236893),
	MaxTargetBits:          maxTargetBitsMainNet,
	CashActivationHeight:   478559,
	DAASwitchTime:          1510600000,
	BIP34Height:            227931,
	BIP65Height:            388381,
	BIP66Height:            363725,
	TestNetMinDifficulty:   false,
	SubsidyHalvingInterval: 210000,
}

// TestNetParams are the Bitcoin Cash testnet3 parameters.
var TestNetParams = ChainParams{
	Network:                TestNet,
	Magic:                  TestNetMagic,
	Genesis:                buildGenesis(1296688602, maxTargetBitsTestNet, 414098458),
	MaxTargetBits:          maxTargetBitsTestNet,
	CashActivationHeight:   1155876,
	DAASwitchTime:          1510600000,
	BIP34Height:            21111,
	BIP65Height:            581885,
	BIP66Height:            330776,
	TestNetMinDifficulty:   true,
	SubsidyHalvingInterval: 210000,
}

// CoinbaseSubsidy returns the block reward at height, halving every
// SubsidyHalvingInterval blocks down to zero, per spec.md §8 invariant 5.
func (p ChainParams) CoinbaseSubsidy(height int) int64 {
	const initialSubsidy int64 = 50 * 100000000
	halvings := height / p.SubsidyHalvingInterval
	if halvings >= 64 {
		return 0
	}
	return initialSubsidy >> uint(halvings)
}

// For convenience by network selector.
func (p ChainParams) String() string {
	if p.Network == TestNet {
		return "testnet"
	}
	return "mainnet"
}
