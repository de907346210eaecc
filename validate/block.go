package validate

import (
	"fmt"

	"github.com/gobch/gobch/chainparams"
	"github.com/gobch/gobch/chainstats"
	"github.com/gobch/gobch"
)

// ProcessBlock implements spec.md §4.D's block-level checks plus the
// driver for §4.C's per-transaction processing: merkle root, proof of
// work, target bits must match what the DAA computes for this height,
// then every transaction in order (coinbase first). Once every
// transaction has been processed, the coinbase's total output is
// bounded against the height's subsidy plus the fees collected from
// every other transaction in the block, spec.md §8 invariant 5. On any
// failure the caller must discard the tentative UTXO changes made so
// far for this block via set.Revert for every txid already processed.
func ProcessBlock(set UTXOSet, block *gobch.Block, height int, stats *chainstats.Stats, forks *chainstats.Forks, targetParams chainstats.TargetParams, params chainparams.ChainParams) error {
	hash := block.Hash()

	if block.MerkleRoot() != block.BlockHeader.MerkleRoot {
		return consensusErr(hash, "merkle root mismatch")
	}
	if !block.HasProofOfWork() {
		return &Error{Kind: gobch.ErrProofOfWork, Hash: &hash, Err: fmt.Errorf("block hash exceeds its claimed target")}
	}

	wantBits := chainstats.NextTargetBits(stats, forks, targetParams, height, block.Time)
	if block.Bits != wantBits {
		return consensusErr(hash, "target_bits %08x does not match computed %08x", block.Bits, wantBits)
	}

	if len(block.Txs) == 0 || !block.Txs[0].IsCoinbase() {
		return consensusErr(hash, "block has no coinbase transaction")
	}

	var coinbaseOutputSum, feeSum int64
	for i, tx := range block.Txs {
		if i > 0 && tx.IsCoinbase() {
			return consensusErr(hash, "transaction %d is a second coinbase", i)
		}
		value, err := ProcessTx(set, tx, height, i == 0, forks)
		if err != nil {
			return err
		}
		if i == 0 {
			coinbaseOutputSum = value
		} else {
			feeSum += value
		}
	}

	if limit := params.CoinbaseSubsidy(height) + feeSum; coinbaseOutputSum > limit {
		return consensusErr(hash, "coinbase pays out %d, exceeds subsidy+fees %d", coinbaseOutputSum, limit)
	}
	return nil
}

