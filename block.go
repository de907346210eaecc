package gobch

import (
	"io"
)

type Block struct {
	*BlockHeader
	Txs TxList
}

func (b *Block) Size() int {
	return HeaderSize + b.Txs.Size()
}

func (b *Block) BinRead(r io.Reader) error {
	var bh BlockHeader
	if err := BinRead(&bh, r); err != nil {
		return err
	}
	b.BlockHeader = &bh
	return BinRead(&b.Txs, r)
}

func (b *Block) BinWrite(w io.Writer) error {
	if err := BinWrite(b.BlockHeader, w); err != nil {
		return err
	}
	return BinWrite(&b.Txs, w)
}

// MerkleRoot computes the merkle root of the block's transactions by
// repeatedly double-SHA256-pairing hashes, duplicating the last element
// of an odd-length level (spec.md §4.D, §8 invariant 3).
func (b *Block) MerkleRoot() Hash {
	txids := make([]Hash, len(b.Txs))
	for i, tx := range b.Txs {
		txids[i] = tx.Txid()
	}
	return MerkleRootOf(txids)
}

func MerkleRootOf(hashes []Hash) Hash {
	if len(hashes) == 0 {
		return Hash{}
	}
	level := hashes
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := range next {
			buf := make([]byte, 64)
			copy(buf[:32], level[2*i][:])
			copy(buf[32:], level[2*i+1][:])
			next[i] = ShaSha256(buf)
		}
		level = next
	}
	return level[0]
}
