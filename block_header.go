package gobch

import (
	"bytes"
	"io"
	"math/big"
)

// HeaderSize is the fixed 80-byte wire size of a BlockHeader, per
// spec.md §6.
const HeaderSize = 80

type BlockHeader struct {
	Version     uint32
	PrevHash    Hash
	MerkleRoot  Hash
	Time        uint32
	Bits        uint32
	Nonce       uint32
}

func (bh *BlockHeader) BinRead(r io.Reader) error {
	if err := BinRead(&bh.Version, r); err != nil {
		return err
	}
	if err := BinRead(&bh.PrevHash, r); err != nil {
		return err
	}
	if err := BinRead(&bh.MerkleRoot, r); err != nil {
		return err
	}
	if err := BinRead(&bh.Time, r); err != nil {
		return err
	}
	if err := BinRead(&bh.Bits, r); err != nil {
		return err
	}
	return BinRead(&bh.Nonce, r)
}

func (bh *BlockHeader) BinWrite(w io.Writer) error {
	if err := BinWrite(bh.Version, w); err != nil {
		return err
	}
	if err := BinWrite(bh.PrevHash, w); err != nil {
		return err
	}
	if err := BinWrite(bh.MerkleRoot, w); err != nil {
		return err
	}
	if err := BinWrite(bh.Time, w); err != nil {
		return err
	}
	if err := BinWrite(bh.Bits, w); err != nil {
		return err
	}
	return BinWrite(bh.Nonce, w)
}

// Hash is the block hash: double-SHA256 of the 80-byte header.
func (bh *BlockHeader) Hash() Hash {
	buf := new(bytes.Buffer)
	BinWrite(bh, buf)
	return ShaSha256(buf.Bytes())
}

// Target decodes Bits into its 256-bit target form.
func (bh *BlockHeader) Target() *big.Int {
	return BitsToTarget(bh.Bits)
}

// HasProofOfWork reports whether the header's hash is at or below its
// claimed target, per spec.md §4.D.
func (bh *BlockHeader) HasProofOfWork() bool {
	return HashToBig(bh.Hash()).Cmp(bh.Target()) <= 0
}
