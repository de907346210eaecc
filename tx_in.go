package gobch

import "io"

// CoinbaseIndex is the outpoint index that marks a coinbase input,
// per spec.md §3.
const CoinbaseIndex = 0xFFFFFFFF

// Sequence relative-locktime bit layout, per spec.md §3.
const (
	SequenceLockTimeDisableFlag    = 1 << 31
	SequenceLockTimeTypeFlag       = 1 << 22
	SequenceLockTimeMask    uint32 = 0x0000ffff
)

type OutPoint struct {
	Hash Hash
	N    uint32
}

func (o OutPoint) IsCoinbase() bool {
	return o.N == CoinbaseIndex && o.Hash.IsZero()
}

type TxIn struct {
	PrevOut   OutPoint
	ScriptSig []byte
	Sequence  uint32
}

func (tin *TxIn) Size() int {
	outpoint := 32 + 4
	scriptsig := VarIntSize(uint64(len(tin.ScriptSig))) + len(tin.ScriptSig)
	sequence := 4
	return outpoint + scriptsig + sequence
}

func (tin *TxIn) BinRead(r io.Reader) (err error) {
	if err = BinRead(&tin.PrevOut, r); err != nil {
		return err
	}
	if tin.ScriptSig, err = readString(r); err != nil {
		return err
	}
	return BinRead(&tin.Sequence, r)
}

func (tin *TxIn) BinWrite(w io.Writer) (err error) {
	if err = BinWrite(tin.PrevOut, w); err != nil {
		return err
	}
	if err = writeString(tin.ScriptSig, w); err != nil {
		return err
	}
	return BinWrite(tin.Sequence, w)
}

type TxInList []*TxIn

func (tins *TxInList) BinRead(r io.Reader) error {
	return readList(r, func(r io.Reader) error {
		var txin TxIn
		if err := BinRead(&txin, r); err != nil {
			return err
		}
		*tins = append(*tins, &txin)
		return nil
	})
}

func (tins *TxInList) BinWrite(w io.Writer) error {
	return writeList(w, len(*tins), func(w io.Writer, i int) error {
		return BinWrite((*tins)[i], w)
	})
}

func (tins *TxInList) Size() int {
	result := VarIntSize(uint64(len(*tins)))
	for _, t := range *tins {
		result += t.Size()
	}
	return result
}
