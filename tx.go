package gobch

import (
	"bytes"
	"io"
)

type Tx struct {
	Version  uint32
	TxIns    TxInList
	TxOuts   TxOutList
	LockTime uint32

	// Fee is only meaningful once the transaction has been validated
	// against the UTXO set (spec.md §3); it is the caller's
	// responsibility to set it, this package never does.
	Fee int64
}

func (tx *Tx) Txid() Hash {
	buf := new(bytes.Buffer)
	BinWrite(tx, buf)
	return ShaSha256(buf.Bytes())
}

func (tx *Tx) IsCoinbase() bool {
	return len(tx.TxIns) == 1 && tx.TxIns[0].PrevOut.IsCoinbase()
}

func (tx *Tx) Size() int {
	version, locktime := 4, 4
	return version + tx.TxIns.Size() + tx.TxOuts.Size() + locktime
}

func (tx *Tx) BinRead(r io.Reader) (err error) {
	if err = BinRead(&tx.Version, r); err != nil {
		return err
	}
	if err = BinRead(&tx.TxIns, r); err != nil {
		return err
	}
	if err = BinRead(&tx.TxOuts, r); err != nil {
		return err
	}
	return BinRead(&tx.LockTime, r)
}

func (tx *Tx) BinWrite(w io.Writer) (err error) {
	if err = BinWrite(tx.Version, w); err != nil {
		return err
	}
	if err = BinWrite(&tx.TxIns, w); err != nil {
		return err
	}
	if err = BinWrite(&tx.TxOuts, w); err != nil {
		return err
	}
	return BinWrite(tx.LockTime, w)
}

type TxList []*Tx

func (tl *TxList) BinRead(r io.Reader) error {
	return readList(r, func(r io.Reader) error {
		var tx Tx
		if err := BinRead(&tx, r); err != nil {
			return err
		}
		*tl = append(*tl, &tx)
		return nil
	})
}

func (tl *TxList) BinWrite(w io.Writer) error {
	return writeList(w, len(*tl), func(w io.Writer, i int) error {
		return BinWrite((*tl)[i], w)
	})
}

func (tl *TxList) Size() int {
	result := VarIntSize(uint64(len(*tl)))
	for _, t := range *tl {
		result += t.Size()
	}
	return result
}
