package chainstats

import (
	"bytes"
	"io"
	"os"

	"github.com/gobch/gobch"
)

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Save persists fork state so startup re-derivation only has to replay
// versions since the last save, spec.md §4.G "forks.save/load persists
// state so startup re-derivation is bounded".
func (f *Forks) Save(path string) error {
	buf := new(bytes.Buffer)
	flags := []bool{
		f.BIP34Active, f.BIP34Require, f.BIP66Active, f.BIP66Require,
		f.BIP65Active, f.BIP112Active, f.BIP68Active, f.BIP113Active,
		f.CashActive, f.DAAActive,
	}
	for _, v := range flags {
		buf.WriteByte(boolByte(v))
	}
	if err := gobch.WriteVarInt(uint64(len(f.versions)), buf); err != nil {
		return err
	}
	for _, v := range f.versions {
		if err := gobch.BinWrite(v, buf); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func (f *Forks) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r := bytes.NewReader(data)

	flags := make([]byte, 10)
	if _, err := io.ReadFull(r, flags); err != nil {
		return err
	}
	f.BIP34Active, f.BIP34Require = flags[0] != 0, flags[1] != 0
	f.BIP66Active, f.BIP66Require = flags[2] != 0, flags[3] != 0
	f.BIP65Active = flags[4] != 0
	f.BIP112Active, f.BIP68Active, f.BIP113Active = flags[5] != 0, flags[6] != 0, flags[7] != 0
	f.CashActive, f.DAAActive = flags[8] != 0, flags[9] != 0

	n, err := gobch.ReadVarInt(r)
	if err != nil {
		return err
	}
	f.versions = make([]uint32, 0, n)
	for i := uint64(0); i < n; i++ {
		var v uint32
		if err := gobch.BinRead(&v, r); err != nil {
			return err
		}
		f.versions = append(f.versions, v)
	}
	return nil
}
