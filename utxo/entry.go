// Package utxo implements the sharded unspent-transaction-output set of
// spec.md §4.F: a content-addressed map from (txid, output index) to
// (amount, lock script, height), partitioned into 65,536 on-disk shards
// by a 16-bit bucket of the owning txid.
package utxo

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/gobch/gobch"
)

// Entry is one UTXO set entry, spec.md §3 "UTXO entry". Spent is a
// transient in-memory mark; it is never part of the on-disk encoding.
type Entry struct {
	Txid     gobch.Hash
	Index    uint32
	Amount   int64
	Script   []byte
	Height   int
	Coinbase bool
	Spent    bool
}

// key is the shard-local lookup key: txid followed by the varint-encoded
// output index, matching the teacher's DbOutPoint layout so the on-disk
// encoding stays recognizable against a Core-derived chainstate dump.
func (e *Entry) key() []byte {
	buf := new(bytes.Buffer)
	buf.Write(e.Txid[:])
	gobch.WriteVarInt(uint64(e.Index), buf)
	return buf.Bytes()
}

// encode serializes the entry's value half (the key is derived
// separately by key()), following Bitcoin Core's chainstate coin
// compression: a height/coinbase code, a compressed amount, and a
// compressed or raw script.
func (e *Entry) encode() []byte {
	buf := new(bytes.Buffer)
	code := uint64(e.Height) << 1
	if e.Coinbase {
		code |= 1
	}
	gobch.WriteVarInt(code, buf)
	gobch.WriteVarInt(compressAmount(uint64(e.Amount)), buf)

	if special, data := compressScript(e.Script); special >= 0 {
		gobch.WriteVarInt(uint64(special), buf)
		buf.Write(data)
	} else {
		gobch.WriteVarInt(uint64(len(e.Script)+6), buf)
		buf.Write(e.Script)
	}
	return buf.Bytes()
}

func decodeEntry(txid gobch.Hash, index uint32, value []byte) (*Entry, error) {
	r := bytes.NewReader(value)

	code, err := gobch.ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	amountCode, err := gobch.ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	vs, err := gobch.ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	const specialScripts = 6
	var script []byte
	if vs < specialScripts {
		size := specialSize(int(vs))
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		script = decompressScript(int(vs), buf)
	} else {
		buf := make([]byte, vs-specialScripts)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		script = buf
	}

	return &Entry{
		Txid:     txid,
		Index:    index,
		Amount:   int64(decompressAmount(amountCode)),
		Script:   script,
		Height:   int(code >> 1),
		Coinbase: code&1 != 0,
	}, nil
}

// compressAmount/decompressAmount implement Bitcoin Core's
// chainstate amount compression (src/compressor.cpp), which exploits
// the heavy trailing-zero bias of satoshi amounts.
func compressAmount(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	e := uint64(0)
	for n%10 == 0 && e < 9 {
		n /= 10
		e++
	}
	if e < 9 {
		d := n % 10
		n /= 10
		return 1 + (n*9+d-1)*10 + e
	}
	return 1 + (n-1)*10 + 9
}

func decompressAmount(x uint64) uint64 {
	if x == 0 {
		return 0
	}
	x--
	e := x % 10
	x /= 10
	var n uint64
	if e < 9 {
		d := (x % 9) + 1
		x /= 9
		n = x*10 + d
	} else {
		n = x + 1
	}
	for e != 0 {
		n *= 10
		e--
	}
	return n
}

// compressScript recognizes the four standard script shapes (six
// special codes) Core's
// coin compressor special-cases; special is -1 when the script must be
// stored raw. The inverse of decompressScript below.
func compressScript(s []byte) (special int, data []byte) {
	if len(s) == 25 && s[0] == 0x76 && s[1] == 0xa9 && s[2] == 20 &&
		s[23] == 0x88 && s[24] == 0xac {
		return 0x00, s[3:23]
	}
	if len(s) == 23 && s[0] == 0xa9 && s[1] == 20 && s[22] == 0x87 {
		return 0x01, s[2:22]
	}
	if len(s) == 35 && s[0] == 33 && (s[1] == 0x02 || s[1] == 0x03) && s[34] == 0xac {
		return int(s[1]), s[2:34]
	}
	if len(s) == 67 && s[0] == 65 && s[66] == 0xac {
		pub, err := btcec.ParsePubKey(s[1:66])
		if err == nil {
			compressed := pub.SerializeCompressed()
			special := int(compressed[0]) + 2 // 0x02/0x03 -> 4/5
			return special, compressed[1:]
		}
	}
	return -1, nil
}

func specialSize(size int) int {
	if size == 0 || size == 1 {
		return 20
	}
	if size >= 2 && size <= 5 {
		return 32
	}
	return 0
}

func decompressScript(size int, in []byte) []byte {
	switch size {
	case 0x00:
		script := make([]byte, 25)
		script[0], script[1], script[2] = 0x76, 0xa9, 20
		copy(script[3:], in)
		script[23], script[24] = 0x88, 0xac
		return script
	case 0x01:
		script := make([]byte, 23)
		script[0], script[1] = 0xa9, 20
		copy(script[2:], in)
		script[22] = 0x87
		return script
	case 0x02, 0x03:
		script := make([]byte, 35)
		script[0], script[1] = 33, byte(size)
		copy(script[2:], in)
		script[34] = 0xac
		return script
	case 0x04, 0x05:
		cKey := make([]byte, 33)
		cKey[0] = byte(size) - 2
		copy(cKey[1:], in)
		key, err := btcec.ParsePubKey(cKey)
		if err != nil {
			return nil
		}
		script := make([]byte, 67)
		script[0] = 65
		copy(script[1:], key.SerializeUncompressed())
		script[66] = 0xac
		return script
	}
	return nil
}

// shard derives the 16-bit bucket a txid is stored under, spec.md §4.F.
func shard(txid gobch.Hash) uint16 {
	return uint16(txid[0]) | uint16(txid[1])<<8
}
