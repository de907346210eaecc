package utxo

import (
	"testing"

	"github.com/gobch/gobch"
)

func Test_compressAmount_roundtrip(t *testing.T) {
	cases := []uint64{0, 1, 10, 100, 5000000000, 123456789, 2100000000000000, 50 * 100000000}
	for _, n := range cases {
		c := compressAmount(n)
		got := decompressAmount(c)
		if got != n {
			t.Errorf("compressAmount(%d) -> %d -> decompressAmount = %d, want %d", n, c, got, n)
		}
	}
}

func Test_compressScript_p2pkh_roundtrip(t *testing.T) {
	hash160 := make([]byte, 20)
	for i := range hash160 {
		hash160[i] = byte(i)
	}
	script := append([]byte{0x76, 0xa9, 20}, hash160...)
	script = append(script, 0x88, 0xac)

	special, data := compressScript(script)
	if special != 0x00 {
		t.Fatalf("special = %d, want 0", special)
	}
	got := decompressScript(special, data)
	if string(got) != string(script) {
		t.Errorf("round-trip mismatch:\n got  %x\n want %x", got, script)
	}
}

func Test_compressScript_p2sh_roundtrip(t *testing.T) {
	hash160 := make([]byte, 20)
	for i := range hash160 {
		hash160[i] = byte(i + 1)
	}
	script := append([]byte{0xa9, 20}, hash160...)
	script = append(script, 0x87)

	special, data := compressScript(script)
	if special != 0x01 {
		t.Fatalf("special = %d, want 1", special)
	}
	got := decompressScript(special, data)
	if string(got) != string(script) {
		t.Errorf("round-trip mismatch:\n got  %x\n want %x", got, script)
	}
}

func Test_compressScript_nonstandard_storesRaw(t *testing.T) {
	script := []byte{0x6a, 0x04, 'd', 'a', 't', 'a'} // OP_RETURN push
	special, _ := compressScript(script)
	if special != -1 {
		t.Errorf("special = %d, want -1 for non-standard script", special)
	}
}

func Test_shard_usesLowTwoBytes(t *testing.T) {
	var txid gobch.Hash
	txid[0] = 0x34
	txid[1] = 0x12
	got := shard(txid)
	if got != 0x1234 {
		t.Errorf("shard() = %04x, want 1234", got)
	}
}
