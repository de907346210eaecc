package script

import (
	"bytes"
	"testing"
)

func p2pkhScript(h160 [20]byte) Script {
	s := Script{byte(OP_DUP), byte(OP_HASH160), 20}
	s = append(s, h160[:]...)
	s = append(s, byte(OP_EQUALVERIFY), byte(OP_CHECKSIG))
	return s
}

func p2shScript(h160 [20]byte) Script {
	s := Script{byte(OP_HASH160), 20}
	s = append(s, h160[:]...)
	s = append(s, byte(OP_EQUAL))
	return s
}

func Test_ParseOutputScript_p2pkh(t *testing.T) {
	var h [20]byte
	h[0], h[19] = 0xAA, 0xBB
	got := ParseOutputScript(p2pkhScript(h))
	if got.Class != P2PKH || got.Hash160 != h {
		t.Fatalf("ParseOutputScript(p2pkh) = %+v", got)
	}
}

func Test_ParseOutputScript_p2sh(t *testing.T) {
	var h [20]byte
	h[0], h[19] = 0x01, 0x02
	got := ParseOutputScript(p2shScript(h))
	if got.Class != P2SH || got.Hash160 != h {
		t.Fatalf("ParseOutputScript(p2sh) = %+v", got)
	}
}

func Test_ParseOutputScript_p2pkCompressed(t *testing.T) {
	pk := make([]byte, 33)
	pk[0] = 0x02
	s := Script{33}
	s = append(s, pk...)
	s = append(s, byte(OP_CHECKSIG))
	got := ParseOutputScript(s)
	if got.Class != P2PK || !bytes.Equal(got.PubKey, pk) {
		t.Fatalf("ParseOutputScript(p2pk) = %+v", got)
	}
}

func Test_ParseOutputScript_nullData(t *testing.T) {
	s := Script{byte(OP_RETURN), 0x04, 'd', 'e', 'a', 'd'}
	got := ParseOutputScript(s)
	if got.Class != NullData {
		t.Fatalf("ParseOutputScript(nulldata) = %+v, want NullData", got)
	}
}

func Test_ParseOutputScript_multisig(t *testing.T) {
	pk1 := bytes.Repeat([]byte{0x01}, 33)
	pk2 := bytes.Repeat([]byte{0x02}, 33)
	s := Script{byte(OP_2), 33}
	s = append(s, pk1...)
	s = append(s, 33)
	s = append(s, pk2...)
	s = append(s, byte(OP_2), byte(OP_CHECKMULTISIG))

	got := ParseOutputScript(s)
	if got.Class != MultiSig || got.M != 2 || got.N != 2 || len(got.PubKeys) != 2 {
		t.Fatalf("ParseOutputScript(multisig) = %+v", got)
	}
}

func Test_ParseOutputScript_nonStandard(t *testing.T) {
	got := ParseOutputScript(Script{byte(OP_NOP)})
	if got.Class != NonStandard {
		t.Fatalf("ParseOutputScript(nop) = %+v, want NonStandard", got)
	}
}

func Test_IsPushOnly(t *testing.T) {
	cases := []struct {
		s    Script
		want bool
	}{
		{Script{0x01, 0xAB}, true},
		{Script{byte(OP_1), byte(OP_16)}, true},
		{Script{byte(OP_1NEGATE)}, true},
		{Script{byte(OP_0)}, true},
		{Script{byte(OP_DUP)}, false},
		{Script{0x01, 0xAB, byte(OP_CHECKSIG)}, false},
	}
	for _, tc := range cases {
		if got := IsPushOnly(tc.s); got != tc.want {
			t.Errorf("IsPushOnly(%v) = %v, want %v", tc.s, got, tc.want)
		}
	}
}

func Test_PushedData_extractsInOrder(t *testing.T) {
	s := Script{0x02, 0xAA, 0xBB, 0x01, 0xCC}
	data, err := PushedData(s)
	if err != nil {
		t.Fatalf("PushedData: %v", err)
	}
	if len(data) != 2 || !bytes.Equal(data[0], []byte{0xAA, 0xBB}) || !bytes.Equal(data[1], []byte{0xCC}) {
		t.Fatalf("PushedData = %v", data)
	}
}

func Test_PushedData_rejectsNonPushOnly(t *testing.T) {
	s := Script{0x01, 0xAA, byte(OP_CHECKSIG)}
	if _, err := PushedData(s); err == nil {
		t.Fatal("PushedData did not reject a non-push-only script")
	}
}

func Test_PushedData_opN_encodesMinimalByte(t *testing.T) {
	s := Script{byte(OP_3)}
	data, err := PushedData(s)
	if err != nil {
		t.Fatalf("PushedData: %v", err)
	}
	if len(data) != 1 || !bytes.Equal(data[0], []byte{3}) {
		t.Fatalf("PushedData(OP_3) = %v, want [[3]]", data)
	}
}
