package script

import "testing"

func Test_ScriptNum_roundtrip(t *testing.T) {
	cases := []ScriptNum{0, 1, -1, 127, 128, -128, 255, 256, -32768, 1 << 20, -(1 << 20)}
	for _, n := range cases {
		b := n.Bytes()
		got, err := ReadScriptNum(b, true, 5)
		if err != nil {
			t.Errorf("ReadScriptNum(%d.Bytes()) error: %v", n, err)
			continue
		}
		if got != n {
			t.Errorf("ScriptNum(%d).Bytes() -> ReadScriptNum = %d", n, got)
		}
	}
}

func Test_ReadScriptNum_rejectsOversize(t *testing.T) {
	_, err := ReadScriptNum([]byte{1, 2, 3, 4, 5}, true, 4)
	if err == nil {
		t.Error("ReadScriptNum did not reject a 5-byte number with maxSize 4")
	}
}

func Test_ReadScriptNum_rejectsNonMinimal(t *testing.T) {
	// 0x00 0x00 is a non-minimally-encoded zero (trailing zero byte with
	// no sign bit set on the byte before it).
	_, err := ReadScriptNum([]byte{0x00, 0x00}, true, 5)
	if err == nil {
		t.Error("ReadScriptNum did not reject a non-minimal encoding")
	}
}

func Test_ScriptNum_Bool(t *testing.T) {
	if ScriptNum(0).Bool() {
		t.Error("ScriptNum(0).Bool() = true")
	}
	if !ScriptNum(1).Bool() {
		t.Error("ScriptNum(1).Bool() = false")
	}
}
