package script

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

func realDERSignature(t *testing.T) []byte {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	hash := sha256.Sum256([]byte("gobch strict DER test"))
	sig := ecdsa.Sign(priv, hash[:])
	return sig.Serialize()
}

func Test_isStrictDER_acceptsRealSignature(t *testing.T) {
	sig := realDERSignature(t)
	if !isStrictDER(sig) {
		t.Fatalf("isStrictDER rejected a real btcec-generated signature: %x", sig)
	}
}

func Test_isStrictDER_rejectsTooShort(t *testing.T) {
	if isStrictDER([]byte{0x30, 0x02, 0x02, 0x00}) {
		t.Error("isStrictDER accepted a too-short signature")
	}
}

func Test_isStrictDER_rejectsWrongSequenceTag(t *testing.T) {
	sig := realDERSignature(t)
	sig[0] = 0x31
	if isStrictDER(sig) {
		t.Error("isStrictDER accepted a signature with a bad outer tag")
	}
}

func Test_isStrictDER_rejectsBadLength(t *testing.T) {
	sig := realDERSignature(t)
	sig[1]++
	if isStrictDER(sig) {
		t.Error("isStrictDER accepted a signature with an inconsistent length byte")
	}
}

func Test_isStrictDER_rejectsNegativeR(t *testing.T) {
	sig := realDERSignature(t)
	// Force R's high bit on without adjusting lengths: mirrors a
	// non-minimal negative-looking R, which strict DER must reject.
	sig[4] |= 0x80
	if isStrictDER(sig) {
		t.Error("isStrictDER accepted a signature with R's high bit set")
	}
}
