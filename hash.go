package gobch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"golang.org/x/crypto/ripemd160"
)

// Hash is a 32-byte double-SHA256 digest, stored internally in the same
// little-endian byte order the wire protocol uses. String() reverses it
// to the big-endian form users expect to see for block/tx ids.
//
// We're sticking with value rather than pointer for now, we think it's
// faster and safer.
type Hash [32]byte

func (h Hash) String() string {
	for i := 0; i < 16; i++ {
		h[i], h[31-i] = h[31-i], h[i]
	}
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// Scan satisfies sql.Scanner so stores that keep hashes as raw bytes can
// populate a Hash directly.
func (h *Hash) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("gobch: unexpected type for Hash.Scan: %T", value)
	}
	copy(h[:], b)
	return nil
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ShaSha256 is the double-SHA256 used for txids and block hashes.
//
// NB: we interpret this as little-endian. Traditionally Bitcoin
// transaction ids are printed in big-endian, i.e. reverse of this.
func ShaSha256(b []byte) Hash {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Hash160 is a 20-byte RIPEMD160(SHA256(x)) digest, used for P2PKH/P2SH
// addressing.
type Hash160 [20]byte

func (h Hash160) String() string {
	return hex.EncodeToString(h[:])
}

func CalcHash160(b []byte) Hash160 {
	sum := sha256.Sum256(b)
	ripemd := ripemd160.New()
	ripemd.Write(sum[:])
	var out Hash160
	copy(out[:], ripemd.Sum(nil))
	return out
}

func HashFromBytes(from []byte) Hash {
	var result Hash
	copy(result[:], from)
	return result
}

func HashFromString(from string) (Hash, error) {
	if len(from) != 32*2 {
		return Hash{}, fmt.Errorf("gobch: incorrect hash string length")
	}
	b, err := hex.DecodeString(from)
	if err != nil {
		return Hash{}, err
	}
	for i := 0; i < 16; i++ {
		b[i], b[31-i] = b[31-i], b[i]
	}
	return HashFromBytes(b), nil
}

// compact-bits (a.k.a. "nBits") decode/encode: a 32-bit encoding of a
// non-negative 256-bit target, of the form 0xEEMMMMMM where EE is an
// exponent byte count and MMMMMM is a 3-byte mantissa.
//
// The encoder here preserves a historical quirk of the reference
// implementation: when the mantissa's top bit would be set (and so could
// be misread as a sign bit), it shifts mantissa and exponent by one byte
// rather than padding with a zero byte the way a "correct" big-integer
// encoder would. Existing block headers were mined against this exact
// behavior, so we match it byte for byte rather than fix it.
func BitsToTarget(bits uint32) *big.Int {
	exp := bits >> 24
	mantissa := int64(bits & 0x007fffff)
	target := big.NewInt(mantissa)
	if exp <= 3 {
		target.Rsh(target, uint(8*(3-exp)))
	} else {
		target.Lsh(target, uint(8*(exp-3)))
	}
	return target
}

// TargetToBits is the inverse of BitsToTarget, normalizing the result the
// way the reference difficulty encoder does.
func TargetToBits(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}
	b := target.Bytes()
	size := uint32(len(b))
	var mantissa uint32
	if size <= 3 {
		for _, v := range b {
			mantissa = mantissa<<8 | uint32(v)
		}
		mantissa <<= 8 * (3 - size)
	} else {
		mantissa = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}
	// If the sign bit (0x00800000) would be set, shift right one byte and
	// bump the exponent, preserving the historical off-by-one encoding.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		size++
	}
	return mantissa | size<<24
}

// maxUint256 is 2^256 - 1. WorkFromBits does not use it; it divides
// 2^256.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// WorkFromBits computes 2^256 / (target(bits)+1), the per-block
// contribution to accumulated chain work.
func WorkFromBits(bits uint32) *big.Int {
	target := BitsToTarget(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denom := new(big.Int).Add(target, big.NewInt(1))
	work := new(big.Int).Lsh(big.NewInt(1), 256)
	return work.Div(work, denom)
}

// HashToBig interprets a Hash's internal little-endian bytes as the
// 256-bit big-endian integer used for proof-of-work comparisons.
func HashToBig(h Hash) *big.Int {
	var rev [32]byte
	for i := 0; i < 32; i++ {
		rev[i] = h[31-i]
	}
	return new(big.Int).SetBytes(rev[:])
}
