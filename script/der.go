package script

// isStrictDER enforces BIP66 strict DER encoding: used once the chain's
// enabled script version has activated it, spec.md §4.B / §8 invariant.
// sig is the DER encoding alone, without the trailing hash-type byte.
func isStrictDER(sig []byte) bool {
	// minimum: 0x30 len 0x02 lenR R 0x02 lenS S
	if len(sig) < 8 || len(sig) > 72 {
		return false
	}
	if sig[0] != 0x30 {
		return false
	}
	if int(sig[1]) != len(sig)-2 {
		return false
	}
	lenR := int(sig[3])
	if 5+lenR >= len(sig) {
		return false
	}
	lenS := int(sig[5+lenR])
	if lenR+lenS+6 != len(sig) {
		return false
	}
	if sig[2] != 0x02 {
		return false
	}
	if lenR == 0 {
		return false
	}
	if sig[4]&0x80 != 0 {
		return false
	}
	if lenR > 1 && sig[4] == 0x00 && sig[5]&0x80 == 0 {
		return false
	}
	if sig[lenR+4] != 0x02 {
		return false
	}
	if lenS == 0 {
		return false
	}
	if sig[lenR+6]&0x80 != 0 {
		return false
	}
	if lenS > 1 && sig[lenR+6] == 0x00 && sig[lenR+7]&0x80 == 0 {
		return false
	}
	return true
}

// normalizeDER is a no-op placeholder for the pre-BIP66 era, where
// malformed-but-OpenSSL-parseable DER signatures were historically
// accepted as-is; strict checking takes over once activated.
func normalizeDER(sig []byte) []byte {
	return sig
}
