package script

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/gobch/gobch"
	"golang.org/x/crypto/ripemd160"
)

// Result is the outcome of running a script, spec.md §4.B.
type Result int

const (
	Invalid Result = iota
	ValidNotVerified
	ValidVerified
)

// Flags gates the version-dependent rules of spec.md §4.B.
type Flags struct {
	// ScriptEnabledVersion selects which soft forks are live: strict DER
	// at >= 3, CHECKLOCKTIMEVERIFY at >= 4.
	ScriptEnabledVersion int
	// CashActive selects the FORKID-mandatory sighash algorithm.
	CashActive bool
	// CSVActive mirrors BIP0112 == ACTIVE in chainstats.Forks.
	CSVActive bool
}

func (f Flags) strictDER() bool { return f.ScriptEnabledVersion >= 3 }
func (f Flags) cltvActive() bool { return f.ScriptEnabledVersion >= 4 }

type engine struct {
	flags        Flags
	tx           *gobch.Tx
	inputIndex   int
	outputAmount int64

	stack, altStack Stack
	verified        bool
	codeSeparator   int // offset into the currently-running script
}

// Execute runs one script against a fresh stack (unlock scripts, or a
// lock/redeem script when called through ExecutePair). It implements
// spec.md §4.B's execute().
func Execute(tx *gobch.Tx, inputIndex int, outputAmount int64, s Script, flags Flags) (Result, error) {
	e := &engine{flags: flags, tx: tx, inputIndex: inputIndex, outputAmount: outputAmount}
	if err := e.run(s); err != nil {
		return Invalid, err
	}
	top, err := e.stack.Peek(0)
	if err != nil || !Truthy(top) {
		return Invalid, nil
	}
	if e.verified {
		return ValidVerified, nil
	}
	return ValidNotVerified, nil
}

// ExecutePair implements spec.md §4.B's execute_pair: run unlock, then
// lock against the resulting stack; for P2SH-shaped lock scripts, pop
// the serialized redeem script and execute that too.
func ExecutePair(tx *gobch.Tx, inputIndex int, unlock, lock Script, outputAmount int64, flags Flags) (Result, error) {
	e := &engine{flags: flags, tx: tx, inputIndex: inputIndex, outputAmount: outputAmount}

	if err := e.run(unlock); err != nil {
		return Invalid, err
	}
	unlockStack := append(Stack{}, e.stack...)

	if err := e.run(lock); err != nil {
		return Invalid, err
	}
	top, err := e.stack.Peek(0)
	if err != nil || !Truthy(top) {
		return Invalid, nil
	}

	if isP2SH(lock) {
		if !IsPushOnly(unlock) {
			return Invalid, fmt.Errorf("script: P2SH unlock script must be push-only")
		}
		if len(unlockStack) == 0 {
			return Invalid, fmt.Errorf("script: P2SH unlock script pushed nothing")
		}
		redeem := Script(unlockStack[len(unlockStack)-1])
		e.stack = unlockStack[:len(unlockStack)-1]
		e.codeSeparator = 0
		if err := e.run(redeem); err != nil {
			return Invalid, err
		}
		top, err := e.stack.Peek(0)
		if err != nil || !Truthy(top) {
			return Invalid, nil
		}
	}

	if e.verified {
		return ValidVerified, nil
	}
	return ValidNotVerified, nil
}

type ifFrame struct {
	executing bool // true if this branch's statements should run
}

func (e *engine) run(s Script) error {
	e.codeSeparator = 0
	var ifStack []ifFrame
	pc := 0

	active := func() bool {
		for _, f := range ifStack {
			if !f.executing {
				return false
			}
		}
		return true
	}

	for pc < len(s) {
		op, next, err := nextOp(s, pc)
		if err != nil {
			return err
		}
		wasActive := active()

		switch op.Op {
		case OP_IF, OP_NOTIF:
			if len(ifStack) >= MaxIfDepth {
				return fmt.Errorf("script: if-stack overflow")
			}
			exec := false
			if wasActive {
				v, err := e.stack.Pop()
				if err != nil {
					return err
				}
				exec = Truthy(v)
				if op.Op == OP_NOTIF {
					exec = !exec
				}
			}
			ifStack = append(ifStack, ifFrame{executing: exec})
			pc = next
			continue
		case OP_ELSE:
			if len(ifStack) == 0 {
				return fmt.Errorf("script: ELSE without IF")
			}
			top := &ifStack[len(ifStack)-1]
			top.executing = !top.executing
			pc = next
			continue
		case OP_ENDIF:
			if len(ifStack) == 0 {
				return fmt.Errorf("script: ENDIF without IF")
			}
			ifStack = ifStack[:len(ifStack)-1]
			pc = next
			continue
		}

		if !wasActive {
			pc = next
			continue
		}

		if op.Data != nil {
			if err := e.stack.Push(op.Data); err != nil {
				return err
			}
			pc = next
			continue
		}

		if isDisabled(op.Op) {
			return fmt.Errorf("script: disabled opcode 0x%02x", op.Op)
		}
		if isReserved(op.Op) {
			return fmt.Errorf("script: reserved opcode 0x%02x executed", op.Op)
		}
		if err := e.execOp(op.Op, s, pc, next); err != nil {
			return err
		}
		pc = next
	}

	if len(ifStack) > 0 {
		return fmt.Errorf("script: unterminated IF")
	}
	return nil
}

func (e *engine) execOp(op Opcode, script Script, pc, next int) error {
	switch {
	case op == OP_0:
		return e.stack.Push(nil)
	case op == OP_1NEGATE:
		return e.push(ScriptNum(-1))
	case op >= OP_1 && op <= OP_16:
		return e.push(ScriptNum(int(op) - int(OP_1) + 1))
	case op == OP_NOP, op == OP_NOP1, op == OP_NOP4, op == OP_NOP5, op == OP_NOP6,
		op == OP_NOP7, op == OP_NOP8, op == OP_NOP9, op == OP_NOP10:
		return nil
	case op == OP_VERIFY:
		v, err := e.stack.Pop()
		if err != nil {
			return err
		}
		if !Truthy(v) {
			return fmt.Errorf("script: OP_VERIFY failed")
		}
		return nil
	case op == OP_RETURN:
		return fmt.Errorf("script: OP_RETURN")
	case op == OP_CODESEPARATOR:
		e.codeSeparator = next
		return nil
	case op == OP_TOALTSTACK:
		v, err := e.stack.Pop()
		if err != nil {
			return err
		}
		return e.altStack.Push(v)
	case op == OP_FROMALTSTACK:
		v, err := e.altStack.Pop()
		if err != nil {
			return err
		}
		return e.stack.Push(v)
	case op == OP_DROP:
		_, err := e.stack.Pop()
		return err
	case op == OP_2DROP:
		if _, err := e.stack.Pop(); err != nil {
			return err
		}
		_, err := e.stack.Pop()
		return err
	case op == OP_DUP:
		return e.dupN(1)
	case op == OP_2DUP:
		return e.dupN(2)
	case op == OP_3DUP:
		return e.dupN(3)
	case op == OP_OVER:
		v, err := e.stack.Peek(1)
		if err != nil {
			return err
		}
		return e.stack.Push(v)
	case op == OP_2OVER:
		a, err := e.stack.Peek(3)
		if err != nil {
			return err
		}
		b, err := e.stack.Peek(2)
		if err != nil {
			return err
		}
		if err := e.stack.Push(a); err != nil {
			return err
		}
		return e.stack.Push(b)
	case op == OP_NIP:
		v, err := e.stack.Pop()
		if err != nil {
			return err
		}
		if _, err := e.stack.Pop(); err != nil {
			return err
		}
		return e.stack.Push(v)
	case op == OP_SWAP:
		return e.swapN(0, 1)
	case op == OP_2SWAP:
		if err := e.swapN(0, 2); err != nil {
			return err
		}
		return e.swapN(1, 3)
	case op == OP_2ROT:
		return e.rot2()
	case op == OP_TUCK:
		v, err := e.stack.Pop()
		if err != nil {
			return err
		}
		u, err := e.stack.Pop()
		if err != nil {
			return err
		}
		if err := e.stack.Push(v); err != nil {
			return err
		}
		if err := e.stack.Push(u); err != nil {
			return err
		}
		return e.stack.Push(v)
	case op == OP_IFDUP:
		v, err := e.stack.Peek(0)
		if err != nil {
			return err
		}
		if Truthy(v) {
			return e.stack.Push(v)
		}
		return nil
	case op == OP_DEPTH:
		return e.push(ScriptNum(e.stack.Len()))
	case op == OP_SIZE:
		v, err := e.stack.Peek(0)
		if err != nil {
			return err
		}
		return e.push(ScriptNum(len(v)))
	case op == OP_PICK, op == OP_ROLL:
		n, err := e.popNum(MaxNumSize)
		if err != nil {
			return err
		}
		idx := int(n)
		if idx < 0 {
			return fmt.Errorf("script: negative PICK/ROLL index")
		}
		v, err := e.stack.Peek(idx)
		if err != nil {
			return err
		}
		if op == OP_ROLL {
			n := len(e.stack) - 1 - idx
			e.stack = append(e.stack[:n], e.stack[n+1:]...)
		}
		return e.stack.Push(v)
	case op == OP_ROT:
		return e.rot1()
	case op == OP_EQUAL, op == OP_EQUALVERIFY:
		a, err := e.stack.Pop()
		if err != nil {
			return err
		}
		b, err := e.stack.Pop()
		if err != nil {
			return err
		}
		eq := bytesEqual(a, b)
		if op == OP_EQUALVERIFY {
			if !eq {
				return fmt.Errorf("script: OP_EQUALVERIFY failed")
			}
			return nil
		}
		return e.push(boolNum(eq))
	case isArith(op):
		return e.execArith(op)
	case op == OP_RIPEMD160:
		return e.hashOp(func(b []byte) []byte {
			h := ripemd160.New()
			h.Write(b)
			return h.Sum(nil)
		})
	case op == OP_SHA1:
		return e.hashOp(func(b []byte) []byte { s := sha1.Sum(b); return s[:] })
	case op == OP_SHA256:
		return e.hashOp(func(b []byte) []byte { s := sha256.Sum256(b); return s[:] })
	case op == OP_HASH160:
		return e.hashOp(func(b []byte) []byte { h := gobch.CalcHash160(b); return h[:] })
	case op == OP_HASH256:
		return e.hashOp(func(b []byte) []byte { h := gobch.ShaSha256(b); return h[:] })
	case op == OP_CHECKSIG, op == OP_CHECKSIGVERIFY:
		return e.checkSig(script, op == OP_CHECKSIGVERIFY)
	case op == OP_CHECKMULTISIG, op == OP_CHECKMULTISIGVERIFY:
		return e.checkMultiSig(script, op == OP_CHECKMULTISIGVERIFY)
	case op == OP_CHECKLOCKTIMEVERIFY:
		return e.checkLockTimeVerify()
	case op == OP_CHECKSEQUENCEVERIFY:
		return e.checkSequenceVerify()
	default:
		return fmt.Errorf("script: unhandled opcode 0x%02x", op)
	}
}

func (e *engine) dupN(n int) error {
	for i := n - 1; i >= 0; i-- {
		v, err := e.stack.Peek(i)
		if err != nil {
			return err
		}
		if err := e.stack.Push(v); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) swapN(a, b int) error {
	ia := len(e.stack) - 1 - a
	ib := len(e.stack) - 1 - b
	if ia < 0 || ib < 0 {
		return fmt.Errorf("script: stack underflow in swap")
	}
	e.stack[ia], e.stack[ib] = e.stack[ib], e.stack[ia]
	return nil
}

func (e *engine) rot1() error {
	c, err := e.stack.Pop()
	if err != nil {
		return err
	}
	b, err := e.stack.Pop()
	if err != nil {
		return err
	}
	a, err := e.stack.Pop()
	if err != nil {
		return err
	}
	if err := e.stack.Push(b); err != nil {
		return err
	}
	if err := e.stack.Push(c); err != nil {
		return err
	}
	return e.stack.Push(a)
}

func (e *engine) rot2() error {
	if len(e.stack) < 6 {
		return fmt.Errorf("script: stack underflow in 2ROT")
	}
	n := len(e.stack)
	vals := make([][]byte, 6)
	copy(vals, e.stack[n-6:n])
	e.stack = e.stack[:n-6]
	// move the bottom pair (vals[0],vals[1]) to the top
	order := [][]byte{vals[2], vals[3], vals[4], vals[5], vals[0], vals[1]}
	for _, v := range order {
		if err := e.stack.Push(v); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) push(n ScriptNum) error { return e.stack.Push(n.Bytes()) }

func (e *engine) popNum(maxSize int) (ScriptNum, error) {
	v, err := e.stack.Pop()
	if err != nil {
		return 0, err
	}
	return ReadScriptNum(v, true, maxSize)
}

func (e *engine) hashOp(f func([]byte) []byte) error {
	v, err := e.stack.Pop()
	if err != nil {
		return err
	}
	return e.stack.Push(f(v))
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func boolNum(b bool) ScriptNum {
	if b {
		return 1
	}
	return 0
}

// subscript returns the lock script from the most recent OP_CODESEPARATOR
// to the end, with any further OP_CODESEPARATOR bytes removed, spec.md
// glossary "Subscript".
func subscript(full Script, from int) Script {
	out := append(Script{}, full[from:]...)
	pc := 0
	var clean Script
	for pc < len(out) {
		op, next, err := nextOp(out, pc)
		if err != nil {
			clean = append(clean, out[pc:]...)
			break
		}
		if op.Data == nil && op.Op == OP_CODESEPARATOR {
			pc = next
			continue
		}
		clean = append(clean, out[pc:next]...)
		pc = next
	}
	return clean
}

func (e *engine) checkSig(full Script, verify bool) error {
	pubkeyB, err := e.stack.Pop()
	if err != nil {
		return err
	}
	sigB, err := e.stack.Pop()
	if err != nil {
		return err
	}

	ok := e.verifySignature(full, sigB, pubkeyB)
	if verify {
		if !ok {
			return fmt.Errorf("script: OP_CHECKSIGVERIFY failed")
		}
		return nil
	}
	return e.push(boolNum(ok))
}

func (e *engine) verifySignature(full Script, sigB, pubkeyB []byte) bool {
	if len(sigB) == 0 {
		return false
	}
	hashType := HashType(sigB[len(sigB)-1])
	rawSig := sigB[:len(sigB)-1]

	if e.flags.strictDER() {
		if !isStrictDER(rawSig) {
			return false
		}
	} else {
		rawSig = normalizeDER(rawSig)
	}

	sub := subscript(full, e.codeSeparator)
	preimage, err := SignaturePreimage(e.tx, e.inputIndex, sub, e.outputAmount, hashType, e.flags.CashActive)
	if err != nil {
		return false
	}
	hash := gobch.ShaSha256(preimage)

	sig, err := ecdsa.ParseDERSignature(rawSig)
	if err != nil {
		return false
	}
	pubkey, err := btcec.ParsePubKey(pubkeyB)
	if err != nil {
		return false
	}
	if sig.Verify(hash[:], pubkey) {
		e.verified = true
		return true
	}
	return false
}

func (e *engine) checkMultiSig(full Script, verify bool) error {
	n, err := e.popNum(MaxNumSize)
	if err != nil {
		return err
	}
	nKeys := int(n)
	if nKeys < 0 || nKeys > 20 {
		return fmt.Errorf("script: invalid pubkey count %d", nKeys)
	}
	pubkeys := make([][]byte, nKeys)
	for i := nKeys - 1; i >= 0; i-- {
		pubkeys[i], err = e.stack.Pop()
		if err != nil {
			return err
		}
	}

	m, err := e.popNum(MaxNumSize)
	if err != nil {
		return err
	}
	nSigs := int(m)
	if nSigs < 0 || nSigs > nKeys {
		return fmt.Errorf("script: invalid signature count %d", nSigs)
	}
	sigs := make([][]byte, nSigs)
	for i := nSigs - 1; i >= 0; i-- {
		sigs[i], err = e.stack.Pop()
		if err != nil {
			return err
		}
	}

	// Historical off-by-one bug: CHECKMULTISIG pops one extra stack
	// element that is unused by the operation.
	if _, err := e.stack.Pop(); err != nil {
		return err
	}

	ok := true
	sigIdx, keyIdx := 0, 0
	for sigIdx < nSigs {
		if keyIdx >= nKeys {
			ok = false
			break
		}
		if e.verifySignature(full, sigs[sigIdx], pubkeys[keyIdx]) {
			sigIdx++
		}
		keyIdx++
	}

	if verify {
		if !ok {
			return fmt.Errorf("script: OP_CHECKMULTISIGVERIFY failed")
		}
		return nil
	}
	return e.push(boolNum(ok))
}

func (e *engine) checkLockTimeVerify() error {
	if !e.flags.cltvActive() {
		return nil // pre-activation, CHECKLOCKTIMEVERIFY behaves as NOP
	}
	v, err := e.stack.Peek(0)
	if err != nil {
		return err
	}
	n, err := ReadScriptNum(v, true, 5)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("script: CHECKLOCKTIMEVERIFY negative locktime")
	}
	const lockTimeThreshold = 500000000
	sameKind := (int64(n) < lockTimeThreshold) == (int64(e.tx.LockTime) < lockTimeThreshold)
	if !sameKind {
		return fmt.Errorf("script: CHECKLOCKTIMEVERIFY kind mismatch")
	}
	if int64(n) > int64(e.tx.LockTime) {
		return fmt.Errorf("script: CHECKLOCKTIMEVERIFY not yet reached")
	}
	if e.tx.TxIns[e.inputIndex].Sequence == 0xFFFFFFFF {
		return fmt.Errorf("script: CHECKLOCKTIMEVERIFY input is final")
	}
	return nil
}

func (e *engine) checkSequenceVerify() error {
	if !e.flags.CSVActive {
		return nil
	}
	v, err := e.stack.Peek(0)
	if err != nil {
		return err
	}
	n, err := ReadScriptNum(v, true, 5)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("script: CHECKSEQUENCEVERIFY negative sequence")
	}
	if uint32(n)&gobch.SequenceLockTimeDisableFlag != 0 {
		return nil
	}
	if e.tx.Version < 2 {
		return fmt.Errorf("script: CHECKSEQUENCEVERIFY requires tx version >= 2")
	}
	inSeq := e.tx.TxIns[e.inputIndex].Sequence
	if inSeq&gobch.SequenceLockTimeDisableFlag != 0 {
		return fmt.Errorf("script: CHECKSEQUENCEVERIFY disabled on this input")
	}
	nType := uint32(n) & gobch.SequenceLockTimeTypeFlag
	inType := inSeq & gobch.SequenceLockTimeTypeFlag
	if nType != inType {
		return fmt.Errorf("script: CHECKSEQUENCEVERIFY type mismatch")
	}
	if uint32(n)&gobch.SequenceLockTimeMask > inSeq&gobch.SequenceLockTimeMask {
		return fmt.Errorf("script: CHECKSEQUENCEVERIFY not satisfied")
	}
	return nil
}
