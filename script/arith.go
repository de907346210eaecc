package script

import "fmt"

func isArith(op Opcode) bool {
	switch op {
	case OP_1ADD, OP_1SUB, OP_NEGATE, OP_ABS, OP_NOT, OP_0NOTEQUAL,
		OP_ADD, OP_SUB, OP_BOOLAND, OP_BOOLOR,
		OP_NUMEQUAL, OP_NUMEQUALVERIFY, OP_NUMNOTEQUAL,
		OP_LESSTHAN, OP_GREATERTHAN, OP_LESSTHANOREQUAL, OP_GREATERTHANOREQUAL,
		OP_MIN, OP_MAX, OP_WITHIN:
		return true
	}
	return false
}

// execArith implements the numeric opcodes, spec.md §4.B. All operands
// and results are CScriptNum-encoded 4-byte-max values.
func (e *engine) execArith(op Opcode) error {
	unary := map[Opcode]func(ScriptNum) ScriptNum{
		OP_1ADD:      func(a ScriptNum) ScriptNum { return a + 1 },
		OP_1SUB:      func(a ScriptNum) ScriptNum { return a - 1 },
		OP_NEGATE:    func(a ScriptNum) ScriptNum { return -a },
		OP_ABS:       func(a ScriptNum) ScriptNum { if a < 0 { return -a }; return a },
		OP_NOT:       func(a ScriptNum) ScriptNum { return boolNum(a == 0) },
		OP_0NOTEQUAL: func(a ScriptNum) ScriptNum { return boolNum(a != 0) },
	}
	if f, ok := unary[op]; ok {
		a, err := e.popNum(MaxNumSize)
		if err != nil {
			return err
		}
		return e.push(f(a))
	}

	if op == OP_WITHIN {
		max, err := e.popNum(MaxNumSize)
		if err != nil {
			return err
		}
		min, err := e.popNum(MaxNumSize)
		if err != nil {
			return err
		}
		x, err := e.popNum(MaxNumSize)
		if err != nil {
			return err
		}
		return e.push(boolNum(x >= min && x < max))
	}

	b, err := e.popNum(MaxNumSize)
	if err != nil {
		return err
	}
	a, err := e.popNum(MaxNumSize)
	if err != nil {
		return err
	}

	switch op {
	case OP_ADD:
		return e.push(a + b)
	case OP_SUB:
		return e.push(a - b)
	case OP_BOOLAND:
		return e.push(boolNum(a != 0 && b != 0))
	case OP_BOOLOR:
		return e.push(boolNum(a != 0 || b != 0))
	case OP_NUMEQUAL:
		return e.push(boolNum(a == b))
	case OP_NUMEQUALVERIFY:
		if a != b {
			return fmt.Errorf("script: OP_NUMEQUALVERIFY failed")
		}
		return nil
	case OP_NUMNOTEQUAL:
		return e.push(boolNum(a != b))
	case OP_LESSTHAN:
		return e.push(boolNum(a < b))
	case OP_GREATERTHAN:
		return e.push(boolNum(a > b))
	case OP_LESSTHANOREQUAL:
		return e.push(boolNum(a <= b))
	case OP_GREATERTHANOREQUAL:
		return e.push(boolNum(a >= b))
	case OP_MIN:
		if a < b {
			return e.push(a)
		}
		return e.push(b)
	case OP_MAX:
		if a > b {
			return e.push(a)
		}
		return e.push(b)
	}
	return fmt.Errorf("script: unhandled arithmetic opcode 0x%02x", op)
}
