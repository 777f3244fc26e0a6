package vm

import (
	"github.com/holiman/uint256"

	"github.com/voyagervm/voyagervm/crypto"
)

func opStop(m *machine) ([]byte, error) {
	return nil, nil
}

func opAdd(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	y.Add(x, y)
	return nil, nil
}

func opMul(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	y.Mul(x, y)
	return nil, nil
}

func opSub(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	y.Sub(x, y)
	return nil, nil
}

func opDiv(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	y.Div(x, y)
	return nil, nil
}

func opSdiv(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	y.SDiv(x, y)
	return nil, nil
}

func opMod(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	y.Mod(x, y)
	return nil, nil
}

func opSmod(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	y.SMod(x, y)
	return nil, nil
}

func opAddmod(m *machine) ([]byte, error) {
	x, y, z := m.stack.Pop(), m.stack.Pop(), m.stack.Peek()
	z.AddMod(x, y, z)
	return nil, nil
}

func opMulmod(m *machine) ([]byte, error) {
	x, y, z := m.stack.Pop(), m.stack.Pop(), m.stack.Peek()
	z.MulMod(x, y, z)
	return nil, nil
}

func opExp(m *machine) ([]byte, error) {
	base, exponent := m.stack.Pop(), m.stack.Peek()
	exponent.Exp(base, exponent)
	return nil, nil
}

func opSignExtend(m *machine) ([]byte, error) {
	back, num := m.stack.Pop(), m.stack.Peek()
	num.ExtendSign(num, back)
	return nil, nil
}

func opLt(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opGt(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSlt(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSgt(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opEq(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opIszero(m *machine) ([]byte, error) {
	x := m.stack.Peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
	return nil, nil
}

func opAnd(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	y.And(x, y)
	return nil, nil
}

func opOr(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	y.Or(x, y)
	return nil, nil
}

func opXor(m *machine) ([]byte, error) {
	x, y := m.stack.Pop(), m.stack.Peek()
	y.Xor(x, y)
	return nil, nil
}

func opNot(m *machine) ([]byte, error) {
	x := m.stack.Peek()
	x.Not(x)
	return nil, nil
}

func opByte(m *machine) ([]byte, error) {
	th, val := m.stack.Pop(), m.stack.Peek()
	val.Byte(th)
	return nil, nil
}

func opSha3(m *machine) ([]byte, error) {
	offset, size := m.stack.Pop(), m.stack.Pop()
	var data []byte
	if !size.IsZero() {
		data = m.memory.GetPtr(offset.Uint64(), size.Uint64())
	}
	m.stack.PushBytes(crypto.Keccak256(data))
	return nil, nil
}

func opPop(m *machine) ([]byte, error) {
	m.stack.Pop()
	return nil, nil
}

func opMload(m *machine) ([]byte, error) {
	v := m.stack.Peek()
	offset := v.Uint64()
	v.SetBytes(m.memory.GetPtr(offset, 32))
	return nil, nil
}

func opMstore(m *machine) ([]byte, error) {
	offset, val := m.stack.Pop(), m.stack.Pop()
	m.memory.Set32(offset.Uint64(), val)
	return nil, nil
}

func opMstore8(m *machine) ([]byte, error) {
	offset, val := m.stack.Pop(), m.stack.Pop()
	m.memory.SetByte(offset.Uint64(), byte(val.Uint64()))
	return nil, nil
}

func opJump(m *machine) ([]byte, error) {
	dest := m.stack.Pop()
	if !m.program.validJumpdest(dest) {
		return nil, ErrInvalidJumpDest
	}
	m.pc = dest.Uint64()
	return nil, nil
}

func opJumpi(m *machine) ([]byte, error) {
	dest, cond := m.stack.Pop(), m.stack.Pop()
	if cond.IsZero() {
		m.pc++
		return nil, nil
	}
	if !m.program.validJumpdest(dest) {
		return nil, ErrInvalidJumpDest
	}
	m.pc = dest.Uint64()
	return nil, nil
}

func opJumpdest(m *machine) ([]byte, error) {
	return nil, nil
}

func opPc(m *machine) ([]byte, error) {
	m.stack.PushUint64(m.pc)
	return nil, nil
}

func opMsize(m *machine) ([]byte, error) {
	m.stack.PushUint64(m.memory.Len())
	return nil, nil
}

func opGas(m *machine) ([]byte, error) {
	m.stack.PushUint64(m.gas)
	return nil, nil
}

func opReturn(m *machine) ([]byte, error) {
	offset, size := m.stack.Pop(), m.stack.Pop()
	if size.IsZero() {
		return nil, nil
	}
	return m.memory.Get(offset.Uint64(), size.Uint64()), nil
}

func opRevert(m *machine) ([]byte, error) {
	offset, size := m.stack.Pop(), m.stack.Pop()
	var ret []byte
	if !size.IsZero() {
		ret = m.memory.Get(offset.Uint64(), size.Uint64())
	}
	return ret, ErrRevert
}

// makePush builds the handler for PUSHn, reading n immediate bytes and
// zero-padding past the end of the code.
func makePush(n uint64) executionFunc {
	return func(m *machine) ([]byte, error) {
		code := m.ctx.Code
		start := m.pc + 1
		end := start + n
		if start > uint64(len(code)) {
			start = uint64(len(code))
		}
		if end > uint64(len(code)) {
			end = uint64(len(code))
		}
		word := new(uint256.Int).SetBytes(code[start:end])
		// Pad on the right when the immediate is truncated by code end.
		if missing := n - (end - start); missing > 0 {
			word.Lsh(word, uint(8*missing))
		}
		m.stack.Push(word)
		return nil, nil
	}
}

// makeDup builds the handler for DUPn.
func makeDup(n int) executionFunc {
	return func(m *machine) ([]byte, error) {
		m.stack.Dup(n)
		return nil, nil
	}
}

// makeSwap builds the handler for SWAPn.
func makeSwap(n int) executionFunc {
	return func(m *machine) ([]byte, error) {
		m.stack.Swap(n)
		return nil, nil
	}
}
