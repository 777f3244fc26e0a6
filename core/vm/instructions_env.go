package vm

import "github.com/holiman/uint256"

func opAddress(m *machine) ([]byte, error) {
	m.stack.Push(wordFromAddress(m.ctx.Address))
	return nil, nil
}

func opBalance(m *machine) ([]byte, error) {
	slot := m.stack.Peek()
	balance, _ := m.state.accounts.balance(addressFromWord(slot))
	slot.Set(balance)
	return nil, nil
}

func opOrigin(m *machine) ([]byte, error) {
	m.stack.Push(wordFromAddress(m.ctx.Origin))
	return nil, nil
}

func opCaller(m *machine) ([]byte, error) {
	m.stack.Push(wordFromAddress(m.ctx.Caller))
	return nil, nil
}

func opCallValue(m *machine) ([]byte, error) {
	m.stack.Push(new(uint256.Int).Set(m.ctx.ApparentValue))
	return nil, nil
}

func opCalldataLoad(m *machine) ([]byte, error) {
	x := m.stack.Peek()
	x.SetBytes(getData(m.ctx.Data, x, 32))
	return nil, nil
}

func opCalldataSize(m *machine) ([]byte, error) {
	m.stack.PushUint64(uint64(len(m.ctx.Data)))
	return nil, nil
}

func opCalldataCopy(m *machine) ([]byte, error) {
	memOffset, dataOffset, length := m.stack.Pop(), m.stack.Pop(), m.stack.Pop()
	if length.IsZero() {
		return nil, nil
	}
	m.memory.Set(memOffset.Uint64(), length.Uint64(), getData(m.ctx.Data, dataOffset, length.Uint64()))
	return nil, nil
}

func opCodeSize(m *machine) ([]byte, error) {
	m.stack.PushUint64(uint64(len(m.ctx.Code)))
	return nil, nil
}

func opCodeCopy(m *machine) ([]byte, error) {
	memOffset, codeOffset, length := m.stack.Pop(), m.stack.Pop(), m.stack.Pop()
	if length.IsZero() {
		return nil, nil
	}
	m.memory.Set(memOffset.Uint64(), length.Uint64(), getData(m.ctx.Code, codeOffset, length.Uint64()))
	return nil, nil
}

func opGasPrice(m *machine) ([]byte, error) {
	m.stack.Push(new(uint256.Int).Set(m.ctx.GasPrice))
	return nil, nil
}

func opExtCodeSize(m *machine) ([]byte, error) {
	slot := m.stack.Peek()
	code, _ := m.state.accounts.code(addressFromWord(slot))
	slot.SetUint64(uint64(len(code)))
	return nil, nil
}

func opExtCodeCopy(m *machine) ([]byte, error) {
	addrWord := m.stack.Pop()
	memOffset, codeOffset, length := m.stack.Pop(), m.stack.Pop(), m.stack.Pop()
	if length.IsZero() {
		return nil, nil
	}
	code, _ := m.state.accounts.code(addressFromWord(addrWord))
	m.memory.Set(memOffset.Uint64(), length.Uint64(), getData(code, codeOffset, length.Uint64()))
	return nil, nil
}

func opBlockhash(m *machine) ([]byte, error) {
	num := m.stack.Peek()
	number, overflow := num.Uint64WithOverflow()
	if overflow || !blockhashInRange(number, m.header.Number) {
		num.Clear()
		return nil, nil
	}
	hash, _ := m.blockhashes.get(number)
	num.SetBytes(hash[:])
	return nil, nil
}

func opCoinbase(m *machine) ([]byte, error) {
	m.stack.Push(wordFromAddress(m.header.Coinbase))
	return nil, nil
}

func opTimestamp(m *machine) ([]byte, error) {
	m.stack.PushUint64(m.header.Timestamp)
	return nil, nil
}

func opNumber(m *machine) ([]byte, error) {
	m.stack.PushUint64(m.header.Number)
	return nil, nil
}

func opDifficulty(m *machine) ([]byte, error) {
	m.stack.Push(new(uint256.Int).Set(m.header.Difficulty))
	return nil, nil
}

func opGasLimit(m *machine) ([]byte, error) {
	m.stack.PushUint64(m.header.GasLimit)
	return nil, nil
}
