package vm

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/voyagervm/voyagervm/core/types"
)

// callDepthLimit is the maximum nesting depth of frames.
const callDepthLimit = 1024

// childSpec describes a sub-execution scheduled by a call-family opcode.
// The interpreter driver turns it into a child frame; the parent consumes
// the child's result in finishChild.
type childSpec struct {
	ctx        Context
	gas        uint64
	isCreate   bool
	createAddr types.Address

	// Value movement and account creation applied to the child's state
	// overlay, so a failed child discards them.
	transferFrom  types.Address
	transferTo    types.Address
	transferValue *uint256.Int // nil = no movement
	createTarget  bool         // CALL may materialize a missing callee

	outOffset uint64
	outSize   uint64
}

// writeCallResult copies a child's return data into the caller-specified
// output window and zeroes the remainder of the window.
func (m *machine) writeCallResult(out []byte, outOffset, outSize uint64) {
	if outSize == 0 {
		return
	}
	n := uint64(len(out))
	if n > outSize {
		n = outSize
	}
	if n > 0 {
		m.memory.Set(outOffset, n, out[:n])
	}
	if n < outSize {
		m.memory.Zero(outOffset+n, outSize-n)
	}
}

// runPrecompile executes a precompiled contract inline: no frame is
// created, but the forwarded gas budget and value transfer behave as for a
// regular call.
func (m *machine) runPrecompile(pc PrecompiledContract, input []byte, gas uint64,
	value *uint256.Int, target types.Address, outOffset, outSize uint64) {
	cost := pc.RequiredGas(input)
	if cost > gas {
		m.stack.PushUint64(0)
		return
	}
	out, err := pc.Run(input)
	if err != nil {
		m.stack.PushUint64(0)
		return
	}
	m.gas += gas - cost
	if value != nil && !value.IsZero() {
		m.state.accounts.subBalance(m.ctx.Address, value)
		m.state.accounts.addBalance(target, value)
	}
	m.writeCallResult(out, outOffset, outSize)
	m.stack.PushUint64(1)
}

func opCall(m *machine) ([]byte, error) {
	m.stack.Pop() // requested gas; resolved into m.callGas by gasCall
	target := addressFromWord(m.stack.Pop())
	value := m.stack.Pop()
	inOffset, inSize := m.stack.Pop(), m.stack.Pop()
	outOffset, outSize := m.stack.Pop(), m.stack.Pop()

	if m.ctx.IsStatic && !value.IsZero() {
		return nil, ErrInvalidOpcode
	}

	gas := m.callGas
	if !value.IsZero() {
		gas += GasCallStipend
	}
	input := readCallInput(m, inOffset, inSize)
	oOff, oSize := outWindow(outOffset, outSize)

	if m.depth+1 > callDepthLimit {
		m.gas += gas
		m.stack.PushUint64(0)
		return nil, nil
	}
	if !value.IsZero() {
		balance, _ := m.state.accounts.balance(m.ctx.Address)
		if balance.Lt(value) {
			m.gas += gas
			m.stack.PushUint64(0)
			return nil, nil
		}
	}
	if pc, ok := precompile(m.patch, target); ok {
		m.runPrecompile(pc, input, gas, value, target, oOff, oSize)
		return nil, nil
	}

	code, _ := m.state.accounts.code(target)
	m.pendingChild = &childSpec{
		ctx: Context{
			Address:       target,
			Caller:        m.ctx.Address,
			Origin:        m.ctx.Origin,
			Data:          input,
			Code:          code,
			GasLimit:      gas,
			GasPrice:      m.ctx.GasPrice,
			Value:         value,
			ApparentValue: value,
			IsStatic:      m.ctx.IsStatic,
		},
		gas:           gas,
		transferFrom:  m.ctx.Address,
		transferTo:    target,
		transferValue: value,
		createTarget:  true,
		outOffset:     oOff,
		outSize:       oSize,
	}
	return nil, nil
}

func opCallCode(m *machine) ([]byte, error) {
	m.stack.Pop() // requested gas
	target := addressFromWord(m.stack.Pop())
	value := m.stack.Pop()
	inOffset, inSize := m.stack.Pop(), m.stack.Pop()
	outOffset, outSize := m.stack.Pop(), m.stack.Pop()

	if m.ctx.IsStatic && !value.IsZero() {
		return nil, ErrInvalidOpcode
	}

	gas := m.callGas
	if !value.IsZero() {
		gas += GasCallStipend
	}
	input := readCallInput(m, inOffset, inSize)
	oOff, oSize := outWindow(outOffset, outSize)

	if m.depth+1 > callDepthLimit {
		m.gas += gas
		m.stack.PushUint64(0)
		return nil, nil
	}
	if !value.IsZero() {
		balance, _ := m.state.accounts.balance(m.ctx.Address)
		if balance.Lt(value) {
			m.gas += gas
			m.stack.PushUint64(0)
			return nil, nil
		}
	}
	if pc, ok := precompile(m.patch, target); ok {
		m.runPrecompile(pc, input, gas, nil, target, oOff, oSize)
		return nil, nil
	}

	// CALLCODE runs the callee's code against the caller's own account; no
	// value moves and no account can be created.
	code, _ := m.state.accounts.code(target)
	m.pendingChild = &childSpec{
		ctx: Context{
			Address:       m.ctx.Address,
			Caller:        m.ctx.Address,
			Origin:        m.ctx.Origin,
			Data:          input,
			Code:          code,
			GasLimit:      gas,
			GasPrice:      m.ctx.GasPrice,
			Value:         value,
			ApparentValue: value,
			IsStatic:      m.ctx.IsStatic,
		},
		gas:       gas,
		outOffset: oOff,
		outSize:   oSize,
	}
	return nil, nil
}

func opDelegateCall(m *machine) ([]byte, error) {
	m.stack.Pop() // requested gas
	target := addressFromWord(m.stack.Pop())
	inOffset, inSize := m.stack.Pop(), m.stack.Pop()
	outOffset, outSize := m.stack.Pop(), m.stack.Pop()

	gas := m.callGas
	input := readCallInput(m, inOffset, inSize)
	oOff, oSize := outWindow(outOffset, outSize)

	if m.depth+1 > callDepthLimit {
		m.gas += gas
		m.stack.PushUint64(0)
		return nil, nil
	}
	if pc, ok := precompile(m.patch, target); ok {
		m.runPrecompile(pc, input, gas, nil, target, oOff, oSize)
		return nil, nil
	}

	// DELEGATECALL keeps the caller's identity and apparent value.
	code, _ := m.state.accounts.code(target)
	m.pendingChild = &childSpec{
		ctx: Context{
			Address:       m.ctx.Address,
			Caller:        m.ctx.Caller,
			Origin:        m.ctx.Origin,
			Data:          input,
			Code:          code,
			GasLimit:      gas,
			GasPrice:      m.ctx.GasPrice,
			Value:         uint256.NewInt(0),
			ApparentValue: m.ctx.ApparentValue,
			IsStatic:      m.ctx.IsStatic,
		},
		gas:       gas,
		outOffset: oOff,
		outSize:   oSize,
	}
	return nil, nil
}

func opStaticCall(m *machine) ([]byte, error) {
	m.stack.Pop() // requested gas
	target := addressFromWord(m.stack.Pop())
	inOffset, inSize := m.stack.Pop(), m.stack.Pop()
	outOffset, outSize := m.stack.Pop(), m.stack.Pop()

	gas := m.callGas
	input := readCallInput(m, inOffset, inSize)
	oOff, oSize := outWindow(outOffset, outSize)

	if m.depth+1 > callDepthLimit {
		m.gas += gas
		m.stack.PushUint64(0)
		return nil, nil
	}
	if pc, ok := precompile(m.patch, target); ok {
		m.runPrecompile(pc, input, gas, nil, target, oOff, oSize)
		return nil, nil
	}

	code, _ := m.state.accounts.code(target)
	m.pendingChild = &childSpec{
		ctx: Context{
			Address:       target,
			Caller:        m.ctx.Address,
			Origin:        m.ctx.Origin,
			Data:          input,
			Code:          code,
			GasLimit:      gas,
			GasPrice:      m.ctx.GasPrice,
			Value:         uint256.NewInt(0),
			ApparentValue: uint256.NewInt(0),
			IsStatic:      true,
		},
		gas:       gas,
		outOffset: oOff,
		outSize:   oSize,
	}
	return nil, nil
}

func opCreate(m *machine) ([]byte, error) {
	value := m.stack.Pop()
	offset, size := m.stack.Pop(), m.stack.Pop()
	accounts := m.state.accounts

	if m.depth+1 > callDepthLimit {
		m.stack.PushUint64(0)
		return nil, nil
	}
	balance, _ := accounts.balance(m.ctx.Address)
	if balance.Lt(value) {
		m.stack.PushUint64(0)
		return nil, nil
	}

	nonce, _ := accounts.nonce(m.ctx.Address)
	// The creator's nonce bump survives a failed creation.
	accounts.setNonce(m.ctx.Address, nonce+1)
	created := createdAddress(m.ctx.Address, nonce)

	// The child's gas allowance is taken whether or not it runs: a
	// collision consumes it.
	forward := m.gas
	if m.patch.ForwardRule63of64 {
		forward = forwardableGas(m.gas)
	}
	m.gas -= forward

	code, _ := accounts.code(created)
	createdNonce, _ := accounts.nonce(created)
	exists, _ := accounts.exists(created)
	if exists && (len(code) > 0 || createdNonce > 0) {
		m.stack.PushUint64(0)
		return nil, nil
	}

	var init []byte
	if !size.IsZero() {
		init = m.memory.Get(offset.Uint64(), size.Uint64())
	}
	m.pendingChild = &childSpec{
		ctx: Context{
			Address:       created,
			Caller:        m.ctx.Address,
			Origin:        m.ctx.Origin,
			Code:          init,
			GasLimit:      forward,
			GasPrice:      m.ctx.GasPrice,
			Value:         value,
			ApparentValue: value,
			IsStatic:      m.ctx.IsStatic,
		},
		gas:           forward,
		isCreate:      true,
		createAddr:    created,
		transferFrom:  m.ctx.Address,
		transferTo:    created,
		transferValue: value,
		outOffset:     0,
		outSize:       0,
	}
	return nil, nil
}

// finishChild consumes a terminated child frame: merge on success, drop on
// failure, return-data copy-back, gas settlement, and the success flag on
// the caller's stack.
func (m *machine) finishChild(child *machine) {
	spec := m.pendingChild
	m.pendingChild = nil

	switch {
	case child.status.Kind == StatusExitedOk && spec.isCreate:
		code := child.out
		deposit, overflow := safeMul(uint64(len(code)), GasCodeDeposit)
		switch {
		case !overflow && child.gas >= deposit:
			child.gas -= deposit
			child.state.accounts.setCode(spec.createAddr, code)
		case m.patch.ForceCodeDeposit:
			// Frontier: an unpayable deposit leaves the account with empty
			// code but the creation stands.
		default:
			// Deposit unpayable: the whole child is discarded as out of gas.
			m.stack.PushUint64(0)
			m.pc++
			return
		}
		m.state = child.state
		m.gas += child.gas
		m.stack.Push(wordFromAddress(spec.createAddr))

	case child.status.Kind == StatusExitedOk:
		m.state = child.state
		m.gas += child.gas
		m.writeCallResult(child.out, spec.outOffset, spec.outSize)
		m.stack.PushUint64(1)

	case errors.Is(child.status.Err, ErrRevert):
		// Revert keeps the child's unused gas and its return buffer, but
		// none of its state.
		m.gas += child.gas
		if !spec.isCreate {
			m.writeCallResult(child.out, spec.outOffset, spec.outSize)
		}
		m.stack.PushUint64(0)

	default:
		m.stack.PushUint64(0)
	}
	m.pc++
}

func readCallInput(m *machine, inOffset, inSize *uint256.Int) []byte {
	if inSize.IsZero() {
		return nil
	}
	return m.memory.Get(inOffset.Uint64(), inSize.Uint64())
}

func outWindow(outOffset, outSize *uint256.Int) (uint64, uint64) {
	if outSize.IsZero() {
		return 0, 0
	}
	return outOffset.Uint64(), outSize.Uint64()
}
