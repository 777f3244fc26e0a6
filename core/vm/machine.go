package vm

import (
	"errors"

	"github.com/voyagervm/voyagervm/core/types"
)

// evalState bundles the world-state view of a frame: the account cache,
// the log list and the refund counter. A child frame derives a deep copy;
// the parent adopts it only when the child commits up.
type evalState struct {
	accounts *AccountState
	logs     []types.Log
	refund   uint64
}

func newEvalState() *evalState {
	return &evalState{accounts: newAccountState()}
}

func (s *evalState) derive() *evalState {
	d := &evalState{
		accounts: s.accounts.derive(),
		refund:   s.refund,
	}
	d.logs = append(d.logs, s.logs...)
	return d
}

// machine is a single execution frame: its own PC, stack, memory and gas
// budget over a context, plus a private world-state overlay.
type machine struct {
	ctx         Context
	patch       *Patch
	header      *BlockHeader
	blockhashes *BlockhashCache
	table       *JumpTable
	program     *program
	state       *evalState

	pc     uint64
	stack  *Stack
	memory *Memory
	gas    uint64
	depth  int

	status Status
	out    []byte

	// callGas carries the resolved child allowance from the gas phase to
	// the execution phase of a call-family opcode.
	callGas      uint64
	pendingChild *childSpec

	tracer Tracer
}

func newMachine(ctx Context, patch *Patch, header *BlockHeader, table *JumpTable,
	blockhashes *BlockhashCache, state *evalState, depth int, tracer Tracer) *machine {
	return &machine{
		ctx:         ctx,
		patch:       patch,
		header:      header,
		blockhashes: blockhashes,
		table:       table,
		program:     newProgram(ctx.Code),
		state:       state,
		stack:       NewStack(),
		memory:      NewMemory(),
		gas:         ctx.GasLimit,
		depth:       depth,
		tracer:      tracer,
	}
}

func (m *machine) exitOk(out []byte) {
	m.out = out
	m.status = Status{Kind: StatusExitedOk}
}

// exitErr terminates the frame with an on-chain error, consuming all
// remaining frame gas.
func (m *machine) exitErr(err error) {
	m.gas = 0
	m.status = Status{Kind: StatusExitedErr, Err: err}
}

// exitRevert terminates the frame with ErrRevert: gas is preserved, state
// is discarded by whoever owns the frame.
func (m *machine) exitRevert(out []byte) {
	m.out = out
	m.status = Status{Kind: StatusExitedErr, Err: ErrRevert}
}

func (m *machine) exitNotSupported(err error) {
	m.gas = 0
	m.status = Status{Kind: StatusExitedNotSupported, Err: err}
}

// peekOp returns the opcode the next step would execute.
func (m *machine) peekOp() (OpCode, bool) {
	if !m.status.Running() || m.pc >= m.program.length() {
		return STOP, m.status.Running()
	}
	return m.program.getOp(m.pc), true
}

// memoryGasDelta prices growing the active memory to cover size bytes.
func (m *machine) memoryGasDelta(size uint64) (uint64, bool) {
	if size == 0 {
		return 0, false
	}
	newWords := toWordSize(size)
	if newWords <= m.memory.ActiveWords() {
		return 0, false
	}
	newCost, overflow := memoryGas(newWords)
	if overflow {
		return 0, true
	}
	oldCost, _ := memoryGas(m.memory.ActiveWords())
	return newCost - oldCost, false
}

// step executes one instruction, following the order: decode, stack
// arity, world-state requirements, memory expansion and opcode gas,
// deduction, effect, PC advance. A non-nil Require means the step had no
// observable effect and must be retried after the commitment arrives.
func (m *machine) step() *Require {
	if !m.status.Running() {
		return nil
	}

	// Past the end of code: implicit STOP.
	if m.pc >= m.program.length() {
		m.exitOk(nil)
		return nil
	}

	op := m.program.getOp(m.pc)
	operation := m.table[op]
	if operation == nil {
		m.exitErr(ErrInvalidOpcode)
		return nil
	}
	if operation.enabled != nil && !operation.enabled(m.patch) {
		m.exitNotSupported(ErrNotSupported)
		return nil
	}
	if m.ctx.IsStatic && operation.writes {
		m.exitErr(ErrInvalidOpcode)
		return nil
	}

	sLen := m.stack.Len()
	if sLen < operation.minStack {
		m.exitErr(ErrStackUnderflow)
		return nil
	}
	if sLen > operation.maxStack {
		m.exitErr(ErrStackOverflow)
		return nil
	}

	if operation.requires != nil {
		if req := operation.requires(m); req != nil {
			return req
		}
	}

	var memSize uint64
	if operation.memorySize != nil {
		size, overflow := operation.memorySize(m.stack)
		if overflow || size > m.patch.MemoryLimit {
			m.exitErr(ErrOutOfGas)
			return nil
		}
		memSize = size
	}

	cost := operation.constantGas
	memGas, overflow := m.memoryGasDelta(memSize)
	if overflow {
		m.exitErr(ErrOutOfGas)
		return nil
	}
	if cost, overflow = safeAdd(cost, memGas); overflow {
		m.exitErr(ErrOutOfGas)
		return nil
	}
	if operation.dynamicGas != nil {
		extra, err := operation.dynamicGas(m, cost)
		if err != nil {
			m.exitErr(err)
			return nil
		}
		if cost, overflow = safeAdd(cost, extra); overflow {
			m.exitErr(ErrOutOfGas)
			return nil
		}
	}
	if cost > m.gas {
		m.exitErr(ErrOutOfGas)
		return nil
	}

	if m.tracer != nil {
		m.tracer.CaptureState(m.pc, op, m.gas, cost, m.depth)
	}

	m.gas -= cost
	if memSize > 0 {
		m.memory.Resize(memSize)
	}

	ret, err := operation.execute(m)
	if err != nil {
		if errors.Is(err, ErrRevert) {
			m.exitRevert(ret)
		} else {
			m.exitErr(err)
		}
		return nil
	}

	if m.pendingChild != nil {
		// The PC advances when the child result is consumed.
		return nil
	}
	if operation.halts {
		m.exitOk(ret)
		return nil
	}
	if operation.jumps {
		return nil
	}
	m.pc += 1 + uint64(op.PushBytes())
	return nil
}
