package vm

import (
	"github.com/holiman/uint256"

	"github.com/voyagervm/voyagervm/core/types"
)

type vmPhase int

const (
	phasePre vmPhase = iota
	phaseRun
	phaseDone
)

// Instruction is a decoded opcode with its immediate bytes.
type Instruction struct {
	Op        OpCode
	Immediate []byte
	Position  uint64
}

// VM executes one transaction (or one bare context) against a patch and a
// block header. It owns the frame stack and the caches; all world state is
// pulled from the embedder through the Require/commit protocol.
type VM struct {
	patch       *Patch
	header      *BlockHeader
	table       *JumpTable
	blockhashes *BlockhashCache
	tracer      Tracer

	tx  *Transaction // transaction mode
	ctx *Context     // context mode

	// rootState holds the pre-frame debits (upfront gas, nonce bump) so a
	// failed execution can be settled without its discarded changes.
	rootState *evalState
	frames    []*machine

	phase       vmPhase
	status      Status
	out         []byte
	intrinsic   uint64
	createAddr  types.Address
	usedGas     uint64
	refundedGas uint64
	availGas    uint64
	finalState  *evalState
}

// NewVM builds a transaction-level VM: intrinsic gas, preclaim and nonce
// rules apply, and the result is finalized with refunds and beneficiary
// crediting.
func NewVM(tx *Transaction, header *BlockHeader, patch *Patch) *VM {
	if tx.GasPrice == nil {
		tx.GasPrice = uint256.NewInt(0)
	}
	if tx.Value == nil {
		tx.Value = uint256.NewInt(0)
	}
	return &VM{
		patch:       patch,
		header:      header,
		table:       newJumpTable(patch),
		blockhashes: newBlockhashCache(),
		tx:          tx,
		rootState:   newEvalState(),
	}
}

// NewContextVM builds a frame-level VM around a single context, without
// the transaction wrapper. Intrinsic gas, preclaim and finalization are
// the embedder's business.
func NewContextVM(ctx Context, header *BlockHeader, patch *Patch) *VM {
	if ctx.GasPrice == nil {
		ctx.GasPrice = uint256.NewInt(0)
	}
	if ctx.Value == nil {
		ctx.Value = uint256.NewInt(0)
	}
	if ctx.ApparentValue == nil {
		ctx.ApparentValue = ctx.Value
	}
	vm := &VM{
		patch:       patch,
		header:      header,
		table:       newJumpTable(patch),
		blockhashes: newBlockhashCache(),
		ctx:         &ctx,
		rootState:   newEvalState(),
	}
	m := newMachine(ctx, patch, header, vm.table, vm.blockhashes, vm.rootState.derive(), 0, vm.tracer)
	vm.frames = []*machine{m}
	vm.phase = phaseRun
	return vm
}

// SetTracer installs a step tracer. Call it before the first Step.
func (vm *VM) SetTracer(t Tracer) {
	vm.tracer = t
	for _, m := range vm.frames {
		m.tracer = t
	}
}

// Step advances the VM by one unit of progress: one instruction, one frame
// transition, or one stage of pre-execution. A non-nil Require means
// nothing happened and the embedder must commit the named state first.
func (vm *VM) Step() *Require {
	switch vm.phase {
	case phasePre:
		return vm.preStep()
	case phaseRun:
		m := vm.frames[len(vm.frames)-1]
		if m.status.Running() {
			if m.pendingChild != nil {
				vm.spawnChild(m)
				return nil
			}
			return m.step()
		}
		if vm.tracer != nil {
			vm.tracer.CaptureFrameEnd(m.status, m.gas, m.depth)
		}
		if len(vm.frames) > 1 {
			parent := vm.frames[len(vm.frames)-2]
			vm.frames = vm.frames[:len(vm.frames)-1]
			parent.finishChild(m)
			return nil
		}
		vm.finalize(m)
		return nil
	}
	return nil
}

// Fire repeats Step until the VM is no longer running, returning each
// commit request to the embedder as it arises.
func (vm *VM) Fire() *Require {
	for vm.Status().Running() {
		if req := vm.Step(); req != nil {
			return req
		}
	}
	return nil
}

// preStep validates the transaction and constructs the top-level frame.
// It may suspend on the caller or callee account.
func (vm *VM) preStep() *Require {
	tx := vm.tx
	p := vm.patch
	accounts := vm.rootState.accounts

	if tx.IsSystem() && !tx.GasPrice.IsZero() {
		vm.exitPre(ErrInvalidCaller)
		return nil
	}
	intrinsic, overflow := intrinsicGas(tx, p)
	if overflow || tx.GasLimit < intrinsic {
		vm.exitPre(ErrInsufficientGasLimit)
		return nil
	}
	vm.intrinsic = intrinsic

	// Gather every commit request before mutating anything, so a suspended
	// pre-execution can be re-entered from the top.
	caller := tx.caller()
	var callerNonce uint64
	if !tx.IsSystem() {
		if req := accounts.requireAccountFor(caller); req != nil {
			return req
		}
		callerNonce, _ = accounts.nonce(caller)
	}
	var created types.Address
	if tx.IsCreate() {
		created = createdAddress(caller, callerNonce)
		if req := accounts.requireAccountFor(created); req != nil {
			return req
		}
	} else {
		if req := accounts.requireAccountFor(*tx.Address); req != nil {
			return req
		}
		if _, req := accounts.code(*tx.Address); req != nil {
			return req
		}
	}

	if !tx.IsSystem() {
		if tx.Nonce != nil && *tx.Nonce != callerNonce {
			vm.exitPre(ErrInvalidNonce)
			return nil
		}
		upfront, overflow := new(uint256.Int).MulOverflow(tx.GasPrice, uint256.NewInt(tx.GasLimit))
		if overflow {
			vm.exitPre(ErrInsufficientBalance)
			return nil
		}
		total, overflow := new(uint256.Int).AddOverflow(upfront, tx.Value)
		if overflow {
			vm.exitPre(ErrInsufficientBalance)
			return nil
		}
		balance, _ := accounts.balance(caller)
		if balance.Lt(total) {
			vm.exitPre(ErrInsufficientBalance)
			return nil
		}
		accounts.subBalance(caller, upfront)
		accounts.setNonce(caller, callerNonce+1)
	}

	frameGas := tx.GasLimit - intrinsic

	if tx.IsCreate() {
		code, _ := accounts.code(created)
		createdNonce, _ := accounts.nonce(created)
		exists, _ := accounts.exists(created)
		if exists && (len(code) > 0 || createdNonce > 0) {
			vm.exitCollision()
			return nil
		}

		state := vm.rootState.derive()
		state.accounts.createAccount(created)
		if p.Eip161Empty {
			state.accounts.setNonce(created, 1)
		}
		if !tx.Value.IsZero() {
			if !tx.IsSystem() {
				state.accounts.subBalance(caller, tx.Value)
			}
			state.accounts.addBalance(created, tx.Value)
		}
		vm.createAddr = created
		ctx := Context{
			Address:       created,
			Caller:        caller,
			Origin:        caller,
			Code:          tx.Input,
			GasLimit:      frameGas,
			GasPrice:      tx.GasPrice,
			Value:         tx.Value,
			ApparentValue: tx.Value,
			IsSystem:      tx.IsSystem(),
		}
		vm.pushTopFrame(ctx, state)
		return nil
	}

	target := *tx.Address
	code, _ := accounts.code(target)

	state := vm.rootState.derive()
	exists, _ := state.accounts.exists(target)
	if !exists && (!p.Eip161Empty || !tx.Value.IsZero()) {
		state.accounts.createAccount(target)
	}
	if !tx.Value.IsZero() {
		if !tx.IsSystem() {
			state.accounts.subBalance(caller, tx.Value)
		}
		state.accounts.addBalance(target, tx.Value)
	}
	ctx := Context{
		Address:       target,
		Caller:        caller,
		Origin:        caller,
		Data:          tx.Input,
		Code:          code,
		GasLimit:      frameGas,
		GasPrice:      tx.GasPrice,
		Value:         tx.Value,
		ApparentValue: tx.Value,
		IsSystem:      tx.IsSystem(),
	}
	vm.pushTopFrame(ctx, state)
	return nil
}

func (vm *VM) pushTopFrame(ctx Context, state *evalState) {
	m := newMachine(ctx, vm.patch, vm.header, vm.table, vm.blockhashes, state, 0, vm.tracer)
	vm.frames = []*machine{m}
	vm.phase = phaseRun
	if vm.tracer != nil {
		vm.tracer.CaptureFrameStart(ctx.Address, ctx.GasLimit, 0)
	}
}

// exitPre reports a pre-execution failure: no frame ran, no state changed,
// no gas was consumed.
func (vm *VM) exitPre(err error) {
	vm.phase = phaseDone
	vm.status = Status{Kind: StatusExitedErr, Err: err}
	vm.finalState = newEvalState()
}

// exitCollision settles a creation-transaction address collision: the
// whole gas limit is consumed.
func (vm *VM) exitCollision() {
	tx := vm.tx
	vm.phase = phaseDone
	vm.status = Status{Kind: StatusExitedErr, Err: ErrCreateCollision}
	vm.usedGas = tx.GasLimit
	state := vm.rootState
	if !tx.IsSystem() && !tx.GasPrice.IsZero() {
		fee := new(uint256.Int).Mul(tx.GasPrice, uint256.NewInt(tx.GasLimit))
		state.accounts.addBalance(vm.header.Coinbase, fee)
	}
	vm.finalState = state
}

// spawnChild turns a frame's pending childSpec into a new deepest frame,
// applying value movement and account creation to the child's private
// overlay.
func (vm *VM) spawnChild(parent *machine) {
	spec := parent.pendingChild
	state := parent.state.derive()
	accounts := state.accounts

	if spec.isCreate {
		accounts.createAccount(spec.createAddr)
		if vm.patch.Eip161Empty {
			accounts.setNonce(spec.createAddr, 1)
		}
	} else if spec.createTarget {
		if exists, _ := accounts.exists(spec.transferTo); !exists {
			if !vm.patch.Eip161Empty || (spec.transferValue != nil && !spec.transferValue.IsZero()) {
				accounts.createAccount(spec.transferTo)
			}
		}
	}
	if spec.transferValue != nil && !spec.transferValue.IsZero() {
		accounts.subBalance(spec.transferFrom, spec.transferValue)
		accounts.addBalance(spec.transferTo, spec.transferValue)
	}

	child := newMachine(spec.ctx, vm.patch, vm.header, vm.table, vm.blockhashes, state, parent.depth+1, vm.tracer)
	vm.frames = append(vm.frames, child)
	if vm.tracer != nil {
		vm.tracer.CaptureFrameStart(spec.ctx.Address, spec.gas, child.depth)
	}
}

// finalize settles the top-level frame into the VM's terminal state.
func (vm *VM) finalize(m *machine) {
	vm.phase = phaseDone

	if vm.ctx != nil {
		vm.status = m.status
		vm.out = m.out
		vm.availGas = m.gas
		vm.usedGas = vm.ctx.GasLimit - m.gas
		if m.status.Kind == StatusExitedOk {
			vm.finalState = m.state
			vm.refundedGas = m.state.refund
		} else {
			vm.finalState = newEvalState()
		}
		return
	}

	tx := vm.tx
	p := vm.patch
	status := m.status
	out := m.out
	frameGas := m.gas
	state := m.state

	if status.Kind == StatusExitedOk && tx.IsCreate() {
		code := m.out
		deposit, overflow := safeMul(uint64(len(code)), GasCodeDeposit)
		switch {
		case !overflow && frameGas >= deposit:
			frameGas -= deposit
			state.accounts.setCode(vm.createAddr, code)
		case p.ForceCodeDeposit:
			// Creation stands with empty code.
		default:
			status = Status{Kind: StatusExitedErr, Err: ErrOutOfGas}
			frameGas = 0
		}
	}

	if status.Kind != StatusExitedOk {
		// Execution changes are discarded; the pre-frame debits stand.
		state = vm.rootState
	}

	frameLimit := tx.GasLimit - vm.intrinsic
	frameUsed := frameLimit - frameGas
	totalUsed := vm.intrinsic + frameUsed

	var refund uint64
	if status.Kind == StatusExitedOk {
		refund = totalUsed / 2
		if m.state.refund < refund {
			refund = m.state.refund
		}
	}
	usedGas := totalUsed - refund

	if !tx.IsSystem() && !tx.GasPrice.IsZero() {
		fee := new(uint256.Int).Mul(tx.GasPrice, uint256.NewInt(usedGas))
		state.accounts.addBalance(vm.header.Coinbase, fee)
		if remaining := tx.GasLimit - usedGas; remaining > 0 {
			back := new(uint256.Int).Mul(tx.GasPrice, uint256.NewInt(remaining))
			state.accounts.addBalance(tx.caller(), back)
		}
	}

	vm.status = status
	vm.out = out
	vm.usedGas = usedGas
	vm.refundedGas = refund
	vm.availGas = frameGas
	vm.finalState = state
}

// CommitAccount fulfills an account-shaped Require. The commitment is
// installed into every live frame so the whole stack can answer from
// cache.
func (vm *VM) CommitAccount(c AccountCommitment) error {
	if err := vm.rootState.accounts.commit(c); err != nil {
		return err
	}
	for _, m := range vm.frames {
		if err := m.state.accounts.commit(c); err != nil {
			return err
		}
	}
	return nil
}

// CommitBlockhash fulfills a Blockhash Require.
func (vm *VM) CommitBlockhash(number uint64, hash types.Hash) error {
	return vm.blockhashes.commit(number, hash)
}

// Status returns the lifecycle state of the VM.
func (vm *VM) Status() Status {
	if vm.phase != phaseDone {
		return Status{Kind: StatusRunning}
	}
	return vm.status
}

// currentState picks the state view accessors read from.
func (vm *VM) currentState() *evalState {
	if vm.finalState != nil {
		return vm.finalState
	}
	if len(vm.frames) > 0 {
		return vm.frames[len(vm.frames)-1].state
	}
	return vm.rootState
}

// Accounts returns the account changes of the execution, in first-touch
// order. Meaningful once the VM reached a terminal status.
func (vm *VM) Accounts() []AccountChange {
	return vm.currentState().accounts.changes(vm.patch)
}

// Logs returns the emitted log events in execution order.
func (vm *VM) Logs() []types.Log {
	logs := vm.currentState().logs
	out := make([]types.Log, len(logs))
	copy(out, logs)
	return out
}

// Removed returns the self-destructed accounts in removal order.
func (vm *VM) Removed() []types.Address {
	return vm.currentState().accounts.removedAccounts()
}

// Out returns the return data of the execution.
func (vm *VM) Out() []byte {
	return vm.out
}

// UsedGas returns the gas consumed by the execution (net of refunds in
// transaction mode).
func (vm *VM) UsedGas() uint64 {
	return vm.usedGas
}

// AvailableGas returns the gas remaining in the deepest frame, or the
// final remainder once terminal.
func (vm *VM) AvailableGas() uint64 {
	if vm.phase == phaseDone {
		return vm.availGas
	}
	if len(vm.frames) > 0 {
		return vm.frames[len(vm.frames)-1].gas
	}
	if vm.tx != nil {
		return vm.tx.GasLimit
	}
	return 0
}

// RefundedGas returns the refund credited at finalization (transaction
// mode) or the accumulated refund counter (context mode).
func (vm *VM) RefundedGas() uint64 {
	return vm.refundedGas
}

// PeekOpcode returns the opcode the next Step would execute, if any.
func (vm *VM) PeekOpcode() (OpCode, bool) {
	if vm.phase != phaseRun || len(vm.frames) == 0 {
		return STOP, false
	}
	return vm.frames[len(vm.frames)-1].peekOp()
}

// Peek returns the decoded instruction the next Step would execute, if
// any.
func (vm *VM) Peek() (Instruction, bool) {
	if vm.phase != phaseRun || len(vm.frames) == 0 {
		return Instruction{}, false
	}
	m := vm.frames[len(vm.frames)-1]
	op, ok := m.peekOp()
	if !ok {
		return Instruction{}, false
	}
	ins := Instruction{Op: op, Position: m.pc}
	if n := op.PushBytes(); n > 0 {
		start := m.pc + 1
		end := start + uint64(n)
		if end > m.program.length() {
			end = m.program.length()
		}
		if start < end {
			ins.Immediate = append([]byte(nil), m.ctx.Code[start:end]...)
		}
	}
	return ins, true
}
