package vm

import "github.com/holiman/uint256"

// executionFunc runs one opcode against its frame. The returned bytes are
// only meaningful for halting opcodes.
type executionFunc func(m *machine) ([]byte, error)

// dynamicGasFunc returns the opcode-specific surcharge. costSoFar is the
// constant plus memory-expansion gas already accumulated for this step, so
// call-family costing can see what is left to forward.
type dynamicGasFunc func(m *machine, costSoFar uint64) (uint64, error)

// requireFunc reports the world state the opcode needs before any gas is
// charged, or nil when the cache can answer everything.
type requireFunc func(m *machine) *Require

// memorySizeFunc returns the memory span an operation touches, in bytes,
// and whether the operands overflow.
type memorySizeFunc func(st *Stack) (uint64, bool)

// operation is a single opcode's execution metadata.
type operation struct {
	execute     executionFunc
	constantGas uint64
	dynamicGas  dynamicGasFunc
	requires    requireFunc
	memorySize  memorySizeFunc
	minStack    int
	maxStack    int
	enabled     func(p *Patch) bool // nil = always; false -> ExitedNotSupported
	halts       bool                // STOP, RETURN, REVERT, SELFDESTRUCT
	jumps       bool                // JUMP, JUMPI manage the PC themselves
	writes      bool                // forbidden inside a static frame
}

// JumpTable maps every opcode byte to its operation definition.
type JumpTable [256]*operation

func minStack(pops, pushes int) int { return pops }

func maxStack(pops, pushes int) int { return stackLimit + pops - pushes }

// calcMemSize returns offset+length, flagging operand overflow. A zero
// length never expands memory regardless of offset.
func calcMemSize(offset, length *uint256.Int) (uint64, bool) {
	if length.IsZero() {
		return 0, false
	}
	off, overflow := offset.Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	l, overflow := length.Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	size, overflow := safeAdd(off, l)
	return size, overflow
}

func memoryMload(st *Stack) (uint64, bool) {
	off, overflow := st.Back(0).Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	return safeAdd(off, 32)
}

func memoryMstore(st *Stack) (uint64, bool) {
	return memoryMload(st)
}

func memoryMstore8(st *Stack) (uint64, bool) {
	off, overflow := st.Back(0).Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	return safeAdd(off, 1)
}

func memorySha3(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), st.Back(1))
}

func memoryReturn(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), st.Back(1))
}

func memoryLog(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), st.Back(1))
}

func memoryCalldataCopy(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), st.Back(2))
}

func memoryCodeCopy(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(0), st.Back(2))
}

func memoryExtCodeCopy(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(1), st.Back(3))
}

// memoryCall covers both the input and output spans of CALL/CALLCODE.
// Stack: gas, addr, value, inOffset, inLen, outOffset, outLen.
func memoryCall(st *Stack) (uint64, bool) {
	in, overflow := calcMemSize(st.Back(3), st.Back(4))
	if overflow {
		return 0, true
	}
	out, overflow := calcMemSize(st.Back(5), st.Back(6))
	if overflow {
		return 0, true
	}
	if in > out {
		return in, false
	}
	return out, false
}

// memoryDelegateCall is memoryCall without the value operand.
// Stack: gas, addr, inOffset, inLen, outOffset, outLen.
func memoryDelegateCall(st *Stack) (uint64, bool) {
	in, overflow := calcMemSize(st.Back(2), st.Back(3))
	if overflow {
		return 0, true
	}
	out, overflow := calcMemSize(st.Back(4), st.Back(5))
	if overflow {
		return 0, true
	}
	if in > out {
		return in, false
	}
	return out, false
}

// memoryCreate covers the init code span. Stack: value, offset, length.
func memoryCreate(st *Stack) (uint64, bool) {
	return calcMemSize(st.Back(1), st.Back(2))
}

func delegateCallEnabled(p *Patch) bool { return p.HasDelegateCall }
func staticCallEnabled(p *Patch) bool   { return p.HasStaticCall }
func revertEnabled(p *Patch) bool       { return p.HasRevert }

// newJumpTable builds the dispatch table for a patch. Patch-dependent base
// costs are baked into constantGas; feature gates stay behind the enabled
// hook so a disabled opcode reports ExitedNotSupported rather than
// InvalidOpcode.
func newJumpTable(p *Patch) *JumpTable {
	var tbl JumpTable

	tbl[STOP] = &operation{execute: opStop, constantGas: GasZero, minStack: minStack(0, 0), maxStack: maxStack(0, 0), halts: true}
	tbl[ADD] = &operation{execute: opAdd, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[MUL] = &operation{execute: opMul, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SUB] = &operation{execute: opSub, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[DIV] = &operation{execute: opDiv, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SDIV] = &operation{execute: opSdiv, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[MOD] = &operation{execute: opMod, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SMOD] = &operation{execute: opSmod, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[ADDMOD] = &operation{execute: opAddmod, constantGas: GasMid, minStack: minStack(3, 1), maxStack: maxStack(3, 1)}
	tbl[MULMOD] = &operation{execute: opMulmod, constantGas: GasMid, minStack: minStack(3, 1), maxStack: maxStack(3, 1)}
	tbl[EXP] = &operation{execute: opExp, constantGas: GasExpBase, dynamicGas: gasExp, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SIGNEXTEND] = &operation{execute: opSignExtend, constantGas: GasLow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}

	tbl[LT] = &operation{execute: opLt, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[GT] = &operation{execute: opGt, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SLT] = &operation{execute: opSlt, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SGT] = &operation{execute: opSgt, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[EQ] = &operation{execute: opEq, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[ISZERO] = &operation{execute: opIszero, constantGas: GasVerylow, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[AND] = &operation{execute: opAnd, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[OR] = &operation{execute: opOr, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[XOR] = &operation{execute: opXor, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[NOT] = &operation{execute: opNot, constantGas: GasVerylow, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[BYTE] = &operation{execute: opByte, constantGas: GasVerylow, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}

	tbl[SHA3] = &operation{execute: opSha3, constantGas: GasSha3, dynamicGas: gasSha3, memorySize: memorySha3, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}

	tbl[ADDRESS] = &operation{execute: opAddress, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[BALANCE] = &operation{execute: opBalance, constantGas: p.GasBalance, requires: requiresBalance, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[ORIGIN] = &operation{execute: opOrigin, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CALLER] = &operation{execute: opCaller, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CALLVALUE] = &operation{execute: opCallValue, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CALLDATALOAD] = &operation{execute: opCalldataLoad, constantGas: GasVerylow, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[CALLDATASIZE] = &operation{execute: opCalldataSize, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CALLDATACOPY] = &operation{execute: opCalldataCopy, constantGas: GasVerylow, dynamicGas: gasCopy3, memorySize: memoryCalldataCopy, minStack: minStack(3, 0), maxStack: maxStack(3, 0)}
	tbl[CODESIZE] = &operation{execute: opCodeSize, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CODECOPY] = &operation{execute: opCodeCopy, constantGas: GasVerylow, dynamicGas: gasCopy3, memorySize: memoryCodeCopy, minStack: minStack(3, 0), maxStack: maxStack(3, 0)}
	tbl[GASPRICE] = &operation{execute: opGasPrice, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[EXTCODESIZE] = &operation{execute: opExtCodeSize, constantGas: p.GasExtcode, requires: requiresExtCode, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[EXTCODECOPY] = &operation{execute: opExtCodeCopy, constantGas: p.GasExtcode, dynamicGas: gasExtCodeCopy, requires: requiresExtCode, memorySize: memoryExtCodeCopy, minStack: minStack(4, 0), maxStack: maxStack(4, 0)}

	tbl[BLOCKHASH] = &operation{execute: opBlockhash, constantGas: GasBlockhash, requires: requiresBlockhash, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[COINBASE] = &operation{execute: opCoinbase, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[TIMESTAMP] = &operation{execute: opTimestamp, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[NUMBER] = &operation{execute: opNumber, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[DIFFICULTY] = &operation{execute: opDifficulty, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[GASLIMIT] = &operation{execute: opGasLimit, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}

	tbl[POP] = &operation{execute: opPop, constantGas: GasBase, minStack: minStack(1, 0), maxStack: maxStack(1, 0)}
	tbl[MLOAD] = &operation{execute: opMload, constantGas: GasVerylow, memorySize: memoryMload, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[MSTORE] = &operation{execute: opMstore, constantGas: GasVerylow, memorySize: memoryMstore, minStack: minStack(2, 0), maxStack: maxStack(2, 0)}
	tbl[MSTORE8] = &operation{execute: opMstore8, constantGas: GasVerylow, memorySize: memoryMstore8, minStack: minStack(2, 0), maxStack: maxStack(2, 0)}
	tbl[SLOAD] = &operation{execute: opSload, constantGas: p.GasSload, requires: requiresSload, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[SSTORE] = &operation{execute: opSstore, dynamicGas: gasSstore, requires: requiresSstore, minStack: minStack(2, 0), maxStack: maxStack(2, 0), writes: true}
	tbl[JUMP] = &operation{execute: opJump, constantGas: GasMid, minStack: minStack(1, 0), maxStack: maxStack(1, 0), jumps: true}
	tbl[JUMPI] = &operation{execute: opJumpi, constantGas: GasHigh, minStack: minStack(2, 0), maxStack: maxStack(2, 0), jumps: true}
	tbl[PC] = &operation{execute: opPc, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[MSIZE] = &operation{execute: opMsize, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[GAS] = &operation{execute: opGas, constantGas: GasBase, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[JUMPDEST] = &operation{execute: opJumpdest, constantGas: GasJumpDest, minStack: minStack(0, 0), maxStack: maxStack(0, 0)}

	for i := 0; i < 32; i++ {
		op := PUSH1 + OpCode(i)
		tbl[op] = &operation{execute: makePush(uint64(i + 1)), constantGas: GasVerylow, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	}
	for i := 0; i < 16; i++ {
		n := i + 1
		tbl[DUP1+OpCode(i)] = &operation{execute: makeDup(n), constantGas: GasVerylow, minStack: minStack(n, n+1), maxStack: maxStack(n, n+1)}
		tbl[SWAP1+OpCode(i)] = &operation{execute: makeSwap(n), constantGas: GasVerylow, minStack: minStack(n+1, n+1), maxStack: maxStack(n+1, n+1)}
	}
	for i := 0; i <= 4; i++ {
		topics := i
		tbl[LOG0+OpCode(i)] = &operation{
			execute:    makeLog(topics),
			dynamicGas: gasLogFunc(topics),
			memorySize: memoryLog,
			minStack:   minStack(topics+2, 0),
			maxStack:   maxStack(topics+2, 0),
			writes:     true,
		}
	}

	tbl[CREATE] = &operation{execute: opCreate, constantGas: GasCreate, requires: requiresCreate, memorySize: memoryCreate, minStack: minStack(3, 1), maxStack: maxStack(3, 1), writes: true}
	tbl[CALL] = &operation{execute: opCall, constantGas: p.GasCall, dynamicGas: gasCall, requires: requiresCall, memorySize: memoryCall, minStack: minStack(7, 1), maxStack: maxStack(7, 1)}
	tbl[CALLCODE] = &operation{execute: opCallCode, constantGas: p.GasCall, dynamicGas: gasCallCode, requires: requiresCallCode, memorySize: memoryCall, minStack: minStack(7, 1), maxStack: maxStack(7, 1)}
	tbl[RETURN] = &operation{execute: opReturn, constantGas: GasZero, memorySize: memoryReturn, minStack: minStack(2, 0), maxStack: maxStack(2, 0), halts: true}
	tbl[DELEGATECALL] = &operation{execute: opDelegateCall, constantGas: p.GasCall, dynamicGas: gasDelegateCall, requires: requiresDelegateCall, memorySize: memoryDelegateCall, minStack: minStack(6, 1), maxStack: maxStack(6, 1), enabled: delegateCallEnabled}
	tbl[STATICCALL] = &operation{execute: opStaticCall, constantGas: p.GasCall, dynamicGas: gasDelegateCall, requires: requiresDelegateCall, memorySize: memoryDelegateCall, minStack: minStack(6, 1), maxStack: maxStack(6, 1), enabled: staticCallEnabled}
	tbl[REVERT] = &operation{execute: opRevert, constantGas: GasZero, memorySize: memoryReturn, minStack: minStack(2, 0), maxStack: maxStack(2, 0), halts: true, enabled: revertEnabled}
	tbl[SELFDESTRUCT] = &operation{execute: opSelfdestruct, constantGas: p.GasSuicide, dynamicGas: gasSelfdestruct, requires: requiresSelfdestruct, minStack: minStack(1, 0), maxStack: maxStack(1, 0), halts: true, writes: true}

	return &tbl
}
