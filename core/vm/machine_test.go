package vm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/voyagervm/voyagervm/core/types"
	"github.com/voyagervm/voyagervm/crypto"
)

// push assembles a PUSHn instruction for the given immediate.
func push(data ...byte) []byte {
	out := []byte{byte(PUSH1) + byte(len(data)-1)}
	return append(out, data...)
}

func asm(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func TestEmptyProgram(t *testing.T) {
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), nil, 100000, EIP160Patch)

	if v.Status().Kind != StatusExitedOk {
		t.Fatalf("status = %s, want ExitedOk", v.Status())
	}
	if len(v.Out()) != 0 {
		t.Errorf("out = %x, want empty", v.Out())
	}
	if v.UsedGas() != 0 {
		t.Errorf("usedGas = %d, want 0", v.UsedGas())
	}
}

func TestPushAddProgram(t *testing.T) {
	// PUSH1 01 PUSH1 02 ADD (implicit stop past the end)
	code := types.FromHex("6001600201")
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)

	if v.Status().Kind != StatusExitedOk {
		t.Fatalf("status = %s", v.Status())
	}
	if v.UsedGas() != 9 {
		t.Errorf("usedGas = %d, want 9", v.UsedGas())
	}
	st := topFrame(v).stack
	if st.Len() != 1 || st.Peek().Uint64() != 3 {
		t.Errorf("stack = %v, want [3]", st.Data())
	}
}

func TestSstoreFresh(t *testing.T) {
	// PUSH1 07 PUSH1 00 SSTORE STOP
	code := types.FromHex("6007600055" + "00")
	self := testAddr(0xee)
	w := newTestWorld()
	w.addAccount(self, &worldAccount{code: code})
	v := runContext(t, w, self, code, 100000, EIP160Patch)

	if v.Status().Kind != StatusExitedOk {
		t.Fatalf("status = %s", v.Status())
	}
	if want := uint64(2*3 + 20000 + 0); v.UsedGas() != want {
		t.Errorf("usedGas = %d, want %d", v.UsedGas(), want)
	}
	changes := v.Accounts()
	if len(changes) != 1 || changes[0].Kind != ChangeFull {
		t.Fatalf("changes = %+v", changes)
	}
	got := changes[0].ChangingStorage[testSlot(0)]
	if got != testSlot(7) {
		t.Errorf("slot 0 = %v, want 7", got)
	}
}

func TestRevertWithMessage(t *testing.T) {
	msg := []byte("revert message") // 14 bytes
	code := asm(
		push(msg...), push(0x00), []byte{byte(MSTORE)},
		push(msg...), push(0x00), []byte{byte(SSTORE)},
		push(0x0e), push(0x12), []byte{byte(REVERT)},
	)
	self := testAddr(0xee)
	w := newTestWorld()
	w.addAccount(self, &worldAccount{code: code})
	v := runContext(t, w, self, code, 100000, EIP160Patch)

	st := v.Status()
	if st.Kind != StatusExitedErr || !errors.Is(st.Err, ErrRevert) {
		t.Fatalf("status = %s, want ExitedErr(Revert)", st)
	}
	if v.UsedGas() != 20024 {
		t.Errorf("usedGas = %d, want 20024", v.UsedGas())
	}
	if !bytes.Equal(v.Out(), msg) {
		t.Errorf("out = %q, want %q", v.Out(), msg)
	}
	if changes := v.Accounts(); len(changes) != 0 {
		t.Errorf("reverted execution leaked changes: %+v", changes)
	}
	if logs := v.Logs(); len(logs) != 0 {
		t.Errorf("reverted execution leaked logs: %+v", logs)
	}
	// Unused gas is preserved on revert.
	if v.AvailableGas() != 100000-20024 {
		t.Errorf("availableGas = %d", v.AvailableGas())
	}
}

func TestRevertDisabledBeforeEip160(t *testing.T) {
	code := asm(push(0x00), push(0x00), []byte{byte(REVERT)})
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP150Patch)

	if v.Status().Kind != StatusExitedNotSupported {
		t.Errorf("status = %s, want ExitedNotSupported", v.Status())
	}
}

func TestMstoreMloadRoundTrip(t *testing.T) {
	word := make([]byte, 32)
	for i := range word {
		word[i] = byte(i + 1)
	}
	code := asm(
		push(word...), push(0x00), []byte{byte(MSTORE)},
		push(0x00), []byte{byte(MLOAD)},
	)
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)

	if v.Status().Kind != StatusExitedOk {
		t.Fatalf("status = %s", v.Status())
	}
	top := topFrame(v).stack.Peek()
	if !bytes.Equal(top.Bytes(), bytes.TrimLeft(word, "\x00")) {
		t.Errorf("MLOAD = %x, want %x", top.Bytes(), word)
	}
}

func TestSha3Empty(t *testing.T) {
	// PUSH1 00 PUSH1 00 SHA3: hash of the empty range.
	code := types.FromHex("6000600020")
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)

	want := new(uint256.Int).SetBytes(crypto.Keccak256())
	if got := topFrame(v).stack.Peek(); !got.Eq(want) {
		t.Errorf("SHA3(empty) = %x, want %x", got.Bytes(), want.Bytes())
	}
}

func TestCodeCopySha3MatchesSource(t *testing.T) {
	// Copy the whole code to memory, hash it, and compare against hashing
	// the code directly.
	code := asm(
		push(0x0c), push(0x00), push(0x00), []byte{byte(CODECOPY)}, // len, codeOff, memOff
		push(0x0c), push(0x00), []byte{byte(SHA3)},
	)
	if len(code) != 0x0c {
		t.Fatalf("test code length = %d, expected 0x0c", len(code))
	}
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)

	want := new(uint256.Int).SetBytes(crypto.Keccak256(code))
	if got := topFrame(v).stack.Peek(); !got.Eq(want) {
		t.Errorf("SHA3(CODECOPY) = %x, want %x", got.Bytes(), want.Bytes())
	}
}

func TestSdivMinByMinusOne(t *testing.T) {
	min := make([]byte, 32)
	min[0] = 0x80 // -2^255
	neg1 := bytes.Repeat([]byte{0xff}, 32)
	// SDIV pops numerator first: push denominator, then numerator.
	code := asm(push(neg1...), push(min...), []byte{byte(SDIV)})
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)

	got := topFrame(v).stack.Peek()
	if !bytes.Equal(got.Bytes(), min) {
		t.Errorf("SDIV(MIN, -1) = %x, want MIN", got.Bytes())
	}
}

func TestDivModByZero(t *testing.T) {
	for _, op := range []OpCode{DIV, MOD} {
		code := asm(push(0x00), push(0x09), []byte{byte(op)})
		w := newTestWorld()
		v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)
		if got := topFrame(v).stack.Peek(); !got.IsZero() {
			t.Errorf("%s by zero = %d, want 0", op, got.Uint64())
		}
	}
	// ADDMOD(x, y, 0) = 0
	code := asm(push(0x00), push(0x03), push(0x04), []byte{byte(ADDMOD)})
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)
	if got := topFrame(v).stack.Peek(); !got.IsZero() {
		t.Errorf("ADDMOD mod 0 = %d, want 0", got.Uint64())
	}
}

func TestExpZeroExponent(t *testing.T) {
	// EXP pops base first: push exponent, then base.
	for _, base := range []byte{0x00, 0x05} {
		code := asm(push(0x00), push(base), []byte{byte(EXP)})
		w := newTestWorld()
		v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)
		if got := topFrame(v).stack.Peek(); got.Uint64() != 1 {
			t.Errorf("EXP(%d, 0) = %d, want 1", base, got.Uint64())
		}
	}
}

func TestExpByteCostPerPatch(t *testing.T) {
	// EXP with a one-byte exponent: 2 pushes + base 10 + expbyte.
	code := asm(push(0x02), push(0x03), []byte{byte(EXP)})

	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP150Patch)
	if want := uint64(6 + 10 + 10); v.UsedGas() != want {
		t.Errorf("eip150 EXP cost = %d, want %d", v.UsedGas(), want)
	}
	w = newTestWorld()
	v = runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)
	if want := uint64(6 + 10 + 50); v.UsedGas() != want {
		t.Errorf("eip160 EXP cost = %d, want %d", v.UsedGas(), want)
	}
}

func TestInvalidOpcodeConsumesAllGas(t *testing.T) {
	code := []byte{0xfe}
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 5000, EIP160Patch)

	st := v.Status()
	if st.Kind != StatusExitedErr || !errors.Is(st.Err, ErrInvalidOpcode) {
		t.Fatalf("status = %s", st)
	}
	if v.AvailableGas() != 0 {
		t.Errorf("availableGas = %d, want 0", v.AvailableGas())
	}
	if v.UsedGas() != 5000 {
		t.Errorf("usedGas = %d, want 5000", v.UsedGas())
	}
}

func TestStackUnderflow(t *testing.T) {
	code := []byte{byte(ADD)}
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 5000, EIP160Patch)

	st := v.Status()
	if st.Kind != StatusExitedErr || !errors.Is(st.Err, ErrStackUnderflow) {
		t.Fatalf("status = %s, want StackUnderflow", st)
	}
}

func TestJumpIntoPushData(t *testing.T) {
	// PUSH1 04 JUMP PUSH1 5b STOP: position 4 holds a 0x5b (JUMPDEST) byte
	// hidden in PUSH1's immediate data, so it is not a valid target.
	code := asm(push(0x04), []byte{byte(JUMP), byte(PUSH1), 0x5b, byte(STOP)})
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 5000, EIP160Patch)

	st := v.Status()
	if st.Kind != StatusExitedErr || !errors.Is(st.Err, ErrInvalidJumpDest) {
		t.Fatalf("status = %s, want InvalidJumpDest", st)
	}
}

func TestJumpiTakenAndNot(t *testing.T) {
	// PUSH1 01 PUSH1 08 JUMPI PUSH1 ff STOP JUMPDEST PUSH1 aa
	code := asm(
		push(0x01), push(0x08), []byte{byte(JUMPI)},
		push(0xff), []byte{byte(STOP)},
		[]byte{byte(JUMPDEST)}, push(0xaa),
	)
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 5000, EIP160Patch)
	if v.Status().Kind != StatusExitedOk {
		t.Fatalf("status = %s", v.Status())
	}
	if got := topFrame(v).stack.Peek(); got.Uint64() != 0xaa {
		t.Errorf("taken branch top = %#x, want 0xaa", got.Uint64())
	}

	// Condition zero: fall through to PUSH1 ff STOP.
	code[1] = 0x00
	w = newTestWorld()
	v = runContext(t, w, testAddr(0xee), code, 5000, EIP160Patch)
	if got := topFrame(v).stack.Peek(); got.Uint64() != 0xff {
		t.Errorf("fallthrough top = %#x, want 0xff", got.Uint64())
	}
}

func TestDelegateCallNotSupportedUnderFrontier(t *testing.T) {
	code := asm(
		push(0x00), push(0x00), push(0x00), push(0x00),
		push(0xdd), push(0x10), []byte{byte(DELEGATECALL)},
	)
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, FrontierPatch)

	st := v.Status()
	if st.Kind != StatusExitedNotSupported {
		t.Fatalf("status = %s, want ExitedNotSupported", st)
	}
}

func TestStaticFrameRejectsSstore(t *testing.T) {
	code := types.FromHex("6007600055")
	self := testAddr(0xee)
	w := newTestWorld()
	w.addAccount(self, &worldAccount{code: code})

	v := NewContextVM(Context{
		Address:  self,
		Caller:   testAddr(0xca),
		Origin:   testAddr(0xca),
		Code:     code,
		GasLimit: 100000,
		IsStatic: true,
	}, testHeader, EIP160Patch)
	w.fire(t, v)

	st := v.Status()
	if st.Kind != StatusExitedErr || !errors.Is(st.Err, ErrInvalidOpcode) {
		t.Fatalf("status = %s, want InvalidOpcode", st)
	}
}

func TestStaticFrameRejectsLogAndValueCall(t *testing.T) {
	logCode := asm(push(0x00), push(0x00), []byte{byte(LOG0)})
	w := newTestWorld()
	v := NewContextVM(Context{
		Address: testAddr(0xee), Caller: testAddr(0xca), Origin: testAddr(0xca),
		Code: logCode, GasLimit: 100000, IsStatic: true,
	}, testHeader, EIP160Patch)
	w.fire(t, v)
	if st := v.Status(); !errors.Is(st.Err, ErrInvalidOpcode) {
		t.Errorf("LOG0 in static frame: %s", st)
	}

	callee := testAddr(0xdd)
	callCode := asm(
		push(0x00), push(0x00), push(0x00), push(0x00),
		push(0x01), // value = 1
		push(callee[19]), push(0x10),
		[]byte{byte(CALL)},
	)
	self := testAddr(0xee)
	w = newTestWorld()
	w.addAccount(self, &worldAccount{balance: uint256.NewInt(100), code: callCode})
	w.addAccount(callee, &worldAccount{})
	v = NewContextVM(Context{
		Address: self, Caller: testAddr(0xca), Origin: testAddr(0xca),
		Code: callCode, GasLimit: 100000, IsStatic: true,
	}, testHeader, EIP160Patch)
	w.fire(t, v)
	if st := v.Status(); !errors.Is(st.Err, ErrInvalidOpcode) {
		t.Errorf("value CALL in static frame: %s", st)
	}
}

func TestMsizeWordAligned(t *testing.T) {
	// MSTORE8 at 0 expands to one word; MSIZE reports 32.
	code := asm(push(0x01), push(0x00), []byte{byte(MSTORE8), byte(MSIZE)})
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)
	if got := topFrame(v).stack.Peek(); got.Uint64() != 32 {
		t.Errorf("MSIZE = %d, want 32", got.Uint64())
	}
}

func TestBlockhashRange(t *testing.T) {
	// In-range block number requires a commitment.
	code := asm(push(0x13, 0x87), []byte{byte(BLOCKHASH)}) // 4999
	w := newTestWorld()
	w.blockhashes[4999] = testSlot(0xbb)
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)
	if got := topFrame(v).stack.Peek(); hashFromWord(got) != testSlot(0xbb) {
		t.Errorf("BLOCKHASH(4999) = %x", got.Bytes())
	}

	// Out of range: zero, and no commit request.
	code = asm(push(0x13, 0x88), []byte{byte(BLOCKHASH)}) // == current number
	v2 := NewContextVM(Context{
		Address: testAddr(0xee), Caller: testAddr(0xca), Origin: testAddr(0xca),
		Code: code, GasLimit: 100000,
	}, testHeader, EIP160Patch)
	if req := v2.Fire(); req != nil {
		t.Fatalf("out-of-range BLOCKHASH requested %s", req)
	}
	if got := topFrame(v2).stack.Peek(); !got.IsZero() {
		t.Errorf("out-of-range BLOCKHASH = %x, want 0", got.Bytes())
	}
}

func TestSstoreClearRefund(t *testing.T) {
	// Clearing a non-zero slot records R_SCLEAR.
	code := types.FromHex("6000600055")
	self := testAddr(0xee)
	w := newTestWorld()
	w.addAccount(self, &worldAccount{
		code:    code,
		storage: map[types.Hash]types.Hash{testSlot(0): testSlot(7)},
	})
	v := runContext(t, w, self, code, 100000, EIP160Patch)

	if v.Status().Kind != StatusExitedOk {
		t.Fatalf("status = %s", v.Status())
	}
	if v.RefundedGas() != RefundSstoreClear {
		t.Errorf("refund = %d, want %d", v.RefundedGas(), RefundSstoreClear)
	}
	if want := uint64(6 + GasSstoreReset); v.UsedGas() != want {
		t.Errorf("usedGas = %d, want %d", v.UsedGas(), want)
	}
}

func TestSelfdestructMovesBalance(t *testing.T) {
	self := testAddr(0xee)
	heir := testAddr(0x77)
	code := asm(push(heir[19]), []byte{byte(SELFDESTRUCT)})
	w := newTestWorld()
	w.addAccount(self, &worldAccount{balance: uint256.NewInt(1234), code: code})
	w.addAccount(heir, &worldAccount{balance: uint256.NewInt(1)})
	v := runContext(t, w, self, code, 100000, EIP160Patch)

	if v.Status().Kind != StatusExitedOk {
		t.Fatalf("status = %s", v.Status())
	}
	if removed := v.Removed(); len(removed) != 1 || removed[0] != self {
		t.Errorf("removed = %v", removed)
	}
	if v.RefundedGas() != RefundSelfdestruct {
		t.Errorf("refund = %d, want %d", v.RefundedGas(), RefundSelfdestruct)
	}
	var heirChange *AccountChange
	for i := range v.Accounts() {
		c := v.Accounts()[i]
		if c.Address == heir {
			heirChange = &c
		}
	}
	if heirChange == nil || heirChange.Balance.Uint64() != 1235 {
		t.Fatalf("beneficiary change = %+v", heirChange)
	}
}

func TestLogOrderingAndTopics(t *testing.T) {
	// Two LOG1 entries with different topics.
	code := asm(
		push(0x01), push(0x00), push(0x00), []byte{byte(LOG1)},
		push(0x02), push(0x00), push(0x00), []byte{byte(LOG1)},
	)
	w := newTestWorld()
	v := runContext(t, w, testAddr(0xee), code, 100000, EIP160Patch)

	logs := v.Logs()
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	if logs[0].Topics[0] != testSlot(1) || logs[1].Topics[0] != testSlot(2) {
		t.Errorf("log topics out of order: %v", logs)
	}
	if logs[0].Address != testAddr(0xee) {
		t.Errorf("log address = %s", logs[0].Address)
	}
}

func TestRequestDeterminism(t *testing.T) {
	self := testAddr(0xee)
	code := asm(push(0x42), []byte{byte(SLOAD)}, push(0x99), []byte{byte(BALANCE)})
	collect := func() []string {
		v := NewContextVM(Context{
			Address: self, Caller: testAddr(0xca), Origin: testAddr(0xca),
			Code: code, GasLimit: 100000,
		}, testHeader, EIP160Patch)
		var reqs []string
		w := newTestWorld()
		w.addAccount(self, &worldAccount{code: code})
		for {
			req := v.Fire()
			if req == nil {
				return reqs
			}
			reqs = append(reqs, req.String())
			w.satisfy(t, v, req)
		}
	}
	first := collect()
	second := collect()
	if len(first) == 0 {
		t.Fatal("expected at least one commit request")
	}
	if len(first) != len(second) {
		t.Fatalf("request counts differ: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("request %d differs: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestStepFireEquivalence(t *testing.T) {
	code := types.FromHex("6001600201")
	run := func(useFire bool) *VM {
		v := NewContextVM(Context{
			Address: testAddr(0xee), Caller: testAddr(0xca), Origin: testAddr(0xca),
			Code: code, GasLimit: 100000,
		}, testHeader, EIP160Patch)
		if useFire {
			if req := v.Fire(); req != nil {
				t.Fatalf("unexpected require %s", req)
			}
		} else {
			for v.Status().Running() {
				if req := v.Step(); req != nil {
					t.Fatalf("unexpected require %s", req)
				}
			}
		}
		return v
	}
	a, b := run(true), run(false)
	if a.UsedGas() != b.UsedGas() || a.Status().Kind != b.Status().Kind {
		t.Errorf("fire/step divergence: %d/%s vs %d/%s",
			a.UsedGas(), a.Status(), b.UsedGas(), b.Status())
	}
}

func TestPeekOpcode(t *testing.T) {
	code := types.FromHex("6001600201")
	v := NewContextVM(Context{
		Address: testAddr(0xee), Caller: testAddr(0xca), Origin: testAddr(0xca),
		Code: code, GasLimit: 100000,
	}, testHeader, EIP160Patch)

	op, ok := v.PeekOpcode()
	if !ok || op != PUSH1 {
		t.Fatalf("PeekOpcode = %v, %v", op, ok)
	}
	ins, ok := v.Peek()
	if !ok || ins.Op != PUSH1 || len(ins.Immediate) != 1 || ins.Immediate[0] != 0x01 {
		t.Fatalf("Peek = %+v", ins)
	}
	if req := v.Step(); req != nil {
		t.Fatal(req)
	}
	op, _ = v.PeekOpcode()
	if op != PUSH1 {
		t.Errorf("after one step, PeekOpcode = %v", op)
	}
	ins, _ = v.Peek()
	if ins.Position != 2 || ins.Immediate[0] != 0x02 {
		t.Errorf("after one step, Peek = %+v", ins)
	}
}
