package vm

import (
	"math"
	"testing"
)

func TestMemoryGasQuadratic(t *testing.T) {
	cases := []struct {
		words uint64
		want  uint64
	}{
		{0, 0},
		{1, 3},
		{2, 6},
		{32, 98},   // 96 + 1024/512
		{1024, 5120}, // 3072 + 1048576/512
	}
	for _, c := range cases {
		got, overflow := memoryGas(c.words)
		if overflow {
			t.Fatalf("memoryGas(%d) overflowed", c.words)
		}
		if got != c.want {
			t.Errorf("memoryGas(%d) = %d, want %d", c.words, got, c.want)
		}
	}
}

func TestMemoryGasOverflow(t *testing.T) {
	if _, overflow := memoryGas(maxMemoryWords + 1); !overflow {
		t.Error("oversized word count did not flag overflow")
	}
}

func TestToWordSize(t *testing.T) {
	cases := []struct{ size, want uint64 }{
		{0, 0}, {1, 1}, {32, 1}, {33, 2}, {64, 2}, {65, 3},
	}
	for _, c := range cases {
		if got := toWordSize(c.size); got != c.want {
			t.Errorf("toWordSize(%d) = %d, want %d", c.size, got, c.want)
		}
	}
	if got := toWordSize(math.MaxUint64); got != math.MaxUint64/32+1 {
		t.Errorf("toWordSize saturation = %d", got)
	}
}

func TestForwardableGas(t *testing.T) {
	cases := []struct{ gas, want uint64 }{
		{0, 0},
		{64, 63},
		{1000, 984}, // 1000 * 63 / 64
		{6400, 6300},
	}
	for _, c := range cases {
		if got := forwardableGas(c.gas); got != c.want {
			t.Errorf("forwardableGas(%d) = %d, want %d", c.gas, got, c.want)
		}
	}
	// No overflow near the top of the range.
	if got := forwardableGas(math.MaxUint64); got < math.MaxUint64/64*63 {
		t.Errorf("forwardableGas(max) = %d looks wrapped", got)
	}
}

func TestSafeArith(t *testing.T) {
	if _, overflow := safeAdd(math.MaxUint64, 1); !overflow {
		t.Error("safeAdd missed overflow")
	}
	if v, overflow := safeAdd(1, 2); overflow || v != 3 {
		t.Errorf("safeAdd(1,2) = %d,%v", v, overflow)
	}
	if _, overflow := safeMul(math.MaxUint64, 2); !overflow {
		t.Error("safeMul missed overflow")
	}
	if v, overflow := safeMul(0, math.MaxUint64); overflow || v != 0 {
		t.Errorf("safeMul(0,max) = %d,%v", v, overflow)
	}
}

func TestIntrinsicGas(t *testing.T) {
	addr := testAddr(0xaa)
	tx := &Transaction{Address: &addr, Input: []byte{0, 1, 0, 2}, GasLimit: 100000}
	gas, overflow := intrinsicGas(tx, EIP160Patch)
	if overflow {
		t.Fatal("unexpected overflow")
	}
	want := GasTransaction + 2*GasTxDataZero + 2*GasTxDataNonzero
	if gas != want {
		t.Errorf("intrinsicGas = %d, want %d", gas, want)
	}

	create := &Transaction{Input: nil, GasLimit: 100000}
	gas, _ = intrinsicGas(create, EIP160Patch)
	if gas != GasTransaction+EIP160Patch.GasTransactionCreate {
		t.Errorf("creation intrinsic = %d", gas)
	}
	gas, _ = intrinsicGas(create, FrontierPatch)
	if gas != GasTransaction {
		t.Errorf("frontier creation intrinsic = %d", gas)
	}
}
