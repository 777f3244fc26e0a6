package vm

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestValidJumpdest(t *testing.T) {
	// 0: PUSH1 03, 2: JUMPDEST? no -- layout: PUSH1 03 / JUMP / JUMPDEST
	code := []byte{byte(PUSH1), 0x03, byte(JUMP), byte(JUMPDEST)}
	p := newProgram(code)

	if !p.validJumpdest(uint256.NewInt(3)) {
		t.Error("position 3 is a JUMPDEST and should be valid")
	}
	if p.validJumpdest(uint256.NewInt(0)) {
		t.Error("position 0 is PUSH1, not a jump destination")
	}
	if p.validJumpdest(uint256.NewInt(100)) {
		t.Error("out of range destination accepted")
	}
}

func TestJumpdestInsidePushData(t *testing.T) {
	// PUSH2 0x5b5b hides two JUMPDEST bytes inside immediate data.
	code := []byte{byte(PUSH2), 0x5b, 0x5b, byte(JUMPDEST)}
	p := newProgram(code)

	if p.validJumpdest(uint256.NewInt(1)) {
		t.Error("JUMPDEST byte inside PUSH data accepted")
	}
	if p.validJumpdest(uint256.NewInt(2)) {
		t.Error("JUMPDEST byte inside PUSH data accepted")
	}
	if !p.validJumpdest(uint256.NewInt(3)) {
		t.Error("real JUMPDEST after PUSH data rejected")
	}
}

func TestGetOpPastEnd(t *testing.T) {
	p := newProgram([]byte{byte(ADD)})
	if p.getOp(5) != STOP {
		t.Errorf("getOp past end = %v, want STOP", p.getOp(5))
	}
}

func TestValidJumpdestHugeDest(t *testing.T) {
	p := newProgram([]byte{byte(JUMPDEST)})
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	if p.validJumpdest(huge) {
		t.Error("destination beyond uint64 accepted")
	}
}
