package vm

import "github.com/holiman/uint256"

// program is a byte-indexed view over contract code. It decodes one opcode
// per position and caches a JUMPDEST analysis so jumps into PUSH immediate
// data are rejected.
type program struct {
	code      []byte
	jumpdests map[uint64]bool
}

func newProgram(code []byte) *program {
	return &program{code: code}
}

// getOp returns the opcode at position n, or STOP beyond the end.
func (p *program) getOp(n uint64) OpCode {
	if n < uint64(len(p.code)) {
		return OpCode(p.code[n])
	}
	return STOP
}

// length returns the code length in bytes.
func (p *program) length() uint64 {
	return uint64(len(p.code))
}

// validJumpdest checks whether dest is a JUMPDEST opcode position that is
// not inside a PUSH immediate.
func (p *program) validJumpdest(dest *uint256.Int) bool {
	udest, overflow := dest.Uint64WithOverflow()
	if overflow || udest >= uint64(len(p.code)) {
		return false
	}
	if OpCode(p.code[udest]) != JUMPDEST {
		return false
	}
	if p.jumpdests == nil {
		p.analyzeJumpdests()
	}
	return p.jumpdests[udest]
}

// analyzeJumpdests scans the code once, recording every JUMPDEST that sits
// at an opcode boundary.
func (p *program) analyzeJumpdests() {
	p.jumpdests = make(map[uint64]bool)
	for i := uint64(0); i < uint64(len(p.code)); i++ {
		op := OpCode(p.code[i])
		if op == JUMPDEST {
			p.jumpdests[i] = true
		}
		i += uint64(op.PushBytes())
	}
}
