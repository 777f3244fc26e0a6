package vm

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestStackPushPop(t *testing.T) {
	st := NewStack()
	st.PushUint64(42)
	st.PushUint64(99)

	if st.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", st.Len())
	}
	if v := st.Pop(); v.Uint64() != 99 {
		t.Errorf("Pop() = %d, want 99", v.Uint64())
	}
	if v := st.Pop(); v.Uint64() != 42 {
		t.Errorf("Pop() = %d, want 42", v.Uint64())
	}
	if st.Len() != 0 {
		t.Errorf("Len() = %d, want 0", st.Len())
	}
}

func TestStackPeekBack(t *testing.T) {
	st := NewStack()
	st.PushUint64(1)
	st.PushUint64(2)
	st.PushUint64(3)

	if st.Peek().Uint64() != 3 {
		t.Errorf("Peek() = %d, want 3", st.Peek().Uint64())
	}
	if st.Back(0).Uint64() != 3 {
		t.Errorf("Back(0) = %d, want 3", st.Back(0).Uint64())
	}
	if st.Back(2).Uint64() != 1 {
		t.Errorf("Back(2) = %d, want 1", st.Back(2).Uint64())
	}
}

func TestStackDup(t *testing.T) {
	st := NewStack()
	st.PushUint64(10)
	st.PushUint64(20)
	st.Dup(2) // duplicate the 2nd from top (10)

	if st.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", st.Len())
	}
	if st.Peek().Uint64() != 10 {
		t.Errorf("after Dup(2), top = %d, want 10", st.Peek().Uint64())
	}

	// The duplicate must be independent of the original.
	st.Peek().SetUint64(77)
	if st.Back(2).Uint64() != 10 {
		t.Errorf("Dup aliased the original: %d", st.Back(2).Uint64())
	}
}

func TestStackSwap(t *testing.T) {
	st := NewStack()
	st.PushUint64(1)
	st.PushUint64(2)
	st.PushUint64(3)
	st.Swap(2)

	if st.Back(0).Uint64() != 1 || st.Back(2).Uint64() != 3 {
		t.Errorf("Swap(2) gave %d..%d, want 1..3", st.Back(0).Uint64(), st.Back(2).Uint64())
	}
}

func TestStackPushBytes(t *testing.T) {
	st := NewStack()
	st.PushBytes([]byte{0x01, 0x00})
	if st.Peek().Uint64() != 256 {
		t.Errorf("PushBytes = %d, want 256", st.Peek().Uint64())
	}
	st.Push(new(uint256.Int).SetAllOne())
	if st.Peek().BitLen() != 256 {
		t.Errorf("full word BitLen = %d, want 256", st.Peek().BitLen())
	}
}
