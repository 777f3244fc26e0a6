package vm

import "github.com/holiman/uint256"

// stackLimit is the maximum operand stack depth.
const stackLimit = 1024

// Stack is the EVM operand stack (max 1024 items, 256-bit words). Depth is
// validated by the interpreter before each instruction, so the mutating
// methods assume room and operands are present.
type Stack struct {
	data []*uint256.Int
}

// NewStack returns a new empty stack.
func NewStack() *Stack {
	return &Stack{data: make([]*uint256.Int, 0, 16)}
}

// Push pushes a value onto the stack.
func (st *Stack) Push(val *uint256.Int) {
	st.data = append(st.data, val)
}

// PushUint64 pushes a uint64 as a fresh word.
func (st *Stack) PushUint64(v uint64) {
	st.Push(new(uint256.Int).SetUint64(v))
}

// PushBytes pushes big-endian bytes as a fresh word.
func (st *Stack) PushBytes(b []byte) {
	st.Push(new(uint256.Int).SetBytes(b))
}

// Pop removes and returns the top element.
func (st *Stack) Pop() *uint256.Int {
	ret := st.data[len(st.data)-1]
	st.data = st.data[:len(st.data)-1]
	return ret
}

// Peek returns the top element without removing it.
func (st *Stack) Peek() *uint256.Int {
	return st.data[len(st.data)-1]
}

// Back returns the nth element from the top (0-indexed: 0 = top).
func (st *Stack) Back(n int) *uint256.Int {
	return st.data[len(st.data)-1-n]
}

// Swap swaps the top element with the nth element from the top.
func (st *Stack) Swap(n int) {
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
}

// Dup duplicates the nth element from the top and pushes it.
func (st *Stack) Dup(n int) {
	st.data = append(st.data, new(uint256.Int).Set(st.data[len(st.data)-n]))
}

// Len returns the number of items on the stack.
func (st *Stack) Len() int {
	return len(st.data)
}

// Data returns the underlying stack slice (bottom to top).
func (st *Stack) Data() []*uint256.Int {
	return st.data
}
