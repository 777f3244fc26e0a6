package vm

import "github.com/holiman/uint256"

// Memory is the byte-addressable, zero-initialized, expansion-only frame
// memory. The active size is kept in 32-byte words and only ever grows;
// memory gas is computed from it by the interpreter before a resize.
type Memory struct {
	store       []byte
	activeWords uint64
}

// NewMemory returns a new Memory instance.
func NewMemory() *Memory {
	return &Memory{}
}

// Resize grows the active size to cover size bytes, rounded up to 32-byte
// words. Shrinking never happens.
func (m *Memory) Resize(size uint64) {
	words := toWordSize(size)
	if words <= m.activeWords {
		return
	}
	m.activeWords = words
	if byteLen := words * 32; uint64(len(m.store)) < byteLen {
		m.store = append(m.store, make([]byte, byteLen-uint64(len(m.store)))...)
	}
}

// Set copies value into memory at the given offset. The region must have
// been covered by a prior Resize.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes a 32-byte big-endian word at the given offset.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	if offset+32 > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	b := val.Bytes32()
	copy(m.store[offset:offset+32], b[:])
}

// SetByte writes a single byte at the given offset.
func (m *Memory) SetByte(offset uint64, b byte) {
	if offset >= uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	m.store[offset] = b
}

// Zero clears size bytes starting at offset.
func (m *Memory) Zero(offset, size uint64) {
	for i := uint64(0); i < size; i++ {
		m.store[offset+i] = 0
	}
}

// Get returns a copy of the memory contents at [offset, offset+size).
func (m *Memory) Get(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, m.store[offset:offset+size])
	return out
}

// GetPtr returns a direct slice reference to memory at [offset, offset+size).
func (m *Memory) GetPtr(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

// Len returns the active length of the memory in bytes, always a multiple
// of 32.
func (m *Memory) Len() uint64 {
	return m.activeWords * 32
}

// ActiveWords returns the active size in 32-byte words.
func (m *Memory) ActiveWords() uint64 {
	return m.activeWords
}

// Data returns the full backing slice.
func (m *Memory) Data() []byte {
	return m.store
}
