package vm

import (
	"github.com/holiman/uint256"

	"github.com/voyagervm/voyagervm/core/types"
	"github.com/voyagervm/voyagervm/crypto"
)

// Helpers converting between stack words and the narrower value types.

func addressFromWord(w *uint256.Int) types.Address {
	return types.Address(w.Bytes20())
}

func hashFromWord(w *uint256.Int) types.Hash {
	return types.Hash(w.Bytes32())
}

func wordFromHash(h types.Hash) *uint256.Int {
	return new(uint256.Int).SetBytes(h[:])
}

func wordFromAddress(a types.Address) *uint256.Int {
	return new(uint256.Int).SetBytes(a[:])
}

// getData returns size bytes of data starting at off, zero-padded past the
// end of the source.
func getData(data []byte, off *uint256.Int, size uint64) []byte {
	out := make([]byte, size)
	start, overflow := off.Uint64WithOverflow()
	if overflow || start >= uint64(len(data)) {
		return out
	}
	end := start + size
	if end < start || end > uint64(len(data)) {
		end = uint64(len(data))
	}
	copy(out, data[start:end])
	return out
}

// createdAddress computes the CREATE target address for (caller, nonce).
func createdAddress(caller types.Address, nonce uint64) types.Address {
	return crypto.CreateAddress(caller, nonce)
}
