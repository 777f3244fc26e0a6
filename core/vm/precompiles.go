package vm

import (
	"crypto/sha256"
	"math/big"

	"golang.org/x/crypto/ripemd160"

	"github.com/voyagervm/voyagervm/core/types"
	"github.com/voyagervm/voyagervm/crypto"
)

// PrecompiledContract is the interface for native precompiled contracts.
// They consume gas and return deterministic output without spawning a
// frame.
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// precompiledContracts holds the four original precompiles at addresses
// 0x01..0x04.
var precompiledContracts = map[types.Address]PrecompiledContract{
	types.BytesToAddress([]byte{1}): &ecrecover{},
	types.BytesToAddress([]byte{2}): &sha256hash{},
	types.BytesToAddress([]byte{3}): &ripemd160hash{},
	types.BytesToAddress([]byte{4}): &dataCopy{},
}

// precompile returns the precompiled contract at addr under the given
// patch.
func precompile(p *Patch, addr types.Address) (PrecompiledContract, bool) {
	if !p.HasPrecompiles {
		return nil, false
	}
	c, ok := precompiledContracts[addr]
	return c, ok
}

// isPrecompiled reports whether addr dispatches natively under the patch.
func isPrecompiled(p *Patch, addr types.Address) bool {
	_, ok := precompile(p, addr)
	return ok
}

func wordCount(n int) uint64 {
	return toWordSize(uint64(n))
}

// padRight extends input with zero bytes to the given length.
func padRight(input []byte, n int) []byte {
	if len(input) >= n {
		return input[:n]
	}
	out := make([]byte, n)
	copy(out, input)
	return out
}

// --- ecrecover (address 0x01) ---

type ecrecover struct{}

func (c *ecrecover) RequiredGas(input []byte) uint64 {
	return 3000
}

func (c *ecrecover) Run(input []byte) ([]byte, error) {
	input = padRight(input, 128)

	hash := input[0:32]
	v := new(big.Int).SetBytes(input[32:64])
	r := new(big.Int).SetBytes(input[64:96])
	s := new(big.Int).SetBytes(input[96:128])

	// v must be 27 or 28; anything else yields empty output, not an error.
	if v.BitLen() > 8 {
		return nil, nil
	}
	vByte := byte(v.Uint64())
	if vByte != 27 && vByte != 28 {
		return nil, nil
	}
	if !crypto.ValidateSignatureValues(vByte-27, r, s, false) {
		return nil, nil
	}

	sig := make([]byte, 65)
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = vByte - 27

	pub, err := crypto.Ecrecover(hash, sig)
	if err != nil {
		return nil, nil
	}

	addr := crypto.PubkeyToAddress(pub)
	result := make([]byte, 32)
	copy(result[12:], addr[:])
	return result, nil
}

// --- sha256 (address 0x02) ---

type sha256hash struct{}

func (c *sha256hash) RequiredGas(input []byte) uint64 {
	return 60 + 12*wordCount(len(input))
}

func (c *sha256hash) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// --- ripemd160 (address 0x03) ---

type ripemd160hash struct{}

func (c *ripemd160hash) RequiredGas(input []byte) uint64 {
	return 600 + 120*wordCount(len(input))
}

func (c *ripemd160hash) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	digest := h.Sum(nil) // 20 bytes

	result := make([]byte, 32)
	copy(result[12:], digest)
	return result, nil
}

// --- identity (address 0x04) ---

type dataCopy struct{}

func (c *dataCopy) RequiredGas(input []byte) uint64 {
	return 15 + 3*wordCount(len(input))
}

func (c *dataCopy) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}
