package crypto

import (
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/voyagervm/voyagervm/core/types"
)

var (
	secp256k1N     = secp256k1.S256().N
	secp256k1halfN = new(big.Int).Rsh(secp256k1N, 1)

	ErrInvalidSignatureLen = errors.New("crypto: signature must be 65 bytes")
	ErrRecoveryFailed      = errors.New("crypto: public key recovery failed")
)

// ValidateSignatureValues verifies that the signature values are valid with
// the given chain rules. The v value is expected to be 0 or 1. Under
// homestead rules s must additionally lie in the lower half of the curve
// order (EIP-2 malleability rule); the ECRECOVER precompile does not apply
// that restriction.
func ValidateSignatureValues(v byte, r, s *big.Int, homestead bool) bool {
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return false
	}
	if homestead && s.Cmp(secp256k1halfN) > 0 {
		return false
	}
	return r.Cmp(secp256k1N) < 0 && s.Cmp(secp256k1N) < 0 && (v == 0 || v == 1)
}

// Ecrecover recovers the uncompressed public key (65 bytes, 0x04 prefixed)
// that signed hash. The signature is 65 bytes in R || S || V order with
// V being the raw recovery id (0 or 1).
func Ecrecover(hash, sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, ErrInvalidSignatureLen
	}
	// RecoverCompact wants the recovery header first: 27 + recid.
	compact := make([]byte, 65)
	compact[0] = 27 + sig[64]
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, ErrRecoveryFailed
	}
	return pub.SerializeUncompressed(), nil
}

// PubkeyToAddress derives the account address from an uncompressed public
// key: keccak256(pubkey[1:])[12:].
func PubkeyToAddress(pub []byte) types.Address {
	return types.BytesToAddress(Keccak256(pub[1:])[12:])
}
