package crypto

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/voyagervm/voyagervm/core/types"
)

// CreateAddress computes the address of a contract created by the given
// account. Per the Yellow Paper: addr = keccak256(rlp([sender, nonce]))[12:].
func CreateAddress(caller types.Address, nonce uint64) types.Address {
	data, err := rlp.EncodeToBytes([]interface{}{caller[:], nonce})
	if err != nil {
		panic(err) // fixed-shape input cannot fail to encode
	}
	return types.BytesToAddress(Keccak256(data)[12:])
}
