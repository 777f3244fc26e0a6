package vm

import (
	"github.com/holiman/uint256"

	"github.com/voyagervm/voyagervm/core/types"
)

// SystemAddress is the reserved caller of system transactions
// (0xffff...ffff). System transactions carry no signature and mint their
// value; they are identified by the absence of a caller on the Transaction.
var SystemAddress = types.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff")

// BlockHeader carries the block-level values visible to the interpreter.
// It is immutable for the duration of a transaction.
type BlockHeader struct {
	Coinbase   types.Address
	Timestamp  uint64
	Number     uint64
	Difficulty *uint256.Int
	GasLimit   uint64
}

// Transaction describes the work a VM is created for. A nil Caller marks a
// system transaction (gas price must be zero); a nil Address requests
// contract creation with Input as the init code.
type Transaction struct {
	Caller   *types.Address
	GasPrice *uint256.Int
	GasLimit uint64
	Address  *types.Address
	Value    *uint256.Int
	Input    []byte
	// Nonce, when set, is checked against the caller account before
	// execution. When nil the account nonce is used as-is.
	Nonce *uint64
}

// IsSystem reports whether the transaction has no caller.
func (tx *Transaction) IsSystem() bool { return tx.Caller == nil }

// IsCreate reports whether the transaction creates a contract.
func (tx *Transaction) IsCreate() bool { return tx.Address == nil }

// caller returns the effective caller address, substituting SystemAddress
// for system transactions.
func (tx *Transaction) caller() types.Address {
	if tx.Caller == nil {
		return SystemAddress
	}
	return *tx.Caller
}

// Context is the execution context of a single frame: one per machine,
// living exactly as long as the frame.
type Context struct {
	Address       types.Address // account whose storage the frame writes
	Caller        types.Address
	Origin        types.Address
	Data          []byte
	Code          []byte
	GasLimit      uint64
	GasPrice      *uint256.Int
	Value         *uint256.Int // value actually transferred
	ApparentValue *uint256.Int // CALLVALUE as seen by the code (DELEGATECALL keeps the parent's)
	IsSystem      bool
	IsStatic      bool
}

// intrinsicGas computes the gas consumed before the top-level frame runs:
// the flat transaction cost, the per-byte data cost, and the
// patch-specific creation surcharge. The overflow return is set when the
// figure does not fit a uint64, which the caller must treat as exceeding
// any gas limit.
func intrinsicGas(tx *Transaction, p *Patch) (uint64, bool) {
	gas := GasTransaction
	if tx.IsCreate() {
		gas += p.GasTransactionCreate
	}
	var nonzero uint64
	for _, b := range tx.Input {
		if b != 0 {
			nonzero++
		}
	}
	zero := uint64(len(tx.Input)) - nonzero
	dataGas, overflow := safeMul(nonzero, GasTxDataNonzero)
	if overflow {
		return 0, true
	}
	if dataGas, overflow = safeAdd(dataGas, zero*GasTxDataZero); overflow {
		return 0, true
	}
	return safeAdd(gas, dataGas)
}
