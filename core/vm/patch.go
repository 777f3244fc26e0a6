package vm

import (
	"fmt"
	"math"
)

// Patch is an immutable rule set selecting gas costs and feature
// availability for a whole transaction. The interpreter reads it but never
// mutates it; the four stock patches model the Frontier, Homestead,
// EIP-150 and EIP-160/161 consensus rules.
type Patch struct {
	Name string

	// Patch-dependent base costs.
	GasCall              uint64 // CALL family base (40 -> 700 at EIP-150)
	GasSload             uint64 // SLOAD (50 -> 200 at EIP-150)
	GasExtcode           uint64 // EXTCODESIZE/EXTCODECOPY base (20 -> 700 at EIP-150)
	GasBalance           uint64 // BALANCE (20 -> 400 at EIP-150)
	GasSuicide           uint64 // SELFDESTRUCT base (0 -> 5000 at EIP-150)
	GasExpByte           uint64 // EXP per significant exponent byte (10 -> 50 at EIP-160)
	GasTransactionCreate uint64 // extra intrinsic gas for creation transactions (0 -> 32000 at Homestead)

	// Feature gates.
	HasDelegateCall bool // DELEGATECALL decodes (Homestead+)
	HasStaticCall   bool // STATICCALL decodes (disabled in all stock patches)
	HasRevert       bool // REVERT decodes
	HasPrecompiles  bool // addresses 0x01..0x04 dispatch natively

	// Behavioral switches.
	ForwardRule63of64   bool   // EIP-150 child gas forwarding cap
	Eip161Empty         bool   // EIP-161 "touched empty" account semantics
	ForceCodeDeposit    bool   // Frontier: unpayable code deposit keeps empty code
	SuicideNewSurcharge bool   // charge G_NEWACCOUNT when SELFDESTRUCT names a fresh beneficiary (EIP-150+)
	MemoryLimit         uint64 // heuristic cap on frame memory, in bytes
}

var (
	// FrontierPatch models the genesis rule set.
	FrontierPatch = &Patch{
		Name:             "frontier",
		GasCall:          40,
		GasSload:         50,
		GasExtcode:       20,
		GasBalance:       20,
		GasSuicide:       0,
		GasExpByte:       10,
		HasPrecompiles:   true,
		ForceCodeDeposit: true,
		MemoryLimit:      math.MaxUint64,
	}

	// HomesteadPatch enables DELEGATECALL and the creation surcharge.
	HomesteadPatch = &Patch{
		Name:                 "homestead",
		GasCall:              40,
		GasSload:             50,
		GasExtcode:           20,
		GasBalance:           20,
		GasSuicide:           0,
		GasExpByte:           10,
		GasTransactionCreate: 32000,
		HasDelegateCall:      true,
		HasPrecompiles:       true,
		MemoryLimit:          math.MaxUint64,
	}

	// EIP150Patch reprices state-reading opcodes and introduces the 63/64
	// forwarding rule.
	EIP150Patch = &Patch{
		Name:                 "eip150",
		GasCall:              700,
		GasSload:             200,
		GasExtcode:           700,
		GasBalance:           400,
		GasSuicide:           5000,
		GasExpByte:           10,
		GasTransactionCreate: 32000,
		HasDelegateCall:      true,
		HasPrecompiles:       true,
		ForwardRule63of64:    true,
		SuicideNewSurcharge:  true,
		MemoryLimit:          math.MaxUint64,
	}

	// EIP160Patch reprices EXP and adopts the EIP-161 empty-account
	// semantics; it is the default rule set for deterministic vectors.
	EIP160Patch = &Patch{
		Name:                 "eip160",
		GasCall:              700,
		GasSload:             200,
		GasExtcode:           700,
		GasBalance:           400,
		GasSuicide:           5000,
		GasExpByte:           50,
		GasTransactionCreate: 32000,
		HasDelegateCall:      true,
		HasRevert:            true,
		HasPrecompiles:       true,
		ForwardRule63of64:    true,
		Eip161Empty:          true,
		SuicideNewSurcharge:  true,
		MemoryLimit:          math.MaxUint64,
	}
)

var patchesByName = map[string]*Patch{
	"frontier":  FrontierPatch,
	"homestead": HomesteadPatch,
	"eip150":    EIP150Patch,
	"eip160":    EIP160Patch,
}

// PatchByName resolves a patch flag ("frontier", "homestead", "eip150",
// "eip160") to its rule set.
func PatchByName(name string) (*Patch, error) {
	p, ok := patchesByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown patch %q", name)
	}
	return p, nil
}
