package vm

import (
	"errors"
	"fmt"

	"github.com/voyagervm/voyagervm/core/types"
)

// On-chain errors. These become the terminal status of a frame (or of the
// whole VM when they occur at the top level); they are deterministic and
// consume all remaining frame gas, except ErrRevert which preserves it.
var (
	ErrOutOfGas             = errors.New("out of gas")
	ErrStackOverflow        = errors.New("stack overflow")
	ErrStackUnderflow       = errors.New("stack underflow")
	ErrInvalidJumpDest      = errors.New("invalid jump destination")
	ErrInvalidOpcode        = errors.New("invalid opcode")
	ErrMaxCallDepthExceeded = errors.New("max call depth exceeded")
	ErrCreateCollision      = errors.New("contract address collision")
	ErrRevert               = errors.New("execution reverted")
)

// ErrNotSupported marks an opcode that exists but is disabled by the active
// patch (e.g. DELEGATECALL under frontier). It is reported through the
// ExitedNotSupported status so embedders can flag missing patch features.
var ErrNotSupported = errors.New("not supported by patch")

// Pre-execution errors, reported before any frame runs. No state changes
// accompany them.
var (
	ErrInvalidCaller        = errors.New("invalid caller")
	ErrInvalidNonce         = errors.New("invalid nonce")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientGasLimit = errors.New("gas limit below intrinsic gas")
)

// Commit errors: embedder-side programming faults in the commitment
// protocol.
var (
	// ErrAlreadyCommitted is returned when a commitment conflicts with a
	// value the VM has already observed.
	ErrAlreadyCommitted = errors.New("commit: conflicts with committed value")
	// ErrInvalidCommitment is returned for a commitment of the wrong shape.
	ErrInvalidCommitment = errors.New("commit: invalid commitment")
)

// RequireKind names the piece of world state a suspended step is missing.
type RequireKind int

const (
	RequireAccount RequireKind = iota
	RequireAccountCode
	RequireAccountStorage
	RequireBlockhash
)

// String returns the protocol name of the request kind.
func (k RequireKind) String() string {
	switch k {
	case RequireAccount:
		return "Account"
	case RequireAccountCode:
		return "AccountCode"
	case RequireAccountStorage:
		return "AccountStorage"
	case RequireBlockhash:
		return "Blockhash"
	}
	return "Unknown"
}

// Require describes world state the VM needs before the current step can
// proceed. A step that returns a Require has no observable side effect: no
// gas is charged, no state changes, the PC does not advance. The embedder
// fulfills the request with CommitAccount or CommitBlockhash and invokes
// Step again.
type Require struct {
	Kind    RequireKind
	Address types.Address // Account, AccountCode, AccountStorage
	Slot    types.Hash    // AccountStorage
	Number  uint64        // Blockhash
}

// String renders the request for diagnostics.
func (r *Require) String() string {
	switch r.Kind {
	case RequireAccountStorage:
		return fmt.Sprintf("Require(%s, %s, %s)", r.Kind, r.Address, r.Slot)
	case RequireBlockhash:
		return fmt.Sprintf("Require(%s, %d)", r.Kind, r.Number)
	default:
		return fmt.Sprintf("Require(%s, %s)", r.Kind, r.Address)
	}
}

func requireAccount(addr types.Address) *Require {
	return &Require{Kind: RequireAccount, Address: addr}
}

func requireCode(addr types.Address) *Require {
	return &Require{Kind: RequireAccountCode, Address: addr}
}

func requireStorage(addr types.Address, slot types.Hash) *Require {
	return &Require{Kind: RequireAccountStorage, Address: addr, Slot: slot}
}

func requireBlockhash(number uint64) *Require {
	return &Require{Kind: RequireBlockhash, Number: number}
}

// StatusKind is the coarse lifecycle state of a VM or frame.
type StatusKind int

const (
	// StatusRunning means more steps are possible.
	StatusRunning StatusKind = iota
	// StatusExitedOk is normal STOP/RETURN termination.
	StatusExitedOk
	// StatusExitedErr is a deterministic on-chain failure.
	StatusExitedErr
	// StatusExitedNotSupported is a deterministic failure caused by an
	// opcode the active patch disables.
	StatusExitedNotSupported
)

// String returns the display name of the status kind.
func (k StatusKind) String() string {
	switch k {
	case StatusRunning:
		return "Running"
	case StatusExitedOk:
		return "ExitedOk"
	case StatusExitedErr:
		return "ExitedErr"
	case StatusExitedNotSupported:
		return "ExitedNotSupported"
	}
	return "Unknown"
}

// Status is the lifecycle state of a VM, reached monotonically. Err is set
// for the two error kinds and nil otherwise.
type Status struct {
	Kind StatusKind
	Err  error
}

// Running reports whether more steps are possible.
func (s Status) Running() bool { return s.Kind == StatusRunning }

// Failed reports whether the VM terminated with an error status.
func (s Status) Failed() bool {
	return s.Kind == StatusExitedErr || s.Kind == StatusExitedNotSupported
}

// String renders the status for diagnostics.
func (s Status) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Err)
	}
	return s.Kind.String()
}
