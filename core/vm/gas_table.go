package vm

import (
	"github.com/holiman/uint256"

	"github.com/voyagervm/voyagervm/core/types"
)

// gasExp charges the per-byte cost for the significant bytes of the
// exponent.
func gasExp(m *machine, costSoFar uint64) (uint64, error) {
	exponent := m.stack.Back(1)
	if exponent.IsZero() {
		return 0, nil
	}
	byteLen := uint64((exponent.BitLen() + 7) / 8)
	cost, overflow := safeMul(m.patch.GasExpByte, byteLen)
	if overflow {
		return 0, ErrOutOfGas
	}
	return cost, nil
}

// gasSha3 charges per 32-byte word hashed.
func gasSha3(m *machine, costSoFar uint64) (uint64, error) {
	return perWordGas(m.stack.Back(1), GasSha3Word)
}

// gasCopy3 charges the per-word copy cost for CALLDATACOPY and CODECOPY
// (length is the third operand).
func gasCopy3(m *machine, costSoFar uint64) (uint64, error) {
	return perWordGas(m.stack.Back(2), GasCopy)
}

// gasExtCodeCopy charges the per-word copy cost for EXTCODECOPY (length is
// the fourth operand).
func gasExtCodeCopy(m *machine, costSoFar uint64) (uint64, error) {
	return perWordGas(m.stack.Back(3), GasCopy)
}

func perWordGas(length *uint256.Int, perWord uint64) (uint64, error) {
	l, overflow := length.Uint64WithOverflow()
	if overflow {
		return 0, ErrOutOfGas
	}
	cost, overflow := safeMul(toWordSize(l), perWord)
	if overflow {
		return 0, ErrOutOfGas
	}
	return cost, nil
}

// gasLogFunc builds the LOGn cost function: base, per-topic and per-byte
// components.
func gasLogFunc(topics int) dynamicGasFunc {
	return func(m *machine, costSoFar uint64) (uint64, error) {
		l, overflow := m.stack.Back(1).Uint64WithOverflow()
		if overflow {
			return 0, ErrOutOfGas
		}
		dataGas, overflow := safeMul(l, GasLogData)
		if overflow {
			return 0, ErrOutOfGas
		}
		cost, overflow := safeAdd(GasLog+uint64(topics)*GasLogTopic, dataGas)
		if overflow {
			return 0, ErrOutOfGas
		}
		return cost, nil
	}
}

// gasSstore selects G_SSET or G_SRESET from the (current, new) value pair.
func gasSstore(m *machine, costSoFar uint64) (uint64, error) {
	slot := hashFromWord(m.stack.Back(0))
	value := m.stack.Back(1)
	// The requires phase cached the slot, so the read cannot miss here.
	current, _ := m.state.accounts.storageRead(m.ctx.Address, slot)
	if !value.IsZero() && current.IsZero() {
		return GasSstoreSet, nil
	}
	return GasSstoreReset, nil
}

// gasSelfdestruct adds the new-account surcharge for a fresh beneficiary
// (EIP-150 and later): a nonexistent one, or under EIP-161 rules an empty
// one that receives a non-zero balance.
func gasSelfdestruct(m *machine, costSoFar uint64) (uint64, error) {
	p := m.patch
	if !p.SuicideNewSurcharge {
		return 0, nil
	}
	beneficiary := addressFromWord(m.stack.Back(0))
	balance, _ := m.state.accounts.balance(m.ctx.Address)
	if p.Eip161Empty {
		empty, _ := m.state.accounts.empty(beneficiary)
		if !balance.IsZero() && empty {
			return GasNewAccount, nil
		}
		return 0, nil
	}
	exists, _ := m.state.accounts.exists(beneficiary)
	if !exists {
		return GasNewAccount, nil
	}
	return 0, nil
}

// callSurcharge computes the value-transfer and new-account components of
// the CALL cost. CALLCODE never pays the new-account surcharge.
func callSurcharge(m *machine, target types.Address, value *uint256.Int, isCallCode bool) uint64 {
	var extra uint64
	if !value.IsZero() {
		extra += GasCallValue
	}
	if isCallCode || isPrecompiled(m.patch, target) {
		return extra
	}
	if m.patch.Eip161Empty {
		if !value.IsZero() {
			if empty, _ := m.state.accounts.empty(target); empty {
				extra += GasNewAccount
			}
		}
	} else {
		if exists, _ := m.state.accounts.exists(target); !exists {
			extra += GasNewAccount
		}
	}
	return extra
}

// childCallGas resolves the gas to forward to a child call: the requested
// amount, capped by the 63/64 rule under EIP-150, or an out-of-gas error
// when an earlier patch cannot satisfy the request.
func childCallGas(m *machine, requested *uint256.Int, base uint64) (uint64, error) {
	if m.gas < base {
		return 0, ErrOutOfGas
	}
	available := m.gas - base
	if m.patch.ForwardRule63of64 {
		limit := forwardableGas(available)
		req, overflow := requested.Uint64WithOverflow()
		if overflow || req > limit {
			return limit, nil
		}
		return req, nil
	}
	req, overflow := requested.Uint64WithOverflow()
	if overflow || req > available {
		return 0, ErrOutOfGas
	}
	return req, nil
}

// gasCall prices CALL: value transfer, new-account surcharge, and the
// child's gas allowance (recorded for the execution phase).
func gasCall(m *machine, costSoFar uint64) (uint64, error) {
	target := addressFromWord(m.stack.Back(1))
	value := m.stack.Back(2)
	extra := callSurcharge(m, target, value, false)
	base, overflow := safeAdd(costSoFar, extra)
	if overflow {
		return 0, ErrOutOfGas
	}
	forward, err := childCallGas(m, m.stack.Back(0), base)
	if err != nil {
		return 0, err
	}
	m.callGas = forward
	total, overflow := safeAdd(extra, forward)
	if overflow {
		return 0, ErrOutOfGas
	}
	return total, nil
}

// gasCallCode prices CALLCODE: like CALL but never creates an account.
func gasCallCode(m *machine, costSoFar uint64) (uint64, error) {
	target := addressFromWord(m.stack.Back(1))
	value := m.stack.Back(2)
	extra := callSurcharge(m, target, value, true)
	base, overflow := safeAdd(costSoFar, extra)
	if overflow {
		return 0, ErrOutOfGas
	}
	forward, err := childCallGas(m, m.stack.Back(0), base)
	if err != nil {
		return 0, err
	}
	m.callGas = forward
	total, overflow := safeAdd(extra, forward)
	if overflow {
		return 0, ErrOutOfGas
	}
	return total, nil
}

// gasDelegateCall prices DELEGATECALL and STATICCALL: no value movement,
// just the child allowance.
func gasDelegateCall(m *machine, costSoFar uint64) (uint64, error) {
	forward, err := childCallGas(m, m.stack.Back(0), costSoFar)
	if err != nil {
		return 0, err
	}
	m.callGas = forward
	return forward, nil
}

// Require-phase functions. Each reports the first missing piece of world
// state for its opcode; the interpreter re-runs them until they are
// satisfied, before any gas is charged.

func requiresBalance(m *machine) *Require {
	return m.state.accounts.requireAccountFor(addressFromWord(m.stack.Back(0)))
}

func requiresExtCode(m *machine) *Require {
	_, req := m.state.accounts.code(addressFromWord(m.stack.Back(0)))
	return req
}

func requiresSload(m *machine) *Require {
	_, req := m.state.accounts.storageRead(m.ctx.Address, hashFromWord(m.stack.Back(0)))
	return req
}

func requiresSstore(m *machine) *Require {
	if req := m.state.accounts.requireAccountFor(m.ctx.Address); req != nil {
		return req
	}
	_, req := m.state.accounts.storageRead(m.ctx.Address, hashFromWord(m.stack.Back(0)))
	return req
}

func requiresBlockhash(m *machine) *Require {
	number, overflow := m.stack.Back(0).Uint64WithOverflow()
	if overflow || !blockhashInRange(number, m.header.Number) {
		return nil
	}
	_, req := m.blockhashes.get(number)
	return req
}

// blockhashInRange reports whether BLOCKHASH can answer for the requested
// number: one of the 256 most recent blocks, excluding the current one.
func blockhashInRange(number, current uint64) bool {
	if number >= current {
		return false
	}
	return current-number <= 256
}

func requiresCallTarget(m *machine, target types.Address, withAccount bool) *Require {
	if withAccount {
		if req := m.state.accounts.requireAccountFor(target); req != nil {
			return req
		}
	}
	if !isPrecompiled(m.patch, target) {
		if _, req := m.state.accounts.code(target); req != nil {
			return req
		}
	}
	return nil
}

func requiresCall(m *machine) *Require {
	if req := m.state.accounts.requireAccountFor(m.ctx.Address); req != nil {
		return req
	}
	return requiresCallTarget(m, addressFromWord(m.stack.Back(1)), true)
}

func requiresCallCode(m *machine) *Require {
	if req := m.state.accounts.requireAccountFor(m.ctx.Address); req != nil {
		return req
	}
	return requiresCallTarget(m, addressFromWord(m.stack.Back(1)), false)
}

func requiresDelegateCall(m *machine) *Require {
	return requiresCallTarget(m, addressFromWord(m.stack.Back(1)), false)
}

func requiresCreate(m *machine) *Require {
	if req := m.state.accounts.requireAccountFor(m.ctx.Address); req != nil {
		return req
	}
	nonce, _ := m.state.accounts.nonce(m.ctx.Address)
	created := createdAddress(m.ctx.Address, nonce)
	if req := m.state.accounts.requireAccountFor(created); req != nil {
		return req
	}
	_, req := m.state.accounts.code(created)
	return req
}

func requiresSelfdestruct(m *machine) *Require {
	if req := m.state.accounts.requireAccountFor(m.ctx.Address); req != nil {
		return req
	}
	if m.patch.SuicideNewSurcharge {
		return m.state.accounts.requireAccountFor(addressFromWord(m.stack.Back(0)))
	}
	return nil
}
