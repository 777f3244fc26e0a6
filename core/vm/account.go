package vm

import (
	"bytes"

	"github.com/holiman/uint256"

	"github.com/voyagervm/voyagervm/core/types"
)

// CommitmentKind selects the shape of an AccountCommitment.
type CommitmentKind int

const (
	CommitFull CommitmentKind = iota
	CommitNonexist
	CommitStorage
	CommitCode
)

// AccountCommitment carries world state supplied by the embedder in
// response to a Require. Full commitments describe an existing account
// including its code; Nonexist asserts the account is absent; Storage and
// Code fill a single slot or the code of an account respectively.
type AccountCommitment struct {
	Kind    CommitmentKind
	Address types.Address
	Nonce   uint64
	Balance *uint256.Int
	Code    []byte
	Slot    types.Hash
	Value   types.Hash
}

// FullCommitment describes an existing account.
func FullCommitment(addr types.Address, nonce uint64, balance *uint256.Int, code []byte) AccountCommitment {
	return AccountCommitment{Kind: CommitFull, Address: addr, Nonce: nonce, Balance: balance, Code: code}
}

// NonexistCommitment asserts that the account is absent from world state.
func NonexistCommitment(addr types.Address) AccountCommitment {
	return AccountCommitment{Kind: CommitNonexist, Address: addr}
}

// StorageCommitment fills one storage slot of an account.
func StorageCommitment(addr types.Address, slot, value types.Hash) AccountCommitment {
	return AccountCommitment{Kind: CommitStorage, Address: addr, Slot: slot, Value: value}
}

// CodeCommitment fills the code of an account whose other fields are not
// needed.
func CodeCommitment(addr types.Address, code []byte) AccountCommitment {
	return AccountCommitment{Kind: CommitCode, Address: addr, Code: code}
}

// accountKind discriminates working cache entries.
type accountKind int

const (
	// accountFull is a committed existing account with an in-place change
	// log (nonce/balance/code overrides, storage delta).
	accountFull accountKind = iota
	// accountCreate is an account that did not exist when first observed;
	// its storage is complete rather than partial.
	accountCreate
	// accountIncrease and accountDecrease are balance-only touches of
	// accounts whose committed state was never needed.
	accountIncrease
	accountDecrease
)

// accountEntry is one address's working state: committed values with the
// frame's modifications applied.
type accountEntry struct {
	kind    accountKind
	exists  bool // accountCreate: whether the account exists after the touch
	touched bool
	removed bool
	nonce   uint64
	balance uint256.Int
	code    []byte
	delta   uint256.Int // accountIncrease / accountDecrease

	// storage is partial for accountFull (committed per slot on demand)
	// and complete for accountCreate.
	storageCommitted map[types.Hash]types.Hash
	storageChanged   map[types.Hash]types.Hash
}

func (e *accountEntry) clone() *accountEntry {
	c := &accountEntry{
		kind:    e.kind,
		exists:  e.exists,
		touched: e.touched,
		removed: e.removed,
		nonce:   e.nonce,
		balance: e.balance,
		delta:   e.delta,
		code:    e.code,
	}
	if e.storageCommitted != nil {
		c.storageCommitted = make(map[types.Hash]types.Hash, len(e.storageCommitted))
		for k, v := range e.storageCommitted {
			c.storageCommitted[k] = v
		}
	}
	if e.storageChanged != nil {
		c.storageChanged = make(map[types.Hash]types.Hash, len(e.storageChanged))
		for k, v := range e.storageChanged {
			c.storageChanged[k] = v
		}
	}
	return c
}

func (e *accountEntry) ensureStorage() {
	if e.storageCommitted == nil {
		e.storageCommitted = make(map[types.Hash]types.Hash)
	}
	if e.storageChanged == nil {
		e.storageChanged = make(map[types.Hash]types.Hash)
	}
}

// committedAccount is the immutable record of what the embedder committed,
// kept for conflict detection. exists=false records a Nonexist commitment.
type committedAccount struct {
	exists  bool
	nonce   uint64
	balance uint256.Int
	code    []byte
}

// AccountState is the per-execution account cache: committed world state
// plus the change log of the owning frame. Child frames derive a deep copy
// and the parent adopts it when the child commits up.
type AccountState struct {
	entries map[types.Address]*accountEntry
	order   []types.Address // first-touch order for deterministic iteration

	// code-only commitments for addresses whose full account was never
	// needed.
	codes map[types.Address][]byte

	// committed snapshots, append-only within a transaction.
	committed        map[types.Address]*committedAccount
	committedStorage map[types.Address]map[types.Hash]types.Hash

	removedOrder []types.Address
}

func newAccountState() *AccountState {
	return &AccountState{
		entries:          make(map[types.Address]*accountEntry),
		codes:            make(map[types.Address][]byte),
		committed:        make(map[types.Address]*committedAccount),
		committedStorage: make(map[types.Address]map[types.Hash]types.Hash),
	}
}

// derive returns a deep copy for a child frame. The child sees everything
// the parent has observed; dropping the copy discards the child's effects.
func (s *AccountState) derive() *AccountState {
	d := newAccountState()
	for addr, e := range s.entries {
		d.entries[addr] = e.clone()
	}
	d.order = append(d.order, s.order...)
	for addr, code := range s.codes {
		d.codes[addr] = code
	}
	for addr, c := range s.committed {
		cc := *c
		d.committed[addr] = &cc
	}
	for addr, slots := range s.committedStorage {
		m := make(map[types.Hash]types.Hash, len(slots))
		for k, v := range slots {
			m[k] = v
		}
		d.committedStorage[addr] = m
	}
	d.removedOrder = append(d.removedOrder, s.removedOrder...)
	return d
}

func (s *AccountState) track(addr types.Address, e *accountEntry) {
	if _, ok := s.entries[addr]; !ok {
		s.order = append(s.order, addr)
	}
	s.entries[addr] = e
}

// commit applies an embedder-supplied commitment. Committing a value equal
// to one already committed succeeds silently; a conflicting value is an
// ErrAlreadyCommitted programming fault.
func (s *AccountState) commit(c AccountCommitment) error {
	switch c.Kind {
	case CommitFull, CommitNonexist:
		balance := uint256.Int{}
		if c.Balance != nil {
			balance = *c.Balance
		}
		rec := &committedAccount{
			exists:  c.Kind == CommitFull,
			nonce:   c.Nonce,
			balance: balance,
			code:    c.Code,
		}
		if prev, ok := s.committed[c.Address]; ok {
			if prev.exists != rec.exists || prev.nonce != rec.nonce ||
				prev.balance != rec.balance || !bytes.Equal(prev.code, rec.code) {
				return ErrAlreadyCommitted
			}
			return nil
		}
		s.committed[c.Address] = rec
		s.installAccount(c.Address, rec)
		return nil

	case CommitStorage:
		slots, ok := s.committedStorage[c.Address]
		if !ok {
			slots = make(map[types.Hash]types.Hash)
			s.committedStorage[c.Address] = slots
		}
		if prev, ok := slots[c.Slot]; ok {
			if prev != c.Value {
				return ErrAlreadyCommitted
			}
			return nil
		}
		slots[c.Slot] = c.Value
		if e, ok := s.entries[c.Address]; ok && e.kind == accountFull {
			e.ensureStorage()
			e.storageCommitted[c.Slot] = c.Value
		}
		return nil

	case CommitCode:
		if prev, ok := s.codes[c.Address]; ok {
			if !bytes.Equal(prev, c.Code) {
				return ErrAlreadyCommitted
			}
			return nil
		}
		if rec, ok := s.committed[c.Address]; ok && !bytes.Equal(rec.code, c.Code) {
			return ErrAlreadyCommitted
		}
		s.codes[c.Address] = c.Code
		return nil
	}
	return ErrInvalidCommitment
}

// installAccount turns a fresh account commitment into a working entry,
// reconciling any balance-only touches recorded before the account was
// known.
func (s *AccountState) installAccount(addr types.Address, rec *committedAccount) {
	prev := s.entries[addr]
	var e *accountEntry
	if rec.exists {
		e = &accountEntry{
			kind:    accountFull,
			exists:  true,
			nonce:   rec.nonce,
			balance: rec.balance,
			code:    rec.code,
		}
	} else {
		e = &accountEntry{kind: accountCreate}
	}
	if prev != nil {
		switch prev.kind {
		case accountIncrease:
			e.balance.Add(&e.balance, &prev.delta)
			e.touched = true
		case accountDecrease:
			e.balance.Sub(&e.balance, &prev.delta)
			e.touched = true
		default:
			// A full or create entry is only replaced by a commitment when
			// the commitment repeats known values; keep the working entry.
			return
		}
	}
	s.track(addr, e)
}

// known reports whether enough of the account is cached to answer
// balance/nonce/existence queries.
func (s *AccountState) known(addr types.Address) bool {
	e, ok := s.entries[addr]
	return ok && (e.kind == accountFull || e.kind == accountCreate)
}

// requireAccountFor returns the commit request needed before
// balance/nonce/existence queries succeed, or nil.
func (s *AccountState) requireAccountFor(addr types.Address) *Require {
	if s.known(addr) {
		return nil
	}
	return requireAccount(addr)
}

// exists reports whether the account currently exists.
func (s *AccountState) exists(addr types.Address) (bool, *Require) {
	e, ok := s.entries[addr]
	if !ok || (e.kind != accountFull && e.kind != accountCreate) {
		return false, requireAccount(addr)
	}
	if e.kind == accountFull {
		return true, nil
	}
	return e.exists, nil
}

// empty reports whether the account has no code, zero balance and zero
// nonce (the EIP-161 notion of empty; a nonexistent account is empty).
func (s *AccountState) empty(addr types.Address) (bool, *Require) {
	e, ok := s.entries[addr]
	if !ok || (e.kind != accountFull && e.kind != accountCreate) {
		return false, requireAccount(addr)
	}
	return e.nonce == 0 && e.balance.IsZero() && len(e.code) == 0, nil
}

// balance returns the current balance.
func (s *AccountState) balance(addr types.Address) (*uint256.Int, *Require) {
	e, ok := s.entries[addr]
	if !ok || (e.kind != accountFull && e.kind != accountCreate) {
		return nil, requireAccount(addr)
	}
	b := e.balance
	return &b, nil
}

// nonce returns the current nonce.
func (s *AccountState) nonce(addr types.Address) (uint64, *Require) {
	e, ok := s.entries[addr]
	if !ok || (e.kind != accountFull && e.kind != accountCreate) {
		return 0, requireAccount(addr)
	}
	return e.nonce, nil
}

// code returns the current code. A code-only commitment satisfies it
// without the full account.
func (s *AccountState) code(addr types.Address) ([]byte, *Require) {
	if e, ok := s.entries[addr]; ok && (e.kind == accountFull || e.kind == accountCreate) {
		return e.code, nil
	}
	if code, ok := s.codes[addr]; ok {
		return code, nil
	}
	return nil, requireCode(addr)
}

// storageRead returns the current value of a slot. Created accounts answer
// from their complete storage; committed accounts require the slot to have
// been committed.
func (s *AccountState) storageRead(addr types.Address, slot types.Hash) (types.Hash, *Require) {
	e, ok := s.entries[addr]
	if !ok || (e.kind != accountFull && e.kind != accountCreate) {
		return types.Hash{}, requireAccount(addr)
	}
	if e.storageChanged != nil {
		if v, ok := e.storageChanged[slot]; ok {
			return v, nil
		}
	}
	if e.kind == accountCreate {
		return types.Hash{}, nil
	}
	if e.storageCommitted != nil {
		if v, ok := e.storageCommitted[slot]; ok {
			return v, nil
		}
	}
	if slots, ok := s.committedStorage[addr]; ok {
		if v, ok := slots[slot]; ok {
			e.ensureStorage()
			e.storageCommitted[slot] = v
			return v, nil
		}
	}
	return types.Hash{}, requireStorage(addr, slot)
}

// storageWrite sets a slot. The account must be cached.
func (s *AccountState) storageWrite(addr types.Address, slot, value types.Hash) {
	e := s.entries[addr]
	e.ensureStorage()
	e.storageChanged[slot] = value
	e.touched = true
	if e.kind == accountCreate {
		e.exists = true
	}
}

// addBalance credits an account, falling back to a balance-only entry when
// the account was never committed (beneficiary crediting).
func (s *AccountState) addBalance(addr types.Address, amount *uint256.Int) {
	if amount.IsZero() {
		if e, ok := s.entries[addr]; ok {
			e.touched = true
			if e.kind == accountCreate {
				e.exists = true
			}
		}
		return
	}
	e, ok := s.entries[addr]
	if !ok {
		ne := &accountEntry{kind: accountIncrease, touched: true}
		ne.delta = *amount
		s.track(addr, ne)
		return
	}
	switch e.kind {
	case accountIncrease:
		e.delta.Add(&e.delta, amount)
	case accountDecrease:
		if e.delta.Cmp(amount) >= 0 {
			e.delta.Sub(&e.delta, amount)
		} else {
			diff := new(uint256.Int).Sub(amount, &e.delta)
			e.kind = accountIncrease
			e.delta = *diff
		}
	default:
		e.balance.Add(&e.balance, amount)
		if e.kind == accountCreate {
			e.exists = true
		}
	}
	e.touched = true
}

// subBalance debits an account, falling back to a balance-only entry when
// the account was never committed.
func (s *AccountState) subBalance(addr types.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	e, ok := s.entries[addr]
	if !ok {
		ne := &accountEntry{kind: accountDecrease, touched: true}
		ne.delta = *amount
		s.track(addr, ne)
		return
	}
	switch e.kind {
	case accountDecrease:
		e.delta.Add(&e.delta, amount)
	case accountIncrease:
		if e.delta.Cmp(amount) >= 0 {
			e.delta.Sub(&e.delta, amount)
		} else {
			diff := new(uint256.Int).Sub(amount, &e.delta)
			e.kind = accountDecrease
			e.delta = *diff
		}
	default:
		e.balance.Sub(&e.balance, amount)
	}
	e.touched = true
}

// setNonce overrides the nonce of a cached account.
func (s *AccountState) setNonce(addr types.Address, nonce uint64) {
	e := s.entries[addr]
	e.nonce = nonce
	e.touched = true
	if e.kind == accountCreate {
		e.exists = true
	}
}

// setCode installs code on a cached account (contract creation).
func (s *AccountState) setCode(addr types.Address, code []byte) {
	e := s.entries[addr]
	e.code = code
	e.touched = true
	if e.kind == accountCreate {
		e.exists = true
	}
}

// createAccount turns the address into a freshly created account, keeping
// any balance it already carries.
func (s *AccountState) createAccount(addr types.Address) {
	if e, ok := s.entries[addr]; ok {
		e.kind = accountCreate
		e.exists = true
		e.touched = true
		e.nonce = 0
		e.code = nil
		e.storageCommitted = nil
		e.storageChanged = nil
		return
	}
	s.track(addr, &accountEntry{kind: accountCreate, exists: true, touched: true})
}

// markRemoved flags the account for deletion at transaction end. Its
// balance is zeroed; the caller is expected to have moved it already.
func (s *AccountState) markRemoved(addr types.Address) {
	e := s.entries[addr]
	if e.removed {
		return
	}
	e.removed = true
	e.touched = true
	e.balance.Clear()
	s.removedOrder = append(s.removedOrder, addr)
}

// isRemoved reports whether the account was destroyed earlier in the
// transaction.
func (s *AccountState) isRemoved(addr types.Address) bool {
	e, ok := s.entries[addr]
	return ok && e.removed
}

// AccountChangeKind tags an emitted change.
type AccountChangeKind int

const (
	// ChangeFull is an existing account with its current values and the
	// storage delta of the transaction.
	ChangeFull AccountChangeKind = iota
	// ChangeCreate is a newly created (or touched-empty) account with
	// complete storage. Exists=false asks the embedder to remove it.
	ChangeCreate
	// ChangeIncreaseBalance and ChangeDecreaseBalance are balance-only
	// touches.
	ChangeIncreaseBalance
	ChangeDecreaseBalance
)

// AccountChange is one account mutation emitted to the embedder after a
// terminal status.
type AccountChange struct {
	Kind            AccountChangeKind
	Address         types.Address
	Nonce           uint64
	Balance         *uint256.Int
	Code            []byte
	ChangingStorage map[types.Hash]types.Hash // ChangeFull: delta only
	Storage         map[types.Hash]types.Hash // ChangeCreate: complete
	Exists          bool                      // ChangeCreate
	Amount          *uint256.Int              // balance-only kinds
}

// changes emits the touched accounts in first-touch order. Removed
// accounts are excluded; they appear in the removal list instead.
func (s *AccountState) changes(p *Patch) []AccountChange {
	var out []AccountChange
	for _, addr := range s.order {
		e := s.entries[addr]
		if !e.touched || e.removed {
			continue
		}
		switch e.kind {
		case accountFull:
			storage := make(map[types.Hash]types.Hash, len(e.storageChanged))
			for k, v := range e.storageChanged {
				storage[k] = v
			}
			balance := e.balance
			out = append(out, AccountChange{
				Kind:            ChangeFull,
				Address:         addr,
				Nonce:           e.nonce,
				Balance:         &balance,
				Code:            e.code,
				ChangingStorage: storage,
			})
		case accountCreate:
			storage := make(map[types.Hash]types.Hash, len(e.storageChanged))
			for k, v := range e.storageChanged {
				storage[k] = v
			}
			balance := e.balance
			exists := e.exists
			if exists && p.Eip161Empty && e.nonce == 0 && e.balance.IsZero() && len(e.code) == 0 {
				exists = false
			}
			out = append(out, AccountChange{
				Kind:    ChangeCreate,
				Address: addr,
				Nonce:   e.nonce,
				Balance: &balance,
				Code:    e.code,
				Storage: storage,
				Exists:  exists,
			})
		case accountIncrease:
			amount := e.delta
			out = append(out, AccountChange{Kind: ChangeIncreaseBalance, Address: addr, Amount: &amount})
		case accountDecrease:
			amount := e.delta
			out = append(out, AccountChange{Kind: ChangeDecreaseBalance, Address: addr, Amount: &amount})
		}
	}
	return out
}

// removedAccounts returns the destroyed addresses in removal order.
func (s *AccountState) removedAccounts() []types.Address {
	out := make([]types.Address, len(s.removedOrder))
	copy(out, s.removedOrder)
	return out
}
