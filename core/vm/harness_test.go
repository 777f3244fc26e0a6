package vm

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/voyagervm/voyagervm/core/types"
)

func testAddr(b byte) types.Address {
	return types.BytesToAddress([]byte{b})
}

func testSlot(b byte) types.Hash {
	return types.BytesToHash([]byte{b})
}

// worldAccount is the harness-side view of an account.
type worldAccount struct {
	nonce   uint64
	balance *uint256.Int
	code    []byte
	storage map[types.Hash]types.Hash
}

// testWorld answers commit requests the way the reference driver does:
// from a fixed account map, with zero storage and absent accounts for
// everything unknown.
type testWorld struct {
	accounts    map[types.Address]*worldAccount
	blockhashes map[uint64]types.Hash
}

func newTestWorld() *testWorld {
	return &testWorld{
		accounts:    make(map[types.Address]*worldAccount),
		blockhashes: make(map[uint64]types.Hash),
	}
}

func (w *testWorld) addAccount(addr types.Address, acct *worldAccount) {
	if acct.balance == nil {
		acct.balance = uint256.NewInt(0)
	}
	if acct.storage == nil {
		acct.storage = make(map[types.Hash]types.Hash)
	}
	w.accounts[addr] = acct
}

// satisfy fulfills one commit request from the world.
func (w *testWorld) satisfy(t *testing.T, v *VM, req *Require) {
	t.Helper()
	var err error
	switch req.Kind {
	case RequireAccount:
		if acct, ok := w.accounts[req.Address]; ok {
			err = v.CommitAccount(FullCommitment(req.Address, acct.nonce, acct.balance, acct.code))
		} else {
			err = v.CommitAccount(NonexistCommitment(req.Address))
		}
	case RequireAccountCode:
		var code []byte
		if acct, ok := w.accounts[req.Address]; ok {
			code = acct.code
		}
		err = v.CommitAccount(CodeCommitment(req.Address, code))
	case RequireAccountStorage:
		var value types.Hash
		if acct, ok := w.accounts[req.Address]; ok {
			value = acct.storage[req.Slot]
		}
		err = v.CommitAccount(StorageCommitment(req.Address, req.Slot, value))
	case RequireBlockhash:
		err = v.CommitBlockhash(req.Number, w.blockhashes[req.Number])
	}
	if err != nil {
		t.Fatalf("commit for %s failed: %v", req, err)
	}
}

// fire drives the VM to a terminal status, fulfilling every request.
func (w *testWorld) fire(t *testing.T, v *VM) {
	t.Helper()
	for i := 0; i < 1_000_000; i++ {
		req := v.Fire()
		if req == nil {
			return
		}
		w.satisfy(t, v, req)
	}
	t.Fatal("vm did not terminate")
}

var testHeader = &BlockHeader{
	Coinbase:   types.HexToAddress("0x00000000000000000000000000000000000c0b0e"),
	Timestamp:  1500000000,
	Number:     5000,
	Difficulty: uint256.NewInt(1 << 20),
	GasLimit:   8000000,
}

// runContext executes code in a fresh frame-level VM against the world.
func runContext(t *testing.T, w *testWorld, self types.Address, code []byte, gasLimit uint64, p *Patch) *VM {
	t.Helper()
	v := NewContextVM(Context{
		Address:  self,
		Caller:   testAddr(0xca),
		Origin:   testAddr(0xca),
		Code:     code,
		GasLimit: gasLimit,
	}, testHeader, p)
	w.fire(t, v)
	return v
}

// topFrame exposes the (terminated) top-level frame for stack inspection.
func topFrame(v *VM) *machine {
	return v.frames[0]
}
