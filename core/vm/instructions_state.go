package vm

import (
	"github.com/voyagervm/voyagervm/core/types"
)

func opSload(m *machine) ([]byte, error) {
	slot := m.stack.Peek()
	value, _ := m.state.accounts.storageRead(m.ctx.Address, hashFromWord(slot))
	slot.SetBytes(value[:])
	return nil, nil
}

func opSstore(m *machine) ([]byte, error) {
	slot, value := m.stack.Pop(), m.stack.Pop()
	key := hashFromWord(slot)
	current, _ := m.state.accounts.storageRead(m.ctx.Address, key)
	next := hashFromWord(value)
	if next.IsZero() && !current.IsZero() {
		m.state.refund += RefundSstoreClear
	}
	m.state.accounts.storageWrite(m.ctx.Address, key, next)
	return nil, nil
}

// makeLog builds the handler for LOGn: pops the memory range and n topics,
// appending the event to the frame state so a revert drops it.
func makeLog(topics int) executionFunc {
	return func(m *machine) ([]byte, error) {
		offset, size := m.stack.Pop(), m.stack.Pop()
		log := types.Log{Address: m.ctx.Address}
		for i := 0; i < topics; i++ {
			log.Topics = append(log.Topics, hashFromWord(m.stack.Pop()))
		}
		if !size.IsZero() {
			log.Data = m.memory.Get(offset.Uint64(), size.Uint64())
		}
		m.state.logs = append(m.state.logs, log)
		return nil, nil
	}
}

func opSelfdestruct(m *machine) ([]byte, error) {
	beneficiary := addressFromWord(m.stack.Pop())
	accounts := m.state.accounts
	if !accounts.isRemoved(m.ctx.Address) {
		m.state.refund += RefundSelfdestruct
	}
	balance, _ := accounts.balance(m.ctx.Address)
	accounts.addBalance(beneficiary, balance)
	accounts.markRemoved(m.ctx.Address)
	return nil, nil
}
