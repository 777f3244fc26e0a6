package vm

import "github.com/voyagervm/voyagervm/core/types"

// BlockhashCache maps block numbers to their hashes, filled by
// CommitBlockhash. It is shared by every frame of a transaction.
type BlockhashCache struct {
	hashes map[uint64]types.Hash
}

func newBlockhashCache() *BlockhashCache {
	return &BlockhashCache{hashes: make(map[uint64]types.Hash)}
}

// get returns the cached hash or a commit request.
func (c *BlockhashCache) get(number uint64) (types.Hash, *Require) {
	if h, ok := c.hashes[number]; ok {
		return h, nil
	}
	return types.Hash{}, requireBlockhash(number)
}

// commit records a hash. Re-committing the same value succeeds silently; a
// conflicting value is an ErrAlreadyCommitted programming fault.
func (c *BlockhashCache) commit(number uint64, hash types.Hash) error {
	if prev, ok := c.hashes[number]; ok {
		if prev != hash {
			return ErrAlreadyCommitted
		}
		return nil
	}
	c.hashes[number] = hash
	return nil
}
