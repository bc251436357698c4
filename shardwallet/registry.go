package shardwallet

import "fmt"

// loadActive loads the operand shards in order. Each must exist, be active
// and appear once.
func loadActive(tx Tx, ids []ID) ([]*Shard, error) {
	seen := make(map[ID]bool, len(ids))
	shards := make([]*Shard, len(ids))
	for i, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: shard %d", ErrDuplicateOperand, id)
		}
		seen[id] = true

		sh, err := tx.Shard(id)
		if err != nil {
			return nil, err
		}
		if !sh.Active {
			return nil, fmt.Errorf("%w: %d", ErrInactiveShard, id)
		}
		shards[i] = sh
	}
	return shards, nil
}

// createShards deactivates sources and stores successors, assigning fresh
// ids in order. It must run inside the same Update as any validation so the
// swap is atomic.
func createShards(tx Tx, sources []*Shard, successors []*Shard) ([]ID, error) {
	srcIDs := make([]ID, len(sources))
	for i, src := range sources {
		if !src.Active {
			return nil, fmt.Errorf("%w: %d", ErrInactiveShard, src.ID)
		}
		src.Active = false
		if err := tx.PutShard(src); err != nil {
			return nil, err
		}
		srcIDs[i] = src.ID
	}

	ids := make([]ID, len(successors))
	for i, sh := range successors {
		id, err := tx.AllocID()
		if err != nil {
			return nil, err
		}
		sh.ID = id
		sh.Active = true
		sh.Sources = append([]ID(nil), srcIDs...)
		if err := tx.PutShard(sh); err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
