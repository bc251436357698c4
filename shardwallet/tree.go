package shardwallet

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// Split replaces an active parent with children whose shares add up to the
// parent's share. Each child weighs parent.Weight*share/parent.ShareMicros;
// the last child absorbs rounding so the parent's weight is conserved. The
// parent's payout history is apportioned to the children.
func (w *Wallet) Split(ctx context.Context, parent ID, children []Child) ([]ID, error) {
	sum, err := w.checkChildren(children)
	if err != nil {
		return nil, err
	}

	var ids []ID
	err = w.store.Update(func(tx Tx) error {
		srcs, err := loadActive(tx, []ID{parent})
		if err != nil {
			return err
		}
		p := srcs[0]
		if sum > p.ShareMicros {
			return fmt.Errorf("%w: children total %d exceeds parent share %d", ErrInvalidShareSum, sum, p.ShareMicros)
		}
		// A remainder would leave weight that no active shard owns.
		if sum < p.ShareMicros {
			return fmt.Errorf("%w: children total %d leaves %d of parent share %d unassigned",
				ErrInvalidShareSum, sum, p.ShareMicros-sum, p.ShareMicros)
		}

		successors := make([]*Shard, len(children))
		var assigned uint64
		for i, c := range children {
			weight := p.Weight - assigned
			if i < len(children)-1 {
				weight, _ = mulDiv(p.Weight, c.ShareMicros, p.ShareMicros)
				assigned += weight
			}
			successors[i] = &Shard{ShareMicros: c.ShareMicros, Weight: weight, Recipient: c.Recipient}
		}

		ids, err = createShards(tx, srcs, successors)
		if err != nil {
			return err
		}
		return w.carry(tx, srcs, successors)
	})
	if err != nil {
		return nil, err
	}
	w.log.Info("shard split", zap.Uint64("parent", uint64(parent)), zap.Any("children", ids))
	return ids, nil
}

// Merge combines at least two distinct active shards into one, paid to the
// first operand's recipient.
func (w *Wallet) Merge(ctx context.Context, ids []ID) (ID, error) {
	return w.MergeTo(ctx, ids, "")
}

// MergeTo is Merge with an explicit recipient for the new shard. An empty
// recipient keeps the first operand's.
func (w *Wallet) MergeTo(ctx context.Context, ids []ID, recipient string) (ID, error) {
	if len(ids) < 2 {
		return 0, fmt.Errorf("%w: merge needs at least 2 shards, got %d", ErrEmptyOperandSet, len(ids))
	}
	if recipient != "" {
		if err := w.validRecipient(recipient); err != nil {
			return 0, err
		}
	}

	var merged ID
	err := w.store.Update(func(tx Tx) error {
		srcs, err := loadActive(tx, ids)
		if err != nil {
			return err
		}
		var weight uint64
		for _, s := range srcs {
			weight += s.Weight
		}
		to := recipient
		if to == "" {
			to = srcs[0].Recipient
		}
		successor := &Shard{ShareMicros: weight, Weight: weight, Recipient: to}
		created, err := createShards(tx, srcs, []*Shard{successor})
		if err != nil {
			return err
		}
		merged = created[0]
		return w.carry(tx, srcs, []*Shard{successor})
	})
	if err != nil {
		return 0, err
	}
	w.log.Info("shards merged", zap.Any("parents", ids), zap.Uint64("shard", uint64(merged)))
	return merged, nil
}

// Reforge merges parents and splits the result into children in one step.
// The children's shares must add up to exactly the parents' combined weight;
// each child's weight equals its share.
func (w *Wallet) Reforge(ctx context.Context, parents []ID, children []Child) ([]ID, error) {
	if len(parents) == 0 {
		return nil, fmt.Errorf("%w: reforge needs at least 1 parent", ErrEmptyOperandSet)
	}
	sum, err := w.checkChildren(children)
	if err != nil {
		return nil, err
	}

	var ids []ID
	err = w.store.Update(func(tx Tx) error {
		srcs, err := loadActive(tx, parents)
		if err != nil {
			return err
		}
		var weight uint64
		for _, s := range srcs {
			weight += s.Weight
		}
		if sum != weight {
			return fmt.Errorf("%w: children total %d, parents weigh %d", ErrInvalidShareSum, sum, weight)
		}

		successors := make([]*Shard, len(children))
		for i, c := range children {
			successors[i] = &Shard{ShareMicros: c.ShareMicros, Weight: c.ShareMicros, Recipient: c.Recipient}
		}
		ids, err = createShards(tx, srcs, successors)
		if err != nil {
			return err
		}
		return w.carry(tx, srcs, successors)
	})
	if err != nil {
		return nil, err
	}
	w.log.Info("shards reforged", zap.Any("parents", parents), zap.Any("children", ids))
	return ids, nil
}

// Reassign changes the payout address of an active shard.
func (w *Wallet) Reassign(ctx context.Context, id ID, recipient string) error {
	if err := w.validRecipient(recipient); err != nil {
		return err
	}
	err := w.store.Update(func(tx Tx) error {
		srcs, err := loadActive(tx, []ID{id})
		if err != nil {
			return err
		}
		srcs[0].Recipient = recipient
		return tx.PutShard(srcs[0])
	})
	if err != nil {
		return err
	}
	w.log.Info("shard reassigned", zap.Uint64("shard", uint64(id)), zap.String("recipient", recipient))
	return nil
}

// checkChildren validates the child list and returns the sum of shares.
func (w *Wallet) checkChildren(children []Child) (uint64, error) {
	if len(children) == 0 {
		return 0, fmt.Errorf("%w: no children", ErrEmptyOperandSet)
	}
	var sum uint64
	for i, c := range children {
		if c.ShareMicros == 0 {
			return 0, fmt.Errorf("%w: child %d", ErrZeroShare, i)
		}
		if c.ShareMicros > math.MaxUint64-sum {
			return 0, fmt.Errorf("%w: shares overflow", ErrInvalidShareSum)
		}
		sum += c.ShareMicros
		if err := w.validRecipient(c.Recipient); err != nil {
			return 0, fmt.Errorf("child %d: %w", i, err)
		}
	}
	return sum, nil
}

// carry moves the sources' claimed totals onto the successors, per currency,
// in proportion to successor weight. Every carried unit is placed: shares go
// up to each successor's entitlement at the currently recognized total first,
// and whatever rounding leaves over is placed above entitlement, where it
// holds that successor's claims at zero until its entitlement catches up.
func (w *Wallet) carry(tx Tx, sources, successors []*Shard) error {
	claimed := make(map[Currency]uint64)
	for _, src := range sources {
		recs, err := tx.Records(src.ID)
		if err != nil {
			return err
		}
		for _, r := range recs {
			claimed[r.Currency] += r.Claimed
		}
	}
	if len(claimed) == 0 {
		return nil
	}

	currencies := make([]Currency, 0, len(claimed))
	for c := range claimed {
		currencies = append(currencies, c)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

	weights := make([]uint64, len(successors))
	unlimited := make([]uint64, len(successors))
	for i, s := range successors {
		weights[i] = s.Weight
		unlimited[i] = math.MaxUint64
	}

	for _, c := range currencies {
		e, err := tx.Ledger(c)
		if err != nil {
			return err
		}
		caps := make([]uint64, len(successors))
		for i, wt := range weights {
			caps[i] = entitlement(e.CumulativeTotal, wt)
		}

		parts := apportion(claimed[c], weights, caps)
		var placed uint64
		for _, amt := range parts {
			placed += amt
		}
		if over := claimed[c] - placed; over > 0 {
			for i, amt := range apportion(over, weights, unlimited) {
				parts[i] += amt
			}
			w.log.Debug("claim history carried above entitlement",
				zap.Stringer("currency", c), zap.Uint64("amount", over))
		}
		for i, amt := range parts {
			if amt == 0 {
				continue
			}
			if err := tx.PutRecord(&Record{Shard: successors[i].ID, Currency: c, Claimed: amt}); err != nil {
				return err
			}
		}
	}
	return nil
}
