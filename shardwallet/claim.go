package shardwallet

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Claim pays shard id what it is owed in each currency:
// floor(total*weight/Denominator) minus what it has already been paid.
//
// Currencies settle independently and in order. For each one the new claimed
// amount is committed before the transfer is issued, so a callback that
// re-enters Claim sees nothing left to pay. A failed transfer reverts that
// currency only; earlier currencies stay paid and are returned alongside the
// error.
func (w *Wallet) Claim(ctx context.Context, id ID, currencies []Currency) (map[Currency]uint64, error) {
	if len(currencies) == 0 {
		return nil, fmt.Errorf("%w: no currencies", ErrEmptyOperandSet)
	}
	seen := make(map[Currency]bool, len(currencies))
	for _, c := range currencies {
		if seen[c] {
			return nil, fmt.Errorf("%w: currency %s", ErrDuplicateOperand, c)
		}
		seen[c] = true
	}

	paid := make(map[Currency]uint64, len(currencies))
	for _, c := range currencies {
		amount, err := w.claimOne(ctx, id, c)
		if err != nil {
			return paid, err
		}
		paid[c] = amount
	}
	return paid, nil
}

// Claimable reports what a claim would pay right now, without recognizing
// deposits that arrived since the last claim in c.
func (w *Wallet) Claimable(id ID, c Currency) (uint64, error) {
	var owed uint64
	err := w.store.View(func(tx Tx) error {
		sh, err := tx.Shard(id)
		if err != nil {
			return err
		}
		if !sh.Active {
			return fmt.Errorf("%w: %d", ErrInactiveShard, id)
		}
		e, err := tx.Ledger(c)
		if err != nil {
			return err
		}
		rec, ok, err := tx.Record(id, c)
		if err != nil {
			return err
		}
		due := entitlement(e.CumulativeTotal, sh.Weight)
		var claimed uint64
		if ok {
			claimed = rec.Claimed
		}
		if due > claimed {
			owed = due - claimed
		}
		return nil
	})
	return owed, err
}

// settlement is what the checkpoint committed ahead of a transfer.
type settlement struct {
	owed      uint64
	recipient string
	created   bool
}

func (w *Wallet) claimOne(ctx context.Context, id ID, c Currency) (uint64, error) {
	var s settlement
	err := w.store.Update(func(tx Tx) error {
		sh, err := tx.Shard(id)
		if err != nil {
			return err
		}
		if !sh.Active {
			return fmt.Errorf("%w: %d", ErrInactiveShard, id)
		}

		e, err := observe(ctx, tx, w.treasury, c)
		if err != nil {
			return err
		}
		rec, ok, err := tx.Record(id, c)
		if err != nil {
			return err
		}
		if !ok {
			rec = &Record{Shard: id, Currency: c}
		}

		due := entitlement(e.CumulativeTotal, sh.Weight)
		if due <= rec.Claimed {
			return nil
		}
		owed := due - rec.Claimed
		if owed > e.LastObservedBalance {
			return fmt.Errorf("%w: %w: holds %d %s, shard %d is owed %d",
				ErrTransferFailed, ErrTreasuryShort, e.LastObservedBalance, c, id, owed)
		}

		rec.Claimed = due
		if err := tx.PutRecord(rec); err != nil {
			return err
		}
		// The payout is about to leave the treasury; don't let the next
		// observation mistake the lower balance for an outside withdrawal.
		e.LastObservedBalance -= owed
		if err := tx.PutLedger(e); err != nil {
			return err
		}
		s = settlement{owed: owed, recipient: sh.Recipient, created: !ok}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.owed == 0 {
		return 0, nil
	}

	if err := w.treasury.Transfer(ctx, c, s.recipient, s.owed); err != nil {
		if rbErr := w.revert(id, c, s); rbErr != nil {
			w.log.Error("claim revert failed",
				zap.Uint64("shard", uint64(id)), zap.Stringer("currency", c),
				zap.Uint64("amount", s.owed), zap.Error(rbErr))
			return 0, fmt.Errorf("%w: shard %d %s: %w (revert: %v)", ErrTransferFailed, id, c, err, rbErr)
		}
		w.log.Warn("claim transfer failed, reverted",
			zap.Uint64("shard", uint64(id)), zap.Stringer("currency", c),
			zap.Uint64("amount", s.owed), zap.Error(err))
		return 0, fmt.Errorf("%w: shard %d %s: %w", ErrTransferFailed, id, c, err)
	}

	w.log.Info("claim paid",
		zap.Uint64("shard", uint64(id)), zap.Stringer("currency", c),
		zap.String("recipient", s.recipient), zap.Uint64("amount", s.owed))
	return s.owed, nil
}

// revert undoes a checkpoint whose transfer failed.
func (w *Wallet) revert(id ID, c Currency, s settlement) error {
	return w.store.Update(func(tx Tx) error {
		rec, ok, err := tx.Record(id, c)
		if err != nil {
			return err
		}
		if !ok || rec.Claimed < s.owed {
			return fmt.Errorf("shardwallet: record %d/%s changed under a pending transfer", id, c)
		}
		rec.Claimed -= s.owed
		if s.created && rec.Claimed == 0 {
			if err := tx.DeleteRecord(id, c); err != nil {
				return err
			}
		} else if err := tx.PutRecord(rec); err != nil {
			return err
		}

		e, err := tx.Ledger(c)
		if err != nil {
			return err
		}
		e.LastObservedBalance += s.owed
		return tx.PutLedger(e)
	})
}
