package shardwallet

import (
	"context"
	"fmt"
)

// observe recognizes inflow for c by comparing the treasury balance with
// the balance seen last time. Deposits need no bookkeeping of their own;
// they become visible here, at the start of a claim.
func observe(ctx context.Context, tx Tx, t Treasury, c Currency) (*LedgerEntry, error) {
	e, err := tx.Ledger(c)
	if err != nil {
		return nil, err
	}
	balance, err := t.Balance(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("shardwallet: balance of %s: %w", c, err)
	}
	if balance == e.LastObservedBalance {
		return e, nil
	}
	if balance > e.LastObservedBalance {
		delta := balance - e.LastObservedBalance
		if e.CumulativeTotal+delta < e.CumulativeTotal {
			return nil, fmt.Errorf("shardwallet: cumulative total of %s overflows", c)
		}
		e.CumulativeTotal += delta
	}
	// A balance below the last observation is an outflow we did not make;
	// track it so later deposits are measured from the right base.
	e.LastObservedBalance = balance
	if err := tx.PutLedger(e); err != nil {
		return nil, err
	}
	return e, nil
}

// entitlement is floor(total * weight / Denominator).
func entitlement(total, weight uint64) uint64 {
	q, _ := mulDiv(total, weight, Denominator)
	return q
}
