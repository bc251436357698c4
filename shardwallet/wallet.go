package shardwallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Wallet is the shard ledger: ownership tree operations plus claim
// settlement against a Treasury. It holds no lock of its own; each
// operation is one Store transaction, and the store serializes writers.
type Wallet struct {
	store          Store
	treasury       Treasury
	log            *zap.Logger
	checkRecipient func(string) error
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(w *Wallet) {
		if l != nil {
			w.log = l
		}
	}
}

// WithRecipientCheck sets the validator applied to every new payout address.
func WithRecipientCheck(fn func(string) error) Option {
	return func(w *Wallet) {
		if fn != nil {
			w.checkRecipient = fn
		}
	}
}

// New creates a Wallet over store, paying out of treasury.
func New(store Store, treasury Treasury, opts ...Option) (*Wallet, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilParam)
	}
	if treasury == nil {
		return nil, fmt.Errorf("%w: treasury", ErrNilParam)
	}
	w := &Wallet{
		store:          store,
		treasury:       treasury,
		log:            zap.NewNop(),
		checkRecipient: nonBlank,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func nonBlank(r string) error {
	if strings.TrimSpace(r) == "" {
		return errors.New("empty address")
	}
	if strings.ContainsAny(r, " \t\r\n") {
		return errors.New("address contains whitespace")
	}
	return nil
}

func (w *Wallet) validRecipient(r string) error {
	if err := w.checkRecipient(r); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidRecipient, r, err)
	}
	return nil
}

// Init creates the root shard, owning the whole Denominator, paid to owner.
func (w *Wallet) Init(ctx context.Context, owner string) (ID, error) {
	if err := w.validRecipient(owner); err != nil {
		return 0, err
	}
	err := w.store.Update(func(tx Tx) error {
		if _, err := tx.Shard(RootID); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, ErrUnknownShard) {
			return err
		}
		id, err := tx.AllocID()
		if err != nil {
			return err
		}
		if id != RootID {
			return fmt.Errorf("%w: store already allocated ids", ErrAlreadyInitialized)
		}
		return tx.PutShard(&Shard{
			ID:          RootID,
			ShareMicros: Denominator,
			Weight:      Denominator,
			Recipient:   owner,
			Active:      true,
		})
	})
	if err != nil {
		return 0, err
	}
	w.log.Info("root shard created", zap.String("recipient", owner))
	return RootID, nil
}

// Shard returns the shard with the given id, active or not.
func (w *Wallet) Shard(id ID) (*Shard, error) {
	var sh *Shard
	err := w.store.View(func(tx Tx) error {
		var err error
		sh, err = tx.Shard(id)
		return err
	})
	return sh, err
}

// ActiveShards returns the current leaves of the ownership tree.
func (w *Wallet) ActiveShards() ([]*Shard, error) {
	var out []*Shard
	err := w.store.View(func(tx Tx) error {
		all, err := tx.Shards()
		if err != nil {
			return err
		}
		for _, sh := range all {
			if sh.Active {
				out = append(out, sh)
			}
		}
		return nil
	})
	return out, err
}

// Records returns the currency records of a shard.
func (w *Wallet) Records(id ID) ([]*Record, error) {
	var out []*Record
	err := w.store.View(func(tx Tx) error {
		if _, err := tx.Shard(id); err != nil {
			return err
		}
		var err error
		out, err = tx.Records(id)
		return err
	})
	return out, err
}

// Ledger returns what has been recognized as received in c so far.
func (w *Wallet) Ledger(c Currency) (*LedgerEntry, error) {
	var e *LedgerEntry
	err := w.store.View(func(tx Tx) error {
		var err error
		e, err = tx.Ledger(c)
		return err
	})
	return e, err
}

// Snapshot dumps every shard, record and ledger entry.
func (w *Wallet) Snapshot() (*State, error) {
	st := &State{}
	err := w.store.View(func(tx Tx) error {
		shards, err := tx.Shards()
		if err != nil {
			return err
		}
		st.Shards = shards
		for _, sh := range shards {
			recs, err := tx.Records(sh.ID)
			if err != nil {
				return err
			}
			st.Records = append(st.Records, recs...)
		}
		st.Ledger, err = tx.Ledgers()
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
