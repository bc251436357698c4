package meter

import (
	"github.com/bitfsorg/shardwallet-go/shardwallet"
)

// Store wraps s so every slot access is charged to m.
func (m *Meter) Store(s shardwallet.Store) shardwallet.Store {
	return &store{m: m, inner: s}
}

type store struct {
	m     *Meter
	inner shardwallet.Store
}

func (s *store) View(fn func(tx shardwallet.Tx) error) error {
	return s.inner.View(func(tx shardwallet.Tx) error {
		return fn(&meteredTx{m: s.m, tx: tx})
	})
}

func (s *store) Update(fn func(tx shardwallet.Tx) error) error {
	return s.inner.Update(func(tx shardwallet.Tx) error {
		return fn(&meteredTx{m: s.m, tx: tx})
	})
}

func (s *store) Close() error { return s.inner.Close() }

// meteredTx peeks at the inner transaction, uncharged, to price writes.
type meteredTx struct {
	m  *Meter
	tx shardwallet.Tx
}

func (t *meteredTx) AllocID() (shardwallet.ID, error) {
	t.m.read(lastIDSlot)
	id, err := t.tx.AllocID()
	if err != nil {
		return 0, err
	}
	t.m.write(lastIDSlot, id == 1, false)
	return id, nil
}

func (t *meteredTx) Shard(id shardwallet.ID) (*shardwallet.Shard, error) {
	t.m.read(shardSlot(id))
	return t.tx.Shard(id)
}

func (t *meteredTx) PutShard(sh *shardwallet.Shard) error {
	if sh != nil {
		_, err := t.tx.Shard(sh.ID)
		t.m.write(shardSlot(sh.ID), err != nil, false)
	}
	return t.tx.PutShard(sh)
}

func (t *meteredTx) Shards() ([]*shardwallet.Shard, error) {
	shards, err := t.tx.Shards()
	for _, sh := range shards {
		t.m.read(shardSlot(sh.ID))
	}
	return shards, err
}

func (t *meteredTx) Record(id shardwallet.ID, c shardwallet.Currency) (*shardwallet.Record, bool, error) {
	t.m.read(recordSlot(id, c))
	return t.tx.Record(id, c)
}

func (t *meteredTx) PutRecord(r *shardwallet.Record) error {
	if r != nil {
		prev, ok, err := t.tx.Record(r.Shard, r.Currency)
		if err != nil {
			return err
		}
		t.m.write(recordSlot(r.Shard, r.Currency), !ok || prev.Claimed == 0, r.Claimed == 0)
	}
	return t.tx.PutRecord(r)
}

func (t *meteredTx) DeleteRecord(id shardwallet.ID, c shardwallet.Currency) error {
	prev, ok, err := t.tx.Record(id, c)
	if err != nil {
		return err
	}
	t.m.write(recordSlot(id, c), !ok || prev.Claimed == 0, true)
	return t.tx.DeleteRecord(id, c)
}

func (t *meteredTx) Records(id shardwallet.ID) ([]*shardwallet.Record, error) {
	recs, err := t.tx.Records(id)
	for _, r := range recs {
		t.m.read(recordSlot(id, r.Currency))
	}
	return recs, err
}

func (t *meteredTx) Ledger(c shardwallet.Currency) (*shardwallet.LedgerEntry, error) {
	t.m.read(ledgerSlot(c))
	return t.tx.Ledger(c)
}

func (t *meteredTx) PutLedger(e *shardwallet.LedgerEntry) error {
	if e != nil {
		prev, err := t.tx.Ledger(e.Currency)
		if err != nil {
			return err
		}
		t.m.write(ledgerSlot(e.Currency), isEmpty(prev), isEmpty(e))
	}
	return t.tx.PutLedger(e)
}

func (t *meteredTx) Ledgers() ([]*shardwallet.LedgerEntry, error) {
	entries, err := t.tx.Ledgers()
	for _, e := range entries {
		t.m.read(ledgerSlot(e.Currency))
	}
	return entries, err
}

func isEmpty(e *shardwallet.LedgerEntry) bool {
	return e.CumulativeTotal == 0 && e.LastObservedBalance == 0
}
