package shardwallet

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var errReadOnly = errors.New("shardwallet: write in read-only transaction")

// MemStore is an in-memory Store. Writes are staged per transaction and
// applied on commit, so a failing Update leaves no trace.
type MemStore struct {
	mu      sync.RWMutex
	lastID  ID
	shards  map[ID]*Shard
	records map[ID]map[Currency]*Record
	ledger  map[Currency]*LedgerEntry
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		shards:  make(map[ID]*Shard),
		records: make(map[ID]map[Currency]*Record),
		ledger:  make(map[Currency]*LedgerEntry),
	}
}

// View runs fn against the committed state.
func (s *MemStore) View(fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.begin(false))
}

// Update runs fn with staged writes and applies them if fn returns nil.
func (s *MemStore) Update(fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.begin(true)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

func (s *MemStore) begin(writable bool) *memTx {
	return &memTx{
		s:        s,
		writable: writable,
		lastID:   s.lastID,
		shards:   make(map[ID]*Shard),
		records:  make(map[recordKey]*Record),
		ledger:   make(map[Currency]*LedgerEntry),
	}
}

type recordKey struct {
	shard    ID
	currency Currency
}

// memTx overlays staged writes on the committed maps. A nil record in the
// overlay marks a deletion.
type memTx struct {
	s        *MemStore
	writable bool
	lastID   ID
	shards   map[ID]*Shard
	records  map[recordKey]*Record
	ledger   map[Currency]*LedgerEntry
}

func (t *memTx) commit() {
	t.s.lastID = t.lastID
	for id, sh := range t.shards {
		t.s.shards[id] = sh
	}
	for k, r := range t.records {
		if r == nil {
			if m := t.s.records[k.shard]; m != nil {
				delete(m, k.currency)
				if len(m) == 0 {
					delete(t.s.records, k.shard)
				}
			}
			continue
		}
		m := t.s.records[k.shard]
		if m == nil {
			m = make(map[Currency]*Record)
			t.s.records[k.shard] = m
		}
		m[k.currency] = r
	}
	for c, e := range t.ledger {
		t.s.ledger[c] = e
	}
}

func (t *memTx) AllocID() (ID, error) {
	if !t.writable {
		return 0, errReadOnly
	}
	t.lastID++
	return t.lastID, nil
}

func (t *memTx) Shard(id ID) (*Shard, error) {
	if sh, ok := t.shards[id]; ok {
		return sh.clone(), nil
	}
	sh, ok := t.s.shards[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownShard, id)
	}
	return sh.clone(), nil
}

func (t *memTx) PutShard(sh *Shard) error {
	if !t.writable {
		return errReadOnly
	}
	if sh == nil {
		return fmt.Errorf("%w: shard", ErrNilParam)
	}
	t.shards[sh.ID] = sh.clone()
	return nil
}

func (t *memTx) Shards() ([]*Shard, error) {
	out := make([]*Shard, 0, len(t.s.shards)+len(t.shards))
	for id, sh := range t.s.shards {
		if _, staged := t.shards[id]; staged {
			continue
		}
		out = append(out, sh.clone())
	}
	for _, sh := range t.shards {
		out = append(out, sh.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) Record(id ID, c Currency) (*Record, bool, error) {
	if r, ok := t.records[recordKey{id, c}]; ok {
		if r == nil {
			return nil, false, nil
		}
		cp := *r
		return &cp, true, nil
	}
	r, ok := t.s.records[id][c]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (t *memTx) PutRecord(r *Record) error {
	if !t.writable {
		return errReadOnly
	}
	if r == nil {
		return fmt.Errorf("%w: record", ErrNilParam)
	}
	cp := *r
	t.records[recordKey{r.Shard, r.Currency}] = &cp
	return nil
}

func (t *memTx) DeleteRecord(id ID, c Currency) error {
	if !t.writable {
		return errReadOnly
	}
	t.records[recordKey{id, c}] = nil
	return nil
}

func (t *memTx) Records(id ID) ([]*Record, error) {
	var out []*Record
	for c, r := range t.s.records[id] {
		if _, staged := t.records[recordKey{id, c}]; staged {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	for k, r := range t.records {
		if k.shard != id || r == nil {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (t *memTx) Ledger(c Currency) (*LedgerEntry, error) {
	if e, ok := t.ledger[c]; ok {
		cp := *e
		return &cp, nil
	}
	if e, ok := t.s.ledger[c]; ok {
		cp := *e
		return &cp, nil
	}
	return &LedgerEntry{Currency: c}, nil
}

func (t *memTx) PutLedger(e *LedgerEntry) error {
	if !t.writable {
		return errReadOnly
	}
	if e == nil {
		return fmt.Errorf("%w: ledger entry", ErrNilParam)
	}
	cp := *e
	t.ledger[e.Currency] = &cp
	return nil
}

func (t *memTx) Ledgers() ([]*LedgerEntry, error) {
	out := make([]*LedgerEntry, 0, len(t.s.ledger)+len(t.ledger))
	for c, e := range t.s.ledger {
		if _, staged := t.ledger[c]; staged {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	for _, e := range t.ledger {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (s *Shard) clone() *Shard {
	cp := *s
	if s.Sources != nil {
		cp.Sources = append([]ID(nil), s.Sources...)
	}
	return &cp
}
