package shardwallet

// Store persists shards, currency records and the currency ledger. Every
// wallet operation runs inside exactly one Update, so a failed operation
// leaves the store as it was.
type Store interface {
	// View runs fn in a read-only transaction.
	View(fn func(tx Tx) error) error

	// Update runs fn in a read-write transaction. The transaction commits
	// only if fn returns nil.
	Update(fn func(tx Tx) error) error

	// Close releases the underlying resources.
	Close() error
}

// Tx is a store transaction. Writes are only visible to other transactions
// after commit.
type Tx interface {
	// AllocID reserves the next shard id.
	AllocID() (ID, error)

	// Shard returns the shard with the given id, or ErrUnknownShard.
	Shard(id ID) (*Shard, error)

	// PutShard creates or overwrites a shard.
	PutShard(s *Shard) error

	// Shards returns every shard, ordered by id.
	Shards() ([]*Shard, error)

	// Record returns the currency record for (id, c). The bool is false when
	// no record exists.
	Record(id ID, c Currency) (*Record, bool, error)

	// PutRecord creates or overwrites a currency record.
	PutRecord(r *Record) error

	// DeleteRecord removes a currency record. Missing records are ignored.
	DeleteRecord(id ID, c Currency) error

	// Records returns every currency record of a shard.
	Records(id ID) ([]*Record, error)

	// Ledger returns the ledger entry for c. A currency never observed
	// yields a zero entry.
	Ledger(c Currency) (*LedgerEntry, error)

	// PutLedger overwrites the ledger entry for e.Currency.
	PutLedger(e *LedgerEntry) error

	// Ledgers returns every ledger entry.
	Ledgers() ([]*LedgerEntry, error)
}
