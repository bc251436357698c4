// Package sqlstore keeps wallet state in a SQLite database.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/bitfsorg/shardwallet-go/shardwallet"
)

const schema = `
CREATE TABLE IF NOT EXISTS shards (
	id INTEGER PRIMARY KEY,
	share_micros INTEGER NOT NULL,
	weight INTEGER NOT NULL,
	recipient TEXT NOT NULL,
	active INTEGER NOT NULL,
	sources TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS records (
	shard_id INTEGER NOT NULL,
	currency TEXT NOT NULL,
	claimed INTEGER NOT NULL,
	PRIMARY KEY (shard_id, currency)
);
CREATE TABLE IF NOT EXISTS ledger (
	currency TEXT PRIMARY KEY,
	cumulative_total INTEGER NOT NULL,
	last_observed_balance INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// Store is a shardwallet.Store on SQLite. All access goes through a single
// connection, so transactions are serialized.
//
// SQLite integers are signed; uint64 amounts are stored bit-for-bit as int64.
type Store struct {
	db *sql.DB
}

// Compile-time interface check.
var _ shardwallet.Store = (*Store)(nil)

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("sqlstore: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(fn func(tx shardwallet.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&sqlTx{tx: tx, readOnly: true})
}

// Update runs fn in a transaction committed only when fn returns nil.
func (s *Store) Update(fn func(tx shardwallet.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *sqlTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *sqlTx) AllocID() (shardwallet.ID, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	var last int64
	err := t.tx.QueryRow(`SELECT value FROM meta WHERE key = 'last_id'`).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlstore: read last id: %w", err)
	}
	next := uint64(last) + 1
	_, err = t.tx.Exec(`INSERT INTO meta (key, value) VALUES ('last_id', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, int64(next))
	if err != nil {
		return 0, fmt.Errorf("sqlstore: write last id: %w", err)
	}
	return shardwallet.ID(next), nil
}

const shardColumns = `id, share_micros, weight, recipient, active, sources`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanShard(row scanner) (*shardwallet.Shard, error) {
	var (
		id, share, weight int64
		recipient, src    string
		active            bool
	)
	if err := row.Scan(&id, &share, &weight, &recipient, &active, &src); err != nil {
		return nil, err
	}
	sh := &shardwallet.Shard{
		ID:          shardwallet.ID(id),
		ShareMicros: uint64(share),
		Weight:      uint64(weight),
		Recipient:   recipient,
		Active:      active,
	}
	if err := json.Unmarshal([]byte(src), &sh.Sources); err != nil {
		return nil, fmt.Errorf("%w: shard %d sources: %w", ErrCorrupt, id, err)
	}
	if len(sh.Sources) == 0 {
		sh.Sources = nil
	}
	return sh, nil
}

func (t *sqlTx) Shard(id shardwallet.ID) (*shardwallet.Shard, error) {
	row := t.tx.QueryRow(`SELECT `+shardColumns+` FROM shards WHERE id = ?`, int64(id))
	sh, err := scanShard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", shardwallet.ErrUnknownShard, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read shard %d: %w", id, err)
	}
	return sh, nil
}

func (t *sqlTx) PutShard(sh *shardwallet.Shard) error {
	if err := t.writable(); err != nil {
		return err
	}
	if sh == nil {
		return fmt.Errorf("%w: shard", shardwallet.ErrNilParam)
	}
	sources := sh.Sources
	if sources == nil {
		sources = []shardwallet.ID{}
	}
	src, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("sqlstore: encode sources: %w", err)
	}
	_, err = t.tx.Exec(`INSERT INTO shards (`+shardColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET share_micros = excluded.share_micros, weight = excluded.weight,
			recipient = excluded.recipient, active = excluded.active, sources = excluded.sources`,
		int64(sh.ID), int64(sh.ShareMicros), int64(sh.Weight), sh.Recipient, sh.Active, string(src))
	if err != nil {
		return fmt.Errorf("sqlstore: put shard %d: %w", sh.ID, err)
	}
	return nil
}

func (t *sqlTx) Shards() ([]*shardwallet.Shard, error) {
	rows, err := t.tx.Query(`SELECT ` + shardColumns + ` FROM shards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list shards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*shardwallet.Shard
	for rows.Next() {
		sh, err := scanShard(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan shard: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (t *sqlTx) Record(id shardwallet.ID, c shardwallet.Currency) (*shardwallet.Record, bool, error) {
	var claimed int64
	err := t.tx.QueryRow(`SELECT claimed FROM records WHERE shard_id = ? AND currency = ?`,
		int64(id), string(c)).Scan(&claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: read record %d/%s: %w", id, c, err)
	}
	return &shardwallet.Record{Shard: id, Currency: c, Claimed: uint64(claimed)}, true, nil
}

func (t *sqlTx) PutRecord(r *shardwallet.Record) error {
	if err := t.writable(); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: record", shardwallet.ErrNilParam)
	}
	_, err := t.tx.Exec(`INSERT INTO records (shard_id, currency, claimed) VALUES (?, ?, ?)
		ON CONFLICT(shard_id, currency) DO UPDATE SET claimed = excluded.claimed`,
		int64(r.Shard), string(r.Currency), int64(r.Claimed))
	if err != nil {
		return fmt.Errorf("sqlstore: put record %d/%s: %w", r.Shard, r.Currency, err)
	}
	return nil
}

func (t *sqlTx) DeleteRecord(id shardwallet.ID, c shardwallet.Currency) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.tx.Exec(`DELETE FROM records WHERE shard_id = ? AND currency = ?`, int64(id), string(c)); err != nil {
		return fmt.Errorf("sqlstore: delete record %d/%s: %w", id, c, err)
	}
	return nil
}

func (t *sqlTx) Records(id shardwallet.ID) ([]*shardwallet.Record, error) {
	rows, err := t.tx.Query(`SELECT currency, claimed FROM records WHERE shard_id = ? ORDER BY currency`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*shardwallet.Record
	for rows.Next() {
		var (
			c       string
			claimed int64
		)
		if err := rows.Scan(&c, &claimed); err != nil {
			return nil, fmt.Errorf("sqlstore: scan record: %w", err)
		}
		out = append(out, &shardwallet.Record{Shard: id, Currency: shardwallet.Currency(c), Claimed: uint64(claimed)})
	}
	return out, rows.Err()
}

func (t *sqlTx) Ledger(c shardwallet.Currency) (*shardwallet.LedgerEntry, error) {
	var total, last int64
	err := t.tx.QueryRow(`SELECT cumulative_total, last_observed_balance FROM ledger WHERE currency = ?`,
		string(c)).Scan(&total, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return &shardwallet.LedgerEntry{Currency: c}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read ledger %s: %w", c, err)
	}
	return &shardwallet.LedgerEntry{Currency: c, CumulativeTotal: uint64(total), LastObservedBalance: uint64(last)}, nil
}

func (t *sqlTx) PutLedger(e *shardwallet.LedgerEntry) error {
	if err := t.writable(); err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%w: ledger entry", shardwallet.ErrNilParam)
	}
	_, err := t.tx.Exec(`INSERT INTO ledger (currency, cumulative_total, last_observed_balance) VALUES (?, ?, ?)
		ON CONFLICT(currency) DO UPDATE SET cumulative_total = excluded.cumulative_total,
			last_observed_balance = excluded.last_observed_balance`,
		string(e.Currency), int64(e.CumulativeTotal), int64(e.LastObservedBalance))
	if err != nil {
		return fmt.Errorf("sqlstore: put ledger %s: %w", e.Currency, err)
	}
	return nil
}

func (t *sqlTx) Ledgers() ([]*shardwallet.LedgerEntry, error) {
	rows, err := t.tx.Query(`SELECT currency, cumulative_total, last_observed_balance FROM ledger ORDER BY currency`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*shardwallet.LedgerEntry
	for rows.Next() {
		var (
			c           string
			total, last int64
		)
		if err := rows.Scan(&c, &total, &last); err != nil {
			return nil, fmt.Errorf("sqlstore: scan ledger: %w", err)
		}
		out = append(out, &shardwallet.LedgerEntry{
			Currency:            shardwallet.Currency(c),
			CumulativeTotal:     uint64(total),
			LastObservedBalance: uint64(last),
		})
	}
	return out, rows.Err()
}
