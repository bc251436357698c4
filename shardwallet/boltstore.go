package shardwallet

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var (
	bucketShards  = []byte("shards")
	bucketRecords = []byte("records")
	bucketLedger  = []byte("ledger")
	bucketMeta    = []byte("meta")

	keyLastID = []byte("last_id")
)

// BoltStore persists wallet state in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("shardwallet: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("shardwallet: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketShards, bucketRecords, bucketLedger, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("shardwallet: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// View runs fn in a bbolt read transaction.
func (s *BoltStore) View(fn func(tx Tx) error) error {
	return s.db.View(func(btx *bbolt.Tx) error {
		return fn(&boltTx{tx: btx})
	})
}

// Update runs fn in a bbolt read-write transaction.
func (s *BoltStore) Update(fn func(tx Tx) error) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		return fn(&boltTx{tx: btx})
	})
}

// idKey encodes a shard id as an 8-byte big-endian key for sorted storage.
func idKey(id ID) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

// currencyKey tags the currency so the native sentinel is not an empty key.
func currencyKey(c Currency) []byte {
	return append([]byte{'$'}, c...)
}

// recordKeyBytes is id || currencyKey, so a shard's records share a prefix.
func recordKeyBytes(id ID, c Currency) []byte {
	return append(idKey(id), currencyKey(c)...)
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

type boltTx struct {
	tx *bbolt.Tx
}

func (t *boltTx) AllocID() (ID, error) {
	b := t.tx.Bucket(bucketMeta)
	var last uint64
	if v := b.Get(keyLastID); v != nil {
		last = binary.BigEndian.Uint64(v)
	}
	next := ID(last + 1)
	if err := b.Put(keyLastID, idKey(next)); err != nil {
		return 0, fmt.Errorf("boltstore: put last id: %w", err)
	}
	return next, nil
}

func (t *boltTx) Shard(id ID) (*Shard, error) {
	data := t.tx.Bucket(bucketShards).Get(idKey(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownShard, id)
	}
	var sh Shard
	if err := decodeGob(data, &sh); err != nil {
		return nil, fmt.Errorf("boltstore: decode shard %d: %w", id, err)
	}
	return &sh, nil
}

func (t *boltTx) PutShard(sh *Shard) error {
	if sh == nil {
		return fmt.Errorf("%w: shard", ErrNilParam)
	}
	data, err := encodeGob(sh)
	if err != nil {
		return fmt.Errorf("encode shard: %w", err)
	}
	if err := t.tx.Bucket(bucketShards).Put(idKey(sh.ID), data); err != nil {
		return fmt.Errorf("boltstore: put shard: %w", err)
	}
	return nil
}

func (t *boltTx) Shards() ([]*Shard, error) {
	var out []*Shard
	err := t.tx.Bucket(bucketShards).ForEach(func(k, v []byte) error {
		var sh Shard
		if err := decodeGob(v, &sh); err != nil {
			return fmt.Errorf("boltstore: decode shard in list: %w", err)
		}
		out = append(out, &sh)
		return nil
	})
	return out, err
}

func (t *boltTx) Record(id ID, c Currency) (*Record, bool, error) {
	v := t.tx.Bucket(bucketRecords).Get(recordKeyBytes(id, c))
	if v == nil {
		return nil, false, nil
	}
	if len(v) != 8 {
		return nil, false, fmt.Errorf("boltstore: record %d/%s: bad length %d", id, c, len(v))
	}
	return &Record{Shard: id, Currency: c, Claimed: binary.BigEndian.Uint64(v)}, true, nil
}

func (t *boltTx) PutRecord(r *Record) error {
	if r == nil {
		return fmt.Errorf("%w: record", ErrNilParam)
	}
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, r.Claimed)
	if err := t.tx.Bucket(bucketRecords).Put(recordKeyBytes(r.Shard, r.Currency), v); err != nil {
		return fmt.Errorf("boltstore: put record: %w", err)
	}
	return nil
}

func (t *boltTx) DeleteRecord(id ID, c Currency) error {
	if err := t.tx.Bucket(bucketRecords).Delete(recordKeyBytes(id, c)); err != nil {
		return fmt.Errorf("boltstore: delete record: %w", err)
	}
	return nil
}

func (t *boltTx) Records(id ID) ([]*Record, error) {
	prefix := idKey(id)
	var out []*Record
	c := t.tx.Bucket(bucketRecords).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if len(v) != 8 || len(k) < len(prefix)+1 {
			return nil, fmt.Errorf("boltstore: malformed record under shard %d", id)
		}
		out = append(out, &Record{
			Shard:    id,
			Currency: Currency(k[len(prefix)+1:]),
			Claimed:  binary.BigEndian.Uint64(v),
		})
	}
	return out, nil
}

func (t *boltTx) Ledger(c Currency) (*LedgerEntry, error) {
	data := t.tx.Bucket(bucketLedger).Get(currencyKey(c))
	if data == nil {
		return &LedgerEntry{Currency: c}, nil
	}
	var e LedgerEntry
	if err := decodeGob(data, &e); err != nil {
		return nil, fmt.Errorf("boltstore: decode ledger %s: %w", c, err)
	}
	return &e, nil
}

func (t *boltTx) PutLedger(e *LedgerEntry) error {
	if e == nil {
		return fmt.Errorf("%w: ledger entry", ErrNilParam)
	}
	data, err := encodeGob(e)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	if err := t.tx.Bucket(bucketLedger).Put(currencyKey(e.Currency), data); err != nil {
		return fmt.Errorf("boltstore: put ledger: %w", err)
	}
	return nil
}

func (t *boltTx) Ledgers() ([]*LedgerEntry, error) {
	var out []*LedgerEntry
	err := t.tx.Bucket(bucketLedger).ForEach(func(k, v []byte) error {
		var e LedgerEntry
		if err := decodeGob(v, &e); err != nil {
			return fmt.Errorf("boltstore: decode ledger in list: %w", err)
		}
		out = append(out, &e)
		return nil
	})
	return out, err
}
