package shardwallet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_RollbackOnError(t *testing.T) {
	s := NewMemStore()
	boom := errors.New("boom")

	err := s.Update(func(tx Tx) error {
		id, err := tx.AllocID()
		require.NoError(t, err)
		require.NoError(t, tx.PutShard(&Shard{ID: id, Weight: 1, Active: true}))
		require.NoError(t, tx.PutRecord(&Record{Shard: id, Currency: Native, Claimed: 3}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(func(tx Tx) error {
		shards, err := tx.Shards()
		require.NoError(t, err)
		assert.Empty(t, shards)
		_, ok, err := tx.Record(1, Native)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))

	require.NoError(t, s.Update(func(tx Tx) error {
		id, err := tx.AllocID()
		require.NoError(t, err)
		assert.Equal(t, ID(1), id, "a rolled-back allocation is not consumed")
		return nil
	}))
}

func TestMemStore_StagedDeleteAndReadOnly(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Update(func(tx Tx) error {
		return tx.PutRecord(&Record{Shard: 1, Currency: "tok", Claimed: 5})
	}))

	require.NoError(t, s.Update(func(tx Tx) error {
		require.NoError(t, tx.DeleteRecord(1, "tok"))
		_, ok, err := tx.Record(1, "tok")
		require.NoError(t, err)
		assert.False(t, ok, "delete is visible inside the transaction")
		recs, err := tx.Records(1)
		require.NoError(t, err)
		assert.Empty(t, recs)
		return nil
	}))

	err := s.View(func(tx Tx) error {
		return tx.PutLedger(&LedgerEntry{Currency: Native})
	})
	assert.Error(t, err)
}

func TestMemStore_ReadsAreCopies(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Update(func(tx Tx) error {
		return tx.PutShard(&Shard{ID: 1, Sources: []ID{7}})
	}))
	require.NoError(t, s.View(func(tx Tx) error {
		sh, err := tx.Shard(1)
		require.NoError(t, err)
		sh.Sources[0] = 9
		return nil
	}))
	require.NoError(t, s.View(func(tx Tx) error {
		sh, err := tx.Shard(1)
		require.NoError(t, err)
		assert.Equal(t, []ID{7}, sh.Sources)
		return nil
	}))
}
