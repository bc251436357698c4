package sqlstore

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/shardwallet-go/shardwallet"
	"github.com/bitfsorg/shardwallet-go/shardwallet/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) shardwallet.Store {
		s, err := Open(filepath.Join(t.TempDir(), "wallet.sqlite"))
		require.NoError(t, err)
		return s
	})
}

func TestStore_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Update(func(tx shardwallet.Tx) error {
		id, err := tx.AllocID()
		require.NoError(t, err)
		assert.Equal(t, shardwallet.ID(1), id)
		return tx.PutShard(&shardwallet.Shard{ID: id, ShareMicros: 1, Weight: 1, Recipient: "r", Active: true})
	}))
	require.NoError(t, s.View(func(tx shardwallet.Tx) error {
		sh, err := tx.Shard(1)
		require.NoError(t, err)
		assert.Equal(t, "r", sh.Recipient)
		assert.Nil(t, sh.Sources)
		return nil
	}))
}

func TestStore_FullRangeAmounts(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "w.sqlite"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Update(func(tx shardwallet.Tx) error {
		require.NoError(t, tx.PutRecord(&shardwallet.Record{Shard: 1, Currency: "tok", Claimed: math.MaxUint64}))
		return tx.PutLedger(&shardwallet.LedgerEntry{Currency: "tok", CumulativeTotal: math.MaxUint64, LastObservedBalance: 1 << 63})
	}))
	require.NoError(t, s.View(func(tx shardwallet.Tx) error {
		r, ok, err := tx.Record(1, "tok")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint64(math.MaxUint64), r.Claimed)

		e, err := tx.Ledger("tok")
		require.NoError(t, err)
		assert.Equal(t, uint64(math.MaxUint64), e.CumulativeTotal)
		assert.Equal(t, uint64(1<<63), e.LastObservedBalance)
		return nil
	}))
}

func TestStore_ReadOnlyView(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	err = s.View(func(tx shardwallet.Tx) error {
		_, err := tx.AllocID()
		return err
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestStore_RollbackKeepsCounter(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	err = s.Update(func(tx shardwallet.Tx) error {
		_, err := tx.AllocID()
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	require.NoError(t, s.Update(func(tx shardwallet.Tx) error {
		id, err := tx.AllocID()
		require.NoError(t, err)
		assert.Equal(t, shardwallet.ID(1), id)
		return nil
	}))
}
