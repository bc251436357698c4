package shardwallet_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bitfsorg/shardwallet-go/shardwallet"
	"github.com/bitfsorg/shardwallet-go/shardwallet/storetest"
	"github.com/bitfsorg/shardwallet-go/treasury"
)

func TestMemStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) shardwallet.Store {
		return shardwallet.NewMemStore()
	})
}

func TestBoltStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) shardwallet.Store {
		s, err := shardwallet.OpenBoltStore(filepath.Join(t.TempDir(), "wallet.db"))
		require.NoError(t, err)
		return s
	})
}

func TestBoltStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "wallet.db")

	s, err := shardwallet.OpenBoltStore(path)
	require.NoError(t, err)
	tr := treasury.NewMemory()
	w, err := shardwallet.New(s, tr)
	require.NoError(t, err)
	_, err = w.Init(ctx, "owner")
	require.NoError(t, err)
	_, err = w.Split(ctx, shardwallet.RootID, []shardwallet.Child{
		{ShareMicros: 600000, Recipient: "a"},
		{ShareMicros: 400000, Recipient: "b"},
	})
	require.NoError(t, err)
	tr.Deposit(shardwallet.Native, 100)
	_, err = w.Claim(ctx, 2, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = shardwallet.OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	w, err = shardwallet.New(s, tr)
	require.NoError(t, err)

	active, err := w.ActiveShards()
	require.NoError(t, err)
	require.Len(t, active, 2)
	recs, err := w.Records(2)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(60), recs[0].Claimed)

	// Ids keep counting from where they stopped.
	ids, err := w.Split(ctx, 3, []shardwallet.Child{
		{ShareMicros: 200000, Recipient: "c"},
		{ShareMicros: 200000, Recipient: "d"},
	})
	require.NoError(t, err)
	assert.Equal(t, []shardwallet.ID{4, 5}, ids)
}

func TestNew_NilParams(t *testing.T) {
	_, err := shardwallet.New(nil, treasury.NewMemory())
	assert.ErrorIs(t, err, shardwallet.ErrNilParam)
	_, err = shardwallet.New(shardwallet.NewMemStore(), nil)
	assert.ErrorIs(t, err, shardwallet.ErrNilParam)
}

func TestWithRecipientCheck(t *testing.T) {
	ctx := context.Background()
	onlyA := func(r string) error {
		if r != "a" {
			return assert.AnError
		}
		return nil
	}
	w, err := shardwallet.New(shardwallet.NewMemStore(), treasury.NewMemory(), shardwallet.WithRecipientCheck(onlyA))
	require.NoError(t, err)

	_, err = w.Init(ctx, "b")
	assert.ErrorIs(t, err, shardwallet.ErrInvalidRecipient)
	_, err = w.Init(ctx, "a")
	require.NoError(t, err)
}

func TestLogging(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	tr := treasury.NewMemory()
	w, err := shardwallet.New(shardwallet.NewMemStore(), tr, shardwallet.WithLogger(zap.New(core)))
	require.NoError(t, err)

	_, err = w.Init(ctx, "owner")
	require.NoError(t, err)
	tr.Deposit(shardwallet.Native, 10)
	_, err = w.Claim(ctx, shardwallet.RootID, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)

	paid := logs.FilterMessage("claim paid").All()
	require.Len(t, paid, 1)
	assert.Equal(t, uint64(10), paid[0].ContextMap()["amount"])
	assert.Equal(t, "native", paid[0].ContextMap()["currency"])

	tr.Deposit(shardwallet.Native, 10)
	tr.FailNext(assert.AnError)
	_, err = w.Claim(ctx, shardwallet.RootID, []shardwallet.Currency{shardwallet.Native})
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}
