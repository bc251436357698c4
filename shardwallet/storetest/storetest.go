// Package storetest runs the wallet behaviour suite against any
// shardwallet.Store, so every backend is held to the same semantics.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/shardwallet-go/shardwallet"
	"github.com/bitfsorg/shardwallet-go/treasury"
)

// OpenFunc returns a fresh, empty store. The suite closes it.
type OpenFunc func(t *testing.T) shardwallet.Store

const tok shardwallet.Currency = "tok"

type fixture struct {
	ctx context.Context
	w   *shardwallet.Wallet
	tr  *treasury.Memory
}

func setup(t *testing.T, open OpenFunc) *fixture {
	t.Helper()
	store := open(t)
	t.Cleanup(func() { _ = store.Close() })

	tr := treasury.NewMemory()
	w, err := shardwallet.New(store, tr)
	require.NoError(t, err)

	f := &fixture{ctx: context.Background(), w: w, tr: tr}
	id, err := w.Init(f.ctx, "owner")
	require.NoError(t, err)
	require.Equal(t, shardwallet.RootID, id)
	return f
}

func children(recipient string, shares ...uint64) []shardwallet.Child {
	out := make([]shardwallet.Child, len(shares))
	for i, s := range shares {
		out[i] = shardwallet.Child{ShareMicros: s, Recipient: recipient}
	}
	return out
}

// splitFour is the root split used by most tests: ids 2..5.
func (f *fixture) splitFour(t *testing.T) []shardwallet.ID {
	t.Helper()
	ids, err := f.w.Split(f.ctx, shardwallet.RootID, []shardwallet.Child{
		{ShareMicros: 500000, Recipient: "a"},
		{ShareMicros: 300000, Recipient: "b"},
		{ShareMicros: 100000, Recipient: "c"},
		{ShareMicros: 100000, Recipient: "d"},
	})
	require.NoError(t, err)
	return ids
}

func (f *fixture) snapshot(t *testing.T) *shardwallet.State {
	t.Helper()
	st, err := f.w.Snapshot()
	require.NoError(t, err)
	return st
}

// checkInvariants asserts that active weights cover the denominator and that
// nothing is owed twice: in every currency, what active shards have been
// credited with plus what they can still claim stays within the recognized
// total.
func (f *fixture) checkInvariants(t *testing.T) {
	t.Helper()
	st := f.snapshot(t)

	var weight uint64
	var active []shardwallet.ID
	for _, sh := range st.Shards {
		if sh.Active {
			weight += sh.Weight
			active = append(active, sh.ID)
		}
	}
	assert.Equal(t, shardwallet.Denominator, weight, "active weights must sum to the denominator")

	isActive := make(map[shardwallet.ID]bool, len(active))
	for _, id := range active {
		isActive[id] = true
	}
	credited := make(map[shardwallet.Currency]uint64)
	for _, r := range st.Records {
		if isActive[r.Shard] {
			credited[r.Currency] += r.Claimed
		}
	}
	for _, e := range st.Ledger {
		obligations := credited[e.Currency]
		for _, id := range active {
			owed, err := f.w.Claimable(id, e.Currency)
			require.NoError(t, err)
			obligations += owed
		}
		assert.LessOrEqual(t, obligations, e.CumulativeTotal,
			"%s: credited plus claimable exceeds the recognized total", e.Currency)
	}
}

// claimAll claims every active shard in turn. Each claim must succeed and pay
// exactly what Claimable quoted for it.
func (f *fixture) claimAll(t *testing.T, c shardwallet.Currency) uint64 {
	t.Helper()
	active, err := f.w.ActiveShards()
	require.NoError(t, err)
	var total uint64
	for i, sh := range active {
		want, err := f.w.Claimable(sh.ID, c)
		require.NoError(t, err)
		paid, err := f.w.Claim(f.ctx, sh.ID, []shardwallet.Currency{c})
		require.NoError(t, err, "shard %d", sh.ID)
		if i > 0 {
			assert.Equal(t, want, paid[c], "shard %d paid other than quoted", sh.ID)
		}
		total += paid[c]
		f.checkInvariants(t)
	}
	return total
}

// Run executes the suite.
func Run(t *testing.T, open OpenFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, open OpenFunc)
	}{
		{"SplitRootIntoFour", testSplitRootIntoFour},
		{"MergeSiblings", testMergeSiblings},
		{"ClaimAndRepeat", testClaimAndRepeat},
		{"ReforgeExactSum", testReforgeExactSum},
		{"InitTwice", testInitTwice},
		{"SplitShareSums", testSplitShareSums},
		{"OperandErrors", testOperandErrors},
		{"ClaimErrors", testClaimErrors},
		{"CarryForwardAfterSplit", testCarryForwardAfterSplit},
		{"CarryForwardAfterMerge", testCarryForwardAfterMerge},
		{"ReentrantClaimPaysNothing", testReentrantClaim},
		{"FailedTransferReverts", testFailedTransferReverts},
		{"MultiCurrencyPartialFailure", testMultiCurrencyPartialFailure},
		{"OutflowIsNotInflow", testOutflowIsNotInflow},
		{"InsufficientTreasury", testInsufficientTreasury},
		{"Reassign", testReassign},
		{"Claimable", testClaimable},
		{"RoundingStaysWithinEntitlement", testRounding},
		{"SmallAmountsCarryExactly", testSmallAmounts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.fn(t, open) })
	}
}

func testSplitRootIntoFour(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	ids := f.splitFour(t)
	assert.Equal(t, []shardwallet.ID{2, 3, 4, 5}, ids)

	for i, want := range []uint64{500000, 300000, 100000, 100000} {
		sh, err := f.w.Shard(ids[i])
		require.NoError(t, err)
		assert.Equal(t, want, sh.Weight)
		assert.Equal(t, want, sh.ShareMicros)
		assert.True(t, sh.Active)
		assert.Equal(t, []shardwallet.ID{shardwallet.RootID}, sh.Sources)
	}
	root, err := f.w.Shard(shardwallet.RootID)
	require.NoError(t, err)
	assert.False(t, root.Active)
	f.checkInvariants(t)
}

func testMergeSiblings(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)

	merged, err := f.w.Merge(f.ctx, []shardwallet.ID{4, 5})
	require.NoError(t, err)
	assert.Equal(t, shardwallet.ID(6), merged)

	sh, err := f.w.Shard(merged)
	require.NoError(t, err)
	assert.Equal(t, uint64(200000), sh.Weight)
	assert.Equal(t, "c", sh.Recipient, "merge keeps the first operand's recipient")
	assert.Equal(t, []shardwallet.ID{4, 5}, sh.Sources)

	for _, id := range []shardwallet.ID{4, 5} {
		old, err := f.w.Shard(id)
		require.NoError(t, err)
		assert.False(t, old.Active)
	}

	active, err := f.w.ActiveShards()
	require.NoError(t, err)
	assert.Len(t, active, 3)
	f.checkInvariants(t)

	to, err := f.w.MergeTo(f.ctx, []shardwallet.ID{2, 3}, "vault")
	require.NoError(t, err)
	sh, err = f.w.Shard(to)
	require.NoError(t, err)
	assert.Equal(t, "vault", sh.Recipient)
	assert.Equal(t, uint64(800000), sh.Weight)
}

func testClaimAndRepeat(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)
	f.tr.Deposit(shardwallet.Native, 1_000_000)

	paid, err := f.w.Claim(f.ctx, 3, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	assert.Equal(t, uint64(300000), paid[shardwallet.Native])
	assert.Equal(t, uint64(300000), f.tr.Received("b", shardwallet.Native))

	recs, err := f.w.Records(3)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(300000), recs[0].Claimed)

	before := f.snapshot(t)
	paid, err = f.w.Claim(f.ctx, 3, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	assert.Zero(t, paid[shardwallet.Native])
	if diff := cmp.Diff(before, f.snapshot(t)); diff != "" {
		t.Errorf("no-op claim changed state (-before +after):\n%s", diff)
	}

	// A shard with nothing owed gets no record at all.
	paid, err = f.w.Claim(f.ctx, 4, []shardwallet.Currency{tok})
	require.NoError(t, err)
	assert.Zero(t, paid[tok])
	recs, err = f.w.Records(4)
	require.NoError(t, err)
	assert.Empty(t, recs)
	f.checkInvariants(t)
}

func testReforgeExactSum(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)
	_, err := f.w.Merge(f.ctx, []shardwallet.ID{4, 5})
	require.NoError(t, err)

	before := f.snapshot(t)
	_, err = f.w.Reforge(f.ctx, []shardwallet.ID{2, 3, 6}, children("x", 700000, 200000))
	assert.ErrorIs(t, err, shardwallet.ErrInvalidShareSum)
	if diff := cmp.Diff(before, f.snapshot(t)); diff != "" {
		t.Errorf("failed reforge changed state (-before +after):\n%s", diff)
	}

	ids, err := f.w.Reforge(f.ctx, []shardwallet.ID{2, 3, 6}, children("x", 800000, 200000))
	require.NoError(t, err)
	assert.Equal(t, []shardwallet.ID{7, 8}, ids)

	active, err := f.w.ActiveShards()
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, uint64(800000), active[0].Weight)
	assert.Equal(t, uint64(200000), active[1].Weight)
	f.checkInvariants(t)

	// A reforge may also take a single parent.
	_, err = f.w.Reforge(f.ctx, []shardwallet.ID{8}, children("y", 150000, 50000))
	require.NoError(t, err)
	f.checkInvariants(t)
}

func testInitTwice(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	_, err := f.w.Init(f.ctx, "owner")
	assert.ErrorIs(t, err, shardwallet.ErrAlreadyInitialized)
}

func testSplitShareSums(t *testing.T, open OpenFunc) {
	tests := []struct {
		name   string
		shares []uint64
		want   error
	}{
		{"over", []uint64{600000, 500000}, shardwallet.ErrInvalidShareSum},
		{"under", []uint64{500000, 400000}, shardwallet.ErrInvalidShareSum},
		{"zero", []uint64{1_000_000, 0}, shardwallet.ErrZeroShare},
		{"empty", nil, shardwallet.ErrEmptyOperandSet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, open)
			before := f.snapshot(t)
			_, err := f.w.Split(f.ctx, shardwallet.RootID, children("x", tt.shares...))
			assert.ErrorIs(t, err, tt.want)
			if diff := cmp.Diff(before, f.snapshot(t)); diff != "" {
				t.Errorf("failed split changed state:\n%s", diff)
			}
		})
	}

	t.Run("uneven weights keep the total", func(t *testing.T) {
		f := setup(t, open)
		f.splitFour(t)
		// Shard 3 has share 300000 and weight 300000; thirds do not divide evenly.
		ids, err := f.w.Split(f.ctx, 3, children("x", 100001, 100001, 99998))
		require.NoError(t, err)
		var sum uint64
		for _, id := range ids {
			sh, err := f.w.Shard(id)
			require.NoError(t, err)
			sum += sh.Weight
		}
		assert.Equal(t, uint64(300000), sum)
		f.checkInvariants(t)
	})

	t.Run("bad recipient", func(t *testing.T) {
		f := setup(t, open)
		_, err := f.w.Split(f.ctx, shardwallet.RootID, children(" ", 1_000_000))
		assert.ErrorIs(t, err, shardwallet.ErrInvalidRecipient)
	})
}

func testOperandErrors(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)

	_, err := f.w.Merge(f.ctx, []shardwallet.ID{2})
	assert.ErrorIs(t, err, shardwallet.ErrEmptyOperandSet)

	_, err = f.w.Merge(f.ctx, []shardwallet.ID{2, 2})
	assert.ErrorIs(t, err, shardwallet.ErrDuplicateOperand)

	_, err = f.w.Merge(f.ctx, []shardwallet.ID{2, 99})
	assert.ErrorIs(t, err, shardwallet.ErrUnknownShard)

	_, err = f.w.Merge(f.ctx, []shardwallet.ID{2, shardwallet.RootID})
	assert.ErrorIs(t, err, shardwallet.ErrInactiveShard)

	_, err = f.w.Split(f.ctx, shardwallet.RootID, children("x", 1_000_000))
	assert.ErrorIs(t, err, shardwallet.ErrInactiveShard)

	_, err = f.w.Reforge(f.ctx, nil, children("x", 1))
	assert.ErrorIs(t, err, shardwallet.ErrEmptyOperandSet)

	_, err = f.w.Reforge(f.ctx, []shardwallet.ID{4, 5}, nil)
	assert.ErrorIs(t, err, shardwallet.ErrEmptyOperandSet)

	// Nothing above took effect.
	active, err := f.w.ActiveShards()
	require.NoError(t, err)
	assert.Len(t, active, 4)
	f.checkInvariants(t)
}

func testClaimErrors(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.tr.Deposit(shardwallet.Native, 100)

	_, err := f.w.Claim(f.ctx, shardwallet.RootID, nil)
	assert.ErrorIs(t, err, shardwallet.ErrEmptyOperandSet)

	_, err = f.w.Claim(f.ctx, shardwallet.RootID, []shardwallet.Currency{tok, tok})
	assert.ErrorIs(t, err, shardwallet.ErrDuplicateOperand)

	_, err = f.w.Claim(f.ctx, 42, []shardwallet.Currency{shardwallet.Native})
	assert.ErrorIs(t, err, shardwallet.ErrUnknownShard)

	f.splitFour(t)
	_, err = f.w.Claim(f.ctx, shardwallet.RootID, []shardwallet.Currency{shardwallet.Native})
	assert.ErrorIs(t, err, shardwallet.ErrInactiveShard)
	assert.Equal(t, uint64(100), mustBalance(t, f, shardwallet.Native))
}

func testCarryForwardAfterSplit(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)
	f.tr.Deposit(shardwallet.Native, 1000)

	paid, err := f.w.Claim(f.ctx, 2, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), paid[shardwallet.Native])

	ids, err := f.w.Split(f.ctx, 2, children("half", 250000, 250000))
	require.NoError(t, err)
	for _, id := range ids {
		recs, err := f.w.Records(id)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, uint64(250), recs[0].Claimed, "child inherits half the parent's history")

		paid, err := f.w.Claim(f.ctx, id, []shardwallet.Currency{shardwallet.Native})
		require.NoError(t, err)
		assert.Zero(t, paid[shardwallet.Native], "already-settled funds are not paid twice")
	}

	f.tr.Deposit(shardwallet.Native, 1000)
	paid, err = f.w.Claim(f.ctx, ids[0], []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	assert.Equal(t, uint64(250), paid[shardwallet.Native])
	f.checkInvariants(t)
}

func testCarryForwardAfterMerge(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)
	f.tr.Deposit(shardwallet.Native, 1000)
	f.tr.Deposit(tok, 10)

	_, err := f.w.Claim(f.ctx, 4, []shardwallet.Currency{shardwallet.Native, tok})
	require.NoError(t, err)
	merged, err := f.w.Merge(f.ctx, []shardwallet.ID{4, 5})
	require.NoError(t, err)

	recs, err := f.w.Records(merged)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, shardwallet.Native, recs[0].Currency)
	assert.Equal(t, uint64(100), recs[0].Claimed)
	assert.Equal(t, tok, recs[1].Currency)
	assert.Equal(t, uint64(1), recs[1].Claimed)

	// Shard 5 never claimed; the merged shard collects its part.
	paid, err := f.w.Claim(f.ctx, merged, []shardwallet.Currency{shardwallet.Native, tok})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), paid[shardwallet.Native])
	assert.Equal(t, uint64(1), paid[tok])
	f.checkInvariants(t)
}

func testReentrantClaim(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.tr.Deposit(shardwallet.Native, 1000)

	var inner map[shardwallet.Currency]uint64
	var innerErr error
	calls := 0
	f.tr.OnTransfer = func(ctx context.Context, c shardwallet.Currency, to string, amount uint64) {
		calls++
		if calls == 1 {
			inner, innerErr = f.w.Claim(ctx, shardwallet.RootID, []shardwallet.Currency{c})
		}
	}

	paid, err := f.w.Claim(f.ctx, shardwallet.RootID, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	require.NoError(t, innerErr)
	assert.Equal(t, uint64(1000), paid[shardwallet.Native])
	assert.Zero(t, inner[shardwallet.Native])
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1000), f.tr.Received("owner", shardwallet.Native))
	f.checkInvariants(t)
}

func testFailedTransferReverts(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)
	f.tr.Deposit(shardwallet.Native, 1000)

	boom := errors.New("recipient rejected")
	f.tr.FailNext(boom)
	paid, err := f.w.Claim(f.ctx, 2, []shardwallet.Currency{shardwallet.Native})
	assert.ErrorIs(t, err, shardwallet.ErrTransferFailed)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, shardwallet.ErrTreasuryShort)
	assert.Empty(t, paid)

	recs, err := f.w.Records(2)
	require.NoError(t, err)
	assert.Empty(t, recs, "record created by the failed claim is removed")

	e, err := f.w.Ledger(shardwallet.Native)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), e.CumulativeTotal, "the observed deposit stays recognized")
	assert.Equal(t, uint64(1000), e.LastObservedBalance)

	paid, err = f.w.Claim(f.ctx, 2, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), paid[shardwallet.Native])

	// A failure on an existing record restores its previous amount.
	f.tr.Deposit(shardwallet.Native, 1000)
	f.tr.FailNext(boom)
	_, err = f.w.Claim(f.ctx, 2, []shardwallet.Currency{shardwallet.Native})
	require.ErrorIs(t, err, shardwallet.ErrTransferFailed)
	recs, err = f.w.Records(2)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(500), recs[0].Claimed)
	f.checkInvariants(t)
}

func testMultiCurrencyPartialFailure(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.tr.Deposit(shardwallet.Native, 1000)
	f.tr.Deposit(tok, 40)

	boom := errors.New("token paused")
	calls := 0
	f.tr.OnTransfer = func(context.Context, shardwallet.Currency, string, uint64) {
		calls++
		if calls == 1 {
			f.tr.FailNext(boom)
		}
	}

	paid, err := f.w.Claim(f.ctx, shardwallet.RootID, []shardwallet.Currency{shardwallet.Native, tok})
	assert.ErrorIs(t, err, shardwallet.ErrTransferFailed)
	assert.Equal(t, map[shardwallet.Currency]uint64{shardwallet.Native: 1000}, paid)

	recs, err := f.w.Records(shardwallet.RootID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, shardwallet.Native, recs[0].Currency)

	paid, err = f.w.Claim(f.ctx, shardwallet.RootID, []shardwallet.Currency{tok, shardwallet.Native})
	require.NoError(t, err)
	assert.Equal(t, uint64(40), paid[tok])
	assert.Zero(t, paid[shardwallet.Native])
	f.checkInvariants(t)
}

func testOutflowIsNotInflow(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)
	f.tr.Deposit(shardwallet.Native, 1000)

	_, err := f.w.Claim(f.ctx, 2, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	require.NoError(t, f.tr.Withdraw(shardwallet.Native, 200))

	paid, err := f.w.Claim(f.ctx, 3, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	assert.Equal(t, uint64(300), paid[shardwallet.Native])

	e, err := f.w.Ledger(shardwallet.Native)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), e.CumulativeTotal, "a withdrawal never lowers the total")
	assert.Zero(t, e.LastObservedBalance)

	// New deposits are measured from the lowered balance.
	f.tr.Deposit(shardwallet.Native, 100)
	paid, err = f.w.Claim(f.ctx, 3, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	assert.Equal(t, uint64(30), paid[shardwallet.Native])

	e, err = f.w.Ledger(shardwallet.Native)
	require.NoError(t, err)
	assert.Equal(t, uint64(1100), e.CumulativeTotal)
	f.checkInvariants(t)
}

func testInsufficientTreasury(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)
	f.tr.Deposit(shardwallet.Native, 1000)
	_, err := f.w.Claim(f.ctx, 2, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)

	// Funds leave outside the wallet; shard 3 is owed more than is left.
	require.NoError(t, f.tr.Withdraw(shardwallet.Native, 400))
	before := f.snapshot(t)
	_, err = f.w.Claim(f.ctx, 3, []shardwallet.Currency{shardwallet.Native})
	assert.ErrorIs(t, err, shardwallet.ErrTransferFailed)
	assert.ErrorIs(t, err, shardwallet.ErrTreasuryShort)
	if diff := cmp.Diff(before, f.snapshot(t)); diff != "" {
		t.Errorf("refused claim changed state:\n%s", diff)
	}
}

func testReassign(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)
	f.tr.Deposit(shardwallet.Native, 1000)

	require.NoError(t, f.w.Reassign(f.ctx, 2, "buyer"))
	_, err := f.w.Claim(f.ctx, 2, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), f.tr.Received("buyer", shardwallet.Native))
	assert.Zero(t, f.tr.Received("a", shardwallet.Native))

	assert.ErrorIs(t, f.w.Reassign(f.ctx, shardwallet.RootID, "x"), shardwallet.ErrInactiveShard)
	assert.ErrorIs(t, f.w.Reassign(f.ctx, 2, ""), shardwallet.ErrInvalidRecipient)
	assert.ErrorIs(t, f.w.Reassign(f.ctx, 77, "x"), shardwallet.ErrUnknownShard)
}

func testClaimable(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.splitFour(t)
	f.tr.Deposit(shardwallet.Native, 1000)

	owed, err := f.w.Claimable(3, shardwallet.Native)
	require.NoError(t, err)
	assert.Zero(t, owed, "deposits are recognized lazily")

	_, err = f.w.Claim(f.ctx, 2, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)
	owed, err = f.w.Claimable(3, shardwallet.Native)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), owed)

	_, err = f.w.Claimable(shardwallet.RootID, shardwallet.Native)
	assert.ErrorIs(t, err, shardwallet.ErrInactiveShard)
}

func testRounding(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	f.tr.Deposit(shardwallet.Native, 7)
	_, err := f.w.Claim(f.ctx, shardwallet.RootID, []shardwallet.Currency{shardwallet.Native})
	require.NoError(t, err)

	ids, err := f.w.Split(f.ctx, shardwallet.RootID, children("x", 333333, 333333, 333334))
	require.NoError(t, err)
	f.checkInvariants(t)

	f.tr.Deposit(shardwallet.Native, 13)
	for _, id := range ids {
		_, err := f.w.Claim(f.ctx, id, []shardwallet.Currency{shardwallet.Native})
		require.NoError(t, err)
		f.checkInvariants(t)
	}

	merged, err := f.w.Merge(f.ctx, ids[:2])
	require.NoError(t, err)
	_, err = f.w.Reforge(f.ctx, []shardwallet.ID{merged, ids[2]}, children("y", 1, 999999))
	require.NoError(t, err)
	f.checkInvariants(t)

	f.tr.Deposit(shardwallet.Native, 1_000_003)
	active, err := f.w.ActiveShards()
	require.NoError(t, err)
	for _, sh := range active {
		_, err := f.w.Claim(f.ctx, sh.ID, []shardwallet.Currency{shardwallet.Native})
		require.NoError(t, err)
	}
	f.checkInvariants(t)
}

func testSmallAmounts(t *testing.T, open OpenFunc) {
	f := setup(t, open)
	native := shardwallet.Native
	f.tr.Deposit(native, 1)
	paid, err := f.w.Claim(f.ctx, shardwallet.RootID, []shardwallet.Currency{native})
	require.NoError(t, err)
	require.Equal(t, uint64(1), paid[native])

	// Neither half is entitled to anything yet, but the unit already paid
	// must still be carried.
	halves, err := f.w.Split(f.ctx, shardwallet.RootID, []shardwallet.Child{
		{ShareMicros: 500000, Recipient: "a"},
		{ShareMicros: 500000, Recipient: "b"},
	})
	require.NoError(t, err)
	f.checkInvariants(t)

	f.tr.Deposit(native, 3)
	assert.Equal(t, uint64(3), f.claimAll(t, native))
	assert.Zero(t, mustBalance(t, f, native))
	assert.Equal(t, uint64(4), f.tr.Received("owner", native)+f.tr.Received("a", native)+f.tr.Received("b", native))

	thirds, err := f.w.Reforge(f.ctx, halves, children("x", 333333, 333333, 333334))
	require.NoError(t, err)
	f.checkInvariants(t)
	var carried uint64
	for _, id := range thirds {
		recs, err := f.w.Records(id)
		require.NoError(t, err)
		for _, r := range recs {
			carried += r.Claimed
		}
	}
	assert.Equal(t, uint64(4), carried, "reforge carries every paid unit")

	f.tr.Deposit(native, 3)
	f.claimAll(t, native)
	merged, err := f.w.Merge(f.ctx, thirds[:2])
	require.NoError(t, err)
	f.checkInvariants(t)

	f.tr.Deposit(native, 5)
	f.claimAll(t, native)
	for _, id := range []shardwallet.ID{merged, thirds[2]} {
		owed, err := f.w.Claimable(id, native)
		require.NoError(t, err)
		assert.Zero(t, owed)
	}
	assert.Equal(t, uint64(12), mustBalance(t, f, native)+f.tr.Received("owner", native)+
		f.tr.Received("a", native)+f.tr.Received("b", native)+f.tr.Received("x", native))
}

func mustBalance(t *testing.T, f *fixture, c shardwallet.Currency) uint64 {
	t.Helper()
	b, err := f.tr.Balance(f.ctx, c)
	require.NoError(t, err)
	return b
}
