package shardwallet

import "context"

// Denominator is the fixed base for absolute shard weights (parts per million).
const Denominator uint64 = 1_000_000

// RootID is the id of the shard created by Init. It owns 100% of all inflows.
const RootID ID = 1

// ID identifies a shard. Ids are allocated sequentially and never reused.
type ID uint64

// Currency identifies what a deposit is denominated in. Native is the chain's
// own value; any other value names a fungible-token contract.
type Currency string

// Native is the sentinel currency for native value (satoshis).
const Native Currency = ""

// String returns "native" for the sentinel and the token identifier otherwise.
func (c Currency) String() string {
	if c == Native {
		return "native"
	}
	return string(c)
}

// ParseCurrency is the inverse of Currency.String.
func ParseCurrency(s string) Currency {
	if s == "native" {
		return Native
	}
	return Currency(s)
}

// Child describes one shard to be created by Split or Reforge.
type Child struct {
	ShareMicros uint64 `json:"share_micros" yaml:"share_micros"`
	Recipient   string `json:"recipient" yaml:"recipient"`
}

// Shard is one unit of fractional ownership.
type Shard struct {
	ID          ID
	ShareMicros uint64 // share relative to the source shard(s) at creation
	Weight      uint64 // absolute fraction of the root, over Denominator
	Recipient   string // payout address
	Active      bool
	Sources     []ID // shards consumed to create this one; empty for the root
}

// Record is the cumulative amount paid out to a shard in one currency.
type Record struct {
	Shard    ID
	Currency Currency
	Claimed  uint64
}

// LedgerEntry tracks everything ever received in one currency.
type LedgerEntry struct {
	Currency            Currency
	CumulativeTotal     uint64
	LastObservedBalance uint64
}

// Treasury holds the deposited funds. Balance must already reflect a
// transfer's debit by the time Transfer runs any callback into the wallet.
type Treasury interface {
	// Balance returns the amount of c currently held.
	Balance(ctx context.Context, c Currency) (uint64, error)

	// Transfer pays amount of c to the recipient. A failed transfer must not
	// move any funds.
	Transfer(ctx context.Context, c Currency, to string, amount uint64) error
}

// State is a full dump of the wallet, used for inspection and audits.
type State struct {
	Shards  []*Shard
	Records []*Record
	Ledger  []*LedgerEntry
}
