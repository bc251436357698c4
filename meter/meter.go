// Package meter charges storage-style costs for wallet operations so the
// benchmark driver can compare them. Reads are cold the first time a slot is
// touched within a step and warm after; writing a nonzero value into an empty
// slot costs more than overwriting a used one.
package meter

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitfsorg/shardwallet-go/shardwallet"
)

// Schedule is the price list, in abstract cost units.
type Schedule struct {
	Base           uint64 `yaml:"base"`            // charged once per step
	ColdRead       uint64 `yaml:"cold_read"`       // first read of a slot in a step
	WarmRead       uint64 `yaml:"warm_read"`       // later reads
	NewSlot        uint64 `yaml:"new_slot"`        // zero to nonzero
	UpdateSlot     uint64 `yaml:"update_slot"`     // nonzero to anything
	BalanceQuery   uint64 `yaml:"balance_query"`   // treasury balance lookup
	NativeTransfer uint64 `yaml:"native_transfer"` // outbound native payout
	TokenTransfer  uint64 `yaml:"token_transfer"`  // outbound token payout
}

// DefaultSchedule follows EVM storage pricing.
var DefaultSchedule = Schedule{
	Base:           21000,
	ColdRead:       2100,
	WarmRead:       100,
	NewSlot:        20000,
	UpdateSlot:     2900,
	BalanceQuery:   2600,
	NativeTransfer: 9000,
	TokenTransfer:  29000,
}

// Meter accumulates the cost of the current step.
type Meter struct {
	mu    sync.Mutex
	sched Schedule
	used  uint64
	warm  map[string]bool
}

// New creates a meter with the given schedule.
func New(sched Schedule) *Meter {
	return &Meter{sched: sched, warm: make(map[string]bool)}
}

// Begin starts a step: the warm set is cleared and the base cost charged.
// Anything used so far is discarded.
func (m *Meter) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used = m.sched.Base
	m.warm = make(map[string]bool)
}

// Take returns the cost of the current step and resets the meter.
func (m *Meter) Take() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := m.used
	m.used = 0
	m.warm = make(map[string]bool)
	return used
}

// Used returns the cost so far without resetting.
func (m *Meter) Used() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

func (m *Meter) charge(units uint64) {
	m.mu.Lock()
	m.used += units
	m.mu.Unlock()
}

func (m *Meter) read(slot string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.warm[slot] {
		m.used += m.sched.WarmRead
		return
	}
	m.warm[slot] = true
	m.used += m.sched.ColdRead
}

// write charges for storing into slot; wasZero reports whether the slot held
// nothing before, isZero whether it holds nothing after.
func (m *Meter) write(slot string, wasZero, isZero bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warm[slot] = true
	switch {
	case wasZero && isZero:
		m.used += m.sched.WarmRead
	case wasZero:
		m.used += m.sched.NewSlot
	default:
		m.used += m.sched.UpdateSlot
	}
}

func shardSlot(id shardwallet.ID) string { return fmt.Sprintf("shard/%d", id) }

func recordSlot(id shardwallet.ID, c shardwallet.Currency) string {
	return fmt.Sprintf("record/%d/%s", id, c)
}

func ledgerSlot(c shardwallet.Currency) string { return "ledger/" + c.String() }

const lastIDSlot = "meta/last_id"

// Treasury wraps t so balance lookups and payouts are charged.
func (m *Meter) Treasury(t shardwallet.Treasury) shardwallet.Treasury {
	return &treasury{m: m, inner: t}
}

type treasury struct {
	m     *Meter
	inner shardwallet.Treasury
}

func (t *treasury) Balance(ctx context.Context, c shardwallet.Currency) (uint64, error) {
	t.m.charge(t.m.sched.BalanceQuery)
	return t.inner.Balance(ctx, c)
}

func (t *treasury) Transfer(ctx context.Context, c shardwallet.Currency, to string, amount uint64) error {
	if c == shardwallet.Native {
		t.m.charge(t.m.sched.NativeTransfer)
	} else {
		t.m.charge(t.m.sched.TokenTransfer)
	}
	return t.inner.Transfer(ctx, c, to, amount)
}
