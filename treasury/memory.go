package treasury

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitfsorg/shardwallet-go/shardwallet"
)

// TransferHook runs after a Memory transfer has moved the funds, the way a
// receiving contract's callback runs after the value arrives.
type TransferHook func(ctx context.Context, c shardwallet.Currency, to string, amount uint64)

// Memory is an in-process treasury. Deposits are plain balance increases
// with no notification to the wallet.
type Memory struct {
	mu       sync.Mutex
	balances map[shardwallet.Currency]uint64
	received map[string]map[shardwallet.Currency]uint64
	failNext error

	// OnTransfer, if set, is called after every successful transfer.
	OnTransfer TransferHook
}

// Compile-time interface check.
var _ shardwallet.Treasury = (*Memory)(nil)

// NewMemory creates an empty in-memory treasury.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[shardwallet.Currency]uint64),
		received: make(map[string]map[shardwallet.Currency]uint64),
	}
}

// Deposit adds amount of c to the treasury.
func (m *Memory) Deposit(c shardwallet.Currency, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[c] += amount
}

// Withdraw removes amount of c without going through a claim.
func (m *Memory) Withdraw(c shardwallet.Currency, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[c] < amount {
		return fmt.Errorf("%w: have %d %s, need %d", ErrInsufficientFunds, m.balances[c], c, amount)
	}
	m.balances[c] -= amount
	return nil
}

// FailNext makes the next Transfer return err without moving funds.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Received returns the total of c paid out to the recipient.
func (m *Memory) Received(to string, c shardwallet.Currency) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received[to][c]
}

// Balance returns the amount of c held.
func (m *Memory) Balance(_ context.Context, c shardwallet.Currency) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[c], nil
}

// Transfer debits the treasury, credits the recipient and then runs
// OnTransfer outside the lock, so the hook may call back into the wallet.
func (m *Memory) Transfer(ctx context.Context, c shardwallet.Currency, to string, amount uint64) error {
	m.mu.Lock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		m.mu.Unlock()
		return err
	}
	if m.balances[c] < amount {
		have := m.balances[c]
		m.mu.Unlock()
		return fmt.Errorf("%w: have %d %s, need %d", ErrInsufficientFunds, have, c, amount)
	}
	m.balances[c] -= amount
	if m.received[to] == nil {
		m.received[to] = make(map[shardwallet.Currency]uint64)
	}
	m.received[to][c] += amount
	hook := m.OnTransfer
	m.mu.Unlock()

	if hook != nil {
		hook(ctx, c, to, amount)
	}
	return nil
}
