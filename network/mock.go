package network

import "context"

// MockBlockchainService is a test double for BlockchainService.
// Each function field must be set before its method is called.
type MockBlockchainService struct {
	ListUnspentFn func(ctx context.Context, address string) ([]*UTXO, error)
	BroadcastTxFn func(ctx context.Context, rawTxHex string) (string, error)
}

func (m *MockBlockchainService) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	return m.ListUnspentFn(ctx, address)
}

func (m *MockBlockchainService) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	return m.BroadcastTxFn(ctx, rawTxHex)
}
