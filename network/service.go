package network

import "context"

// BlockchainService is what the chain treasury needs from a node: the coins
// it holds and a way to spend them.
type BlockchainService interface {
	// ListUnspent returns the unspent outputs paying to address, including
	// unconfirmed ones.
	ListUnspent(ctx context.Context, address string) ([]*UTXO, error)

	// BroadcastTx submits a raw transaction hex and returns its txid.
	BroadcastTx(ctx context.Context, rawTxHex string) (string, error)
}

// UTXO is an unspent output as reported by the node. TxID is in display
// (reversed) hex order and ScriptPubKey is hex.
type UTXO struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Amount        uint64 `json:"amount"` // satoshis
	ScriptPubKey  string `json:"script_pubkey"`
	Address       string `json:"address"`
	Confirmations int64  `json:"confirmations"`
}
