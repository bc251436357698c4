package network

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the node.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrInvalidResponse indicates the node returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")

	// ErrBroadcastRejected indicates the node refused a payout transaction.
	ErrBroadcastRejected = errors.New("network: broadcast rejected")

	// ErrNotConfigured indicates no RPC endpoint was configured for the network.
	ErrNotConfigured = errors.New("network: RPC endpoint not configured")
)
