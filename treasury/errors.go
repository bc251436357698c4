package treasury

import "errors"

var (
	// ErrInsufficientFunds indicates the treasury cannot cover a transfer.
	ErrInsufficientFunds = errors.New("treasury: insufficient funds")

	// ErrUnknownCurrency indicates no token contract is registered for the currency.
	ErrUnknownCurrency = errors.New("treasury: unknown currency")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("treasury: required parameter is nil")

	// ErrBuildTx indicates the payout transaction could not be built or signed.
	ErrBuildTx = errors.New("treasury: payout transaction build failed")
)
