package shardwallet

import "errors"

var (
	// ErrInvalidShareSum indicates child shares do not add up to what the
	// source shard(s) can give.
	ErrInvalidShareSum = errors.New("shardwallet: invalid share sum")

	// ErrZeroShare indicates a child with a zero share.
	ErrZeroShare = errors.New("shardwallet: zero share")

	// ErrUnknownShard indicates the shard id was never allocated.
	ErrUnknownShard = errors.New("shardwallet: unknown shard")

	// ErrInactiveShard indicates the shard was consumed by a merge, split or reforge.
	ErrInactiveShard = errors.New("shardwallet: inactive shard")

	// ErrEmptyOperandSet indicates too few operands were given.
	ErrEmptyOperandSet = errors.New("shardwallet: empty operand set")

	// ErrDuplicateOperand indicates the same operand appears more than once.
	ErrDuplicateOperand = errors.New("shardwallet: duplicate operand")

	// ErrTransferFailed indicates the outbound payout did not complete.
	ErrTransferFailed = errors.New("shardwallet: transfer failed")

	// ErrTreasuryShort indicates the treasury holds less than the shard is
	// owed, so no transfer was attempted. It is always wrapped together with
	// ErrTransferFailed.
	ErrTreasuryShort = errors.New("shardwallet: treasury short")

	// ErrInvalidRecipient indicates the payout address was rejected.
	ErrInvalidRecipient = errors.New("shardwallet: invalid recipient")

	// ErrAlreadyInitialized indicates the root shard already exists.
	ErrAlreadyInitialized = errors.New("shardwallet: already initialized")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("shardwallet: required parameter is nil")
)
