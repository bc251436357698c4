package recipient

import "errors"

var (
	// ErrInvalidHandle indicates the recipient is neither a base58 address nor alias@domain.
	ErrInvalidHandle = errors.New("recipient: invalid address or paymail handle")

	// ErrDNSLookupFailed indicates an SRV lookup failed.
	ErrDNSLookupFailed = errors.New("recipient: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("recipient: DNSSEC validation failed")

	// ErrDiscovery indicates .well-known/bsvalias could not be fetched or parsed.
	ErrDiscovery = errors.New("recipient: capability discovery failed")

	// ErrPKIResolution indicates the paymail PKI endpoint did not yield a public key.
	ErrPKIResolution = errors.New("recipient: PKI resolution failed")

	// ErrInvalidPubKey indicates a public key is not a valid compressed secp256k1 key.
	ErrInvalidPubKey = errors.New("recipient: invalid compressed public key")
)
