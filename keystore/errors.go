package keystore

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("keystore: invalid BIP39 mnemonic")

	// ErrInvalidWordCount indicates a mnemonic length other than 12 or 24 words.
	ErrInvalidWordCount = errors.New("keystore: mnemonic must have 12 or 24 words")

	// ErrInvalidSeed indicates the seed is empty.
	ErrInvalidSeed = errors.New("keystore: invalid seed")

	// ErrEmptyPassword indicates a seal or open without a password.
	ErrEmptyPassword = errors.New("keystore: password must not be empty")

	// ErrDecryptionFailed indicates a wrong password or corrupted seed file.
	ErrDecryptionFailed = errors.New("keystore: seed decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates the decrypted seed failed its checksum.
	ErrChecksumMismatch = errors.New("keystore: seed checksum mismatch")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("keystore: key derivation failed")

	// ErrExists indicates a seed file is already present.
	ErrExists = errors.New("keystore: seed file already exists")
)
