// Package keystore derives the treasury key from a BIP39 mnemonic and keeps
// the seed on disk sealed under a password.
//
// The treasury key for index i is m/44'/236'/0'/0/i.
package keystore

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
)

// NewMnemonic creates a fresh 12- or 24-word BIP39 mnemonic.
func NewMnemonic(words int) (string, error) {
	var bits int
	switch words {
	case 12:
		bits = 128
	case 24:
		bits = 256
	default:
		return "", ErrInvalidWordCount
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("keystore: generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("keystore: generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// SeedFromMnemonic returns the 64-byte BIP39 seed. The passphrase may be
// empty.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("keystore: derive seed: %w", err)
	}
	return seed, nil
}
