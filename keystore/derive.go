package keystore

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

const (
	purposeBIP44 = 44
	coinTypeBSV  = 236
	hardened     = 0x80000000
)

// TreasuryPath returns the derivation path of treasury key index.
func TreasuryPath(index uint32) string {
	return fmt.Sprintf("m/%d'/%d'/0'/0/%d", purposeBIP44, coinTypeBSV, index)
}

// TreasuryKey derives treasury key index from seed.
func TreasuryKey(seed []byte, mainnet bool, index uint32) (*ec.PrivateKey, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if index >= hardened {
		return nil, fmt.Errorf("%w: index %d is in the hardened range", ErrDerivationFailed, index)
	}
	net := &chaincfg.TestNet
	if mainnet {
		net = &chaincfg.MainNet
	}

	key, err := bip32.NewMaster(seed, net)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	for _, step := range []uint32{
		purposeBIP44 + hardened,
		coinTypeBSV + hardened,
		0 + hardened,
		0,
		index,
	} {
		if key, err = key.Child(step); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDerivationFailed, TreasuryPath(index), err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: extract private key: %w", ErrDerivationFailed, err)
	}
	return priv, nil
}
