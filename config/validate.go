// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validStores = map[string]bool{
	StoreMemory: true,
	StoreBolt:   true,
	StoreSQLite: true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if !validStores[cfg.Store] {
		return fmt.Errorf("%w: %q", ErrInvalidStore, cfg.Store)
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if cfg.RPCURL != "" {
		if err := validateURL(cfg.RPCURL); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRPCURL, err)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.CostRate == 0 {
		return ErrInvalidCostRate
	}

	return nil
}

// validateURL checks that raw is an http(s) URL with a host:port.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	_, _, err = net.SplitHostPort(u.Host)
	return err
}
