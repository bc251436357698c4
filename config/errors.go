// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidStore indicates the store backend is not recognized.
	ErrInvalidStore = errors.New("config: invalid store (must be \"memory\", \"bolt\", or \"sqlite\")")

	// ErrInvalidRPCURL indicates the node RPC URL is malformed.
	ErrInvalidRPCURL = errors.New("config: invalid RPC URL")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrInvalidCostRate indicates the benchmark sample price is zero.
	ErrInvalidCostRate = errors.New("config: cost rate must be positive")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfig indicates the configuration file is not valid TOML.
	ErrInvalidConfig = errors.New("config: invalid configuration file")
)
