// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the shardwallet configuration file, a TOML
// document kept in the data directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
	StoreSQLite = "sqlite"
)

// Config holds the settings for the shardwallet CLI.
type Config struct {
	DataDir  string `toml:"data_dir"`
	Store    string `toml:"store"`
	Network  string `toml:"network"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`

	// Chain treasury key: a WIF, or a sealed seed file (relative paths are
	// under DataDir) with the key index to derive. Without either, claims
	// are refused.
	TreasuryWIF   string `toml:"treasury_wif"`
	TreasurySeed  string `toml:"treasury_seed"`
	TreasuryIndex uint32 `toml:"treasury_index"`

	RPCURL      string `toml:"rpc_url"`
	RPCUser     string `toml:"rpc_user"`
	RPCPassword string `toml:"rpc_password"`
	FeeRate     uint64 `toml:"fee_rate"` // sat/KB, 0 = treasury default

	CostRate uint64 `toml:"cost_rate"` // benchmark sample price, sat/unit
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		Store:    StoreBolt,
		Network:  "mainnet",
		LogLevel: "info",
		CostRate: 50,
	}
}

// DefaultDataDir returns ~/.shardwallet, or .shardwallet in the working
// directory when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shardwallet"
	}
	return filepath.Join(home, ".shardwallet")
}

// ConfigPath returns the configuration file path for dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}

// StorePath returns the database file for the configured backend, or "" for
// the memory store.
func (c Config) StorePath() string {
	switch c.Store {
	case StoreBolt:
		return filepath.Join(c.DataDir, "shardwallet.db")
	case StoreSQLite:
		return filepath.Join(c.DataDir, "shardwallet.sqlite")
	default:
		return ""
	}
}

// SeedPath resolves TreasurySeed against DataDir, or returns "" when unset.
func (c Config) SeedPath() string {
	if c.TreasurySeed == "" || filepath.IsAbs(c.TreasurySeed) {
		return c.TreasurySeed
	}
	return filepath.Join(c.DataDir, c.TreasurySeed)
}

// LoadConfig reads the file at path over DefaultConfig. Keys absent from
// the file keep their defaults; unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories. The file is
// private to the user since it may hold the treasury key.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("config: create file: %w", err)
	}
	if _, err := f.WriteString("# Shardwallet configuration\n\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("config: write: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return fmt.Errorf("config: encode: %w", err)
	}
	return f.Close()
}
