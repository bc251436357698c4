// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Store", cfg.Store, StoreBolt},
		{"Network", cfg.Network, "mainnet"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFile", cfg.LogFile, ""},
		{"TreasuryWIF", cfg.TreasuryWIF, ""},
		{"CostRate", cfg.CostRate, uint64(50)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	if !strings.HasSuffix(cfg.DataDir, ".shardwallet") {
		t.Errorf("DataDir = %q, want suffix %q", cfg.DataDir, ".shardwallet")
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	original := Config{
		DataDir:       "/tmp/test-shardwallet",
		Store:         StoreSQLite,
		Network:       "regtest",
		LogLevel:      "debug",
		LogFile:       "/tmp/shardwallet.log",
		TreasuryWIF:   "cTestWIF",
		TreasurySeed:  "treasury.seed",
		TreasuryIndex: 3,
		RPCURL:        "http://localhost:18332",
		RPCUser:       "user",
		RPCPassword:   "pass",
		FeeRate:       250,
		CostRate:      75,
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded != original {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, original)
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.toml")

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config file not created: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSaveConfig_OutputContainsHeaderAndKeys(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "# Shardwallet configuration") {
		t.Error("saved config should start with the header comment")
	}
	for _, key := range []string{"data_dir", "store", "network", "log_level", "cost_rate"} {
		if !strings.Contains(content, key+" = ") {
			t.Errorf("saved config should contain key %q", key)
		}
	}
}

// ---------------------------------------------------------------------------
// LoadConfig tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.toml")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	if err := os.WriteFile(path, []byte("this-is-not-toml\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfig bad file: got %v, want ErrInvalidConfig", err)
	}
}

func TestLoadConfigCommentsAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	content := `# This is a comment
network = "testnet"

# Another comment
log_level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	// Unset fields should retain defaults.
	if cfg.Store != StoreBolt {
		t.Errorf("Store = %q, want default %q", cfg.Store, StoreBolt)
	}
	if cfg.CostRate != 50 {
		t.Errorf("CostRate = %d, want default 50", cfg.CostRate)
	}
}

func TestLoadConfigUnknownKeysIgnored(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	content := "future_key = \"future\"\nnetwork = \"testnet\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig with unknown key: %v", err)
	}
	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
}

func TestLoadConfig_WrongType(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	if err := os.WriteFile(path, []byte("cost_rate = \"fifty\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfig wrong type: got %v, want ErrInvalidConfig", err)
	}
}

func TestLoadConfig_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission test not reliable on Windows")
	}
	if os.Getuid() == 0 {
		t.Skip("cannot test permission denial as root")
	}

	dir := t.TempDir()
	path := ConfigPath(dir)

	if err := os.WriteFile(path, []byte("network = \"testnet\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(path, 0600) })

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig on unreadable file: expected error, got nil")
	}
	// The file exists.
	if errors.Is(err, ErrConfigNotFound) {
		t.Error("LoadConfig on unreadable file should not return ErrConfigNotFound")
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigDefaults(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Errorf("ValidateConfig(DefaultConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "empty_datadir",
			modify:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrEmptyDataDir,
		},
		{
			name:    "bad_store",
			modify:  func(c *Config) { c.Store = "postgres" },
			wantErr: ErrInvalidStore,
		},
		{
			name:    "bad_network",
			modify:  func(c *Config) { c.Network = "devnet" },
			wantErr: ErrInvalidNetwork,
		},
		{
			name:    "empty_network",
			modify:  func(c *Config) { c.Network = "" },
			wantErr: ErrInvalidNetwork,
		},
		{
			name:    "bad_rpc_scheme",
			modify:  func(c *Config) { c.RPCURL = "ftp://localhost:18332" },
			wantErr: ErrInvalidRPCURL,
		},
		{
			name:    "rpc_without_port",
			modify:  func(c *Config) { c.RPCURL = "http://localhost" },
			wantErr: ErrInvalidRPCURL,
		},
		{
			name:    "bad_loglevel",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "zero_cost_rate",
			modify:  func(c *Config) { c.CostRate = 0 },
			wantErr: ErrInvalidCostRate,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfigValidValues(t *testing.T) {
	for _, network := range []string{"mainnet", "testnet", "regtest"} {
		cfg := DefaultConfig()
		cfg.Network = network
		if err := ValidateConfig(cfg); err != nil {
			t.Errorf("ValidateConfig with network %q: %v", network, err)
		}
	}
	for _, store := range []string{StoreMemory, StoreBolt, StoreSQLite} {
		cfg := DefaultConfig()
		cfg.Store = store
		if err := ValidateConfig(cfg); err != nil {
			t.Errorf("ValidateConfig with store %q: %v", store, err)
		}
	}
	for _, u := range []string{"http://127.0.0.1:8332", "https://node.example.com:443", "http://[::1]:18332"} {
		cfg := DefaultConfig()
		cfg.RPCURL = u
		if err := ValidateConfig(cfg); err != nil {
			t.Errorf("ValidateConfig with rpc_url %q: %v", u, err)
		}
	}
}

func TestValidateConfig_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"INFO", "Debug", "WARN", "Error", "dEbUg"} {
		t.Run(level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with LogLevel %q: %v", level, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

func TestConfigPath(t *testing.T) {
	got := ConfigPath("/home/user/.shardwallet")
	want := filepath.Join("/home/user/.shardwallet", "config.toml")
	if got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}

func TestStorePath(t *testing.T) {
	cfg := Config{DataDir: "/data"}
	tests := []struct {
		store string
		want  string
	}{
		{StoreMemory, ""},
		{StoreBolt, filepath.Join("/data", "shardwallet.db")},
		{StoreSQLite, filepath.Join("/data", "shardwallet.sqlite")},
	}
	for _, tc := range tests {
		cfg.Store = tc.store
		if got := cfg.StorePath(); got != tc.want {
			t.Errorf("StorePath(%s) = %q, want %q", tc.store, got, tc.want)
		}
	}
}

func TestSeedPath(t *testing.T) {
	cfg := Config{DataDir: "/data"}
	if got := cfg.SeedPath(); got != "" {
		t.Errorf("SeedPath unset = %q, want empty", got)
	}
	cfg.TreasurySeed = "treasury.seed"
	if got, want := cfg.SeedPath(), filepath.Join("/data", "treasury.seed"); got != want {
		t.Errorf("SeedPath relative = %q, want %q", got, want)
	}
	cfg.TreasurySeed = "/keys/treasury.seed"
	if got := cfg.SeedPath(); got != "/keys/treasury.seed" {
		t.Errorf("SeedPath absolute = %q, want %q", got, "/keys/treasury.seed")
	}
}
