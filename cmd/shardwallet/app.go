package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bitfsorg/shardwallet-go/config"
	"github.com/bitfsorg/shardwallet-go/keystore"
	"github.com/bitfsorg/shardwallet-go/network"
	"github.com/bitfsorg/shardwallet-go/recipient"
	"github.com/bitfsorg/shardwallet-go/shardwallet"
	"github.com/bitfsorg/shardwallet-go/sqlstore"
	"github.com/bitfsorg/shardwallet-go/treasury"
)

// Environment variables read by the CLI.
const (
	// EnvTreasuryWIF supplies the treasury key when the config file has none.
	EnvTreasuryWIF = "SHARDWALLET_TREASURY_WIF"

	// EnvPassword unlocks the sealed treasury seed.
	EnvPassword = "SHARDWALLET_PASSWORD"
)

var errNoTreasury = errors.New("no treasury key configured (run keygen, or set treasury_wif or " + EnvTreasuryWIF + ")")

// errTokenClaim is returned for claims in any currency but native; the chain
// treasury has no token contracts configured from the command line.
var errTokenClaim = errors.New("only the native currency can be claimed from the command line")

// app carries the state shared by all subcommands.
type app struct {
	configFile string
	verbose    bool
	flags      config.Config // values given on the command line

	cfg        config.Config
	configPath string
	logger     *zap.Logger
}

func (a *app) bindFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default <data-dir>/config.toml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "development logging at debug level")
	pf.StringVar(&a.flags.DataDir, "data-dir", config.DefaultDataDir(), "data directory")
	pf.StringVar(&a.flags.Store, "store", config.StoreBolt, "store backend: memory, bolt or sqlite")
	pf.StringVar(&a.flags.Network, "network", "mainnet", "mainnet, testnet or regtest")
	pf.StringVar(&a.flags.RPCURL, "rpc-url", "", "node JSON-RPC URL")
	pf.StringVar(&a.flags.RPCUser, "rpc-user", "", "node JSON-RPC user")
	pf.StringVar(&a.flags.RPCPassword, "rpc-password", "", "node JSON-RPC password")
}

// setup loads the config file, applies flags over it, and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	path := a.configFile
	if path == "" {
		path = config.ConfigPath(a.flags.DataDir)
	}
	cfg, err := config.LoadConfig(path)
	switch {
	case errors.Is(err, config.ErrConfigNotFound) && a.configFile == "":
		cfg = config.DefaultConfig()
	case err != nil:
		return err
	}

	pf := cmd.Flags()
	if pf.Changed("data-dir") || cfg.DataDir == "" {
		cfg.DataDir = a.flags.DataDir
	}
	if pf.Changed("store") {
		cfg.Store = a.flags.Store
	}
	if pf.Changed("network") {
		cfg.Network = a.flags.Network
	}
	if pf.Changed("rpc-url") {
		cfg.RPCURL = a.flags.RPCURL
	}
	if pf.Changed("rpc-user") {
		cfg.RPCUser = a.flags.RPCUser
	}
	if pf.Changed("rpc-password") {
		cfg.RPCPassword = a.flags.RPCPassword
	}
	if cfg.TreasuryWIF == "" {
		cfg.TreasuryWIF = os.Getenv(EnvTreasuryWIF)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	a.cfg = cfg
	a.configPath = path

	logger, err := a.buildLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *app) buildLogger() (*zap.Logger, error) {
	var zc zap.Config
	if a.verbose {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		level, err := zapcore.ParseLevel(strings.ToLower(a.cfg.LogLevel))
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	if a.cfg.LogFile != "" {
		zc.OutputPaths = []string{a.cfg.LogFile}
	}
	return zc.Build()
}

func (a *app) sync() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) openStore() (shardwallet.Store, error) {
	switch a.cfg.Store {
	case config.StoreMemory:
		return shardwallet.NewMemStore(), nil
	case config.StoreBolt, config.StoreSQLite:
		if err := os.MkdirAll(a.cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		if a.cfg.Store == config.StoreBolt {
			return shardwallet.OpenBoltStore(a.cfg.StorePath())
		}
		return sqlstore.Open(a.cfg.StorePath())
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStore, a.cfg.Store)
	}
}

func (a *app) mainnet() bool { return a.cfg.Network == "mainnet" }

// treasuryKey returns the configured key, preferring a WIF over the sealed
// seed, or nil when neither is set.
func (a *app) treasuryKey() (*ec.PrivateKey, error) {
	if a.cfg.TreasuryWIF != "" {
		return treasury.KeyFromWIF(a.cfg.TreasuryWIF)
	}
	path := a.cfg.SeedPath()
	if path == "" {
		return nil, nil
	}
	password := os.Getenv(EnvPassword)
	if password == "" {
		return nil, fmt.Errorf("%w: set %s to unlock %s", keystore.ErrEmptyPassword, EnvPassword, path)
	}
	seed, err := keystore.ReadFile(path, password)
	if err != nil {
		return nil, err
	}
	return keystore.TreasuryKey(seed, a.mainnet(), a.cfg.TreasuryIndex)
}

// openTreasury connects the chain treasury. Without a key the wallet can
// still edit the ownership tree, so a nil error with a nil Chain is returned
// and claims report errNoTreasury.
func (a *app) openTreasury() (*treasury.Chain, error) {
	key, err := a.treasuryKey()
	if key == nil || err != nil {
		return nil, err
	}
	rpcCfg, err := network.ResolveConfig(&network.RPCConfig{
		URL:      a.cfg.RPCURL,
		User:     a.cfg.RPCUser,
		Password: a.cfg.RPCPassword,
	}, environ(network.EnvRPCURL, network.EnvRPCUser, network.EnvRPCPass), a.cfg.Network)
	if err != nil {
		return nil, err
	}
	return treasury.NewChain(treasury.ChainConfig{
		Key:      key,
		Service:  network.NewRPCClient(*rpcCfg),
		Resolver: recipient.NewResolver(a.mainnet()),
		FeeRate:  a.cfg.FeeRate,
		Mainnet:  a.mainnet(),
	})
}

// session is an open wallet plus the resources behind it.
type session struct {
	wallet *shardwallet.Wallet
	store  shardwallet.Store
	chain  *treasury.Chain
}

func (s *session) Close() error { return s.store.Close() }

func (a *app) open(needTreasury bool) (*session, error) {
	chain, err := a.openTreasury()
	if err != nil {
		return nil, err
	}
	if chain == nil && needTreasury {
		return nil, errNoTreasury
	}
	var t shardwallet.Treasury = treasury.NewMemory()
	if chain != nil {
		t = chain
	}

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	w, err := shardwallet.New(store, t,
		shardwallet.WithLogger(a.logger),
		shardwallet.WithRecipientCheck(recipient.Validate),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &session{wallet: w, store: store, chain: chain}, nil
}

func environ(keys ...string) map[string]string {
	env := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env
}
