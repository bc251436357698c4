package network

import "fmt"

// Environment variables read by ResolveConfig.
const (
	EnvRPCURL  = "SHARDWALLET_RPC_URL"
	EnvRPCUser = "SHARDWALLET_RPC_USER"
	EnvRPCPass = "SHARDWALLET_RPC_PASS"
)

// RPCConfig holds the connection parameters for a node's JSON-RPC interface.
type RPCConfig struct {
	URL      string `json:"url" toml:"rpc_url"`
	User     string `json:"user" toml:"rpc_user"`
	Password string `json:"password" toml:"rpc_password"`
	Network  string `json:"network" toml:"-"`
}

// NetworkPresets holds local-node defaults. Mainnet has none on purpose.
var NetworkPresets = map[string]RPCConfig{
	"regtest": {URL: "http://localhost:18332", User: "shardwallet", Password: "shardwallet"},
	"testnet": {URL: "http://localhost:18332", User: "shardwallet", Password: "shardwallet"},
}

// ResolveConfig layers RPC settings, later sources winning:
//  1. network presets (regtest/testnet only)
//  2. environment variables (EnvRPCURL, EnvRPCUser, EnvRPCPass)
//  3. explicit settings from flags or the config file
func ResolveConfig(explicit *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}
	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if v := env[EnvRPCURL]; v != "" {
		result.URL = v
	}
	if v := env[EnvRPCUser]; v != "" {
		result.User = v
	}
	if v := env[EnvRPCPass]; v != "" {
		result.Password = v
	}

	if explicit != nil {
		if explicit.URL != "" {
			result.URL = explicit.URL
		}
		if explicit.User != "" {
			result.User = explicit.User
		}
		if explicit.Password != "" {
			result.Password = explicit.Password
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("%w: %s needs rpc_url, --rpc-url or %s", ErrNotConfigured, network, EnvRPCURL)
	}
	return &result, nil
}
