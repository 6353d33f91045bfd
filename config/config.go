package config

import (
	"os"
	"strconv"
	"time"
)

// Default values
const (
	// DefaultRPC is empty: without an endpoint only EOA proofs can be validated.
	DefaultRPC      = ""
	DefaultChainID  = int64(0)
	DefaultApp      = "ethauth"
	DefaultTokenTTL = 24 * time.Hour
)

// Environment variable names
const (
	EnvRPC      = "ETHAUTH_RPC_URL"
	EnvChainID  = "ETHAUTH_CHAIN_ID"
	EnvApp      = "ETHAUTH_APP"
	EnvTokenTTL = "ETHAUTH_TOKEN_TTL"
)

// Config is the resolved configuration of the ethauth command.
type Config struct {
	RPC string
	// ChainID skips the net_version lookup when non-zero.
	ChainID  int64
	App      string
	TokenTTL time.Duration
}

// Load reads every setting from the environment, falling back to defaults.
func Load() Config {
	return Config{
		RPC:      RPC(),
		ChainID:  ChainID(),
		App:      App(),
		TokenTTL: TokenTTL(),
	}
}

// RPC returns the RPC URL from environment variable or default value
func RPC() string {
	if rpc := os.Getenv(EnvRPC); rpc != "" {
		return rpc
	}
	return DefaultRPC
}

// ChainID returns the Chain ID from environment variable or default value
func ChainID() int64 {
	if chainIDStr := os.Getenv(EnvChainID); chainIDStr != "" {
		if chainID, err := strconv.ParseInt(chainIDStr, 10, 64); err == nil && chainID > 0 {
			return chainID
		}
	}
	return DefaultChainID
}

// App returns the application name put in new proofs
func App() string {
	if app := os.Getenv(EnvApp); app != "" {
		return app
	}
	return DefaultApp
}

// TokenTTL returns the lifetime of new proofs, parsed with time.ParseDuration
func TokenTTL() time.Duration {
	if ttl := os.Getenv(EnvTokenTTL); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			return d
		}
	}
	return DefaultTokenTTL
}
