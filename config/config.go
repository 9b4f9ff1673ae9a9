package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	RPCEndpoint     string        // Solana JSON-RPC endpoint
	Commitment      string        // processed | confirmed | finalized
	ActivityBaseURL string        // Enriched transaction-history API base URL
	ActivityAPIKey  string        // API key for the history service (optional)
	WalletKey       string        // Base58 private key for the local signer
	PollInterval    time.Duration // Delay between monitor fetches
	ConfirmAttempts int           // Confirmation attempts per transaction
	ConfirmBackoff  time.Duration // Delay between confirmation attempts
	NetworkFeeSOL   float64       // Flat fee allowance per issuance run
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".solmint")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("rpc_endpoint", "https://api.devnet.solana.com")
	viper.SetDefault("commitment", "confirmed")
	viper.SetDefault("activity_base_url", "https://api.helius.xyz")
	viper.SetDefault("poll_interval_seconds", 30)
	viper.SetDefault("confirm_attempts", 3)
	viper.SetDefault("confirm_backoff_seconds", 2)
	viper.SetDefault("network_fee_sol", 0.005)

	// Read from environment variables
	viper.SetEnvPrefix("SOLMINT")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	// Create config struct
	cfg := &Config{
		RPCEndpoint:     viper.GetString("rpc_endpoint"),
		Commitment:      viper.GetString("commitment"),
		ActivityBaseURL: viper.GetString("activity_base_url"),
		ActivityAPIKey:  viper.GetString("activity_api_key"),
		WalletKey:       viper.GetString("wallet_key"),
		PollInterval:    time.Duration(viper.GetInt("poll_interval_seconds")) * time.Second,
		ConfirmAttempts: viper.GetInt("confirm_attempts"),
		ConfirmBackoff:  time.Duration(viper.GetInt("confirm_backoff_seconds")) * time.Second,
		NetworkFeeSOL:   viper.GetFloat64("network_fee_sol"),
	}

	if cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("RPC endpoint not found. Please set SOLMINT_RPC_ENDPOINT environment variable or create a .solmint.yaml config file")
	}

	return cfg, nil
}
