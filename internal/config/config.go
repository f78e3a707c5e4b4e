package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Chain     ChainConfig     `mapstructure:"chain"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Pricefeed PricefeedConfig `mapstructure:"pricefeed"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	History   HistoryConfig   `mapstructure:"history"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ChainConfig holds the RPC endpoint and auction contract coordinates.
type ChainConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	ChainID         int64         `mapstructure:"chain_id"`
	ContractAddress string        `mapstructure:"contract_address"`
	TokenID         int64         `mapstructure:"token_id"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// EngineConfig holds bid engine behavior configuration.
type EngineConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ConfirmDelay  time.Duration `mapstructure:"confirm_delay"`
	UrgencyWindow time.Duration `mapstructure:"urgency_window"`
}

// IdentityConfig holds the frame-host-supplied Farcaster identity.
// The FID is fixed for the session; there is no retry path when absent.
type IdentityConfig struct {
	FID uint64 `mapstructure:"fid"`
}

// WalletConfig names the environment variable holding the signing key.
// The key itself never appears in config files.
type WalletConfig struct {
	PrivateKeyEnv string `mapstructure:"private_key_env"`
}

// ProxyConfig holds the price cache proxy HTTP configuration.
type ProxyConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// PricefeedConfig holds the upstream token price API configuration.
type PricefeedConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Symbol     string        `mapstructure:"symbol"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// HistoryConfig holds the snapshot log configuration.
type HistoryConfig struct {
	FilePath     string `mapstructure:"file_path"`
	MaxSnapshots int    `mapstructure:"max_snapshots"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("AUCTION_FRAME")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Chain defaults (Base mainnet)
	v.SetDefault("chain.chain_id", 8453)
	v.SetDefault("chain.token_id", 1)
	v.SetDefault("chain.timeout", "30s")

	// Engine defaults
	v.SetDefault("engine.poll_interval", "30s")
	v.SetDefault("engine.confirm_delay", "9s")
	v.SetDefault("engine.urgency_window", "1h")

	// Wallet defaults
	v.SetDefault("wallet.private_key_env", "AUCTION_FRAME_WALLET_KEY")

	// Proxy defaults
	v.SetDefault("proxy.listen_addr", ":8787")
	v.SetDefault("proxy.cache_ttl", "5m")
	v.SetDefault("proxy.allowed_origins", []string{
		"https://auction.kasra.codes",
		"http://localhost:5173",
	})

	// Pricefeed defaults
	v.SetDefault("pricefeed.api_base_url", "https://api.g.alchemy.com/prices/v1")
	v.SetDefault("pricefeed.symbol", "ETH")
	v.SetDefault("pricefeed.timeout", "10s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// History defaults
	v.SetDefault("history.file_path", "./data/auction-history.json")
	v.SetDefault("history.max_snapshots", 500)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("chain.chain_id must be positive")
	}
	if !common.IsHexAddress(c.Chain.ContractAddress) {
		return fmt.Errorf("chain.contract_address must be a hex address")
	}
	if c.Chain.TokenID < 0 {
		return fmt.Errorf("chain.token_id must not be negative")
	}

	if c.Engine.PollInterval < time.Second {
		return fmt.Errorf("engine.poll_interval must be at least 1 second")
	}
	if c.Engine.ConfirmDelay < time.Second {
		return fmt.Errorf("engine.confirm_delay must be at least 1 second")
	}

	if c.Proxy.ListenAddr == "" {
		return fmt.Errorf("proxy.listen_addr is required")
	}
	if c.Proxy.CacheTTL < time.Second {
		return fmt.Errorf("proxy.cache_ttl must be at least 1 second")
	}
	if len(c.Proxy.AllowedOrigins) == 0 {
		return fmt.Errorf("proxy.allowed_origins must contain at least one origin")
	}

	if c.Pricefeed.APIBaseURL == "" {
		return fmt.Errorf("pricefeed.api_base_url is required")
	}
	if c.Pricefeed.Symbol == "" {
		return fmt.Errorf("pricefeed.symbol is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.History.FilePath == "" {
		return fmt.Errorf("history.file_path is required")
	}
	if c.History.MaxSnapshots < 10 {
		return fmt.Errorf("history.max_snapshots must be at least 10")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ContractAddr returns the parsed auction contract address. Call Validate first.
func (c *Config) ContractAddr() common.Address {
	return common.HexToAddress(c.Chain.ContractAddress)
}
