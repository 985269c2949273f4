package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	JWT       JWTConfig       `yaml:"jwt"`
	Accounts  AccountsConfig  `yaml:"accounts"`
	Fees      FeesConfig      `yaml:"fees"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Bitcoin   BitcoinConfig   `yaml:"bitcoin"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Expiration time.Duration `yaml:"expiration"`
}

// AccountsConfig enumerates the per-currency system account ids §6
// lists: btc/eth/stq liquidity, fees, and transfer accounts.
type AccountsConfig struct {
	BTCLiquidityCrAccountID int64 `yaml:"btc_liquidity_cr_account_id"`
	ETHLiquidityCrAccountID int64 `yaml:"eth_liquidity_cr_account_id"`
	STQLiquidityCrAccountID int64 `yaml:"stq_liquidity_cr_account_id"`

	BTCFeesCrAccountID int64 `yaml:"btc_fees_cr_account_id"`
	ETHFeesCrAccountID int64 `yaml:"eth_fees_cr_account_id"`
	STQFeesCrAccountID int64 `yaml:"stq_fees_cr_account_id"`

	BTCTransferCrAccountID int64 `yaml:"btc_transfer_cr_account_id"`
	ETHTransferCrAccountID int64 `yaml:"eth_transfer_cr_account_id"`
	STQTransferCrAccountID int64 `yaml:"stq_transfer_cr_account_id"`
}

// FeesConfig is §6's fees_options.
type FeesConfig struct {
	FeeUpside          float64 `yaml:"fee_upside"`
	BTCTransactionSize uint64  `yaml:"btc_transaction_size"`
	ETHGasLimit        uint64  `yaml:"eth_gas_limit"`
	STQGasLimit        uint64  `yaml:"stq_gas_limit"`
}

// ExchangeConfig is the exchange-gateway URL and bearer tokens §6 names.
type ExchangeConfig struct {
	URL         string `yaml:"url"`
	UserToken   string `yaml:"user_token"`
	SystemToken string `yaml:"system_token"`
}

// BitcoinConfig selects the chaincfg network used to validate
// destination addresses (DOMAIN STACK).
type BitcoinConfig struct {
	Network string `yaml:"network"` // "mainnet", "testnet3", "regtest"
}

// Load reads config from file and env vars
func Load(configPath string) (*Config, error) {
	// Read YAML file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Override with environment variables
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if exchangeURL := os.Getenv("EXCHANGE_URL"); exchangeURL != "" {
		cfg.Exchange.URL = exchangeURL
	}
	if userToken := os.Getenv("EXCHANGE_USER_TOKEN"); userToken != "" {
		cfg.Exchange.UserToken = userToken
	}
	if systemToken := os.Getenv("EXCHANGE_SYSTEM_TOKEN"); systemToken != "" {
		cfg.Exchange.SystemToken = systemToken
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.JWT.Secret == "your-secret-key-change-in-production" {
		fmt.Println("WARNING: Using default JWT secret. Change this in production!")
	}
	if c.Fees.FeeUpside <= 0 {
		return fmt.Errorf("fees.fee_upside must be > 0")
	}
	if c.Fees.BTCTransactionSize == 0 || c.Fees.ETHGasLimit == 0 || c.Fees.STQGasLimit == 0 {
		return fmt.Errorf("fees.{btc_transaction_size,eth_gas_limit,stq_gas_limit} must all be > 0")
	}
	if c.Exchange.URL == "" {
		return fmt.Errorf("exchange.url is required")
	}
	return nil
}
