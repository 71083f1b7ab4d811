package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	AES        AESConfig        `mapstructure:"aes"`
	Log        LogConfig        `mapstructure:"log"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Fees       FeeConfig        `mapstructure:"fees"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Payout     PayoutConfig     `mapstructure:"payout"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Mode        string `mapstructure:"mode"` // debug, release, test
	MaxBodySize int64  `mapstructure:"max_body_size"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// GatewayConfig describes the external payment gateway and its callback credentials.
type GatewayConfig struct {
	Provider        string        `mapstructure:"provider"`
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	CallbackToken   string        `mapstructure:"callback_token"`
	SignatureSecret string        `mapstructure:"signature_secret"` // optional HMAC over the callback body
	Timeout         time.Duration `mapstructure:"timeout"`
	InvoiceTTL      time.Duration `mapstructure:"invoice_ttl"`
}

// FeeConfig holds the fee policy. Rates are decimal strings ("0.007").
type FeeConfig struct {
	TopupRate       string `mapstructure:"topup_rate"`
	TopupMinFee     int64  `mapstructure:"topup_min_fee"`
	TopupMinAmount  int64  `mapstructure:"topup_min_amount"`
	PayoutRate      string `mapstructure:"payout_rate"`
	PayoutMinFee    int64  `mapstructure:"payout_min_fee"`
	PayoutMinAmount int64  `mapstructure:"payout_min_amount"`
	MaxAmount       int64  `mapstructure:"max_amount"`
}

type SettlementConfig struct {
	HoldWindow time.Duration `mapstructure:"hold_window"`
	SweepSpec  string        `mapstructure:"sweep_spec"`
	SweepBatch int           `mapstructure:"sweep_batch"`
}

type PayoutConfig struct {
	ResubmitSpec   string        `mapstructure:"resubmit_spec"`
	ResubmitAfter  time.Duration `mapstructure:"resubmit_after"`
	ResubmitBatch  int           `mapstructure:"resubmit_batch"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: LEDGER_.
// Nested keys use underscore: LEDGER_DATABASE_HOST, LEDGER_GATEWAY_CALLBACK_TOKEN, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_size", 1<<20)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "marketplace-auth")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("gateway.provider", "xendit")
	v.SetDefault("gateway.base_url", "http://localhost:9000")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.callback_token", "")
	v.SetDefault("gateway.signature_secret", "")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.invoice_ttl", "24h")
	v.SetDefault("fees.topup_rate", "0.007")
	v.SetDefault("fees.topup_min_fee", 500)
	v.SetDefault("fees.topup_min_amount", 500000)
	v.SetDefault("fees.payout_rate", "0.01")
	v.SetDefault("fees.payout_min_fee", 5000)
	v.SetDefault("fees.payout_min_amount", 100000)
	v.SetDefault("fees.max_amount", 100000000)
	v.SetDefault("settlement.hold_window", "24h")
	v.SetDefault("settlement.sweep_spec", "@every 1m")
	v.SetDefault("settlement.sweep_batch", 100)
	v.SetDefault("payout.resubmit_spec", "@every 5m")
	v.SetDefault("payout.resubmit_after", "10m")
	v.SetDefault("payout.resubmit_batch", 50)
	v.SetDefault("payout.idempotency_ttl", "24h")
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "wallet_events")
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("storage.driver", "postgres")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: LEDGER_DATABASE_HOST -> database.host
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
