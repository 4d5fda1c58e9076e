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
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Fees       FeesConfig       `mapstructure:"fees"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
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
	Migrate         bool          `mapstructure:"migrate"` // apply schema on start-up
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	OpTimeout   time.Duration `mapstructure:"op_timeout"` // per command read/write
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`  // settlement result cache
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig configures the settlement event publisher. No brokers disables publishing.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SigningKey   string        `mapstructure:"signing_key"` // HMAC key for event signatures; empty sends unsigned
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// FeesConfig is the default fee schedule used until an administrator stores one.
// Values are decimal strings and are parsed exactly.
type FeesConfig struct {
	Rate       string `mapstructure:"rate"`
	MinimumFee string `mapstructure:"minimum_fee"`
	MaximumFee string `mapstructure:"maximum_fee"`
}

// SettlementConfig names the counterparties and bounds of every settlement.
type SettlementConfig struct {
	MerchantAccount     string        `mapstructure:"merchant_account"`
	FeeCollectorAccount string        `mapstructure:"fee_collector_account"`
	FeeMode             string        `mapstructure:"fee_mode"` // included, added
	LookupTimeout       time.Duration `mapstructure:"lookup_timeout"`
	MutationTimeout     time.Duration `mapstructure:"mutation_timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SLG_ (Settlement LedGer).
// Nested keys use underscore: SLG_DATABASE_HOST, SLG_SETTLEMENT_FEE_MODE, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "settlement_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "2s")
	v.SetDefault("redis.op_timeout", "500ms")
	v.SetDefault("redis.cache_ttl", "24h")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "settlement.completed")
	v.SetDefault("kafka.write_timeout", "5s")
	v.SetDefault("kafka.signing_key", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "1h")
	v.SetDefault("jwt.issuer", "settlement-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("fees.rate", "0.02")
	v.SetDefault("fees.minimum_fee", "0.50")
	v.SetDefault("fees.maximum_fee", "100.00")
	v.SetDefault("settlement.merchant_account", "MER-0001")
	v.SetDefault("settlement.fee_collector_account", "FEE-0001")
	v.SetDefault("settlement.fee_mode", "included")
	v.SetDefault("settlement.lookup_timeout", "2s")
	v.SetDefault("settlement.mutation_timeout", "5s")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SLG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SLG")
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that the services cannot recover from at runtime.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}
	switch c.Settlement.FeeMode {
	case "included", "added":
	default:
		return fmt.Errorf("settlement.fee_mode must be included or added, got %q", c.Settlement.FeeMode)
	}
	if c.Settlement.MerchantAccount == "" || c.Settlement.FeeCollectorAccount == "" {
		return fmt.Errorf("settlement merchant and fee collector accounts are required")
	}
	if c.Settlement.MerchantAccount == c.Settlement.FeeCollectorAccount {
		return fmt.Errorf("settlement merchant and fee collector accounts must differ")
	}
	if c.Settlement.LookupTimeout <= 0 || c.Settlement.MutationTimeout <= 0 {
		return fmt.Errorf("settlement timeouts must be positive")
	}
	return nil
}
