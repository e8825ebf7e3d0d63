// Package config loads indexer configuration from environment variables and
// an optional .env file. Required settings are validated at startup; a missing
// RPC URL or token contract is a fatal configuration error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/transfer-indexer/internal/types"
)

// Config holds all application configuration
type Config struct {
	Chain    ChainConfig
	Scanner  ScannerConfig
	Database DatabaseConfig
	Server   ServerConfig
	Snapshot SnapshotConfig
	Logging  LoggingConfig
}

// ChainConfig holds chain RPC and contract configuration
type ChainConfig struct {
	RPCURL        string
	TokenContract string
	// MinCallInterval is the global pacing gate between RPC calls.
	MinCallInterval time.Duration
	CallTimeout     time.Duration
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	// TimestampCacheLimit bounds the block-timestamp cache; the cache is
	// cleared wholesale when the limit is exceeded.
	TimestampCacheLimit int
}

// ScannerConfig holds scan loop configuration shared by both modes
type ScannerConfig struct {
	StartBlock        uint64
	ChunkSize         uint64
	MinChunkSize      uint64
	Confirmations     uint64
	PollInterval      time.Duration
	LookbackBlocks    uint64
	ChunkRetryDelay   time.Duration
	LockRetryInterval time.Duration
	// LockName is the single advisory lock both scanning modes contend
	// for, so their write phases never overlap.
	LockName         string
	AddressCacheSize int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL form used by migrations.
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// ClickHouseConfig holds the optional analytics mirror configuration.
// The mirror is disabled when Host is empty.
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// Enabled reports whether the analytics mirror is configured.
func (c *ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ServerConfig holds dashboard API server configuration
type ServerConfig struct {
	Host     string
	Port     string
	CacheTTL time.Duration
}

// SnapshotConfig holds supply snapshot configuration
type SnapshotConfig struct {
	BurnAddresses   []string
	LockerAddresses []string
	LPPairAddress   string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional; environment variables can be set directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		Chain: ChainConfig{
			RPCURL:              getEnv("RPC_URL", ""),
			TokenContract:       getEnv("TOKEN_CONTRACT", ""),
			MinCallInterval:     getEnvAsDuration("RPC_MIN_INTERVAL", 100*time.Millisecond),
			CallTimeout:         getEnvAsDuration("RPC_CALL_TIMEOUT", 30*time.Second),
			BackoffBase:         getEnvAsDuration("RPC_BACKOFF_BASE", time.Second),
			BackoffMax:          getEnvAsDuration("RPC_BACKOFF_MAX", 30*time.Second),
			TimestampCacheLimit: getEnvAsInt("TIMESTAMP_CACHE_LIMIT", 4096),
		},
		Scanner: ScannerConfig{
			StartBlock:        getEnvAsUint64("START_BLOCK", 0),
			ChunkSize:         getEnvAsUint64("CHUNK_SIZE", 2000),
			MinChunkSize:      getEnvAsUint64("MIN_CHUNK_SIZE", 50),
			Confirmations:     getEnvAsUint64("CONFIRMATIONS", 5),
			PollInterval:      getEnvAsDuration("POLL_INTERVAL", 10*time.Second),
			LookbackBlocks:    getEnvAsUint64("LOOKBACK_BLOCKS", 10),
			ChunkRetryDelay:   getEnvAsDuration("CHUNK_RETRY_DELAY", 5*time.Second),
			LockRetryInterval: getEnvAsDuration("LOCK_RETRY_INTERVAL", 15*time.Second),
			LockName:          getEnv("SCAN_LOCK_NAME", "transfer-indexer:scan"),
			AddressCacheSize:  getEnvAsInt("ADDRESS_CACHE_SIZE", 100000),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "transfer_indexer"),
				User:           getEnv("POSTGRES_USER", "indexer"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", ""),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "transfer_indexer"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Server: ServerConfig{
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			Port:     getEnv("SERVER_PORT", "8080"),
			CacheTTL: getEnvAsDuration("CACHE_TTL", 20*time.Second),
		},
		Snapshot: SnapshotConfig{
			BurnAddresses: getEnvAsList("BURN_ADDRESSES",
				"0x0000000000000000000000000000000000000000,0x000000000000000000000000000000000000dead"),
			LockerAddresses: getEnvAsList("LOCKER_ADDRESSES", ""),
			LPPairAddress:   getEnv("LP_PAIR_ADDRESS", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks settings that cannot be defaulted. Failures here are fatal
// configuration errors: the process must exit non-zero without retrying.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if !strings.HasPrefix(c.Chain.RPCURL, "http://") && !strings.HasPrefix(c.Chain.RPCURL, "https://") &&
		!strings.HasPrefix(c.Chain.RPCURL, "ws://") && !strings.HasPrefix(c.Chain.RPCURL, "wss://") {
		return fmt.Errorf("RPC_URL %q is malformed", c.Chain.RPCURL)
	}
	if c.Chain.TokenContract == "" {
		return fmt.Errorf("TOKEN_CONTRACT is required")
	}
	if err := types.ValidateAddress(c.Chain.TokenContract); err != nil {
		return fmt.Errorf("TOKEN_CONTRACT: %w", err)
	}
	if c.Scanner.MinChunkSize == 0 {
		return fmt.Errorf("MIN_CHUNK_SIZE must be at least 1")
	}
	if c.Scanner.ChunkSize < c.Scanner.MinChunkSize {
		return fmt.Errorf("CHUNK_SIZE (%d) must be >= MIN_CHUNK_SIZE (%d)",
			c.Scanner.ChunkSize, c.Scanner.MinChunkSize)
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsUint64 retrieves an environment variable as an unsigned integer
func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsList retrieves a comma-separated environment variable as a slice,
// dropping empty entries.
func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
