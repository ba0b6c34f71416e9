package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Store    StoreConfig    `mapstructure:"store"`
	Bidding  BiddingConfig  `mapstructure:"bidding"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Instance InstanceConfig `mapstructure:"instance"`
}

// APIConfig covers the request/response listener (bid intake, history, health).
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StreamConfig covers the long-lived subscription listener (SSE and WebSocket).
type StreamConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	KeepAlive  time.Duration `mapstructure:"keep_alive"`
	BufferSize int           `mapstructure:"buffer_size"`
}

// StoreConfig points at the external record store.
type StoreConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BiddingConfig struct {
	MaxBid float64 `mapstructure:"max_bid"`
}

// RelayConfig enables cross-instance fan-out via Redis pub/sub.
type RelayConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ArchiveConfig enables the local MySQL bid history archive.
type ArchiveConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 5010)
	viper.SetDefault("stream.host", "0.0.0.0")
	viper.SetDefault("stream.port", 5011)
	viper.SetDefault("stream.keep_alive", 15*time.Second)
	viper.SetDefault("stream.buffer_size", 16)
	viper.SetDefault("store.base_url", "http://localhost:3000")
	viper.SetDefault("store.timeout", 5*time.Second)
	viper.SetDefault("bidding.max_bid", 10_000_000)
	viper.SetDefault("relay.enabled", false)
	viper.SetDefault("relay.address", "localhost:6379")
	viper.SetDefault("relay.password", "")
	viper.SetDefault("relay.db", 0)
	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.dsn", "relay_user:relay_pass@tcp(localhost:3306)/bid_relay?parseTime=true")
	viper.SetDefault("archive.max_open_conns", 25)
	viper.SetDefault("archive.max_idle_conns", 10)
	viper.SetDefault("archive.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("instance.id", "bid-relay-1")

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bid-relay/")

	// Environment variable support
	viper.AutomaticEnv()

	viper.BindEnv("api.host", "API_HOST")
	viper.BindEnv("api.port", "API_PORT")
	viper.BindEnv("stream.host", "STREAM_HOST")
	viper.BindEnv("stream.port", "STREAM_PORT")
	viper.BindEnv("stream.keep_alive", "STREAM_KEEP_ALIVE")
	viper.BindEnv("stream.buffer_size", "STREAM_BUFFER_SIZE")
	viper.BindEnv("store.base_url", "STORE_BASE_URL")
	viper.BindEnv("store.timeout", "STORE_TIMEOUT")
	viper.BindEnv("bidding.max_bid", "BIDDING_MAX_BID")
	viper.BindEnv("relay.enabled", "RELAY_ENABLED")
	viper.BindEnv("relay.address", "REDIS_ADDRESS")
	viper.BindEnv("relay.password", "REDIS_PASSWORD")
	viper.BindEnv("relay.db", "REDIS_DB")
	viper.BindEnv("archive.enabled", "ARCHIVE_ENABLED")
	viper.BindEnv("archive.dsn", "MYSQL_DSN")
	viper.BindEnv("archive.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	viper.BindEnv("archive.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	viper.BindEnv("archive.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	viper.BindEnv("instance.id", "INSTANCE_ID")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"API: %s:%d, Stream: %s:%d, Store: %s, Instance: %s",
		c.API.Host,
		c.API.Port,
		c.Stream.Host,
		c.Stream.Port,
		c.Store.BaseURL,
		c.Instance.ID,
	)
}
