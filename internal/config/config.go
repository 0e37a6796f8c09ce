package config

import "time"

// Config is the root configuration for a coinfo instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance" split_words:"true"`
	Log       LogConfig       `yaml:"log" split_words:"true"`
	Server    ServerConfig    `yaml:"server" split_words:"true"`
	Upbit     UpbitConfig     `yaml:"upbit" split_words:"true"`
	Broadcast BroadcastConfig `yaml:"broadcast" split_words:"true"`
	Database  DatabaseConfig  `yaml:"database" split_words:"true"`
	Redis     RedisConfig     `yaml:"redis" split_words:"true"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id" split_words:"true"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`  // debug, info, warn, error
	Format string `yaml:"format" split_words:"true"` // text or json
}

// ServerConfig holds the client-facing HTTP/WebSocket settings.
type ServerConfig struct {
	Host           string        `yaml:"host" split_words:"true"`
	Port           int           `yaml:"port" split_words:"true"`
	WSPath         string        `yaml:"ws_path" split_words:"true"`
	SendQueueSize  int           `yaml:"send_queue_size" split_words:"true"`  // Outbound frames buffered per client
	MaxMessageSize int64         `yaml:"max_message_size" split_words:"true"` // Max inbound client frame (bytes)
	PingInterval   time.Duration `yaml:"ping_interval" split_words:"true"`
	WriteTimeout   time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace" split_words:"true"`
}

// UpbitConfig holds the upstream Upbit feed settings.
type UpbitConfig struct {
	RestURL        string        `yaml:"rest_url" split_words:"true"`
	WSURL          string        `yaml:"ws_url" split_words:"true"`
	Timeout        time.Duration `yaml:"timeout" split_words:"true"`
	MaxRetries     int           `yaml:"max_retries" split_words:"true"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" split_words:"true"`
	BatchWindow    time.Duration `yaml:"batch_window" split_words:"true"`
	DegradedAfter  time.Duration `yaml:"degraded_after" split_words:"true"`
	UnhealthyAfter time.Duration `yaml:"unhealthy_after" split_words:"true"`
	DefaultSymbols []string      `yaml:"default_symbols" split_words:"true"` // Used when the universe fetch fails
}

// BroadcastConfig holds the fan-out batching settings.
type BroadcastConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval" split_words:"true"`
}

// DatabaseConfig holds the optional PostgreSQL connection for the market catalog.
// Leaving Host empty disables the catalog store.
type DatabaseConfig struct {
	Host     string `yaml:"host" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`
	Name     string `yaml:"name" split_words:"true"`
	User     string `yaml:"user" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	SSLMode  string `yaml:"ssl_mode" split_words:"true"`
	MaxConns int    `yaml:"max_conns" split_words:"true"`
	MinConns int    `yaml:"min_conns" split_words:"true"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// RedisConfig holds the optional latest-value mirror settings.
// Leaving Addr empty disables the mirror.
type RedisConfig struct {
	Addr      string        `yaml:"addr" split_words:"true"`
	Password  string        `yaml:"password" split_words:"true"`
	DB        int           `yaml:"db" split_words:"true"`
	KeyPrefix string        `yaml:"key_prefix" split_words:"true"`
	Interval  time.Duration `yaml:"interval" split_words:"true"`
	TTL       time.Duration `yaml:"ttl" split_words:"true"`
}

// Enabled reports whether a Redis mirror is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}
