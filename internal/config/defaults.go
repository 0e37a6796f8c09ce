package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID     = "coinfo"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultServerPort     = 3003
	DefaultWSPath         = "/ws"
	DefaultSendQueueSize  = 256
	DefaultMaxMessageSize = 64 * 1024
	DefaultPingInterval   = 30 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultShutdownGrace  = 10 * time.Second
	DefaultUpbitRestURL   = "https://api.upbit.com/v1"
	DefaultUpbitWSURL     = "wss://api.upbit.com/websocket/v1"
	DefaultAPITimeout     = 10 * time.Second
	DefaultMaxRetries     = 2
	DefaultReconnectDelay = 5 * time.Second
	DefaultBatchWindow    = 333 * time.Millisecond
	DefaultDegradedAfter  = 5 * time.Second
	DefaultUnhealthyAfter = 10 * time.Second
	DefaultFlushInterval  = 333 * time.Millisecond
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 4
	DefaultMinConns       = 1
	DefaultRedisKeyPrefix = "coinfo:tickers"
	DefaultRedisInterval  = 1 * time.Second
	DefaultRedisTTL       = 10 * time.Second
)

// DefaultSymbols is the fallback subscription list when the instrument
// universe cannot be fetched.
var DefaultSymbols = []string{"KRW-BTC", "KRW-ETH", "KRW-XRP", "KRW-SOL", "KRW-DOGE"}

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Server.SendQueueSize == 0 {
		c.Server.SendQueueSize = DefaultSendQueueSize
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownGrace == 0 {
		c.Server.ShutdownGrace = DefaultShutdownGrace
	}

	// Upbit defaults
	if c.Upbit.RestURL == "" {
		c.Upbit.RestURL = DefaultUpbitRestURL
	}
	if c.Upbit.WSURL == "" {
		c.Upbit.WSURL = DefaultUpbitWSURL
	}
	if c.Upbit.Timeout == 0 {
		c.Upbit.Timeout = DefaultAPITimeout
	}
	if c.Upbit.MaxRetries == 0 {
		c.Upbit.MaxRetries = DefaultMaxRetries
	}
	if c.Upbit.ReconnectDelay == 0 {
		c.Upbit.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Upbit.BatchWindow == 0 {
		c.Upbit.BatchWindow = DefaultBatchWindow
	}
	if c.Upbit.DegradedAfter == 0 {
		c.Upbit.DegradedAfter = DefaultDegradedAfter
	}
	if c.Upbit.UnhealthyAfter == 0 {
		c.Upbit.UnhealthyAfter = DefaultUnhealthyAfter
	}
	if len(c.Upbit.DefaultSymbols) == 0 {
		c.Upbit.DefaultSymbols = append([]string(nil), DefaultSymbols...)
	}

	// Broadcast defaults
	if c.Broadcast.FlushInterval == 0 {
		c.Broadcast.FlushInterval = DefaultFlushInterval
	}

	// Database defaults (only meaningful when enabled)
	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			c.Database.Port = DefaultDBPort
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultDBSSLMode
		}
		if c.Database.MaxConns == 0 {
			c.Database.MaxConns = DefaultMaxConns
		}
		if c.Database.MinConns == 0 {
			c.Database.MinConns = DefaultMinConns
		}
	}

	// Redis defaults
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Redis.Interval == 0 {
		c.Redis.Interval = DefaultRedisInterval
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}
}
