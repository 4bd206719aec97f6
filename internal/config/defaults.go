package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8080
	DefaultSendBuffer        = 256
	DefaultWriteTimeout      = 10 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultRoom              = "lobby"
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultMaxUserLen        = 160
	DefaultMaxTextLen        = 2000
	DefaultStoreTimeout      = 5 * time.Second
	DefaultEchoChat          = true
	DefaultHistoryLimit      = 50
	DefaultHistoryMaxLimit   = 500
)

func (c *RelayConfig) applyDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = DefaultSendBuffer
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Hub defaults
	if c.Hub.Room == "" {
		c.Hub.Room = DefaultRoom
	}
	if c.Hub.HeartbeatInterval == 0 {
		c.Hub.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Hub.MaxUserLen == 0 {
		c.Hub.MaxUserLen = DefaultMaxUserLen
	}
	if c.Hub.MaxTextLen == 0 {
		c.Hub.MaxTextLen = DefaultMaxTextLen
	}
	if c.Hub.StoreTimeout == 0 {
		c.Hub.StoreTimeout = DefaultStoreTimeout
	}
	if c.Hub.EchoChat == nil {
		echo := DefaultEchoChat
		c.Hub.EchoChat = &echo
	}

	// History defaults
	if c.History.DefaultLimit == 0 {
		c.History.DefaultLimit = DefaultHistoryLimit
	}
	if c.History.MaxLimit == 0 {
		c.History.MaxLimit = DefaultHistoryMaxLimit
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
