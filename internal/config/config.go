package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hub      HubConfig      `yaml:"hub"`
	History  HistoryConfig  `yaml:"history"`
}

// InstanceConfig identifies this relay.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	SendBuffer      int           `yaml:"send_buffer"`      // Outbound frames queued per connection
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // Deadline for one WebSocket write
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Grace period on SIGTERM
}

// DatabaseConfig holds the Postgres connection for chat history.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HubConfig holds broadcast/relay engine settings.
type HubConfig struct {
	Room              string        `yaml:"room"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	MaxUserLen        int           `yaml:"max_user_len"`
	MaxTextLen        int           `yaml:"max_text_len"`
	StoreTimeout      time.Duration `yaml:"store_timeout"`

	// EchoChat controls whether chat messages are delivered back to
	// their sender. Pointer so an explicit false survives defaulting.
	EchoChat *bool `yaml:"echo_chat"`
}

// HistoryConfig holds REST history endpoint settings.
type HistoryConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}
