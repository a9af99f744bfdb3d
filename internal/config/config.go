package config

import "time"

// EngineConfig is the root configuration for an engine instance.
type EngineConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Venues   []VenueConfig  `yaml:"venues"`
	Database DBConfig       `yaml:"database"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Recorder RecorderConfig `yaml:"recorder"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this engine.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// VenueConfig holds one venue's connection settings. A venue gets one
// session per credential, each subscribed to the configured channels.
type VenueConfig struct {
	Name        string             `yaml:"name"`      // e.g., "kalshi", "polygon"
	WSURL       string             `yaml:"ws_url"`    // Base WebSocket URL (production or sandbox)
	WSPath      string             `yaml:"ws_path"`   // Handshake path, also the signing path for signed auth
	AuthScheme  string             `yaml:"auth"`      // "signed" or "static"
	Channels    []string           `yaml:"channels"`  // Channels to subscribe to (e.g., ["ticker", "trades"])
	Required    bool               `yaml:"required"`  // Startup fails if no valid credentials
	Credentials []CredentialConfig `yaml:"credentials"`

	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MaxAuthFailures    int           `yaml:"max_auth_failures"`
	SubscribeTimeout   time.Duration `yaml:"subscribe_timeout"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
}

// CredentialConfig holds one credential. Signed venues use KeyID +
// PrivateKeyPath; static venues use APIKey.
type CredentialConfig struct {
	KeyID          string `yaml:"key_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	APIKey         string `yaml:"api_key"`
}

// DBConfig holds the durable storage connection.
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

// PipelineConfig holds channel and shard sizing.
type PipelineConfig struct {
	RawBufferSize   int `yaml:"raw_buffer_size"`   // Raw event bus capacity (drop-oldest)
	TickBufferSize  int `yaml:"tick_buffer_size"`  // Router/recorder tick channel capacity
	ShardCount      int `yaml:"shard_count"`       // Engine shards
	ShardBufferSize int `yaml:"shard_buffer_size"` // Per-shard channel capacity
}

// RecorderConfig holds batch flush settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBaseWait time.Duration `yaml:"retry_base_wait"`
	RetryMaxWait  time.Duration `yaml:"retry_max_wait"`
}

// HealthConfig holds the liveness/readiness endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
