package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultMaxAuthFailures    = 5
	DefaultSubscribeTimeout   = 10 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second

	DefaultRawBufferSize   = 10000
	DefaultTickBufferSize  = 1000
	DefaultShardCount      = 4
	DefaultShardBufferSize = 1000

	DefaultBatchSize     = 100
	DefaultFlushInterval = 5 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryBaseWait = 500 * time.Millisecond
	DefaultRetryMaxWait  = 10 * time.Second

	DefaultHealthPort = 8080
	DefaultHealthPath = "/health"
)

func (c *EngineConfig) applyDefaults() {
	applyDBDefaults(&c.Database)

	for i := range c.Venues {
		applyVenueDefaults(&c.Venues[i])
	}

	if c.Pipeline.RawBufferSize == 0 {
		c.Pipeline.RawBufferSize = DefaultRawBufferSize
	}
	if c.Pipeline.TickBufferSize == 0 {
		c.Pipeline.TickBufferSize = DefaultTickBufferSize
	}
	if c.Pipeline.ShardCount == 0 {
		c.Pipeline.ShardCount = DefaultShardCount
	}
	if c.Pipeline.ShardBufferSize == 0 {
		c.Pipeline.ShardBufferSize = DefaultShardBufferSize
	}

	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.MaxRetries == 0 {
		c.Recorder.MaxRetries = DefaultMaxRetries
	}
	if c.Recorder.RetryBaseWait == 0 {
		c.Recorder.RetryBaseWait = DefaultRetryBaseWait
	}
	if c.Recorder.RetryMaxWait == 0 {
		c.Recorder.RetryMaxWait = DefaultRetryMaxWait
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyVenueDefaults(v *VenueConfig) {
	if v.ReconnectBaseDelay == 0 {
		v.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if v.ReconnectMaxDelay == 0 {
		v.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if v.MaxAuthFailures == 0 {
		v.MaxAuthFailures = DefaultMaxAuthFailures
	}
	if v.SubscribeTimeout == 0 {
		v.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if v.PingTimeout == 0 {
		v.PingTimeout = DefaultPingTimeout
	}
	if v.WriteTimeout == 0 {
		v.WriteTimeout = DefaultWriteTimeout
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
