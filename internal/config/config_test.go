package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const validConfig = `
instance:
  id: engine-1
venues:
  - name: kalshi
    ws_url: wss://api.elections.kalshi.com
    ws_path: /trade-api/ws/v2
    auth: signed
    channels: [ticker]
    credentials:
      - key_id: key-1
        private_key_path: /tmp/key1.pem
  - name: polygon
    ws_url: wss://socket.polygon.io/stocks
    auth: static
    channels: ["T.*"]
    credentials:
      - api_key: poly-key
database:
  host: localhost
  name: marketintel
  user: app
  password: secret
`

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Instance.ID != "engine-1" {
		t.Errorf("Instance.ID = %q, want engine-1", cfg.Instance.ID)
	}
	if len(cfg.Venues) != 2 {
		t.Fatalf("len(Venues) = %d, want 2", len(cfg.Venues))
	}
	if cfg.Venues[0].AuthScheme != "signed" {
		t.Errorf("Venues[0].AuthScheme = %q, want signed", cfg.Venues[0].AuthScheme)
	}
	if cfg.Venues[1].AuthScheme != "static" {
		t.Errorf("Venues[1].AuthScheme = %q, want static", cfg.Venues[1].AuthScheme)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_ENGINE_DB_PASSWORD", "expanded-secret")

	path := writeConfig(t, `
instance:
  id: engine-1
database:
  host: localhost
  name: marketintel
  user: app
  password: ${TEST_ENGINE_DB_PASSWORD}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Password != "expanded-secret" {
		t.Errorf("Database.Password = %q, want expanded-secret", cfg.Database.Password)
	}
}

func TestDefaults(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Recorder.BatchSize != DefaultBatchSize {
		t.Errorf("Recorder.BatchSize = %d, want %d", cfg.Recorder.BatchSize, DefaultBatchSize)
	}
	if cfg.Recorder.FlushInterval != DefaultFlushInterval {
		t.Errorf("Recorder.FlushInterval = %v, want %v", cfg.Recorder.FlushInterval, DefaultFlushInterval)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Pipeline.ShardCount != DefaultShardCount {
		t.Errorf("Pipeline.ShardCount = %d, want %d", cfg.Pipeline.ShardCount, DefaultShardCount)
	}
	if cfg.Venues[0].ReconnectBaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("ReconnectBaseDelay = %v, want %v", cfg.Venues[0].ReconnectBaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Venues[0].MaxAuthFailures != DefaultMaxAuthFailures {
		t.Errorf("MaxAuthFailures = %d, want %d", cfg.Venues[0].MaxAuthFailures, DefaultMaxAuthFailures)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want %d", cfg.Health.Port, DefaultHealthPort)
	}

	if DefaultBatchSize != 100 {
		t.Errorf("DefaultBatchSize = %d, want 100", DefaultBatchSize)
	}
	if DefaultFlushInterval != 5*time.Second {
		t.Errorf("DefaultFlushInterval = %v, want 5s", DefaultFlushInterval)
	}
}

func TestValidate_Errors(t *testing.T) {
	base := func() *EngineConfig {
		cfg, err := Load(writeConfig(t, validConfig))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"missing instance id", func(c *EngineConfig) { c.Instance.ID = "" }},
		{"no venues", func(c *EngineConfig) { c.Venues = nil }},
		{"venue missing url", func(c *EngineConfig) { c.Venues[0].WSURL = "" }},
		{"venue missing channels", func(c *EngineConfig) { c.Venues[0].Channels = nil }},
		{"unknown auth scheme", func(c *EngineConfig) { c.Venues[0].AuthScheme = "hmac" }},
		{"signed credential missing key path", func(c *EngineConfig) { c.Venues[0].Credentials[0].PrivateKeyPath = "" }},
		{"static credential missing api key", func(c *EngineConfig) { c.Venues[1].Credentials[0].APIKey = "" }},
		{"required venue without credentials", func(c *EngineConfig) {
			c.Venues[0].Required = true
			c.Venues[0].Credentials = nil
		}},
		{"too many credentials", func(c *EngineConfig) {
			creds := make([]CredentialConfig, MaxCredentialsPerVenue+1)
			for i := range creds {
				creds[i] = CredentialConfig{KeyID: "k", PrivateKeyPath: "/tmp/k.pem"}
			}
			c.Venues[0].Credentials = creds
		}},
		{"missing db host", func(c *EngineConfig) { c.Database.Host = "" }},
		{"min conns above max", func(c *EngineConfig) { c.Database.MinConns = 20 }},
		{"zero batch size", func(c *EngineConfig) { c.Recorder.BatchSize = 0 }},
		{"zero shard count", func(c *EngineConfig) { c.Pipeline.ShardCount = 0 }},
		{"bad health port", func(c *EngineConfig) { c.Health.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
