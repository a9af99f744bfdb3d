package config

import (
	"errors"
	"fmt"
)

// MaxCredentialsPerVenue bounds the session pool per venue.
const MaxCredentialsPerVenue = 10

// Validate checks that all required fields are set and values are valid.
// A configuration error here is the only fatal condition in the engine.
func (c *EngineConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if len(c.Venues) == 0 {
		return errors.New("at least one venue is required")
	}
	for i := range c.Venues {
		if err := c.Venues[i].validate(); err != nil {
			return err
		}
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Pipeline.ShardCount < 1 {
		return errors.New("pipeline.shard_count must be >= 1")
	}
	if c.Pipeline.RawBufferSize < 1 {
		return errors.New("pipeline.raw_buffer_size must be >= 1")
	}

	if c.Recorder.BatchSize < 1 {
		return errors.New("recorder.batch_size must be >= 1")
	}
	if c.Recorder.FlushInterval <= 0 {
		return errors.New("recorder.flush_interval must be positive")
	}
	if c.Recorder.MaxRetries < 0 {
		return errors.New("recorder.max_retries must be >= 0")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (v *VenueConfig) validate() error {
	if v.Name == "" {
		return errors.New("venue name is required")
	}
	if v.WSURL == "" {
		return fmt.Errorf("venue %s: ws_url is required", v.Name)
	}
	if len(v.Channels) == 0 {
		return fmt.Errorf("venue %s: at least one channel is required", v.Name)
	}
	if len(v.Credentials) > MaxCredentialsPerVenue {
		return fmt.Errorf("venue %s: at most %d credentials allowed, got %d",
			v.Name, MaxCredentialsPerVenue, len(v.Credentials))
	}
	if v.Required && len(v.Credentials) == 0 {
		return fmt.Errorf("venue %s: required but has no credentials", v.Name)
	}

	switch v.AuthScheme {
	case "signed":
		for i, cred := range v.Credentials {
			if cred.KeyID == "" || cred.PrivateKeyPath == "" {
				return fmt.Errorf("venue %s: credential %d needs key_id and private_key_path", v.Name, i)
			}
		}
	case "static":
		for i, cred := range v.Credentials {
			if cred.APIKey == "" {
				return fmt.Errorf("venue %s: credential %d needs api_key", v.Name, i)
			}
		}
	case "":
		return fmt.Errorf("venue %s: auth scheme is required", v.Name)
	default:
		return fmt.Errorf("venue %s: unknown auth scheme %q", v.Name, v.AuthScheme)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
