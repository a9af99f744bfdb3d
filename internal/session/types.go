package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dlu/market-intel/internal/auth"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrTimeout         = errors.New("operation timeout")
	ErrAlreadyClosed   = errors.New("already closed")
)

// AuthError reports a handshake rejected by the venue for credential reasons.
// It is counted separately from transient network failures: a session that
// keeps failing authentication goes dormant instead of retrying forever.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (status %d)", e.StatusCode)
}

// Alert is a persistent-failure signal for the operator channel.
type Alert struct {
	Venue     string
	SessionID string
	Err       error
	At        time.Time
}

// TimestampedMessage wraps raw message data with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// Command is a WebSocket command sent to the venue.
type Command struct {
	ID     int64       `json:"id"`
	Cmd    string      `json:"cmd"`
	Params interface{} `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels []string `json:"channels"`
}

// Response is a command response from the venue.
type Response struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"` // "subscribed", "unsubscribed", "error", "ok"
	Msg  json.RawMessage `json:"msg"`
}

// SubscribedMsg is the message content for a "subscribed" response.
type SubscribedMsg struct {
	SID     int64  `json:"sid"`
	Channel string `json:"channel"`
}

// ErrorMsg is the message content for an "error" response or frame.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClientConfig configures a single WebSocket client.
type ClientConfig struct {
	URL          string             // WebSocket URL including path
	Path         string             // Handshake path, also the signing path for signed auth
	Auth         auth.Authenticator // nil = no authentication headers
	PingTimeout  time.Duration      // Max time without ping before considering connection stale
	WriteTimeout time.Duration      // Write deadline for sends
	BufferSize   int                // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// ManagerConfig configures a venue's Session Manager.
type ManagerConfig struct {
	Venue              string        // Venue name (tags raw events)
	WSURL              string        // Base WebSocket URL
	WSPath             string        // Handshake and signing path
	Channels           []string      // Channels to subscribe on every session
	ReconnectBaseDelay time.Duration // Base wait for reconnection backoff
	ReconnectMaxDelay  time.Duration // Cap for reconnection backoff
	MaxAuthFailures    int           // Consecutive auth failures before dormancy
	SubscribeTimeout   time.Duration // Timeout for subscribe commands
	PingTimeout        time.Duration
	WriteTimeout       time.Duration
	BufferSize         int // Per-client message channel buffer
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		MaxAuthFailures:    5,
		SubscribeTimeout:   10 * time.Second,
		PingTimeout:        60 * time.Second,
		WriteTimeout:       5 * time.Second,
		BufferSize:         1000,
	}
}

// ManagerStats provides statistics about a venue's sessions.
type ManagerStats struct {
	Venue          string
	SessionCount   int
	ConnectedCount int
	ReadyCount     int
	DormantCount   int
}
