package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlu/market-intel/internal/auth"
	"github.com/dlu/market-intel/internal/bus"
	"github.com/dlu/market-intel/internal/model"
)

// Manager supervises one venue's sessions: one per credential, each an
// independent task so that authentication or reconnect delay on one session
// never blocks the others. Control flows by message passing (alerts, bus
// publishes); sessions share no mutable state.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	out    *bus.Bus
	alerts chan<- Alert

	// newClient is swappable for tests.
	newClient func(ClientConfig, *slog.Logger) Client

	sessions []*session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// session holds the supervisor's handle for one connection.
type session struct {
	id    string
	authn auth.Authenticator

	// Command/response correlation
	pendingMu sync.Mutex
	pending   map[int64]chan Response
	cmdID     int64 // Atomic counter

	connected atomic.Bool
	ready     atomic.Bool
	dormant   atomic.Bool
}

// NewManager creates a Session Manager for one venue. One session is created
// per authenticator.
func NewManager(cfg ManagerConfig, auths []auth.Authenticator, out *bus.Bus, alerts chan<- Alert, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:       cfg,
		logger:    logger.With("venue", cfg.Venue),
		out:       out,
		alerts:    alerts,
		newClient: NewClient,
	}

	for i, a := range auths {
		m.sessions = append(m.sessions, &session{
			id:      fmt.Sprintf("%s-%d", cfg.Venue, i+1),
			authn:   a,
			pending: make(map[int64]chan Response),
		})
	}

	return m
}

// Start launches one task per session.
func (m *Manager) Start(ctx context.Context) error {
	if len(m.sessions) == 0 {
		return fmt.Errorf("venue %s: no sessions configured", m.cfg.Venue)
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	for _, s := range m.sessions {
		m.wg.Add(1)
		go m.run(s)
	}

	m.logger.Info("session manager started",
		"sessions", len(m.sessions),
		"channels", m.cfg.Channels,
	)
	return nil
}

// Stop gracefully shuts down all sessions.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping session manager")

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("session manager stopped")
	case <-ctx.Done():
		m.logger.Warn("session manager stop timed out")
	}

	return nil
}

// Stats returns current session statistics for the venue.
func (m *Manager) Stats() ManagerStats {
	stats := ManagerStats{
		Venue:        m.cfg.Venue,
		SessionCount: len(m.sessions),
	}
	for _, s := range m.sessions {
		if s.connected.Load() {
			stats.ConnectedCount++
		}
		if s.ready.Load() {
			stats.ReadyCount++
		}
		if s.dormant.Load() {
			stats.DormantCount++
		}
	}
	return stats
}

// run is the supervision loop for one session: connect, subscribe, read
// until failure, back off, repeat. Repeated authentication failures make the
// session dormant instead of retrying indefinitely.
func (m *Manager) run(s *session) {
	defer m.wg.Done()

	logger := m.logger.With("session", s.id)
	wait := m.cfg.ReconnectBaseDelay
	authFailures := 0

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		client := m.newClient(m.clientConfig(s), logger)

		if err := client.Connect(m.ctx); err != nil {
			client.Close()

			var authErr *AuthError
			if errors.As(err, &authErr) {
				authFailures++
				logger.Warn("authentication failed",
					"attempt", authFailures,
					"max", m.cfg.MaxAuthFailures,
					"error", err,
				)
				if authFailures >= m.cfg.MaxAuthFailures {
					s.dormant.Store(true)
					logger.Error("session dormant after repeated authentication failures")
					m.alert(s, fmt.Errorf("session %s dormant: %w", s.id, err))
					return
				}
			} else {
				authFailures = 0
				logger.Warn("connect failed", "error", err)
			}

			if !m.sleep(wait) {
				return
			}
			wait = nextDelay(wait, m.cfg.ReconnectMaxDelay)
			continue
		}

		authFailures = 0
		wait = m.cfg.ReconnectBaseDelay
		s.connected.Store(true)

		// The read loop must be running before subscribe: the
		// confirmation arrives on the same message stream.
		readDone := make(chan struct{})
		go func() {
			m.readLoop(s, client)
			close(readDone)
		}()

		if err := m.subscribe(s, client); err != nil {
			logger.Warn("subscribe failed, reconnecting", "error", err)
			client.Close()
			s.connected.Store(false)
			<-readDone
			if !m.sleep(wait) {
				return
			}
			wait = nextDelay(wait, m.cfg.ReconnectMaxDelay)
			continue
		}

		s.ready.Store(true)
		logger.Info("session ready", "channels", m.cfg.Channels)

		<-readDone

		s.ready.Store(false)
		s.connected.Store(false)
		client.Close()

		select {
		case <-m.ctx.Done():
			return
		default:
		}

		logger.Info("session disconnected, reconnecting", "wait", wait)
		if !m.sleep(wait) {
			return
		}
		wait = nextDelay(wait, m.cfg.ReconnectMaxDelay)
	}
}

// clientConfig builds the per-attempt client configuration.
func (m *Manager) clientConfig(s *session) ClientConfig {
	return ClientConfig{
		URL:          m.cfg.WSURL + m.cfg.WSPath,
		Path:         m.cfg.WSPath,
		Auth:         s.authn,
		PingTimeout:  m.cfg.PingTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}
}

// readLoop forwards data messages to the Raw Event Bus and routes command
// responses to their waiters. Returns when the connection errors, the
// message stream closes, or shutdown begins.
func (m *Manager) readLoop(s *session, client Client) {
	logger := m.logger.With("session", s.id)

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-client.Errors():
			logger.Warn("connection error", "error", err)
			return

		case msg, ok := <-client.Messages():
			if !ok {
				return
			}

			// Command responses carry the command's id.
			if resp, ok := tryParseResponse(msg.Data); ok {
				s.routeResponse(resp)
				continue
			}

			// Unsolicited error frames: benign classes are logged and
			// ignored, anything else forces a reconnect (which also
			// re-subscribes).
			if errMsg, ok := tryParseErrorFrame(msg.Data); ok {
				if errMsg.Code == "already_subscribed" {
					logger.Debug("duplicate subscription", "message", errMsg.Message)
					continue
				}
				logger.Warn("venue error frame, reconnecting",
					"code", errMsg.Code,
					"message", errMsg.Message,
				)
				return
			}

			published := m.out.Publish(model.RawEvent{
				Venue:      m.cfg.Venue,
				SessionID:  s.id,
				ReceivedAt: msg.ReceivedAt,
				Payload:    msg.Data,
			})
			if !published {
				// Bus closed: shutdown in progress.
				return
			}
		}
	}
}

// subscribe sends one subscribe command for all configured channels and
// waits for confirmation.
func (m *Manager) subscribe(s *session, client Client) error {
	id := atomic.AddInt64(&s.cmdID, 1)
	respCh := make(chan Response, 1)

	s.pendingMu.Lock()
	s.pending[id] = respCh
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	cmd := Command{
		ID:     id,
		Cmd:    "subscribe",
		Params: SubscribeParams{Channels: m.cfg.Channels},
	}

	data, _ := json.Marshal(cmd)
	if err := client.Send(data); err != nil {
		return err
	}

	select {
	case <-m.ctx.Done():
		return m.ctx.Err()
	case <-time.After(m.cfg.SubscribeTimeout):
		return ErrTimeout
	case resp := <-respCh:
		if resp.Type == "error" {
			var errMsg ErrorMsg
			json.Unmarshal(resp.Msg, &errMsg)
			return fmt.Errorf("%s: %s", errMsg.Code, errMsg.Message)
		}

		var subMsg SubscribedMsg
		json.Unmarshal(resp.Msg, &subMsg)

		m.logger.Debug("subscribed",
			"session", s.id,
			"sid", subMsg.SID,
			"channels", m.cfg.Channels,
		)
		return nil
	}
}

// routeResponse sends a response to the waiting goroutine.
func (s *session) routeResponse(resp Response) {
	s.pendingMu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.pendingMu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

// alert surfaces a persistent failure to the operator channel.
func (m *Manager) alert(s *session, err error) {
	a := Alert{
		Venue:     m.cfg.Venue,
		SessionID: s.id,
		Err:       err,
		At:        time.Now(),
	}
	select {
	case m.alerts <- a:
	case <-m.ctx.Done():
	}
}

// sleep waits for the given duration or until shutdown. Returns false when
// shutting down.
func (m *Manager) sleep(d time.Duration) bool {
	select {
	case <-m.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// nextDelay doubles the backoff wait up to the cap.
func nextDelay(wait, max time.Duration) time.Duration {
	wait *= 2
	if wait > max {
		wait = max
	}
	return wait
}

// tryParseResponse attempts to parse a message as a command response.
func tryParseResponse(data []byte) (Response, bool) {
	// Quick check for response markers
	if !bytes.Contains(data, []byte(`"id":`)) {
		return Response{}, false
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, false
	}
	if resp.ID == 0 {
		return Response{}, false
	}

	switch resp.Type {
	case "subscribed", "unsubscribed", "error", "ok":
		return resp, true
	}

	return Response{}, false
}

// tryParseErrorFrame attempts to parse a message as an unsolicited error frame.
func tryParseErrorFrame(data []byte) (ErrorMsg, bool) {
	var frame struct {
		Type string          `json:"type"`
		Msg  json.RawMessage `json:"msg"`
	}
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "error" {
		return ErrorMsg{}, false
	}

	var errMsg ErrorMsg
	json.Unmarshal(frame.Msg, &errMsg)
	return errMsg, true
}
