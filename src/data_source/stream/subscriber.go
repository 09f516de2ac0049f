package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"chart-observer/src/helpers"
	"chart-observer/src/interfaces"
	"chart-observer/src/logger"
	"chart-observer/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait = 2 * time.Second

	keepaliveRequest = "ping"
	keepaliveReply   = "pong"
)

var ErrSessionClosed = errors.New("stream session is not open")

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// session is one dialed connection. A Subscriber holds at most one at a time.
type session struct {
	conn        *websocket.Conn
	writeMu     sync.Mutex
	done        chan struct{}
	intentional atomic.Bool
	onStatus    func(models.MSessionStatus)
}

func (s *session) writeText(payload string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

func (s *session) writeClose() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// -----------------------------------------------------------------------------
// Subscriber
// -----------------------------------------------------------------------------

// Subscriber owns the single long-lived stream session and the active selection filter.
// Decoding and filtering run on the session's read goroutine; handlers must hand
// events off quickly.
type Subscriber struct {
	Endpoint       string
	Dialer         *websocket.Dialer
	Header         http.Header
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
	Logger         *logger.Logger

	mu      sync.Mutex
	current *session
	closes  uint64 // bumped by Close; a dial started before it must not install
	filter  atomic.Pointer[Subscription]

	received     atomic.Int64
	forwarded    atomic.Int64
	ignored      atomic.Int64
	decodeErrors atomic.Int64
}

// -----------------------------------------------------------------------------

func NewSubscriber(cfg *models.MConfig, log *logger.Logger) (*Subscriber, error) {
	if log == nil {
		log = logger.NewLogger(cfg, "StreamSubscriber")
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: time.Duration(cfg.Stream.HandshakeTimeout) * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}
	if cfg.Backend.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Backend.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", cfg.Backend.Proxy, err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	header := http.Header{}
	if cfg.Backend.UserAgent != "" {
		header.Set("User-Agent", cfg.Backend.UserAgent)
	}

	return &Subscriber{
		Endpoint:       cfg.Backend.StreamURL,
		Dialer:         dialer,
		Header:         header,
		PingInterval:   time.Duration(cfg.Stream.PingIntervalSeconds) * time.Second,
		ReadTimeout:    time.Duration(cfg.Stream.ReadTimeoutSeconds) * time.Second,
		MaxMessageSize: cfg.Stream.MaxMessageSize,
		Logger:         log,
	}, nil
}

// -----------------------------------------------------------------------------

// Open dials the stream endpoint and starts the session goroutines.
// It is a no-op while a session is live and may be called again after a loss.
// A dial overtaken by Close or by ctx is discarded with ErrSessionClosed.
func (s *Subscriber) Open(ctx context.Context, onStatus func(models.MSessionStatus)) error {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return nil
	}
	closes := s.closes
	s.mu.Unlock()

	conn, resp, err := s.Dialer.DialContext(ctx, s.Endpoint, s.Header)
	if err != nil {
		if resp != nil {
			return helpers.NewConnectionLost(s.Endpoint, fmt.Errorf("handshake status %d: %w", resp.StatusCode, err))
		}
		return helpers.NewConnectionLost(s.Endpoint, err)
	}

	if s.MaxMessageSize > 0 {
		conn.SetReadLimit(s.MaxMessageSize)
	}

	sess := &session{
		conn:     conn,
		done:     make(chan struct{}),
		onStatus: onStatus,
	}

	s.mu.Lock()
	if s.closes != closes || ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		s.Logger.Info("Stream dial to %s finished after close, dropping it", s.Endpoint)
		return ErrSessionClosed
	}
	if s.current != nil {
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.current = sess
	s.mu.Unlock()

	s.Logger.Info("Stream session connected to %s", s.Endpoint)
	s.emit(sess, models.MSessionStatus{State: models.SessionConnected})

	go s.readPump(sess)
	if s.PingInterval > 0 {
		go s.keepalivePump(sess)
	}
	return nil
}

// -----------------------------------------------------------------------------

// SetFilter atomically replaces the forwarded selection. The previous
// subscription stops receiving events.
func (s *Subscriber) SetFilter(selection models.MSelection, handler func(models.MKlineEvent)) interfaces.ISubscription {
	sub := &Subscription{owner: s, selection: selection, handler: handler}
	s.filter.Store(sub)
	s.Logger.Debug("Filter set to %s", selection)
	return sub
}

// -----------------------------------------------------------------------------

// Close ends the current session intentionally and voids any dial still in
// flight. It does not wait for the read goroutine, which reports SessionClosed
// on its way out.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	sess := s.current
	s.current = nil
	s.closes++
	s.mu.Unlock()

	if sess == nil {
		return nil
	}

	sess.intentional.Store(true)
	if err := sess.writeClose(); err != nil {
		s.Logger.Debug("Close frame not sent: %v", err)
	}
	return sess.conn.Close()
}

// -----------------------------------------------------------------------------

// Connected reports whether a session is live.
func (s *Subscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// -----------------------------------------------------------------------------

func (s *Subscriber) Stats() models.MSubscriberStats {
	return models.MSubscriberStats{
		Received:     s.received.Load(),
		Forwarded:    s.forwarded.Load(),
		Ignored:      s.ignored.Load(),
		DecodeErrors: s.decodeErrors.Load(),
	}
}

// -----------------------------------------------------------------------------
// readPump - decodes frames and forwards matching klines
// -----------------------------------------------------------------------------

func (s *Subscriber) readPump(sess *session) {
	var readErr error
	defer func() {
		close(sess.done)
		sess.conn.Close()

		s.mu.Lock()
		if s.current == sess {
			s.current = nil
		}
		s.mu.Unlock()

		if sess.intentional.Load() {
			s.Logger.Info("Stream session closed")
			s.emit(sess, models.MSessionStatus{State: models.SessionClosed})
			return
		}
		lost := helpers.NewConnectionLost(s.Endpoint, readErr)
		s.Logger.Warning("%v", lost)
		s.emit(sess, models.MSessionStatus{State: models.SessionDisconnected, Err: lost, Error: lost.Error()})
	}()

	s.extendDeadline(sess)
	sess.conn.SetPongHandler(func(string) error {
		s.extendDeadline(sess)
		return nil
	})

	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		s.extendDeadline(sess)
		s.handleFrame(message)
	}
}

// -----------------------------------------------------------------------------

func (s *Subscriber) extendDeadline(sess *session) {
	if s.ReadTimeout > 0 {
		sess.conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}
}

// -----------------------------------------------------------------------------
// keepalivePump - sends the backend's text keepalive
// -----------------------------------------------------------------------------

func (s *Subscriber) keepalivePump(sess *session) {
	ticker := time.NewTicker(s.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done:
			return
		case <-ticker.C:
			if err := sess.writeText(keepaliveRequest); err != nil {
				s.Logger.Debug("Keepalive write failed: %v", err)
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *Subscriber) handleFrame(message []byte) {
	s.received.Add(1)

	trimmed := bytes.TrimSpace(message)
	if string(trimmed) == keepaliveReply {
		return
	}

	var event models.MKlineEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		s.decodeErrors.Add(1)
		decodeErr := helpers.NewDecodeError(trimmed, err)
		s.Logger.Debug("%v: %q", decodeErr, decodeErr.Frame)
		return
	}
	if event.Type != models.EventTypeKline {
		s.ignored.Add(1)
		return
	}

	sub := s.filter.Load()
	if sub == nil || !sub.selection.Matches(event.Symbol, event.Interval) {
		s.ignored.Add(1)
		return
	}

	s.forwarded.Add(1)
	sub.handler(event)
}

// -----------------------------------------------------------------------------

func (s *Subscriber) emit(sess *session, status models.MSessionStatus) {
	if sess.onStatus != nil {
		sess.onStatus(status)
	}
}
