// Package realtime maintains the room-scoped event subscription used for
// live collaboration. Delivery is at-least-once per joined room while
// connected; events are dropped while disconnected and resume from "now"
// after an automatic reconnect, which re-joins every tracked room.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler consumes the payload of one event.
type Handler func(payload json.RawMessage)

var ErrNotConnected = errors.New("socket not connected")

type handlerEntry struct {
	id int
	fn Handler
}

// Socket is the realtime connection. A Socket carries a stable per-session
// client identity used to recognize echoed self-events.
type Socket struct {
	url      string
	token    string
	username string
	clientID string
	logger   *slog.Logger

	reconnectDelay    time.Duration
	reconnectDelayMax time.Duration
	reconnectAttempts int

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	rooms     map[string]struct{}
	handlers  map[string][]handlerEntry
	nextID    int
	done      chan struct{}
}

// Options configures a Socket.
type Options struct {
	// URL is the websocket endpoint, e.g. "ws://host/realtime".
	URL      string
	Token    string
	Username string
	Logger   *slog.Logger
	// ReconnectDelay is the initial redial backoff. Zero means 1s.
	ReconnectDelay time.Duration
	// ReconnectDelayMax caps the backoff. Zero means 5s.
	ReconnectDelayMax time.Duration
	// ReconnectAttempts limits redials per drop. Zero means 10.
	ReconnectAttempts int
}

// New creates a disconnected Socket with a fresh client identity.
func New(opts Options) *Socket {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	delay := opts.ReconnectDelay
	if delay == 0 {
		delay = time.Second
	}
	delayMax := opts.ReconnectDelayMax
	if delayMax == 0 {
		delayMax = 5 * time.Second
	}
	attempts := opts.ReconnectAttempts
	if attempts == 0 {
		attempts = 10
	}
	return &Socket{
		url:               opts.URL,
		token:             opts.Token,
		username:          opts.Username,
		clientID:          uuid.NewString(),
		logger:            logger,
		reconnectDelay:    delay,
		reconnectDelayMax: delayMax,
		reconnectAttempts: attempts,
		rooms:             make(map[string]struct{}),
		handlers:          make(map[string][]handlerEntry),
		done:              make(chan struct{}),
	}
}

// ClientID returns the stable per-session identity attached to outgoing
// mutations and compared against inbound event origins.
func (s *Socket) ClientID() string { return s.clientID }

// Connected reports whether the socket currently holds a live connection.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connect dials the server and starts the read loop. Calling Connect on a
// connected socket is a no-op.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	if s.closed {
		s.done = make(chan struct{})
		s.closed = false
	}
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	rooms := roomList(s.rooms)
	s.mu.Unlock()

	// Join previously-tracked rooms on connect and reconnect.
	for _, room := range rooms {
		if err := s.writeFrame(frame{Action: actionJoin, Room: room}); err != nil {
			s.logger.Warn("room rejoin failed", "room", room, "error", err)
		}
	}

	go s.readLoop(conn)
	go s.heartbeat(conn)
	return nil
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	if s.username != "" {
		header.Set("x-username", s.username)
	}
	header.Set("x-client-id", s.clientID)

	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// Disconnect closes the connection and stops reconnecting. Tracked rooms
// and handlers are cleared; a later Connect starts from a clean slate.
func (s *Socket) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	err := error(nil)
	if s.conn != nil {
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		err = s.conn.Close()
		s.conn = nil
	}
	s.connected = false
	s.rooms = make(map[string]struct{})
	s.handlers = make(map[string][]handlerEntry)
	return err
}

// JoinRoom subscribes to a room. The room is tracked and re-joined after
// every reconnect until LeaveRoom is called.
func (s *Socket) JoinRoom(room string) {
	s.mu.Lock()
	s.rooms[room] = struct{}{}
	connected := s.connected
	s.mu.Unlock()

	if connected {
		if err := s.writeFrame(frame{Action: actionJoin, Room: room}); err != nil {
			s.logger.Warn("join room failed", "room", room, "error", err)
		}
	}
}

// LeaveRoom unsubscribes from a room and stops tracking it.
func (s *Socket) LeaveRoom(room string) {
	s.mu.Lock()
	delete(s.rooms, room)
	connected := s.connected
	s.mu.Unlock()

	if connected {
		if err := s.writeFrame(frame{Action: actionLeave, Room: room}); err != nil {
			s.logger.Warn("leave room failed", "room", room, "error", err)
		}
	}
}

// On registers a handler for an event name and returns a token for Off.
func (s *Socket) On(event string, fn Handler) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.handlers[event] = append(s.handlers[event], handlerEntry{id: s.nextID, fn: fn})
	return s.nextID
}

// Off removes the handler registered under token, or every handler for the
// event when no token is given.
func (s *Socket) Off(event string, tokens ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(tokens) == 0 {
		delete(s.handlers, event)
		return
	}
	entries := s.handlers[event]
	kept := entries[:0]
	for _, entry := range entries {
		remove := false
		for _, token := range tokens {
			if entry.id == token {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		delete(s.handlers, event)
	} else {
		s.handlers[event] = kept
	}
}

func (s *Socket) writeFrame(f frame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(f)
}

// readLoop dispatches inbound events in arrival order. Handlers run on the
// read goroutine so per-room ordering observed by one client is preserved.
func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDrop(conn, err)
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("undecodable frame dropped", "error", err)
			continue
		}
		s.dispatch(msg)
	}
}

func (s *Socket) dispatch(msg message) {
	s.mu.Lock()
	entries := make([]handlerEntry, len(s.handlers[msg.Event]))
	copy(entries, s.handlers[msg.Event])
	s.mu.Unlock()

	for _, entry := range entries {
		entry.fn(msg.Payload)
	}
}

func (s *Socket) handleDrop(conn *websocket.Conn, cause error) {
	conn.Close()

	s.mu.Lock()
	if s.closed || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.connected = false
	done := s.done
	s.mu.Unlock()

	s.logger.Info("connection dropped, reconnecting", "error", cause)

	delay := s.reconnectDelay
	for attempt := 1; attempt <= s.reconnectAttempts; attempt++ {
		select {
		case <-done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.Connect(ctx)
		cancel()
		if err == nil {
			s.logger.Info("reconnected", "attempt", attempt)
			return
		}

		s.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
		delay *= 2
		if delay > s.reconnectDelayMax {
			delay = s.reconnectDelayMax
		}
	}
	s.logger.Error("reconnect attempts exhausted")
}

func (s *Socket) heartbeat(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			current := s.conn
			s.mu.Unlock()
			if current != conn {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func roomList(set map[string]struct{}) []string {
	rooms := make([]string, 0, len(set))
	for room := range set {
		rooms = append(rooms, room)
	}
	return rooms
}
