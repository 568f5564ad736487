package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/boardsync/boardsync/internal/notify"
	"github.com/boardsync/boardsync/internal/realtime"
)

// API is the server surface the store reads and acknowledges through.
type API interface {
	List(ctx context.Context, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

// Realtime is the slice of the socket the store subscribes through.
type Realtime interface {
	ClientID() string
	JoinRoom(room string)
	LeaveRoom(room string)
	On(event string, fn realtime.Handler) int
	Off(event string, tokens ...int)
}

// Store holds the personal notification feed, newest first, with an
// unread counter that never goes negative.
type Store struct {
	api      API
	rt       Realtime
	notifier notify.Notifier
	logger   *slog.Logger
	onChange func()

	mu       sync.RWMutex
	feed     []Notification
	unread   int
	userRoom string
	tokens   map[string][]int
}

type StoreOptions struct {
	API      API
	Realtime Realtime
	Notifier notify.Notifier
	Logger   *slog.Logger
	OnChange func()
}

func NewStore(opts StoreOptions) *Store {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		api:      opts.API,
		rt:       opts.Realtime,
		notifier: notifier,
		logger:   logger,
		onChange: opts.OnChange,
		tokens:   make(map[string][]int),
	}
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Load replaces the feed and refreshes the unread counter.
func (s *Store) Load(ctx context.Context, limit int) error {
	feed, err := s.api.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}
	unread, err := s.api.UnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("load unread count: %w", err)
	}
	if unread < 0 {
		unread = 0
	}

	s.mu.Lock()
	s.feed = feed
	s.unread = unread
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// All returns the loaded feed, newest first.
func (s *Store) All() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, len(s.feed))
	copy(out, s.feed)
	return out
}

// Unread returns the unread counter.
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// MarkRead acknowledges one notification.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	if err := s.api.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	s.mu.Lock()
	for i, n := range s.feed {
		if n.ID == id && !n.IsRead {
			s.feed[i].IsRead = true
			if s.unread > 0 {
				s.unread--
			}
			break
		}
	}
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// MarkAllRead acknowledges the whole feed.
func (s *Store) MarkAllRead(ctx context.Context) error {
	if err := s.api.MarkAllRead(ctx); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}

	s.mu.Lock()
	for i := range s.feed {
		s.feed[i].IsRead = true
	}
	s.unread = 0
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// Subscribe joins the user's room for pushed notifications.
func (s *Store) Subscribe(userID string) {
	if s.rt == nil {
		return
	}

	s.mu.Lock()
	if s.userRoom != "" {
		s.mu.Unlock()
		return
	}
	s.userRoom = realtime.UserRoom(userID)
	room := s.userRoom
	s.mu.Unlock()

	s.rt.JoinRoom(room)
	token := s.rt.On(realtime.EventNotificationNew, func(raw json.RawMessage) {
		var n Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			s.logger.Debug("undecodable notification dropped", "error", err)
			return
		}
		s.handlePushed(n)
	})

	s.mu.Lock()
	s.tokens[realtime.EventNotificationNew] = append(s.tokens[realtime.EventNotificationNew], token)
	s.mu.Unlock()
}

// Unsubscribe leaves the user room and removes the handler.
func (s *Store) Unsubscribe() {
	if s.rt == nil {
		return
	}

	s.mu.Lock()
	room := s.userRoom
	s.userRoom = ""
	tokens := s.tokens
	s.tokens = make(map[string][]int)
	s.mu.Unlock()

	if room == "" {
		return
	}
	s.rt.LeaveRoom(room)
	for event, ids := range tokens {
		s.rt.Off(event, ids...)
	}
}

// handlePushed prepends a pushed notification and bumps the counter.
// Notification targeting already excludes the author server-side, so no
// origin suppression applies here.
func (s *Store) handlePushed(n Notification) {
	s.mu.Lock()
	s.feed = append([]Notification{n}, s.feed...)
	if !n.IsRead {
		s.unread++
	}
	s.mu.Unlock()

	s.notifier.Info(n.Message)
	s.notifyChange()
}
