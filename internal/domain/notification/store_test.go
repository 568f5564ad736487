package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boardsync/boardsync/internal/notify"
	"github.com/boardsync/boardsync/internal/realtime"
)

type fakeAPI struct {
	list        func(ctx context.Context, limit int) ([]Notification, error)
	unreadCount func(ctx context.Context) (int, error)
	markRead    func(ctx context.Context, id string) error
	markAllRead func(ctx context.Context) error
}

func (f *fakeAPI) List(ctx context.Context, limit int) ([]Notification, error) {
	return f.list(ctx, limit)
}
func (f *fakeAPI) UnreadCount(ctx context.Context) (int, error) { return f.unreadCount(ctx) }
func (f *fakeAPI) MarkRead(ctx context.Context, id string) error {
	return f.markRead(ctx, id)
}
func (f *fakeAPI) MarkAllRead(ctx context.Context) error { return f.markAllRead(ctx) }

type fakeBus struct {
	clientID string
	rooms    map[string]int
	handlers map[string]map[int]realtime.Handler
	nextID   int
}

func newFakeBus(clientID string) *fakeBus {
	return &fakeBus{
		clientID: clientID,
		rooms:    make(map[string]int),
		handlers: make(map[string]map[int]realtime.Handler),
	}
}

func (b *fakeBus) ClientID() string     { return b.clientID }
func (b *fakeBus) JoinRoom(room string) { b.rooms[room]++ }
func (b *fakeBus) LeaveRoom(room string) {
	if b.rooms[room] > 0 {
		b.rooms[room]--
	}
}

func (b *fakeBus) On(event string, fn realtime.Handler) int {
	b.nextID++
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]realtime.Handler)
	}
	b.handlers[event][b.nextID] = fn
	return b.nextID
}

func (b *fakeBus) Off(event string, tokens ...int) {
	for _, token := range tokens {
		delete(b.handlers[event], token)
	}
}

func (b *fakeBus) emit(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	for _, fn := range b.handlers[event] {
		fn(raw)
	}
}

type recordingNotifier struct {
	notify.Discard
	infos []string
}

func (r *recordingNotifier) Info(message string) { r.infos = append(r.infos, message) }

func loadedStore(t *testing.T, api *fakeAPI, bus *fakeBus, feed ...Notification) *Store {
	t.Helper()
	if api.list == nil {
		api.list = func(context.Context, int) ([]Notification, error) { return feed, nil }
	}
	if api.unreadCount == nil {
		unread := 0
		for _, n := range feed {
			if !n.IsRead {
				unread++
			}
		}
		api.unreadCount = func(context.Context) (int, error) { return unread, nil }
	}
	opts := StoreOptions{API: api}
	if bus != nil {
		opts.Realtime = bus
	}
	s := NewStore(opts)
	require.NoError(t, s.Load(context.Background(), 50))
	return s
}

func TestLoadClampsNegativeUnread(t *testing.T) {
	api := &fakeAPI{
		list:        func(context.Context, int) ([]Notification, error) { return nil, nil },
		unreadCount: func(context.Context) (int, error) { return -3, nil },
	}
	s := NewStore(StoreOptions{API: api})

	require.NoError(t, s.Load(context.Background(), 50))
	require.Equal(t, 0, s.Unread())
}

func TestMarkReadDecrementsOnce(t *testing.T) {
	api := &fakeAPI{
		markRead: func(context.Context, string) error { return nil },
	}
	s := loadedStore(t, api, nil,
		Notification{ID: "n1", Message: "one", IsRead: false},
		Notification{ID: "n2", Message: "two", IsRead: false},
	)
	ctx := context.Background()

	require.NoError(t, s.MarkRead(ctx, "n1"))
	require.Equal(t, 1, s.Unread())

	// Acknowledging the same notification again is a no-op.
	require.NoError(t, s.MarkRead(ctx, "n1"))
	require.Equal(t, 1, s.Unread())
}

func TestMarkAllRead(t *testing.T) {
	api := &fakeAPI{
		markAllRead: func(context.Context) error { return nil },
	}
	s := loadedStore(t, api, nil,
		Notification{ID: "n1", IsRead: false},
		Notification{ID: "n2", IsRead: true},
	)

	require.NoError(t, s.MarkAllRead(context.Background()))
	require.Equal(t, 0, s.Unread())
	for _, n := range s.All() {
		require.True(t, n.IsRead)
	}
}

func TestPushedNotificationPrependsAndAnnounces(t *testing.T) {
	bus := newFakeBus("client-a")
	notifier := &recordingNotifier{}
	api := &fakeAPI{
		list:        func(context.Context, int) ([]Notification, error) { return nil, nil },
		unreadCount: func(context.Context) (int, error) { return 0, nil },
	}
	s := NewStore(StoreOptions{API: api, Realtime: bus, Notifier: notifier})
	require.NoError(t, s.Load(context.Background(), 50))
	s.Subscribe("alice")
	require.Equal(t, 1, bus.rooms[realtime.UserRoom("alice")])

	bus.emit(t, realtime.EventNotificationNew, Notification{
		ID: "n1", UserID: "alice", Type: KindMentioned,
		Message: "bob mentioned you", CreatedAt: time.Now(),
	})

	feed := s.All()
	require.Len(t, feed, 1)
	require.Equal(t, "n1", feed[0].ID)
	require.Equal(t, 1, s.Unread())
	require.Equal(t, []string{"bob mentioned you"}, notifier.infos)
}

func TestUnsubscribeLeavesUserRoom(t *testing.T) {
	bus := newFakeBus("client-a")
	s := loadedStore(t, &fakeAPI{}, bus)
	s.Subscribe("alice")

	s.Unsubscribe()
	require.Equal(t, 0, bus.rooms[realtime.UserRoom("alice")])
	require.Empty(t, bus.handlers[realtime.EventNotificationNew])
}
