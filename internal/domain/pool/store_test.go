package pool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boardsync/boardsync/internal/realtime"
)

type fakeAPI struct {
	list            func(ctx context.Context) ([]FundPool, int, error)
	executions      func(ctx context.Context, poolID string, limit int) ([]Execution, error)
	create          func(ctx context.Context, input Input) (*FundPool, error)
	update          func(ctx context.Context, id string, input Input) (json.RawMessage, error)
	toggle          func(ctx context.Context, id string) (json.RawMessage, error)
	remove          func(ctx context.Context, id string) error
	recordExecution func(ctx context.Context, id string) (json.RawMessage, error)
	evaluateFlags   func(ctx context.Context, keys ...string) (map[string]bool, error)
}

func (f *fakeAPI) List(ctx context.Context) ([]FundPool, int, error) { return f.list(ctx) }
func (f *fakeAPI) Executions(ctx context.Context, poolID string, limit int) ([]Execution, error) {
	return f.executions(ctx, poolID, limit)
}
func (f *fakeAPI) Create(ctx context.Context, input Input) (*FundPool, error) {
	return f.create(ctx, input)
}
func (f *fakeAPI) Update(ctx context.Context, id string, input Input) (json.RawMessage, error) {
	return f.update(ctx, id, input)
}
func (f *fakeAPI) Toggle(ctx context.Context, id string) (json.RawMessage, error) {
	return f.toggle(ctx, id)
}
func (f *fakeAPI) Delete(ctx context.Context, id string) error { return f.remove(ctx, id) }
func (f *fakeAPI) RecordExecution(ctx context.Context, id string) (json.RawMessage, error) {
	return f.recordExecution(ctx, id)
}
func (f *fakeAPI) EvaluateFlags(ctx context.Context, keys ...string) (map[string]bool, error) {
	return f.evaluateFlags(ctx, keys...)
}

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

func seededStore(t *testing.T, api *fakeAPI, bus *fakeBus, pools ...FundPool) *Store {
	t.Helper()
	if api.list == nil {
		api.list = func(context.Context) ([]FundPool, int, error) { return pools, len(pools), nil }
	}
	if api.evaluateFlags == nil {
		api.evaluateFlags = func(context.Context, ...string) (map[string]bool, error) {
			return map[string]bool{ExecutorFlagKey: true}, nil
		}
	}
	opts := StoreOptions{API: api}
	if bus != nil {
		opts.Realtime = bus
	}
	s := NewStore(opts)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestLoadFlagFailureDisablesExecutor(t *testing.T) {
	api := &fakeAPI{
		list: func(context.Context) ([]FundPool, int, error) {
			return []FundPool{{ID: "p1", Name: "Ops"}}, 1, nil
		},
		evaluateFlags: func(context.Context, ...string) (map[string]bool, error) {
			return nil, errors.New("flags down")
		},
	}
	s := NewStore(StoreOptions{API: api})

	require.NoError(t, s.Load(context.Background()))
	require.False(t, s.ExecutorEnabled())
	require.Len(t, s.All(), 1)
}

func TestToggleMergePreservesOmittedFields(t *testing.T) {
	api := &fakeAPI{
		toggle: func(_ context.Context, id string) (json.RawMessage, error) {
			return json.RawMessage(`{"_id":"p1","enabled":false}`), nil
		},
	}
	s := seededStore(t, api, nil, FundPool{
		ID: "p1", Name: "Ops", Description: "keep me", Amount: 500, Currency: "USD", Enabled: true,
	})

	require.NoError(t, s.Toggle(context.Background(), "p1"))

	got, ok := s.Get("p1")
	require.True(t, ok)
	require.False(t, got.Enabled)
	require.Equal(t, "keep me", got.Description)
	require.Equal(t, 500.0, got.Amount)
}

func TestRecordExecutionInvalidatesHistory(t *testing.T) {
	fetches := 0
	api := &fakeAPI{
		executions: func(_ context.Context, poolID string, _ int) ([]Execution, error) {
			fetches++
			return []Execution{{ID: "e1", PoolID: poolID}}, nil
		},
		recordExecution: func(_ context.Context, id string) (json.RawMessage, error) {
			return json.RawMessage(`{"_id":"p1","executionCount":4}`), nil
		},
	}
	s := seededStore(t, api, nil, FundPool{ID: "p1", Name: "Ops", ExecutionCount: 3})
	ctx := context.Background()

	_, err := s.Executions(ctx, "p1", 10)
	require.NoError(t, err)
	_, err = s.Executions(ctx, "p1", 10)
	require.NoError(t, err)
	require.Equal(t, 1, fetches, "second read should hit the cache")

	require.NoError(t, s.RecordExecution(ctx, "p1"))
	got, ok := s.Get("p1")
	require.True(t, ok)
	require.Equal(t, 4, got.ExecutionCount)

	_, err = s.Executions(ctx, "p1", 10)
	require.NoError(t, err)
	require.Equal(t, 2, fetches, "history refetches after an execution")
}

func TestRemotePoolEventSelfSuppressed(t *testing.T) {
	bus := newFakeBus("client-a")
	s := seededStore(t, &fakeAPI{}, bus, FundPool{ID: "p1", Name: "Ops", Amount: 500})
	s.Subscribe()

	bus.emit(t, realtime.EventPoolUpdated, map[string]any{
		"originClientId": "client-a",
		"fundPool":       map[string]any{"_id": "p1", "amount": 900},
	})
	got, _ := s.Get("p1")
	require.Equal(t, 500.0, got.Amount)

	bus.emit(t, realtime.EventPoolUpdated, map[string]any{
		"originClientId": "client-b",
		"fundPool":       map[string]any{"_id": "p1", "amount": 900},
	})
	got, _ = s.Get("p1")
	require.Equal(t, 900.0, got.Amount)
	require.True(t, s.Flashing("p1"))
}

func TestFlagEventAppliedRegardlessOfOrigin(t *testing.T) {
	bus := newFakeBus("client-a")
	s := seededStore(t, &fakeAPI{}, bus)
	s.Subscribe()
	require.True(t, s.ExecutorEnabled())

	bus.emit(t, realtime.EventFlagUpdated, FlagUpdate{Key: ExecutorFlagKey, Enabled: false})
	require.False(t, s.ExecutorEnabled())

	// Other keys are ignored.
	bus.emit(t, realtime.EventFlagUpdated, FlagUpdate{Key: "dark-mode", Enabled: true})
	require.False(t, s.ExecutorEnabled())
}

func TestSubscribeIdempotent(t *testing.T) {
	bus := newFakeBus("client-a")
	s := seededStore(t, &fakeAPI{}, bus)

	s.Subscribe()
	s.Subscribe()
	require.Equal(t, 1, bus.rooms[realtime.RoomFundPools])
	require.Equal(t, 1, bus.rooms[realtime.RoomFeatureFlags])

	s.Unsubscribe()
	require.Equal(t, 0, bus.rooms[realtime.RoomFundPools])
	require.Empty(t, bus.handlers[realtime.EventPoolUpdated])
	require.Empty(t, bus.handlers[realtime.EventFlagUpdated])
}

func TestAllSortedByName(t *testing.T) {
	now := time.Now()
	s := seededStore(t, &fakeAPI{}, nil,
		FundPool{ID: "p2", Name: "Zeta", CreatedAt: now},
		FundPool{ID: "p1", Name: "Alpha", CreatedAt: now},
	)
	all := s.All()
	require.Equal(t, []string{"Alpha", "Zeta"}, []string{all[0].Name, all[1].Name})
}
