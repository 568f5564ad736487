package task

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
	my           func(ctx context.Context) ([]Task, error)
	byProject    func(ctx context.Context, projectID string) ([]Task, error)
	get          func(ctx context.Context, id string) (*Task, error)
	create       func(ctx context.Context, projectID string, in CreateInput) (*Task, error)
	update       func(ctx context.Context, id string, in UpdateInput) (json.RawMessage, error)
	updateStatus func(ctx context.Context, id string, status Status) (json.RawMessage, error)
	remove       func(ctx context.Context, id string) error
	reorder      func(ctx context.Context, projectID string, patches []OrderPatch) error
}

func (f *fakeAPI) My(ctx context.Context) ([]Task, error) { return f.my(ctx) }
func (f *fakeAPI) ByProject(ctx context.Context, projectID string) ([]Task, error) {
	return f.byProject(ctx, projectID)
}
func (f *fakeAPI) Get(ctx context.Context, id string) (*Task, error) { return f.get(ctx, id) }
func (f *fakeAPI) Create(ctx context.Context, projectID string, in CreateInput) (*Task, error) {
	return f.create(ctx, projectID, in)
}
func (f *fakeAPI) Update(ctx context.Context, id string, in UpdateInput) (json.RawMessage, error) {
	return f.update(ctx, id, in)
}
func (f *fakeAPI) UpdateStatus(ctx context.Context, id string, status Status) (json.RawMessage, error) {
	return f.updateStatus(ctx, id, status)
}
func (f *fakeAPI) Delete(ctx context.Context, id string) error { return f.remove(ctx, id) }
func (f *fakeAPI) Reorder(ctx context.Context, projectID string, patches []OrderPatch) error {
	return f.reorder(ctx, projectID, patches)
}

// fakeBus is an in-process stand-in for the realtime socket.
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

func seededStore(t *testing.T, api *fakeAPI, bus *fakeBus, tasks ...Task) *Store {
	t.Helper()
	if api.my == nil {
		api.my = func(context.Context) ([]Task, error) { return tasks, nil }
	}
	opts := StoreOptions{API: api}
	if bus != nil {
		opts.Realtime = bus
	}
	s := NewStore(opts)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func strPtr(v string) *string { return &v }

func TestUpdateMergePreservesOmittedFields(t *testing.T) {
	api := &fakeAPI{
		update: func(_ context.Context, id string, _ UpdateInput) (json.RawMessage, error) {
			return json.RawMessage(`{"_id":"t1","title":"renamed"}`), nil
		},
	}
	s := seededStore(t, api, nil, Task{
		ID: "t1", Title: "old", Description: "keep me",
		Status: StatusTodo, Priority: PriorityHigh, Order: 3,
		AssigneeID: strPtr("u9"),
	})

	require.NoError(t, s.Update(context.Background(), "t1", UpdateInput{Title: strPtr("renamed")}))

	got, ok := s.Get("t1")
	require.True(t, ok)
	require.Equal(t, "renamed", got.Title)
	require.Equal(t, "keep me", got.Description)
	require.Equal(t, PriorityHigh, got.Priority)
	require.Equal(t, 3, got.Order)
	require.Equal(t, "u9", *got.AssigneeID)
}

func TestUpdateAbsentTaskIsNotFound(t *testing.T) {
	called := false
	api := &fakeAPI{
		update: func(context.Context, string, UpdateInput) (json.RawMessage, error) {
			called = true
			return nil, nil
		},
	}
	s := seededStore(t, api, nil)

	err := s.Update(context.Background(), "missing", UpdateInput{})
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, called, "no server call for an absent task")
}

func TestUpdateDoesNotResurrectConcurrentlyDeletedTask(t *testing.T) {
	var s *Store
	api := &fakeAPI{
		update: func(_ context.Context, id string, _ UpdateInput) (json.RawMessage, error) {
			// A remote delete lands while the update is in flight.
			s.handleRemoteDelete(eventPayload{TaskID: id})
			return json.RawMessage(`{"_id":"t1","title":"renamed"}`), nil
		},
	}
	s = seededStore(t, api, nil, Task{ID: "t1", Title: "old", Status: StatusTodo})

	require.NoError(t, s.Update(context.Background(), "t1", UpdateInput{Title: strPtr("renamed")}))
	_, ok := s.Get("t1")
	require.False(t, ok, "the delete wins over the stale update response")
}

func TestCreateInsertsOnlyConfirmedRecord(t *testing.T) {
	api := &fakeAPI{
		create: func(_ context.Context, projectID string, in CreateInput) (*Task, error) {
			return &Task{ID: "server-id", Title: in.Title, ProjectID: projectID, Status: StatusTodo, Order: 1}, nil
		},
	}
	s := seededStore(t, api, nil)

	created, err := s.Create(context.Background(), "p1", CreateInput{Title: "new"})
	require.NoError(t, err)
	require.Equal(t, "server-id", created.ID)

	got, ok := s.Get("server-id")
	require.True(t, ok)
	require.Equal(t, "p1", got.ProjectID)
}

func TestCreateFailureLeavesStoreUntouched(t *testing.T) {
	api := &fakeAPI{
		create: func(context.Context, string, CreateInput) (*Task, error) {
			return nil, errors.New("boom")
		},
	}
	s := seededStore(t, api, nil)

	_, err := s.Create(context.Background(), "p1", CreateInput{Title: "new"})
	require.Error(t, err)
	require.Empty(t, s.All())
}

func TestReorderSendsOnlyChangedEntries(t *testing.T) {
	var sent []OrderPatch
	api := &fakeAPI{
		reorder: func(_ context.Context, _ string, patches []OrderPatch) error {
			sent = patches
			return nil
		},
	}
	s := seededStore(t, api, nil,
		Task{ID: "a", ProjectID: "p1", Status: StatusTodo, Order: 1},
		Task{ID: "b", ProjectID: "p1", Status: StatusTodo, Order: 2},
		Task{ID: "c", ProjectID: "p1", Status: StatusTodo, Order: 3},
	)

	// Moving c to the front shifts every rank: c->1, a->2, b->3.
	require.NoError(t, s.Reorder(context.Background(), "p1", []string{"c", "a", "b"}))
	require.ElementsMatch(t, []OrderPatch{
		{TaskID: "c", Order: 1}, {TaskID: "a", Order: 2}, {TaskID: "b", Order: 3},
	}, sent)

	// Re-submitting the current sequence plans to nothing.
	sent = nil
	require.NoError(t, s.Reorder(context.Background(), "p1", []string{"c", "a", "b"}))
	require.Nil(t, sent)

	column := s.ByStatus(StatusTodo, "p1")
	require.Equal(t, []string{"c", "a", "b"}, []string{column[0].ID, column[1].ID, column[2].ID})
}

func TestReorderSwapTouchesOnlySwappedPair(t *testing.T) {
	var sent []OrderPatch
	api := &fakeAPI{
		reorder: func(_ context.Context, _ string, patches []OrderPatch) error {
			sent = patches
			return nil
		},
	}
	s := seededStore(t, api, nil,
		Task{ID: "a", ProjectID: "p1", Status: StatusTodo, Order: 1},
		Task{ID: "b", ProjectID: "p1", Status: StatusTodo, Order: 2},
		Task{ID: "c", ProjectID: "p1", Status: StatusTodo, Order: 3},
		Task{ID: "d", ProjectID: "p1", Status: StatusTodo, Order: 4},
	)

	require.NoError(t, s.Reorder(context.Background(), "p1", []string{"a", "c", "b", "d"}))
	require.ElementsMatch(t, []OrderPatch{
		{TaskID: "c", Order: 2}, {TaskID: "b", Order: 3},
	}, sent)
}

func TestReorderRejectionKeepsOptimisticStateAndPendingMark(t *testing.T) {
	api := &fakeAPI{
		reorder: func(context.Context, string, []OrderPatch) error {
			return errors.New("rejected")
		},
	}
	s := seededStore(t, api, nil,
		Task{ID: "a", ProjectID: "p1", Status: StatusTodo, Order: 1},
		Task{ID: "b", ProjectID: "p1", Status: StatusTodo, Order: 2},
	)

	err := s.Reorder(context.Background(), "p1", []string{"b", "a"})
	require.Error(t, err)

	// No rollback: the optimistic order stands, marked unacknowledged.
	column := s.ByStatus(StatusTodo, "p1")
	require.Equal(t, "b", column[0].ID)
	require.True(t, s.PendingReorder("a"))
	require.True(t, s.PendingReorder("b"))

	// A reload reconciles with the server and clears the marks.
	api.my = func(context.Context) ([]Task, error) {
		return []Task{
			{ID: "a", ProjectID: "p1", Status: StatusTodo, Order: 1},
			{ID: "b", ProjectID: "p1", Status: StatusTodo, Order: 2},
		}, nil
	}
	require.NoError(t, s.Load(context.Background()))
	require.False(t, s.PendingReorder("a"))
	require.Equal(t, "a", s.ByStatus(StatusTodo, "p1")[0].ID)
}

func TestSelfEventsAreSuppressed(t *testing.T) {
	bus := newFakeBus("me")
	s := seededStore(t, &fakeAPI{}, bus, Task{ID: "t1", Title: "local", Status: StatusTodo})
	s.Subscribe("p1")

	bus.emit(t, realtime.EventTaskUpdated, map[string]any{
		"originClientId": "me",
		"task":           map[string]any{"_id": "t1", "title": "echo"},
	})

	got, _ := s.Get("t1")
	require.Equal(t, "local", got.Title)
	require.False(t, s.Flashing("t1"))
}

func TestRemoteUpdateMergesAndFlashes(t *testing.T) {
	bus := newFakeBus("me")
	s := seededStore(t, &fakeAPI{}, bus,
		Task{ID: "t1", Title: "old", Description: "keep", Status: StatusTodo})
	s.Subscribe("p1")

	bus.emit(t, realtime.EventTaskUpdated, map[string]any{
		"originClientId": "them",
		"task":           map[string]any{"_id": "t1", "title": "remote"},
	})

	got, _ := s.Get("t1")
	require.Equal(t, "remote", got.Title)
	require.Equal(t, "keep", got.Description)
	require.True(t, s.Flashing("t1"))
}

func TestRemoteCreateInsertsUnseenTask(t *testing.T) {
	bus := newFakeBus("me")
	s := seededStore(t, &fakeAPI{}, bus)
	s.Subscribe("p1")

	bus.emit(t, realtime.EventTaskCreated, map[string]any{
		"originClientId": "them",
		"task": map[string]any{
			"_id": "t9", "title": "from peer", "status": "todo", "projectId": "p1",
		},
	})

	got, ok := s.Get("t9")
	require.True(t, ok)
	require.Equal(t, "from peer", got.Title)
}

func TestRemoteDeleteRemovesTask(t *testing.T) {
	bus := newFakeBus("me")
	s := seededStore(t, &fakeAPI{}, bus, Task{ID: "t1", Status: StatusTodo})
	s.Subscribe("p1")

	bus.emit(t, realtime.EventTaskDeleted, map[string]any{
		"originClientId": "them",
		"taskId":         "t1",
	})

	_, ok := s.Get("t1")
	require.False(t, ok)
}

func TestRemoteReorderAppliesPatches(t *testing.T) {
	bus := newFakeBus("me")
	s := seededStore(t, &fakeAPI{}, bus,
		Task{ID: "a", ProjectID: "p1", Status: StatusTodo, Order: 1},
		Task{ID: "b", ProjectID: "p1", Status: StatusTodo, Order: 2},
	)
	s.Subscribe("p1")

	bus.emit(t, realtime.EventTaskReordered, map[string]any{
		"originClientId": "them",
		"taskOrders": []map[string]any{
			{"taskId": "b", "order": 1}, {"taskId": "a", "order": 2},
		},
	})

	column := s.ByStatus(StatusTodo, "p1")
	require.Equal(t, "b", column[0].ID)
}

func TestSubscribeSwitchingProjectsLeavesOldRoom(t *testing.T) {
	bus := newFakeBus("me")
	s := seededStore(t, &fakeAPI{}, bus)

	s.Subscribe("p1")
	require.Equal(t, 1, bus.rooms[realtime.ProjectRoom("p1")])

	s.Subscribe("p2")
	require.Equal(t, 0, bus.rooms[realtime.ProjectRoom("p1")])
	require.Equal(t, 1, bus.rooms[realtime.ProjectRoom("p2")])

	s.Unsubscribe()
	require.Equal(t, 0, bus.rooms[realtime.ProjectRoom("p2")])
	for _, handlers := range bus.handlers {
		require.Empty(t, handlers)
	}
}

func TestFlashClearsAfterWindow(t *testing.T) {
	bus := newFakeBus("me")
	api := &fakeAPI{my: func(context.Context) ([]Task, error) {
		return []Task{{ID: "t1", Status: StatusTodo}}, nil
	}}
	s := NewStore(StoreOptions{API: api, Realtime: bus, FlashWindow: 30 * time.Millisecond})
	require.NoError(t, s.Load(context.Background()))
	s.Subscribe("p1")

	bus.emit(t, realtime.EventTaskUpdated, map[string]any{
		"originClientId": "them",
		"task":           map[string]any{"_id": "t1", "title": "x"},
	})
	require.True(t, s.Flashing("t1"))
	require.Eventually(t, func() bool {
		return !s.Flashing("t1")
	}, time.Second, 5*time.Millisecond)
}

func TestFilteredAndByStatus(t *testing.T) {
	s := seededStore(t, &fakeAPI{}, nil,
		Task{ID: "a", Title: "Fix login bug", ProjectID: "p1", Status: StatusTodo, Priority: PriorityHigh, Order: 2},
		Task{ID: "b", Title: "Write docs", ProjectID: "p1", Status: StatusTodo, Priority: PriorityLow, Order: 1},
		Task{ID: "c", Title: "Login page polish", ProjectID: "p2", Status: StatusDone, Priority: PriorityHigh, ParentID: strPtr("a")},
	)

	require.Len(t, s.Filtered(Filters{ProjectID: "p1"}), 2)
	require.Len(t, s.Filtered(Filters{Priority: PriorityHigh}), 2)
	require.Len(t, s.Filtered(Filters{Search: "login"}), 2)
	require.Len(t, s.Filtered(Filters{Parent: ParentSubtasksOnly}), 1)
	require.Len(t, s.Filtered(Filters{Parent: ParentTopLevel}), 2)
	parentsOnly := s.Filtered(Filters{Parent: ParentParentsOnly})
	require.Len(t, parentsOnly, 1)
	require.Equal(t, "a", parentsOnly[0].ID)

	column := s.ByStatus(StatusTodo, "p1")
	require.Equal(t, []string{"b", "a"}, []string{column[0].ID, column[1].ID})
}

func TestToggleFlipsDoneAndBack(t *testing.T) {
	var lastStatus Status
	api := &fakeAPI{
		updateStatus: func(_ context.Context, id string, status Status) (json.RawMessage, error) {
			lastStatus = status
			raw, _ := json.Marshal(map[string]any{"_id": id, "status": status})
			return raw, nil
		},
	}
	s := seededStore(t, api, nil, Task{ID: "t1", Status: StatusTodo})

	require.NoError(t, s.Toggle(context.Background(), "t1"))
	require.Equal(t, StatusDone, lastStatus)

	require.NoError(t, s.Toggle(context.Background(), "t1"))
	require.Equal(t, StatusTodo, lastStatus)
}
