package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boardsync/boardsync/internal/notify"
	"github.com/boardsync/boardsync/internal/realtime"
	"github.com/boardsync/boardsync/internal/sched"
)

// API is the server surface the store mutates through. Mutations return
// the server's task JSON so the store can merge it over local state
// without clobbering fields the response omits.
type API interface {
	My(ctx context.Context) ([]Task, error)
	ByProject(ctx context.Context, projectID string) ([]Task, error)
	Get(ctx context.Context, id string) (*Task, error)
	Create(ctx context.Context, projectID string, in CreateInput) (*Task, error)
	Update(ctx context.Context, id string, in UpdateInput) (json.RawMessage, error)
	UpdateStatus(ctx context.Context, id string, status Status) (json.RawMessage, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, projectID string, patches []OrderPatch) error
}

// Realtime is the slice of the socket the store subscribes through.
type Realtime interface {
	ClientID() string
	JoinRoom(room string)
	LeaveRoom(room string)
	On(event string, fn realtime.Handler) int
	Off(event string, tokens ...int)
}

// Store holds the synchronized task collection for the session. Local
// state changes only after the server confirms a mutation; remote changes
// arrive through the realtime subscription and are suppressed when they
// originated from this client.
type Store struct {
	api      API
	rt       Realtime
	flash    *sched.Flash
	notifier notify.Notifier
	logger   *slog.Logger
	onChange func()

	mu             sync.RWMutex
	tasks          map[string]Task
	pendingReorder map[string]struct{}
	subscribedRoom string
	tokens         map[string][]int
}

// StoreOptions configures a Store. API is required; nil Realtime disables
// live reconciliation.
type StoreOptions struct {
	API      API
	Realtime Realtime
	// FlashWindow overrides the highlight window. Zero uses the default.
	FlashWindow time.Duration
	Notifier    notify.Notifier
	Logger      *slog.Logger
	// OnChange fires after every state change, local or remote.
	OnChange func()
}

// NewStore creates an empty store.
func NewStore(opts StoreOptions) *Store {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{
		api:            opts.API,
		rt:             opts.Realtime,
		notifier:       notifier,
		logger:         logger,
		onChange:       opts.OnChange,
		tasks:          make(map[string]Task),
		pendingReorder: make(map[string]struct{}),
		tokens:         make(map[string][]int),
	}
	s.flash = sched.NewFlash(opts.FlashWindow, s.notifyChange)
	return s
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Load replaces the store with the caller's own tasks.
func (s *Store) Load(ctx context.Context) error {
	tasks, err := s.api.My(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	s.replace(tasks)
	return nil
}

// LoadByProject replaces the store with one project's tasks.
func (s *Store) LoadByProject(ctx context.Context, projectID string) error {
	tasks, err := s.api.ByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project tasks: %w", err)
	}
	s.replace(tasks)
	return nil
}

func (s *Store) replace(tasks []Task) {
	s.mu.Lock()
	s.tasks = make(map[string]Task, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	s.pendingReorder = make(map[string]struct{})
	s.mu.Unlock()
	s.notifyChange()
}

// Get returns a task by id.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// All returns every task, unordered.
func (s *Store) All() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

// Filtered returns the tasks matching f, unordered.
func (s *Store) Filtered(f Filters) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// The parent_only filter needs to know which tasks have subtasks.
	parents := make(map[string]struct{})
	if f.Parent == ParentParentsOnly {
		for _, t := range s.tasks {
			if t.ParentID != nil {
				parents[*t.ParentID] = struct{}{}
			}
		}
	}

	var out []Task
	for _, t := range s.tasks {
		if !matches(t, f) {
			continue
		}
		if f.Parent == ParentParentsOnly {
			if _, ok := parents[t.ID]; !ok {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func matches(t Task, f Filters) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	if f.AssigneeID != "" && (t.AssigneeID == nil || *t.AssigneeID != f.AssigneeID) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	switch f.Parent {
	case ParentTopLevel, ParentParentsOnly:
		if t.ParentID != nil {
			return false
		}
	case ParentSubtasksOnly:
		if t.ParentID == nil {
			return false
		}
	}
	return true
}

// ByStatus returns one column's tasks sorted by Order, then id for
// stability when orders collide.
func (s *Store) ByStatus(status Status, projectID string) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, t := range s.tasks {
		if t.Status == status && (projectID == "" || t.ProjectID == projectID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Flashing reports whether id is highlighted from a recent remote change.
func (s *Store) Flashing(id string) bool { return s.flash.Active(id) }

// PendingReorder reports whether id carries an order the server has not
// acknowledged.
func (s *Store) PendingReorder(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pendingReorder[id]
	return ok
}

// Create sends the task to the server and inserts the confirmed record.
func (s *Store) Create(ctx context.Context, projectID string, in CreateInput) (*Task, error) {
	created, err := s.api.Create(ctx, projectID, in)
	if err != nil {
		s.notifier.Error("Failed to create task")
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.mu.Lock()
	s.tasks[created.ID] = *created
	s.mu.Unlock()
	s.notifyChange()
	s.notifier.Success("Task created")
	return created, nil
}

// Update sends changed fields to the server and merges the response over
// local state. The merge keeps fields the response omits, and the task's
// presence is re-checked after the round trip because a concurrent delete
// may have removed it.
func (s *Store) Update(ctx context.Context, id string, in UpdateInput) error {
	s.mu.RLock()
	_, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	raw, err := s.api.Update(ctx, id, in)
	if err != nil {
		s.notifier.Error("Failed to update task")
		return fmt.Errorf("update task: %w", err)
	}
	if s.mergeConfirmed(id, raw) {
		s.notifier.Success("Task updated")
	}
	return nil
}

// Move changes a task's status (its board column) and merges the response.
func (s *Store) Move(ctx context.Context, id string, status Status) error {
	s.mu.RLock()
	_, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	raw, err := s.api.UpdateStatus(ctx, id, status)
	if err != nil {
		s.notifier.Error("Failed to move task")
		return fmt.Errorf("move task: %w", err)
	}
	s.mergeConfirmed(id, raw)
	return nil
}

// Toggle flips a task between done and todo.
func (s *Store) Toggle(ctx context.Context, id string) error {
	s.mu.RLock()
	current, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	next := StatusDone
	if current.Status == StatusDone {
		next = StatusTodo
	}
	return s.Move(ctx, id, next)
}

// mergeConfirmed applies a server response to the stored task. It reports
// whether the task was still present after the await.
func (s *Store) mergeConfirmed(id string, raw json.RawMessage) bool {
	s.mu.Lock()
	current, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	merged := current
	if err := json.Unmarshal(raw, &merged); err != nil {
		s.mu.Unlock()
		s.logger.Warn("undecodable task response ignored", "task_id", id, "error", err)
		return true
	}
	s.tasks[id] = merged
	s.mu.Unlock()
	s.notifyChange()
	return true
}

// Delete removes the task on the server, then locally.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		s.notifier.Error("Failed to delete task")
		return fmt.Errorf("delete task: %w", err)
	}

	s.mu.Lock()
	delete(s.tasks, id)
	delete(s.pendingReorder, id)
	s.mu.Unlock()
	s.notifyChange()
	s.notifier.Success("Task deleted")
	return nil
}

// Reorder realizes the desired id sequence for one column. The new orders
// apply locally before the server call; on rejection local state is kept
// and the affected tasks stay marked PendingReorder until a reload or a
// later successful reorder.
func (s *Store) Reorder(ctx context.Context, projectID string, orderedIDs []string) error {
	s.mu.Lock()
	desired := make([]Task, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		t, ok := s.tasks[id]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("reorder: %w: %s", ErrNotFound, id)
		}
		desired = append(desired, t)
	}
	patches, err := PlanColumnOrder(desired)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if len(patches) == 0 {
		s.mu.Unlock()
		return nil
	}
	for _, p := range patches {
		t := s.tasks[p.TaskID]
		t.Order = p.Order
		s.tasks[p.TaskID] = t
		s.pendingReorder[p.TaskID] = struct{}{}
	}
	s.mu.Unlock()
	s.notifyChange()

	if err := s.api.Reorder(ctx, projectID, patches); err != nil {
		s.notifier.Error("Failed to save task order")
		return fmt.Errorf("reorder tasks: %w", err)
	}

	s.mu.Lock()
	for _, p := range patches {
		delete(s.pendingReorder, p.TaskID)
	}
	s.mu.Unlock()
	s.notifyChange()
	return nil
}
