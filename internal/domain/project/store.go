package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/boardsync/boardsync/internal/notify"
	"github.com/boardsync/boardsync/internal/realtime"
	"github.com/boardsync/boardsync/internal/sched"
)

// API is the server surface the store mutates through.
type API interface {
	List(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id string) (*Project, error)
	Create(ctx context.Context, workplaceID string, input Input) (*Project, error)
	Update(ctx context.Context, id string, input Input) (json.RawMessage, error)
	Delete(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) (json.RawMessage, error)
	Activate(ctx context.Context, id string) (json.RawMessage, error)
}

// Realtime is the slice of the socket the store subscribes through.
type Realtime interface {
	ClientID() string
	JoinRoom(room string)
	LeaveRoom(room string)
	On(event string, fn realtime.Handler) int
	Off(event string, tokens ...int)
}

// Store holds the synchronized project collection.
type Store struct {
	api      API
	rt       Realtime
	flash    *sched.Flash
	notifier notify.Notifier
	logger   *slog.Logger
	onChange func()

	mu         sync.RWMutex
	projects   map[string]Project
	subscribed bool
	tokens     map[string][]int
}

type StoreOptions struct {
	API         API
	Realtime    Realtime
	FlashWindow time.Duration
	Notifier    notify.Notifier
	Logger      *slog.Logger
	OnChange    func()
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
	s := &Store{
		api:      opts.API,
		rt:       opts.Realtime,
		notifier: notifier,
		logger:   logger,
		onChange: opts.OnChange,
		projects: make(map[string]Project),
		tokens:   make(map[string][]int),
	}
	s.flash = sched.NewFlash(opts.FlashWindow, s.notifyChange)
	return s
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Load replaces the store with the server's project list.
func (s *Store) Load(ctx context.Context) error {
	projects, err := s.api.List(ctx)
	if err != nil {
		return fmt.Errorf("load projects: %w", err)
	}

	s.mu.Lock()
	s.projects = make(map[string]Project, len(projects))
	for _, p := range projects {
		s.projects[p.ID] = p
	}
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

func (s *Store) Get(id string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p, ok
}

// All returns every project sorted by name.
func (s *Store) All() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Active returns the non-archived projects sorted by name.
func (s *Store) Active() []Project {
	var out []Project
	for _, p := range s.All() {
		if p.Status == StatusActive {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) Flashing(id string) bool { return s.flash.Active(id) }

func (s *Store) Create(ctx context.Context, workplaceID string, input Input) (*Project, error) {
	created, err := s.api.Create(ctx, workplaceID, input)
	if err != nil {
		s.notifier.Error("Failed to create project")
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.mu.Lock()
	s.projects[created.ID] = *created
	s.mu.Unlock()
	s.notifyChange()
	s.notifier.Success("Project created")
	return created, nil
}

func (s *Store) Update(ctx context.Context, id string, input Input) error {
	s.mu.RLock()
	_, ok := s.projects[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	raw, err := s.api.Update(ctx, id, input)
	if err != nil {
		s.notifier.Error("Failed to update project")
		return fmt.Errorf("update project: %w", err)
	}
	s.mergeConfirmed(id, raw)
	s.notifier.Success("Project updated")
	return nil
}

// Archive moves the project to the archived status.
func (s *Store) Archive(ctx context.Context, id string) error {
	raw, err := s.api.Archive(ctx, id)
	if err != nil {
		s.notifier.Error("Failed to archive project")
		return fmt.Errorf("archive project: %w", err)
	}
	s.mergeConfirmed(id, raw)
	s.notifier.Success("Project archived")
	return nil
}

// Activate restores an archived project.
func (s *Store) Activate(ctx context.Context, id string) error {
	raw, err := s.api.Activate(ctx, id)
	if err != nil {
		s.notifier.Error("Failed to activate project")
		return fmt.Errorf("activate project: %w", err)
	}
	s.mergeConfirmed(id, raw)
	s.notifier.Success("Project activated")
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		s.notifier.Error("Failed to delete project")
		return fmt.Errorf("delete project: %w", err)
	}

	s.mu.Lock()
	delete(s.projects, id)
	s.mu.Unlock()
	s.notifyChange()
	s.notifier.Success("Project deleted")
	return nil
}

func (s *Store) mergeConfirmed(id string, raw json.RawMessage) {
	s.mu.Lock()
	current, ok := s.projects[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	merged := current
	if err := json.Unmarshal(raw, &merged); err != nil {
		s.mu.Unlock()
		s.logger.Warn("undecodable project response ignored", "project_id", id, "error", err)
		return
	}
	s.projects[id] = merged
	s.mu.Unlock()
	s.notifyChange()
}

type eventPayload struct {
	OriginClientID string          `json:"originClientId"`
	Project        json.RawMessage `json:"project,omitempty"`
	ProjectID      string          `json:"projectId,omitempty"`
}

// Subscribe joins the shared projects room and reconciles remote changes.
func (s *Store) Subscribe() {
	if s.rt == nil {
		return
	}

	s.mu.Lock()
	if s.subscribed {
		s.mu.Unlock()
		return
	}
	s.subscribed = true
	s.mu.Unlock()

	s.rt.JoinRoom(realtime.RoomProjects)
	s.on(realtime.EventProjectCreated, s.handleRemoteUpsert)
	s.on(realtime.EventProjectUpdated, s.handleRemoteUpsert)
	s.on(realtime.EventProjectDeleted, s.handleRemoteDelete)
}

// Unsubscribe leaves the projects room and removes the handlers.
func (s *Store) Unsubscribe() {
	if s.rt == nil {
		return
	}

	s.mu.Lock()
	if !s.subscribed {
		s.mu.Unlock()
		return
	}
	s.subscribed = false
	tokens := s.tokens
	s.tokens = make(map[string][]int)
	s.mu.Unlock()

	s.rt.LeaveRoom(realtime.RoomProjects)
	for event, ids := range tokens {
		s.rt.Off(event, ids...)
	}
}

func (s *Store) on(event string, fn func(eventPayload)) {
	token := s.rt.On(event, func(raw json.RawMessage) {
		var p eventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.Debug("undecodable project event dropped", "event", event, "error", err)
			return
		}
		if p.OriginClientID != "" && p.OriginClientID == s.rt.ClientID() {
			return
		}
		fn(p)
	})

	s.mu.Lock()
	s.tokens[event] = append(s.tokens[event], token)
	s.mu.Unlock()
}

func (s *Store) handleRemoteUpsert(p eventPayload) {
	var probe struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(p.Project, &probe); err != nil || probe.ID == "" {
		return
	}

	s.mu.Lock()
	merged := s.projects[probe.ID]
	if err := json.Unmarshal(p.Project, &merged); err != nil {
		s.mu.Unlock()
		return
	}
	s.projects[probe.ID] = merged
	s.mu.Unlock()

	s.flash.Trigger(probe.ID)
	s.notifyChange()
}

func (s *Store) handleRemoteDelete(p eventPayload) {
	if p.ProjectID == "" {
		return
	}
	s.mu.Lock()
	_, existed := s.projects[p.ProjectID]
	delete(s.projects, p.ProjectID)
	s.mu.Unlock()
	if existed {
		s.notifyChange()
	}
}
