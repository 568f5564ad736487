package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/boardsync/boardsync/internal/notify"
	"github.com/boardsync/boardsync/internal/realtime"
	"github.com/boardsync/boardsync/internal/sched"
)

var ErrNotFound = errors.New("fund pool not found")

// API is the server surface the store mutates through.
type API interface {
	List(ctx context.Context) ([]FundPool, int, error)
	Executions(ctx context.Context, poolID string, limit int) ([]Execution, error)
	Create(ctx context.Context, input Input) (*FundPool, error)
	Update(ctx context.Context, id string, input Input) (json.RawMessage, error)
	Toggle(ctx context.Context, id string) (json.RawMessage, error)
	Delete(ctx context.Context, id string) error
	RecordExecution(ctx context.Context, id string) (json.RawMessage, error)
	EvaluateFlags(ctx context.Context, keys ...string) (map[string]bool, error)
}

// Realtime is the slice of the socket the store subscribes through.
type Realtime interface {
	ClientID() string
	JoinRoom(room string)
	LeaveRoom(room string)
	On(event string, fn realtime.Handler) int
	Off(event string, tokens ...int)
}

// Store holds the synchronized fund pool collection, per-pool execution
// history, and the executor feature flag.
type Store struct {
	api      API
	rt       Realtime
	flash    *sched.Flash
	notifier notify.Notifier
	logger   *slog.Logger
	onChange func()

	mu              sync.RWMutex
	pools           map[string]FundPool
	executions      map[string][]Execution
	executorEnabled bool
	subscribed      bool
	tokens          map[string][]int
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
		api:        opts.API,
		rt:         opts.Realtime,
		notifier:   notifier,
		logger:     logger,
		onChange:   opts.OnChange,
		pools:      make(map[string]FundPool),
		executions: make(map[string][]Execution),
		tokens:     make(map[string][]int),
	}
	s.flash = sched.NewFlash(opts.FlashWindow, s.notifyChange)
	return s
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Load replaces the pools and refreshes the executor flag. Execution
// history is dropped and refetched on demand.
func (s *Store) Load(ctx context.Context) error {
	pools, _, err := s.api.List(ctx)
	if err != nil {
		return fmt.Errorf("load fund pools: %w", err)
	}

	flags, err := s.api.EvaluateFlags(ctx, ExecutorFlagKey)
	if err != nil {
		// The flag defaults to off when evaluation fails; pools still load.
		s.logger.Warn("feature flag evaluation failed", "error", err)
		flags = map[string]bool{}
	}

	s.mu.Lock()
	s.pools = make(map[string]FundPool, len(pools))
	for _, p := range pools {
		s.pools[p.ID] = p
	}
	s.executions = make(map[string][]Execution)
	s.executorEnabled = flags[ExecutorFlagKey]
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

func (s *Store) Get(id string) (FundPool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[id]
	return p, ok
}

// All returns every pool sorted by name.
func (s *Store) All() []FundPool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FundPool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExecutorEnabled reports the executor feature flag as last evaluated.
func (s *Store) ExecutorEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executorEnabled
}

func (s *Store) Flashing(id string) bool { return s.flash.Active(id) }

// Executions returns a pool's history, newest first, fetching it on the
// first call and serving the cache afterwards.
func (s *Store) Executions(ctx context.Context, poolID string, limit int) ([]Execution, error) {
	s.mu.RLock()
	cached, ok := s.executions[poolID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	history, err := s.api.Executions(ctx, poolID, limit)
	if err != nil {
		return nil, fmt.Errorf("load executions: %w", err)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].ExecutedAt.After(history[j].ExecutedAt)
	})

	s.mu.Lock()
	s.executions[poolID] = history
	s.mu.Unlock()
	return history, nil
}

func (s *Store) Create(ctx context.Context, input Input) (*FundPool, error) {
	created, err := s.api.Create(ctx, input)
	if err != nil {
		s.notifier.Error("Failed to create fund pool")
		return nil, fmt.Errorf("create fund pool: %w", err)
	}

	s.mu.Lock()
	s.pools[created.ID] = *created
	s.mu.Unlock()
	s.notifyChange()
	s.notifier.Success("Fund pool created")
	return created, nil
}

func (s *Store) Update(ctx context.Context, id string, input Input) error {
	s.mu.RLock()
	_, ok := s.pools[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	raw, err := s.api.Update(ctx, id, input)
	if err != nil {
		s.notifier.Error("Failed to update fund pool")
		return fmt.Errorf("update fund pool: %w", err)
	}
	s.mergeConfirmed(id, raw)
	s.notifier.Success("Fund pool updated")
	return nil
}

// Toggle flips a pool's enabled state.
func (s *Store) Toggle(ctx context.Context, id string) error {
	raw, err := s.api.Toggle(ctx, id)
	if err != nil {
		s.notifier.Error("Failed to toggle fund pool")
		return fmt.Errorf("toggle fund pool: %w", err)
	}
	s.mergeConfirmed(id, raw)
	return nil
}

// RecordExecution logs a draw against the pool and merges the updated
// counters. The cached history is invalidated so the next read refetches.
func (s *Store) RecordExecution(ctx context.Context, id string) error {
	raw, err := s.api.RecordExecution(ctx, id)
	if err != nil {
		s.notifier.Error("Failed to record execution")
		return fmt.Errorf("record execution: %w", err)
	}
	s.mergeConfirmed(id, raw)

	s.mu.Lock()
	delete(s.executions, id)
	s.mu.Unlock()
	s.notifier.Success("Execution recorded")
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		s.notifier.Error("Failed to delete fund pool")
		return fmt.Errorf("delete fund pool: %w", err)
	}

	s.mu.Lock()
	delete(s.pools, id)
	delete(s.executions, id)
	s.mu.Unlock()
	s.notifyChange()
	s.notifier.Success("Fund pool deleted")
	return nil
}

func (s *Store) mergeConfirmed(id string, raw json.RawMessage) {
	s.mu.Lock()
	current, ok := s.pools[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	merged := current
	if err := json.Unmarshal(raw, &merged); err != nil {
		s.mu.Unlock()
		s.logger.Warn("undecodable pool response ignored", "pool_id", id, "error", err)
		return
	}
	s.pools[id] = merged
	s.mu.Unlock()
	s.notifyChange()
}

type eventPayload struct {
	OriginClientID string          `json:"originClientId"`
	FundPool       json.RawMessage `json:"fundPool,omitempty"`
	PoolID         string          `json:"poolId,omitempty"`
}

// Subscribe joins the fund pool and feature flag rooms.
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

	s.rt.JoinRoom(realtime.RoomFundPools)
	s.rt.JoinRoom(realtime.RoomFeatureFlags)

	token := s.rt.On(realtime.EventPoolUpdated, func(raw json.RawMessage) {
		var p eventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.Debug("undecodable pool event dropped", "error", err)
			return
		}
		if p.OriginClientID != "" && p.OriginClientID == s.rt.ClientID() {
			return
		}
		s.handleRemotePool(p)
	})
	flagToken := s.rt.On(realtime.EventFlagUpdated, func(raw json.RawMessage) {
		var update FlagUpdate
		if err := json.Unmarshal(raw, &update); err != nil {
			s.logger.Debug("undecodable flag event dropped", "error", err)
			return
		}
		s.handleFlagUpdate(update)
	})

	s.mu.Lock()
	s.tokens[realtime.EventPoolUpdated] = append(s.tokens[realtime.EventPoolUpdated], token)
	s.tokens[realtime.EventFlagUpdated] = append(s.tokens[realtime.EventFlagUpdated], flagToken)
	s.mu.Unlock()
}

// Unsubscribe leaves both rooms and removes the handlers.
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

	s.rt.LeaveRoom(realtime.RoomFundPools)
	s.rt.LeaveRoom(realtime.RoomFeatureFlags)
	for event, ids := range tokens {
		s.rt.Off(event, ids...)
	}
}

func (s *Store) handleRemotePool(p eventPayload) {
	var probe struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(p.FundPool, &probe); err != nil || probe.ID == "" {
		return
	}

	s.mu.Lock()
	merged := s.pools[probe.ID]
	if err := json.Unmarshal(p.FundPool, &merged); err != nil {
		s.mu.Unlock()
		return
	}
	s.pools[probe.ID] = merged
	delete(s.executions, probe.ID)
	s.mu.Unlock()

	s.flash.Trigger(probe.ID)
	s.notifyChange()
}

// handleFlagUpdate applies flag flips regardless of origin; flags are
// global switches, so even this client's own change must land.
func (s *Store) handleFlagUpdate(update FlagUpdate) {
	if update.Key != ExecutorFlagKey {
		return
	}
	s.mu.Lock()
	changed := s.executorEnabled != update.Enabled
	s.executorEnabled = update.Enabled
	s.mu.Unlock()
	if changed {
		s.notifyChange()
	}
}
