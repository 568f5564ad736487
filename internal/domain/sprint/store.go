package sprint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/boardsync/boardsync/internal/notify"
)

var ErrNotFound = errors.New("sprint not found")

// API is the server surface the store mutates through.
type API interface {
	List(ctx context.Context, projectID string) ([]Sprint, error)
	Create(ctx context.Context, projectID string, input Input) (*Sprint, error)
	Update(ctx context.Context, projectID, sprintID string, input Input) (*Sprint, error)
	Start(ctx context.Context, projectID, sprintID string) (*Sprint, error)
	Close(ctx context.Context, projectID, sprintID string) (*Sprint, error)
	Delete(ctx context.Context, projectID, sprintID string) error
}

// Store caches sprints per project, fetched lazily.
type Store struct {
	api      API
	notifier notify.Notifier
	onChange func()

	mu     sync.RWMutex
	cached map[string][]Sprint
}

type StoreOptions struct {
	API      API
	Notifier notify.Notifier
	OnChange func()
}

func NewStore(opts StoreOptions) *Store {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Store{
		api:      opts.API,
		notifier: notifier,
		onChange: opts.OnChange,
		cached:   make(map[string][]Sprint),
	}
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// ByProject returns a project's sprints, fetching on first use. Pass
// force to bypass the cache.
func (s *Store) ByProject(ctx context.Context, projectID string, force bool) ([]Sprint, error) {
	if !force {
		s.mu.RLock()
		cached, ok := s.cached[projectID]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	sprints, err := s.api.List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load sprints: %w", err)
	}
	// Undated sprints sort last.
	sort.Slice(sprints, func(i, j int) bool {
		a, b := sprints[i].StartDate, sprints[j].StartDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	s.mu.Lock()
	s.cached[projectID] = sprints
	s.mu.Unlock()
	s.notifyChange()
	return sprints, nil
}

// Active returns the project's running sprint, if any.
func (s *Store) Active(projectID string) (Sprint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sp := range s.cached[projectID] {
		if sp.Status == StatusActive {
			return sp, true
		}
	}
	return Sprint{}, false
}

func (s *Store) Create(ctx context.Context, projectID string, input Input) (*Sprint, error) {
	created, err := s.api.Create(ctx, projectID, input)
	if err != nil {
		s.notifier.Error("Failed to create sprint")
		return nil, fmt.Errorf("create sprint: %w", err)
	}

	s.mu.Lock()
	if cached, ok := s.cached[projectID]; ok {
		s.cached[projectID] = append(cached, *created)
	}
	s.mu.Unlock()
	s.notifyChange()
	s.notifier.Success("Sprint created")
	return created, nil
}

func (s *Store) Update(ctx context.Context, projectID, sprintID string, input Input) error {
	updated, err := s.api.Update(ctx, projectID, sprintID, input)
	if err != nil {
		s.notifier.Error("Failed to update sprint")
		return fmt.Errorf("update sprint: %w", err)
	}
	s.replaceCached(projectID, *updated)
	return nil
}

// Start activates a sprint.
func (s *Store) Start(ctx context.Context, projectID, sprintID string) error {
	started, err := s.api.Start(ctx, projectID, sprintID)
	if err != nil {
		s.notifier.Error("Failed to start sprint")
		return fmt.Errorf("start sprint: %w", err)
	}
	s.replaceCached(projectID, *started)
	s.notifier.Success("Sprint started")
	return nil
}

// Close completes a sprint.
func (s *Store) Close(ctx context.Context, projectID, sprintID string) error {
	closed, err := s.api.Close(ctx, projectID, sprintID)
	if err != nil {
		s.notifier.Error("Failed to close sprint")
		return fmt.Errorf("close sprint: %w", err)
	}
	s.replaceCached(projectID, *closed)
	s.notifier.Success("Sprint closed")
	return nil
}

func (s *Store) Delete(ctx context.Context, projectID, sprintID string) error {
	if err := s.api.Delete(ctx, projectID, sprintID); err != nil {
		s.notifier.Error("Failed to delete sprint")
		return fmt.Errorf("delete sprint: %w", err)
	}

	s.mu.Lock()
	cached := s.cached[projectID]
	for i, sp := range cached {
		if sp.ID == sprintID {
			s.cached[projectID] = append(cached[:i], cached[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

func (s *Store) replaceCached(projectID string, updated Sprint) {
	s.mu.Lock()
	cached := s.cached[projectID]
	for i, sp := range cached {
		if sp.ID == updated.ID {
			cached[i] = updated
			break
		}
	}
	s.mu.Unlock()
	s.notifyChange()
}
