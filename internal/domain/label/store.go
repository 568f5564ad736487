package label

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/boardsync/boardsync/internal/notify"
)

var ErrNotFound = errors.New("label not found")

// API is the server surface the store mutates through.
type API interface {
	List(ctx context.Context, projectID string) ([]Label, error)
	Create(ctx context.Context, projectID string, input Input) (*Label, error)
	Update(ctx context.Context, projectID, labelID string, input Input) (*Label, error)
	Delete(ctx context.Context, projectID, labelID string) error
}

// Store caches labels per project, fetched lazily.
type Store struct {
	api      API
	notifier notify.Notifier
	onChange func()

	mu     sync.RWMutex
	cached map[string][]Label
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
		cached:   make(map[string][]Label),
	}
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// ByProject returns a project's labels sorted by name, fetching on first
// use. Pass force to bypass the cache.
func (s *Store) ByProject(ctx context.Context, projectID string, force bool) ([]Label, error) {
	if !force {
		s.mu.RLock()
		cached, ok := s.cached[projectID]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	labels, err := s.api.List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

	s.mu.Lock()
	s.cached[projectID] = labels
	s.mu.Unlock()
	s.notifyChange()
	return labels, nil
}

func (s *Store) Create(ctx context.Context, projectID string, input Input) (*Label, error) {
	created, err := s.api.Create(ctx, projectID, input)
	if err != nil {
		s.notifier.Error("Failed to create label")
		return nil, fmt.Errorf("create label: %w", err)
	}

	s.mu.Lock()
	if cached, ok := s.cached[projectID]; ok {
		cached = append(cached, *created)
		sort.Slice(cached, func(i, j int) bool { return cached[i].Name < cached[j].Name })
		s.cached[projectID] = cached
	}
	s.mu.Unlock()
	s.notifyChange()
	return created, nil
}

func (s *Store) Update(ctx context.Context, projectID, labelID string, input Input) error {
	updated, err := s.api.Update(ctx, projectID, labelID, input)
	if err != nil {
		s.notifier.Error("Failed to update label")
		return fmt.Errorf("update label: %w", err)
	}

	s.mu.Lock()
	cached := s.cached[projectID]
	for i, l := range cached {
		if l.ID == labelID {
			cached[i] = *updated
			break
		}
	}
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

func (s *Store) Delete(ctx context.Context, projectID, labelID string) error {
	if err := s.api.Delete(ctx, projectID, labelID); err != nil {
		s.notifier.Error("Failed to delete label")
		return fmt.Errorf("delete label: %w", err)
	}

	s.mu.Lock()
	cached := s.cached[projectID]
	for i, l := range cached {
		if l.ID == labelID {
			s.cached[projectID] = append(cached[:i], cached[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notifyChange()
	return nil
}
