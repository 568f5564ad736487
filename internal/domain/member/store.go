package member

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/boardsync/boardsync/internal/mention"
)

// API is the server surface the store reads through.
type API interface {
	Members(ctx context.Context) ([]Member, error)
	ProjectMembers(ctx context.Context, projectID string) ([]Member, error)
}

// Store caches the team roster. The roster changes rarely; Load refreshes
// it on demand.
type Store struct {
	api API

	mu      sync.RWMutex
	members map[string]Member
}

func NewStore(api API) *Store {
	return &Store{api: api, members: make(map[string]Member)}
}

// Load replaces the roster with the server's full member list.
func (s *Store) Load(ctx context.Context) error {
	members, err := s.api.Members(ctx)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}

	s.mu.Lock()
	s.members = make(map[string]Member, len(members))
	for _, m := range members {
		s.members[m.ID] = m
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(id string) (Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	return m, ok
}

// All returns the roster sorted by name.
func (s *Store) All() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Active returns the active members sorted by name.
func (s *Store) Active() []Member {
	var out []Member
	for _, m := range s.All() {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}

// MentionRoster projects the roster into the shape mention targeting
// expects.
func (s *Store) MentionRoster() []mention.TeamMember {
	var roster []mention.TeamMember
	for _, m := range s.All() {
		roster = append(roster, mention.TeamMember{ID: m.ID, IsActive: m.IsActive})
	}
	return roster
}

// ProjectMembers returns one project's roster without caching it.
func (s *Store) ProjectMembers(ctx context.Context, projectID string) ([]Member, error) {
	members, err := s.api.ProjectMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project members: %w", err)
	}
	return members, nil
}
