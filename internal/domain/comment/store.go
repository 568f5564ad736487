package comment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/boardsync/boardsync/internal/mention"
	"github.com/boardsync/boardsync/internal/notify"
)

var ErrNotFound = errors.New("comment not found")

// API is the server surface the store mutates through.
type API interface {
	ByTask(ctx context.Context, taskID string) ([]Comment, error)
	Create(ctx context.Context, taskID, content string) (*Comment, error)
	CreateWithAttachment(ctx context.Context, taskID, content, filename string, file io.Reader) (*Comment, error)
	Update(ctx context.Context, taskID, commentID, content string) (*Comment, error)
	Delete(ctx context.Context, taskID, commentID string) error
}

// Store caches comment threads per task, newest first.
type Store struct {
	api      API
	notifier notify.Notifier
	logger   *slog.Logger
	onChange func()

	mu      sync.RWMutex
	threads map[string][]Comment
}

type StoreOptions struct {
	API      API
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
		notifier: notifier,
		logger:   logger,
		onChange: opts.OnChange,
		threads:  make(map[string][]Comment),
	}
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Load replaces one task's thread with the server's listing.
func (s *Store) Load(ctx context.Context, taskID string) error {
	comments, err := s.api.ByTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})

	s.mu.Lock()
	s.threads[taskID] = comments
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// ByTask returns one task's loaded thread, newest first.
func (s *Store) ByTask(taskID string) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread := s.threads[taskID]
	out := make([]Comment, len(thread))
	copy(out, thread)
	return out
}

// Create posts a comment and prepends the confirmed record to the thread.
func (s *Store) Create(ctx context.Context, taskID, content string) (*Comment, error) {
	created, err := s.api.Create(ctx, taskID, content)
	if err != nil {
		s.notifier.Error("Failed to post comment")
		return nil, fmt.Errorf("create comment: %w", err)
	}
	s.prepend(taskID, *created)
	return created, nil
}

// CreateWithAttachment posts a comment with one uploaded file.
func (s *Store) CreateWithAttachment(ctx context.Context, taskID, content, filename string, file io.Reader) (*Comment, error) {
	created, err := s.api.CreateWithAttachment(ctx, taskID, content, filename, file)
	if err != nil {
		s.notifier.Error("Failed to post comment")
		return nil, fmt.Errorf("create comment: %w", err)
	}
	s.prepend(taskID, *created)
	return created, nil
}

func (s *Store) prepend(taskID string, c Comment) {
	s.mu.Lock()
	s.threads[taskID] = append([]Comment{c}, s.threads[taskID]...)
	s.mu.Unlock()
	s.notifyChange()
}

// Update edits a comment's content in place. Update responses come back
// without a populated author, so the cached author is kept.
func (s *Store) Update(ctx context.Context, taskID, commentID, content string) error {
	updated, err := s.api.Update(ctx, taskID, commentID, content)
	if err != nil {
		s.notifier.Error("Failed to update comment")
		return fmt.Errorf("update comment: %w", err)
	}

	s.mu.Lock()
	found := false
	thread := s.threads[taskID]
	for i, c := range thread {
		if c.ID != commentID {
			continue
		}
		merged := *updated
		if merged.User == nil {
			merged.User = c.User
		}
		thread[i] = merged
		found = true
		break
	}
	s.mu.Unlock()

	if !found {
		return ErrNotFound
	}
	s.notifyChange()
	return nil
}

// Delete removes a comment from the server and the cached thread.
func (s *Store) Delete(ctx context.Context, taskID, commentID string) error {
	if err := s.api.Delete(ctx, taskID, commentID); err != nil {
		s.notifier.Error("Failed to delete comment")
		return fmt.Errorf("delete comment: %w", err)
	}

	s.mu.Lock()
	thread := s.threads[taskID]
	for i, c := range thread {
		if c.ID == commentID {
			s.threads[taskID] = append(thread[:i], thread[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// MentionTargets resolves which users a comment should notify.
func MentionTargets(content string, members []mention.TeamMember, authorID string) []string {
	return mention.ExtractMentionedUserIDs(content, members, authorID)
}
