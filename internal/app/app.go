// Package app wires the API client, the realtime socket, and the entity
// stores into one session-scoped container.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/boardsync/boardsync/internal/api"
	"github.com/boardsync/boardsync/internal/config"
	"github.com/boardsync/boardsync/internal/domain/comment"
	"github.com/boardsync/boardsync/internal/domain/label"
	"github.com/boardsync/boardsync/internal/domain/member"
	"github.com/boardsync/boardsync/internal/domain/notification"
	"github.com/boardsync/boardsync/internal/domain/payment"
	"github.com/boardsync/boardsync/internal/domain/pool"
	"github.com/boardsync/boardsync/internal/domain/project"
	"github.com/boardsync/boardsync/internal/domain/sprint"
	"github.com/boardsync/boardsync/internal/domain/task"
	"github.com/boardsync/boardsync/internal/notify"
	"github.com/boardsync/boardsync/internal/realtime"
)

// App is the connected session: one API client and one socket sharing a
// client identity, and the stores built over them.
type App struct {
	Client *api.Client
	Socket *realtime.Socket

	Tasks         *task.Store
	Projects      *project.Store
	Pools         *pool.Store
	Payments      *payment.Store
	Comments      *comment.Store
	Notifications *notification.Store
	Sprints       *sprint.Store
	Labels        *label.Store
	Members       *member.Store

	username string
	logger   *slog.Logger
}

// Options configures an App.
type Options struct {
	Config   config.Config
	Logger   *slog.Logger
	Notifier notify.Notifier
	// OnChange fires after any store changes state.
	OnChange func()
	// OnUnauthorized fires when the server rejects the session token.
	OnUnauthorized func()
}

// New builds a disconnected App. The socket's client identity is shared
// with the API client so the server can echo it on broadcast events and
// this session can recognize its own mutations.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	cfg := opts.Config

	socket := realtime.New(realtime.Options{
		URL:      cfg.API.SocketURL,
		Token:    cfg.API.Token,
		Username: cfg.API.Username,
		Logger:   logger.With("component", "realtime"),
	})

	client := api.New(api.Options{
		BaseURL:        cfg.API.BaseURL,
		Token:          cfg.API.Token,
		ClientID:       socket.ClientID(),
		Timeout:        cfg.API.RequestTimeout,
		Logger:         logger.With("component", "api"),
		OnUnauthorized: opts.OnUnauthorized,
	})

	a := &App{
		Client:   client,
		Socket:   socket,
		username: cfg.API.Username,
		logger:   logger,
	}

	a.Tasks = task.NewStore(task.StoreOptions{
		API: client.Tasks(), Realtime: socket,
		Notifier: notifier, Logger: logger.With("store", "tasks"), OnChange: opts.OnChange,
	})
	a.Projects = project.NewStore(project.StoreOptions{
		API: client.Projects(), Realtime: socket,
		Notifier: notifier, Logger: logger.With("store", "projects"), OnChange: opts.OnChange,
	})
	a.Pools = pool.NewStore(pool.StoreOptions{
		API: client.Pools(), Realtime: socket,
		Notifier: notifier, Logger: logger.With("store", "pools"), OnChange: opts.OnChange,
	})
	a.Payments = payment.NewStore(payment.StoreOptions{
		Orders: client.Orders(), Payments: client.Payments(), Realtime: socket,
		Notifier: notifier, Logger: logger.With("store", "payments"), OnChange: opts.OnChange,
	})
	a.Comments = comment.NewStore(comment.StoreOptions{
		API: client.Comments(), Notifier: notifier,
		Logger: logger.With("store", "comments"), OnChange: opts.OnChange,
	})
	a.Notifications = notification.NewStore(notification.StoreOptions{
		API: client.Notifications(), Realtime: socket,
		Notifier: notifier, Logger: logger.With("store", "notifications"), OnChange: opts.OnChange,
	})
	a.Sprints = sprint.NewStore(sprint.StoreOptions{
		API: client.Sprints(), Notifier: notifier, OnChange: opts.OnChange,
	})
	a.Labels = label.NewStore(label.StoreOptions{
		API: client.Labels(), Notifier: notifier, OnChange: opts.OnChange,
	})
	a.Members = member.NewStore(client.Team())

	return a
}

// Connect opens the socket and subscribes the session-wide stores. Task
// subscriptions are per project and follow project selection separately.
func (a *App) Connect(ctx context.Context) error {
	if err := a.Socket.Connect(ctx); err != nil {
		return fmt.Errorf("connect realtime: %w", err)
	}
	a.Projects.Subscribe()
	a.Pools.Subscribe()
	a.Payments.Subscribe(a.username)
	a.Notifications.Subscribe(a.username)
	return nil
}

// Bootstrap loads the data every session needs up front.
func (a *App) Bootstrap(ctx context.Context) error {
	if err := a.Projects.Load(ctx); err != nil {
		return err
	}
	if err := a.Tasks.Load(ctx); err != nil {
		return err
	}
	if err := a.Members.Load(ctx); err != nil {
		return err
	}
	if err := a.Pools.Load(ctx); err != nil {
		a.logger.Warn("fund pools unavailable", "error", err)
	}
	if err := a.Notifications.Load(ctx, 50); err != nil {
		a.logger.Warn("notifications unavailable", "error", err)
	}
	return nil
}

// SelectProject points the task store at one project's room and data.
func (a *App) SelectProject(ctx context.Context, projectID string) error {
	a.Tasks.Subscribe(projectID)
	return a.Tasks.LoadByProject(ctx, projectID)
}

// Reset tears the session down: every subscription is dropped and the
// socket closed. The App can be reconnected afterwards.
func (a *App) Reset() error {
	a.Tasks.Unsubscribe()
	a.Projects.Unsubscribe()
	a.Pools.Unsubscribe()
	a.Payments.Unsubscribe()
	a.Notifications.Unsubscribe()
	return a.Socket.Disconnect()
}
