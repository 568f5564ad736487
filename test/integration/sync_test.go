package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boardsync/boardsync/internal/app"
	"github.com/boardsync/boardsync/internal/config"
	"github.com/boardsync/boardsync/internal/domain/member"
	"github.com/boardsync/boardsync/internal/domain/payment"
	"github.com/boardsync/boardsync/internal/domain/pool"
	"github.com/boardsync/boardsync/internal/domain/project"
	"github.com/boardsync/boardsync/internal/domain/task"
	"github.com/boardsync/boardsync/internal/realtime"
	"github.com/boardsync/boardsync/internal/testserver"
)

const (
	waitFor = 3 * time.Second
	tick    = 20 * time.Millisecond
)

// newSession connects a full client stack against the test server. The
// bearer token doubles as the user id.
func newSession(t *testing.T, srv *testserver.Server, username string) *app.App {
	t.Helper()
	a := app.New(app.Options{
		Config: config.Config{
			API: config.APIConfig{
				BaseURL:        srv.BaseURL,
				SocketURL:      srv.SocketURL,
				Token:          username,
				Username:       username,
				RequestTimeout: 5 * time.Second,
			},
		},
	})
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { _ = a.Reset() })
	return a
}

// waitRoom blocks until the given number of connections joined a room, so a
// broadcast cannot race ahead of a subscription.
func waitRoom(t *testing.T, srv *testserver.Server, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return srv.RoomMembers(room) >= n
	}, waitFor, tick, "room %s never reached %d members", room, n)
}

func seedProject(t *testing.T, a *app.App) project.Project {
	t.Helper()
	p, err := a.Projects.Create(context.Background(), "wp1", project.Input{Name: "Sync"})
	require.NoError(t, err)
	return *p
}

func TestSync_TaskCreatePropagates(t *testing.T) {
	ctx := context.Background()
	srv := testserver.New(t)
	alice := newSession(t, srv, "alice")
	bob := newSession(t, srv, "bob")

	proj := seedProject(t, alice)
	require.NoError(t, alice.SelectProject(ctx, proj.ID))
	require.NoError(t, bob.SelectProject(ctx, proj.ID))
	waitRoom(t, srv, realtime.ProjectRoom(proj.ID), 2)

	created, err := alice.Tasks.Create(ctx, proj.ID, task.CreateInput{Title: "Ship it"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok := bob.Tasks.Get(created.ID)
		return ok && got.Title == "Ship it"
	}, waitFor, tick)

	// Bob learned about the task from a broadcast, so it flashes for him.
	require.True(t, bob.Tasks.Flashing(created.ID))

	// Alice originated the mutation; the echoed event must not flash or
	// duplicate on her side.
	require.Never(t, func() bool {
		return alice.Tasks.Flashing(created.ID)
	}, 200*time.Millisecond, tick)
	require.Len(t, alice.Tasks.Filtered(task.Filters{ProjectID: proj.ID}), 1)
}

func TestSync_MovePropagates(t *testing.T) {
	ctx := context.Background()
	srv := testserver.New(t)
	alice := newSession(t, srv, "alice")
	bob := newSession(t, srv, "bob")

	proj := seedProject(t, alice)
	require.NoError(t, alice.SelectProject(ctx, proj.ID))
	require.NoError(t, bob.SelectProject(ctx, proj.ID))
	waitRoom(t, srv, realtime.ProjectRoom(proj.ID), 2)

	created, err := alice.Tasks.Create(ctx, proj.ID, task.CreateInput{Title: "Review me"})
	require.NoError(t, err)
	require.NoError(t, alice.Tasks.Move(ctx, created.ID, task.StatusInReview))

	require.Eventually(t, func() bool {
		got, ok := bob.Tasks.Get(created.ID)
		return ok && got.Status == task.StatusInReview
	}, waitFor, tick)
}

func TestSync_ReorderPropagates(t *testing.T) {
	ctx := context.Background()
	srv := testserver.New(t)
	alice := newSession(t, srv, "alice")
	bob := newSession(t, srv, "bob")

	proj := seedProject(t, alice)
	require.NoError(t, alice.SelectProject(ctx, proj.ID))
	require.NoError(t, bob.SelectProject(ctx, proj.ID))
	waitRoom(t, srv, realtime.ProjectRoom(proj.ID), 2)

	ids := make([]string, 0, 3)
	for _, title := range []string{"first", "second", "third"} {
		created, err := alice.Tasks.Create(ctx, proj.ID, task.CreateInput{Title: title})
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	require.Eventually(t, func() bool {
		return len(bob.Tasks.ByStatus(task.StatusTodo, proj.ID)) == 3
	}, waitFor, tick)

	// Move "third" to the front.
	require.NoError(t, alice.Tasks.Reorder(ctx, proj.ID, []string{ids[2], ids[0], ids[1]}))
	for _, id := range ids {
		require.False(t, alice.Tasks.PendingReorder(id))
	}

	require.Eventually(t, func() bool {
		column := bob.Tasks.ByStatus(task.StatusTodo, proj.ID)
		return len(column) == 3 && column[0].ID == ids[2] && column[1].ID == ids[0] && column[2].ID == ids[1]
	}, waitFor, tick)
}

func TestSync_PaymentConfirmation(t *testing.T) {
	ctx := context.Background()
	srv := testserver.New(t)
	alice := newSession(t, srv, "alice")
	waitRoom(t, srv, realtime.UserRoom("alice"), 1)

	result, err := alice.Payments.CreateSampleOrder(ctx)
	require.NoError(t, err)

	qr, status, remaining := alice.Payments.ActiveQR()
	require.NotNil(t, qr)
	require.Equal(t, payment.QRPending, status)
	require.Greater(t, remaining, time.Duration(0))

	srv.ConfirmPayment(t, "alice", result.QRID)

	require.Eventually(t, func() bool {
		_, status, _ := alice.Payments.ActiveQR()
		return status == payment.QRPaid
	}, waitFor, tick)

	order, ok := alice.Payments.Get(result.Order.ID)
	require.True(t, ok)
	require.Equal(t, payment.OrderConfirmed, order.Status)

	// A late expiry for the same QR must not undo the confirmation.
	srv.ExpirePayment(t, "alice", result.QRID)
	require.Never(t, func() bool {
		_, status, _ := alice.Payments.ActiveQR()
		return status == payment.QRExpired
	}, 200*time.Millisecond, tick)
}

func TestSync_NotificationPush(t *testing.T) {
	srv := testserver.New(t)
	bob := newSession(t, srv, "bob")
	waitRoom(t, srv, realtime.UserRoom("bob"), 1)

	srv.PushNotification(t, "bob", "alice mentioned you")

	require.Eventually(t, func() bool {
		feed := bob.Notifications.All()
		return len(feed) == 1 && feed[0].Message == "alice mentioned you"
	}, waitFor, tick)
	require.Equal(t, 1, bob.Notifications.Unread())
}

func TestSync_FeatureFlagFlip(t *testing.T) {
	ctx := context.Background()
	srv := testserver.New(t)
	alice := newSession(t, srv, "alice")
	waitRoom(t, srv, realtime.RoomFeatureFlags, 1)

	require.NoError(t, alice.Pools.Load(ctx))
	require.True(t, alice.Pools.ExecutorEnabled())

	srv.SetFlag(pool.ExecutorFlagKey, false)

	require.Eventually(t, func() bool {
		return !alice.Pools.ExecutorEnabled()
	}, waitFor, tick)
}

func TestSync_Bootstrap(t *testing.T) {
	ctx := context.Background()
	srv := testserver.New(t)
	srv.SeedUsers(
		member.Member{ID: "alice", Name: "Alice", IsActive: true},
		member.Member{ID: "bob", Name: "Bob", IsActive: true},
	)
	alice := newSession(t, srv, "alice")
	seedProject(t, alice)

	require.NoError(t, alice.Bootstrap(ctx))
	require.Len(t, alice.Projects.All(), 1)
	require.Len(t, alice.Members.All(), 2)
}
