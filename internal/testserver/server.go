// Package testserver runs an in-process board backend: the admin REST API
// over SQLite plus the realtime websocket hub. Integration tests point
// real clients at it and exercise full sync flows.
package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/boardsync/boardsync/internal/api"
	"github.com/boardsync/boardsync/internal/domain/label"
	"github.com/boardsync/boardsync/internal/domain/member"
	"github.com/boardsync/boardsync/internal/domain/pool"
	"github.com/boardsync/boardsync/internal/domain/sprint"
	"github.com/boardsync/boardsync/internal/realtime"
	"github.com/boardsync/boardsync/internal/sqlite"
)

// QRLifetime is how long issued payment QR codes stay valid.
const QRLifetime = 2 * time.Minute

// Server is an in-process backend instance.
type Server struct {
	HTTP *httptest.Server
	DB   *sqlite.DB

	// BaseURL is the REST root clients use as their API base.
	BaseURL string
	// SocketURL is the websocket endpoint.
	SocketURL string

	hub *hub

	tasks         *sqlite.TaskRepository
	projects      *sqlite.ProjectRepository
	pools         *sqlite.PoolRepository
	orders        *sqlite.OrderRepository
	comments      *sqlite.CommentRepository
	notifications *sqlite.NotificationRepository

	mu         sync.Mutex
	flags      map[string]bool
	executions map[string][]pool.Execution
	sprints    map[string][]sprint.Sprint
	labels     map[string][]label.Label
	users      []member.Member
	qrOrders   map[string]string
}

// New starts a backend on an in-memory database, torn down with the test.
func New(t *testing.T) *Server {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	s := &Server{
		DB:            db,
		hub:           newHub(),
		tasks:         sqlite.NewTaskRepository(db),
		projects:      sqlite.NewProjectRepository(db),
		pools:         sqlite.NewPoolRepository(db),
		orders:        sqlite.NewOrderRepository(db),
		comments:      sqlite.NewCommentRepository(db),
		notifications: sqlite.NewNotificationRepository(db),
		flags:         map[string]bool{pool.ExecutorFlagKey: true},
		executions:    make(map[string][]pool.Execution),
		sprints:       make(map[string][]sprint.Sprint),
		labels:        make(map[string][]label.Label),
		qrOrders:      make(map[string]string),
	}

	router := mux.NewRouter()
	router.HandleFunc("/realtime", s.hub.handle)
	s.routes(router.PathPrefix("/admin").Subrouter())

	s.HTTP = httptest.NewServer(router)
	s.BaseURL = s.HTTP.URL + "/admin"
	s.SocketURL = "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + "/realtime"

	t.Cleanup(func() {
		s.HTTP.Close()
		_ = db.Close()
	})
	return s
}

// SeedUsers installs the team roster served by /users.
func (s *Server) SeedUsers(users ...member.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
}

// RoomMembers reports how many sockets have joined a room. Tests use it to
// wait for subscriptions before broadcasting.
func (s *Server) RoomMembers(room string) int {
	return s.hub.members(room)
}

// ConfirmPayment simulates the payment provider confirming a QR and pushes
// the confirmation to the user's room.
func (s *Server) ConfirmPayment(t *testing.T, userID, qrID string) {
	t.Helper()

	s.mu.Lock()
	orderID, ok := s.qrOrders[qrID]
	s.mu.Unlock()
	require.True(t, ok, "unknown qr %s", qrID)

	ctx := t.Context()
	order, err := s.orders.Get(ctx, orderID)
	require.NoError(t, err)
	order.Status = "confirmed"
	order.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.orders.Put(ctx, *order))

	s.hub.broadcast(realtime.UserRoom(userID), realtime.EventPaymentConfirmed, map[string]any{
		"orderId": orderID, "qrId": qrID,
		"amount": order.Amount, "currency": order.Currency,
	})
}

// ExpirePayment simulates provider-side QR expiry.
func (s *Server) ExpirePayment(t *testing.T, userID, qrID string) {
	t.Helper()

	s.mu.Lock()
	orderID, ok := s.qrOrders[qrID]
	s.mu.Unlock()
	require.True(t, ok, "unknown qr %s", qrID)

	s.hub.broadcast(realtime.UserRoom(userID), realtime.EventPaymentExpired, map[string]any{
		"orderId": orderID, "qrId": qrID,
	})
}

// PushNotification delivers a notification to one user, persisting it and
// pushing it to their room.
func (s *Server) PushNotification(t *testing.T, userID, message string) string {
	t.Helper()

	n := map[string]any{
		"_id":       uuid.NewString(),
		"userId":    userID,
		"type":      "generic",
		"message":   message,
		"isRead":    false,
		"createdAt": time.Now().UTC(),
	}
	raw, err := json.Marshal(n)
	require.NoError(t, err)

	var stored struct {
		ID string `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &stored))
	s.persistNotification(t, raw)

	s.hub.broadcast(realtime.UserRoom(userID), realtime.EventNotificationNew, json.RawMessage(raw))
	return stored.ID
}

func originClientID(r *http.Request) string {
	return r.Header.Get(api.ClientIDHeader)
}

// authUser resolves the acting user from the bearer token. The development
// server treats the token itself as the user id, so tests configure each
// client with its user's name as the token.
func authUser(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ")
}
