package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// wsHarness is a minimal room-aware websocket endpoint for exercising the
// client against a real connection.
type wsHarness struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]map[string]struct{}
}

func newWSHarness(t *testing.T) *wsHarness {
	t.Helper()
	h := &wsHarness{conns: make(map[*websocket.Conn]map[string]struct{})}
	h.server = httptest.NewServer(http.HandlerFunc(h.handle))
	t.Cleanup(h.server.Close)
	return h
}

func (h *wsHarness) url() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http")
}

func (h *wsHarness) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.conns[conn] = make(map[string]struct{})
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		h.mu.Lock()
		switch f.Action {
		case actionJoin:
			h.conns[conn][f.Room] = struct{}{}
		case actionLeave:
			delete(h.conns[conn], f.Room)
		}
		h.mu.Unlock()
	}
}

func (h *wsHarness) broadcast(room, event string, payload any) {
	raw, _ := json.Marshal(payload)
	msg := message{Event: event, Room: room, Payload: raw}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, rooms := range h.conns {
		if _, ok := rooms[room]; ok {
			_ = conn.WriteJSON(msg)
		}
	}
}

func (h *wsHarness) memberCount(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, rooms := range h.conns {
		if _, ok := rooms[room]; ok {
			n++
		}
	}
	return n
}

func connectedSocket(t *testing.T, h *wsHarness) *Socket {
	t.Helper()
	s := New(Options{URL: h.url()})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() { _ = s.Disconnect() })
	return s
}

func TestSocketClientIDStable(t *testing.T) {
	s := New(Options{URL: "ws://unused"})
	require.NotEmpty(t, s.ClientID())
	require.Equal(t, s.ClientID(), s.ClientID())

	other := New(Options{URL: "ws://unused"})
	require.NotEqual(t, s.ClientID(), other.ClientID())
}

func TestSocketReceivesRoomEvent(t *testing.T) {
	h := newWSHarness(t)
	s := connectedSocket(t, h)

	var mu sync.Mutex
	var got []string
	s.On(EventTaskUpdated, func(payload json.RawMessage) {
		mu.Lock()
		got = append(got, string(payload))
		mu.Unlock()
	})

	s.JoinRoom(ProjectRoom("p1"))
	require.Eventually(t, func() bool {
		return h.memberCount(ProjectRoom("p1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.broadcast(ProjectRoom("p1"), EventTaskUpdated, map[string]string{"_id": "t1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.JSONEq(t, `{"_id":"t1"}`, got[0])
}

func TestSocketPreservesEventOrder(t *testing.T) {
	h := newWSHarness(t)
	s := connectedSocket(t, h)

	var mu sync.Mutex
	var order []int
	s.On(EventTaskReordered, func(payload json.RawMessage) {
		var p struct {
			Seq int `json:"seq"`
		}
		require.NoError(t, json.Unmarshal(payload, &p))
		mu.Lock()
		order = append(order, p.Seq)
		mu.Unlock()
	})

	s.JoinRoom(ProjectRoom("p1"))
	require.Eventually(t, func() bool {
		return h.memberCount(ProjectRoom("p1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 20; i++ {
		h.broadcast(ProjectRoom("p1"), EventTaskReordered, map[string]int{"seq": i})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 20
	}, 2*time.Second, 10*time.Millisecond)

	for i, seq := range order {
		require.Equal(t, i, seq)
	}
}

func TestSocketLeaveRoomStopsDelivery(t *testing.T) {
	h := newWSHarness(t)
	s := connectedSocket(t, h)

	s.JoinRoom(RoomFundPools)
	require.Eventually(t, func() bool {
		return h.memberCount(RoomFundPools) == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.LeaveRoom(RoomFundPools)
	require.Eventually(t, func() bool {
		return h.memberCount(RoomFundPools) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSocketOffRemovesHandler(t *testing.T) {
	h := newWSHarness(t)
	s := connectedSocket(t, h)

	var mu sync.Mutex
	firstCalls, secondCalls := 0, 0
	token := s.On(EventPoolUpdated, func(json.RawMessage) {
		mu.Lock()
		firstCalls++
		mu.Unlock()
	})
	s.On(EventPoolUpdated, func(json.RawMessage) {
		mu.Lock()
		secondCalls++
		mu.Unlock()
	})
	s.Off(EventPoolUpdated, token)

	s.JoinRoom(RoomFundPools)
	require.Eventually(t, func() bool {
		return h.memberCount(RoomFundPools) == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.broadcast(RoomFundPools, EventPoolUpdated, map[string]string{"_id": "fp1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return secondCalls == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Zero(t, firstCalls)
}

func TestSocketDisconnectClearsState(t *testing.T) {
	h := newWSHarness(t)
	s := connectedSocket(t, h)

	s.JoinRoom(RoomProjects)
	s.On(EventProjectUpdated, func(json.RawMessage) {})

	require.NoError(t, s.Disconnect())
	require.False(t, s.Connected())
	// Disconnect is idempotent.
	require.NoError(t, s.Disconnect())
}
