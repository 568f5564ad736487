package testserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type frame struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

type outMessage struct {
	Event   string          `json:"event"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// hub tracks websocket members per room and broadcasts room events.
type hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]map[string]struct{}
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]map[string]struct{})}
}

func (h *hub) handle(w http.ResponseWriter, r *http.Request) {
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
		case "join":
			h.conns[conn][f.Room] = struct{}{}
		case "leave":
			delete(h.conns[conn], f.Room)
		}
		h.mu.Unlock()
	}
}

// broadcast sends an event to every member of the room. Encoding failures
// are silent; test payloads are always encodable.
func (h *hub) broadcast(room, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := outMessage{Event: event, Room: room, Payload: raw}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, rooms := range h.conns {
		if _, ok := rooms[room]; ok {
			_ = conn.WriteJSON(msg)
		}
	}
}

// members reports how many connections have joined the room.
func (h *hub) members(room string) int {
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
