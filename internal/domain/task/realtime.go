package task

import (
	"encoding/json"

	"github.com/boardsync/boardsync/internal/realtime"
)

// eventPayload is the wire shape of every task room event. Exactly one of
// Task, TaskID, or TaskOrders is populated depending on the event.
type eventPayload struct {
	OriginClientID string          `json:"originClientId"`
	Task           json.RawMessage `json:"task,omitempty"`
	TaskID         string          `json:"taskId,omitempty"`
	TaskOrders     []OrderPatch    `json:"taskOrders,omitempty"`
}

// Subscribe joins the project's room and starts reconciling remote task
// events into the store. Events carrying this client's own origin id are
// echoes of confirmed local mutations and are ignored. Subscribing to a
// second project leaves the first room.
func (s *Store) Subscribe(projectID string) {
	if s.rt == nil {
		return
	}

	s.Unsubscribe()

	room := realtime.ProjectRoom(projectID)
	s.rt.JoinRoom(room)

	s.mu.Lock()
	s.subscribedRoom = room
	s.mu.Unlock()

	s.on(realtime.EventTaskCreated, s.handleRemoteUpsert)
	s.on(realtime.EventTaskUpdated, s.handleRemoteUpsert)
	s.on(realtime.EventTaskMoved, s.handleRemoteUpsert)
	s.on(realtime.EventTaskDeleted, s.handleRemoteDelete)
	s.on(realtime.EventTaskReordered, s.handleRemoteReorder)
}

// Unsubscribe leaves the current room and removes the handlers. Safe to
// call when not subscribed.
func (s *Store) Unsubscribe() {
	if s.rt == nil {
		return
	}

	s.mu.Lock()
	room := s.subscribedRoom
	tokens := s.tokens
	s.subscribedRoom = ""
	s.tokens = make(map[string][]int)
	s.mu.Unlock()

	if room == "" {
		return
	}
	s.rt.LeaveRoom(room)
	for event, ids := range tokens {
		s.rt.Off(event, ids...)
	}
}

func (s *Store) on(event string, fn func(eventPayload)) {
	token := s.rt.On(event, func(raw json.RawMessage) {
		var p eventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.Debug("undecodable task event dropped", "event", event, "error", err)
			return
		}
		if p.OriginClientID != "" && p.OriginClientID == s.rt.ClientID() {
			return
		}
		fn(p)
	})

	s.mu.Lock()
	s.tokens[event] = append(s.tokens[event], token)
	s.mu.Unlock()
}

// handleRemoteUpsert merges the event's task over local state, inserting
// it when unseen, and flashes it as remotely changed.
func (s *Store) handleRemoteUpsert(p eventPayload) {
	var probe struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(p.Task, &probe); err != nil || probe.ID == "" {
		s.logger.Debug("task event without id dropped")
		return
	}

	s.mu.Lock()
	merged := s.tasks[probe.ID]
	if err := json.Unmarshal(p.Task, &merged); err != nil {
		s.mu.Unlock()
		s.logger.Debug("undecodable remote task dropped", "task_id", probe.ID, "error", err)
		return
	}
	s.tasks[probe.ID] = merged
	s.mu.Unlock()

	s.flash.Trigger(probe.ID)
	s.notifyChange()
}

func (s *Store) handleRemoteDelete(p eventPayload) {
	if p.TaskID == "" {
		return
	}
	s.mu.Lock()
	_, existed := s.tasks[p.TaskID]
	delete(s.tasks, p.TaskID)
	delete(s.pendingReorder, p.TaskID)
	s.mu.Unlock()
	if existed {
		s.notifyChange()
	}
}

// handleRemoteReorder applies another client's confirmed order patches.
// Patches for unknown tasks are skipped; the next load reconciles them.
func (s *Store) handleRemoteReorder(p eventPayload) {
	if len(p.TaskOrders) == 0 {
		return
	}
	s.mu.Lock()
	changed := false
	for _, patch := range p.TaskOrders {
		t, ok := s.tasks[patch.TaskID]
		if !ok || t.Order == patch.Order {
			continue
		}
		t.Order = patch.Order
		s.tasks[patch.TaskID] = t
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.notifyChange()
	}
}
