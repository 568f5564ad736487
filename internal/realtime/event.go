package realtime

import "encoding/json"

// Event names delivered over room subscriptions.
const (
	EventTaskCreated   = "task:created"
	EventTaskUpdated   = "task:updated"
	EventTaskDeleted   = "task:deleted"
	EventTaskMoved     = "task:moved"
	EventTaskReordered = "task:reordered"

	EventProjectCreated = "project:created"
	EventProjectUpdated = "project:updated"
	EventProjectDeleted = "project:deleted"

	EventPoolUpdated = "fund-pool:updated"
	EventFlagUpdated = "feature-flag:updated"

	EventPaymentConfirmed = "payment:confirmed"
	EventPaymentExpired   = "payment:expired"

	EventNotificationNew = "notification:new"
)

// Well-known rooms without an entity scope.
const (
	RoomFundPools    = "fund-pools"
	RoomFeatureFlags = "feature-flags"
	RoomProjects     = "projects"
)

// ProjectRoom names the room carrying one project's task events.
func ProjectRoom(projectID string) string { return "project:" + projectID }

// UserRoom names the personal room carrying one user's targeted events.
func UserRoom(userID string) string { return "user:" + userID }

// frame is the client-to-server control message.
type frame struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

const (
	actionJoin  = "join"
	actionLeave = "leave"
)

// message is the server-to-client event wrapper.
type message struct {
	Event   string          `json:"event"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload"`
}
