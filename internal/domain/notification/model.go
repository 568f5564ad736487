package notification

import "time"

// Kind classifies a notification for presentation.
type Kind string

const (
	KindMentioned Kind = "mentioned"
	KindAssigned  Kind = "assigned"
	KindGeneric   Kind = "generic"
)

// Notification is a targeted in-app message delivered to one user.
type Notification struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Type      Kind      `json:"type"`
	Message   string    `json:"message"`
	TaskID    *string   `json:"taskId,omitempty"`
	ProjectID *string   `json:"projectId,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
