package project

import "time"

// ProjectStatus tracks the archive lifecycle.
type ProjectStatus string

const (
	StatusActive   ProjectStatus = "active"
	StatusArchived ProjectStatus = "archived"
)

// Project groups tasks and members under a workplace.
type Project struct {
	ID          string        `json:"_id"`
	WorkplaceID string        `json:"workplaceId,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Color       string        `json:"color,omitempty"`
	Icon        string        `json:"icon,omitempty"`
	Status      ProjectStatus `json:"status,omitempty"`
	MemberIDs   []string      `json:"memberIds,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Input defines project create/update fields.
type Input struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	MemberIDs   []string `json:"memberIds,omitempty"`
}
