package sprint

import "time"

// SprintStatus tracks the sprint lifecycle.
type SprintStatus string

const (
	StatusPlanned SprintStatus = "planned"
	StatusActive  SprintStatus = "active"
	StatusClosed  SprintStatus = "closed"
)

// Sprint is a time-boxed iteration within a project.
type Sprint struct {
	ID        string       `json:"_id"`
	ProjectID string       `json:"projectId"`
	Name      string       `json:"name"`
	Goal      string       `json:"goal,omitempty"`
	Status    SprintStatus `json:"status"`
	StartDate *time.Time   `json:"startDate,omitempty"`
	EndDate   *time.Time   `json:"endDate,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Input defines sprint create/update fields.
type Input struct {
	Name      string     `json:"name,omitempty"`
	Goal      string     `json:"goal,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}
