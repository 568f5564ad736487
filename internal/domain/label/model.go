package label

// Label is a colored tag scoped to one project.
type Label struct {
	ID        string `json:"_id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

// Input defines label create/update fields.
type Input struct {
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}
