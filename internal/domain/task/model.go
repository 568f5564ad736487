package task

import "time"

// Status represents the kanban column a task lives in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
)

// Columns is the fixed kanban column order.
var Columns = []Status{StatusTodo, StatusInProgress, StatusInReview, StatusDone}

// Priority represents task urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Task is a unit of work inside a project. Order is a dense 1-based rank
// within the (ProjectID, Status) partition.
type Task struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	AssigneeID  *string    `json:"assigneeId,omitempty"`
	ProjectID   string     `json:"projectId"`
	ParentID    *string    `json:"parentId,omitempty"`
	SprintID    *string    `json:"sprintId,omitempty"`
	Order       int        `json:"order"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CreateInput defines task creation fields sent to the server.
type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	AssigneeID  *string    `json:"assigneeId,omitempty"`
	ParentID    *string    `json:"parentId,omitempty"`
	SprintID    *string    `json:"sprintId,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// UpdateInput defines a partial task update. Nil fields are omitted from the
// request body and left untouched by the server.
type UpdateInput struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	AssigneeID  *string    `json:"assigneeId,omitempty"`
	SprintID    *string    `json:"sprintId,omitempty"`
	Order       *int       `json:"order,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// OrderPatch is one entry of a reorder diff.
type OrderPatch struct {
	TaskID string `json:"taskId"`
	Order  int    `json:"order"`
}

// ParentFilter narrows a task listing by its position in the subtask tree.
type ParentFilter string

const (
	ParentAll         ParentFilter = "all"
	ParentTopLevel    ParentFilter = "top_level"
	ParentParentsOnly ParentFilter = "parent_only"
	ParentSubtasksOnly ParentFilter = "subtask_only"
)

// Filters selects a subset of the loaded collection.
type Filters struct {
	Status     Status
	Priority   Priority
	ProjectID  string
	AssigneeID string
	Search     string
	Parent     ParentFilter
}
