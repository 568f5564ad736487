package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boardsync/boardsync/internal/domain/task"
)

// TasksAPI groups task endpoints.
type TasksAPI struct {
	c *Client
}

// Tasks returns the task endpoint group.
func (c *Client) Tasks() TasksAPI { return TasksAPI{c: c} }

// My lists tasks assigned to the authenticated user.
func (a TasksAPI) My(ctx context.Context) ([]task.Task, error) {
	tasks, _, err := getList[task.Task](ctx, a.c, "/tasks/my-tasks?limit=100")
	return tasks, err
}

// ByProject lists every task in a project.
func (a TasksAPI) ByProject(ctx context.Context, projectID string) ([]task.Task, error) {
	tasks, _, err := getList[task.Task](ctx, a.c, fmt.Sprintf("/tasks/project/%s?limit=100", url.PathEscape(projectID)))
	return tasks, err
}

// Get fetches one task.
func (a TasksAPI) Get(ctx context.Context, id string) (*task.Task, error) {
	return getEntity[task.Task](ctx, a.c, "/tasks/"+url.PathEscape(id))
}

// Create creates a task in a project. The server assigns the id and the
// order rank within the target column.
func (a TasksAPI) Create(ctx context.Context, projectID string, input task.CreateInput) (*task.Task, error) {
	endpoint := "/tasks?projectId=" + url.QueryEscape(projectID)
	return mutateEntity[task.Task](ctx, a.c, http.MethodPost, endpoint, input)
}

// Update applies a partial update and returns the confirmed entity as raw
// JSON, suitable for shallow-merging over local state.
func (a TasksAPI) Update(ctx context.Context, id string, input task.UpdateInput) (json.RawMessage, error) {
	return doEntity(ctx, a.c, http.MethodPut, "/tasks/"+url.PathEscape(id), input)
}

// UpdateStatus transitions a task to another column.
func (a TasksAPI) UpdateStatus(ctx context.Context, id string, status task.Status) (json.RawMessage, error) {
	body := map[string]task.Status{"status": status}
	return doEntity(ctx, a.c, http.MethodPatch, "/tasks/"+url.PathEscape(id)+"/status", body)
}

// Delete removes a task.
func (a TasksAPI) Delete(ctx context.Context, id string) error {
	var env deleteEnvelope
	return a.c.Do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, &env)
}

// Reorder sends a minimal order diff for one project.
func (a TasksAPI) Reorder(ctx context.Context, projectID string, orders []task.OrderPatch) error {
	body := struct {
		ProjectID  string            `json:"projectId"`
		TaskOrders []task.OrderPatch `json:"taskOrders"`
	}{ProjectID: projectID, TaskOrders: orders}
	return a.c.Do(ctx, http.MethodPatch, "/tasks/reorder", body, nil)
}
