package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/boardsync/boardsync/internal/domain/label"
	"github.com/boardsync/boardsync/internal/domain/member"
	"github.com/boardsync/boardsync/internal/domain/sprint"
)

// SprintsAPI groups sprint endpoints, all scoped to a project.
type SprintsAPI struct {
	c *Client
}

// Sprints returns the sprint endpoint group.
func (c *Client) Sprints() SprintsAPI { return SprintsAPI{c: c} }

func sprintBase(projectID string) string {
	return "/projects/" + url.PathEscape(projectID) + "/sprints"
}

// List lists a project's sprints.
func (a SprintsAPI) List(ctx context.Context, projectID string) ([]sprint.Sprint, error) {
	sprints, _, err := getList[sprint.Sprint](ctx, a.c, sprintBase(projectID)+"?limit=100")
	return sprints, err
}

// Create creates a sprint.
func (a SprintsAPI) Create(ctx context.Context, projectID string, input sprint.Input) (*sprint.Sprint, error) {
	return mutateEntity[sprint.Sprint](ctx, a.c, http.MethodPost, sprintBase(projectID), input)
}

// Update edits a sprint.
func (a SprintsAPI) Update(ctx context.Context, projectID, sprintID string, input sprint.Input) (*sprint.Sprint, error) {
	return mutateEntity[sprint.Sprint](ctx, a.c, http.MethodPut, sprintBase(projectID)+"/"+url.PathEscape(sprintID), input)
}

// Start begins a sprint.
func (a SprintsAPI) Start(ctx context.Context, projectID, sprintID string) (*sprint.Sprint, error) {
	return mutateEntity[sprint.Sprint](ctx, a.c, http.MethodPut, sprintBase(projectID)+"/"+url.PathEscape(sprintID)+"/start", nil)
}

// Close ends a sprint.
func (a SprintsAPI) Close(ctx context.Context, projectID, sprintID string) (*sprint.Sprint, error) {
	return mutateEntity[sprint.Sprint](ctx, a.c, http.MethodPut, sprintBase(projectID)+"/"+url.PathEscape(sprintID)+"/close", nil)
}

// Delete removes a sprint.
func (a SprintsAPI) Delete(ctx context.Context, projectID, sprintID string) error {
	var env deleteEnvelope
	return a.c.Do(ctx, http.MethodDelete, sprintBase(projectID)+"/"+url.PathEscape(sprintID), nil, &env)
}

// LabelsAPI groups label endpoints, all scoped to a project.
type LabelsAPI struct {
	c *Client
}

// Labels returns the label endpoint group.
func (c *Client) Labels() LabelsAPI { return LabelsAPI{c: c} }

func labelBase(projectID string) string {
	return "/projects/" + url.PathEscape(projectID) + "/labels"
}

// List lists a project's labels.
func (a LabelsAPI) List(ctx context.Context, projectID string) ([]label.Label, error) {
	labels, _, err := getList[label.Label](ctx, a.c, labelBase(projectID)+"/all")
	return labels, err
}

// Create creates a label.
func (a LabelsAPI) Create(ctx context.Context, projectID string, input label.Input) (*label.Label, error) {
	return mutateEntity[label.Label](ctx, a.c, http.MethodPost, labelBase(projectID), input)
}

// Update edits a label.
func (a LabelsAPI) Update(ctx context.Context, projectID, labelID string, input label.Input) (*label.Label, error) {
	return mutateEntity[label.Label](ctx, a.c, http.MethodPut, labelBase(projectID)+"/"+url.PathEscape(labelID), input)
}

// Delete removes a label.
func (a LabelsAPI) Delete(ctx context.Context, projectID, labelID string) error {
	var env deleteEnvelope
	return a.c.Do(ctx, http.MethodDelete, labelBase(projectID)+"/"+url.PathEscape(labelID), nil, &env)
}

// TeamAPI groups user and membership endpoints.
type TeamAPI struct {
	c *Client
}

// Team returns the team endpoint group.
func (c *Client) Team() TeamAPI { return TeamAPI{c: c} }

// Members lists every team member account.
func (a TeamAPI) Members(ctx context.Context) ([]member.Member, error) {
	members, _, err := getList[member.Member](ctx, a.c, "/users?limit=100")
	return members, err
}

// ProjectMembers lists the members of one project.
func (a TeamAPI) ProjectMembers(ctx context.Context, projectID string) ([]member.Member, error) {
	endpoint := "/projects/" + url.PathEscape(projectID) + "/members/details?limit=100"
	members, _, err := getList[member.Member](ctx, a.c, endpoint)
	return members, err
}
