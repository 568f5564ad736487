package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/boardsync/boardsync/internal/domain/project"
)

// ProjectsAPI groups project endpoints.
type ProjectsAPI struct {
	c *Client
}

// Projects returns the project endpoint group.
func (c *Client) Projects() ProjectsAPI { return ProjectsAPI{c: c} }

// List lists all projects visible to the authenticated user.
func (a ProjectsAPI) List(ctx context.Context) ([]project.Project, error) {
	projects, _, err := getList[project.Project](ctx, a.c, "/projects?limit=100")
	return projects, err
}

// Get fetches one project.
func (a ProjectsAPI) Get(ctx context.Context, id string) (*project.Project, error) {
	return getEntity[project.Project](ctx, a.c, "/projects/"+url.PathEscape(id))
}

// Create creates a project under a workplace.
func (a ProjectsAPI) Create(ctx context.Context, workplaceID string, input project.Input) (*project.Project, error) {
	endpoint := "/projects?workplaceId=" + url.QueryEscape(workplaceID)
	return mutateEntity[project.Project](ctx, a.c, http.MethodPost, endpoint, input)
}

// Update applies a partial update, returning raw entity JSON for merging.
func (a ProjectsAPI) Update(ctx context.Context, id string, input project.Input) (json.RawMessage, error) {
	return doEntity(ctx, a.c, http.MethodPut, "/projects/"+url.PathEscape(id), input)
}

// Delete removes a project.
func (a ProjectsAPI) Delete(ctx context.Context, id string) error {
	var env deleteEnvelope
	return a.c.Do(ctx, http.MethodDelete, "/projects/"+url.PathEscape(id), nil, &env)
}

// Archive moves a project out of the active listing.
func (a ProjectsAPI) Archive(ctx context.Context, id string) (json.RawMessage, error) {
	return doEntity(ctx, a.c, http.MethodPut, "/projects/"+url.PathEscape(id)+"/archive", nil)
}

// Activate restores an archived project.
func (a ProjectsAPI) Activate(ctx context.Context, id string) (json.RawMessage, error) {
	return doEntity(ctx, a.c, http.MethodPut, "/projects/"+url.PathEscape(id)+"/activate", nil)
}
