package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/boardsync/boardsync/internal/domain/pool"
)

// PoolsAPI groups fund pool and feature flag endpoints.
type PoolsAPI struct {
	c *Client
}

// Pools returns the fund pool endpoint group.
func (c *Client) Pools() PoolsAPI { return PoolsAPI{c: c} }

// List lists all fund pools with the collection total.
func (a PoolsAPI) List(ctx context.Context) ([]pool.FundPool, int, error) {
	return getList[pool.FundPool](ctx, a.c, "/fund-pools")
}

// Executions lists the most recent executions for a pool, newest first.
func (a PoolsAPI) Executions(ctx context.Context, poolID string, limit int) ([]pool.Execution, error) {
	endpoint := fmt.Sprintf("/fund-pools/%s/executions?limit=%d", url.PathEscape(poolID), limit)
	executions, _, err := getList[pool.Execution](ctx, a.c, endpoint)
	return executions, err
}

// Create creates a pool.
func (a PoolsAPI) Create(ctx context.Context, input pool.Input) (*pool.FundPool, error) {
	return mutateEntity[pool.FundPool](ctx, a.c, http.MethodPost, "/fund-pools", input)
}

// Update applies a partial update, returning raw entity JSON for merging.
func (a PoolsAPI) Update(ctx context.Context, id string, input pool.Input) (json.RawMessage, error) {
	return doEntity(ctx, a.c, http.MethodPut, "/fund-pools/"+url.PathEscape(id), input)
}

// Toggle flips a pool's enabled state.
func (a PoolsAPI) Toggle(ctx context.Context, id string) (json.RawMessage, error) {
	return doEntity(ctx, a.c, http.MethodPatch, "/fund-pools/"+url.PathEscape(id)+"/toggle", nil)
}

// Delete removes a pool.
func (a PoolsAPI) Delete(ctx context.Context, id string) error {
	var env deleteEnvelope
	return a.c.Do(ctx, http.MethodDelete, "/fund-pools/"+url.PathEscape(id), nil, &env)
}

// RecordExecution logs a manual execution against a pool.
func (a PoolsAPI) RecordExecution(ctx context.Context, id string) (json.RawMessage, error) {
	return doEntity(ctx, a.c, http.MethodPost, "/fund-pools/"+url.PathEscape(id)+"/execute", nil)
}

// EvaluateFlags resolves the current value of the named feature flags.
func (a PoolsAPI) EvaluateFlags(ctx context.Context, keys ...string) (map[string]bool, error) {
	var env struct {
		Success bool            `json:"success"`
		Flags   map[string]bool `json:"flags"`
	}
	endpoint := "/feature-flags/evaluate?keys=" + url.QueryEscape(strings.Join(keys, ","))
	if err := a.c.Do(ctx, http.MethodGet, endpoint, nil, &env); err != nil {
		return nil, err
	}
	return env.Flags, nil
}
