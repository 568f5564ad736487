package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// listEnvelope is the standard paginated collection response.
type listEnvelope[T any] struct {
	Success bool `json:"success"`
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Skip    int  `json:"skip"`
	Limit   int  `json:"limit"`
}

// entityEnvelope is the standard single-entity response. Data stays raw so
// callers can shallow-merge it over existing local state.
type entityEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// deleteEnvelope acknowledges a removal.
type deleteEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func getList[T any](ctx context.Context, c *Client, endpoint string) ([]T, int, error) {
	var env listEnvelope[T]
	if err := c.Do(ctx, http.MethodGet, endpoint, nil, &env); err != nil {
		return nil, 0, err
	}
	return env.Data, env.Total, nil
}

func getEntity[T any](ctx context.Context, c *Client, endpoint string) (*T, error) {
	raw, err := doEntity(ctx, c, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeEntity[T](raw)
}

func mutateEntity[T any](ctx context.Context, c *Client, method, endpoint string, body any) (*T, error) {
	raw, err := doEntity(ctx, c, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	return decodeEntity[T](raw)
}

// doEntity performs a request and returns the entity payload as raw JSON.
func doEntity(ctx context.Context, c *Client, method, endpoint string, body any) (json.RawMessage, error) {
	var env entityEnvelope
	if err := c.Do(ctx, method, endpoint, body, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func decodeEntity[T any](raw json.RawMessage) (*T, error) {
	var entity T
	if err := json.Unmarshal(raw, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}
