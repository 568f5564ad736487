package pool

import "time"

// FundPool is a shared budget that automated executors draw from.
type FundPool struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Enabled       bool      `json:"enabled"`
	ExecutionCount int      `json:"executionCount"`
	LastExecutedAt *time.Time `json:"lastExecutedAt,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Execution is one draw against a pool, newest first in history listings.
type Execution struct {
	ID         string    `json:"_id"`
	PoolID     string    `json:"poolId"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"`
	ExecutedAt time.Time `json:"executedAt"`
}

// Input defines pool create/update fields.
type Input struct {
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

// ExecutorFlagKey is the feature flag gating the pool executor UI.
const ExecutorFlagKey = "fund-pool-executor"

// FlagUpdate is the payload of a feature-flag:updated event.
type FlagUpdate struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}
