// Package runstore persists run history in PostgreSQL. The store is
// optional: without a configured database the orchestrator gets a no-op
// recorder and runs exactly as before.
package runstore

import (
	"context"
	"errors"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

// ErrNotFound is returned when a run ID has no recorded history.
var ErrNotFound = errors.New("run not found")

// Store records finished workflow runs and serves the history API.
type Store interface {
	RecordRun(ctx context.Context, result *models.WorkflowResult) error
	ListRuns(ctx context.Context, limit int) ([]*models.WorkflowResult, error)
	GetRun(ctx context.Context, runID string) (*models.WorkflowResult, error)
	Close() error
}

// NopStore discards everything. Used when run history is disabled.
type NopStore struct{}

func (NopStore) RecordRun(context.Context, *models.WorkflowResult) error { return nil }

func (NopStore) ListRuns(context.Context, int) ([]*models.WorkflowResult, error) {
	return nil, nil
}

func (NopStore) GetRun(context.Context, string) (*models.WorkflowResult, error) {
	return nil, ErrNotFound
}

func (NopStore) Close() error { return nil }
