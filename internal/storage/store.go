package storage

import (
	"context"

	"mixevo/internal/model"
)

// Store is the result sink for completed runs. Runs are written once by a
// single writer and read back by id.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns summaries ordered by creation time, then id.
	ListRuns(ctx context.Context) ([]model.RunSummary, error)
	DeleteRun(ctx context.Context, id string) error
}
