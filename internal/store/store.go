package store

import (
	"context"
	"time"
)

// RunKind identifies which CLI stage produced a ledger row.
type RunKind string

const (
	RunDemo     RunKind = "build-closed-loop-demo"
	RunMatching RunKind = "run-dual-matching-demo"
	RunAB       RunKind = "run-offline-ab"
)

// RunRecord is one row in the run ledger: what ran, with which parameters,
// and a compact summary of what it produced.
type RunRecord struct {
	ID        string    `json:"id"`
	Kind      RunKind   `json:"kind"`
	Params    string    `json:"params"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger is the persistence interface for run history.
type Ledger interface {
	RecordRun(ctx context.Context, kind RunKind, params, summary any) (string, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Migrate(ctx context.Context) error
	Close() error
}
