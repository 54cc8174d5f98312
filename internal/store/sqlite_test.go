package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	ledger, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	require.NoError(t, ledger.Migrate(context.Background()))
	return ledger
}

func TestSQLiteLedger_RecordAndList(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	id, err := ledger.RecordRun(ctx, RunDemo,
		map[string]any{"seed": 42, "supplies": 20},
		map[string]any{"events": 480})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = ledger.RecordRun(ctx, RunAB,
		map[string]any{"top_k": 5},
		map[string]any{"winner": "treatment"})
	require.NoError(t, err)

	rows, err := ledger.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	kinds := []RunKind{rows[0].Kind, rows[1].Kind}
	assert.Contains(t, kinds, RunDemo)
	assert.Contains(t, kinds, RunAB)

	for _, r := range rows {
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())

		var params map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.Params), &params), "params column is valid JSON")
	}
}

func TestSQLiteLedger_ListRespectsLimit(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := ledger.RecordRun(ctx, RunMatching, map[string]any{"i": i}, nil)
		require.NoError(t, err)
	}

	rows, err := ledger.ListRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = ledger.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 5, "non-positive limit falls back to the default page")
}

func TestSQLiteLedger_MigrateIsIdempotent(t *testing.T) {
	ledger := newTestLedger(t)
	require.NoError(t, ledger.Migrate(context.Background()))
}

func TestSQLiteLedger_EmptyList(t *testing.T) {
	ledger := newTestLedger(t)
	rows, err := ledger.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
