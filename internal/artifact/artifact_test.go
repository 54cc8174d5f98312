package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offerloop/matching-cli/internal/model"
)

func TestWriteReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", SuppliesFile)
	in := []model.SupplyItem{
		{ID: "supply_000", Category: "electronics", QualityScore: 0.9, RiskLevel: model.RiskLow},
	}

	require.NoError(t, WriteJSON(path, in), "missing parent directories are created")

	var out []model.SupplyItem
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, in, out)
}

func TestWriteJSON_SnapshotMapKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), SnapshotFile)
	parent := int64(1)
	in := &model.Snapshot{
		SnapshotID:       2,
		CreatedFrom:      &parent,
		GenerationReason: model.ReasonFeedback,
		Vectors: map[model.EntityKey]model.FeatureVector{
			model.SupplyKey("supply_000"): {EntityType: model.EntitySupply, EntityID: "supply_000", Clicks: 3},
		},
	}

	require.NoError(t, WriteJSON(path, in))

	out := &model.Snapshot{}
	require.NoError(t, ReadJSON(path, out))
	assert.Equal(t, in, out, "snapshots survive the artifact roundtrip")
}

func TestWriteJSON_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteJSON(filepath.Join(dir, EventsFile), []model.InteractionEvent{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temp file %s survived the rename", e.Name())
	}
}

func TestReadJSON_Missing(t *testing.T) {
	var out []model.SupplyItem
	assert.Error(t, ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &out))
}

func TestReadJSON_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var out map[string]any
	assert.Error(t, ReadJSON(path, &out))
}
