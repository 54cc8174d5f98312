// Package artifact reads and writes the engine's JSON artifacts. Writes go
// through a temp file plus rename so an aborted run never leaves a
// partially written artifact behind.
package artifact

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Artifact file names consumed and produced by the CLI.
const (
	SuppliesFile      = "synthetic_supply.json"
	UsersFile         = "synthetic_users.json"
	EventsFile        = "synthetic_events.json"
	EdgesFile         = "relation_edges.json"
	SnapshotFile      = "feature_store_snapshot.json"
	PostFeedbackFile  = "feature_store_after_feedback.json"
	DefaultReportFile = "offline_ab_report.json"
)

// WriteJSON marshals v with indentation and writes it atomically to path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "artifact: marshal %s", filepath.Base(path))
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "artifact: mkdir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "artifact: temp file for %s", filepath.Base(path))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "artifact: write %s", filepath.Base(path))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "artifact: close %s", filepath.Base(path))
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "artifact: rename %s", filepath.Base(path))
	}
	return nil
}

// ReadJSON unmarshals the artifact at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "artifact: read %s", filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "artifact: unmarshal %s", filepath.Base(path))
	}
	return nil
}
