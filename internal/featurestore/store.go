// Package featurestore aggregates the interaction log into versioned
// per-entity feature vectors. The store is a directed chain of immutable
// snapshots: BuildInitial materializes the first one, ApplyFeedback extends
// the head, and no vector is ever mutated in place. Concurrent readers of a
// materialized snapshot never race; a single writer per transition is
// enforced optimistically through the parent snapshot id.
package featurestore

import (
	"math"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/offerloop/matching-cli/internal/model"
)

var (
	// ErrNotFound marks a feature-vector lookup outside the snapshot's
	// entity universe.
	ErrNotFound = eris.New("featurestore: feature vector not found")

	// ErrSnapshotConflict marks a feedback write racing a newer head. The
	// caller must retry against the new head snapshot.
	ErrSnapshotConflict = eris.New("featurestore: snapshot conflict")

	// ErrUnknownSnapshot marks a transition from a snapshot the store never
	// materialized.
	ErrUnknownSnapshot = eris.New("featurestore: unknown parent snapshot")
)

// Config holds the aggregation constants, enumerated once at construction.
type Config struct {
	// DecayLambda is the per-tick exponential recency decay applied to the
	// weighted interaction sum.
	DecayLambda float64
}

// DefaultConfig returns the recognized aggregation defaults.
func DefaultConfig() Config {
	return Config{DecayLambda: 0.01}
}

// Store owns the snapshot chain. The zero value is not usable; call New.
type Store struct {
	cfg Config

	mu        sync.Mutex
	snapshots map[int64]*model.Snapshot
	head      int64
}

// New creates an empty store.
func New(cfg Config) *Store {
	if cfg.DecayLambda <= 0 {
		cfg.DecayLambda = DefaultConfig().DecayLambda
	}
	return &Store{
		cfg:       cfg,
		snapshots: make(map[int64]*model.Snapshot),
	}
}

// BuildInitial aggregates the full event log into the first snapshot. The
// snapshot's universe covers every generated entity, so entities without
// events get materialized zero vectors rather than being absent.
func (s *Store) BuildInitial(supplies []model.SupplyItem, users []model.UserProfile, events []model.InteractionEvent) (*model.Snapshot, error) {
	vectors := make(map[model.EntityKey]model.FeatureVector, len(supplies)+len(users))
	for _, item := range supplies {
		key := model.SupplyKey(item.ID)
		vectors[key] = model.FeatureVector{EntityType: model.EntitySupply, EntityID: item.ID}
	}
	for _, u := range users {
		key := model.UserKey(u.ID)
		vectors[key] = model.FeatureVector{EntityType: model.EntityUser, EntityID: u.ID}
	}

	categories := make(map[string]string, len(supplies))
	for _, item := range supplies {
		categories[item.ID] = item.Category
	}

	if err := foldEvents(vectors, events, categories, s.cfg.DecayLambda); err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		SnapshotID:       1,
		CreatedFrom:      nil,
		GenerationReason: model.ReasonInitial,
		Vectors:          vectors,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head != 0 {
		return nil, eris.Wrap(ErrSnapshotConflict, "featurestore: initial snapshot already built")
	}
	s.snapshots[snap.SnapshotID] = snap
	s.head = snap.SnapshotID

	zap.L().Info("featurestore: built initial snapshot",
		zap.Int64("snapshot_id", snap.SnapshotID),
		zap.Int("vectors", len(vectors)),
		zap.Int("events", len(events)),
	)
	return snap, nil
}

// ApplyFeedback produces a new snapshot equal to the parent's vectors
// combined with an incremental aggregation of the feedback events. The
// parent is never mutated. Replaying the same feedback against the same
// parent yields identical output; racing a newer head fails with
// ErrSnapshotConflict.
func (s *Store) ApplyFeedback(parent *model.Snapshot, categories map[string]string, feedback []model.InteractionEvent) (*model.Snapshot, error) {
	if parent == nil {
		return nil, eris.Wrap(ErrUnknownSnapshot, "featurestore: nil parent")
	}

	s.mu.Lock()
	if _, ok := s.snapshots[parent.SnapshotID]; !ok {
		s.mu.Unlock()
		return nil, eris.Wrapf(ErrUnknownSnapshot, "featurestore: snapshot %d", parent.SnapshotID)
	}
	if parent.SnapshotID != s.head {
		head := s.head
		s.mu.Unlock()
		return nil, eris.Wrapf(ErrSnapshotConflict, "featurestore: parent %d is not head %d", parent.SnapshotID, head)
	}
	s.mu.Unlock()

	vectors := make(map[model.EntityKey]model.FeatureVector, len(parent.Vectors))
	for key, vec := range parent.Vectors {
		vectors[key] = vec.Clone()
	}

	if err := foldEvents(vectors, feedback, categories, s.cfg.DecayLambda); err != nil {
		return nil, err
	}

	parentID := parent.SnapshotID
	snap := &model.Snapshot{
		SnapshotID:       parentID + 1,
		CreatedFrom:      &parentID,
		GenerationReason: model.ReasonFeedback,
		Vectors:          vectors,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head != parentID {
		// A second writer committed while we aggregated.
		return nil, eris.Wrapf(ErrSnapshotConflict, "featurestore: parent %d is not head %d", parentID, s.head)
	}
	s.snapshots[snap.SnapshotID] = snap
	s.head = snap.SnapshotID

	zap.L().Info("featurestore: applied feedback",
		zap.Int64("parent", parentID),
		zap.Int64("snapshot_id", snap.SnapshotID),
		zap.Int("feedback_events", len(feedback)),
	)
	return snap, nil
}

// Get looks up a feature vector inside a snapshot. Lookups outside the
// snapshot's universe return ErrNotFound.
func Get(snap *model.Snapshot, typ model.EntityType, id string) (model.FeatureVector, error) {
	if snap == nil {
		return model.FeatureVector{}, eris.Wrap(ErrNotFound, "featurestore: nil snapshot")
	}
	vec, ok := snap.Vector(model.EntityKey{Type: typ, ID: id})
	if !ok {
		return model.FeatureVector{}, eris.Wrapf(ErrNotFound, "featurestore: %s:%s in snapshot %d", typ, id, snap.SnapshotID)
	}
	return vec, nil
}

// Head returns the current head snapshot, or nil if nothing was built yet.
func (s *Store) Head() *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[s.head]
}

// Snapshot returns a snapshot by id.
func (s *Store) Snapshot(id int64) (*model.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	return snap, ok
}

// Adopt registers an externally materialized snapshot (read back from an
// artifact file) as the store's head. Used by CLI stages that resume from
// a previous run's snapshot file.
func (s *Store) Adopt(snap *model.Snapshot) error {
	if snap == nil {
		return eris.Wrap(ErrUnknownSnapshot, "featurestore: adopt nil snapshot")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.SnapshotID <= s.head {
		return eris.Wrapf(ErrSnapshotConflict, "featurestore: adopt %d behind head %d", snap.SnapshotID, s.head)
	}
	s.snapshots[snap.SnapshotID] = snap
	s.head = snap.SnapshotID
	return nil
}

// foldEvents folds an event segment into the vector map in place. The decay
// reference tick is the segment's maximum timestamp, so the fold is a pure
// function of its inputs.
func foldEvents(vectors map[model.EntityKey]model.FeatureVector, events []model.InteractionEvent, categories map[string]string, lambda float64) error {
	if len(events) == 0 {
		return nil
	}

	var now int64
	for _, e := range events {
		if e.Timestamp > now {
			now = e.Timestamp
		}
	}

	for _, e := range events {
		if !e.Type.Valid() {
			return eris.Errorf("featurestore: unknown event type %q in event %s", e.Type, e.ID)
		}
		supplyKey := model.SupplyKey(e.SupplyID)
		userKey := model.UserKey(e.UserID)
		supplyVec, ok := vectors[supplyKey]
		if !ok {
			return eris.Errorf("featurestore: event %s references unknown supply %s", e.ID, e.SupplyID)
		}
		userVec, ok := vectors[userKey]
		if !ok {
			return eris.Errorf("featurestore: event %s references unknown user %s", e.ID, e.UserID)
		}

		decayed := e.Weight() * math.Exp(-lambda*float64(now-e.Timestamp))
		category := categories[e.SupplyID]

		count(&supplyVec, e.Type)
		supplyVec.WeightedSum += decayed
		bump(&supplyVec, category)

		count(&userVec, e.Type)
		userVec.WeightedSum += decayed
		if e.Type != model.EventReject {
			bump(&userVec, category)
		}

		// The seen-user set rides on the supply vector so the count stays
		// distinct even when a later segment replays the same user.
		if supplyVec.SeenUsers == nil {
			supplyVec.SeenUsers = make(map[string]bool)
		}
		supplyVec.SeenUsers[e.UserID] = true

		vectors[supplyKey] = supplyVec
		vectors[userKey] = userVec
	}

	for key, vec := range vectors {
		finalize(&vec)
		vectors[key] = vec
	}
	return nil
}

// count bumps the per-type counter for one event.
func count(vec *model.FeatureVector, typ model.EventType) {
	switch typ {
	case model.EventImpression:
		vec.Impressions++
	case model.EventClick:
		vec.Clicks++
	case model.EventConvert:
		vec.Converts++
	case model.EventReject:
		vec.Rejects++
	}
}

// bump adds one interaction to the raw category histogram.
func bump(vec *model.FeatureVector, category string) {
	if category == "" {
		return
	}
	if vec.CategoryCounts == nil {
		vec.CategoryCounts = make(map[string]int)
	}
	vec.CategoryCounts[category]++
}

// finalize recomputes the derived rates, the unique-user count, and the
// normalized affinity histogram from the raw aggregates. Zero denominators
// yield zero rates; that is the defined cold-start behavior, not a failure.
func finalize(vec *model.FeatureVector) {
	vec.UniqueUsers = len(vec.SeenUsers)
	if vec.Impressions > 0 {
		vec.CTR = float64(vec.Clicks) / float64(vec.Impressions)
	} else {
		vec.CTR = 0
	}
	if vec.Clicks > 0 {
		vec.CVR = float64(vec.Converts) / float64(vec.Clicks)
	} else {
		vec.CVR = 0
	}

	total := 0
	for _, n := range vec.CategoryCounts {
		total += n
	}
	if total == 0 {
		vec.CategoryAffinity = nil
		return
	}
	vec.CategoryAffinity = make(map[string]float64, len(vec.CategoryCounts))
	for cat, n := range vec.CategoryCounts {
		vec.CategoryAffinity[cat] = float64(n) / float64(total)
	}
}
