package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// EntityType distinguishes the two sides of the marketplace.
type EntityType string

const (
	EntitySupply EntityType = "supply"
	EntityUser   EntityType = "user"
)

// EntityKey identifies a feature vector owner within a snapshot.
type EntityKey struct {
	Type EntityType
	ID   string
}

// SupplyKey returns the feature key for a supply item.
func SupplyKey(id string) EntityKey { return EntityKey{Type: EntitySupply, ID: id} }

// UserKey returns the feature key for a user.
func UserKey(id string) EntityKey { return EntityKey{Type: EntityUser, ID: id} }

// MarshalText encodes the key as "type:id" so it can serve as a JSON map key.
func (k EntityKey) MarshalText() ([]byte, error) {
	return []byte(string(k.Type) + ":" + k.ID), nil
}

// UnmarshalText parses the "type:id" form produced by MarshalText.
func (k *EntityKey) UnmarshalText(text []byte) error {
	typ, id, ok := strings.Cut(string(text), ":")
	if !ok {
		return eris.Errorf("model: malformed entity key %q", string(text))
	}
	k.Type = EntityType(typ)
	k.ID = id
	return nil
}

// String implements fmt.Stringer for log fields.
func (k EntityKey) String() string { return fmt.Sprintf("%s:%s", k.Type, k.ID) }

// FeatureVector holds the per-entity aggregates for one snapshot. Vectors
// are value types: snapshots hand out copies, never shared references.
type FeatureVector struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`

	Impressions int `json:"impressions"`
	Clicks      int `json:"clicks"`
	Converts    int `json:"converts"`
	Rejects     int `json:"rejects"`

	// SeenUsers is the set of distinct users observed interacting with a
	// supply entity. Persisted so unique-user coverage stays a distinct
	// count across snapshot transitions. Nil for user vectors.
	SeenUsers map[string]bool `json:"seen_users,omitempty"`

	// UniqueUsers is len(SeenUsers), kept as a materialized aggregate.
	UniqueUsers int `json:"unique_users,omitempty"`

	// WeightedSum is the recency-decayed, type-weighted interaction sum.
	WeightedSum float64 `json:"weighted_sum"`

	CTR float64 `json:"ctr"`
	CVR float64 `json:"cvr"`

	// CategoryCounts is the raw interacted-category histogram. Kept so a
	// child snapshot's aggregates are exactly derivable from its parent
	// plus the feedback delta.
	CategoryCounts map[string]int `json:"category_counts,omitempty"`

	// CategoryAffinity is CategoryCounts normalized to sum to 1.
	CategoryAffinity map[string]float64 `json:"category_affinity,omitempty"`
}

// Key returns the entity key the vector belongs to.
func (v FeatureVector) Key() EntityKey {
	return EntityKey{Type: v.EntityType, ID: v.EntityID}
}

// Clone returns a deep copy of the vector.
func (v FeatureVector) Clone() FeatureVector {
	out := v
	if v.SeenUsers != nil {
		out.SeenUsers = make(map[string]bool, len(v.SeenUsers))
		for id := range v.SeenUsers {
			out.SeenUsers[id] = true
		}
	}
	if v.CategoryCounts != nil {
		out.CategoryCounts = make(map[string]int, len(v.CategoryCounts))
		for cat, n := range v.CategoryCounts {
			out.CategoryCounts[cat] = n
		}
	}
	if v.CategoryAffinity != nil {
		out.CategoryAffinity = make(map[string]float64, len(v.CategoryAffinity))
		for cat, w := range v.CategoryAffinity {
			out.CategoryAffinity[cat] = w
		}
	}
	return out
}

// CosineAffinity computes cosine similarity between two category-affinity
// histograms. Either side being empty yields 0 (cold start, not an error).
func CosineAffinity(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for cat, wa := range a {
		normA += wa * wa
		if wb, ok := b[cat]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		normB += wb * wb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// GenerationReason records why a snapshot was produced.
type GenerationReason string

const (
	ReasonInitial  GenerationReason = "initial"
	ReasonFeedback GenerationReason = "feedback"
)

// Snapshot is one immutable, fully materialized version of the feature
// store. Snapshots form a chain through CreatedFrom; the head is the
// snapshot with the highest id.
type Snapshot struct {
	SnapshotID       int64                       `json:"snapshot_id"`
	CreatedFrom      *int64                      `json:"created_from"`
	GenerationReason GenerationReason            `json:"generation_reason"`
	Vectors          map[EntityKey]FeatureVector `json:"vectors"`
}

// Vector looks up a feature vector by key. The boolean is false when the
// entity has no vector in this snapshot.
func (s *Snapshot) Vector(key EntityKey) (FeatureVector, bool) {
	v, ok := s.Vectors[key]
	return v, ok
}

// Contains reports whether the entity exists in the snapshot's universe.
func (s *Snapshot) Contains(key EntityKey) bool {
	_, ok := s.Vectors[key]
	return ok
}
