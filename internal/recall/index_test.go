package recall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offerloop/matching-cli/internal/model"
)

func testIndex(cfg Config) *Index {
	supplies := []model.SupplyItem{
		{ID: "supply_000", Category: "electronics", QualityScore: 0.9},
		{ID: "supply_001", Category: "electronics", QualityScore: 0.7},
		{ID: "supply_002", Category: "home", QualityScore: 0.8},
		{ID: "supply_003", Category: "home", QualityScore: 0.8},
		{ID: "supply_004", Category: "food", QualityScore: 0.5},
	}
	users := []model.UserProfile{
		{ID: "user_000", PreferredCategories: []string{"electronics"}},
		{ID: "user_001", PreferredCategories: []string{"home", "food"}},
		{ID: "user_002", PreferredCategories: []string{"services"}},
	}
	edges := []model.RelationEdge{
		{Src: "supply_000", Dst: "supply_001", Type: model.RelationSameCategory},
		{Src: "supply_002", Dst: "supply_003", Type: model.RelationSameCategory},
		{Src: "supply_000", Dst: "supply_002", Type: model.RelationComplementary},
		{Src: "supply_001", Dst: "supply_004", Type: model.RelationCoViewed},
	}
	events := []model.InteractionEvent{
		{ID: "evt_000000", UserID: "user_000", SupplyID: "supply_000", Type: model.EventClick, Timestamp: 1},
		{ID: "evt_000001", UserID: "user_000", SupplyID: "supply_001", Type: model.EventConvert, Timestamp: 2},
		{ID: "evt_000002", UserID: "user_001", SupplyID: "supply_002", Type: model.EventClick, Timestamp: 3},
		{ID: "evt_000003", UserID: "user_001", SupplyID: "supply_000", Type: model.EventImpression, Timestamp: 4},
		{ID: "evt_000004", UserID: "user_001", SupplyID: "supply_000", Type: model.EventClick, Timestamp: 5},
	}
	return NewIndex(cfg, supplies, users, edges, events)
}

func TestIndex_RecallSupplies(t *testing.T) {
	idx := testIndex(DefaultConfig())

	got := idx.Recall("user_000", model.UserToSupply, 10)
	// Category seed {supply_000, supply_001}, widened through the
	// complementary and co-view edges to supply_002 and supply_004.
	assert.ElementsMatch(t, []string{"supply_000", "supply_001", "supply_002", "supply_004"}, got)

	for i, id := range got {
		for _, other := range got[i+1:] {
			assert.NotEqual(t, id, other, "candidates must be deduplicated")
		}
	}
}

func TestIndex_RecallSuppliesBoundAndOrder(t *testing.T) {
	idx := testIndex(DefaultConfig())

	got := idx.Recall("user_000", model.UserToSupply, 2)
	require.Len(t, got, 2, "result is bounded by k")
	assert.Equal(t, "supply_000", got[0], "quality descending, id ascending")
}

func TestIndex_RecallSuppliesColdStart(t *testing.T) {
	idx := testIndex(DefaultConfig())

	assert.Empty(t, idx.Recall("user_002", model.UserToSupply, 5), "no catalog overlap yields an empty result, not an error")
	assert.Empty(t, idx.Recall("user_404", model.UserToSupply, 5), "unknown seeds recall nothing")
	assert.Empty(t, idx.Recall("user_000", model.UserToSupply, 0))
	assert.Empty(t, idx.Recall("user_000", model.Direction("sideways"), 5))
}

func TestIndex_RecallUsers(t *testing.T) {
	idx := testIndex(DefaultConfig())

	got := idx.Recall("supply_000", model.SupplyToUser, 10)
	// Neighborhood {supply_000, supply_001, supply_002, supply_003}; user_001
	// touched it three times, user_000 twice.
	assert.Equal(t, []string{"user_001", "user_000"}, got, "users ranked by touch depth, then id")
}

func TestIndex_RecallUsersColdStart(t *testing.T) {
	idx := testIndex(DefaultConfig())

	// supply_004 has no same_category or complementary edges of its own.
	assert.Empty(t, idx.Recall("supply_004", model.SupplyToUser, 5))
	assert.Empty(t, idx.Recall("supply_404", model.SupplyToUser, 5))
}

func TestIndex_HopLimitBoundsWidening(t *testing.T) {
	idx := testIndex(Config{HopLimit: 1, MaxNeighborhood: 64})

	got := idx.Recall("user_000", model.UserToSupply, 10)
	// One hop reaches supply_002 and supply_004 but stops there.
	assert.ElementsMatch(t, []string{"supply_000", "supply_001", "supply_002", "supply_004"}, got)

	tight := testIndex(Config{HopLimit: 1, MaxNeighborhood: 2})
	got = tight.Recall("user_000", model.UserToSupply, 10)
	assert.Len(t, got, 2, "neighborhood cap bounds expansion")
}

func TestIndex_Accessors(t *testing.T) {
	idx := testIndex(DefaultConfig())

	s, ok := idx.Supply("supply_000")
	require.True(t, ok)
	assert.Equal(t, "electronics", s.Category)

	u, ok := idx.User("user_001")
	require.True(t, ok)
	assert.Equal(t, []string{"home", "food"}, u.PreferredCategories)

	_, ok = idx.Supply("supply_404")
	assert.False(t, ok)
}
