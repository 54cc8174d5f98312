// Package recall implements the lightweight graph index used to generate
// bounded candidate sets before scoring. Recall is the cheap first pass:
// it narrows the universe, the matching engine ranks what survives.
package recall

import (
	"sort"

	"github.com/offerloop/matching-cli/internal/model"
)

// Config bounds the graph expansion.
type Config struct {
	// HopLimit caps widening through co_viewed/complementary edges.
	HopLimit int
	// MaxNeighborhood caps the supply neighborhood collected before
	// candidates are mapped and truncated.
	MaxNeighborhood int
}

// DefaultConfig returns the recognized recall defaults.
func DefaultConfig() Config {
	return Config{HopLimit: 2, MaxNeighborhood: 64}
}

// Index is a read-only graph index over supply-relation edges plus user
// history postings. Build it once per generation run; it is safe for
// concurrent readers.
type Index struct {
	cfg Config

	supplies map[string]model.SupplyItem
	users    map[string]model.UserProfile

	// byCategory maps category -> sorted supply ids.
	byCategory map[string][]string

	// sameCat holds undirected same_category adjacency; coView and comp
	// hold directed adjacency, all sorted for deterministic walks.
	sameCat map[string][]string
	coView  map[string][]string
	comp    map[string][]string

	// touchedBy maps supply id -> sorted user ids whose history includes an
	// event on that supply; touches counts interactions per (user, supply).
	touchedBy map[string][]string
	touches   map[string]map[string]int
}

// NewIndex builds the index from generator output. Events are needed to
// resolve user history (event ids) back to the supplies they touched.
func NewIndex(cfg Config, supplies []model.SupplyItem, users []model.UserProfile, edges []model.RelationEdge, events []model.InteractionEvent) *Index {
	if cfg.HopLimit < 1 {
		cfg.HopLimit = DefaultConfig().HopLimit
	}
	if cfg.MaxNeighborhood < 1 {
		cfg.MaxNeighborhood = DefaultConfig().MaxNeighborhood
	}

	idx := &Index{
		cfg:        cfg,
		supplies:   make(map[string]model.SupplyItem, len(supplies)),
		users:      make(map[string]model.UserProfile, len(users)),
		byCategory: make(map[string][]string),
		sameCat:    make(map[string][]string),
		coView:     make(map[string][]string),
		comp:       make(map[string][]string),
		touchedBy:  make(map[string][]string),
		touches:    make(map[string]map[string]int),
	}

	for _, s := range supplies {
		idx.supplies[s.ID] = s
		idx.byCategory[s.Category] = append(idx.byCategory[s.Category], s.ID)
	}
	for _, u := range users {
		idx.users[u.ID] = u
	}

	for _, e := range edges {
		switch e.Type {
		case model.RelationSameCategory:
			idx.sameCat[e.Src] = append(idx.sameCat[e.Src], e.Dst)
			idx.sameCat[e.Dst] = append(idx.sameCat[e.Dst], e.Src)
		case model.RelationCoViewed:
			idx.coView[e.Src] = append(idx.coView[e.Src], e.Dst)
		case model.RelationComplementary:
			idx.comp[e.Src] = append(idx.comp[e.Src], e.Dst)
		}
	}

	for _, e := range events {
		if idx.touches[e.SupplyID] == nil {
			idx.touches[e.SupplyID] = make(map[string]int)
		}
		if idx.touches[e.SupplyID][e.UserID] == 0 {
			idx.touchedBy[e.SupplyID] = append(idx.touchedBy[e.SupplyID], e.UserID)
		}
		idx.touches[e.SupplyID][e.UserID]++
	}

	for _, adj := range []map[string][]string{idx.byCategory, idx.sameCat, idx.coView, idx.comp, idx.touchedBy} {
		for key := range adj {
			sort.Strings(adj[key])
		}
	}

	return idx
}

// Recall returns up to k candidate ids for the seed entity, deduplicated
// and excluding the seed itself. A seed with no usable edges yields an
// empty result: that is the cold-start condition, never an error.
func (idx *Index) Recall(seedID string, direction model.Direction, k int) []string {
	if k < 1 {
		return nil
	}
	switch direction {
	case model.UserToSupply:
		return idx.recallSupplies(seedID, k)
	case model.SupplyToUser:
		return idx.recallUsers(seedID, k)
	default:
		return nil
	}
}

// recallSupplies expands from the user's preferred categories into matching
// supplies, then widens via co_viewed/complementary edges up to the hop
// limit for serendipitous candidates.
func (idx *Index) recallSupplies(userID string, k int) []string {
	user, ok := idx.users[userID]
	if !ok {
		return nil
	}

	seen := make(map[string]struct{})
	var frontier []string

	for _, cat := range user.PreferredCategories {
		for _, sid := range idx.byCategory[cat] {
			if _, dup := seen[sid]; !dup {
				seen[sid] = struct{}{}
				frontier = append(frontier, sid)
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	for hop := 0; hop < idx.cfg.HopLimit && len(seen) < idx.cfg.MaxNeighborhood; hop++ {
		var next []string
		for _, sid := range frontier {
			for _, adj := range [][]string{idx.coView[sid], idx.comp[sid]} {
				for _, nid := range adj {
					if _, dup := seen[nid]; dup {
						continue
					}
					seen[nid] = struct{}{}
					next = append(next, nid)
					if len(seen) >= idx.cfg.MaxNeighborhood {
						break
					}
				}
			}
		}
		frontier = next
	}

	candidates := make([]string, 0, len(seen))
	for sid := range seen {
		candidates = append(candidates, sid)
	}
	idx.sortSupplies(candidates)
	return truncate(candidates, k)
}

// recallUsers expands the seed supply into a bounded neighborhood via
// same_category/complementary edges, then maps to users whose history
// touched that neighborhood, ranked by touch depth.
func (idx *Index) recallUsers(supplyID string, k int) []string {
	if _, ok := idx.supplies[supplyID]; !ok {
		return nil
	}
	if len(idx.sameCat[supplyID]) == 0 && len(idx.comp[supplyID]) == 0 {
		// No edges: cold start.
		return nil
	}

	neighborhood := map[string]struct{}{supplyID: {}}
	frontier := []string{supplyID}
	for hop := 0; hop < idx.cfg.HopLimit && len(neighborhood) < idx.cfg.MaxNeighborhood; hop++ {
		var next []string
		for _, sid := range frontier {
			for _, adj := range [][]string{idx.sameCat[sid], idx.comp[sid]} {
				for _, nid := range adj {
					if _, dup := neighborhood[nid]; dup {
						continue
					}
					neighborhood[nid] = struct{}{}
					next = append(next, nid)
					if len(neighborhood) >= idx.cfg.MaxNeighborhood {
						break
					}
				}
			}
		}
		frontier = next
	}

	depth := make(map[string]int)
	for sid := range neighborhood {
		for uid, n := range idx.touches[sid] {
			depth[uid] += n
		}
	}

	candidates := make([]string, 0, len(depth))
	for uid := range depth {
		candidates = append(candidates, uid)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if depth[candidates[i]] != depth[candidates[j]] {
			return depth[candidates[i]] > depth[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})
	return truncate(candidates, k)
}

// sortSupplies orders candidate supplies by quality descending, then id
// ascending. This runs before truncation so the cut is deterministic.
func (idx *Index) sortSupplies(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		qi := idx.supplies[ids[i]].QualityScore
		qj := idx.supplies[ids[j]].QualityScore
		if qi != qj {
			return qi > qj
		}
		return ids[i] < ids[j]
	})
}

// Supply returns the catalog entry for a supply id.
func (idx *Index) Supply(id string) (model.SupplyItem, bool) {
	s, ok := idx.supplies[id]
	return s, ok
}

// User returns the population entry for a user id.
func (idx *Index) User(id string) (model.UserProfile, bool) {
	u, ok := idx.users[id]
	return u, ok
}

func truncate(ids []string, k int) []string {
	if len(ids) > k {
		return ids[:k]
	}
	return ids
}
