package model

// RelationType classifies a supply-relation edge.
type RelationType string

const (
	// RelationSameCategory links supplies sharing a category. Undirected.
	RelationSameCategory RelationType = "same_category"
	// RelationCoViewed links supplies exposed together. Directed.
	RelationCoViewed RelationType = "co_viewed"
	// RelationComplementary links supplies across categories that tend to
	// pair. Directed.
	RelationComplementary RelationType = "complementary"
)

// Directed reports whether edges of this type carry direction.
func (t RelationType) Directed() bool {
	return t != RelationSameCategory
}

// RelationEdge is one edge in the supply-relation graph. Built once at
// generation time; read-only afterwards.
type RelationEdge struct {
	Src  string       `json:"src_supply_id"`
	Dst  string       `json:"dst_supply_id"`
	Type RelationType `json:"relation_type"`
}
