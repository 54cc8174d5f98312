package model

// EventType identifies the kind of user/supply interaction.
type EventType string

const (
	EventImpression EventType = "impression"
	EventClick      EventType = "click"
	EventConvert    EventType = "convert"
	EventReject     EventType = "reject"
)

// eventWeights are the fixed per-type aggregation weights. Impressions carry
// a small positive signal, rejects a negative one.
var eventWeights = map[EventType]float64{
	EventImpression: 0.1,
	EventClick:      1.0,
	EventConvert:    3.0,
	EventReject:     -1.0,
}

// Weight returns the aggregation weight for the event type. Unknown types
// weigh zero.
func (t EventType) Weight() float64 {
	return eventWeights[t]
}

// Valid reports whether the type is one of the four known event types.
func (t EventType) Valid() bool {
	_, ok := eventWeights[t]
	return ok
}

// InteractionEvent is one immutable entry in the append-only event log.
// Timestamp is a logical tick, strictly increasing across the log.
type InteractionEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SupplyID  string    `json:"supply_id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
}

// Weight returns the aggregation weight of the event.
func (e InteractionEvent) Weight() float64 {
	return e.Type.Weight()
}
