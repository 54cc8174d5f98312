package synth

import (
	"fmt"
	"math/rand"

	"github.com/rotisserie/eris"

	"github.com/offerloop/matching-cli/internal/model"
)

// Simulate produces a synthetic interaction log over the generated
// entities. It is a pure function over its inputs plus the seed: the same
// arguments always yield the same time-ordered event sequence. Timestamps
// are logical ticks, strictly increasing per event.
func Simulate(supplies []model.SupplyItem, users []model.UserProfile, seed int64, nEvents int) ([]model.InteractionEvent, error) {
	if len(supplies) == 0 || len(users) == 0 {
		return nil, eris.Wrap(ErrInvalidConfiguration, "synth: simulate needs at least one supply and one user")
	}
	if nEvents < 0 {
		return nil, eris.Wrapf(ErrInvalidConfiguration, "synth: n_events=%d", nEvents)
	}

	rng := rand.New(rand.NewSource(seed))
	events := make([]model.InteractionEvent, 0, nEvents)

	for i := 0; i < nEvents; i++ {
		user := users[rng.Intn(len(users))]
		supply := sampleSupply(rng, user, supplies)

		events = append(events, model.InteractionEvent{
			ID:        fmt.Sprintf("evt_%06d", i),
			UserID:    user.ID,
			SupplyID:  supply.ID,
			Type:      sampleEventType(rng, user, supply),
			Timestamp: int64(i + 1),
		})
	}

	return events, nil
}

// sampleSupply draws a supply weighted by the user's category preferences
// and the supply's quality score. This is the only place randomness touches
// the data model, and it runs through the caller-seeded generator.
func sampleSupply(rng *rand.Rand, user model.UserProfile, supplies []model.SupplyItem) model.SupplyItem {
	weights := make([]float64, len(supplies))
	var total float64
	for i, s := range supplies {
		w := 1 + 2*s.QualityScore
		if user.Prefers(s.Category) {
			w += 3
		}
		weights[i] = w
		total += w
	}

	target := rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target <= 0 {
			return supplies[i]
		}
	}
	return supplies[len(supplies)-1]
}

// sampleEventType walks the interaction funnel: every exposure is at least
// an impression; affinity and quality push it toward click then convert,
// while a risk mismatch opens a reject branch.
func sampleEventType(rng *rand.Rand, user model.UserProfile, supply model.SupplyItem) model.EventType {
	if supply.RiskLevel.Exceeds(user.RiskTolerance) && rng.Float64() < 0.5 {
		return model.EventReject
	}

	clickP := 0.15 + 0.4*supply.QualityScore
	if user.Prefers(supply.Category) {
		clickP += 0.2
	}
	if rng.Float64() >= clickP {
		return model.EventImpression
	}

	convertP := 0.1 + 0.3*supply.QualityScore
	if rng.Float64() < convertP {
		return model.EventConvert
	}
	return model.EventClick
}

// AttachHistory returns a copy of the user population with each profile's
// history filled from the event log, preserving log order.
func AttachHistory(users []model.UserProfile, events []model.InteractionEvent) []model.UserProfile {
	byUser := make(map[string][]string, len(users))
	for _, e := range events {
		byUser[e.UserID] = append(byUser[e.UserID], e.ID)
	}

	out := make([]model.UserProfile, len(users))
	for i, u := range users {
		out[i] = u
		out[i].History = byUser[u.ID]
	}
	return out
}

// SplitHoldout partitions the log into train and held-out segments by
// timestamp, keeping the most recent fraction for offline evaluation.
func SplitHoldout(events []model.InteractionEvent, holdoutFraction float64) (train, heldOut []model.InteractionEvent) {
	if holdoutFraction <= 0 || len(events) == 0 {
		return events, nil
	}
	if holdoutFraction >= 1 {
		return nil, events
	}
	cut := len(events) - int(float64(len(events))*holdoutFraction)
	return events[:cut], events[cut:]
}
