package background

import "github.com/talgya/ascendant/internal/entities"

// CollectRelationEvolutionPairs runs the selection step of phase 8 (spec
// §4.2.8): collects unordered pairs (A,B) whose interaction counter is >=
// threshold, deduped, then resets both sides' counters and increments
// checked_times. Returns the pairs for the relation resolver to process.
func CollectRelationEvolutionPairs(living []*entities.Avatar, threshold int) [][2]*entities.Avatar {
	byID := make(map[string]*entities.Avatar, len(living))
	for _, a := range living {
		byID[a.ID] = a
	}

	seen := make(map[string]bool)
	var pairs [][2]*entities.Avatar

	for _, a := range living {
		for otherID, st := range a.InteractionStates {
			if st.Count < threshold {
				continue
			}
			b, ok := byID[otherID]
			if !ok {
				continue
			}
			key := pairKeySorted(a.ID, b.ID)
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, [2]*entities.Avatar{a, b})
		}
	}

	for _, pair := range pairs {
		a, b := pair[0], pair[1]
		stA := a.InteractionState(b.ID)
		stA.Count = 0
		stA.CheckedTimes++
		stB := b.InteractionState(a.ID)
		stB.Count = 0
		stB.CheckedTimes++
	}

	return pairs
}
