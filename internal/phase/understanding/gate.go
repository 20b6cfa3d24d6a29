package understanding

import (
	"cmp"
	"slices"

	"github.com/dotcommander/architect/internal/domain/conversation"
)

// DefaultReadyThreshold is the overall score at which structure generation
// may begin.
const DefaultReadyThreshold = 80

// Gate decides when a conversation has gathered enough to hand off to the
// architect pipeline.
type Gate struct {
	Threshold int
}

func NewGate(threshold int) Gate {
	if threshold <= 0 {
		threshold = DefaultReadyThreshold
	}
	return Gate{Threshold: threshold}
}

// Ready reports whether the conversation is complete or its overall score
// has reached the threshold.
func (g Gate) Ready(c conversation.Context) bool {
	return c.Phase == conversation.PhaseComplete || c.OverallUnderstanding >= g.Threshold
}

// Missing lists the dimensions still below the threshold, weakest first.
func (g Gate) Missing(c conversation.Context) []string {
	type dim struct {
		name  string
		value int
	}
	m := c.Understanding
	dims := []dim{
		{"coreConcept", m.CoreConcept},
		{"requirements", m.Requirements},
		{"technical", m.Technical},
		{"constraints", m.Constraints},
		{"userContext", m.UserContext},
	}

	dims = slices.DeleteFunc(dims, func(d dim) bool { return d.value >= g.Threshold })
	slices.SortStableFunc(dims, func(a, b dim) int { return cmp.Compare(a.value, b.value) })

	out := make([]string, 0, len(dims))
	for _, d := range dims {
		out = append(out, d.name)
	}
	return out
}
