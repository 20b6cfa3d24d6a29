package conversation

import "fmt"

// Phase is the discrete stage of conversational progress. Phases only move
// forward.
type Phase string

const (
	PhaseInitial       Phase = "initial"
	PhaseRequirements  Phase = "requirements"
	PhaseClarification Phase = "clarification"
	PhaseComplete      Phase = "complete"
)

var phaseOrder = map[Phase]int{
	PhaseInitial:       0,
	PhaseRequirements:  1,
	PhaseClarification: 2,
	PhaseComplete:      3,
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// Before reports whether p comes strictly before other.
func (p Phase) Before(other Phase) bool {
	return phaseOrder[p] < phaseOrder[other]
}

// Advance returns the phase that follows from p when next is suggested.
// Unknown or backward suggestions leave p unchanged.
func (p Phase) Advance(next Phase) Phase {
	if !next.Valid() {
		return p
	}
	if !p.Valid() || p.Before(next) {
		return next
	}
	return p
}

// Message is one utterance in a conversation turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Metrics holds the five understanding dimensions, each in [0,100].
type Metrics struct {
	CoreConcept  int `json:"coreConcept"`
	Requirements int `json:"requirements"`
	Technical    int `json:"technical"`
	Constraints  int `json:"constraints"`
	UserContext  int `json:"userContext"`
}

// Dimension weights in hundredths.
const (
	WeightCoreConcept  = 30
	WeightRequirements = 25
	WeightTechnical    = 20
	WeightConstraints  = 15
	WeightUserContext  = 10
)

// Overall returns the weighted understanding score rounded to the nearest
// integer.
func (m Metrics) Overall() int {
	sum := m.CoreConcept*WeightCoreConcept +
		m.Requirements*WeightRequirements +
		m.Technical*WeightTechnical +
		m.Constraints*WeightConstraints +
		m.UserContext*WeightUserContext
	return (sum + 50) / 100
}

// Merge combines prior metrics with newly asserted ones. Each asserted value
// is clamped to [0,100] and the result never drops below the prior value.
func Merge(prior, asserted Metrics) Metrics {
	return Metrics{
		CoreConcept:  max(prior.CoreConcept, clamp(asserted.CoreConcept)),
		Requirements: max(prior.Requirements, clamp(asserted.Requirements)),
		Technical:    max(prior.Technical, clamp(asserted.Technical)),
		Constraints:  max(prior.Constraints, clamp(asserted.Constraints)),
		UserContext:  max(prior.UserContext, clamp(asserted.UserContext)),
	}
}

func clamp(v int) int {
	return min(max(v, 0), 100)
}

func (m Metrics) String() string {
	return fmt.Sprintf("core=%d requirements=%d technical=%d constraints=%d user=%d",
		m.CoreConcept, m.Requirements, m.Technical, m.Constraints, m.UserContext)
}

// ExtractedInfo accumulates facts gathered across turns. Append-only,
// duplicates permitted.
type ExtractedInfo struct {
	Requirements     []string `json:"requirements"`
	TechnicalDetails []string `json:"technicalDetails"`
}

// Context is the long-lived state of one conversation
type Context struct {
	Phase                Phase         `json:"phase"`
	ExtractedInfo        ExtractedInfo `json:"extractedInfo"`
	Understanding        Metrics       `json:"understanding"`
	OverallUnderstanding int           `json:"overallUnderstanding"`
}

// NewContext returns a fresh conversation in the initial phase.
func NewContext() Context {
	return Context{Phase: PhaseInitial}
}

// TurnResult is what one understanding turn produced
type TurnResult struct {
	ResponseText        string   `json:"responseText"`
	NewRequirements     []string `json:"newRequirements"`
	NewTechnicalDetails []string `json:"newTechnicalDetails"`
	Phase               Phase    `json:"phase"`
	Understanding       Metrics  `json:"understanding"`
	Overall             int      `json:"overall"`
}

// Apply folds a completed turn into the context.
func (c *Context) Apply(r *TurnResult) {
	c.ExtractedInfo.Requirements = append(c.ExtractedInfo.Requirements, r.NewRequirements...)
	c.ExtractedInfo.TechnicalDetails = append(c.ExtractedInfo.TechnicalDetails, r.NewTechnicalDetails...)
	c.Phase = c.Phase.Advance(r.Phase)
	c.Understanding = Merge(c.Understanding, r.Understanding)
	c.OverallUnderstanding = c.Understanding.Overall()
}

// Reset returns the context to its initial state.
func (c *Context) Reset() {
	*c = NewContext()
}
