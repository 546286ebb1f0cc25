package domain

import (
	"time"

	"github.com/google/uuid"
)

type FragmentType string

const (
	FragmentKeyword          FragmentType = "keyword"
	FragmentPhrase           FragmentType = "phrase"
	FragmentEmotionalMarker  FragmentType = "emotional-marker"
	FragmentContextualAnchor FragmentType = "contextual-anchor"
)

func ValidFragmentType(t string) bool {
	switch FragmentType(t) {
	case FragmentKeyword, FragmentPhrase, FragmentEmotionalMarker, FragmentContextualAnchor:
		return true
	}
	return false
}

// Fragment is a ranked partial excerpt of an item's content used as a recall
// aid. Fragments are immutable once extracted; only their computed scores are
// refreshed when a priming session re-ranks them.
type Fragment struct {
	ID      uuid.UUID    `json:"id"`
	Type    FragmentType `json:"type"`
	Content string       `json:"content"`

	SemanticStrength      float64 `json:"semantic_strength"`
	EmotionalResonance    float64 `json:"emotional_resonance"`
	TemporalAnchoring     float64 `json:"temporal_anchoring"`
	Uniqueness            float64 `json:"uniqueness"`
	ActivationProbability float64 `json:"activation_probability"`
}

type CueType string

const (
	CueTemporal      CueType = "temporal"
	CueSemantic      CueType = "semantic"
	CueEmotional     CueType = "emotional"
	CueEnvironmental CueType = "environmental"
)

func ValidCueType(t string) bool {
	switch CueType(t) {
	case CueTemporal, CueSemantic, CueEmotional, CueEnvironmental:
		return true
	}
	return false
}

func AllCueTypes() []CueType {
	return []CueType{CueTemporal, CueSemantic, CueEmotional, CueEnvironmental}
}

// ContextualCue is a typed, scored signal associated with an item. Cues may
// be re-ranked over time but are only removed by an explicit purge upstream.
type ContextualCue struct {
	ID       uuid.UUID `json:"id"`
	Type     CueType   `json:"type"`
	Content  string    `json:"content"`
	Strength float64   `json:"strength"`
}

// ResponseProfile is the per-item learned picture of how its owner responds
// to priming. Updated after every completed session.
type ResponseProfile struct {
	PreferredCueTypes   map[CueType]float64      `json:"preferred_cue_types,omitempty"`
	CueTypeSuccess      map[CueType]float64      `json:"cue_type_success,omitempty"`
	StrategySuccess     map[StrategyName]float64 `json:"strategy_success,omitempty"`
	RecallSuccessRate   float64                  `json:"recall_success_rate"`
	OptimalSpacingHours float64                  `json:"optimal_spacing_hours"`
	SessionCount        int                      `json:"session_count"`
}

// CuePreference returns the learned preference score for a cue type in [0,1].
func (p ResponseProfile) CuePreference(t CueType) float64 {
	if v, ok := p.PreferredCueTypes[t]; ok {
		return v
	}
	return 0.5
}

// CueSuccessRate returns the historical success rate for a cue type in [0,1].
func (p ResponseProfile) CueSuccessRate(t CueType) float64 {
	if v, ok := p.CueTypeSuccess[t]; ok {
		return v
	}
	return 0.5
}

// StrategyRate returns the historical success rate for a strategy in [0,1].
func (p ResponseProfile) StrategyRate(s StrategyName) float64 {
	if v, ok := p.StrategySuccess[s]; ok {
		return v
	}
	return 0.5
}

// MemoryItem is the unit under management. The engine never originates item
// content; it only annotates decay and rescue state.
type MemoryItem struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Content   string          `json:"content"`
	Embedding []float32       `json:"-"`
	Fragments []Fragment      `json:"fragments,omitempty"`
	Cues      []ContextualCue `json:"cues,omitempty"`

	InitialStrength  float64   `json:"initial_strength"`
	DecayRate        float64   `json:"decay_rate"`
	DecayResistance  float64   `json:"decay_resistance"`
	LastAccessedAt   time.Time `json:"last_accessed_at"`
	RetrievalCount   int       `json:"retrieval_count"`
	FailedRetrievals int       `json:"failed_retrievals"`

	RequiresIntervention bool         `json:"requires_intervention"`
	NextInterventionAt   *time.Time   `json:"next_intervention_at,omitempty"`
	Urgency              UrgencyTier  `json:"urgency"`
	LastStrategy         StrategyName `json:"last_strategy,omitempty"`

	Profile  ResponseProfile `json:"profile"`
	Archived bool            `json:"archived"`
}

// CurrentStrength recomputes retention strength at the given instant. Never
// cached: every read that crosses a time boundary recomputes.
func (m *MemoryItem) CurrentStrength(now time.Time) float64 {
	return Strength(m.InitialStrength, m.DecayRate, m.DecayResistance, now.Sub(m.LastAccessedAt))
}

// CurrentTier classifies the item's urgency from time since last access.
func (m *MemoryItem) CurrentTier(now time.Time) UrgencyTier {
	return TierFor(now.Sub(m.LastAccessedAt))
}

// UrgencyScore folds strength and failure history into a single [0,1] score
// used for batch prioritization. Strength already accounts for elapsed time,
// decay rate and resistance.
func (m *MemoryItem) UrgencyScore(now time.Time) float64 {
	score := 1 - m.CurrentStrength(now) + 0.05*float64(m.FailedRetrievals)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Primable reports whether the item carries any signal to prime with.
func (m *MemoryItem) Primable() bool {
	return len(m.Fragments) > 0 || len(m.Cues) > 0
}
