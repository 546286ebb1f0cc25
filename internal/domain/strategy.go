package domain

import "time"

type StrategyName string

const (
	StrategyGentleContextual        StrategyName = "gentle-contextual"
	StrategyFragmentIntensive       StrategyName = "fragment-intensive"
	StrategyMultimodalReconstruction StrategyName = "multimodal-reconstruction"
	StrategyComprehensiveRecovery   StrategyName = "comprehensive-recovery"
)

func ValidStrategy(s string) bool {
	switch StrategyName(s) {
	case StrategyGentleContextual, StrategyFragmentIntensive,
		StrategyMultimodalReconstruction, StrategyComprehensiveRecovery:
		return true
	}
	return false
}

// SuccessCriteria is what a stage response must meet for the session to
// terminate successfully at that stage.
type SuccessCriteria struct {
	MinRecognition  float64       `json:"min_recognition"`
	MaxResponseTime time.Duration `json:"max_response_time"`
	MinConfidence   float64       `json:"min_confidence"`
}

// Strategy describes one of the four named intervention strategies. Strategy
// choice is keyed solely by urgency tier.
type Strategy struct {
	Name                StrategyName   `json:"name"`
	EffectivenessRating float64        `json:"effectiveness_rating"`
	FragmentTypes       []FragmentType `json:"fragment_types"`
	CueTypes            []CueType      `json:"cue_types"`
	Criteria            SuccessCriteria `json:"criteria"`
}

var strategies = map[StrategyName]Strategy{
	StrategyGentleContextual: {
		Name:                StrategyGentleContextual,
		EffectivenessRating: 0.70,
		FragmentTypes:       []FragmentType{FragmentContextualAnchor, FragmentPhrase},
		CueTypes:            []CueType{CueTemporal, CueEnvironmental},
		Criteria:            SuccessCriteria{MinRecognition: 0.3, MaxResponseTime: 8 * time.Second, MinConfidence: 0.4},
	},
	StrategyFragmentIntensive: {
		Name:                StrategyFragmentIntensive,
		EffectivenessRating: 0.59,
		FragmentTypes:       []FragmentType{FragmentKeyword, FragmentPhrase},
		CueTypes:            []CueType{CueSemantic, CueTemporal},
		Criteria:            SuccessCriteria{MinRecognition: 0.4, MaxResponseTime: 10 * time.Second, MinConfidence: 0.5},
	},
	StrategyMultimodalReconstruction: {
		Name:                StrategyMultimodalReconstruction,
		EffectivenessRating: 0.45,
		FragmentTypes:       []FragmentType{FragmentPhrase, FragmentEmotionalMarker, FragmentContextualAnchor},
		CueTypes:            []CueType{CueSemantic, CueEmotional, CueEnvironmental},
		Criteria:            SuccessCriteria{MinRecognition: 0.5, MaxResponseTime: 12 * time.Second, MinConfidence: 0.55},
	},
	StrategyComprehensiveRecovery: {
		Name:                StrategyComprehensiveRecovery,
		EffectivenessRating: 0.25,
		FragmentTypes:       []FragmentType{FragmentKeyword, FragmentPhrase, FragmentEmotionalMarker, FragmentContextualAnchor},
		CueTypes:            AllCueTypes(),
		Criteria:            SuccessCriteria{MinRecognition: 0.6, MaxResponseTime: 15 * time.Second, MinConfidence: 0.6},
	},
}

var tierStrategy = map[UrgencyTier]StrategyName{
	TierImminent: StrategyGentleContextual,
	TierDue:      StrategyFragmentIntensive,
	TierOverdue:  StrategyMultimodalReconstruction,
	TierCritical: StrategyComprehensiveRecovery,
}

// StrategyForTier maps an urgency tier to its intervention strategy.
func StrategyForTier(t UrgencyTier) Strategy {
	return strategies[tierStrategy[t]]
}

func GetStrategy(name StrategyName) (Strategy, bool) {
	s, ok := strategies[name]
	return s, ok
}

// strategyOrder is the escalation ladder, gentlest first.
var strategyOrder = []StrategyName{
	StrategyGentleContextual,
	StrategyFragmentIntensive,
	StrategyMultimodalReconstruction,
	StrategyComprehensiveRecovery,
}

// StrategyRank returns the strategy's position on the escalation ladder.
func StrategyRank(name StrategyName) int {
	for i, n := range strategyOrder {
		if n == name {
			return i
		}
	}
	return len(strategyOrder) - 1
}

// EscalatedStrategy returns the strategy one tier more urgent than the given
// one. Used when retrying timed-out sessions.
func EscalatedStrategy(name StrategyName) Strategy {
	for i, n := range strategyOrder {
		if n == name && i+1 < len(strategyOrder) {
			return strategies[strategyOrder[i+1]]
		}
	}
	return strategies[StrategyComprehensiveRecovery]
}

// WantsFragment reports whether the strategy presents fragments of the given
// type.
func (s Strategy) WantsFragment(t FragmentType) bool {
	for _, ft := range s.FragmentTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// WantsCue reports whether the strategy presents cues of the given modality.
func (s Strategy) WantsCue(t CueType) bool {
	for _, ct := range s.CueTypes {
		if ct == t {
			return true
		}
	}
	return false
}
