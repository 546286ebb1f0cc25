package service

import (
	"sort"
	"strings"

	"github.com/mnemolabs/reprime/internal/domain"
)

// Weights for the four fragment scoring axes.
const (
	semanticWeight   = 0.30
	emotionalWeight  = 0.25
	temporalWeight   = 0.20
	uniquenessWeight = 0.25
)

// Cue ranking blends raw strength, historical per-type success, and the
// item's learned preference for the modality.
const (
	cueStrengthWeight   = 0.50
	cueHistoryWeight    = 0.30
	cuePreferenceWeight = 0.20
)

// Affect-bearing terms used for the emotional resonance axis. Coverage is
// deliberately coarse; the axis only needs to separate affect-laden
// fragments from neutral ones.
var affectTerms = map[string]struct{}{
	"love": {}, "hate": {}, "fear": {}, "joy": {}, "happy": {}, "sad": {},
	"angry": {}, "anger": {}, "afraid": {}, "proud": {}, "shame": {},
	"ashamed": {}, "excited": {}, "anxious": {}, "grief": {}, "hope": {},
	"lonely": {}, "warm": {}, "hurt": {}, "cried": {}, "laughed": {},
	"smiled": {}, "terrified": {}, "delighted": {}, "miss": {}, "missed": {},
}

// Time-referencing terms used for the temporal anchoring axis.
var temporalTerms = map[string]struct{}{
	"yesterday": {}, "today": {}, "tomorrow": {}, "morning": {}, "evening": {},
	"night": {}, "noon": {}, "week": {}, "month": {}, "year": {}, "summer": {},
	"winter": {}, "spring": {}, "autumn": {}, "fall": {}, "birthday": {},
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {}, "friday": {},
	"saturday": {}, "sunday": {}, "before": {}, "after": {}, "during": {},
	"ago": {}, "when": {}, "first": {}, "last": {},
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	return fields
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// lexicalDiversity is the semantic strength axis: distinct tokens over total
// tokens.
func lexicalDiversity(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	return float64(len(tokenSet(tokens))) / float64(len(tokens))
}

// lexiconDensity scores how saturated the token stream is with terms from a
// lexicon, scaled so a handful of hits in a short fragment reaches 1.0.
func lexiconDensity(tokens []string, lexicon map[string]struct{}) float64 {
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, t := range tokens {
		if _, ok := lexicon[t]; ok {
			hits++
		}
	}
	d := 4 * float64(hits) / float64(len(tokens))
	if d > 1 {
		return 1
	}
	return d
}

// jaccard computes token-set overlap between two fragments.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ScoreFragment computes the four axes and the combined activation
// probability for one fragment against its siblings. Pure; does not mutate
// the input.
func ScoreFragment(f domain.Fragment, siblings []domain.Fragment) domain.Fragment {
	tokens := tokenize(f.Content)
	set := tokenSet(tokens)

	maxOverlap := 0.0
	for _, sib := range siblings {
		if sib.ID == f.ID {
			continue
		}
		if o := jaccard(set, tokenSet(tokenize(sib.Content))); o > maxOverlap {
			maxOverlap = o
		}
	}

	f.SemanticStrength = lexicalDiversity(tokens)
	f.EmotionalResonance = lexiconDensity(tokens, affectTerms)
	f.TemporalAnchoring = lexiconDensity(tokens, temporalTerms)
	f.Uniqueness = 1 - maxOverlap
	f.ActivationProbability = semanticWeight*f.SemanticStrength +
		emotionalWeight*f.EmotionalResonance +
		temporalWeight*f.TemporalAnchoring +
		uniquenessWeight*f.Uniqueness
	return f
}

// RankFragments scores and orders an item's fragments for presentation under
// the given strategy: preferred fragment types first, then by descending
// activation probability. Fragments of non-preferred types are kept at the
// tail rather than dropped, so late stages can still reveal them.
func RankFragments(item *domain.MemoryItem, strategy domain.Strategy) []domain.Fragment {
	ranked := make([]domain.Fragment, 0, len(item.Fragments))
	for _, f := range item.Fragments {
		ranked = append(ranked, ScoreFragment(f, item.Fragments))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := strategy.WantsFragment(ranked[i].Type), strategy.WantsFragment(ranked[j].Type)
		if pi != pj {
			return pi
		}
		return ranked[i].ActivationProbability > ranked[j].ActivationProbability
	})
	return ranked
}

// CueScore blends a cue's raw strength with the item's learned history for
// its modality.
func CueScore(cue domain.ContextualCue, profile domain.ResponseProfile) float64 {
	return cueStrengthWeight*cue.Strength +
		cueHistoryWeight*profile.CueSuccessRate(cue.Type) +
		cuePreferenceWeight*profile.CuePreference(cue.Type)
}

// RankCues orders an item's cues for presentation under the given strategy.
// Preferred modalities sort ahead of the rest; within a group, higher blended
// score first.
func RankCues(item *domain.MemoryItem, strategy domain.Strategy) []domain.ContextualCue {
	ranked := make([]domain.ContextualCue, len(item.Cues))
	copy(ranked, item.Cues)

	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := strategy.WantsCue(ranked[i].Type), strategy.WantsCue(ranked[j].Type)
		if pi != pj {
			return pi
		}
		return CueScore(ranked[i], item.Profile) > CueScore(ranked[j], item.Profile)
	})
	return ranked
}
