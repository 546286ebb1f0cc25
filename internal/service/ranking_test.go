package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mnemolabs/reprime/internal/domain"
)

func TestScoreFragment_AffectRaisesEmotionalResonance(t *testing.T) {
	neutral := domain.Fragment{ID: uuid.New(), Type: domain.FragmentPhrase, Content: "the report was filed on a desk"}
	affective := domain.Fragment{ID: uuid.New(), Type: domain.FragmentEmotionalMarker, Content: "she cried with joy and felt proud"}

	n := ScoreFragment(neutral, nil)
	a := ScoreFragment(affective, nil)

	if a.EmotionalResonance <= n.EmotionalResonance {
		t.Fatalf("expected affective fragment to score higher resonance: %.2f vs %.2f",
			a.EmotionalResonance, n.EmotionalResonance)
	}
}

func TestScoreFragment_TemporalTermsRaiseAnchoring(t *testing.T) {
	anchored := domain.Fragment{ID: uuid.New(), Type: domain.FragmentContextualAnchor, Content: "yesterday morning before the winter trip"}
	floating := domain.Fragment{ID: uuid.New(), Type: domain.FragmentPhrase, Content: "a blue door near the garden wall"}

	a := ScoreFragment(anchored, nil)
	f := ScoreFragment(floating, nil)

	if a.TemporalAnchoring <= f.TemporalAnchoring {
		t.Fatalf("expected anchored fragment to score higher: %.2f vs %.2f",
			a.TemporalAnchoring, f.TemporalAnchoring)
	}
}

func TestScoreFragment_DuplicateLosesUniqueness(t *testing.T) {
	a := domain.Fragment{ID: uuid.New(), Type: domain.FragmentPhrase, Content: "climbing the lighthouse stairs"}
	b := domain.Fragment{ID: uuid.New(), Type: domain.FragmentPhrase, Content: "climbing the lighthouse stairs"}
	c := domain.Fragment{ID: uuid.New(), Type: domain.FragmentPhrase, Content: "a completely different memory cue"}
	siblings := []domain.Fragment{a, b, c}

	dup := ScoreFragment(a, siblings)
	distinct := ScoreFragment(c, siblings)

	if dup.Uniqueness >= distinct.Uniqueness {
		t.Fatalf("expected duplicate to lose uniqueness: %.2f vs %.2f",
			dup.Uniqueness, distinct.Uniqueness)
	}
}

func TestScoreFragment_WeightsSumToActivation(t *testing.T) {
	f := ScoreFragment(domain.Fragment{ID: uuid.New(), Type: domain.FragmentPhrase, Content: "last summer she laughed at the lighthouse"}, nil)

	want := 0.30*f.SemanticStrength + 0.25*f.EmotionalResonance + 0.20*f.TemporalAnchoring + 0.25*f.Uniqueness
	if diff := f.ActivationProbability - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("activation probability %.6f does not match weighted axes %.6f", f.ActivationProbability, want)
	}
	if f.ActivationProbability < 0 || f.ActivationProbability > 1 {
		t.Fatalf("activation probability out of range: %.2f", f.ActivationProbability)
	}
}

func TestRankFragments_PreferredTypesFirst(t *testing.T) {
	item := &domain.MemoryItem{
		Fragments: []domain.Fragment{
			{ID: uuid.New(), Type: domain.FragmentEmotionalMarker, Content: "felt terrified and alone"},
			{ID: uuid.New(), Type: domain.FragmentKeyword, Content: "lighthouse"},
			{ID: uuid.New(), Type: domain.FragmentPhrase, Content: "the spiral staircase creaked"},
		},
	}
	strategy, _ := domain.GetStrategy(domain.StrategyFragmentIntensive)

	ranked := RankFragments(item, strategy)
	if len(ranked) != 3 {
		t.Fatalf("expected all fragments kept, got %d", len(ranked))
	}
	// fragment-intensive prefers keywords and phrases; the emotional marker
	// must sort last but still be present.
	if ranked[len(ranked)-1].Type != domain.FragmentEmotionalMarker {
		t.Fatalf("expected non-preferred type at the tail, got %s", ranked[len(ranked)-1].Type)
	}
	for _, f := range ranked {
		if f.ActivationProbability == 0 {
			t.Fatalf("expected fragment %q to be scored", f.Content)
		}
	}
}

func TestRankCues_BlendedScoreOrdersWithinPreferred(t *testing.T) {
	strong := domain.ContextualCue{ID: uuid.New(), Type: domain.CueSemantic, Content: "a", Strength: 0.9}
	weak := domain.ContextualCue{ID: uuid.New(), Type: domain.CueSemantic, Content: "b", Strength: 0.1}
	item := &domain.MemoryItem{Cues: []domain.ContextualCue{weak, strong}}
	strategy, _ := domain.GetStrategy(domain.StrategyFragmentIntensive)

	ranked := RankCues(item, strategy)
	if ranked[0].ID != strong.ID {
		t.Fatalf("expected stronger cue first")
	}
}

func TestRankCues_HistoryOutweighsRawStrength(t *testing.T) {
	// 0.5 weight on strength vs 0.3 history + 0.2 preference: a cue type the
	// profile has learned to favor can overtake a modestly stronger cue.
	proven := domain.ContextualCue{ID: uuid.New(), Type: domain.CueTemporal, Content: "a", Strength: 0.55}
	raw := domain.ContextualCue{ID: uuid.New(), Type: domain.CueSemantic, Content: "b", Strength: 0.6}
	item := &domain.MemoryItem{
		Cues: []domain.ContextualCue{raw, proven},
		Profile: domain.ResponseProfile{
			CueTypeSuccess:    map[domain.CueType]float64{domain.CueTemporal: 0.95, domain.CueSemantic: 0.2},
			PreferredCueTypes: map[domain.CueType]float64{domain.CueTemporal: 0.9, domain.CueSemantic: 0.2},
		},
	}
	strategy, _ := domain.GetStrategy(domain.StrategyComprehensiveRecovery)

	ranked := RankCues(item, strategy)
	if ranked[0].ID != proven.ID {
		t.Fatalf("expected historically successful cue type first")
	}
}
