package domain

import (
	"math"
	"testing"
	"time"
)

func TestStrength_HalfLifeExample(t *testing.T) {
	// decay_rate = 0.693 means a one-hour half-life: strength ~0.5 at t=1h.
	s := Strength(1.0, DefaultDecayRate, 0, time.Hour)
	if math.Abs(s-0.5) > 0.01 {
		t.Errorf("Strength(1h) = %v, want ~0.5", s)
	}
}

func TestStrength_MonotonicDecay(t *testing.T) {
	prev := math.Inf(1)
	for _, hours := range []float64{0, 0.5, 1, 2, 4, 24, 72, 168, 1000} {
		s := Strength(1.0, DefaultDecayRate, 0, time.Duration(hours*float64(time.Hour)))
		if s > prev {
			t.Errorf("strength increased over time: %v at %vh (prev %v)", s, hours, prev)
		}
		prev = s
	}
}

func TestStrength_FloorProperty(t *testing.T) {
	for _, hours := range []float64{0, 10, 100, 1e6} {
		s := Strength(1.0, DefaultDecayRate, 0, time.Duration(hours*float64(time.Hour)))
		if s < StrengthFloor {
			t.Errorf("strength %v below floor at %vh", s, hours)
		}
	}

	// Limit: far past any half-life the curve sits on the floor.
	s := Strength(1.0, DefaultDecayRate, 0, 100000*time.Hour)
	if s != StrengthFloor {
		t.Errorf("strength at t->inf = %v, want floor %v", s, StrengthFloor)
	}
}

func TestStrength_ResistanceSlowsDecay(t *testing.T) {
	plain := Strength(1.0, DefaultDecayRate, 0, 2*time.Hour)
	resistant := Strength(1.0, DefaultDecayRate, 1.0, 2*time.Hour)
	if resistant <= plain {
		t.Errorf("resistance should slow decay: resistant=%v plain=%v", resistant, plain)
	}
}

func TestStrength_Defaults(t *testing.T) {
	// Zero rate and zero initial fall back to the defaults rather than
	// producing a flat or empty curve.
	s := Strength(0, 0, 0, time.Hour)
	if math.Abs(s-0.5) > 0.01 {
		t.Errorf("defaulted Strength(1h) = %v, want ~0.5", s)
	}
}

func TestHalfLife(t *testing.T) {
	hl := HalfLife(DefaultDecayRate, 0)
	if hl < 59*time.Minute || hl > 61*time.Minute {
		t.Errorf("HalfLife(0.693) = %v, want ~1h", hl)
	}

	// Resistance 1 doubles the half-life.
	hl2 := HalfLife(DefaultDecayRate, 1)
	if hl2 < 2*hl-time.Minute || hl2 > 2*hl+time.Minute {
		t.Errorf("HalfLife with resistance 1 = %v, want ~%v", hl2, 2*hl)
	}
}

func TestMemoryItem_CurrentStrengthRecomputed(t *testing.T) {
	now := time.Now()
	item := &MemoryItem{
		InitialStrength: 1.0,
		DecayRate:       DefaultDecayRate,
		LastAccessedAt:  now.Add(-1 * time.Hour),
	}

	s1 := item.CurrentStrength(now)
	s2 := item.CurrentStrength(now.Add(time.Hour))
	if s2 >= s1 {
		t.Errorf("strength must decrease across a time boundary: %v then %v", s1, s2)
	}
}

func TestMemoryItem_UrgencyScore(t *testing.T) {
	now := time.Now()
	fresh := &MemoryItem{InitialStrength: 1.0, DecayRate: DefaultDecayRate, LastAccessedAt: now}
	stale := &MemoryItem{InitialStrength: 1.0, DecayRate: DefaultDecayRate, LastAccessedAt: now.Add(-24 * time.Hour)}

	if fresh.UrgencyScore(now) >= stale.UrgencyScore(now) {
		t.Error("stale item should score more urgent than fresh item")
	}

	failed := &MemoryItem{InitialStrength: 1.0, DecayRate: DefaultDecayRate, LastAccessedAt: now.Add(-24 * time.Hour), FailedRetrievals: 3}
	if failed.UrgencyScore(now) <= stale.UrgencyScore(now) {
		t.Error("failed retrievals should bump urgency")
	}

	if failed.UrgencyScore(now) > 1 {
		t.Errorf("urgency score must be clamped to 1, got %v", failed.UrgencyScore(now))
	}
}
