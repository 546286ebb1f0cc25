package domain

import (
	"math"
	"time"
)

const (
	// DefaultDecayRate is ln 2 per hour: retention halves every hour with
	// no access.
	DefaultDecayRate = 0.693

	// StrengthFloor is the asymptote of the decay curve. Items approach it
	// but never reach zero retention.
	StrengthFloor = 0.05

	// ReinstatementStrength is what a successful rescue restores an item to.
	ReinstatementStrength = 1.0
)

// Strength computes retention at elapsed time since last access:
//
//	max(floor, initial * e^(-rate' * hours))
//
// where rate' is the decay rate damped by accumulated resistance. Pure and
// stateless; callers recompute on every read.
func Strength(initial, rate, resistance float64, sinceAccess time.Duration) float64 {
	if initial <= 0 {
		initial = ReinstatementStrength
	}
	if rate <= 0 {
		rate = DefaultDecayRate
	}
	if resistance < 0 {
		resistance = 0
	}
	hours := sinceAccess.Hours()
	if hours < 0 {
		hours = 0
	}

	effective := rate / (1 + resistance)
	s := initial * math.Exp(-effective*hours)
	if s < StrengthFloor {
		return StrengthFloor
	}
	return s
}

// HalfLife returns the half-life implied by a decay rate and resistance.
func HalfLife(rate, resistance float64) time.Duration {
	if rate <= 0 {
		rate = DefaultDecayRate
	}
	if resistance < 0 {
		resistance = 0
	}
	hours := math.Ln2 / (rate / (1 + resistance))
	return time.Duration(hours * float64(time.Hour))
}
