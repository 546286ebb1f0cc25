package domain

import "time"

type UrgencyTier string

const (
	TierImminent UrgencyTier = "imminent"
	TierDue      UrgencyTier = "due"
	TierOverdue  UrgencyTier = "overdue"
	TierCritical UrgencyTier = "critical"
)

// Fixed tier boundaries over time since last access.
const (
	ImminentWindow = 4 * time.Hour
	DueWindow      = 24 * time.Hour
	OverdueWindow  = 72 * time.Hour
	CriticalWindow = 168 * time.Hour
)

// TierFor classifies time-since-access into an urgency tier. Monotone: more
// elapsed time never yields a less urgent tier.
func TierFor(sinceAccess time.Duration) UrgencyTier {
	switch {
	case sinceAccess <= ImminentWindow:
		return TierImminent
	case sinceAccess <= DueWindow:
		return TierDue
	case sinceAccess <= OverdueWindow:
		return TierOverdue
	default:
		return TierCritical
	}
}

// TierBehavior carries the per-tier planning parameters shared by the
// watchdog and the scheduler.
type TierBehavior struct {
	Tier UrgencyTier

	// TargetEffectiveness is an empirical planning heuristic, not a
	// guarantee of session outcome.
	TargetEffectiveness float64

	// CriticalStrength is the retention threshold below which the watchdog
	// emits a rescue request regardless of the tier window.
	CriticalStrength float64

	// Rank orders tiers by urgency; higher is more urgent. Promotion moves
	// up rank, never down.
	Rank int
}

var tierBehaviors = map[UrgencyTier]TierBehavior{
	TierImminent: {Tier: TierImminent, TargetEffectiveness: 0.70, CriticalStrength: 0.9, Rank: 0},
	TierDue:      {Tier: TierDue, TargetEffectiveness: 0.59, CriticalStrength: 0.7, Rank: 1},
	TierOverdue:  {Tier: TierOverdue, TargetEffectiveness: 0.45, CriticalStrength: 0.5, Rank: 2},
	TierCritical: {Tier: TierCritical, TargetEffectiveness: 0.25, CriticalStrength: 0.3, Rank: 3},
}

func GetTierBehavior(t UrgencyTier) TierBehavior {
	if b, ok := tierBehaviors[t]; ok {
		return b
	}
	return tierBehaviors[TierCritical]
}

func AllTiers() []UrgencyTier {
	return []UrgencyTier{TierImminent, TierDue, TierOverdue, TierCritical}
}

func ValidTier(t string) bool {
	switch UrgencyTier(t) {
	case TierImminent, TierDue, TierOverdue, TierCritical:
		return true
	}
	return false
}

// MoreUrgent reports whether a is strictly more urgent than b.
func MoreUrgent(a, b UrgencyTier) bool {
	return GetTierBehavior(a).Rank > GetTierBehavior(b).Rank
}
