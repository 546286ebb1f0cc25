package domain

import (
	"time"

	"github.com/google/uuid"
)

type StageName string

// Progressive revelation stages, in fixed order. A session never presents a
// later stage before an earlier one.
const (
	StageMinimalCue      StageName = "minimal-cue"
	StagePartialFragment StageName = "partial-fragment"
	StageContextualHint  StageName = "contextual-hint"
	StageDirectPrompt    StageName = "direct-prompt"
)

// StageOrder is the canonical revelation sequence.
var StageOrder = []StageName{
	StageMinimalCue,
	StagePartialFragment,
	StageContextualHint,
	StageDirectPrompt,
}

// StageParams are the tunable knobs of a single stage. Adaptive mode derives
// the next stage's params as a pure function of the previous result.
type StageParams struct {
	Stage                 StageName     `json:"stage"`
	ExpectedEffectiveness float64       `json:"expected_effectiveness"`
	TimeBudget            time.Duration `json:"time_budget"`
	RevealFraction        float64       `json:"reveal_fraction"`
	Criteria              SuccessCriteria `json:"criteria"`
}

// Stimulus is what a stage presents to the responder.
type Stimulus struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Stage    StageName       `json:"stage"`
	Strategy StrategyName    `json:"strategy"`
	Cues     []ContextualCue `json:"cues,omitempty"`
	Fragment string          `json:"fragment,omitempty"`
}

// StageResponse is the observed reaction to a stimulus, live or simulated.
type StageResponse struct {
	Recognition  float64       `json:"recognition"`
	Confidence   float64       `json:"confidence"`
	ResponseTime time.Duration `json:"response_time"`
	Interference bool          `json:"interference"`
}

// StageResult pairs the stage as presented with the observed response.
type StageResult struct {
	Params   StageParams   `json:"params"`
	Response StageResponse `json:"response"`
	Success  bool          `json:"success"`
}

type SessionOutcome string

const (
	OutcomeSuccess  SessionOutcome = "success"
	OutcomeFailed   SessionOutcome = "failed"
	OutcomeTimedOut SessionOutcome = "timed_out"
)

// SessionResult is the full record of one priming session.
type SessionResult struct {
	ItemID        uuid.UUID      `json:"item_id"`
	Strategy      StrategyName   `json:"strategy"`
	Tier          UrgencyTier    `json:"tier"`
	Stages        []StageResult  `json:"stages"`
	Outcome       SessionOutcome `json:"outcome"`
	Effectiveness float64        `json:"effectiveness"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration"`
}

// RescueRequest is what the watchdog hands the scheduler for one item.
type RescueRequest struct {
	ItemID       uuid.UUID   `json:"item_id"`
	Tier         UrgencyTier `json:"tier"`
	UrgencyScore float64     `json:"urgency_score"`
	SinceAccess  time.Duration `json:"since_access"`
	EnqueuedAt   time.Time   `json:"enqueued_at"`
}

// SessionFeedback flows from completed sessions back to the watchdog, which
// folds it into the item's decay resistance.
type SessionFeedback struct {
	ItemID        uuid.UUID      `json:"item_id"`
	Tier          UrgencyTier    `json:"tier"`
	Outcome       SessionOutcome `json:"outcome"`
	Effectiveness float64        `json:"effectiveness"`
}

// BatchReport is the flat per-cycle summary emitted to report sinks.
type BatchReport struct {
	Tier              UrgencyTier `json:"tier"`
	Attempted         int         `json:"attempted"`
	Successes         int         `json:"successes"`
	MeanEffectiveness float64     `json:"mean_effectiveness"`
	Deferred          int         `json:"deferred"`
	CompletedAt       time.Time   `json:"completed_at"`
}
