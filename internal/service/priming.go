package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mnemolabs/reprime/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultSessionCeiling is the hard wall-clock limit for a whole
	// session, independent of per-stage budgets. Enforced by context
	// cancellation.
	DefaultSessionCeiling = 45 * time.Second

	// earlyTerminationRecognition: a stage response below this recognition
	// that also blew its time budget ends the session as a failure with no
	// further stages. Confidence is deliberately not part of this rule;
	// it already gates stage success, and a low-confidence but engaged
	// response should still see the next, more explicit stage.
	earlyTerminationRecognition = 0.1

	// Profile updates use an exponential moving average.
	profileAlpha = 0.3

	neighborCueStrength  = 0.4
	neighborCueThreshold = 0.8
	neighborCueLimit     = 3
)

// Base revelation ladder. Budgets are capped by the strategy's response-time
// ceiling; criteria recognition/confidence come from the strategy.
var stageDefaults = []domain.StageParams{
	{Stage: domain.StageMinimalCue, ExpectedEffectiveness: 0.30, TimeBudget: 5 * time.Second, RevealFraction: 0.10},
	{Stage: domain.StagePartialFragment, ExpectedEffectiveness: 0.50, TimeBudget: 8 * time.Second, RevealFraction: 0.30},
	{Stage: domain.StageContextualHint, ExpectedEffectiveness: 0.70, TimeBudget: 10 * time.Second, RevealFraction: 0.50},
	{Stage: domain.StageDirectPrompt, ExpectedEffectiveness: 0.90, TimeBudget: 15 * time.Second, RevealFraction: 1.0},
}

// PrimingService runs progressive revelation sessions against decaying
// items. At most one session per item is ever in flight.
type PrimingService struct {
	store     domain.ItemStore
	responder domain.Responder
	logger    *zap.Logger

	ceiling       time.Duration
	adaptive      bool
	reinstatement float64

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

func NewPrimingService(store domain.ItemStore, responder domain.Responder, logger *zap.Logger) *PrimingService {
	return &PrimingService{
		store:         store,
		responder:     responder,
		logger:        logger,
		ceiling:       DefaultSessionCeiling,
		adaptive:      true,
		reinstatement: domain.ReinstatementStrength,
		inFlight:      make(map[uuid.UUID]struct{}),
	}
}

func (s *PrimingService) SetSessionCeiling(d time.Duration) {
	s.ceiling = d
}

func (s *PrimingService) SetAdaptive(on bool) {
	s.adaptive = on
}

func (s *PrimingService) SetReinstatement(v float64) {
	if v > 0 && v <= 1 {
		s.reinstatement = v
	}
}

func (s *PrimingService) acquire(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *PrimingService) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

// RunSession executes one priming session for the item at the given urgency.
// Strategy is keyed by tier; if the tier's strategy already failed for this
// item it escalates one step. A non-empty allowed list (a cycle's configured
// strategy subset) constrains the final choice to that subset. Returns
// ErrSessionInFlight when a session for the same item is already running and
// ErrInsufficientSignal when the item has nothing to present.
func (s *PrimingService) RunSession(ctx context.Context, item *domain.MemoryItem, tier domain.UrgencyTier, allowed ...domain.StrategyName) (*domain.SessionResult, error) {
	if !item.Primable() {
		return nil, ErrInsufficientSignal
	}
	if !s.acquire(item.ID) {
		return nil, ErrSessionInFlight
	}
	defer s.release(item.ID)

	strategy := domain.StrategyForTier(tier)
	if item.LastStrategy == strategy.Name && item.FailedRetrievals > 0 {
		strategy = domain.EscalatedStrategy(strategy.Name)
	}
	if len(allowed) > 0 {
		strategy = constrainStrategy(strategy, allowed)
	}

	fragments := RankFragments(item, strategy)
	cues := RankCues(item, strategy)
	cues = append(cues, s.neighborCues(ctx, item, strategy)...)

	started := time.Now()
	sinceAccess := started.Sub(item.LastAccessedAt)

	sessionCtx, cancel := context.WithTimeout(ctx, s.ceiling)
	defer cancel()

	result := &domain.SessionResult{
		ItemID:    item.ID,
		Strategy:  strategy.Name,
		Tier:      tier,
		StartedAt: started,
	}

	params := stageParams(strategy, 0)
	for i := range domain.StageOrder {
		stimulus := buildStimulus(item, strategy, params, cues, fragments)

		response, err := s.respond(sessionCtx, stimulus, params)
		if err != nil {
			if sessionCtx.Err() != nil {
				result.Outcome = domain.OutcomeTimedOut
				break
			}
			s.logger.Warn("responder failed mid-stage",
				zap.String("item_id", item.ID.String()),
				zap.String("stage", string(params.Stage)),
				zap.Error(err))
			response = domain.StageResponse{ResponseTime: params.TimeBudget}
		}

		stageResult := domain.StageResult{
			Params:   params,
			Response: response,
			Success:  meetsCriteria(response, params.Criteria),
		}
		result.Stages = append(result.Stages, stageResult)

		if stageResult.Success {
			result.Outcome = domain.OutcomeSuccess
			break
		}
		if response.Recognition < earlyTerminationRecognition && response.ResponseTime > params.TimeBudget {
			result.Outcome = domain.OutcomeFailed
			break
		}
		if i+1 >= len(domain.StageOrder) {
			result.Outcome = domain.OutcomeFailed
			break
		}

		next := stageParams(strategy, i+1)
		if s.adaptive {
			next = NextStageParams(next, stageResult)
		}
		params = next
	}

	if result.Outcome == "" {
		result.Outcome = domain.OutcomeFailed
	}
	result.Duration = time.Since(started)
	result.Effectiveness = SessionEffectiveness(result.Stages)

	if err := s.applyOutcome(item, result, sinceAccess, cues); err != nil {
		return result, err
	}
	return result, nil
}

func (s *PrimingService) respond(sessionCtx context.Context, stimulus domain.Stimulus, params domain.StageParams) (domain.StageResponse, error) {
	// Twice the budget: slow responses still come back and are scored as
	// failures instead of being cut off at the line.
	stageCtx, cancel := context.WithTimeout(sessionCtx, 2*params.TimeBudget)
	defer cancel()
	return s.responder.Respond(stageCtx, stimulus)
}

// neighborCues pulls cue material from semantically close items for the
// reconstruction strategies.
func (s *PrimingService) neighborCues(ctx context.Context, item *domain.MemoryItem, strategy domain.Strategy) []domain.ContextualCue {
	if strategy.Name != domain.StrategyMultimodalReconstruction && strategy.Name != domain.StrategyComprehensiveRecovery {
		return nil
	}
	if len(item.Embedding) == 0 {
		return nil
	}

	neighbors, err := s.store.FindSimilar(ctx, item.Embedding, neighborCueThreshold, neighborCueLimit)
	if err != nil {
		s.logger.Warn("neighbor lookup failed", zap.String("item_id", item.ID.String()), zap.Error(err))
		return nil
	}

	var cues []domain.ContextualCue
	for _, n := range neighbors {
		if n.ID == item.ID || n.Content == "" {
			continue
		}
		cues = append(cues, domain.ContextualCue{
			ID:       uuid.New(),
			Type:     domain.CueSemantic,
			Content:  n.Content,
			Strength: neighborCueStrength,
		})
	}
	return cues
}

// constrainStrategy clamps the chosen strategy to a cycle's configured
// subset: the nearest allowed strategy at or above the choice on the
// escalation ladder wins, falling back to the most aggressive allowed one.
func constrainStrategy(chosen domain.Strategy, allowed []domain.StrategyName) domain.Strategy {
	chosenRank := domain.StrategyRank(chosen.Name)

	bestRank, fallbackRank := -1, -1
	var best, fallback domain.Strategy
	for _, name := range allowed {
		if name == chosen.Name {
			return chosen
		}
		cand, ok := domain.GetStrategy(name)
		if !ok {
			continue
		}
		rank := domain.StrategyRank(name)
		if rank >= chosenRank && (bestRank == -1 || rank < bestRank) {
			best, bestRank = cand, rank
		}
		if rank > fallbackRank {
			fallback, fallbackRank = cand, rank
		}
	}
	if bestRank != -1 {
		return best
	}
	if fallbackRank != -1 {
		return fallback
	}
	return chosen
}

func stageParams(strategy domain.Strategy, idx int) domain.StageParams {
	p := stageDefaults[idx]
	if p.TimeBudget > strategy.Criteria.MaxResponseTime {
		p.TimeBudget = strategy.Criteria.MaxResponseTime
	}
	p.Criteria = domain.SuccessCriteria{
		MinRecognition:  strategy.Criteria.MinRecognition,
		MaxResponseTime: p.TimeBudget,
		MinConfidence:   strategy.Criteria.MinConfidence,
	}
	return p
}

func meetsCriteria(r domain.StageResponse, c domain.SuccessCriteria) bool {
	return r.Recognition >= c.MinRecognition &&
		r.ResponseTime <= c.MaxResponseTime &&
		r.Confidence >= c.MinConfidence
}

// NextStageParams derives the following stage's parameters from the previous
// result: a pure fold, no shared session state. Poor responses tighten the
// next stage by ~20% (shorter budget, more revealed); strong but not yet
// successful ones relax it by ~10%. The dead band between the two keeps the
// ladder from oscillating.
func NextStageParams(next domain.StageParams, prev domain.StageResult) domain.StageParams {
	minRec := prev.Params.Criteria.MinRecognition
	rec := prev.Response.Recognition

	switch {
	case rec < 0.5*minRec:
		next.TimeBudget = next.TimeBudget * 4 / 5
		next.RevealFraction = min(1.0, next.RevealFraction*1.2)
	case rec >= 0.8*minRec:
		next.TimeBudget = next.TimeBudget * 11 / 10
		if next.Stage != domain.StageDirectPrompt {
			next.RevealFraction = next.RevealFraction * 0.9
		}
	}
	next.Criteria.MaxResponseTime = next.TimeBudget
	return next
}

// SessionEffectiveness combines mean recognition, the success-stage ratio,
// and normalized response time: 0.4 / 0.4 / 0.2.
func SessionEffectiveness(stages []domain.StageResult) float64 {
	if len(stages) == 0 {
		return 0
	}

	var recSum, rtSum, budgetSum float64
	successes := 0
	for _, st := range stages {
		recSum += st.Response.Recognition
		rtSum += st.Response.ResponseTime.Seconds()
		budgetSum += st.Params.TimeBudget.Seconds()
		if st.Success {
			successes++
		}
	}

	meanRec := recSum / float64(len(stages))
	successRatio := float64(successes) / float64(len(stages))
	normRT := 0.0
	if budgetSum > 0 {
		normRT = rtSum / budgetSum
		if normRT > 1 {
			normRT = 1
		}
	}

	return 0.4*meanRec + 0.4*successRatio + 0.2*(1-normRT)
}

func buildStimulus(item *domain.MemoryItem, strategy domain.Strategy, params domain.StageParams, cues []domain.ContextualCue, fragments []domain.Fragment) domain.Stimulus {
	stim := domain.Stimulus{
		ItemID:   item.ID,
		Stage:    params.Stage,
		Strategy: strategy.Name,
	}

	switch params.Stage {
	case domain.StageMinimalCue:
		if len(cues) > 0 {
			stim.Cues = cues[:1]
		} else {
			stim.Fragment = truncate(leadFragment(fragments), params.RevealFraction)
		}
	case domain.StagePartialFragment:
		if frag := leadFragment(fragments); frag != "" {
			stim.Fragment = truncate(frag, params.RevealFraction)
		} else if len(cues) > 0 {
			stim.Cues = cues[:1]
		}
	case domain.StageContextualHint:
		if len(cues) > 0 {
			stim.Cues = cues[:1]
		}
		stim.Fragment = truncate(leadFragment(fragments), params.RevealFraction)
	case domain.StageDirectPrompt:
		stim.Cues = cues
		stim.Fragment = joinFragments(fragments)
	}
	return stim
}

func leadFragment(fragments []domain.Fragment) string {
	if len(fragments) == 0 {
		return ""
	}
	return fragments[0].Content
}

func joinFragments(fragments []domain.Fragment) string {
	var b []byte
	for i, f := range fragments {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, f.Content...)
	}
	return string(b)
}

func truncate(s string, fraction float64) string {
	if fraction >= 1 || s == "" {
		return s
	}
	runes := []rune(s)
	n := int(float64(len(runes)) * fraction)
	if n < 1 {
		n = 1
	}
	return string(runes[:n])
}

// applyOutcome persists the session's effect on the item. A success resets
// the decay clock and strength; a failure only records the failed attempt.
// The write uses a fresh context because the session's may already be
// cancelled.
func (s *PrimingService) applyOutcome(item *domain.MemoryItem, result *domain.SessionResult, sinceAccess time.Duration, presented []domain.ContextualCue) error {
	now := time.Now()
	success := result.Outcome == domain.OutcomeSuccess

	item.LastStrategy = result.Strategy
	if success {
		item.InitialStrength = s.reinstatement
		item.LastAccessedAt = now
		item.RetrievalCount++
		item.RequiresIntervention = false
		item.NextInterventionAt = nil
	} else {
		item.FailedRetrievals++
	}

	updateProfile(&item.Profile, result, sinceAccess, presented)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, item); err != nil {
		return fmt.Errorf("persist session outcome: %w", err)
	}
	return nil
}

func updateProfile(p *domain.ResponseProfile, result *domain.SessionResult, sinceAccess time.Duration, presented []domain.ContextualCue) {
	success := result.Outcome == domain.OutcomeSuccess
	target := 0.0
	if success {
		target = 1.0
	}

	p.SessionCount++
	p.RecallSuccessRate = ema(p.RecallSuccessRate, target)

	if p.StrategySuccess == nil {
		p.StrategySuccess = make(map[domain.StrategyName]float64)
	}
	p.StrategySuccess[result.Strategy] = ema(p.StrategyRate(result.Strategy), target)

	seen := make(map[domain.CueType]struct{})
	for _, c := range presented {
		seen[c.Type] = struct{}{}
	}
	if len(seen) > 0 {
		if p.CueTypeSuccess == nil {
			p.CueTypeSuccess = make(map[domain.CueType]float64)
		}
		if p.PreferredCueTypes == nil {
			p.PreferredCueTypes = make(map[domain.CueType]float64)
		}
		for t := range seen {
			p.CueTypeSuccess[t] = ema(p.CueSuccessRate(t), target)
			p.PreferredCueTypes[t] = ema(p.CuePreference(t), result.Effectiveness)
		}
	}

	if success {
		p.OptimalSpacingHours = ema(p.OptimalSpacingHours, sinceAccess.Hours())
	}
}

func ema(old, target float64) float64 {
	return old + profileAlpha*(target-old)
}

// IsConflict reports whether the error is the silent same-item conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSessionInFlight)
}
