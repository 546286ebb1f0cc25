package service

import (
	"context"
	"sync"
	"time"

	"github.com/mnemolabs/reprime/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultWatchdogInterval = 15 * time.Minute
	feedbackBuffer          = 256

	// Resistance moves by a fraction of how far a session's effectiveness
	// landed from the 0.5 midpoint, clamped to [0, maxResistance].
	resistanceGain = 0.1
	maxResistance  = 2.0
)

// RescueEnqueuer accepts rescue requests. Implemented by the scheduler;
// Enqueue must be cheap and must never block the watchdog tick.
type RescueEnqueuer interface {
	Enqueue(req domain.RescueRequest) bool
}

// Counters receives engine-level event counts for the metrics endpoint.
// All methods must be non-blocking.
type Counters interface {
	RecordSweep()
	RecordSession()
	RecordRescue()
}

// SweepResult summarizes one watchdog pass over the store.
type SweepResult struct {
	Evaluated int `json:"evaluated"`
	Flagged   int `json:"flagged"`
	Enqueued  int `json:"enqueued"`
}

// WatchdogService polls the store, classifies every tracked item's decay
// state, and hands qualifying items to the scheduler. It also ingests
// session feedback and folds it into per-item decay resistance, closing the
// loop on future scheduling.
type WatchdogService struct {
	store    domain.ItemStore
	enqueuer RescueEnqueuer
	logger   *zap.Logger

	interval time.Duration
	counters Counters
	feedback chan domain.SessionFeedback
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewWatchdogService(store domain.ItemStore, enqueuer RescueEnqueuer, logger *zap.Logger) *WatchdogService {
	return &WatchdogService{
		store:    store,
		enqueuer: enqueuer,
		logger:   logger,
		interval: defaultWatchdogInterval,
		feedback: make(chan domain.SessionFeedback, feedbackBuffer),
		stopCh:   make(chan struct{}),
	}
}

func (s *WatchdogService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *WatchdogService) SetCounters(c Counters) {
	s.counters = c
}

// Feedback returns the channel completed sessions report into.
func (s *WatchdogService) Feedback() chan<- domain.SessionFeedback {
	return s.feedback
}

// Start runs the watchdog on a periodic schedule in a background goroutine.
func (s *WatchdogService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("decay watchdog started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if _, err := s.RunSweep(ctx); err != nil {
					s.logger.Error("watchdog sweep failed", zap.Error(err))
				}
				cancel()
			case fb := <-s.feedback:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.applyFeedback(ctx, fb)
				cancel()
			case <-s.stopCh:
				s.logger.Info("decay watchdog stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the watchdog.
func (s *WatchdogService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunSweep evaluates the decay model for every active item and emits rescue
// requests for those due. A store failure aborts the sweep; the next tick
// retries unconditionally.
func (s *WatchdogService) RunSweep(ctx context.Context) (*SweepResult, error) {
	items, err := s.store.List(ctx, domain.ListFilter{})
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	now := time.Now()

	for i := range items {
		item := &items[i]
		result.Evaluated++

		tier := item.CurrentTier(now)
		strength := item.CurrentStrength(now)
		behavior := domain.GetTierBehavior(tier)

		// Imminent items are only rescued once strength crosses the
		// tier threshold; every later tier is due by definition.
		due := tier != domain.TierImminent || strength < behavior.CriticalStrength
		if !due {
			continue
		}

		promoted := domain.MoreUrgent(tier, item.Urgency)
		item.RequiresIntervention = true
		if item.Urgency == "" || promoted {
			item.Urgency = tier
		}
		next := now.Add(s.interval)
		item.NextInterventionAt = &next

		if err := s.store.Save(ctx, item); err != nil {
			s.logger.Warn("failed to persist rescue flags",
				zap.String("item_id", item.ID.String()),
				zap.Error(err))
			continue
		}
		result.Flagged++

		req := domain.RescueRequest{
			ItemID:       item.ID,
			Tier:         item.Urgency,
			UrgencyScore: item.UrgencyScore(now),
			SinceAccess:  now.Sub(item.LastAccessedAt),
			EnqueuedAt:   now,
		}
		if s.enqueuer.Enqueue(req) {
			result.Enqueued++
			if s.counters != nil {
				s.counters.RecordRescue()
			}
		}
	}

	if s.counters != nil {
		s.counters.RecordSweep()
	}
	if result.Flagged > 0 {
		s.logger.Info("watchdog sweep complete",
			zap.Int("evaluated", result.Evaluated),
			zap.Int("flagged", result.Flagged),
			zap.Int("enqueued", result.Enqueued))
	}
	return result, nil
}

// applyFeedback adjusts an item's decay resistance from a completed
// session's measured effectiveness. Effective sessions raise resistance,
// pushing the next check out; ineffective ones lower it.
func (s *WatchdogService) applyFeedback(ctx context.Context, fb domain.SessionFeedback) {
	item, err := s.store.Load(ctx, fb.ItemID)
	if err != nil {
		s.logger.Warn("feedback for unknown item",
			zap.String("item_id", fb.ItemID.String()),
			zap.Error(err))
		return
	}

	item.DecayResistance += resistanceGain * (fb.Effectiveness - 0.5)
	if item.DecayResistance < 0 {
		item.DecayResistance = 0
	}
	if item.DecayResistance > maxResistance {
		item.DecayResistance = maxResistance
	}

	// Higher resistance earns a later next check.
	if item.NextInterventionAt != nil {
		next := item.NextInterventionAt.Add(time.Duration(item.DecayResistance * float64(s.interval)))
		item.NextInterventionAt = &next
	}

	if err := s.store.Save(ctx, item); err != nil {
		s.logger.Warn("failed to persist resistance update",
			zap.String("item_id", fb.ItemID.String()),
			zap.Error(err))
		return
	}

	s.logger.Debug("decay resistance adjusted",
		zap.String("item_id", fb.ItemID.String()),
		zap.String("outcome", string(fb.Outcome)),
		zap.Float64("effectiveness", fb.Effectiveness),
		zap.Float64("resistance", item.DecayResistance))
}
