package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mnemolabs/reprime/internal/domain"
	"github.com/mnemolabs/reprime/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultWorkerPoolSize = 4

// CycleConfig describes one tier's rescue cycle.
type CycleConfig struct {
	Tier              domain.UrgencyTier    `json:"tier"`
	Interval          time.Duration         `json:"interval"`
	BatchCap          int                   `json:"batch_cap"`
	PriorityThreshold float64               `json:"priority_threshold"`
	Strategies        []domain.StrategyName `json:"strategies"`
}

// DefaultCycles returns the built-in four-cycle table.
func DefaultCycles() map[domain.UrgencyTier]CycleConfig {
	return map[domain.UrgencyTier]CycleConfig{
		domain.TierImminent: {
			Tier:              domain.TierImminent,
			Interval:          4 * time.Hour,
			BatchCap:          20,
			PriorityThreshold: 0.8,
			Strategies:        []domain.StrategyName{domain.StrategyGentleContextual, domain.StrategyFragmentIntensive},
		},
		domain.TierDue: {
			Tier:              domain.TierDue,
			Interval:          24 * time.Hour,
			BatchCap:          35,
			PriorityThreshold: 0.6,
			Strategies:        []domain.StrategyName{domain.StrategyFragmentIntensive, domain.StrategyMultimodalReconstruction},
		},
		domain.TierOverdue: {
			Tier:              domain.TierOverdue,
			Interval:          72 * time.Hour,
			BatchCap:          50,
			PriorityThreshold: 0.4,
			Strategies:        []domain.StrategyName{domain.StrategyMultimodalReconstruction, domain.StrategyComprehensiveRecovery},
		},
		domain.TierCritical: {
			Tier:              domain.TierCritical,
			Interval:          168 * time.Hour,
			BatchCap:          25,
			PriorityThreshold: 0.2,
			Strategies:        []domain.StrategyName{domain.StrategyComprehensiveRecovery},
		},
	}
}

// RescueScheduler owns the four fixed-interval rescue cycles. Each cycle
// collects its tier's pending requests, batches them under the cap in
// priority order, and dispatches sessions through a bounded worker pool.
// Items past the cap stay pending for the next evaluation.
type RescueScheduler struct {
	itemStore domain.ItemStore
	priming   *PrimingService
	logger    *zap.Logger

	cycles   map[domain.UrgencyTier]CycleConfig
	sinks    []domain.ReportSink
	feedback chan<- domain.SessionFeedback
	counters Counters
	workers  *semaphore.Weighted

	mu      sync.Mutex
	pending map[domain.UrgencyTier]map[uuid.UUID]domain.RescueRequest

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewRescueScheduler(itemStore domain.ItemStore, priming *PrimingService, logger *zap.Logger) *RescueScheduler {
	pending := make(map[domain.UrgencyTier]map[uuid.UUID]domain.RescueRequest)
	for _, tier := range domain.AllTiers() {
		pending[tier] = make(map[uuid.UUID]domain.RescueRequest)
	}
	return &RescueScheduler{
		itemStore: itemStore,
		priming:   priming,
		logger:    logger,
		cycles:    DefaultCycles(),
		workers:   semaphore.NewWeighted(defaultWorkerPoolSize),
		pending:   pending,
		stopCh:    make(chan struct{}),
	}
}

// SetCycles replaces the cycle table. Called once at startup; the table is
// not hot-reloaded.
func (s *RescueScheduler) SetCycles(cycles map[domain.UrgencyTier]CycleConfig) {
	if len(cycles) > 0 {
		s.cycles = cycles
	}
}

func (s *RescueScheduler) SetWorkerPoolSize(n int) {
	if n > 0 {
		s.workers = semaphore.NewWeighted(int64(n))
	}
}

func (s *RescueScheduler) AddSink(sink domain.ReportSink) {
	s.sinks = append(s.sinks, sink)
}

// SetFeedback wires the channel session outcomes are reported into.
func (s *RescueScheduler) SetFeedback(ch chan<- domain.SessionFeedback) {
	s.feedback = ch
}

func (s *RescueScheduler) SetCounters(c Counters) {
	s.counters = c
}

// Enqueue registers a rescue request under its tier. Re-enqueueing an item
// at a more urgent tier moves it there (promotion); a less urgent tier never
// displaces an existing entry. Cheap and non-blocking by design.
func (s *RescueScheduler) Enqueue(req domain.RescueRequest) bool {
	if _, ok := s.cycles[req.Tier]; !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for tier, queue := range s.pending {
		existing, ok := queue[req.ItemID]
		if !ok {
			continue
		}
		if tier == req.Tier || domain.MoreUrgent(req.Tier, tier) {
			// Refresh in place or promote; keep the original enqueue
			// time so age-based tie breaking favors long waiters.
			req.EnqueuedAt = existing.EnqueuedAt
			delete(queue, req.ItemID)
			s.pending[req.Tier][req.ItemID] = req
		}
		return true
	}

	s.pending[req.Tier][req.ItemID] = req
	return true
}

// PendingCount returns the number of requests waiting in a tier's queue.
func (s *RescueScheduler) PendingCount(tier domain.UrgencyTier) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[tier])
}

// Start launches one goroutine per configured cycle.
func (s *RescueScheduler) Start() {
	for tier, cfg := range s.cycles {
		s.wg.Add(1)
		go func(tier domain.UrgencyTier, cfg CycleConfig) {
			defer s.wg.Done()
			ticker := time.NewTicker(cfg.Interval)
			defer ticker.Stop()

			s.logger.Info("rescue cycle started",
				zap.String("tier", string(tier)),
				zap.Duration("interval", cfg.Interval),
				zap.Int("batch_cap", cfg.BatchCap))

			for {
				select {
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval/2)
					if _, err := s.RunCycle(ctx, tier); err != nil {
						s.logger.Error("rescue cycle failed",
							zap.String("tier", string(tier)),
							zap.Error(err))
					}
					cancel()
				case <-s.stopCh:
					s.logger.Info("rescue cycle stopped", zap.String("tier", string(tier)))
					return
				}
			}
		}(tier, cfg)
	}
}

// Stop gracefully stops all cycles.
func (s *RescueScheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunCycle executes one tick of a tier's cycle. A store outage aborts the
// whole batch with nothing dispatched and everything re-pended; individual
// session failures never abort their siblings.
func (s *RescueScheduler) RunCycle(ctx context.Context, tier domain.UrgencyTier) (*domain.BatchReport, error) {
	cfg, ok := s.cycles[tier]
	if !ok {
		return nil, ErrUnknownTier
	}

	selected, deferred := s.collectBatch(cfg)
	report := &domain.BatchReport{Tier: tier, Deferred: deferred}
	if len(selected) == 0 {
		report.CompletedAt = time.Now()
		return report, nil
	}

	items, err := s.loadBatch(ctx, selected)
	if err != nil {
		// Entire batch retries next tick; no partial state.
		s.requeue(selected)
		return nil, err
	}

	var (
		resMu         sync.Mutex
		successes     int
		attempted     int
		effectiveness float64
		dispatch      sync.WaitGroup
	)

	for _, item := range items {
		if err := s.workers.Acquire(ctx, 1); err != nil {
			break
		}
		dispatch.Add(1)
		go func(item *domain.MemoryItem) {
			defer dispatch.Done()
			defer s.workers.Release(1)

			result, err := s.priming.RunSession(ctx, item, tier, cfg.Strategies...)
			if err != nil {
				switch {
				case IsConflict(err):
					// Dropped silently per contract.
					s.logger.Debug("concurrent session dropped",
						zap.String("item_id", item.ID.String()))
				case errors.Is(err, ErrInsufficientSignal):
					s.logger.Info("item not primable, deferring to escalation",
						zap.String("item_id", item.ID.String()))
				default:
					s.logger.Warn("priming session errored",
						zap.String("item_id", item.ID.String()),
						zap.Error(err))
				}
				if result == nil {
					return
				}
			}

			// Counted here so rejected requests (conflicts, unprimable
			// items) never inflate the session counter.
			if s.counters != nil {
				s.counters.RecordSession()
			}

			resMu.Lock()
			attempted++
			effectiveness += result.Effectiveness
			if result.Outcome == domain.OutcomeSuccess {
				successes++
			}
			resMu.Unlock()

			if s.feedback != nil {
				select {
				case s.feedback <- domain.SessionFeedback{
					ItemID:        item.ID,
					Tier:          tier,
					Outcome:       result.Outcome,
					Effectiveness: result.Effectiveness,
				}:
				default:
					// Feedback is advisory; never block dispatch on it.
				}
			}
		}(item)
	}
	dispatch.Wait()

	report.Attempted = attempted
	report.Successes = successes
	if attempted > 0 {
		report.MeanEffectiveness = effectiveness / float64(attempted)
	}
	report.CompletedAt = time.Now()

	s.emit(ctx, *report)
	return report, nil
}

// collectBatch pulls the tier's eligible requests in priority order and
// removes the dispatched ones from the queue. Everything over the cap or
// under the threshold stays pending.
func (s *RescueScheduler) collectBatch(cfg CycleConfig) ([]domain.RescueRequest, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.pending[cfg.Tier]
	eligible := make([]domain.RescueRequest, 0, len(queue))
	for _, req := range queue {
		if req.UrgencyScore >= cfg.PriorityThreshold {
			eligible = append(eligible, req)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].UrgencyScore != eligible[j].UrgencyScore {
			return eligible[i].UrgencyScore > eligible[j].UrgencyScore
		}
		if eligible[i].SinceAccess != eligible[j].SinceAccess {
			return eligible[i].SinceAccess > eligible[j].SinceAccess
		}
		return eligible[i].EnqueuedAt.Before(eligible[j].EnqueuedAt)
	})

	deferred := 0
	if len(eligible) > cfg.BatchCap {
		deferred = len(eligible) - cfg.BatchCap
		eligible = eligible[:cfg.BatchCap]
	}

	for _, req := range eligible {
		delete(queue, req.ItemID)
	}
	return eligible, deferred
}

func (s *RescueScheduler) requeue(reqs []domain.RescueRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range reqs {
		s.pending[req.Tier][req.ItemID] = req
	}
}

// loadBatch loads every selected item up front so a store outage is caught
// before any session runs. Items deleted upstream are silently skipped.
func (s *RescueScheduler) loadBatch(ctx context.Context, reqs []domain.RescueRequest) ([]*domain.MemoryItem, error) {
	items := make([]*domain.MemoryItem, 0, len(reqs))
	for _, req := range reqs {
		item, err := s.itemStore.Load(ctx, req.ItemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if item.Archived {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *RescueScheduler) emit(ctx context.Context, report domain.BatchReport) {
	for _, sink := range s.sinks {
		if err := sink.EmitBatch(ctx, report); err != nil {
			s.logger.Warn("report sink failed",
				zap.String("tier", string(report.Tier)),
				zap.Error(err))
		}
	}
}
