package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/google/uuid"
	"github.com/mnemolabs/reprime/internal/domain"
)

type recordingSink struct {
	reports []domain.BatchReport
}

type countingCounters struct {
	sweeps   atomic.Int64
	sessions atomic.Int64
	rescues  atomic.Int64
}

func (c *countingCounters) RecordSweep()   { c.sweeps.Add(1) }
func (c *countingCounters) RecordSession() { c.sessions.Add(1) }
func (c *countingCounters) RecordRescue()  { c.rescues.Add(1) }

func (s *recordingSink) EmitBatch(ctx context.Context, report domain.BatchReport) error {
	s.reports = append(s.reports, report)
	return nil
}

func newTestScheduler(itemStore *mockItemStore, resp domain.Responder) *RescueScheduler {
	priming := NewPrimingService(itemStore, resp, testLogger())
	return NewRescueScheduler(itemStore, priming, testLogger())
}

func enqueueItem(t *testing.T, s *RescueScheduler, itemStore *mockItemStore, tier domain.UrgencyTier, urgency float64, sinceAccess time.Duration) domain.RescueRequest {
	t.Helper()
	item := testItem(sinceAccess)
	itemStore.put(item)
	req := domain.RescueRequest{
		ItemID:       item.ID,
		Tier:         tier,
		UrgencyScore: urgency,
		SinceAccess:  sinceAccess,
		EnqueuedAt:   time.Now(),
	}
	if !s.Enqueue(req) {
		t.Fatalf("enqueue rejected")
	}
	return req
}

func TestEnqueue_PromotionMovesDemotionIgnored(t *testing.T) {
	itemStore := newMockItemStore()
	s := newTestScheduler(itemStore, &scriptedResponder{})

	req := enqueueItem(t, s, itemStore, domain.TierDue, 0.7, 26*time.Hour)
	assert.Equal(t, 1, s.PendingCount(domain.TierDue))

	// Promotion to a more urgent tier moves the request.
	req.Tier = domain.TierOverdue
	assert.True(t, s.Enqueue(req))
	assert.Equal(t, 0, s.PendingCount(domain.TierDue))
	assert.Equal(t, 1, s.PendingCount(domain.TierOverdue))

	// Demotion leaves it where it is.
	req.Tier = domain.TierImminent
	assert.True(t, s.Enqueue(req))
	assert.Equal(t, 1, s.PendingCount(domain.TierOverdue))
	assert.Equal(t, 0, s.PendingCount(domain.TierImminent))
}

func TestEnqueue_UnknownTierRejected(t *testing.T) {
	itemStore := newMockItemStore()
	s := newTestScheduler(itemStore, &scriptedResponder{})

	ok := s.Enqueue(domain.RescueRequest{ItemID: uuid.New(), Tier: domain.UrgencyTier("bogus")})
	assert.False(t, ok)
}

func TestRunCycle_DispatchesAndReports(t *testing.T) {
	itemStore := newMockItemStore()
	resp := &scriptedResponder{responses: []domain.StageResponse{
		{Recognition: 0.9, Confidence: 0.9, ResponseTime: time.Second},
	}}
	s := newTestScheduler(itemStore, resp)
	sink := &recordingSink{}
	s.AddSink(sink)

	feedback := make(chan domain.SessionFeedback, 16)
	s.SetFeedback(feedback)

	for i := 0; i < 3; i++ {
		enqueueItem(t, s, itemStore, domain.TierImminent, 0.95, 30*time.Hour)
	}

	report, err := s.RunCycle(context.Background(), domain.TierImminent)
	assert.NoError(t, err)
	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Successes)
	assert.Greater(t, report.MeanEffectiveness, 0.0)
	assert.Equal(t, 0, report.Deferred)
	assert.Equal(t, 0, s.PendingCount(domain.TierImminent))

	assert.Len(t, sink.reports, 1)
	assert.Equal(t, domain.TierImminent, sink.reports[0].Tier)

	assert.Len(t, feedback, 3)
	fb := <-feedback
	assert.Equal(t, domain.OutcomeSuccess, fb.Outcome)
}

func TestRunCycle_BatchCapLeavesRestPending(t *testing.T) {
	itemStore := newMockItemStore()
	resp := &scriptedResponder{responses: []domain.StageResponse{
		{Recognition: 0.9, Confidence: 0.9, ResponseTime: time.Second},
	}}
	s := newTestScheduler(itemStore, resp)

	// Imminent cycle caps at 20; queue 25 eligible requests.
	for i := 0; i < 25; i++ {
		enqueueItem(t, s, itemStore, domain.TierImminent, 0.95, 30*time.Hour)
	}

	report, err := s.RunCycle(context.Background(), domain.TierImminent)
	assert.NoError(t, err)
	assert.Equal(t, 20, report.Attempted)
	assert.Equal(t, 5, report.Deferred)
	assert.Equal(t, 5, s.PendingCount(domain.TierImminent))
}

func TestRunCycle_ThresholdFiltersLowUrgency(t *testing.T) {
	itemStore := newMockItemStore()
	resp := &scriptedResponder{responses: []domain.StageResponse{
		{Recognition: 0.9, Confidence: 0.9, ResponseTime: time.Second},
	}}
	s := newTestScheduler(itemStore, resp)

	enqueueItem(t, s, itemStore, domain.TierImminent, 0.95, 30*time.Hour)
	// Below the imminent threshold of 0.8; stays queued.
	enqueueItem(t, s, itemStore, domain.TierImminent, 0.5, 2*time.Hour)

	report, err := s.RunCycle(context.Background(), domain.TierImminent)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, s.PendingCount(domain.TierImminent))
}

func TestRunCycle_StoreOutageRequeuesEverything(t *testing.T) {
	itemStore := newMockItemStore()
	s := newTestScheduler(itemStore, &scriptedResponder{})

	enqueueItem(t, s, itemStore, domain.TierImminent, 0.95, 30*time.Hour)
	enqueueItem(t, s, itemStore, domain.TierImminent, 0.9, 28*time.Hour)
	itemStore.loadErr = context.DeadlineExceeded

	_, err := s.RunCycle(context.Background(), domain.TierImminent)
	assert.Error(t, err)
	// Nothing dispatched, nothing lost.
	assert.Equal(t, 2, s.PendingCount(domain.TierImminent))
	assert.Equal(t, 0, itemStore.saveCalls)
}

func TestRunCycle_UnknownTier(t *testing.T) {
	itemStore := newMockItemStore()
	s := newTestScheduler(itemStore, &scriptedResponder{})

	_, err := s.RunCycle(context.Background(), domain.UrgencyTier("bogus"))
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestRunCycle_SkipsDeletedAndArchived(t *testing.T) {
	itemStore := newMockItemStore()
	resp := &scriptedResponder{responses: []domain.StageResponse{
		{Recognition: 0.9, Confidence: 0.9, ResponseTime: time.Second},
	}}
	s := newTestScheduler(itemStore, resp)

	live := enqueueItem(t, s, itemStore, domain.TierImminent, 0.95, 30*time.Hour)
	gone := enqueueItem(t, s, itemStore, domain.TierImminent, 0.95, 30*time.Hour)
	archived := enqueueItem(t, s, itemStore, domain.TierImminent, 0.95, 30*time.Hour)

	itemStore.mu.Lock()
	delete(itemStore.items, gone.ItemID)
	itemStore.items[archived.ItemID].Archived = true
	itemStore.mu.Unlock()

	report, err := s.RunCycle(context.Background(), domain.TierImminent)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, live.Tier, report.Tier)
}

func TestRunCycle_HonorsConfiguredStrategies(t *testing.T) {
	itemStore := newMockItemStore()
	resp := &scriptedResponder{responses: []domain.StageResponse{
		{Recognition: 0.9, Confidence: 0.9, ResponseTime: time.Second},
	}}
	s := newTestScheduler(itemStore, resp)

	// Override the due cycle so only the deepest strategy is allowed.
	cycles := DefaultCycles()
	due := cycles[domain.TierDue]
	due.Strategies = []domain.StrategyName{domain.StrategyComprehensiveRecovery}
	cycles[domain.TierDue] = due
	s.SetCycles(cycles)

	req := enqueueItem(t, s, itemStore, domain.TierDue, 0.7, 26*time.Hour)

	report, err := s.RunCycle(context.Background(), domain.TierDue)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)

	saved := itemStore.get(req.ItemID)
	assert.Equal(t, domain.StrategyComprehensiveRecovery, saved.LastStrategy)
}

func TestRunCycle_SessionCounterSkipsRejected(t *testing.T) {
	itemStore := newMockItemStore()
	resp := &scriptedResponder{responses: []domain.StageResponse{
		{Recognition: 0.9, Confidence: 0.9, ResponseTime: time.Second},
	}}
	s := newTestScheduler(itemStore, resp)
	counters := &countingCounters{}
	s.SetCounters(counters)

	enqueueItem(t, s, itemStore, domain.TierImminent, 0.95, 30*time.Hour)

	// Nothing to present; rejected before any session runs.
	bare := testItem(30 * time.Hour)
	bare.Fragments = nil
	bare.Cues = nil
	itemStore.put(bare)
	assert.True(t, s.Enqueue(domain.RescueRequest{
		ItemID:       bare.ID,
		Tier:         domain.TierImminent,
		UrgencyScore: 0.95,
		SinceAccess:  30 * time.Hour,
		EnqueuedAt:   time.Now(),
	}))

	report, err := s.RunCycle(context.Background(), domain.TierImminent)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, int64(1), counters.sessions.Load())
}

func TestCollectBatch_PriorityOrder(t *testing.T) {
	itemStore := newMockItemStore()
	s := newTestScheduler(itemStore, &scriptedResponder{})

	low := enqueueItem(t, s, itemStore, domain.TierImminent, 0.81, 10*time.Hour)
	high := enqueueItem(t, s, itemStore, domain.TierImminent, 0.99, 10*time.Hour)
	older := enqueueItem(t, s, itemStore, domain.TierImminent, 0.99, 50*time.Hour)

	cfg := s.cycles[domain.TierImminent]
	selected, deferred := s.collectBatch(cfg)

	assert.Equal(t, 0, deferred)
	assert.Len(t, selected, 3)
	// Highest urgency first; age breaks the tie.
	assert.Equal(t, older.ItemID, selected[0].ItemID)
	assert.Equal(t, high.ItemID, selected[1].ItemID)
	assert.Equal(t, low.ItemID, selected[2].ItemID)
}

func TestCollectBatch_EnqueueAgeBreaksFinalTie(t *testing.T) {
	itemStore := newMockItemStore()
	s := newTestScheduler(itemStore, &scriptedResponder{})

	first := testItem(10 * time.Hour)
	second := testItem(10 * time.Hour)
	itemStore.put(first)
	itemStore.put(second)

	now := time.Now()
	assert.True(t, s.Enqueue(domain.RescueRequest{
		ItemID: second.ID, Tier: domain.TierImminent,
		UrgencyScore: 0.9, SinceAccess: 10 * time.Hour, EnqueuedAt: now,
	}))
	assert.True(t, s.Enqueue(domain.RescueRequest{
		ItemID: first.ID, Tier: domain.TierImminent,
		UrgencyScore: 0.9, SinceAccess: 10 * time.Hour, EnqueuedAt: now.Add(-time.Hour),
	}))

	// A refresh carries a fresh timestamp but the long waiter keeps its
	// original place in line.
	assert.True(t, s.Enqueue(domain.RescueRequest{
		ItemID: first.ID, Tier: domain.TierImminent,
		UrgencyScore: 0.9, SinceAccess: 10 * time.Hour, EnqueuedAt: now.Add(time.Minute),
	}))

	selected, deferred := s.collectBatch(s.cycles[domain.TierImminent])
	assert.Equal(t, 0, deferred)
	assert.Len(t, selected, 2)
	assert.Equal(t, first.ID, selected[0].ItemID)
	assert.Equal(t, second.ID, selected[1].ItemID)
}
