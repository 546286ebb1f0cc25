package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mnemolabs/reprime/internal/domain"
	"github.com/mnemolabs/reprime/internal/store"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// mockItemStore implements domain.ItemStore in memory for testing.
type mockItemStore struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*domain.MemoryItem
	similar []domain.MemoryItem

	loadErr error
	listErr error
	saveErr error

	saveCalls int
}

func newMockItemStore() *mockItemStore {
	return &mockItemStore{items: make(map[uuid.UUID]*domain.MemoryItem)}
}

func (m *mockItemStore) put(item *domain.MemoryItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	m.items[item.ID] = &cp
}

func (m *mockItemStore) get(id uuid.UUID) *domain.MemoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

func (m *mockItemStore) Create(ctx context.Context, item *domain.MemoryItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now()
	item.LastAccessedAt = time.Now()
	m.put(item)
	return nil
}

func (m *mockItemStore) Load(ctx context.Context, id uuid.UUID) (*domain.MemoryItem, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *mockItemStore) List(ctx context.Context, filter domain.ListFilter) ([]domain.MemoryItem, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MemoryItem
	for _, item := range m.items {
		if item.Archived && !filter.IncludeArchived {
			continue
		}
		if filter.Tier != nil && item.Urgency != *filter.Tier {
			continue
		}
		if filter.RequiresRescue != nil && item.RequiresIntervention != *filter.RequiresRescue {
			continue
		}
		out = append(out, *item)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockItemStore) Save(ctx context.Context, item *domain.MemoryItem) error {
	m.mu.Lock()
	m.saveCalls++
	m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockItemStore) Archive(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return store.ErrNotFound
	}
	item.Archived = true
	return nil
}

func (m *mockItemStore) FindSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]domain.MemoryItem, error) {
	if limit > 0 && len(m.similar) > limit {
		return m.similar[:limit], nil
	}
	return m.similar, nil
}

func (m *mockItemStore) Ping(ctx context.Context) error { return nil }

// scriptedResponder returns queued responses in order, repeating the last one
// once the script is exhausted.
type scriptedResponder struct {
	mu        sync.Mutex
	responses []domain.StageResponse
	err       error
	calls     []domain.Stimulus
}

func (r *scriptedResponder) Respond(ctx context.Context, s domain.Stimulus) (domain.StageResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	if r.err != nil {
		return domain.StageResponse{}, r.err
	}
	if len(r.responses) == 0 {
		return domain.StageResponse{}, context.DeadlineExceeded
	}
	next := r.responses[0]
	if len(r.responses) > 1 {
		r.responses = r.responses[1:]
	}
	return next, nil
}

// blockingResponder never answers; Respond returns only once the context is
// cancelled.
type blockingResponder struct{}

func (r *blockingResponder) Respond(ctx context.Context, s domain.Stimulus) (domain.StageResponse, error) {
	<-ctx.Done()
	return domain.StageResponse{}, ctx.Err()
}

func testItem(sinceAccess time.Duration) *domain.MemoryItem {
	now := time.Now()
	return &domain.MemoryItem{
		ID:              uuid.New(),
		Content:         "the lighthouse trip with grandfather last summer",
		InitialStrength: 1.0,
		DecayRate:       domain.DefaultDecayRate,
		LastAccessedAt:  now.Add(-sinceAccess),
		CreatedAt:       now.Add(-sinceAccess),
		Fragments: []domain.Fragment{
			{ID: uuid.New(), Type: domain.FragmentPhrase, Content: "climbing the lighthouse stairs"},
			{ID: uuid.New(), Type: domain.FragmentKeyword, Content: "grandfather"},
		},
		Cues: []domain.ContextualCue{
			{ID: uuid.New(), Type: domain.CueTemporal, Content: "last summer", Strength: 0.7},
			{ID: uuid.New(), Type: domain.CueEmotional, Content: "felt proud at the top", Strength: 0.6},
		},
	}
}
