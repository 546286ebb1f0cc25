package domain

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows what List returns. Zero value lists all active items.
type ListFilter struct {
	Tier            *UrgencyTier
	RequiresRescue  *bool
	IncludeArchived bool
	Limit           int
}

// ItemStore is the blocking key/value document API the engine requires from
// the storage collaborator. The engine never defines storage format.
type ItemStore interface {
	Create(ctx context.Context, item *MemoryItem) error
	Load(ctx context.Context, id uuid.UUID) (*MemoryItem, error)
	List(ctx context.Context, filter ListFilter) ([]MemoryItem, error)
	Save(ctx context.Context, item *MemoryItem) error
	Archive(ctx context.Context, id uuid.UUID) error

	// FindSimilar returns items whose embeddings are close to the given
	// vector. Feeds neighbor cues into multimodal reconstruction.
	FindSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]MemoryItem, error)

	Ping(ctx context.Context) error
}

// Responder is the user-response collaborator: given a presented stimulus it
// returns the observed reaction within the stage's time budget. Production
// wires a live interaction surface; tests wire a scripted stub.
type Responder interface {
	Respond(ctx context.Context, s Stimulus) (StageResponse, error)
}

// ReportSink receives the flat batch summary after each scheduler cycle.
type ReportSink interface {
	EmitBatch(ctx context.Context, report BatchReport) error
}
