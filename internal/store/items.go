package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemolabs/reprime/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

type ItemStore struct {
	db *pgxpool.Pool
}

func NewItemStore(db *pgxpool.Pool) *ItemStore {
	return &ItemStore{db: db}
}

const itemColumns = `id, content, embedding, fragments, cues, profile,
	initial_strength, decay_rate, decay_resistance, last_accessed_at,
	retrieval_count, failed_retrievals, requires_intervention,
	next_intervention_at, urgency, last_strategy, archived,
	created_at, updated_at`

func (s *ItemStore) Create(ctx context.Context, item *domain.MemoryItem) error {
	var embedding *pgvector.Vector
	if len(item.Embedding) > 0 {
		v := pgvector.NewVector(item.Embedding)
		embedding = &v
	}

	if item.InitialStrength == 0 {
		item.InitialStrength = domain.ReinstatementStrength
	}
	if item.DecayRate == 0 {
		item.DecayRate = domain.DefaultDecayRate
	}

	fragmentsJSON, cuesJSON, profileJSON, err := marshalDocs(item)
	if err != nil {
		return err
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO memory_items (content, embedding, fragments, cues, profile, initial_strength, decay_rate, decay_resistance, last_accessed_at, retrieval_count, failed_retrievals, requires_intervention, urgency, last_strategy, archived)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), 0, 0, FALSE, $9, $10, FALSE)
		 RETURNING id, created_at, updated_at, last_accessed_at`,
		item.Content, embedding, fragmentsJSON, cuesJSON, profileJSON,
		item.InitialStrength, item.DecayRate, item.DecayResistance,
		item.Urgency, item.LastStrategy,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt, &item.LastAccessedAt)
}

func (s *ItemStore) Load(ctx context.Context, id uuid.UUID) (*domain.MemoryItem, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM memory_items WHERE id = $1`, id)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *ItemStore) List(ctx context.Context, filter domain.ListFilter) ([]domain.MemoryItem, error) {
	conditions := []string{"TRUE"}
	var args []any

	if !filter.IncludeArchived {
		conditions = append(conditions, "archived = FALSE")
	}
	if filter.Tier != nil {
		conditions = append(conditions, fmt.Sprintf("urgency = $%d", len(args)+1))
		args = append(args, string(*filter.Tier))
	}
	if filter.RequiresRescue != nil {
		conditions = append(conditions, fmt.Sprintf("requires_intervention = $%d", len(args)+1))
		args = append(args, *filter.RequiresRescue)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM memory_items WHERE %s ORDER BY last_accessed_at ASC`,
		itemColumns, strings.Join(conditions, " AND "))
	if filter.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT $%d", query, len(args)+1)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items query: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (s *ItemStore) Save(ctx context.Context, item *domain.MemoryItem) error {
	fragmentsJSON, cuesJSON, profileJSON, err := marshalDocs(item)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE memory_items SET
			fragments = $1, cues = $2, profile = $3,
			initial_strength = $4, decay_rate = $5, decay_resistance = $6,
			last_accessed_at = $7, retrieval_count = $8, failed_retrievals = $9,
			requires_intervention = $10, next_intervention_at = $11,
			urgency = $12, last_strategy = $13, archived = $14,
			updated_at = NOW()
		 WHERE id = $15`,
		fragmentsJSON, cuesJSON, profileJSON,
		item.InitialStrength, item.DecayRate, item.DecayResistance,
		item.LastAccessedAt, item.RetrievalCount, item.FailedRetrievals,
		item.RequiresIntervention, item.NextInterventionAt,
		item.Urgency, item.LastStrategy, item.Archived,
		item.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ItemStore) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE memory_items SET archived = TRUE, requires_intervention = FALSE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ItemStore) FindSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]domain.MemoryItem, error) {
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT `+itemColumns+`
		 FROM memory_items
		 WHERE archived = FALSE AND embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2
		 ORDER BY 1 - (embedding <=> $1) DESC
		 LIMIT $3`,
		vec, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar query: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (s *ItemStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func marshalDocs(item *domain.MemoryItem) (fragments, cues, profile []byte, err error) {
	fragments, err = json.Marshal(item.Fragments)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal fragments: %w", err)
	}
	cues, err = json.Marshal(item.Cues)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal cues: %w", err)
	}
	profile, err = json.Marshal(item.Profile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal profile: %w", err)
	}
	return fragments, cues, profile, nil
}

func scanItem(row pgx.Row) (*domain.MemoryItem, error) {
	item := &domain.MemoryItem{}
	var embedding *pgvector.Vector
	var fragmentsJSON, cuesJSON, profileJSON []byte

	err := row.Scan(
		&item.ID, &item.Content, &embedding, &fragmentsJSON, &cuesJSON, &profileJSON,
		&item.InitialStrength, &item.DecayRate, &item.DecayResistance, &item.LastAccessedAt,
		&item.RetrievalCount, &item.FailedRetrievals, &item.RequiresIntervention,
		&item.NextInterventionAt, &item.Urgency, &item.LastStrategy, &item.Archived,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if embedding != nil {
		item.Embedding = embedding.Slice()
	}
	if len(fragmentsJSON) > 0 {
		if err := json.Unmarshal(fragmentsJSON, &item.Fragments); err != nil {
			return nil, fmt.Errorf("unmarshal fragments: %w", err)
		}
	}
	if len(cuesJSON) > 0 {
		if err := json.Unmarshal(cuesJSON, &item.Cues); err != nil {
			return nil, fmt.Errorf("unmarshal cues: %w", err)
		}
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &item.Profile); err != nil {
			return nil, fmt.Errorf("unmarshal profile: %w", err)
		}
	}
	return item, nil
}

func scanItems(rows pgx.Rows) ([]domain.MemoryItem, error) {
	var items []domain.MemoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.ItemStore = (*ItemStore)(nil)
