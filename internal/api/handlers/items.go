package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mnemolabs/reprime/internal/domain"
	"github.com/mnemolabs/reprime/internal/store"
)

type ItemHandler struct {
	store domain.ItemStore
}

func NewItemHandler(s domain.ItemStore) *ItemHandler {
	return &ItemHandler{store: s}
}

type createItemRequest struct {
	Content   string                 `json:"content"`
	Fragments []domain.Fragment      `json:"fragments,omitempty"`
	Cues      []domain.ContextualCue `json:"cues,omitempty"`
	DecayRate float64                `json:"decay_rate,omitempty"`
}

type itemResponse struct {
	*domain.MemoryItem
	Strength float64            `json:"strength"`
	Tier     domain.UrgencyTier `json:"tier"`
}

func itemView(item *domain.MemoryItem, now time.Time) itemResponse {
	return itemResponse{
		MemoryItem: item,
		Strength:   item.CurrentStrength(now),
		Tier:       item.CurrentTier(now),
	}
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	for _, f := range req.Fragments {
		if !domain.ValidFragmentType(string(f.Type)) {
			writeError(w, http.StatusBadRequest, "invalid fragment type: "+string(f.Type))
			return
		}
	}
	for _, c := range req.Cues {
		if !domain.ValidCueType(string(c.Type)) {
			writeError(w, http.StatusBadRequest, "invalid cue type: "+string(c.Type))
			return
		}
	}

	item := &domain.MemoryItem{
		Content:   req.Content,
		Fragments: req.Fragments,
		Cues:      req.Cues,
		DecayRate: req.DecayRate,
	}
	for i := range item.Fragments {
		if item.Fragments[i].ID == uuid.Nil {
			item.Fragments[i].ID = uuid.New()
		}
	}
	for i := range item.Cues {
		if item.Cues[i].ID == uuid.Nil {
			item.Cues[i].ID = uuid.New()
		}
	}

	if err := h.store.Create(r.Context(), item); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	writeJSON(w, http.StatusCreated, itemView(item, time.Now()))
}

func (h *ItemHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load item")
		return
	}

	writeJSON(w, http.StatusOK, itemView(item, time.Now()))
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{}

	if tier := r.URL.Query().Get("tier"); tier != "" {
		if !domain.ValidTier(tier) {
			writeError(w, http.StatusBadRequest, "invalid tier: "+tier)
			return
		}
		t := domain.UrgencyTier(tier)
		filter.Tier = &t
	}
	if v := r.URL.Query().Get("requires_rescue"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid requires_rescue")
			return
		}
		filter.RequiresRescue = &b
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	items, err := h.store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	now := time.Now()
	views := make([]itemResponse, 0, len(items))
	for i := range items {
		views = append(views, itemView(&items[i], now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views, "count": len(views)})
}

// Touch records a natural access: the decay clock resets exactly as it does
// after a successful rescue session.
func (h *ItemHandler) Touch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	if item.Archived {
		writeError(w, http.StatusConflict, "item is archived")
		return
	}

	item.InitialStrength = domain.ReinstatementStrength
	item.LastAccessedAt = time.Now()
	item.RetrievalCount++
	item.RequiresIntervention = false
	item.NextInterventionAt = nil

	if err := h.store.Save(r.Context(), item); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save item")
		return
	}

	writeJSON(w, http.StatusOK, itemView(item, time.Now()))
}

func (h *ItemHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.store.Archive(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to archive item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
