package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mnemolabs/reprime/internal/domain"
	"github.com/mnemolabs/reprime/internal/service"
	"github.com/mnemolabs/reprime/internal/store"
)

type RescueHandler struct {
	itemStore domain.ItemStore
	watchdog  *service.WatchdogService
	scheduler *service.RescueScheduler
	priming   *service.PrimingService
}

func NewRescueHandler(itemStore domain.ItemStore, watchdog *service.WatchdogService, scheduler *service.RescueScheduler, priming *service.PrimingService) *RescueHandler {
	return &RescueHandler{
		itemStore: itemStore,
		watchdog:  watchdog,
		scheduler: scheduler,
		priming:   priming,
	}
}

// Sweep triggers one watchdog pass immediately, outside the polling schedule.
func (h *RescueHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.watchdog.RunSweep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RunCycle triggers one rescue cycle for a tier immediately.
func (h *RescueHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	tier := chi.URLParam(r, "tier")
	if !domain.ValidTier(tier) {
		writeError(w, http.StatusBadRequest, "invalid tier: "+tier)
		return
	}

	report, err := h.scheduler.RunCycle(r.Context(), domain.UrgencyTier(tier))
	if err != nil {
		if errors.Is(err, service.ErrUnknownTier) {
			writeError(w, http.StatusBadRequest, "no cycle configured for tier")
			return
		}
		writeError(w, http.StatusInternalServerError, "cycle failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Pending reports queue depth per tier.
func (h *RescueHandler) Pending(w http.ResponseWriter, r *http.Request) {
	counts := make(map[domain.UrgencyTier]int, len(domain.AllTiers()))
	for _, tier := range domain.AllTiers() {
		counts[tier] = h.scheduler.PendingCount(tier)
	}
	writeJSON(w, http.StatusOK, counts)
}

// Prime runs a single priming session for one item, bypassing the queues.
// The tier, and with it the strategy, comes from the item's current state.
func (h *RescueHandler) Prime(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.itemStore.Load(r.Context(), id)
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

	result, err := h.priming.RunSession(r.Context(), item, item.CurrentTier(time.Now()))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientSignal):
			writeError(w, http.StatusUnprocessableEntity, "item has no fragments or cues to present")
		case service.IsConflict(err):
			writeError(w, http.StatusConflict, "a session for this item is already running")
		default:
			writeError(w, http.StatusInternalServerError, "session failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}
