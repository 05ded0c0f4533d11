package handlers

import (
	"context"
	"net/http"
	"time"

	"deenStreakAPI/services"
)

type AdminHandler struct {
	reconciliationService *services.ReconciliationService
}

func NewAdminHandler(reconciliationService *services.ReconciliationService) *AdminHandler {
	return &AdminHandler{
		reconciliationService: reconciliationService,
	}
}

// POST /admin/reconcile
//
// Manual trigger for the missed-day sweep, used by an external cron when
// the in-process worker is disabled. Safe to call repeatedly: inserts are
// conflict-skipped.
func (h *AdminHandler) ReconcileNow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	report, err := h.reconciliationService.Run(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Reconciliation failed")
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}
