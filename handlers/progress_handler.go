package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"deenStreakAPI/internal/apperr"
	"deenStreakAPI/internal/types/challenge"
	"deenStreakAPI/middleware"
	"deenStreakAPI/services"
)

type ProgressHandler struct {
	progressService *services.ProgressService
}

func NewProgressHandler(progressService *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{
		progressService: progressService,
	}
}

// POST /challenges/{challengeID}/start
func (h *ProgressHandler) StartChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	progress, err := h.progressService.Start(ctx, clerkID, challengeID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, progress)
}

type completeDayRequest struct {
	DayNumber      int     `json:"day_number"`
	CountCompleted int     `json:"count_completed"`
	TargetCount    int     `json:"target_count"`
	Mood           *string `json:"mood,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

// POST /progress/{progressID}/complete-day
func (h *ProgressHandler) CompleteDay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	progressID, err := uuid.Parse(mux.Vars(r)["progressID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid progress id")
		return
	}

	var req completeDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.progressService.CompleteDay(ctx, clerkID, progressID,
		req.DayNumber, req.CountCompleted, req.TargetCount, req.Mood, req.Notes)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// POST /progress/{progressID}/restart
func (h *ProgressHandler) RestartChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	progressID, err := uuid.Parse(mux.Vars(r)["progressID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid progress id")
		return
	}

	progress, err := h.progressService.Restart(ctx, clerkID, progressID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, progress)
}

// POST /progress/{progressID}/pause
func (h *ProgressHandler) PauseChallenge(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.progressService.Pause)
}

// POST /progress/{progressID}/resume
func (h *ProgressHandler) ResumeChallenge(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.progressService.Resume)
}

// GET /progress/{progressID}
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	progressID, err := uuid.Parse(mux.Vars(r)["progressID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid progress id")
		return
	}

	progress, err := h.progressService.GetProgress(ctx, clerkID, progressID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, progress)
}

// GET /progress/{progressID}/calendar?year=2026&month=8
func (h *ProgressHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	progressID, err := uuid.Parse(mux.Vars(r)["progressID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid progress id")
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid year")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		respondWithError(w, http.StatusBadRequest, "Invalid month")
		return
	}

	calendar, err := h.progressService.GetCalendar(ctx, clerkID, progressID, year, time.Month(month))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, calendar)
}

// GET /challenges/{challengeID}/stats
func (h *ProgressHandler) GetChallengeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	stats, err := h.progressService.GetTemplateStats(ctx, challengeID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func (h *ProgressHandler) toggle(w http.ResponseWriter, r *http.Request, op func(context.Context, string, uuid.UUID) (*challenge.Progress, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	progressID, err := uuid.Parse(mux.Vars(r)["progressID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid progress id")
		return
	}

	progress, err := op(ctx, clerkID, progressID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, progress)
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps the service error taxonomy to HTTP status
// codes. Store failures stay opaque to the client.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
