package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"deenStreakAPI/middleware"
	"deenStreakAPI/services"
)

type NotificationHandler struct {
	deviceService *services.DeviceService
}

func NewNotificationHandler(deviceService *services.DeviceService) *NotificationHandler {
	return &NotificationHandler{
		deviceService: deviceService,
	}
}

// POST /notifications/register-device
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" {
		respondWithError(w, http.StatusBadRequest, "Token is required")
		return
	}

	d, err := h.deviceService.RegisterDevice(ctx, clerkID, req.Token, req.Platform)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, d)
}
