package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/wdbm/blocktogether/middleware"
	"github.com/wdbm/blocktogether/services"
)

type NotificationHandler struct {
	accountService *services.AccountService
}

func NewNotificationHandler(accountService *services.AccountService) *NotificationHandler {
	return &NotificationHandler{
		accountService: accountService,
	}
}

// POST /api/v1/notifications/register-device - Register an FCM device token
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	_, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var body struct {
		AccountUID string `json:"accountUid"`
		Token      string `json:"token"`
		Platform   string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.AccountUID == "" || body.Token == "" {
		respondWithError(w, http.StatusBadRequest, "accountUid and token are required")
		return
	}

	if err := h.accountService.RegisterDevice(ctx, body.AccountUID, body.Token, body.Platform); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to register device")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "device registered successfully"})
}
