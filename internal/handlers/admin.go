package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tripook/tripook-backend/internal/middleware"
	"github.com/tripook/tripook-backend/internal/models"
	"github.com/tripook/tripook-backend/internal/services"
	"github.com/tripook/tripook-backend/internal/store"
)

// AdminHandler serves the admin endpoints: provider approvals, account
// blocking, and login activity reporting. All routes are behind RequireAdmin.
type AdminHandler struct {
	accounts *services.AccountService
	activity *store.ActivityStore
}

func NewAdminHandler(accounts *services.AccountService, activity *store.ActivityStore) *AdminHandler {
	return &AdminHandler{accounts: accounts, activity: activity}
}

// PendingProviders lists provider applications awaiting a decision.
func (h *AdminHandler) PendingProviders(w http.ResponseWriter, r *http.Request) {
	pending, err := h.accounts.PendingProviders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if pending == nil {
		pending = []models.Account{}
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: pending})
}

type decideProviderRequest struct {
	Decision string `json:"decision"` // "approve" or "reject"
	Reason   string `json:"reason,omitempty"`
}

func (r decideProviderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Decision, validation.Required, validation.In("approve", "reject")),
	)
}

// DecideProvider approves or rejects a pending provider application.
func (h *AdminHandler) DecideProvider(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "authentication required"})
		return
	}

	providerID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid provider id"})
		return
	}

	var req decideProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.accounts.AdminDecide(r.Context(), actor.ID, providerID,
		req.Decision == "approve", req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Provider application " + req.Decision + "d",
		User:    updated,
	})
}

func (h *AdminHandler) setStatus(w http.ResponseWriter, r *http.Request, status models.Status, message string) {
	actor, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "authentication required"})
		return
	}

	targetID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid account id"})
		return
	}

	if err := h.accounts.SetAccountStatus(r.Context(), actor.ID, targetID, status); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Message: message})
}

// BlockUser blocks an account; its sessions stop working at the auth layer.
func (h *AdminHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.StatusBlocked, "Account blocked")
}

// UnblockUser reactivates a blocked account.
func (h *AdminHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.StatusActive, "Account unblocked")
}

// DeleteUser soft-deletes an account. Records are retained.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.StatusDeleted, "Account deleted")
}

// LoginStats returns daily login counts for the dashboard chart.
// Query param: days (default 30, max 365).
func (h *AdminHandler) LoginStats(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	stats, err := h.activity.StatsByDay(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}

	today, err := h.activity.CountToday(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"daily": stats,
			"today": today,
		},
	})
}

// UserLoginHistory returns the most recent logins for one account.
func (h *AdminHandler) UserLoginHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid account id"})
		return
	}

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	history, err := h.activity.RecentByUser(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if history == nil {
		history = []models.LoginActivity{}
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: history})
}
