package handlers

import (
	"errors"
	"net/http"

	"github.com/prolynk/backend/internal/middleware"
	"github.com/prolynk/backend/internal/models"
	"github.com/prolynk/backend/internal/services"
)

type UserHandler struct {
	accounts *services.AccountService
	profiles *services.ProfileService
}

func NewUserHandler(accounts *services.AccountService, profiles *services.ProfileService) *UserHandler {
	return &UserHandler{accounts: accounts, profiles: profiles}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.GetIdentity(r.Context())

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	acct, err := h.accounts.Me(ctx, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewAccountSummary(acct))
}

// CheckUsername handles GET /username/check?username=.
func (h *UserHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	available, username, err := h.profiles.CheckUsername(ctx, r.URL.Query().Get("username"))
	switch {
	case errors.Is(err, services.ErrUsernameInvalid):
		writeJSON(w, http.StatusBadRequest, models.UsernameCheckResponse{
			Available: false,
			Error:     services.ErrUsernameInvalid.Message,
		})
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.UsernameCheckResponse{
		Available: available,
		Username:  username,
	})
}
