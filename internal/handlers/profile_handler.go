package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prolynk/backend/internal/middleware"
	"github.com/prolynk/backend/internal/models"
	"github.com/prolynk/backend/internal/services"
)

type ProfileHandler struct {
	profiles *services.ProfileService
}

func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// SaveProfile handles POST /profiles.
func (h *ProfileHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.GetIdentity(r.Context())

	var patch models.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	view, err := h.profiles.Save(ctx, caller, &patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ProfileSavedResponse{
		Message: "Profile saved successfully",
		Profile: view,
	})
}

// GetProfile handles GET /profiles/{username}. Auth is optional.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	view, err := h.profiles.Get(ctx, chi.URLParam(r, "username"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
