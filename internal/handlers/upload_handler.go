package handlers

import (
	"net/http"

	"github.com/prolynk/backend/internal/middleware"
	"github.com/prolynk/backend/internal/models"
	"github.com/prolynk/backend/internal/services"
)

type UploadHandler struct {
	uploads *services.UploadService
}

func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// CreateUploadURL handles POST /upload-url. The client PUTs the file to the
// returned URL and then saves the key on its profile.
func (h *UploadHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	var req models.UploadURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	resp, err := h.uploads.CreateUploadURL(ctx, middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
