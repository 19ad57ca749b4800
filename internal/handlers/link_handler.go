package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prolynk/backend/internal/middleware"
	"github.com/prolynk/backend/internal/models"
	"github.com/prolynk/backend/internal/services"
)

type LinkHandler struct {
	links *services.LinkService
}

func NewLinkHandler(links *services.LinkService) *LinkHandler {
	return &LinkHandler{links: links}
}

func (h *LinkHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	links, err := h.links.List(ctx, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.LinkListResponse{Links: links})
}

func (h *LinkHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	link, err := h.links.Get(ctx, middleware.GetUserID(r.Context()), chi.URLParam(r, "linkId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *LinkHandler) UpsertLink(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	link, err := h.links.Upsert(ctx, middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.LinkSavedResponse{Message: "Link saved successfully", Link: link})
}

func (h *LinkHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	link, err := h.links.Delete(ctx, middleware.GetUserID(r.Context()), chi.URLParam(r, "linkId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.LinkDeletedResponse{Message: "Link deleted successfully", LinkID: link.LinkID})
}
