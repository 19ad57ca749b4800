package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/prolynk/backend/internal/apperrors"
	"github.com/prolynk/backend/internal/models"
)

// LinkService manages a user's link list. Deletes are soft: the row stays
// behind as a tombstone.
type LinkService struct {
	links LinkStore
	now   func() time.Time
	newID func() string
}

func NewLinkService(links LinkStore) *LinkService {
	return &LinkService{
		links: links,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Upsert creates or overwrites one of userID's links. Writing to a
// tombstoned id brings it back.
func (s *LinkService) Upsert(ctx context.Context, userID string, req *models.UpsertLinkRequest) (*models.Link, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	req.Normalize()
	if errs := req.Validate(); len(errs) > 0 {
		return nil, apperrors.ValidationFields(errs)
	}

	now := s.now().UTC()
	link := &models.Link{
		LinkID:    req.LinkID,
		UserID:    userID,
		Title:     req.Title,
		URL:       req.URL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if link.LinkID == "" {
		link.LinkID = s.newID()
	} else {
		existing, err := s.links.GetLink(ctx, userID, link.LinkID)
		switch {
		case errors.Is(err, ErrLinkNotFound):
		case err != nil:
			return nil, pkgerrors.Wrap(err, "load link")
		default:
			link.CreatedAt = existing.CreatedAt
			link.Order = existing.Order
		}
	}
	if req.Order != nil {
		link.Order = *req.Order
	}

	if err := s.links.PutLink(ctx, link); err != nil {
		return nil, pkgerrors.Wrap(err, "save link")
	}
	return link, nil
}

// Delete tombstones linkID. Links owned by someone else look missing.
func (s *LinkService) Delete(ctx context.Context, userID, linkID string) (*models.Link, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	linkID = strings.TrimSpace(linkID)
	if linkID == "" {
		return nil, apperrors.Validation("Link ID is required")
	}

	link, err := s.links.SoftDeleteLink(ctx, userID, linkID, s.now().UTC())
	if errors.Is(err, ErrLinkNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "delete link")
	}
	return link, nil
}

// Get looks a link up by id, tombstones included.
func (s *LinkService) Get(ctx context.Context, userID, linkID string) (*models.Link, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	link, err := s.links.GetLink(ctx, userID, strings.TrimSpace(linkID))
	if errors.Is(err, ErrLinkNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load link")
	}
	return link, nil
}

// List returns userID's live links in display order.
func (s *LinkService) List(ctx context.Context, userID string) ([]*models.Link, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	links, err := s.links.ListLinks(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list links")
	}
	if links == nil {
		links = []*models.Link{}
	}
	return links, nil
}
