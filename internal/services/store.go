package services

import (
	"context"
	"sort"
	"time"

	"github.com/prolynk/backend/internal/models"
)

type ProfileStore interface {
	// GetProfile returns ErrProfileNotFound when username is unclaimed.
	GetProfile(ctx context.Context, username string) (*models.Profile, error)

	// SaveProfile writes p and applies sync to the owner's account in one
	// atomic step. With expectedVersion 0 the username must be unclaimed;
	// otherwise the stored record must be owned by p.UserID and still be at
	// expectedVersion. A failed condition returns ErrVersionConflict.
	SaveProfile(ctx context.Context, p *models.Profile, expectedVersion int64, sync models.AccountSync) error
}

type AccountStore interface {
	// GetAccount returns ErrAccountNotFound for unknown subjects.
	GetAccount(ctx context.Context, userID string) (*models.UserAccount, error)

	// CreateAccount inserts acct unless one exists (ErrAccountExists).
	CreateAccount(ctx context.Context, acct *models.UserAccount) error
}

type LinkStore interface {
	// GetLink returns tombstoned links too.
	GetLink(ctx context.Context, userID, linkID string) (*models.Link, error)
	PutLink(ctx context.Context, link *models.Link) error
	// ListLinks returns live links ordered by Order, then CreatedAt.
	ListLinks(ctx context.Context, userID string) ([]*models.Link, error)
	// SoftDeleteLink tombstones the link and returns it; ErrLinkNotFound if absent.
	SoftDeleteLink(ctx context.Context, userID, linkID string, at time.Time) (*models.Link, error)
}

// StrikeStore counts moderation rejections per user.
type StrikeStore interface {
	AddStrike(ctx context.Context, userID string, at time.Time) (*models.UserFlag, error)
}

// Store is everything one backing database provides.
type Store interface {
	ProfileStore
	AccountStore
	LinkStore
	StrikeStore
	Close(ctx context.Context) error
}

// ObjectStore is the subset of blob storage the API needs. Implementations
// live in the storage package.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// PublicURL is the unsigned URL of a publicly readable object.
	PublicURL(key string) string
	// KeyFromURL extracts the object key from a URL into this bucket.
	KeyFromURL(rawURL string) (string, bool)
	// SourceURI is a URI an image analyzer can read the object from.
	SourceURI(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// sortLinks orders links for display: by Order, then oldest first.
func sortLinks(links []*models.Link) {
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Order != links[j].Order {
			return links[i].Order < links[j].Order
		}
		return links[i].CreatedAt.Before(links[j].CreatedAt)
	})
}

// liveLinks drops tombstones.
func liveLinks(links []*models.Link) []*models.Link {
	out := make([]*models.Link, 0, len(links))
	for _, l := range links {
		if !l.IsDeleted {
			out = append(out, l)
		}
	}
	return out
}
