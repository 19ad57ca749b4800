package services

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/prolynk/backend/internal/models"
)

type ModerationOutcome string

const (
	OutcomeSkipped  ModerationOutcome = "skipped"
	OutcomeApproved ModerationOutcome = "approved"
	OutcomeRejected ModerationOutcome = "rejected"
)

// ModerationService reviews freshly uploaded avatars. Unsafe images are
// deleted and unhooked from the owner's profile.
type ModerationService struct {
	moderator ImageModerator
	objects   ObjectStore
	profiles  *ProfileService
	strikes   StrikeStore
	now       func() time.Time
}

// NewModerationService returns a service that skips every object when
// moderator is nil.
func NewModerationService(moderator ImageModerator, objects ObjectStore, profiles *ProfileService) *ModerationService {
	return &ModerationService{
		moderator: moderator,
		objects:   objects,
		profiles:  profiles,
		now:       time.Now,
	}
}

// WithStrikes makes every rejection count against the uploader.
func (m *ModerationService) WithStrikes(strikes StrikeStore) *ModerationService {
	m.strikes = strikes
	return m
}

// ReviewUpload handles one finalized object. Errors are worth retrying.
func (m *ModerationService) ReviewUpload(ctx context.Context, key string) (ModerationOutcome, error) {
	logger := zerolog.Ctx(ctx)

	userID, fileType, ok := ParseObjectKey(key)
	if !ok || fileType != models.FileTypeProfileImage || m.moderator == nil {
		return OutcomeSkipped, nil
	}

	uri, err := m.objects.SourceURI(ctx, key)
	if err != nil {
		return "", pkgerrors.Wrap(err, "resolve object uri")
	}
	ss, err := m.moderator.Assess(ctx, uri)
	if err != nil {
		return "", pkgerrors.Wrap(err, "safesearch")
	}
	logger.Info().
		Str("key", key).
		Str("adult", ss.Adult).
		Str("violence", ss.Violence).
		Str("racy", ss.Racy).
		Bool("unsafe", ss.IsUnsafe()).
		Msg("[moderation] safesearch result")

	if !ss.IsUnsafe() {
		return OutcomeApproved, nil
	}

	if err := m.objects.Delete(ctx, key); err != nil {
		return "", pkgerrors.Wrap(err, "delete unsafe object")
	}
	cleared, err := m.profiles.ClearAvatarIfMatches(ctx, userID, key)
	if err != nil {
		return "", err
	}
	logger.Warn().Str("user", userID).Str("key", key).Bool("avatar_cleared", cleared).Msg("[moderation] image rejected")

	if m.strikes != nil {
		// The object is already gone; a lost strike is not worth a redelivery.
		flag, err := m.strikes.AddStrike(ctx, userID, m.now().UTC())
		if err != nil {
			logger.Error().Err(err).Str("user", userID).Msg("[moderation] failed to record strike")
		} else {
			logger.Info().Str("user", userID).Int("strikes", flag.Strikes).Msg("[moderation] strike recorded")
		}
	}
	return OutcomeRejected, nil
}
