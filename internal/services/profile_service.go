package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/prolynk/backend/internal/apperrors"
	"github.com/prolynk/backend/internal/models"
)

const defaultSaveAttempts = 3

// ProfileService owns the profile merge, the username claim and the
// owner/public visibility rules.
type ProfileService struct {
	profiles    ProfileStore
	accounts    AccountStore
	links       LinkStore
	objects     ObjectStore
	resumeTTL   time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewProfileService(store Store, objects ObjectStore, resumeTTL time.Duration) *ProfileService {
	return &ProfileService{
		profiles:    store,
		accounts:    store,
		links:       store,
		objects:     objects,
		resumeTTL:   resumeTTL,
		maxAttempts: defaultSaveAttempts,
		now:         time.Now,
	}
}

// Save merges patch into the caller's profile and claims the username on
// first use. The profile write and the account completion flag are
// committed together.
func (s *ProfileService) Save(ctx context.Context, caller models.Identity, patch *models.ProfilePatch) (*models.ProfileView, error) {
	if caller.Subject == "" {
		return nil, ErrUnauthenticated
	}

	patch.Normalize()
	if errs := patch.Validate(); len(errs) > 0 {
		return nil, apperrors.ValidationFields(errs)
	}
	s.resolveObjectRefs(patch)
	if err := checkKeyOwnership(caller.Subject, patch); err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetAccount(ctx, caller.Subject)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, pkgerrors.Wrap(err, "load account")
	}
	username, err := resolveUsername(patch, acct)
	if err != nil {
		return nil, err
	}
	if caller.Email == "" && acct != nil {
		caller.Email = acct.Email
	}

	saved, err := s.commit(ctx, username, caller, func(current *models.Profile, now time.Time) *models.Profile {
		next := mergeProfile(current, patch)
		if current == nil {
			applyCreationDefaults(next, patch, caller, acct)
		}
		return next
	})
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, saved, true), nil
}

// Get returns the profile for username as seen by requesterID ("" for an
// anonymous reader).
func (s *ProfileService) Get(ctx context.Context, username, requesterID string) (*models.ProfileView, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return nil, ErrProfileNotFound
	}

	p, err := s.profiles.GetProfile(ctx, username)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load profile")
	}
	return s.buildView(ctx, p, requesterID != "" && requesterID == p.UserID), nil
}

// CheckUsername reports whether raw can still be claimed. It returns the
// normalized form alongside.
func (s *ProfileService) CheckUsername(ctx context.Context, raw string) (bool, string, error) {
	username := models.NormalizeUsername(raw)
	if username == "" {
		return false, "", ErrUsernameMissing
	}
	if !models.ValidUsername(username) {
		return false, username, ErrUsernameInvalid
	}

	_, err := s.profiles.GetProfile(ctx, username)
	switch {
	case errors.Is(err, ErrProfileNotFound):
		return true, username, nil
	case err != nil:
		return false, username, pkgerrors.Wrap(err, "lookup username")
	default:
		return false, username, nil
	}
}

// ClearAvatarIfMatches removes the avatar of userID's profile when it still
// points at key. It reports whether anything changed.
func (s *ProfileService) ClearAvatarIfMatches(ctx context.Context, userID, key string) (bool, error) {
	acct, err := s.accounts.GetAccount(ctx, userID)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "load account")
	}
	if !acct.ProfileComplete || acct.Username == "" {
		return false, nil
	}

	changed := false
	caller := models.Identity{Subject: userID, Email: acct.Email}
	_, err = s.commit(ctx, acct.Username, caller, func(current *models.Profile, _ time.Time) *models.Profile {
		if current == nil || current.AvatarKey != key {
			return nil
		}
		next := current.Clone()
		next.AvatarKey = ""
		next.AvatarURL = ""
		changed = true
		return next
	})
	if errors.Is(err, ErrUsernameTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return changed, nil
}

// commit runs a read-modify-write on username. apply returns the next record
// or nil to leave it alone. The write is conditional on the version that was
// read, and is retried from a fresh read when another writer got there first.
func (s *ProfileService) commit(
	ctx context.Context,
	username string,
	caller models.Identity,
	apply func(current *models.Profile, now time.Time) *models.Profile,
) (*models.Profile, error) {
	logger := zerolog.Ctx(ctx)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		current, err := s.profiles.GetProfile(ctx, username)
		switch {
		case errors.Is(err, ErrProfileNotFound):
			current = nil
		case err != nil:
			return nil, pkgerrors.Wrap(err, "load profile")
		case current.UserID != caller.Subject:
			return nil, ErrUsernameTaken
		}

		now := s.now().UTC()
		next := apply(current, now)
		if next == nil {
			return current, nil
		}

		var expected int64
		if current != nil {
			expected = current.Version
			next.CreatedAt = current.CreatedAt
		} else {
			next.CreatedAt = now
		}
		next.Username = username
		next.UserID = caller.Subject
		next.Version = expected + 1
		next.UpdatedAt = now

		sync := models.AccountSync{
			UserID:      caller.Subject,
			Email:       caller.Email,
			Username:    username,
			FullName:    next.FullName,
			DateOfBirth: next.DateOfBirth,
			At:          now,
		}
		err = s.profiles.SaveProfile(ctx, next, expected, sync)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, pkgerrors.Wrap(err, "save profile")
		}
		logger.Debug().Str("username", username).Int("attempt", attempt).Msg("profile write lost a race, retrying")
	}
	return nil, ErrConcurrentUpdate
}

func (s *ProfileService) buildView(ctx context.Context, p *models.Profile, isOwner bool) *models.ProfileView {
	v := &models.ProfileView{
		Username:        p.Username,
		FullName:        p.FullName,
		Title:           p.Title,
		Bio:             p.Bio,
		Skills:          p.Skills,
		SocialLinks:     p.SocialLinks,
		Projects:        p.Projects,
		AvatarURL:       p.AvatarURL,
		ProfileImageURL: p.AvatarURL,
		ShowEmail:       p.ShowEmail,
		ShowPhone:       p.ShowPhone,
		ShowResume:      p.ShowResume,
		FavoriteColor:   p.FavoriteColor,
		IsOwner:         isOwner,
	}
	if v.Skills == nil {
		v.Skills = []string{}
	}
	if v.SocialLinks == nil {
		v.SocialLinks = map[string]string{}
	}
	if v.Projects == nil {
		v.Projects = []models.Project{}
	}

	v.Links = []models.PublicLink{}
	links, err := s.links.ListLinks(ctx, p.UserID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user", p.UserID).Msg("[ProfileView] links unavailable")
	}
	for _, l := range links {
		v.Links = append(v.Links, models.PublicLink{Title: l.Title, URL: l.URL})
	}

	if (isOwner || p.ShowEmail) && p.Email != "" {
		v.Email = p.Email
	}
	if (isOwner || p.ShowPhone) && p.Phone != "" {
		v.Phone = p.Phone
	}
	if (isOwner || p.ShowResume) && p.ResumeKey != "" {
		url, err := s.objects.PresignGet(ctx, p.ResumeKey, s.resumeTTL)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("user", p.UserID).Msg("[ProfileView] resume url unavailable")
		}
		v.ResumeURL = url
	}

	if isOwner {
		v.UserID = p.UserID
		v.ResumeKey = p.ResumeKey
		v.AvatarKey = p.AvatarKey
		v.DateOfBirth = p.DateOfBirth
		created, updated := p.CreatedAt, p.UpdatedAt
		v.CreatedAt = &created
		v.UpdatedAt = &updated
	}
	return v
}

// resolveObjectRefs keeps object keys and their URLs consistent: a URL into
// the bucket yields its key, a key yields its public URL.
func (s *ProfileService) resolveObjectRefs(patch *models.ProfilePatch) {
	if patch.AvatarURL.Set && !patch.AvatarKey.Set {
		key, _ := s.objects.KeyFromURL(patch.AvatarURL.Value)
		patch.AvatarKey = models.Some(key)
	}
	if patch.AvatarKey.Set && !patch.AvatarURL.Set {
		url := ""
		if patch.AvatarKey.Value != "" {
			url = s.objects.PublicURL(patch.AvatarKey.Value)
		}
		patch.AvatarURL = models.Some(url)
	}

	// A resume URL outside the bucket carries no key, so the stored one stays.
	if patch.ResumeURL.Set && !patch.ResumeKey.Set {
		if patch.ResumeURL.Value == "" {
			patch.ResumeKey = models.Some("")
		} else if key, ok := s.objects.KeyFromURL(patch.ResumeURL.Value); ok {
			patch.ResumeKey = models.Some(key)
		}
	}
	patch.ResumeURL = models.Optional[string]{}

	if patch.Projects.Set {
		for i := range patch.Projects.Value {
			pr := &patch.Projects.Value[i]
			if pr.ImageKey != "" && pr.ImageURL == "" {
				pr.ImageURL = s.objects.PublicURL(pr.ImageKey)
			}
		}
	}
}

func checkKeyOwnership(userID string, patch *models.ProfilePatch) error {
	fields := make(map[string]string)
	if k := patch.AvatarKey.Value; k != "" && !strings.HasPrefix(k, objectPrefix(userID, models.FileTypeProfileImage)) {
		fields["avatar_key"] = ErrForeignKey.Message
	}
	if k := patch.ResumeKey.Value; k != "" && !strings.HasPrefix(k, objectPrefix(userID, models.FileTypeResume)) {
		fields["resume_key"] = ErrForeignKey.Message
	}
	for i, pr := range patch.Projects.Value {
		if pr.ImageKey != "" && !strings.HasPrefix(pr.ImageKey, userPrefix(userID)) {
			fields[fmt.Sprintf("projects[%d].image_key", i)] = ErrForeignKey.Message
		}
	}
	if len(fields) > 0 {
		return apperrors.ValidationFields(fields)
	}
	return nil
}

// resolveUsername picks the profile key for a save. A completed account is
// pinned to the username it claimed.
func resolveUsername(patch *models.ProfilePatch, acct *models.UserAccount) (string, error) {
	claimed := ""
	if acct != nil && acct.ProfileComplete {
		claimed = acct.Username
	}
	if !patch.Username.Set {
		if claimed == "" {
			return "", ErrUsernameRequired
		}
		return claimed, nil
	}
	if claimed != "" && claimed != patch.Username.Value {
		return "", ErrUsernameLocked
	}
	return patch.Username.Value, nil
}

// mergeProfile applies every supplied patch field to a copy of current.
// Identity, timestamps and version are left to the caller.
func mergeProfile(current *models.Profile, patch *models.ProfilePatch) *models.Profile {
	next := current.Clone()
	if next == nil {
		next = &models.Profile{}
	}

	patch.FullName.Apply(&next.FullName)
	patch.Title.Apply(&next.Title)
	patch.Bio.Apply(&next.Bio)
	patch.Skills.Apply(&next.Skills)
	patch.SocialLinks.Apply(&next.SocialLinks)
	patch.Projects.Apply(&next.Projects)
	patch.AvatarKey.Apply(&next.AvatarKey)
	patch.AvatarURL.Apply(&next.AvatarURL)
	patch.ResumeKey.Apply(&next.ResumeKey)
	patch.Email.Apply(&next.Email)
	patch.Phone.Apply(&next.Phone)
	patch.ShowEmail.Apply(&next.ShowEmail)
	patch.ShowPhone.Apply(&next.ShowPhone)
	patch.ShowResume.Apply(&next.ShowResume)
	patch.FavoriteColor.Apply(&next.FavoriteColor)
	patch.DateOfBirth.Apply(&next.DateOfBirth)

	// Stored records never share backing arrays with the request.
	return next.Clone()
}

// applyCreationDefaults fills a brand new profile from the account and token
// where the first submission left fields out.
func applyCreationDefaults(p *models.Profile, patch *models.ProfilePatch, caller models.Identity, acct *models.UserAccount) {
	if !patch.FullName.Set {
		switch {
		case acct != nil && acct.FullName != "":
			p.FullName = acct.FullName
		default:
			p.FullName = caller.Name
		}
	}
	if !patch.Email.Set {
		p.Email = caller.Email
	}
	if !patch.DateOfBirth.Set && acct != nil {
		p.DateOfBirth = acct.DateOfBirth
	}
}
