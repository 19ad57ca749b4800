package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/prolynk/backend/internal/apperrors"
	"github.com/prolynk/backend/internal/models"
)

var usernameStrip = regexp.MustCompile(`[^a-z0-9_-]`)

// ProvisionInput describes a freshly confirmed sign-up.
type ProvisionInput struct {
	Identity models.Identity
	// RequestedUsername is chosen at registration by native sign-ups.
	// Federated logins pick theirs later, when they complete the profile.
	RequestedUsername string
	DateOfBirth       string
}

type AccountService struct {
	accounts AccountStore
	profiles *ProfileService
	now      func() time.Time
}

func NewAccountService(accounts AccountStore, profiles *ProfileService) *AccountService {
	return &AccountService{
		accounts: accounts,
		profiles: profiles,
		now:      time.Now,
	}
}

// Me returns the caller's account, creating it on first sight.
func (s *AccountService) Me(ctx context.Context, caller models.Identity) (*models.UserAccount, error) {
	if caller.Subject == "" {
		return nil, ErrUnauthenticated
	}
	acct, err := s.accounts.GetAccount(ctx, caller.Subject)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, pkgerrors.Wrap(err, "load account")
	}
	acct, _, err = s.Provision(ctx, ProvisionInput{Identity: caller})
	return acct, err
}

// Provision creates the account for a new subject. It is idempotent: an
// existing account is returned untouched with created=false.
func (s *AccountService) Provision(ctx context.Context, in ProvisionInput) (acct *models.UserAccount, created bool, err error) {
	id := in.Identity
	if strings.TrimSpace(id.Subject) == "" {
		return nil, false, apperrors.Validation("Subject is required")
	}

	now := s.now().UTC()
	acct = &models.UserAccount{
		UserID:    id.Subject,
		Email:     strings.TrimSpace(id.Email),
		FullName:  displayName(id),
		Picture:   id.Picture,
		CreatedAt: now,
		UpdatedAt: now,
	}
	requested := models.NormalizeUsername(in.RequestedUsername)
	if requested == "" && id.Federated {
		acct.Username = temporaryUsername(id)
	}
	if validDate(in.DateOfBirth) {
		acct.DateOfBirth = in.DateOfBirth
	}

	err = s.accounts.CreateAccount(ctx, acct)
	if errors.Is(err, ErrAccountExists) {
		existing, err := s.accounts.GetAccount(ctx, id.Subject)
		if err != nil {
			return nil, false, pkgerrors.Wrap(err, "load existing account")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "create account")
	}

	if requested != "" && s.profiles != nil {
		s.claimInitialProfile(ctx, id, acct, requested)
		if fresh, err := s.accounts.GetAccount(ctx, id.Subject); err == nil {
			acct = fresh
		}
	}
	return acct, true, nil
}

// claimInitialProfile creates the profile a native sign-up asked for. If the
// name is gone by now a suffixed variant is tried; failing that the account
// simply stays incomplete until the user picks another name.
func (s *AccountService) claimInitialProfile(ctx context.Context, id models.Identity, acct *models.UserAccount, requested string) {
	logger := zerolog.Ctx(ctx)

	candidates := []string{requested, suffixedUsername(requested, id.Subject)}
	for _, username := range candidates {
		if !models.ValidUsername(username) {
			continue
		}
		patch := &models.ProfilePatch{
			Username: models.Some(username),
			FullName: models.Some(acct.FullName),
			Email:    models.Some(acct.Email),
		}
		if acct.DateOfBirth != "" {
			patch.DateOfBirth = models.Some(acct.DateOfBirth)
		}

		_, err := s.profiles.Save(ctx, id, patch)
		if err == nil {
			logger.Info().Str("user", id.Subject).Str("username", username).Msg("[Provision] profile claimed")
			return
		}
		if errors.Is(err, ErrUsernameTaken) {
			continue
		}
		logger.Warn().Err(err).Str("user", id.Subject).Str("username", username).Msg("[Provision] profile claim failed")
		return
	}
	logger.Warn().Str("user", id.Subject).Str("username", requested).Msg("[Provision] requested username unavailable")
}

func displayName(id models.Identity) string {
	if n := strings.TrimSpace(id.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(id.GivenName + " " + id.FamilyName); n != "" {
		return n
	}
	if local := emailLocalPart(id.Email); local != "" {
		return local
	}
	return "User"
}

// temporaryUsername is stored on federated accounts until they complete the
// profile. It is never claimed in the profiles table.
func temporaryUsername(id models.Identity) string {
	name := usernameStrip.ReplaceAllString(strings.ToLower(emailLocalPart(id.Email)), "")
	if len(name) > 20 {
		name = name[:20]
	}
	if len(name) >= 3 {
		return name
	}
	return "user_" + shortSubject(id.Subject)
}

func suffixedUsername(username, subject string) string {
	if len(username) > 11 {
		username = username[:11]
	}
	return username + "_" + shortSubject(subject)
}

func shortSubject(subject string) string {
	s := usernameStrip.ReplaceAllString(strings.ToLower(subject), "")
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}

func emailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

func validDate(s string) bool {
	if s == "" {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
