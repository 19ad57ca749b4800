package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prolynk/backend/internal/apperrors"
	"github.com/prolynk/backend/internal/models"
)

func newProfileService(t *testing.T) (*ProfileService, *MemoryStore, *fakeObjects) {
	t.Helper()
	store := newMemoryStore(t)
	objects := &fakeObjects{}
	svc := NewProfileService(store, objects, 15*time.Minute)
	svc.now = fixedClock()
	return svc, store, objects
}

func decodePatch(t *testing.T, body string) *models.ProfilePatch {
	t.Helper()
	var p models.ProfilePatch
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return &p
}

func TestSaveCreatesProfileAndCompletesAccount(t *testing.T) {
	svc, store, _ := newProfileService(t)
	ctx := context.Background()

	view, err := svc.Save(ctx, identity("sub-1"), decodePatch(t, `{"username":"  Alice_Dev ","title":"Engineer","skills":["go"," ",""]}`))
	require.NoError(t, err)

	assert.Equal(t, "alice_dev", view.Username)
	assert.Equal(t, "Engineer", view.Title)
	assert.Equal(t, []string{"go"}, view.Skills)
	assert.Equal(t, "User sub-1", view.FullName, "full name defaults from the token")
	assert.Equal(t, "sub-1@example.com", view.Email)
	assert.True(t, view.IsOwner)
	assert.Equal(t, "sub-1", view.UserID)
	require.NotNil(t, view.CreatedAt)

	acct, err := store.GetAccount(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, acct.ProfileComplete)
	assert.Equal(t, "alice_dev", acct.Username)

	stored, err := store.GetProfile(ctx, "alice_dev")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestSavePreservesOmittedAndClearsNull(t *testing.T) {
	svc, _, _ := newProfileService(t)
	ctx := context.Background()
	caller := identity("sub-1")

	_, err := svc.Save(ctx, caller, decodePatch(t, `{
		"username":"alice",
		"title":"Engineer",
		"bio":"Hello",
		"phone":"555-0100",
		"social_links":{"github":"https://github.com/alice"}
	}`))
	require.NoError(t, err)

	view, err := svc.Save(ctx, caller, decodePatch(t, `{"bio":"Updated","phone":null}`))
	require.NoError(t, err)

	assert.Equal(t, "alice", view.Username)
	assert.Equal(t, "Engineer", view.Title)
	assert.Equal(t, "Updated", view.Bio)
	assert.Empty(t, view.Phone)
	assert.Equal(t, map[string]string{"github": "https://github.com/alice"}, view.SocialLinks)
}

func TestSaveIsIdempotent(t *testing.T) {
	svc, _, _ := newProfileService(t)
	ctx := context.Background()
	caller := identity("sub-1")
	body := `{"username":"alice","title":"Engineer","projects":[{"title":"Site","link":"https://alice.dev","tech_stack":["go"]}]}`

	first, err := svc.Save(ctx, caller, decodePatch(t, body))
	require.NoError(t, err)
	second, err := svc.Save(ctx, caller, decodePatch(t, body))
	require.NoError(t, err)

	first.UpdatedAt, second.UpdatedAt = nil, nil
	assert.Equal(t, first, second)
}

func TestSaveUsernameRules(t *testing.T) {
	svc, _, _ := newProfileService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, identity("sub-1"), decodePatch(t, `{"title":"no name yet"}`))
	assert.ErrorIs(t, err, ErrUsernameRequired)

	_, err = svc.Save(ctx, identity("sub-1"), decodePatch(t, `{"username":"alice"}`))
	require.NoError(t, err)

	_, err = svc.Save(ctx, identity("sub-2"), decodePatch(t, `{"username":"ALICE"}`))
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Save(ctx, identity("sub-1"), decodePatch(t, `{"username":"alice2"}`))
	assert.ErrorIs(t, err, ErrUsernameLocked)

	_, err = svc.Save(ctx, identity("sub-3"), decodePatch(t, `{"username":"a!"}`))
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "username")
}

func TestSaveRejectsForeignObjectKeys(t *testing.T) {
	svc, _, _ := newProfileService(t)

	_, err := svc.Save(context.Background(), identity("sub-1"), decodePatch(t, `{
		"username":"alice",
		"avatar_key":"users/sub-2/profile/x.png",
		"resume_key":"users/sub-1/profile/not-a-resume.pdf"
	}`))
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "avatar_key")
	assert.Contains(t, e.Fields, "resume_key")
}

func TestSaveResolvesAvatarKeyFromURL(t *testing.T) {
	svc, _, _ := newProfileService(t)

	view, err := svc.Save(context.Background(), identity("sub-1"), decodePatch(t, `{
		"username":"alice",
		"profile_image_url":"https://cdn.test/bucket/users/sub-1/profile/a.png"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "users/sub-1/profile/a.png", view.AvatarKey)
	assert.Equal(t, "https://cdn.test/bucket/users/sub-1/profile/a.png", view.AvatarURL)
	assert.Equal(t, view.AvatarURL, view.ProfileImageURL)
}

func TestSaveKeepsResumeKeyForForeignResumeURL(t *testing.T) {
	svc, store, _ := newProfileService(t)
	ctx := context.Background()
	caller := identity("sub-1")

	_, err := svc.Save(ctx, caller, decodePatch(t, `{"username":"alice","resume_key":"users/sub-1/resume/cv.pdf"}`))
	require.NoError(t, err)

	for _, url := range []string{
		"https://elsewhere.example/cv.pdf",
		"https://prolynk-uploads.s3.amazonaws.com/users/sub-1/resume/cv.pdf",
	} {
		_, err = svc.Save(ctx, caller, decodePatch(t, `{"bio":"x","resume_url":"`+url+`"}`))
		require.NoError(t, err)

		p, err := store.GetProfile(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "users/sub-1/resume/cv.pdf", p.ResumeKey, url)
	}

	view, err := svc.Save(ctx, caller, decodePatch(t, `{"resume_url":"https://cdn.test/bucket/users/sub-1/resume/new.pdf"}`))
	require.NoError(t, err)
	assert.Equal(t, "users/sub-1/resume/new.pdf", view.ResumeKey)

	view, err = svc.Save(ctx, caller, decodePatch(t, `{"resume_url":""}`))
	require.NoError(t, err)
	assert.Empty(t, view.ResumeKey)
}

func TestGetVisibility(t *testing.T) {
	svc, _, _ := newProfileService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, identity("sub-1"), decodePatch(t, `{
		"username":"alice",
		"phone":"555-0100",
		"resume_key":"users/sub-1/resume/cv.pdf",
		"show_email":true,
		"date_of_birth":"1990-04-01"
	}`))
	require.NoError(t, err)

	public, err := svc.Get(ctx, "Alice", "")
	require.NoError(t, err)
	assert.False(t, public.IsOwner)
	assert.Equal(t, "sub-1@example.com", public.Email)
	assert.Empty(t, public.Phone)
	assert.Empty(t, public.ResumeURL)
	assert.Empty(t, public.ResumeKey)
	assert.Empty(t, public.UserID)
	assert.Empty(t, public.DateOfBirth)
	assert.Nil(t, public.CreatedAt)

	other, err := svc.Get(ctx, "alice", "sub-2")
	require.NoError(t, err)
	assert.False(t, other.IsOwner)

	owner, err := svc.Get(ctx, "alice", "sub-1")
	require.NoError(t, err)
	assert.True(t, owner.IsOwner)
	assert.Equal(t, "555-0100", owner.Phone)
	assert.Equal(t, "https://cdn.test/bucket/users/sub-1/resume/cv.pdf?method=GET&ttl=900", owner.ResumeURL)
	assert.Equal(t, "1990-04-01", owner.DateOfBirth)

	_, err = svc.Save(ctx, identity("sub-1"), decodePatch(t, `{"show_resume":true}`))
	require.NoError(t, err)
	public, err = svc.Get(ctx, "alice", "")
	require.NoError(t, err)
	assert.NotEmpty(t, public.ResumeURL)

	_, err = svc.Get(ctx, "nobody", "")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestGetIncludesLiveLinksInOrder(t *testing.T) {
	svc, store, _ := newProfileService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, identity("sub-1"), decodePatch(t, `{"username":"alice"}`))
	require.NoError(t, err)
	require.NoError(t, store.PutLink(ctx, &models.Link{LinkID: "b", UserID: "sub-1", Title: "Blog", URL: "https://b.dev", Order: 2}))
	require.NoError(t, store.PutLink(ctx, &models.Link{LinkID: "a", UserID: "sub-1", Title: "Site", URL: "https://a.dev", Order: 1}))
	require.NoError(t, store.PutLink(ctx, &models.Link{LinkID: "c", UserID: "sub-1", Title: "Gone", URL: "https://c.dev", IsDeleted: true}))

	view, err := svc.Get(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, []models.PublicLink{
		{Title: "Site", URL: "https://a.dev"},
		{Title: "Blog", URL: "https://b.dev"},
	}, view.Links)
}

func TestCheckUsername(t *testing.T) {
	svc, _, _ := newProfileService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, identity("sub-1"), decodePatch(t, `{"username":"alice"}`))
	require.NoError(t, err)

	available, name, err := svc.CheckUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.False(t, available)
	assert.Equal(t, "alice", name)

	available, name, err = svc.CheckUsername(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, available)
	assert.Equal(t, "bob", name)

	_, _, err = svc.CheckUsername(ctx, "  ")
	assert.ErrorIs(t, err, ErrUsernameMissing)

	_, _, err = svc.CheckUsername(ctx, "no spaces")
	assert.ErrorIs(t, err, ErrUsernameInvalid)
}

func TestSaveRetriesAfterLosingRace(t *testing.T) {
	store := &racingStore{MemoryStore: newMemoryStore(t)}
	svc := NewProfileService(store, &fakeObjects{}, 0)
	svc.now = fixedClock()
	ctx := context.Background()
	caller := identity("sub-1")

	_, err := svc.Save(ctx, caller, decodePatch(t, `{"username":"alice"}`))
	require.NoError(t, err)

	store.saves = 0
	store.before = func() {
		_, err := svc.Save(ctx, caller, decodePatch(t, `{"bio":"from elsewhere"}`))
		require.NoError(t, err)
	}
	view, err := svc.Save(ctx, caller, decodePatch(t, `{"title":"Engineer"}`))
	require.NoError(t, err)

	assert.Equal(t, 3, store.saves)
	assert.Equal(t, "Engineer", view.Title)
	assert.Equal(t, "from elsewhere", view.Bio)

	stored, err := store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Version)
}

type conflictingStore struct {
	*MemoryStore
}

func (conflictingStore) SaveProfile(context.Context, *models.Profile, int64, models.AccountSync) error {
	return ErrVersionConflict
}

func TestSaveGivesUpAfterRepeatedConflicts(t *testing.T) {
	svc := NewProfileService(conflictingStore{newMemoryStore(t)}, &fakeObjects{}, 0)

	_, err := svc.Save(context.Background(), identity("sub-1"), decodePatch(t, `{"username":"alice"}`))
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestClearAvatarIfMatches(t *testing.T) {
	svc, store, _ := newProfileService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, identity("sub-1"), decodePatch(t, `{"username":"alice","avatar_key":"users/sub-1/profile/a.png"}`))
	require.NoError(t, err)

	changed, err := svc.ClearAvatarIfMatches(ctx, "sub-1", "users/sub-1/profile/other.png")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = svc.ClearAvatarIfMatches(ctx, "sub-1", "users/sub-1/profile/a.png")
	require.NoError(t, err)
	assert.True(t, changed)

	p, err := store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, p.AvatarKey)
	assert.Empty(t, p.AvatarURL)

	changed, err = svc.ClearAvatarIfMatches(ctx, "ghost", "users/ghost/profile/a.png")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestGetOmitsResumeWhenSigningFails(t *testing.T) {
	svc, _, objects := newProfileService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, identity("sub-1"), decodePatch(t, `{
		"username":"alice",
		"bio":"Hello",
		"resume_key":"users/sub-1/resume/cv.pdf",
		"show_resume":true
	}`))
	require.NoError(t, err)

	objects.getErr = errors.New("signer offline")
	view, err := svc.Get(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "Hello", view.Bio)
	assert.Empty(t, view.ResumeURL)
}
