package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prolynk/backend/internal/models"
)

func newAccountService(t *testing.T) (*AccountService, *ProfileService, *MemoryStore) {
	t.Helper()
	profiles, store, _ := newProfileService(t)
	svc := NewAccountService(store, profiles)
	svc.now = fixedClock()
	return svc, profiles, store
}

func TestMeProvisionsOnFirstCall(t *testing.T) {
	svc, _, store := newAccountService(t)
	ctx := context.Background()

	acct, err := svc.Me(ctx, models.Identity{Subject: "sub-1", Email: "jane@example.com", GivenName: "Jane", FamilyName: "Doe"})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", acct.UserID)
	assert.Equal(t, "Jane Doe", acct.FullName)
	assert.False(t, acct.ProfileComplete)
	assert.Empty(t, acct.Username)

	again, err := svc.Me(ctx, models.Identity{Subject: "sub-1", Email: "changed@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", again.Email)

	_, err = store.GetAccount(ctx, "sub-1")
	require.NoError(t, err)

	_, err = svc.Me(ctx, models.Identity{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestProvisionNativeClaimsRequestedUsername(t *testing.T) {
	svc, profiles, _ := newAccountService(t)
	ctx := context.Background()

	acct, created, err := svc.Provision(ctx, ProvisionInput{
		Identity:          models.Identity{Subject: "sub-1", Email: "alice@example.com", Name: "Alice"},
		RequestedUsername: "Alice",
		DateOfBirth:       "1990-04-01",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, acct.ProfileComplete)
	assert.Equal(t, "alice", acct.Username)
	assert.Equal(t, "1990-04-01", acct.DateOfBirth)

	view, err := profiles.Get(ctx, "alice", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", view.FullName)
	assert.Equal(t, "1990-04-01", view.DateOfBirth)

	_, created, err = svc.Provision(ctx, ProvisionInput{Identity: models.Identity{Subject: "sub-1"}, RequestedUsername: "other"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestProvisionSuffixesTakenUsername(t *testing.T) {
	svc, _, _ := newAccountService(t)
	ctx := context.Background()

	_, _, err := svc.Provision(ctx, ProvisionInput{Identity: models.Identity{Subject: "first"}, RequestedUsername: "alice"})
	require.NoError(t, err)

	acct, _, err := svc.Provision(ctx, ProvisionInput{
		Identity:          models.Identity{Subject: "ABCDEF123456"},
		RequestedUsername: "alice",
	})
	require.NoError(t, err)
	assert.True(t, acct.ProfileComplete)
	assert.Equal(t, "alice_abcdef12", acct.Username)
}

func TestProvisionFederatedGetsTemporaryUsername(t *testing.T) {
	svc, _, store := newAccountService(t)
	ctx := context.Background()

	acct, created, err := svc.Provision(ctx, ProvisionInput{
		Identity: models.Identity{Subject: "google_123", Email: "J.Smith+dev@gmail.com", Federated: true},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, acct.ProfileComplete)
	assert.Equal(t, "jsmithdev", acct.Username)
	assert.Equal(t, "J.Smith+dev", acct.FullName)

	_, err = store.GetProfile(ctx, "jsmithdev")
	assert.ErrorIs(t, err, ErrProfileNotFound, "temporary usernames are never claimed")

	short, _, err := svc.Provision(ctx, ProvisionInput{
		Identity: models.Identity{Subject: "gh-9876543210", Email: "x@y.z", Federated: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "user_gh-98765", short.Username)
}

func TestSuffixedUsernameStaysValid(t *testing.T) {
	name := suffixedUsername("averyveryverylongname", "0123456789abcdef")
	assert.Equal(t, "averyveryve_01234567", name)
	assert.True(t, models.ValidUsername(name))
}
