package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prolynk/backend/internal/models"
)

const testBucketURL = "https://cdn.test/bucket/"

// fakeObjects signs nothing; URLs just echo their inputs.
type fakeObjects struct {
	mu      sync.Mutex
	deleted []string
	getErr  error
}

var _ ObjectStore = (*fakeObjects)(nil)

func (f *fakeObjects) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("%s%s?method=PUT&ct=%s&ttl=%d", testBucketURL, key, contentType, int(ttl.Seconds())), nil
}

func (f *fakeObjects) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return fmt.Sprintf("%s%s?method=GET&ttl=%d", testBucketURL, key, int(ttl.Seconds())), nil
}

func (f *fakeObjects) PublicURL(key string) string { return testBucketURL + key }

func (f *fakeObjects) KeyFromURL(rawURL string) (string, bool) {
	key, ok := strings.CutPrefix(rawURL, testBucketURL)
	if !ok {
		return "", false
	}
	if i := strings.Index(key, "?"); i >= 0 {
		key = key[:i]
	}
	return key, key != ""
}

func (f *fakeObjects) SourceURI(ctx context.Context, key string) (string, error) {
	return "gs://bucket/" + key, nil
}

func (f *fakeObjects) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

type mockModerator struct {
	mock.Mock
}

func (m *mockModerator) Assess(ctx context.Context, imageURI string) (*SafeSearchResult, error) {
	args := m.Called(ctx, imageURI)
	res, _ := args.Get(0).(*SafeSearchResult)
	return res, args.Error(1)
}

// racingStore lets a test run a competing write just before the next
// SaveProfile reaches the real store.
type racingStore struct {
	*MemoryStore
	before func()
	saves  int
}

func (r *racingStore) SaveProfile(ctx context.Context, p *models.Profile, expectedVersion int64, acctSync models.AccountSync) error {
	r.saves++
	if r.before != nil {
		hook := r.before
		r.before = nil
		hook()
	}
	return r.MemoryStore.SaveProfile(ctx, p, expectedVersion, acctSync)
}

func newMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore("")
	require.NoError(t, err)
	return store
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		at = at.Add(time.Second)
		return at
	}
}

func identity(sub string) models.Identity {
	return models.Identity{Subject: sub, Email: sub + "@example.com", Name: "User " + sub}
}
