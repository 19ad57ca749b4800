package services

import (
	"context"
	"sync"
	"time"

	"github.com/prolynk/backend/internal/models"
	"github.com/prolynk/backend/internal/storage"
)

// MemoryStore keeps everything in process. A single mutex makes the
// profile+account commit atomic. With a data dir every write is also
// snapshotted to disk and reloaded on start.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile         // username -> profile
	accounts map[string]*models.UserAccount     // userID -> account
	links    map[string]map[string]*models.Link // userID -> linkID -> link
	flags    map[string]*models.UserFlag        // userID -> strikes
	snapshot *storage.JSONStore
}

type memorySnapshot struct {
	Profiles []*models.Profile     `json:"profiles"`
	Accounts []*models.UserAccount `json:"accounts"`
	Links    []*models.Link        `json:"links"`
	Flags    []*models.UserFlag    `json:"flags,omitempty"`
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. dataDir may be empty for a purely
// in-memory store.
func NewMemoryStore(dataDir string) (*MemoryStore, error) {
	s := &MemoryStore{
		profiles: make(map[string]*models.Profile),
		accounts: make(map[string]*models.UserAccount),
		links:    make(map[string]map[string]*models.Link),
		flags:    make(map[string]*models.UserFlag),
	}
	if dataDir == "" {
		return s, nil
	}

	js, err := storage.NewJSONStore(dataDir, "prolynk.json")
	if err != nil {
		return nil, err
	}
	var snap memorySnapshot
	if err := js.Load(&snap); err != nil {
		return nil, err
	}
	for _, p := range snap.Profiles {
		s.profiles[p.Username] = p
	}
	for _, a := range snap.Accounts {
		s.accounts[a.UserID] = a
	}
	for _, l := range snap.Links {
		s.linksFor(l.UserID)[l.LinkID] = l
	}
	for _, f := range snap.Flags {
		s.flags[f.UserID] = f
	}
	s.snapshot = js
	return s, nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func (s *MemoryStore) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.profiles[username]
	if !exists {
		return nil, ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) SaveProfile(ctx context.Context, p *models.Profile, expectedVersion int64, acctSync models.AccountSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.profiles[p.Username]
	switch {
	case expectedVersion == 0 && exists:
		return ErrVersionConflict
	case expectedVersion != 0 && (!exists || current.UserID != p.UserID || current.Version != expectedVersion):
		return ErrVersionConflict
	}

	acct := &models.UserAccount{}
	if existing, ok := s.accounts[acctSync.UserID]; ok {
		copied := *existing
		acct = &copied
	}
	acctSync.Apply(acct)

	prevAcct, hadAcct := s.accounts[acct.UserID]
	s.profiles[p.Username] = p.Clone()
	s.accounts[acct.UserID] = acct
	return s.commitLocked(func() {
		if exists {
			s.profiles[p.Username] = current
		} else {
			delete(s.profiles, p.Username)
		}
		if hadAcct {
			s.accounts[acct.UserID] = prevAcct
		} else {
			delete(s.accounts, acct.UserID)
		}
	})
}

func (s *MemoryStore) GetAccount(ctx context.Context, userID string) (*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.accounts[userID]
	if !exists {
		return nil, ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *MemoryStore) CreateAccount(ctx context.Context, acct *models.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.UserID]; exists {
		return ErrAccountExists
	}
	copied := *acct
	s.accounts[acct.UserID] = &copied
	return s.commitLocked(func() { delete(s.accounts, acct.UserID) })
}

func (s *MemoryStore) AddStrike(ctx context.Context, userID string, at time.Time) (*models.UserFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.flags[userID]
	next := models.UserFlag{UserID: userID}
	if exists {
		next = *prev
	}
	next.Strikes++
	next.LastStrikeAt = at
	next.UpdatedAt = at

	s.flags[userID] = &next
	err := s.commitLocked(func() {
		if exists {
			s.flags[userID] = prev
		} else {
			delete(s.flags, userID)
		}
	})
	if err != nil {
		return nil, err
	}
	copied := next
	return &copied, nil
}

func (s *MemoryStore) GetLink(ctx context.Context, userID, linkID string) (*models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.links[userID][linkID]
	if !exists {
		return nil, ErrLinkNotFound
	}
	copied := *l
	return &copied, nil
}

func (s *MemoryStore) PutLink(ctx context.Context, link *models.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.linksFor(link.UserID)
	prev, exists := byID[link.LinkID]
	copied := *link
	byID[link.LinkID] = &copied
	return s.commitLocked(func() {
		if exists {
			byID[link.LinkID] = prev
		} else {
			delete(byID, link.LinkID)
		}
	})
}

func (s *MemoryStore) ListLinks(ctx context.Context, userID string) ([]*models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Link, 0, len(s.links[userID]))
	for _, l := range s.links[userID] {
		copied := *l
		out = append(out, &copied)
	}
	out = liveLinks(out)
	sortLinks(out)
	return out, nil
}

func (s *MemoryStore) SoftDeleteLink(ctx context.Context, userID, linkID string, at time.Time) (*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, exists := s.links[userID][linkID]
	if !exists {
		return nil, ErrLinkNotFound
	}
	next := *l
	next.IsDeleted = true
	next.UpdatedAt = at
	s.links[userID][linkID] = &next
	if err := s.commitLocked(func() { s.links[userID][linkID] = l }); err != nil {
		return nil, err
	}
	copied := next
	return &copied, nil
}

func (s *MemoryStore) linksFor(userID string) map[string]*models.Link {
	m, ok := s.links[userID]
	if !ok {
		m = make(map[string]*models.Link)
		s.links[userID] = m
	}
	return m
}

// commitLocked writes the snapshot and runs undo if that fails. Callers hold
// the write lock.
func (s *MemoryStore) commitLocked(undo func()) error {
	if err := s.persistLocked(); err != nil {
		undo()
		return err
	}
	return nil
}

// persistLocked writes the snapshot; callers hold the write lock.
func (s *MemoryStore) persistLocked() error {
	if s.snapshot == nil {
		return nil
	}
	snap := memorySnapshot{
		Profiles: make([]*models.Profile, 0, len(s.profiles)),
		Accounts: make([]*models.UserAccount, 0, len(s.accounts)),
	}
	for _, p := range s.profiles {
		snap.Profiles = append(snap.Profiles, p)
	}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, a)
	}
	for _, byID := range s.links {
		for _, l := range byID {
			snap.Links = append(snap.Links, l)
		}
	}
	for _, f := range s.flags {
		snap.Flags = append(snap.Flags, f)
	}
	return s.snapshot.Save(snap)
}
