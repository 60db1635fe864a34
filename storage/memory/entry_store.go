package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/open-rails/bearerkit/core"
)

// EntryStore is an in-memory core.Store for tests and single-process
// deployments. Expired token records are pruned by a background goroutine
// once a minute.
type EntryStore struct {
	mu             sync.RWMutex
	applications   map[string]core.ApplicationEntry
	authorizations map[string]core.AuthorizationEntry
	tokens         map[string]core.TokenEntry
	closed         chan struct{}
}

// NewEntryStore creates an empty store and starts the pruning goroutine.
func NewEntryStore() *EntryStore {
	s := &EntryStore{
		applications:   make(map[string]core.ApplicationEntry),
		authorizations: make(map[string]core.AuthorizationEntry),
		tokens:         make(map[string]core.TokenEntry),
		closed:         make(chan struct{}),
	}
	go s.pruneLoop()
	return s
}

// PutApplication registers a client record.
func (s *EntryStore) PutApplication(app core.ApplicationEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications[app.ClientID] = app
}

// PutAuthorization registers an authorization record.
func (s *EntryStore) PutAuthorization(a core.AuthorizationEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorizations[a.ID] = a
}

// PutToken registers a token record.
func (s *EntryStore) PutToken(t core.TokenEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.ID] = t
}

// RevokeAuthorization marks an authorization record revoked.
func (s *EntryStore) RevokeAuthorization(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.authorizations[id]; ok {
		a.Status = core.EntryStatusRevoked
		s.authorizations[id] = a
	}
}

// RevokeToken marks a token record revoked.
func (s *EntryStore) RevokeToken(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[id]; ok {
		t.Status = core.EntryStatusRevoked
		s.tokens[id] = t
	}
}

func (s *EntryStore) GetApplication(_ context.Context, clientID string) (*core.ApplicationEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[clientID]
	if !ok {
		return nil, false, nil
	}
	return &app, true, nil
}

func (s *EntryStore) GetAuthorization(_ context.Context, id string) (*core.AuthorizationEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.authorizations[id]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (s *EntryStore) GetToken(_ context.Context, id string) (*core.TokenEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, false, nil
	}
	return &t, true, nil
}

// pruneLoop removes expired token records every minute.
func (s *EntryStore) pruneLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.prune()
		case <-s.closed:
			return
		}
	}
}

func (s *EntryStore) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, t := range s.tokens {
		if !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt) {
			delete(s.tokens, id)
		}
	}
}

// Close stops the background pruning goroutine.
func (s *EntryStore) Close() error {
	close(s.closed)
	return nil
}
