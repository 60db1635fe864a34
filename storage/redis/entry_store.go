package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/open-rails/bearerkit/core"
)

// EntryStore is a Redis-backed core.Store. The issuing side writes records
// under the same key namespace; bearerkit only reads them, except for the
// Put helpers used when the same process issues and validates.
type EntryStore struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

// NewEntryStore creates a Redis-backed store. keyPrefix defaults to
// "auth:entry:", ttl bounds token records and defaults to 24h.
func NewEntryStore(rdb *redis.Client, keyPrefix string, ttl time.Duration) *EntryStore {
	if keyPrefix == "" {
		keyPrefix = "auth:entry:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EntryStore{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (s *EntryStore) appKey(id string) string   { return s.keyNS + "app:" + id }
func (s *EntryStore) authKey(id string) string  { return s.keyNS + "authz:" + id }
func (s *EntryStore) tokenKey(id string) string { return s.keyNS + "token:" + id }

func (s *EntryStore) GetApplication(ctx context.Context, clientID string) (*core.ApplicationEntry, bool, error) {
	var app core.ApplicationEntry
	found, err := s.get(ctx, s.appKey(clientID), &app)
	if err != nil || !found {
		return nil, false, err
	}
	return &app, true, nil
}

func (s *EntryStore) GetAuthorization(ctx context.Context, id string) (*core.AuthorizationEntry, bool, error) {
	var a core.AuthorizationEntry
	found, err := s.get(ctx, s.authKey(id), &a)
	if err != nil || !found {
		return nil, false, err
	}
	return &a, true, nil
}

func (s *EntryStore) GetToken(ctx context.Context, id string) (*core.TokenEntry, bool, error) {
	var t core.TokenEntry
	found, err := s.get(ctx, s.tokenKey(id), &t)
	if err != nil || !found {
		return nil, false, err
	}
	return &t, true, nil
}

// PutAuthorization writes an authorization record without expiry.
func (s *EntryStore) PutAuthorization(ctx context.Context, a core.AuthorizationEntry) error {
	return s.put(ctx, s.authKey(a.ID), a, 0)
}

// PutToken writes a token record bounded by the store TTL.
func (s *EntryStore) PutToken(ctx context.Context, t core.TokenEntry) error {
	return s.put(ctx, s.tokenKey(t.ID), t, s.ttl)
}

// PutApplication writes a client record without expiry.
func (s *EntryStore) PutApplication(ctx context.Context, app core.ApplicationEntry) error {
	return s.put(ctx, s.appKey(app.ClientID), app, 0)
}

func (s *EntryStore) get(ctx context.Context, key string, out any) (bool, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *EntryStore) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, ttl).Err()
}
