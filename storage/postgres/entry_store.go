package pgstore

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-rails/bearerkit/core"
)

// EntryStore reads authorization and token records from Postgres. The schema
// is created by migrations/postgres; the issuing side populates it.
type EntryStore struct {
	pg     *pgxpool.Pool
	schema string
}

// NewEntryStore builds a store over pool. schema defaults to "auth".
func NewEntryStore(pg *pgxpool.Pool, schema string) *EntryStore {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "auth"
	}
	return &EntryStore{pg: pg, schema: s}
}

func (s *EntryStore) applicationsTable() string   { return s.schema + ".applications" }
func (s *EntryStore) authorizationsTable() string { return s.schema + ".authorizations" }
func (s *EntryStore) tokensTable() string         { return s.schema + ".tokens" }

func (s *EntryStore) GetApplication(ctx context.Context, clientID string) (*core.ApplicationEntry, bool, error) {
	if s.pg == nil || clientID == "" {
		return nil, false, nil
	}
	var app core.ApplicationEntry
	err := s.pg.QueryRow(ctx,
		`SELECT client_id, display_name FROM `+s.applicationsTable()+` WHERE client_id=$1 LIMIT 1`,
		clientID,
	).Scan(&app.ClientID, &app.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &app, true, nil
}

func (s *EntryStore) GetAuthorization(ctx context.Context, id string) (*core.AuthorizationEntry, bool, error) {
	if s.pg == nil || id == "" {
		return nil, false, nil
	}
	var a core.AuthorizationEntry
	err := s.pg.QueryRow(ctx,
		`SELECT id, application_id, subject, status, created_at FROM `+s.authorizationsTable()+` WHERE id=$1 LIMIT 1`,
		id,
	).Scan(&a.ID, &a.ApplicationID, &a.Subject, &a.Status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &a, true, nil
}

func (s *EntryStore) GetToken(ctx context.Context, id string) (*core.TokenEntry, bool, error) {
	if s.pg == nil || id == "" {
		return nil, false, nil
	}
	var t core.TokenEntry
	err := s.pg.QueryRow(ctx,
		`SELECT id, authorization_id, subject, status, expires_at FROM `+s.tokensTable()+` WHERE id=$1 LIMIT 1`,
		id,
	).Scan(&t.ID, &t.AuthorizationID, &t.Subject, &t.Status, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &t, true, nil
}
