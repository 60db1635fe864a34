package core

import (
	"context"
	"time"
)

// Claim names used by entry validation to locate backing records.
const (
	// ClaimTokenID is the token record identifier (RFC 7519 "jti").
	ClaimTokenID = "jti"
	// ClaimAuthorizationID is the private claim naming the authorization
	// record a token was issued under.
	ClaimAuthorizationID = "auth_id"
)

// EntryStatus is the lifecycle state of a stored authorization or token record.
type EntryStatus string

const (
	EntryStatusValid   EntryStatus = "valid"
	EntryStatusRevoked EntryStatus = "revoked"
)

// AuthorizationEntry is the persisted record of a grant a token was issued
// under.
type AuthorizationEntry struct {
	ID            string
	ApplicationID string
	Subject       string
	Status        EntryStatus
	CreatedAt     time.Time
}

// TokenEntry is the persisted record of an issued token.
type TokenEntry struct {
	ID              string
	AuthorizationID string
	Subject         string
	Status          EntryStatus
	ExpiresAt       time.Time
}

// ApplicationEntry is the persisted record of a registered client.
type ApplicationEntry struct {
	ClientID    string
	DisplayName string
}

// Store is the persistence collaborator consumed by entry validation.
// Implementations must be safe for concurrent use and report "not found"
// as (nil, false, nil), not as an error. bearerkit never writes through
// this interface; populating records is the issuing side's concern.
type Store interface {
	GetApplication(ctx context.Context, clientID string) (*ApplicationEntry, bool, error)
	GetAuthorization(ctx context.Context, id string) (*AuthorizationEntry, bool, error)
	GetToken(ctx context.Context, id string) (*TokenEntry, bool, error)
}
