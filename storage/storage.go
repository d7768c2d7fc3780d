// Package storage defines the persistence capability consumed by the token
// lifecycle core. Implementations may be backed by memory, Redis, SQL, or any
// engine that can satisfy the field-query contract.
package storage

import (
	"context"
	"errors"
	"time"
)

// Field names understood by TokenStore match queries and partial updates.
const (
	FieldUserID        = "user_id"
	FieldAccessToken   = "access_token"
	FieldRefreshToken  = "refresh_token"
	FieldScope         = "scope"
	FieldAccessExpiry  = "access_expiry"
	FieldRefreshExpiry = "refresh_expiry"
	FieldParentID      = "parent_id"
)

// ErrTokenNotFound is returned by FindOne when no record matches.
var ErrTokenNotFound = errors.New("token not found")

// Fields is a set of named values used both as a match query (all entries must
// match) and as a partial-update payload.
type Fields map[string]any

// Token is the persisted token record. ID is assigned by the store at
// creation. UserID 0 means no resource owner (client_credentials grants).
// ParentID "" means root token; a non-empty ParentID links a rotated-to token
// back to the token it replaced, for grace-window finalization and sibling
// cleanup.
type Token struct {
	ID            string
	UserID        int64
	AccessToken   string
	RefreshToken  string
	Scope         string
	AccessExpiry  time.Time
	RefreshExpiry time.Time
	ParentID      string
}

// Clone returns a copy of the token so callers can mutate it without
// affecting store internals.
func (t *Token) Clone() *Token {
	c := *t
	return &c
}

// TokenStore defines the interface for persisting token records.
// All methods accept context.Context for tracing and cancellation.
//
// AccessToken and RefreshToken values must be unique across all records;
// stores backing this interface should enforce a uniqueness constraint.
// Under heavy concurrent rotation of the same refresh token, strict
// "at most one live child per parent" enforcement additionally requires
// atomic find-and-claim semantics (a transaction or compare-and-delete);
// stores without it rely on the lifecycle's sibling sweep.
type TokenStore interface {
	// Create persists a new token record and returns its store-assigned ID.
	// The record's ID field is also populated.
	Create(ctx context.Context, token *Token) (string, error)

	// FindOne returns the first record matching every entry in match,
	// or ErrTokenNotFound.
	FindOne(ctx context.Context, match Fields) (*Token, error)

	// FindAll returns every record matching every entry in match.
	// A nil or empty match returns all records.
	FindAll(ctx context.Context, match Fields) ([]*Token, error)

	// UpdateFields applies a partial update to the record with the given ID.
	UpdateFields(ctx context.Context, id string, fields Fields) error

	// Delete removes the record with the given ID. Deleting an absent
	// record is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all records. Used by the expired-token sweep.
	List(ctx context.Context) ([]*Token, error)
}
