package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/oauth-core/instrumentation"
	"github.com/giantswarm/oauth-core/storage"
)

// Store is an in-memory implementation of storage.TokenStore.
//
// All operations run under a single mutex, so the store provides the atomic
// find-and-claim semantics the lifecycle relies on for strict single-child
// enforcement under concurrent rotation. Distributed backends need a
// transaction or compare-and-delete to give the same guarantee.
type Store struct {
	mu sync.RWMutex

	tokens    map[string]*storage.Token // record ID -> token
	byAccess  map[string]string         // access token value -> record ID
	byRefresh map[string]string         // refresh token value -> record ID

	// Lock-free counter for the live-token gauge
	tokenCount atomic.Int64

	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// Compile-time interface check
var _ storage.TokenStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return NewWithLogger(nil)
}

// NewWithLogger creates a new in-memory store with a custom logger
func NewWithLogger(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		tokens:    make(map[string]*storage.Token),
		byAccess:  make(map[string]string),
		byRefresh: make(map[string]string),
		logger:    logger,
	}
}

// SetInstrumentation wires OpenTelemetry metrics into the store and registers
// the live-token gauge callback.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) error {
	s.metrics = inst.Metrics()
	return inst.RegisterTokenCountCallback(func() int64 {
		return s.tokenCount.Load()
	})
}

// Create persists a new token record and returns its store-assigned ID.
// It fails if the access or refresh token value collides with an existing
// record, enforcing the global uniqueness constraint.
func (s *Store) Create(ctx context.Context, token *storage.Token) (string, error) {
	start := time.Now()
	var err error
	defer func() { s.metrics.RecordStorageOperation(ctx, "create", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAccess[token.AccessToken]; exists {
		err = fmt.Errorf("access token value already exists")
		return "", err
	}
	if _, exists := s.byRefresh[token.RefreshToken]; exists {
		err = fmt.Errorf("refresh token value already exists")
		return "", err
	}

	record := token.Clone()
	record.ID = uuid.NewString()

	s.tokens[record.ID] = record
	s.byAccess[record.AccessToken] = record.ID
	s.byRefresh[record.RefreshToken] = record.ID
	s.tokenCount.Store(int64(len(s.tokens)))

	token.ID = record.ID
	return record.ID, nil
}

// FindOne returns the first record matching every entry in match.
func (s *Store) FindOne(ctx context.Context, match storage.Fields) (*storage.Token, error) {
	start := time.Now()
	var err error
	defer func() { s.metrics.RecordStorageOperation(ctx, "find_one", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Fast path for the two indexed lookups the lifecycle uses on every call.
	if v, ok := match[storage.FieldAccessToken].(string); ok && len(match) == 1 {
		if id, found := s.byAccess[v]; found {
			return s.tokens[id].Clone(), nil
		}
		err = storage.ErrTokenNotFound
		return nil, err
	}
	if v, ok := match[storage.FieldRefreshToken].(string); ok && len(match) == 1 {
		if id, found := s.byRefresh[v]; found {
			return s.tokens[id].Clone(), nil
		}
		err = storage.ErrTokenNotFound
		return nil, err
	}

	for _, t := range s.tokens {
		ok, matchErr := matchToken(t, match)
		if matchErr != nil {
			err = matchErr
			return nil, err
		}
		if ok {
			return t.Clone(), nil
		}
	}

	err = storage.ErrTokenNotFound
	return nil, err
}

// FindAll returns every record matching every entry in match.
func (s *Store) FindAll(ctx context.Context, match storage.Fields) ([]*storage.Token, error) {
	start := time.Now()
	var err error
	defer func() { s.metrics.RecordStorageOperation(ctx, "find_all", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Token
	for _, t := range s.tokens {
		ok, matchErr := matchToken(t, match)
		if matchErr != nil {
			err = matchErr
			return nil, err
		}
		if ok {
			result = append(result, t.Clone())
		}
	}

	return result, nil
}

// UpdateFields applies a partial update to the record with the given ID.
func (s *Store) UpdateFields(ctx context.Context, id string, fields storage.Fields) error {
	start := time.Now()
	var err error
	defer func() { s.metrics.RecordStorageOperation(ctx, "update_fields", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.tokens[id]
	if !exists {
		err = storage.ErrTokenNotFound
		return err
	}

	for field, value := range fields {
		switch field {
		case storage.FieldUserID:
			v, ok := value.(int64)
			if !ok {
				err = fmt.Errorf("field %s: expected int64, got %T", field, value)
				return err
			}
			record.UserID = v
		case storage.FieldAccessToken:
			v, ok := value.(string)
			if !ok {
				err = fmt.Errorf("field %s: expected string, got %T", field, value)
				return err
			}
			delete(s.byAccess, record.AccessToken)
			record.AccessToken = v
			s.byAccess[v] = id
		case storage.FieldRefreshToken:
			v, ok := value.(string)
			if !ok {
				err = fmt.Errorf("field %s: expected string, got %T", field, value)
				return err
			}
			delete(s.byRefresh, record.RefreshToken)
			record.RefreshToken = v
			s.byRefresh[v] = id
		case storage.FieldScope:
			v, ok := value.(string)
			if !ok {
				err = fmt.Errorf("field %s: expected string, got %T", field, value)
				return err
			}
			record.Scope = v
		case storage.FieldAccessExpiry:
			v, ok := value.(time.Time)
			if !ok {
				err = fmt.Errorf("field %s: expected time.Time, got %T", field, value)
				return err
			}
			record.AccessExpiry = v
		case storage.FieldRefreshExpiry:
			v, ok := value.(time.Time)
			if !ok {
				err = fmt.Errorf("field %s: expected time.Time, got %T", field, value)
				return err
			}
			record.RefreshExpiry = v
		case storage.FieldParentID:
			v, ok := value.(string)
			if !ok {
				err = fmt.Errorf("field %s: expected string, got %T", field, value)
				return err
			}
			record.ParentID = v
		default:
			err = fmt.Errorf("unknown field: %s", field)
			return err
		}
	}

	return nil
}

// Delete removes the record with the given ID. Deleting an absent record is
// not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOperation(ctx, "delete", start, nil) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.tokens[id]
	if !exists {
		return nil
	}

	delete(s.byAccess, record.AccessToken)
	delete(s.byRefresh, record.RefreshToken)
	delete(s.tokens, id)
	s.tokenCount.Store(int64(len(s.tokens)))

	return nil
}

// List returns all records.
func (s *Store) List(ctx context.Context) ([]*storage.Token, error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOperation(ctx, "list", start, nil) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		result = append(result, t.Clone())
	}

	return result, nil
}

// Len returns the current number of records. Useful in tests and for the
// live-token gauge.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// matchToken reports whether the token matches every entry in fields.
func matchToken(t *storage.Token, fields storage.Fields) (bool, error) {
	for field, value := range fields {
		switch field {
		case storage.FieldUserID:
			v, ok := value.(int64)
			if !ok {
				return false, fmt.Errorf("field %s: expected int64, got %T", field, value)
			}
			if t.UserID != v {
				return false, nil
			}
		case storage.FieldAccessToken:
			v, ok := value.(string)
			if !ok {
				return false, fmt.Errorf("field %s: expected string, got %T", field, value)
			}
			if t.AccessToken != v {
				return false, nil
			}
		case storage.FieldRefreshToken:
			v, ok := value.(string)
			if !ok {
				return false, fmt.Errorf("field %s: expected string, got %T", field, value)
			}
			if t.RefreshToken != v {
				return false, nil
			}
		case storage.FieldScope:
			v, ok := value.(string)
			if !ok {
				return false, fmt.Errorf("field %s: expected string, got %T", field, value)
			}
			if t.Scope != v {
				return false, nil
			}
		case storage.FieldParentID:
			v, ok := value.(string)
			if !ok {
				return false, fmt.Errorf("field %s: expected string, got %T", field, value)
			}
			if t.ParentID != v {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unknown field: %s", field)
		}
	}
	return true, nil
}
