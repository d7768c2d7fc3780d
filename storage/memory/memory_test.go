package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/oauth-core/internal/testutil"
	"github.com/giantswarm/oauth-core/storage"
)

func newToken(userID int64, access, refresh string) *storage.Token {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	return &storage.Token{
		UserID:        userID,
		AccessToken:   access,
		RefreshToken:  refresh,
		Scope:         "profile",
		AccessExpiry:  now.Add(time.Hour),
		RefreshExpiry: now.Add(24 * time.Hour),
	}
}

func TestStore_Create(t *testing.T) {
	ctx := context.Background()
	store := New()

	token := newToken(1, "access-1", "refresh-1")
	id, err := store.Create(ctx, token)
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, id != "", "store must assign an ID")
	testutil.AssertEqual(t, token.ID, id)
	testutil.AssertEqual(t, store.Len(), 1)
}

func TestStore_Create_RejectsDuplicateValues(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.Create(ctx, newToken(1, "access-1", "refresh-1"))
	testutil.AssertNoError(t, err)

	_, err = store.Create(ctx, newToken(2, "access-1", "refresh-2"))
	testutil.AssertError(t, err)

	_, err = store.Create(ctx, newToken(2, "access-2", "refresh-1"))
	testutil.AssertError(t, err)

	testutil.AssertEqual(t, store.Len(), 1)
}

func TestStore_Create_Isolation(t *testing.T) {
	ctx := context.Background()
	store := New()

	token := newToken(1, "access-1", "refresh-1")
	_, err := store.Create(ctx, token)
	testutil.AssertNoError(t, err)

	// Mutating the caller's struct must not affect the stored record.
	token.Scope = "changed"

	got, err := store.FindOne(ctx, storage.Fields{storage.FieldAccessToken: "access-1"})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.Scope, "profile")
}

func TestStore_FindOne(t *testing.T) {
	ctx := context.Background()
	store := New()

	token := newToken(7, "access-1", "refresh-1")
	id, err := store.Create(ctx, token)
	testutil.AssertNoError(t, err)

	tests := []struct {
		name  string
		match storage.Fields
	}{
		{"by access token", storage.Fields{storage.FieldAccessToken: "access-1"}},
		{"by refresh token", storage.Fields{storage.FieldRefreshToken: "refresh-1"}},
		{"by user ID", storage.Fields{storage.FieldUserID: int64(7)}},
		{"composite", storage.Fields{
			storage.FieldUserID: int64(7),
			storage.FieldScope:  "profile",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindOne(ctx, tt.match)
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, got.ID, id)
		})
	}
}

func TestStore_FindOne_NotFound(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, match := range []storage.Fields{
		{storage.FieldAccessToken: "nope"},
		{storage.FieldRefreshToken: "nope"},
		{storage.FieldUserID: int64(99)},
	} {
		_, err := store.FindOne(ctx, match)
		if !errors.Is(err, storage.ErrTokenNotFound) {
			t.Errorf("FindOne(%v) error = %v, want ErrTokenNotFound", match, err)
		}
	}
}

func TestStore_FindOne_UnknownField(t *testing.T) {
	ctx := context.Background()
	store := New()
	_, err := store.Create(ctx, newToken(1, "access-1", "refresh-1"))
	testutil.AssertNoError(t, err)

	_, err = store.FindOne(ctx, storage.Fields{"no_such_field": "x"})
	testutil.AssertError(t, err)

	_, err = store.FindOne(ctx, storage.Fields{storage.FieldUserID: "not-an-int"})
	testutil.AssertError(t, err)
}

func TestStore_FindAll(t *testing.T) {
	ctx := context.Background()
	store := New()

	parent := newToken(1, "access-p", "refresh-p")
	parentID, err := store.Create(ctx, parent)
	testutil.AssertNoError(t, err)

	child := newToken(1, "access-c", "refresh-c")
	child.ParentID = parentID
	_, err = store.Create(ctx, child)
	testutil.AssertNoError(t, err)

	other := newToken(2, "access-o", "refresh-o")
	_, err = store.Create(ctx, other)
	testutil.AssertNoError(t, err)

	children, err := store.FindAll(ctx, storage.Fields{storage.FieldParentID: parentID})
	testutil.AssertNoError(t, err)
	if len(children) != 1 {
		t.Fatalf("children = %d, want 1", len(children))
	}
	testutil.AssertEqual(t, children[0].ID, child.ID)

	byUser, err := store.FindAll(ctx, storage.Fields{storage.FieldUserID: int64(1)})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(byUser), 2)

	none, err := store.FindAll(ctx, storage.Fields{storage.FieldUserID: int64(99)})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(none), 0)
}

func TestStore_UpdateFields(t *testing.T) {
	ctx := context.Background()
	store := New()

	token := newToken(1, "access-1", "refresh-1")
	token.ParentID = "some-parent"
	id, err := store.Create(ctx, token)
	testutil.AssertNoError(t, err)

	newExpiry := time.Date(2026, 1, 2, 13, 30, 0, 0, time.UTC)
	err = store.UpdateFields(ctx, id, storage.Fields{
		storage.FieldRefreshExpiry: newExpiry,
		storage.FieldParentID:      "",
	})
	testutil.AssertNoError(t, err)

	got, err := store.FindOne(ctx, storage.Fields{storage.FieldAccessToken: "access-1"})
	testutil.AssertNoError(t, err)
	testutil.AssertTimeEqual(t, got.RefreshExpiry, newExpiry, 0)
	testutil.AssertEqual(t, got.ParentID, "")
}

func TestStore_UpdateFields_ReindexesTokenValues(t *testing.T) {
	ctx := context.Background()
	store := New()

	id, err := store.Create(ctx, newToken(1, "access-old", "refresh-old"))
	testutil.AssertNoError(t, err)

	err = store.UpdateFields(ctx, id, storage.Fields{
		storage.FieldAccessToken:  "access-new",
		storage.FieldRefreshToken: "refresh-new",
	})
	testutil.AssertNoError(t, err)

	got, err := store.FindOne(ctx, storage.Fields{storage.FieldAccessToken: "access-new"})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.ID, id)

	_, err = store.FindOne(ctx, storage.Fields{storage.FieldAccessToken: "access-old"})
	if !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("stale index entry survived the update: %v", err)
	}
}

func TestStore_UpdateFields_Errors(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.UpdateFields(ctx, "no-such-id", storage.Fields{storage.FieldScope: "x"})
	if !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("error = %v, want ErrTokenNotFound", err)
	}

	id, err := store.Create(ctx, newToken(1, "access-1", "refresh-1"))
	testutil.AssertNoError(t, err)

	testutil.AssertError(t, store.UpdateFields(ctx, id, storage.Fields{"no_such_field": "x"}))
	testutil.AssertError(t, store.UpdateFields(ctx, id, storage.Fields{storage.FieldScope: 42}))
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := New()

	id, err := store.Create(ctx, newToken(1, "access-1", "refresh-1"))
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, store.Delete(ctx, id))
	testutil.AssertEqual(t, store.Len(), 0)

	_, err = store.FindOne(ctx, storage.Fields{storage.FieldAccessToken: "access-1"})
	if !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("deleted token still findable: %v", err)
	}

	// Index entries are gone too, so the values can be reused.
	_, err = store.Create(ctx, newToken(2, "access-1", "refresh-1"))
	testutil.AssertNoError(t, err)
}

func TestStore_Delete_AbsentIsNoError(t *testing.T) {
	ctx := context.Background()
	store := New()
	testutil.AssertNoError(t, store.Delete(ctx, "no-such-id"))
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	store := New()

	tokens, err := store.List(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(tokens), 0)

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, newToken(int64(i),
			fmt.Sprintf("access-%d", i), fmt.Sprintf("refresh-%d", i)))
		testutil.AssertNoError(t, err)
	}

	tokens, err = store.List(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(tokens), 3)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id, err := store.Create(ctx, newToken(int64(n),
				fmt.Sprintf("access-%d", n), fmt.Sprintf("refresh-%d", n)))
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			if _, err := store.FindOne(ctx, storage.Fields{
				storage.FieldAccessToken: fmt.Sprintf("access-%d", n),
			}); err != nil {
				t.Errorf("FindOne: %v", err)
			}
			if n%2 == 0 {
				if err := store.Delete(ctx, id); err != nil {
					t.Errorf("Delete: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	testutil.AssertEqual(t, store.Len(), 10)
}
