package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kwitter-app/kwitter/model"
)

var (
	// ErrStoreUnavailable marks a network or backend failure during a store
	// call. Callers recover locally: log, degrade to an empty or stale result,
	// never surface to the UI.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrIndexUnavailable marks a combined filter+sort query that the store
	// cannot serve because the required composite index does not exist. It is
	// always recovered via the client-side sort fallback and never escapes
	// the repository layer.
	ErrIndexUnavailable = errors.New("composite index unavailable")
)

/*

Document is one raw post document as the store hands it back: the
store-assigned identifier plus an untyped field map. Normalization into a
typed Post happens exactly once, in model.NormalizePost; keeping the raw
shape at this boundary is what lets the normalization stay testable.

*/
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// PostStore is the document store read/write surface the feed core consumes.
type PostStore interface {
	// ListAll returns all post documents ordered by createdAt descending.
	ListAll(ctx context.Context) ([]Document, error)

	// ListByAuthor returns the author's post documents. With sorted set, the
	// store serves a combined filter+sort query (createdAt descending) and
	// may fail with ErrIndexUnavailable when the composite index is missing;
	// with sorted unset it serves the filter-only query in arbitrary order.
	ListByAuthor(ctx context.Context, authorId string, sorted bool) ([]Document, error)

	// Create persists a fully-formed post (minus id), assigns its id and
	// returns it.
	Create(ctx context.Context, post *model.Post) (*model.Post, error)
}

// ProfileStore persists user profile documents backing viewer identities.
type ProfileStore interface {
	Get(ctx context.Context, uid string) (*model.UserProfile, error)
	Upsert(ctx context.Context, profile *model.UserProfile) error

	// SetFollowing replaces the user's following set. The identity provider
	// computes the new membership; the store only persists it.
	SetFollowing(ctx context.Context, uid string, following []string) error
}
