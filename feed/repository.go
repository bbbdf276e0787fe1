package feed

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/kwitter-app/kwitter/model"
	"github.com/kwitter-app/kwitter/store"
	. "github.com/kwitter-app/kwitter/utils/log"
)

// Repository fetches post documents from the store and normalizes them into
// typed Posts. It owns the composite-index fallback: when the store cannot
// serve the combined filter+sort query, the repository re-issues the
// filter-only query and sorts client-side, producing the same ordering the
// indexed query would have.
type Repository struct {
	posts store.PostStore
}

func NewRepository(posts store.PostStore) *Repository {
	return &Repository{posts: posts}
}

// FetchAll returns every post, newest first. A store failure comes back
// wrapped around store.ErrStoreUnavailable; callers log it and degrade to an
// empty or stale list instead of surfacing it.
func (r *Repository) FetchAll(ctx context.Context) ([]*model.Post, error) {
	docs, err := r.posts.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch all posts")
	}
	return normalizeDocuments(docs), nil
}

// FetchByAuthor returns the author's posts visible to viewer, newest first.
// viewerIsFollowing is supplied by the caller, which already resolved the
// follow relationship for the profile being viewed.
func (r *Repository) FetchByAuthor(ctx context.Context, authorId string, viewer *model.Viewer, viewerIsFollowing bool) ([]*model.Post, error) {
	docs, err := r.posts.ListByAuthor(ctx, authorId, true)
	sorted := true
	if err != nil {
		if !errors.Is(err, store.ErrIndexUnavailable) {
			return nil, errors.Wrap(err, "fetch posts by author")
		}
		// Missing composite index. Fall back to the unsorted query and order
		// client-side; purely a tolerance measure, semantics are unchanged.
		Log.Warn("composite index unavailable, falling back to client-side sorting: ", err)
		docs, err = r.posts.ListByAuthor(ctx, authorId, false)
		if err != nil {
			return nil, errors.Wrap(err, "fetch posts by author (fallback)")
		}
		sorted = false
	}

	posts := normalizeDocuments(docs)
	if !sorted {
		SortNewestFirst(posts)
	}

	visible := []*model.Post{}
	for _, post := range posts {
		if isVisibleOnAuthorPage(post, viewer, viewerIsFollowing) {
			visible = append(visible, post)
		}
	}
	return visible, nil
}

// CreatePost persists a draft post and returns the stored record with its
// assigned id, ready for optimistic insertion into the session cache.
func (r *Repository) CreatePost(ctx context.Context, draft *model.Post) (*model.Post, error) {
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now()
	}
	if draft.Images == nil {
		draft.Images = []string{}
	}
	if draft.Likes == nil {
		draft.Likes = []string{}
	}
	created, err := r.posts.Create(ctx, draft)
	if err != nil {
		return nil, errors.Wrap(err, "create post")
	}
	return created, nil
}

// SortNewestFirst orders posts by CreatedAt descending. Stable, so posts
// with identical timestamps keep their incoming relative order and repeated
// sorts cannot shuffle them.
func SortNewestFirst(posts []*model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

func normalizeDocuments(docs []store.Document) []*model.Post {
	posts := make([]*model.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, model.NormalizePost(doc.ID, doc.Fields))
	}
	return posts
}
