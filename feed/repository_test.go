package feed

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/kwitter-app/kwitter/model"
	"github.com/kwitter-app/kwitter/store"
)

func docIds(posts []*model.Post) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.Id)
	}
	return ids
}

// authorDocs returns alice's posts with createdAt spread across the three
// representations the store has been observed to return: native time, ISO
// string and epoch milliseconds.
func authorDocs() []store.Document {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []store.Document{
		{ID: "oldest", Fields: map[string]interface{}{
			"authorId":  "alice",
			"createdAt": base.Format(time.RFC3339),
		}},
		{ID: "newest", Fields: map[string]interface{}{
			"authorId":  "alice",
			"createdAt": base.Add(2 * time.Hour),
		}},
		{ID: "middle", Fields: map[string]interface{}{
			"authorId":  "alice",
			"createdAt": base.Add(time.Hour).UnixNano() / int64(time.Millisecond),
		}},
	}
}

func TestFetchAll(t *testing.T) {
	t.Run("returns normalized posts newest first", func(t *testing.T) {
		fake := &store.FakePostStore{Docs: authorDocs()}
		repo := NewRepository(fake)

		posts, err := repo.FetchAll(context.Background())
		require.NoError(t, err)
		require.Equal(t, []string{"newest", "middle", "oldest"}, docIds(posts))
	})

	t.Run("store failure surfaces as ErrStoreUnavailable", func(t *testing.T) {
		fake := &store.FakePostStore{FailList: true}
		repo := NewRepository(fake)

		_, err := repo.FetchAll(context.Background())
		require.Error(t, err)
		require.True(t, errors.Is(err, store.ErrStoreUnavailable))
	})
}

func TestFetchByAuthorFallback(t *testing.T) {
	viewer := &model.Viewer{Id: "viewer", Following: []string{"alice"}}

	t.Run("fallback ordering matches primary ordering", func(t *testing.T) {
		primary := &store.FakePostStore{Docs: authorDocs()}
		fallback := &store.FakePostStore{Docs: authorDocs(), MissingIndex: true}

		primaryPosts, err := NewRepository(primary).FetchByAuthor(context.Background(), "alice", viewer, true)
		require.NoError(t, err)

		fallbackPosts, err := NewRepository(fallback).FetchByAuthor(context.Background(), "alice", viewer, true)
		require.NoError(t, err)

		require.Equal(t, docIds(primaryPosts), docIds(fallbackPosts))
		require.Equal(t, []string{"newest", "middle", "oldest"}, docIds(fallbackPosts))
	})

	t.Run("fallback issues a second query", func(t *testing.T) {
		fake := &store.FakePostStore{Docs: authorDocs(), MissingIndex: true}
		_, err := NewRepository(fake).FetchByAuthor(context.Background(), "alice", viewer, true)
		require.NoError(t, err)
		require.Equal(t, 2, fake.ListCalls)
	})

	t.Run("index unavailable never escapes", func(t *testing.T) {
		fake := &store.FakePostStore{Docs: authorDocs(), MissingIndex: true}
		_, err := NewRepository(fake).FetchByAuthor(context.Background(), "alice", viewer, true)
		require.NoError(t, err)
	})
}

func TestFetchByAuthorVisibility(t *testing.T) {
	now := time.Now()
	docs := []store.Document{
		{ID: "pub", Fields: map[string]interface{}{
			"authorId": "alice", "createdAt": now, "visibility": "public",
		}},
		{ID: "friends", Fields: map[string]interface{}{
			"authorId": "alice", "createdAt": now.Add(-time.Minute), "visibility": "friends",
		}},
	}

	t.Run("non-following viewer sees public only", func(t *testing.T) {
		fake := &store.FakePostStore{Docs: docs}
		stranger := &model.Viewer{Id: "stranger"}
		posts, err := NewRepository(fake).FetchByAuthor(context.Background(), "alice", stranger, false)
		require.NoError(t, err)
		require.Equal(t, []string{"pub"}, docIds(posts))
	})

	t.Run("following viewer sees friends posts", func(t *testing.T) {
		fake := &store.FakePostStore{Docs: docs}
		follower := &model.Viewer{Id: "v", Following: []string{"alice"}}
		posts, err := NewRepository(fake).FetchByAuthor(context.Background(), "alice", follower, true)
		require.NoError(t, err)
		require.Equal(t, []string{"pub", "friends"}, docIds(posts))
	})

	t.Run("author sees everything without following flag", func(t *testing.T) {
		fake := &store.FakePostStore{Docs: docs}
		alice := &model.Viewer{Id: "alice"}
		posts, err := NewRepository(fake).FetchByAuthor(context.Background(), "alice", alice, false)
		require.NoError(t, err)
		require.Equal(t, []string{"pub", "friends"}, docIds(posts))
	})
}

func TestCreatePost(t *testing.T) {
	fake := &store.FakePostStore{}
	repo := NewRepository(fake)

	created, err := repo.CreatePost(context.Background(), &model.Post{
		AuthorId: "alice",
		Content:  "hello",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.Id)
	require.False(t, created.CreatedAt.IsZero())
	require.NotNil(t, created.Likes)
	require.NotNil(t, created.Images)

	// The created post must come back through subsequent fetches.
	posts, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{created.Id}, docIds(posts))
}
