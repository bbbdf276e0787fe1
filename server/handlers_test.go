package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kwitter-app/kwitter/feed"
	"github.com/kwitter-app/kwitter/model"
	"github.com/kwitter-app/kwitter/server/middlewares"
	"github.com/kwitter-app/kwitter/store"
)

func newTestServer(t *testing.T, posts *store.FakePostStore) (*gin.Engine, *store.FakeProfileStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	profiles := store.NewFakeProfileStore()
	middlewares.Setup(profiles)

	repo := feed.NewRepository(posts)
	sessions := NewSessionManager(repo, profiles, nil)
	handlers := NewAPIHandlers(repo, sessions)

	router := gin.New()
	router.Use(middlewares.ViewerResolution())
	handlers.Register(router)
	return router, profiles
}

func doRequest(router *gin.Engine, method, path, viewerId string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if viewerId != "" {
		req.Header.Set("X-Viewer-Id", viewerId)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func getFeed(t *testing.T, router *gin.Engine, viewerId string) feedResponse {
	t.Helper()
	w := doRequest(router, http.MethodGet, "/feed", viewerId, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp feedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// settledFeed polls until the session's initial load resolves.
func settledFeed(t *testing.T, router *gin.Engine, viewerId string) feedResponse {
	t.Helper()
	var resp feedResponse
	require.Eventually(t, func() bool {
		resp = getFeed(t, router, viewerId)
		return !resp.Loading
	}, 2*time.Second, 10*time.Millisecond)
	return resp
}

func feedPostIds(resp feedResponse) []string {
	ids := []string{}
	for _, p := range resp.Posts {
		ids = append(ids, p.Id)
	}
	return ids
}

func testDocs() []store.Document {
	now := time.Now()
	return []store.Document{
		{ID: "alice-friends", Fields: map[string]interface{}{
			"authorId": "alice", "visibility": "friends", "createdAt": now,
		}},
		{ID: "carol-public", Fields: map[string]interface{}{
			"authorId": "carol", "visibility": "public", "createdAt": now.Add(-time.Minute),
		}},
	}
}

func seedViewer(t *testing.T, profiles *store.FakeProfileStore, uid string, following ...string) {
	t.Helper()
	require.NoError(t, profiles.Upsert(context.Background(), &model.UserProfile{
		Uid:       uid,
		Following: following,
	}))
}

func TestGetFeed(t *testing.T) {
	t.Run("anonymous gets public posts only", func(t *testing.T) {
		router, _ := newTestServer(t, &store.FakePostStore{Docs: testDocs()})
		resp := settledFeed(t, router, "")
		require.Equal(t, []string{"carol-public"}, feedPostIds(resp))
	})

	t.Run("follower gets friends posts too", func(t *testing.T) {
		router, profiles := newTestServer(t, &store.FakePostStore{Docs: testDocs()})
		seedViewer(t, profiles, "viewer", "alice")
		resp := settledFeed(t, router, "viewer")
		require.Equal(t, []string{"alice-friends", "carol-public"}, feedPostIds(resp))
	})

	t.Run("store failure serves empty, not an error", func(t *testing.T) {
		router, _ := newTestServer(t, &store.FakePostStore{FailList: true})
		resp := settledFeed(t, router, "")
		require.Empty(t, resp.Posts)
	})

	t.Run("unknown viewer id is rejected", func(t *testing.T) {
		router, _ := newTestServer(t, &store.FakePostStore{})
		w := doRequest(router, http.MethodGet, "/feed", "ghost", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCreatePost(t *testing.T) {
	t.Run("creates and optimistically inserts", func(t *testing.T) {
		router, profiles := newTestServer(t, &store.FakePostStore{Docs: testDocs()})
		seedViewer(t, profiles, "viewer", "alice")
		settledFeed(t, router, "viewer")

		w := doRequest(router, http.MethodPost, "/posts", "viewer", gin.H{
			"content":    "fresh",
			"visibility": "friends",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var created model.Post
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		require.NotEmpty(t, created.Id)
		require.Equal(t, "viewer", created.AuthorId)

		resp := getFeed(t, router, "viewer")
		require.Equal(t, created.Id, feedPostIds(resp)[0])
	})

	t.Run("anonymous cannot post", func(t *testing.T) {
		router, _ := newTestServer(t, &store.FakePostStore{})
		w := doRequest(router, http.MethodPost, "/posts", "", gin.H{"content": "x"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("empty content is rejected", func(t *testing.T) {
		router, profiles := newTestServer(t, &store.FakePostStore{})
		seedViewer(t, profiles, "viewer")
		w := doRequest(router, http.MethodPost, "/posts", "viewer", gin.H{"content": ""})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLikeEndpoints(t *testing.T) {
	router, profiles := newTestServer(t, &store.FakePostStore{Docs: testDocs()})
	seedViewer(t, profiles, "viewer")
	settledFeed(t, router, "viewer")

	// Like twice: still a single membership.
	doRequest(router, http.MethodPost, "/posts/carol-public/like", "viewer", nil)
	doRequest(router, http.MethodPost, "/posts/carol-public/like", "viewer", nil)
	resp := getFeed(t, router, "viewer")
	require.Equal(t, []string{"viewer"}, resp.Posts[0].Likes)

	// Unlike clears it; unliking again stays empty.
	doRequest(router, http.MethodDelete, "/posts/carol-public/like", "viewer", nil)
	doRequest(router, http.MethodDelete, "/posts/carol-public/like", "viewer", nil)
	resp = getFeed(t, router, "viewer")
	require.Empty(t, resp.Posts[0].Likes)
}

func TestFollowWidensFeed(t *testing.T) {
	router, profiles := newTestServer(t, &store.FakePostStore{Docs: testDocs()})
	seedViewer(t, profiles, "viewer")

	resp := settledFeed(t, router, "viewer")
	require.Equal(t, []string{"carol-public"}, feedPostIds(resp))

	w := doRequest(router, http.MethodPost, "/follow/alice", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The refetch triggered by the identity change picks up the newly
	// visible friends post.
	require.Eventually(t, func() bool {
		resp := getFeed(t, router, "viewer")
		return !resp.Loading && len(resp.Posts) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnfollowNarrowsFeed(t *testing.T) {
	router, profiles := newTestServer(t, &store.FakePostStore{Docs: testDocs()})
	seedViewer(t, profiles, "viewer", "alice")

	resp := settledFeed(t, router, "viewer")
	require.Len(t, resp.Posts, 2)

	w := doRequest(router, http.MethodDelete, "/follow/alice", "viewer", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		resp := getFeed(t, router, "viewer")
		return !resp.Loading && len(resp.Posts) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetUserPosts(t *testing.T) {
	router, profiles := newTestServer(t, &store.FakePostStore{Docs: testDocs()})
	seedViewer(t, profiles, "follower", "alice")
	seedViewer(t, profiles, "stranger")

	t.Run("follower sees friends posts", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/users/alice/posts", "follower", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Posts []*model.Post `json:"posts"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Posts, 1)
		require.Equal(t, "alice-friends", resp.Posts[0].Id)
	})

	t.Run("stranger sees none of alice's friends posts", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/users/alice/posts", "stranger", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Posts []*model.Post `json:"posts"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Empty(t, resp.Posts)
	})
}

func TestSignOut(t *testing.T) {
	router, profiles := newTestServer(t, &store.FakePostStore{Docs: testDocs()})
	seedViewer(t, profiles, "viewer")
	settledFeed(t, router, "viewer")

	// Drop a post locally so the rebuilt session is distinguishable from the
	// old one.
	doRequest(router, http.MethodDelete, "/posts/carol-public", "viewer", nil)
	require.Empty(t, getFeed(t, router, "viewer").Posts)

	w := doRequest(router, http.MethodPost, "/signout", "viewer", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// A fresh session refetches from the store, so the post is back.
	resp := settledFeed(t, router, "viewer")
	require.Equal(t, []string{"carol-public"}, feedPostIds(resp))
}

func TestDeletePostIsLocalOnly(t *testing.T) {
	posts := &store.FakePostStore{Docs: testDocs()}
	router, profiles := newTestServer(t, posts)
	seedViewer(t, profiles, "viewer")
	settledFeed(t, router, "viewer")

	w := doRequest(router, http.MethodDelete, "/posts/carol-public", "viewer", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	resp := getFeed(t, router, "viewer")
	require.Empty(t, resp.Posts)

	// The stored document is untouched.
	require.Len(t, posts.Docs, 2)
}
