package feed

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kwitter-app/kwitter/model"
)

func TestIsVisible(t *testing.T) {
	alice := &model.Viewer{Id: "alice"}
	bobFollower := &model.Viewer{Id: "viewer", Following: []string{"alice"}}
	stranger := &model.Viewer{Id: "stranger", Following: []string{"someone-else"}}

	t.Run("public posts visible to everyone", func(t *testing.T) {
		post := &model.Post{AuthorId: "alice", Visibility: model.VisibilityPublic}
		require.True(t, IsVisible(post, nil))
		require.True(t, IsVisible(post, stranger))
		require.True(t, IsVisible(post, bobFollower))
	})

	t.Run("missing visibility treated as public", func(t *testing.T) {
		post := &model.Post{AuthorId: "alice"}
		require.True(t, IsVisible(post, nil))
		require.True(t, IsVisible(post, stranger))
	})

	t.Run("author always sees own friends post", func(t *testing.T) {
		post := &model.Post{AuthorId: "alice", Visibility: model.VisibilityFriends}
		require.True(t, IsVisible(post, alice))
	})

	t.Run("friends post gated by following set", func(t *testing.T) {
		post := &model.Post{AuthorId: "alice", Visibility: model.VisibilityFriends}
		require.True(t, IsVisible(post, bobFollower))
		require.False(t, IsVisible(post, stranger))
		require.False(t, IsVisible(post, nil))
	})

	t.Run("unrecognized visibility fails open", func(t *testing.T) {
		post := &model.Post{AuthorId: "alice", Visibility: "circle"}
		require.True(t, IsVisible(post, nil))
		require.True(t, IsVisible(post, stranger))
	})
}

func TestFilterVisible(t *testing.T) {
	aliceFriends := &model.Post{Id: "1", AuthorId: "alice", Visibility: model.VisibilityFriends}
	bobFriends := &model.Post{Id: "2", AuthorId: "bob", Visibility: model.VisibilityFriends}
	carolPublic := &model.Post{Id: "3", AuthorId: "carol", Visibility: model.VisibilityPublic}
	posts := []*model.Post{aliceFriends, bobFriends, carolPublic}

	t.Run("viewer following alice", func(t *testing.T) {
		viewer := &model.Viewer{Id: "viewer", Following: []string{"alice"}}
		visible := FilterVisible(posts, viewer)
		require.True(t, cmp.Equal([]*model.Post{aliceFriends, carolPublic}, visible))
	})

	t.Run("anonymous viewer", func(t *testing.T) {
		visible := FilterVisible(posts, nil)
		require.True(t, cmp.Equal([]*model.Post{carolPublic}, visible))
	})

	t.Run("preserves relative order", func(t *testing.T) {
		viewer := &model.Viewer{Id: "viewer", Following: []string{"alice", "bob", "carol"}}
		visible := FilterVisible(posts, viewer)
		require.True(t, cmp.Equal(posts, visible))
	})

	t.Run("idempotent", func(t *testing.T) {
		viewer := &model.Viewer{Id: "viewer", Following: []string{"alice"}}
		once := FilterVisible(posts, viewer)
		twice := FilterVisible(once, viewer)
		require.True(t, cmp.Equal(once, twice))
	})
}

func TestAuthorPageVisibilityConsistency(t *testing.T) {
	// The per-author narrowed rule must agree with the general policy for
	// every combination of visibility and relationship.
	author := "alice"
	visibilities := []model.Visibility{"", model.VisibilityPublic, model.VisibilityFriends, "circle"}

	for _, vis := range visibilities {
		post := &model.Post{AuthorId: author, Visibility: vis}

		t.Run("self "+string(vis), func(t *testing.T) {
			self := &model.Viewer{Id: author}
			require.Equal(t, IsVisible(post, self), isVisibleOnAuthorPage(post, self, false))
		})

		t.Run("follower "+string(vis), func(t *testing.T) {
			follower := &model.Viewer{Id: "v", Following: []string{author}}
			require.Equal(t, IsVisible(post, follower), isVisibleOnAuthorPage(post, follower, true))
		})

		t.Run("stranger "+string(vis), func(t *testing.T) {
			stranger := &model.Viewer{Id: "v"}
			require.Equal(t, IsVisible(post, stranger), isVisibleOnAuthorPage(post, stranger, false))
		})

		t.Run("anonymous "+string(vis), func(t *testing.T) {
			require.Equal(t, IsVisible(post, nil), isVisibleOnAuthorPage(post, nil, false))
		})
	}
}
