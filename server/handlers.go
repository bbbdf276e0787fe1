package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kwitter-app/kwitter/feed"
	"github.com/kwitter-app/kwitter/model"
	"github.com/kwitter-app/kwitter/server/middlewares"
	. "github.com/kwitter-app/kwitter/utils/log"
)

// APIHandlers owns the JSON surface over the feed core. Each handler
// resolves the request viewer, picks up that viewer's session, and calls
// into the session's cache/repository; degraded paths respond with the safe
// default list rather than an error wherever the core contract says so.
type APIHandlers struct {
	repo     *feed.Repository
	sessions *SessionManager
}

func NewAPIHandlers(repo *feed.Repository, sessions *SessionManager) *APIHandlers {
	return &APIHandlers{repo: repo, sessions: sessions}
}

// Register mounts all feed routes on the router group.
func (h *APIHandlers) Register(r gin.IRoutes) {
	r.GET("/feed", h.GetFeed)
	r.GET("/users/:id/posts", h.GetUserPosts)
	r.POST("/posts", h.CreatePost)
	r.DELETE("/posts/:id", h.DeletePost)
	r.POST("/posts/:id/like", h.Like)
	r.DELETE("/posts/:id/like", h.Unlike)
	r.POST("/follow/:id", h.Follow)
	r.DELETE("/follow/:id", h.Unfollow)
	r.POST("/signout", h.SignOut)
}

type feedResponse struct {
	Posts   []*model.Post `json:"posts"`
	Loading bool          `json:"loading"`
}

// GetFeed returns the session's currently visible list plus its loading
// flag. Never errors: a failed backing fetch still produces a usable
// (possibly empty or stale) list.
func (h *APIHandlers) GetFeed(c *gin.Context) {
	viewer := middlewares.ViewerFromContext(c)
	session := h.sessions.Session(viewer)

	c.JSON(http.StatusOK, feedResponse{
		Posts:   session.Cache.Posts(),
		Loading: session.Cache.Loading(),
	})
}

// GetUserPosts lists one author's posts visible to the request viewer,
// newest first. A store failure degrades to an empty list, matching the
// all-posts path.
func (h *APIHandlers) GetUserPosts(c *gin.Context) {
	viewer := middlewares.ViewerFromContext(c)
	authorId := c.Param("id")

	viewerIsFollowing := viewer.Follows(authorId)
	posts, err := h.repo.FetchByAuthor(c.Request.Context(), authorId, viewer, viewerIsFollowing)
	if err != nil {
		Log.Error("failed to fetch posts for author ", authorId, ": ", err)
		posts = []*model.Post{}
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

type createPostInput struct {
	Content    string   `json:"content" binding:"required"`
	Visibility string   `json:"visibility"`
	Images     []string `json:"images"`
}

// CreatePost persists a new post and optimistically inserts it at the head
// of the author's session feed, skipping a refetch.
func (h *APIHandlers) CreatePost(c *gin.Context) {
	viewer := middlewares.ViewerFromContext(c)
	if viewer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in to post"})
		return
	}

	var input createPostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft := &model.Post{
		AuthorId:   viewer.Id,
		Content:    input.Content,
		Images:     input.Images,
		Likes:      []string{},
		Visibility: model.Visibility(input.Visibility),
	}
	created, err := h.repo.CreatePost(c.Request.Context(), draft)
	if err != nil {
		Log.Error("failed to create post: ", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "store write failed"})
		return
	}

	// The cache re-checks visibility itself; a friends post by the author is
	// always visible to the author, so this inserts for the common case.
	h.sessions.Session(viewer).Cache.InsertAtHead(created)

	c.JSON(http.StatusCreated, created)
}

// DeletePost removes the post from the viewer's local feed only. Whether
// deletion should propagate to the store is an open product decision; until
// it lands, the stored document stays.
func (h *APIHandlers) DeletePost(c *gin.Context) {
	viewer := middlewares.ViewerFromContext(c)
	h.sessions.Session(viewer).Cache.RemoveById(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *APIHandlers) Like(c *gin.Context) {
	h.toggleLike(c, true)
}

func (h *APIHandlers) Unlike(c *gin.Context) {
	h.toggleLike(c, false)
}

func (h *APIHandlers) toggleLike(c *gin.Context, liked bool) {
	viewer := middlewares.ViewerFromContext(c)
	if viewer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in to like"})
		return
	}
	h.sessions.Session(viewer).Cache.ToggleLike(c.Param("id"), viewer.Id, liked)
	c.Status(http.StatusNoContent)
}

// SignOut tears down the viewer's session: the identity subscription is
// cancelled and the redis feed snapshot dropped. The next request from the
// same viewer starts a fresh session.
func (h *APIHandlers) SignOut(c *gin.Context) {
	viewer := middlewares.ViewerFromContext(c)
	h.sessions.CloseSession(viewer)
	c.Status(http.StatusNoContent)
}

func (h *APIHandlers) Follow(c *gin.Context) {
	h.updateFollowing(c, true)
}

func (h *APIHandlers) Unfollow(c *gin.Context) {
	h.updateFollowing(c, false)
}

// updateFollowing mutates the viewer's following set through the session's
// identity provider. The provider publishes the change, which triggers the
// cache's viewer-change refresh: synchronous narrowing first, refetch after.
func (h *APIHandlers) updateFollowing(c *gin.Context, follow bool) {
	viewer := middlewares.ViewerFromContext(c)
	if viewer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in to follow"})
		return
	}

	session := h.sessions.Session(viewer)
	updated, err := session.Identity.UpdateFollowing(c.Request.Context(), c.Param("id"), follow)
	if err != nil {
		Log.Error("failed to update following: ", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "following update failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"following": updated.Following})
}
