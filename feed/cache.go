package feed

import (
	"context"
	"sync"

	"github.com/kwitter-app/kwitter/model"
	"github.com/kwitter-app/kwitter/utils"
	. "github.com/kwitter-app/kwitter/utils/log"
)

// State is the session lifecycle of a Cache.
type State int

const (
	// StateUninitialized: no fetch has ever been issued for this session.
	// Still reported as loading: a consumer must not mistake a session whose
	// first fetch has not even started for a settled empty feed.
	StateUninitialized State = iota
	// StateLoading: a viewer-change fetch is in flight.
	StateLoading
	// StateReady: the last fetch resolved, successfully or not. Failure also
	// lands here; a session is never stuck loading.
	StateReady
)

/*

Cache is the in-memory list of posts currently visible to one session's
viewer. It is owned exclusively by that session: two logged-in viewers never
share a Cache.

All mutations run under the cache mutex. The interesting invariant is the
one around viewer changes: a refresh tags its in-flight fetch with a
generation counter taken while holding the lock, and the commit is discarded
if another refresh has bumped the generation since. That makes overlapping
refreshes last-issued-identity-wins, so a slow fetch for a previous viewer
can never overwrite the feed of the viewer who signed in after. The fetch
itself is not cancelled; staleness is handled purely by the discard rule.

*/
type Cache struct {
	repo *Repository

	// OnCommit, when set, observes each successfully committed feed (after a
	// refresh fetch resolves and matches the current generation). Called
	// outside the lock. The server wires the redis snapshot writer here.
	OnCommit func(viewer *model.Viewer, posts []*model.Post)

	mu         sync.RWMutex
	state      State
	viewer     *model.Viewer
	posts      []*model.Post
	generation uint64
}

func NewCache(repo *Repository) *Cache {
	return &Cache{repo: repo, posts: []*model.Post{}}
}

// Posts returns a snapshot copy of the currently visible list.
func (c *Cache) Posts() []*model.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*model.Post{}, c.posts...)
}

// Loading reports whether the feed has yet to settle: either the first
// fetch has not been issued or a viewer-change fetch is still in flight.
func (c *Cache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state != StateReady
}

// Viewer returns the viewer this cache currently serves, nil for anonymous.
func (c *Cache) Viewer() *model.Viewer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewer
}

// Seed pre-populates the list before the first fetch resolves, typically
// from the redis snapshot of the viewer's last feed. No-op once Ready.
func (c *Cache) Seed(posts []*model.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateReady {
		return
	}
	c.posts = append([]*model.Post{}, posts...)
}

// Replace swaps in a wholesale new list, already visibility-filtered by the
// caller, and marks the session Ready.
func (c *Cache) Replace(posts []*model.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = append([]*model.Post{}, posts...)
	c.state = StateReady
}

// InsertAtHead prepends a just-created post if the session viewer may see
// it, skipping a full refetch. Not meaningful while a viewer-change fetch is
// in flight: the pending Replace would drop the insertion anyway, so it is a
// no-op outside Ready.
func (c *Cache) InsertAtHead(post *model.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}
	if !IsVisible(post, c.viewer) {
		return
	}
	c.posts = append([]*model.Post{post}, c.posts...)
}

// RemoveById drops the post with the given id from the local list. No-op if
// absent or not Ready. Removal does not propagate to the store.
func (c *Cache) RemoveById(postId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}
	remaining := make([]*model.Post, 0, len(c.posts))
	for _, post := range c.posts {
		if post.Id != postId {
			remaining = append(remaining, post)
		}
	}
	c.posts = remaining
}

// ToggleLike adds userId to the post's like set when liked, removes it when
// not. Idempotent both directions. The list and the touched post are fresh
// values so observers holding an old snapshot can detect the change.
func (c *Cache) ToggleLike(postId string, userId string, liked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}
	updated := make([]*model.Post, 0, len(c.posts))
	for _, post := range c.posts {
		if post.Id != postId {
			updated = append(updated, post)
			continue
		}
		fresh := *post
		if liked {
			if !post.LikedBy(userId) {
				fresh.Likes = append(append([]string{}, post.Likes...), userId)
			}
		} else if post.LikedBy(userId) {
			fresh.Likes = utils.RemoveString(post.Likes, userId)
		}
		updated = append(updated, &fresh)
	}
	c.posts = updated
}

// RefreshForViewerChange reacts to an identity or follow-set change. The
// current list is synchronously narrowed through the visibility policy, so a
// revoked follow disappears before this function returns; posts that became
// newly visible arrive through the asynchronous refetch. The returned
// channel closes when that refetch resolves (committed or discarded).
func (c *Cache) RefreshForViewerChange(ctx context.Context, viewer *model.Viewer) <-chan struct{} {
	c.mu.Lock()
	c.viewer = viewer
	c.posts = FilterVisible(c.posts, viewer)
	c.state = StateLoading
	c.generation++
	tag := c.generation
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		posts, err := c.repo.FetchAll(ctx)
		c.commit(tag, viewer, posts, err)
	}()
	return done
}

// commit applies a resolved fetch if its tag is still current. A stale tag
// means a newer viewer change superseded this fetch: discard wholesale.
func (c *Cache) commit(tag uint64, viewer *model.Viewer, posts []*model.Post, err error) {
	c.mu.Lock()
	if tag != c.generation {
		c.mu.Unlock()
		Log.Info("discarding stale feed fetch for superseded viewer")
		return
	}
	if err != nil {
		// Degrade to the narrowed list already in place; never stuck loading.
		c.state = StateReady
		c.mu.Unlock()
		Log.Error("feed fetch failed, keeping previous list: ", err)
		return
	}
	visible := FilterVisible(posts, viewer)
	c.posts = visible
	c.state = StateReady
	onCommit := c.OnCommit
	c.mu.Unlock()

	if onCommit != nil {
		onCommit(viewer, visible)
	}
}
