package server

import (
	"context"
	"sync"

	"github.com/kwitter-app/kwitter/cache"
	"github.com/kwitter-app/kwitter/feed"
	"github.com/kwitter-app/kwitter/identity"
	"github.com/kwitter-app/kwitter/model"
	"github.com/kwitter-app/kwitter/store"
	. "github.com/kwitter-app/kwitter/utils/log"
)

const anonymousSessionKey = ""

/*

Session binds one viewer to their exclusively-owned feed cache and identity
provider. The identity subscription drives the cache: every published
snapshot (sign-in, follow, unfollow) triggers a viewer-change refresh, which
narrows the visible list synchronously and refetches asynchronously.

*/
type Session struct {
	Cache    *feed.Cache
	Identity *identity.Provider

	cancel context.CancelFunc
}

// Close tears the session down, dropping its identity subscription.
func (s *Session) Close() {
	s.cancel()
}

// SessionManager hands out sessions keyed by viewer id. All anonymous
// requests share one session: they see the same public-only feed anyway.
type SessionManager struct {
	repo      *feed.Repository
	profiles  store.ProfileStore
	snapshots *cache.FeedSnapshotStore // may be nil when redis is not configured

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(repo *feed.Repository, profiles store.ProfileStore, snapshots *cache.FeedSnapshotStore) *SessionManager {
	return &SessionManager{
		repo:      repo,
		profiles:  profiles,
		snapshots: snapshots,
		sessions:  make(map[string]*Session),
	}
}

// Session returns the viewer's session, creating and starting it on first
// use.
func (m *SessionManager) Session(viewer *model.Viewer) *Session {
	key := anonymousSessionKey
	if viewer != nil {
		key = viewer.Id
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[key]; ok {
		return session
	}
	session := m.startSession(viewer)
	m.sessions[key] = session
	return session
}

// CloseSession discards the viewer's session, typically on sign-out. The
// next request builds a fresh one.
func (m *SessionManager) CloseSession(viewer *model.Viewer) {
	key := anonymousSessionKey
	if viewer != nil {
		key = viewer.Id
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[key]; ok {
		session.Close()
		delete(m.sessions, key)
	}
	if m.snapshots != nil {
		m.snapshots.Delete(context.Background(), viewer)
	}
}

func (m *SessionManager) startSession(viewer *model.Viewer) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	feedCache := feed.NewCache(m.repo)
	provider := identity.NewProvider(m.profiles)

	if m.snapshots != nil {
		feedCache.OnCommit = func(v *model.Viewer, posts []*model.Post) {
			if err := m.snapshots.Set(ctx, v, posts); err != nil {
				Log.Warn("failed to store feed snapshot: ", err)
			}
		}
		// Warm-start from the viewer's last committed feed while the first
		// fetch is in flight.
		if posts, err := m.snapshots.Get(ctx, viewer); err != nil {
			Log.Warn("failed to read feed snapshot: ", err)
		} else if posts != nil {
			feedCache.Seed(posts)
		}
	}

	changes := provider.Subscribe(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot := <-changes:
				feedCache.RefreshForViewerChange(ctx, snapshot.Viewer)
			}
		}
	}()

	// Publishing the initial identity kicks off the first load.
	provider.Set(viewer)

	return &Session{Cache: feedCache, Identity: provider, cancel: cancel}
}
