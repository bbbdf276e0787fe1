package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kwitter-app/kwitter/model"
	"github.com/kwitter-app/kwitter/store"
	"github.com/kwitter-app/kwitter/utils"
)

// Snapshot is one observation of the session identity. A nil Viewer means
// the session is anonymous (signed out).
type Snapshot struct {
	Viewer *model.Viewer
}

/*

Provider holds the current viewer identity and fans every change out to its
subscribers. Subscriptions are represented as a map from channel id (uuid)
to the actual channel so that deletion of a channel is O(1); a subscription
is cleaned up when its context terminates.

Adding/removing a subscription grabs the write lock, while publishing a
snapshot grabs a read lock over the channel map.

*/
type Provider struct {
	profiles store.ProfileStore

	mu       sync.RWMutex
	current  Snapshot
	channels map[string]chan Snapshot
}

func NewProvider(profiles store.ProfileStore) *Provider {
	return &Provider{
		profiles: profiles,
		channels: make(map[string]chan Snapshot),
	}
}

// Current returns the latest published identity snapshot.
func (p *Provider) Current() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Subscribe registers a new identity subscription. The returned channel
// carries the latest published snapshot; intermediate snapshots a slow
// subscriber never drained are coalesced away. Dropped when ctx terminates.
func (p *Provider) Subscribe(ctx context.Context) <-chan Snapshot {
	chId := "idc_" + uuid.New().String()
	ch := make(chan Snapshot, 1)

	p.mu.Lock()
	p.channels[chId] = ch
	p.mu.Unlock()

	go p.cleanUp(ctx, chId)

	return ch
}

func (p *Provider) cleanUp(ctx context.Context, chId string) {
	<-ctx.Done()

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.channels, chId)
}

// ActiveSubscriptionCount is exposed for tests and debugging endpoints.
func (p *Provider) ActiveSubscriptionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.channels)
}

// Set publishes a new viewer identity (nil for sign-out) to every
// subscriber. A subscriber that has not drained its previous snapshot has
// that stale value evicted first, so the channel always holds the latest
// identity: the feed must converge on the last-issued identity, never a
// superseded one. The current-snapshot update and the fan-out happen under
// one lock so two concurrent Sets cannot deliver out of order.
func (p *Provider) Set(viewer *model.Viewer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = Snapshot{Viewer: viewer}
	for _, ch := range p.channels {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p.current:
		default:
		}
	}
}

// SignIn loads the uid's stored profile and publishes it as the current
// viewer.
func (p *Provider) SignIn(ctx context.Context, uid string) (*model.Viewer, error) {
	profile, err := p.profiles.Get(ctx, uid)
	if err != nil {
		return nil, errors.Wrap(err, "sign in")
	}
	viewer := profile.Viewer()
	p.Set(viewer)
	return viewer, nil
}

// UpdateFollowing adds or removes targetId in the current viewer's
// following set, persists the new membership, and publishes the updated
// identity. Idempotent: following an already-followed user or unfollowing a
// non-followed one changes nothing. Anonymous sessions get an error.
func (p *Provider) UpdateFollowing(ctx context.Context, targetId string, follow bool) (*model.Viewer, error) {
	p.mu.RLock()
	viewer := p.current.Viewer
	p.mu.RUnlock()

	if viewer == nil {
		return nil, errors.New("anonymous session cannot follow")
	}

	following := append([]string{}, viewer.Following...)
	if follow {
		if !utils.ContainsString(following, targetId) {
			following = append(following, targetId)
		}
	} else {
		following = utils.RemoveString(following, targetId)
	}

	if err := p.profiles.SetFollowing(ctx, viewer.Id, following); err != nil {
		return nil, errors.Wrap(err, "persist following update")
	}

	updated := &model.Viewer{Id: viewer.Id, Following: following}
	p.Set(updated)
	return updated, nil
}
