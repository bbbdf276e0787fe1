package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kwitter-app/kwitter/model"
)

// SnapshotExpiration bounds how stale a served snapshot can be. The snapshot
// only bridges the gap until the session's first fetch resolves, or covers a
// store outage; it is not a durable copy of the feed.
const SnapshotExpiration = 5 * time.Minute

const anonymousSnapshotKey = "homefeed-anonymous"

// FeedSnapshotStore keeps the last assembled visible feed per viewer in
// redis. Two uses: warm-starting a session before its first fetch resolves,
// and stale-serving when the document store is unavailable. Every error here
// is non-fatal; callers log and move on.
type FeedSnapshotStore struct {
	rdb *redis.Client
}

func NewFeedSnapshotStore(rdb *redis.Client) *FeedSnapshotStore {
	return &FeedSnapshotStore{rdb: rdb}
}

// GetRedisClient builds the shared redis client from env, pinging to verify
// the connection.
func GetRedisClient(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return rdb, nil
}

func snapshotKey(viewer *model.Viewer) string {
	if viewer == nil {
		return anonymousSnapshotKey
	}
	return "homefeed-user-" + viewer.Id
}

// Set overwrites the viewer's snapshot with the given visible feed.
func (s *FeedSnapshotStore) Set(ctx context.Context, viewer *model.Viewer, posts []*model.Post) error {
	raw, err := json.Marshal(posts)
	if err != nil {
		return err
	}
	return s.rdb.SetEX(ctx, snapshotKey(viewer), raw, SnapshotExpiration).Err()
}

// Get returns the viewer's snapshot, or (nil, nil) on a miss.
func (s *FeedSnapshotStore) Get(ctx context.Context, viewer *model.Viewer) ([]*model.Post, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(viewer)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var posts []*model.Post
	if data != "" {
		if err := json.Unmarshal([]byte(data), &posts); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// Delete drops the viewer's snapshot, typically on sign-out.
func (s *FeedSnapshotStore) Delete(ctx context.Context, viewer *model.Viewer) {
	s.rdb.Del(ctx, snapshotKey(viewer))
}
