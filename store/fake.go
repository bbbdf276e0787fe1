package store

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kwitter-app/kwitter/model"
)

// FakePostStore is an in-memory PostStore for tests. Documents are held in
// insertion order; ListAll re-sorts by createdAt descending the way the real
// store's default query does. Failure injection drives the error-path tests.
type FakePostStore struct {
	Docs []Document

	// FailList makes every list call fail with ErrStoreUnavailable.
	FailList bool
	// MissingIndex makes sorted ListByAuthor calls fail with
	// ErrIndexUnavailable, forcing the client-side sort fallback.
	MissingIndex bool

	// ListCalls counts list invocations, used to assert refetch behavior.
	ListCalls int
}

func (s *FakePostStore) ListAll(ctx context.Context) ([]Document, error) {
	s.ListCalls++
	if s.FailList {
		return nil, errors.Wrap(ErrStoreUnavailable, "fake store list failure")
	}
	docs := append([]Document{}, s.Docs...)
	sort.SliceStable(docs, func(i, j int) bool {
		return model.NormalizeCreatedAt(docs[i].Fields["createdAt"]).
			After(model.NormalizeCreatedAt(docs[j].Fields["createdAt"]))
	})
	return docs, nil
}

func (s *FakePostStore) ListByAuthor(ctx context.Context, authorId string, sorted bool) ([]Document, error) {
	s.ListCalls++
	if s.FailList {
		return nil, errors.Wrap(ErrStoreUnavailable, "fake store list failure")
	}
	if sorted && s.MissingIndex {
		return nil, errors.Wrap(ErrIndexUnavailable, "fake store has no composite index")
	}
	var docs []Document
	for _, doc := range s.Docs {
		if author, _ := doc.Fields["authorId"].(string); author == authorId {
			docs = append(docs, doc)
		}
	}
	if sorted {
		sort.SliceStable(docs, func(i, j int) bool {
			return model.NormalizeCreatedAt(docs[i].Fields["createdAt"]).
				After(model.NormalizeCreatedAt(docs[j].Fields["createdAt"]))
		})
	}
	return docs, nil
}

func (s *FakePostStore) Create(ctx context.Context, post *model.Post) (*model.Post, error) {
	created := *post
	created.Id = uuid.New().String()
	fields := map[string]interface{}{
		"authorId":  created.AuthorId,
		"content":   created.Content,
		"images":    toInterfaceSlice(created.Images),
		"likes":     toInterfaceSlice(created.Likes),
		"createdAt": created.CreatedAt,
	}
	if created.Visibility != "" {
		fields["visibility"] = string(created.Visibility)
	}
	s.Docs = append(s.Docs, Document{ID: created.Id, Fields: fields})
	return &created, nil
}

// FakeProfileStore is an in-memory ProfileStore keyed by uid.
type FakeProfileStore struct {
	Profiles map[string]*model.UserProfile
}

func NewFakeProfileStore() *FakeProfileStore {
	return &FakeProfileStore{Profiles: make(map[string]*model.UserProfile)}
}

func (s *FakeProfileStore) Get(ctx context.Context, uid string) (*model.UserProfile, error) {
	profile, ok := s.Profiles[uid]
	if !ok {
		return nil, errors.Wrap(ErrStoreUnavailable, "profile not found: "+uid)
	}
	copied := *profile
	return &copied, nil
}

func (s *FakeProfileStore) Upsert(ctx context.Context, profile *model.UserProfile) error {
	copied := *profile
	s.Profiles[profile.Uid] = &copied
	return nil
}

func (s *FakeProfileStore) SetFollowing(ctx context.Context, uid string, following []string) error {
	profile, ok := s.Profiles[uid]
	if !ok {
		return errors.Wrap(ErrStoreUnavailable, "profile not found: "+uid)
	}
	profile.Following = append([]string{}, following...)
	return nil
}

func toInterfaceSlice(items []string) []interface{} {
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
