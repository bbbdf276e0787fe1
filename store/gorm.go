package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kwitter-app/kwitter/model"
)

// compositeIndexName is the (author_id, created_at) index serving the
// combined filter+sort query on posts. The fallback path in the feed
// repository exists solely for deployments where this index has not been
// migrated yet.
const compositeIndexName = "idx_posts_author_created"

/*

PostRecord is the posts table row. List-valued post fields (images, likes,
comments) are stored as JSON columns rather than join tables: they are
written and read as whole values, membership checks happen in memory after
normalization, and this keeps the row shape close to the original document
shape.

*/
type PostRecord struct {
	Id             string `gorm:"primaryKey"`
	AuthorId       string `gorm:"index:idx_posts_author_created,priority:1"`
	AuthorName     string
	AuthorUsername string
	AuthorAvatar   string
	Content        string
	Images         datatypes.JSON
	Likes          datatypes.JSON
	Comments       datatypes.JSON
	CreatedAt      time.Time `gorm:"index:idx_posts_author_created,priority:2,sort:desc"`
	Visibility     string
}

func (PostRecord) TableName() string {
	return "posts"
}

// ProfileRecord is the user profile row backing viewer identities.
type ProfileRecord struct {
	Uid       string `gorm:"primaryKey"`
	Email     string
	Name      string
	Username  string
	Bio       string
	Avatar    string
	Followers datatypes.JSON
	Following datatypes.JSON
	CreatedAt time.Time
}

func (ProfileRecord) TableName() string {
	return "profiles"
}

// GormPostStore serves PostStore over postgres.
type GormPostStore struct {
	db *gorm.DB

	// The composite index either exists or it doesn't for the lifetime of
	// the process; probe the catalog once and remember the answer.
	indexOnce   sync.Once
	indexExists bool
}

func NewGormPostStore(db *gorm.DB) *GormPostStore {
	return &GormPostStore{db: db}
}

func (s *GormPostStore) ListAll(ctx context.Context) ([]Document, error) {
	var records []PostRecord
	result := s.db.WithContext(ctx).Order("created_at desc").Find(&records)
	if result.Error != nil {
		return nil, errors.Wrap(ErrStoreUnavailable, result.Error.Error())
	}
	return recordsToDocuments(records), nil
}

func (s *GormPostStore) ListByAuthor(ctx context.Context, authorId string, sorted bool) ([]Document, error) {
	query := s.db.WithContext(ctx).Where("author_id = ?", authorId)
	if sorted {
		if !s.hasCompositeIndex() {
			return nil, errors.Wrapf(ErrIndexUnavailable, "index %s missing", compositeIndexName)
		}
		query = query.Order("created_at desc")
	}
	var records []PostRecord
	if result := query.Find(&records); result.Error != nil {
		return nil, errors.Wrap(ErrStoreUnavailable, result.Error.Error())
	}
	return recordsToDocuments(records), nil
}

func (s *GormPostStore) Create(ctx context.Context, post *model.Post) (*model.Post, error) {
	created := *post
	created.Id = uuid.New().String()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}
	record := PostRecord{
		Id:             created.Id,
		AuthorId:       created.AuthorId,
		AuthorName:     created.AuthorName,
		AuthorUsername: created.AuthorUsername,
		AuthorAvatar:   created.AuthorAvatar,
		Content:        created.Content,
		Images:         mustJSON(created.Images),
		Likes:          mustJSON(created.Likes),
		Comments:       mustJSON(created.Comments),
		CreatedAt:      created.CreatedAt,
		Visibility:     string(created.Visibility),
	}
	if result := s.db.WithContext(ctx).Create(&record); result.Error != nil {
		return nil, errors.Wrap(ErrStoreUnavailable, result.Error.Error())
	}
	return &created, nil
}

func (s *GormPostStore) hasCompositeIndex() bool {
	s.indexOnce.Do(func() {
		var exists bool
		res := s.db.Raw(
			"SELECT TRUE FROM pg_indexes WHERE tablename = 'posts' AND indexname = ? LIMIT 1",
			compositeIndexName,
		).Scan(&exists)
		s.indexExists = res.Error == nil && exists
	})
	return s.indexExists
}

// recordsToDocuments re-exposes rows in raw document shape so that all list
// reads funnel through the same normalization boundary, DB-backed or not.
func recordsToDocuments(records []PostRecord) []Document {
	docs := make([]Document, 0, len(records))
	for _, r := range records {
		fields := map[string]interface{}{
			"authorId":  r.AuthorId,
			"content":   r.Content,
			"images":    jsonToInterface(r.Images),
			"likes":     jsonToInterface(r.Likes),
			"comments":  jsonToInterface(r.Comments),
			"createdAt": r.CreatedAt,
		}
		if r.AuthorName != "" {
			fields["authorName"] = r.AuthorName
		}
		if r.AuthorUsername != "" {
			fields["authorUsername"] = r.AuthorUsername
		}
		if r.AuthorAvatar != "" {
			fields["authorAvatar"] = r.AuthorAvatar
		}
		// Absent visibility means public; keep absence observable.
		if r.Visibility != "" {
			fields["visibility"] = r.Visibility
		}
		docs = append(docs, Document{ID: r.Id, Fields: fields})
	}
	return docs
}

// GormProfileStore serves ProfileStore over postgres.
type GormProfileStore struct {
	db *gorm.DB
}

func NewGormProfileStore(db *gorm.DB) *GormProfileStore {
	return &GormProfileStore{db: db}
}

func (s *GormProfileStore) Get(ctx context.Context, uid string) (*model.UserProfile, error) {
	var record ProfileRecord
	result := s.db.WithContext(ctx).Where("uid = ?", uid).First(&record)
	if result.Error != nil {
		return nil, errors.Wrap(ErrStoreUnavailable, result.Error.Error())
	}
	return &model.UserProfile{
		Uid:       record.Uid,
		Email:     record.Email,
		Name:      record.Name,
		Username:  record.Username,
		Bio:       record.Bio,
		Avatar:    record.Avatar,
		Followers: jsonToStringSlice(record.Followers),
		Following: jsonToStringSlice(record.Following),
		CreatedAt: record.CreatedAt,
	}, nil
}

func (s *GormProfileStore) Upsert(ctx context.Context, profile *model.UserProfile) error {
	record := ProfileRecord{
		Uid:       profile.Uid,
		Email:     profile.Email,
		Name:      profile.Name,
		Username:  profile.Username,
		Bio:       profile.Bio,
		Avatar:    profile.Avatar,
		Followers: mustJSON(profile.Followers),
		Following: mustJSON(profile.Following),
		CreatedAt: profile.CreatedAt,
	}
	if result := s.db.WithContext(ctx).Save(&record); result.Error != nil {
		return errors.Wrap(ErrStoreUnavailable, result.Error.Error())
	}
	return nil
}

func (s *GormProfileStore) SetFollowing(ctx context.Context, uid string, following []string) error {
	result := s.db.WithContext(ctx).
		Model(&ProfileRecord{}).
		Where("uid = ?", uid).
		Update("following", mustJSON(following))
	if result.Error != nil {
		return errors.Wrap(ErrStoreUnavailable, result.Error.Error())
	}
	return nil
}

// mustJSON marshals list values for JSON columns. The inputs are plain
// slices of strings or Comment records, which cannot fail to marshal.
func mustJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("[]")
	}
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}

func jsonToInterface(raw datatypes.JSON) interface{} {
	if len(raw) == 0 {
		return []interface{}{}
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return []interface{}{}
	}
	return out
}

func jsonToStringSlice(raw datatypes.JSON) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	return append(out, items...)
}
