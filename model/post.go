package model

import (
	"time"
)

// Visibility is the per-post access policy.
type Visibility string

const (
	// VisibilityPublic posts are readable by everyone, including anonymous
	// viewers. An empty Visibility means the same thing: documents written
	// before the visibility feature shipped have no such field at all.
	VisibilityPublic Visibility = "public"
	// VisibilityFriends posts are readable only by the author and by viewers
	// whose following set contains the author.
	VisibilityFriends Visibility = "friends"
)

/*

Post is a single feed entry, fully normalized from its raw store document.

Id: primary key, assigned by the document store on create
AuthorId: id of the authoring user
Content: post body in plain text
Images: ordered image urls attached to the post, possibly empty
Likes: user ids that liked this post. Order is incidental, membership is
	what matters, and membership updates are idempotent both directions.
Comments: comment records, opaque to the feed core
CreatedAt: creation time after normalization. Raw documents may carry a
	store-native timestamp, an ISO string or an epoch number; by the time a
	Post exists this is always a usable time.Time.
Visibility: "public", "friends", or empty (treated as public)

AuthorName / AuthorUsername / AuthorAvatar: denormalized author display
fields written onto every post document by the authoring flow so the feed
can render without a second lookup. The visibility policy ignores them.

*/
type Post struct {
	Id             string     `json:"id"`
	AuthorId       string     `json:"authorId"`
	AuthorName     string     `json:"authorName,omitempty"`
	AuthorUsername string     `json:"authorUsername,omitempty"`
	AuthorAvatar   string     `json:"authorAvatar,omitempty"`
	Content        string     `json:"content"`
	Images         []string   `json:"images"`
	Likes          []string   `json:"likes"`
	Comments       []Comment  `json:"comments"`
	CreatedAt      time.Time  `json:"createdAt"`
	Visibility     Visibility `json:"visibility,omitempty"`
}

// Comment is carried through storage and display untouched. The feed core
// never inspects it.
type Comment struct {
	AuthorId  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// LikedBy returns whether userId is a member of the post's like set.
func (p *Post) LikedBy(userId string) bool {
	for _, id := range p.Likes {
		if id == userId {
			return true
		}
	}
	return false
}
