package model

import "time"

// Viewer is the identity evaluating post visibility. A nil *Viewer is the
// anonymous viewer.
type Viewer struct {
	Id        string
	Following []string
}

// Follows returns whether the viewer's following set contains authorId.
// Safe to call on a nil viewer.
func (v *Viewer) Follows(authorId string) bool {
	if v == nil {
		return false
	}
	for _, id := range v.Following {
		if id == authorId {
			return true
		}
	}
	return false
}

/*

UserProfile is the stored profile document backing a viewer identity.

Uid: primary key, same id the auth provider assigns
Followers: user ids following this user
Following: user ids this user follows, gates friends-only visibility

*/
type UserProfile struct {
	Uid       string    `json:"uid"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	Avatar    string    `json:"avatar"`
	Followers []string  `json:"followers"`
	Following []string  `json:"following"`
	CreatedAt time.Time `json:"createdAt"`
}

// Viewer derives the feed-facing identity from a stored profile.
func (p *UserProfile) Viewer() *Viewer {
	if p == nil {
		return nil
	}
	return &Viewer{Id: p.Uid, Following: p.Following}
}
