package model

import (
	"encoding/json"
	"time"

	"github.com/araddon/dateparse"
)

// Raw store documents are duck-typed: fields can be missing, renamed or of
// the wrong type depending on which version of the client wrote them. This
// file is the single boundary where such documents become typed Posts; the
// rest of the core never touches a map[string]interface{}.

const (
	// legacyFriendsVisibility is an alias some historical documents carry for
	// VisibilityFriends.
	legacyFriendsVisibility = "friends only"

	// epochMillisThreshold separates epoch seconds from epoch milliseconds.
	// Anything above this value as seconds would be past year 33658.
	epochMillisThreshold = 1e12
)

// NormalizePost maps one raw store document onto a typed Post. It is total:
// malformed fields degrade to a safe default instead of failing, so a bad
// document can never take the whole feed down.
func NormalizePost(id string, fields map[string]interface{}) *Post {
	post := &Post{
		Id:             id,
		AuthorId:       stringField(fields, "authorId"),
		AuthorName:     stringField(fields, "authorName"),
		AuthorUsername: stringField(fields, "authorUsername"),
		AuthorAvatar:   stringField(fields, "authorAvatar"),
		Content:        stringField(fields, "content"),
		Images:         stringSliceField(fields, "images"),
		Likes:          stringSliceField(fields, "likes"),
		Comments:       commentsField(fields, "comments"),
		CreatedAt:      NormalizeCreatedAt(fields["createdAt"]),
		Visibility:     normalizeVisibility(fields["visibility"]),
	}
	return post
}

// NormalizeCreatedAt coerces any representation of a creation time the store
// has been observed to hand back into a time.Time. Unparseable or absent
// values fall back to now so ordering and display never crash on bad data.
func NormalizeCreatedAt(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case string:
		if t, err := dateparse.ParseAny(v); err == nil {
			return t
		}
	case float64:
		return epochToTime(int64(v))
	case int64:
		return epochToTime(v)
	case int:
		return epochToTime(int64(v))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return epochToTime(n)
		}
	case map[string]interface{}:
		// Store-native timestamp object, e.g. {"seconds": 1700000000,
		// "nanoseconds": 0}.
		if secs, ok := numberField(v, "seconds"); ok {
			nanos, _ := numberField(v, "nanoseconds")
			return time.Unix(secs, nanos)
		}
	}
	return time.Now()
}

func epochToTime(n int64) time.Time {
	if n > epochMillisThreshold {
		return time.Unix(n/1000, (n%1000)*int64(time.Millisecond))
	}
	return time.Unix(n, 0)
}

func normalizeVisibility(raw interface{}) Visibility {
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	switch s {
	case string(VisibilityFriends), legacyFriendsVisibility:
		return VisibilityFriends
	case string(VisibilityPublic):
		return VisibilityPublic
	default:
		// Preserved verbatim so the fail-open policy default stays observable
		// downstream instead of being silently rewritten here.
		return Visibility(s)
	}
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

// stringSliceField keeps the string members of a list-valued field and drops
// everything else. A non-list value degrades to an empty slice.
func stringSliceField(fields map[string]interface{}, key string) []string {
	out := []string{}
	switch v := fields[key].(type) {
	case []string:
		return append(out, v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func commentsField(fields map[string]interface{}, key string) []Comment {
	out := []Comment{}
	raw, ok := fields[key].([]interface{})
	if !ok {
		return out
	}
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, Comment{
			AuthorId:  stringField(m, "authorId"),
			Content:   stringField(m, "content"),
			CreatedAt: NormalizeCreatedAt(m["createdAt"]),
		})
	}
	return out
}

func numberField(fields map[string]interface{}, key string) (int64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	}
	return 0, false
}
