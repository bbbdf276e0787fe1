package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kwitter-app/kwitter/model"
	"github.com/kwitter-app/kwitter/store"
	. "github.com/kwitter-app/kwitter/utils/log"
)

// ViewerKey is the gin context key under which the resolved viewer is
// stored. The value is a *model.Viewer; nil means anonymous.
const ViewerKey = "viewer"

var (
	// profileStore resolves viewer ids into profiles carrying the following
	// set. Before any middleware runs, make sure it's initialized correctly.
	profileStore store.ProfileStore
)

// Setup initializes all package scoped variables that are needed to perform
// middleware functionalities. This function must be called before any
// middleware is used.
func Setup(profiles store.ProfileStore) {
	profileStore = profiles
}

// ViewerResolution reads the viewer id placed in the "X-Viewer-Id" header by
// the fronting auth proxy, loads the matching profile, and stores the
// resulting viewer on the request context. Requests without the header
// proceed as anonymous. An id that resolves to no profile is rejected: it
// indicates a stale or forged header, not a signed-out user.
func ViewerResolution() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.Request.Header.Get("X-Viewer-Id")
		if uid == "" {
			c.Set(ViewerKey, (*model.Viewer)(nil))
			c.Next()
			return
		}

		profile, err := profileStore.Get(c.Request.Context(), uid)
		if err != nil {
			Log.Warn("failed to resolve viewer ", uid, ": ", err)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "unknown viewer",
			})
			c.Abort()
			return
		}

		c.Set(ViewerKey, profile.Viewer())
		c.Next()
	}
}

// ViewerFromContext extracts the viewer stored by ViewerResolution. Returns
// nil (anonymous) if the middleware did not run.
func ViewerFromContext(c *gin.Context) *model.Viewer {
	value, ok := c.Get(ViewerKey)
	if !ok {
		return nil
	}
	viewer, _ := value.(*model.Viewer)
	return viewer
}
