package authresolver

import (
	"github.com/gin-gonic/gin"

	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
	"github.com/sabouaram/storegate/internal/gwtypes"
)

// ContextKey is the gin context key the resolved AuthResult is stored
// under.
const ContextKey = "storegate.auth"

// Middleware returns a gin handler that resolves the Authorization header
// and stores the AuthResult on the context. requireAuth controls whether an
// unauthenticated request is rejected outright (used for the JSON API and
// WebDAV surfaces) or allowed through as AuthNone (unused today, kept for
// future anonymous endpoints like the short-link proxy routes).
func Middleware(r *Resolver, requireAuth bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := r.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			c.Error(err)
			c.AbortWithStatus(gwerr.HTTPStatus(err))
			return
		}

		if requireAuth && !res.Authenticated {
			c.Error(gwerr.New(gwerr.Unauthorized, "authentication required"))
			c.AbortWithStatus(401)
			return
		}

		c.Set(ContextKey, res)
		c.Next()
	}
}

// FromContext retrieves the AuthResult stored by Middleware.
func FromContext(c *gin.Context) gwtypes.AuthResult {
	v, ok := c.Get(ContextKey)
	if !ok {
		return gwtypes.AuthResult{AuthType: gwtypes.AuthNone}
	}
	return v.(gwtypes.AuthResult)
}
