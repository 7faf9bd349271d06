package middleware

import (
	"context"
	"slices"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errAuthRequired = apperr.Authentication("Authentication required")

// RequireRole passes users holding one of roles. Must follow RequireAuth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortWithError(c, errAuthRequired)
			return
		}
		if !slices.Contains(roles, user.Role) {
			abortWithError(c, apperr.Authorization("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

// RequirePermission passes users holding any of perms; super admins always pass.
func RequirePermission(perms ...models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortWithError(c, errAuthRequired)
			return
		}
		if !user.HasPermission(perms...) {
			abortWithError(c, apperr.Authorization("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

// Owned is a resource with a single owning user.
type Owned interface {
	OwnerID() uuid.UUID
}

// RequireOwnership loads the resource named by the path parameter and lets
// the owner, admins and super admins through. load returns nil when the
// resource does not exist. The resource is kept in the context for the
// handler (see Resource).
func RequireOwnership[T any, P interface {
	*T
	Owned
}](load func(ctx context.Context, id uuid.UUID) (P, error), param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortWithError(c, errAuthRequired)
			return
		}
		id, err := uuid.Parse(c.Param(param))
		if err != nil {
			abortWithError(c, apperr.NotFound("Resource not found"))
			return
		}
		resource, err := load(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, apperr.Internal("Ownership verification failed", err))
			return
		}
		if resource == nil {
			abortWithError(c, apperr.NotFound("Resource not found"))
			return
		}
		if !user.Role.IsStaff() && resource.OwnerID() != user.ID {
			abortWithError(c, apperr.Authorization("Access denied - you can only modify your own resources"))
			return
		}
		c.Set(ctxResource, resource)
		c.Next()
	}
}

// Resource returns the resource stored by RequireOwnership.
func Resource[T any](c *gin.Context) (T, bool) {
	v, ok := c.Get(ctxResource)
	if !ok {
		var zero T
		return zero, false
	}
	r, ok := v.(T)
	return r, ok
}
