package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	issuer := newTestIssuer()
	tests := []struct {
		role   models.Role
		status int
	}{
		{models.RoleUser, http.StatusForbidden},
		{models.RoleModerator, http.StatusOK},
		{models.RoleAdmin, http.StatusOK},
		{models.RoleSuperAdmin, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			user := newTestUser(tt.role)
			pair, err := issuer.IssuePair(user.ID)
			require.NoError(t, err)
			router := authRouter(NewAuthenticator(issuer, utils.StatelessTokenStore{}, userMap{user.ID: user}),
				RequireRole(models.RoleModerator, models.RoleAdmin))

			assert.Equal(t, tt.status, get(router, "/protected", pair.AccessToken).Code)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	issuer := newTestIssuer()

	noPerms := newTestUser(models.RoleSuperAdmin)
	noPerms.Permissions = nil

	tests := []struct {
		name   string
		user   *models.User
		status int
	}{
		{"user lacks moderate_content", newTestUser(models.RoleUser), http.StatusForbidden},
		{"moderator holds it", newTestUser(models.RoleModerator), http.StatusOK},
		{"super admin passes without the permission listed", noPerms, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := issuer.IssuePair(tt.user.ID)
			require.NoError(t, err)
			router := authRouter(NewAuthenticator(issuer, utils.StatelessTokenStore{}, userMap{tt.user.ID: tt.user}),
				RequirePermission(models.PermModerateContent, models.PermManageUsers))

			w := get(router, "/protected", pair.AccessToken)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, "AUTHORIZATION_ERROR", decodeError(t, w).Code)
			}
		})
	}
}

func TestRequirePermission_WithoutAuthentication(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.GET("/admin", RequirePermission(models.PermManageUsers), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := get(r, "/admin", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireOwnership(t *testing.T) {
	issuer := newTestIssuer()
	owner := newTestUser(models.RoleUser)
	stranger := newTestUser(models.RoleUser)
	moderator := newTestUser(models.RoleModerator)
	admin := newTestUser(models.RoleAdmin)
	superAdmin := newTestUser(models.RoleSuperAdmin)
	users := userMap{owner.ID: owner, stranger.ID: stranger, moderator.ID: moderator, admin.ID: admin, superAdmin.ID: superAdmin}

	post := &models.Post{ID: uuid.New(), AuthorID: owner.ID}
	load := func(_ context.Context, id uuid.UUID) (*models.Post, error) {
		if id == post.ID {
			return post, nil
		}
		return nil, nil
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(false))
	auth := NewAuthenticator(issuer, utils.StatelessTokenStore{}, users)
	r.GET("/posts/:id", auth.RequireAuth(), RequireOwnership(load, "id"), func(c *gin.Context) {
		p, ok := Resource[*models.Post](c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": p.ID})
	})

	tests := []struct {
		name   string
		user   *models.User
		path   string
		status int
	}{
		{"owner passes", owner, "/posts/" + post.ID.String(), http.StatusOK},
		{"admin passes", admin, "/posts/" + post.ID.String(), http.StatusOK},
		{"super admin passes", superAdmin, "/posts/" + post.ID.String(), http.StatusOK},
		{"non-owner is forbidden", stranger, "/posts/" + post.ID.String(), http.StatusForbidden},
		{"moderator is not an owner", moderator, "/posts/" + post.ID.String(), http.StatusForbidden},
		{"missing resource", owner, "/posts/" + uuid.NewString(), http.StatusNotFound},
		{"malformed id", owner, "/posts/not-a-uuid", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := issuer.IssuePair(tt.user.ID)
			require.NoError(t, err)

			w := get(r, tt.path, pair.AccessToken)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequireOwnership_LoaderFailure(t *testing.T) {
	issuer := newTestIssuer()
	user := newTestUser(models.RoleUser)
	load := func(context.Context, uuid.UUID) (*models.Answer, error) {
		return nil, errors.New("db down")
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(true))
	auth := NewAuthenticator(issuer, utils.StatelessTokenStore{}, userMap{user.ID: user})
	r.GET("/answers/:id", auth.RequireAuth(), RequireOwnership(load, "id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	pair, err := issuer.IssuePair(user.ID)
	require.NoError(t, err)
	w := get(r, "/answers/"+uuid.NewString(), pair.AccessToken)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Internal Server Error", resp.Message)
	assert.Empty(t, resp.Detail)
}

func TestErrorHandler_NotFoundRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.NoRoute(NotFound())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)
}
