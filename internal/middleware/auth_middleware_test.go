package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userMap map[uuid.UUID]*models.User

func (m userMap) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return m[id], nil
}

type revokedSet map[string]bool

func (r revokedSet) Revoked(_ context.Context, jti string) (bool, error) { return r[jti], nil }
func (r revokedSet) Revoke(_ context.Context, jti string, _ time.Time) error {
	r[jti] = true
	return nil
}

func newTestIssuer() *utils.TokenIssuer {
	return utils.NewTokenIssuer(utils.TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})
}

func newTestUser(role models.Role) *models.User {
	return &models.User{
		ID:          uuid.New(),
		Username:    "user_" + uuid.NewString()[:8],
		Role:        role,
		Permissions: models.DefaultPermissions(role),
		Reputation:  1,
		IsActive:    true,
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func authRouter(auth *Authenticator, guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(false))
	handlers := append([]gin.HandlerFunc{auth.RequireAuth()}, guards...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUser(c).ID})
	})
	r.GET("/protected", handlers...)
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	issuer := newTestIssuer()
	active := newTestUser(models.RoleUser)
	inactive := newTestUser(models.RoleUser)
	inactive.IsActive = false
	users := userMap{active.ID: active, inactive.ID: inactive}

	activePair, err := issuer.IssuePair(active.ID)
	require.NoError(t, err)
	inactivePair, err := issuer.IssuePair(inactive.ID)
	require.NoError(t, err)
	ghostPair, err := issuer.IssuePair(uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		status  int
		message string
	}{
		{"valid access token", activePair.AccessToken, http.StatusOK, ""},
		{"missing token", "", http.StatusUnauthorized, "Access token is required"},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized, "Invalid token"},
		{"refresh token as access", activePair.RefreshToken, http.StatusUnauthorized, "Invalid token"},
		{"unknown user", ghostPair.AccessToken, http.StatusUnauthorized, "Invalid token - user not found"},
		{"deactivated account", inactivePair.AccessToken, http.StatusUnauthorized, "Account is deactivated"},
	}

	router := authRouter(NewAuthenticator(issuer, utils.StatelessTokenStore{}, users))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, "/protected", tt.token)

			assert.Equal(t, tt.status, w.Code)
			if tt.message != "" {
				resp := decodeError(t, w)
				assert.Equal(t, "AUTHENTICATION_ERROR", resp.Code)
				assert.Equal(t, tt.message, resp.Message)
			}
		})
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	// Arrange
	user := newTestUser(models.RoleUser)
	issuedAt := time.Now().Add(-time.Hour)
	pair, err := newTestIssuer().WithClock(func() time.Time { return issuedAt }).IssuePair(user.ID)
	require.NoError(t, err)
	router := authRouter(NewAuthenticator(newTestIssuer(), utils.StatelessTokenStore{}, userMap{user.ID: user}))

	// Act
	w := get(router, "/protected", pair.AccessToken)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token has expired", decodeError(t, w).Message)
}

func TestRequireAuth_RevokedToken(t *testing.T) {
	issuer := newTestIssuer()
	user := newTestUser(models.RoleUser)
	pair, err := issuer.IssuePair(user.ID)
	require.NoError(t, err)
	claims, err := issuer.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)

	store := revokedSet{claims.ID: true}
	router := authRouter(NewAuthenticator(issuer, store, userMap{user.ID: user}))

	assert.Equal(t, http.StatusUnauthorized, get(router, "/protected", pair.AccessToken).Code)
}

func TestRequireAuth_CookieAndQueryFallback(t *testing.T) {
	issuer := newTestIssuer()
	user := newTestUser(models.RoleUser)
	pair, err := issuer.IssuePair(user.ID)
	require.NoError(t, err)
	router := authRouter(NewAuthenticator(issuer, utils.StatelessTokenStore{}, userMap{user.ID: user}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: pair.AccessToken})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(router, "/protected?token="+pair.AccessToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRefresh(t *testing.T) {
	issuer := newTestIssuer()
	user := newTestUser(models.RoleUser)
	pair, err := issuer.IssuePair(user.ID)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(false))
	auth := NewAuthenticator(issuer, utils.StatelessTokenStore{}, userMap{user.ID: user})
	r.POST("/refresh", auth.RequireRefresh(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"jti": CurrentClaims(c).ID})
	})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"refresh token", `{"refresh_token":"` + pair.RefreshToken + `"}`, http.StatusOK},
		{"access token rejected", `{"refresh_token":"` + pair.AccessToken + `"}`, http.StatusUnauthorized},
		{"missing token", `{}`, http.StatusUnauthorized},
		{"malformed body", `not json`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	issuer := newTestIssuer()
	user := newTestUser(models.RoleUser)
	pair, err := issuer.IssuePair(user.ID)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := NewAuthenticator(issuer, utils.StatelessTokenStore{}, userMap{user.ID: user})
	r.GET("/feed", auth.OptionalAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"authenticated": CurrentUser(c) != nil})
	})

	anonymous := get(r, "/feed", "")
	invalid := get(r, "/feed", "broken")
	signedIn := get(r, "/feed", pair.AccessToken)

	assert.Equal(t, http.StatusOK, anonymous.Code)
	assert.JSONEq(t, `{"authenticated":false}`, anonymous.Body.String())
	assert.Equal(t, http.StatusOK, invalid.Code)
	assert.JSONEq(t, `{"authenticated":false}`, invalid.Body.String())
	assert.JSONEq(t, `{"authenticated":true}`, signedIn.Body.String())
}
