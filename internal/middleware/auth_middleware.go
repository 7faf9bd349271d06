package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ctxUser     = "user"
	ctxClaims   = "claims"
	ctxResource = "resource"

	// AccessCookie carries the access token for browser clients.
	AccessCookie = "access_token"
)

// UserLookup resolves the subject of a verified token.
type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticator turns bearer and refresh tokens into the current user.
type Authenticator struct {
	tokens     *utils.TokenIssuer
	tokenStore utils.TokenStore
	users      UserLookup
}

func NewAuthenticator(tokens *utils.TokenIssuer, tokenStore utils.TokenStore, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, tokenStore: tokenStore, users: users}
}

// RequireAuth rejects the request unless it carries a valid access token
// for an active account.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := accessTokenFrom(c)
		if raw == "" {
			abortWithError(c, apperr.Authentication("Access token is required"))
			return
		}
		user, claims, err := a.resolve(c.Request.Context(), raw, a.tokens.VerifyAccess)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(ctxUser, user)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// RequireRefresh reads refresh_token from the JSON body. Only the refresh
// endpoint uses it.
func (a *Authenticator) RequireRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.RefreshToken == "" {
			abortWithError(c, apperr.Authentication("Refresh token is required"))
			return
		}
		user, claims, err := a.resolve(c.Request.Context(), body.RefreshToken, a.tokens.VerifyRefresh)
		if err != nil {
			if apperr.Is(err, apperr.KindAuthentication) && errors.Is(err, utils.ErrExpiredToken) {
				err = apperr.Authentication("Refresh token has expired")
			}
			abortWithError(c, err)
			return
		}
		c.Set(ctxUser, user)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and never
// rejects the request.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := accessTokenFrom(c); raw != "" {
			if user, claims, err := a.resolve(c.Request.Context(), raw, a.tokens.VerifyAccess); err == nil {
				c.Set(ctxUser, user)
				c.Set(ctxClaims, claims)
			}
		}
		c.Next()
	}
}

func (a *Authenticator) resolve(ctx context.Context, raw string, verify func(string) (*utils.Claims, error)) (*models.User, *utils.Claims, error) {
	claims, err := verify(raw)
	switch {
	case errors.Is(err, utils.ErrExpiredToken):
		return nil, nil, &apperr.Error{Kind: apperr.KindAuthentication, Message: "Token has expired", Err: err}
	case err != nil:
		return nil, nil, &apperr.Error{Kind: apperr.KindAuthentication, Message: "Invalid token", Err: err}
	}

	revoked, err := a.tokenStore.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, apperr.Internal("Token verification failed", err)
	}
	if revoked {
		return nil, nil, apperr.Authentication("Invalid token")
	}

	user, err := a.users.FindByID(ctx, claims.UserID)
	if err != nil {
		logger.Log.Error("Token user lookup failed", zap.String("user_id", claims.UserID.String()), zap.Error(err))
		return nil, nil, apperr.Internal("Token verification failed", err)
	}
	if user == nil {
		return nil, nil, apperr.Authentication("Invalid token - user not found")
	}
	if !user.IsActive {
		return nil, nil, apperr.Authentication("Account is deactivated")
	}
	return user, claims, nil
}

// accessTokenFrom checks the Authorization header, then the access_token
// cookie, then the token query parameter (browsers cannot set headers on
// WebSocket upgrades).
func accessTokenFrom(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := c.Cookie(AccessCookie); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ctxUser); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentClaims returns the verified token claims, or nil.
func CurrentClaims(c *gin.Context) *utils.Claims {
	if v, ok := c.Get(ctxClaims); ok {
		if claims, ok := v.(*utils.Claims); ok {
			return claims
		}
	}
	return nil
}
