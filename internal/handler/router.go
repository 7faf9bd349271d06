package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/middleware"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	IsProduction   bool
	CORSOrigin     string
	MetricsEnabled bool
}

// RateLimits holds the per-scope limiters. Nil limiters are skipped, which
// is how the server runs without Redis.
type RateLimits struct {
	General *middleware.RateLimiter
	Auth    *middleware.RateLimiter
	Forgot  *middleware.RateLimiter
}

type Handlers struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Spaces    *SpaceHandler
	Posts     *PostHandler
	Answers   *AnswerHandler
	Comments  *CommentHandler
	Admin     *AdminHandler
	WebSocket *WebSocketHandler
}

// NewRouter builds the gin engine with every route under /api/v1.
func NewRouter(cfg RouterConfig, auth *middleware.Authenticator, limits RateLimits, content *service.ContentService, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.ErrorHandler(cfg.IsProduction),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			fail(c, apperr.Internal("Internal Server Error", fmt.Errorf("panic: %v", recovered)))
		}),
		middleware.RequestLogger(),
		middleware.SecurityHeaders(cfg.IsProduction),
		cors.New(cors.Config{
			AllowOrigins:     []string{cfg.CORSOrigin},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)
	router.NoRoute(middleware.NotFound())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	requireAuth := auth.RequireAuth()
	optionalAuth := auth.OptionalAuth()
	ownsPost := middleware.RequireOwnership(content.FindPost, "id")
	ownsAnswer := middleware.RequireOwnership(content.FindAnswer, "id")
	ownsComment := middleware.RequireOwnership(content.FindComment, "id")

	api := router.Group("/api/v1", limit(limits.General))

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/signup", limit(limits.Auth), h.Auth.Signup)
		authRoutes.POST("/login", limit(limits.Auth), h.Auth.Login)
		authRoutes.POST("/refresh", auth.RequireRefresh(), h.Auth.Refresh)
		authRoutes.POST("/logout", requireAuth, h.Auth.Logout)
		authRoutes.GET("/me", requireAuth, h.Auth.Me)
		authRoutes.POST("/forgot-password", limit(limits.Forgot), h.Auth.ForgotPassword)
		authRoutes.POST("/reset-password", limit(limits.Forgot), h.Auth.ResetPassword)
		authRoutes.POST("/verify-email", h.Auth.VerifyEmail)
		authRoutes.POST("/resend-verification", limit(limits.Forgot), h.Auth.ResendVerification)
	}

	users := api.Group("/users")
	{
		users.GET("/top", h.Users.Top)
		users.GET("/:username", h.Users.Profile)
		users.PUT("/me", requireAuth, h.Users.UpdateMe)
	}

	spaces := api.Group("/spaces")
	{
		spaces.GET("", h.Spaces.List)
		spaces.GET("/trending", h.Spaces.Trending)
		spaces.POST("", requireAuth, h.Spaces.Create)
		spaces.GET("/:slug", optionalAuth, h.Spaces.Get)
		spaces.GET("/:slug/posts", optionalAuth, h.Spaces.Feed)
		spaces.PUT("/:slug", requireAuth, h.Spaces.Update)
		spaces.POST("/:slug/join", requireAuth, h.Spaces.Join)
		spaces.POST("/:slug/leave", requireAuth, h.Spaces.Leave)
		spaces.POST("/:slug/moderators", requireAuth, h.Spaces.AddModerator)
		spaces.DELETE("/:slug/moderators/:userID", requireAuth, h.Spaces.RemoveModerator)
	}

	posts := api.Group("/posts")
	{
		posts.GET("", h.Posts.List)
		posts.GET("/trending", h.Posts.Trending)
		posts.GET("/unanswered", h.Posts.Unanswered)
		posts.POST("", requireAuth, middleware.RequirePermission(models.PermCreatePost), h.Posts.Create)
		posts.GET("/:id", optionalAuth, h.Posts.Get)
		posts.PUT("/:id", requireAuth, middleware.RequirePermission(models.PermEditOwnPost), ownsPost, h.Posts.Edit)
		posts.DELETE("/:id", requireAuth, middleware.RequirePermission(models.PermDeleteOwnPost), ownsPost, h.Posts.Delete)
		posts.POST("/:id/restore", requireAuth, ownsPost, h.Posts.Restore)
		posts.POST("/:id/vote", requireAuth, middleware.RequirePermission(models.PermVote), h.Posts.Vote)
		posts.POST("/:id/accept", requireAuth, h.Posts.Accept)
		posts.DELETE("/:id/accept", requireAuth, h.Posts.Unaccept)
		posts.PUT("/:id/moderate", requireAuth, h.Posts.Moderate)

		posts.GET("/:id/answers", optionalAuth, h.Answers.List)
		posts.POST("/:id/answers", requireAuth, middleware.RequirePermission(models.PermCreatePost), h.Answers.Create)
		posts.GET("/:id/comments", h.Comments.ListOnPost)
		posts.POST("/:id/comments", requireAuth, middleware.RequirePermission(models.PermComment), h.Comments.CreateOnPost)
	}

	answers := api.Group("/answers")
	{
		answers.PUT("/:id", requireAuth, ownsAnswer, h.Answers.Edit)
		answers.DELETE("/:id", requireAuth, ownsAnswer, h.Answers.Delete)
		answers.POST("/:id/restore", requireAuth, ownsAnswer, h.Answers.Restore)
		answers.POST("/:id/vote", requireAuth, middleware.RequirePermission(models.PermVote), h.Answers.Vote)
		answers.PUT("/:id/moderate", requireAuth, h.Answers.Moderate)
		answers.GET("/:id/comments", h.Comments.ListOnAnswer)
		answers.POST("/:id/comments", requireAuth, middleware.RequirePermission(models.PermComment), h.Comments.CreateOnAnswer)
	}

	api.DELETE("/comments/:id", requireAuth, ownsComment, h.Comments.Delete)

	admin := api.Group("/admin", requireAuth, middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin))
	{
		admin.GET("/users", h.Admin.GetAllUsers)
		admin.POST("/users/deactivate", middleware.RequirePermission(models.PermManageUsers), h.Admin.Deactivate)
		admin.POST("/users/activate", middleware.RequirePermission(models.PermManageUsers), h.Admin.Activate)
		admin.PUT("/users/:id/role", middleware.RequirePermission(models.PermManageUsers), h.Admin.SetRole)
		admin.GET("/banned-ips", h.Admin.BannedIPs)
		admin.POST("/banned-ips", h.Admin.BanIP)
		admin.DELETE("/banned-ips/:ip", h.Admin.UnbanIP)
		admin.GET("/audit", h.Admin.AuditLog)
		admin.DELETE("/audit", h.Admin.PruneAudit)
	}

	if h.WebSocket != nil {
		api.GET("/ws", requireAuth, h.WebSocket.HandleWebSocket)
	}

	return router
}

func limit(rl *middleware.RateLimiter) gin.HandlerFunc {
	if rl == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return rl.Middleware()
}
