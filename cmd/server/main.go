package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Baaaki/agora/internal/audit"
	"github.com/Baaaki/agora/internal/broker"
	"github.com/Baaaki/agora/internal/config"
	"github.com/Baaaki/agora/internal/database"
	"github.com/Baaaki/agora/internal/handler"
	"github.com/Baaaki/agora/internal/mailer"
	"github.com/Baaaki/agora/internal/middleware"
	"github.com/Baaaki/agora/internal/notify"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/service"
	"github.com/Baaaki/agora/internal/tracing"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	mailTimeout     = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg := config.Load()
	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Log.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to connect database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Redis is optional: without it there are no rate limits, IP bans,
	// token revocation or cross-node notifications.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = broker.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Log.Fatal("Failed to connect Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Log.Info("Redis connected")
	} else {
		logger.Log.Warn("REDIS_URL not set: rate limiting and cross-node notifications disabled")
	}

	journal, err := audit.Open(cfg.AuditLogPath)
	if err != nil {
		logger.Log.Fatal("Failed to open audit journal", zap.Error(err))
	}
	defer journal.Close()

	// Notifications
	hub := notify.NewHub()
	var fanout notify.Fanout = hub
	if redisClient != nil {
		redisBroker := broker.NewRedisBroker(redisClient, broker.DefaultChannel)
		defer redisBroker.Close()
		brokerFanout := notify.NewBrokerFanout(redisBroker, hub)
		if err := brokerFanout.Relay(ctx); err != nil {
			logger.Log.Fatal("Failed to start notification relay", zap.Error(err))
		}
		fanout = brokerFanout
	}

	// Tokens
	tokens := utils.NewTokenIssuer(utils.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.JWTAccessExpiry,
		RefreshTTL:    cfg.JWTRefreshExpiry,
	})
	var tokenStore utils.TokenStore = utils.StatelessTokenStore{}
	if redisClient != nil {
		tokenStore = utils.NewRedisTokenStore(redisClient)
	}

	// Services
	store := repository.NewStore(db)
	sanitizer := utils.NewSanitizer()
	authService := service.NewAuthService(store.Users, tokens, tokenStore, buildMailer(ctx, cfg), service.AuthConfig{
		VerificationTTL: cfg.VerificationTokenExpiry,
		ResetTTL:        cfg.ResetTokenExpiry,
	})
	reputation := service.NewReputationService(store, fanout)
	content := service.NewContentService(store, reputation, fanout, journal, sanitizer)
	spaces := service.NewSpaceService(store, fanout, sanitizer)
	users := service.NewUserService(store.Users, journal, sanitizer)

	// Rate limits
	var limits handler.RateLimits
	var bans handler.IPBanList
	if redisClient != nil {
		limits = handler.RateLimits{
			General: middleware.NewRateLimiter(redisClient, middleware.RateLimiterConfig{
				Scope:       "general",
				MaxRequests: cfg.RateLimitMaxRequests,
				Window:      cfg.RateLimitWindow,
				BlockTime:   cfg.RateLimitBlockTime,
			}),
			Auth: middleware.NewRateLimiter(redisClient, middleware.RateLimiterConfig{
				Scope:       "auth",
				MaxRequests: cfg.RateLimitAuthMax,
				Window:      cfg.RateLimitAuthWindow,
				BlockTime:   cfg.RateLimitBlockTime,
			}),
			Forgot: middleware.NewRateLimiter(redisClient, middleware.RateLimiterConfig{
				Scope:       "forgot",
				MaxRequests: cfg.RateLimitForgotMax,
				Window:      cfg.RateLimitForgotWindow,
				BlockTime:   cfg.RateLimitBlockTime,
			}),
		}
		bans = limits.General
	}

	router := handler.NewRouter(
		handler.RouterConfig{
			IsProduction:   cfg.IsProduction(),
			CORSOrigin:     cfg.CORSOrigin,
			MetricsEnabled: cfg.MetricsEnabled,
		},
		middleware.NewAuthenticator(tokens, tokenStore, users),
		limits,
		content,
		handler.Handlers{
			Auth:      handler.NewAuthHandler(authService, cfg.IsProduction()),
			Users:     handler.NewUserHandler(users),
			Spaces:    handler.NewSpaceHandler(spaces, content),
			Posts:     handler.NewPostHandler(content),
			Answers:   handler.NewAnswerHandler(content),
			Comments:  handler.NewCommentHandler(content),
			Admin:     handler.NewAdminHandler(users, journal, bans),
			WebSocket: handler.NewWebSocketHandler(hub, fanout, spaces, content, cfg.WSMaxSession, cfg.CORSOrigin),
		},
	)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           tracing.Handler(router, cfg.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server starting", zap.String("port", cfg.ServerPort), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Log.Warn("Tracing shutdown failed", zap.Error(err))
	}
}

// buildMailer picks the mail transport. In queue mode the API publishes to
// RabbitMQ and an in-process worker delivers over SMTP.
func buildMailer(ctx context.Context, cfg *config.Config) mailer.Mailer {
	var smtpSender mailer.Sender = mailer.LogSender{}
	if cfg.SMTPHost != "" {
		smtpSender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.MailFrom,
		})
	}

	switch cfg.MailTransport {
	case "smtp":
		return mailer.NewDispatcher(cfg.AppBaseURL, mailer.NewAsyncSender(smtpSender, mailTimeout))
	case "queue":
		queue := mailer.NewQueueSender(cfg.AMQPURL, cfg.MailQueue)
		go func() {
			<-ctx.Done()
			_ = queue.Close()
		}()
		go mailer.NewMailWorker(cfg.AMQPURL, cfg.MailQueue, smtpSender).Run(ctx)
		return mailer.NewDispatcher(cfg.AppBaseURL, queue)
	default:
		return mailer.NewDispatcher(cfg.AppBaseURL, mailer.LogSender{})
	}
}
