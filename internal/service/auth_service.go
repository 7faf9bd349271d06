package service

import (
	"context"
	"strings"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/mailer"
	"github.com/Baaaki/agora/internal/metrics"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/Baaaki/agora/pkg/logger"
	"go.uber.org/zap"
)

var (
	ErrEmailAlreadyExists    = apperr.Conflict("Email is already registered")
	ErrUsernameAlreadyExists = apperr.Conflict("Username is already taken")
	ErrInvalidCredentials    = apperr.Authentication("Invalid credentials")
	ErrAccountDeactivated    = apperr.Authentication("Account is deactivated")
	ErrInvalidVerification   = apperr.Validation("Invalid or expired verification token")
	ErrInvalidReset          = apperr.Validation("Invalid or expired reset token")
	ErrAlreadyVerified       = apperr.Validation("Email is already verified")
)

// ForgotPasswordMessage is returned whether or not the account exists.
const ForgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

type SignupInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

type AuthConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

type AuthService struct {
	users      *repository.UserRepository
	tokens     *utils.TokenIssuer
	tokenStore utils.TokenStore
	mailer     mailer.Mailer
	cfg        AuthConfig
	now        func() time.Time
}

func NewAuthService(users *repository.UserRepository, tokens *utils.TokenIssuer, tokenStore utils.TokenStore, m mailer.Mailer, cfg AuthConfig) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		tokenStore: tokenStore,
		mailer:     m,
		cfg:        cfg,
		now:        utcNow,
	}
}

// SetClock replaces the time source used for token expiry.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, *utils.TokenPair, error) {
	start := time.Now()
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	logger.Log.Debug("Processing signup",
		zap.String("username", in.Username),
		zap.String("email", in.Email),
	)

	// 1. Validate input
	if err := validateSignup(in); err != nil {
		logger.Log.Warn("Signup validation failed", zap.String("email", in.Email), zap.Error(err))
		return nil, nil, err
	}

	// 2. Uniqueness
	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, nil, apperr.Internal("Failed to check email", err)
	}
	if existing != nil {
		logger.Log.Warn("Email already exists", zap.String("email", in.Email))
		return nil, nil, ErrEmailAlreadyExists
	}
	existing, err = s.users.FindByUsername(ctx, in.Username)
	if err != nil {
		return nil, nil, apperr.Internal("Failed to check username", err)
	}
	if existing != nil {
		logger.Log.Warn("Username already exists", zap.String("username", in.Username))
		return nil, nil, ErrUsernameAlreadyExists
	}

	// 3. Hash password
	hashStart := time.Now()
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, nil, apperr.Internal("Failed to hash password", err)
	}
	hashDuration := time.Since(hashStart)

	// 4. Create the user with a pending verification token
	raw, digest, err := utils.NewOneTimeToken()
	if err != nil {
		return nil, nil, apperr.Internal("Failed to generate verification token", err)
	}
	now := s.now()
	expires := now.Add(s.cfg.VerificationTTL)
	user := &models.User{
		Email:                    in.Email,
		Username:                 in.Username,
		PasswordHash:             hash,
		DisplayName:              in.DisplayName,
		Role:                     models.RoleUser,
		Permissions:              models.DefaultPermissions(models.RoleUser),
		Reputation:               models.MinReputation,
		ReputationHistory:        []models.ReputationEntry{},
		IsActive:                 true,
		EmailVerificationToken:   &digest,
		EmailVerificationExpires: &expires,
		LastSeen:                 now,
		LastActivity:             now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsDuplicate(err) {
			return nil, nil, apperr.Conflict("Email or username is already registered")
		}
		return nil, nil, apperr.Internal("Failed to create user", err)
	}

	// 5. Verification email is best-effort
	s.sendVerification(ctx, user, raw)

	// 6. Tokens
	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, nil, apperr.Internal("Failed to issue tokens", err)
	}

	metrics.ObserveAuth("signup", true)
	logger.Log.Info("User signed up",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
		zap.Duration("hash_duration", hashDuration),
		zap.Duration("total_duration", time.Since(start)),
	)
	return user, pair, nil
}

// Login accepts an email address or a username as identifier.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*models.User, *utils.TokenPair, error) {
	start := time.Now()
	logger.Log.Debug("Processing login", zap.String("identifier", identifier))

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, nil, apperr.Internal("Failed to load user", err)
	}
	if user == nil {
		logger.Log.Warn("Login failed: user not found", zap.String("identifier", identifier))
		metrics.ObserveAuth("login", false)
		return nil, nil, ErrInvalidCredentials
	}

	verifyStart := time.Now()
	valid, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, nil, apperr.Internal("Failed to verify password", err)
	}
	verifyDuration := time.Since(verifyStart)
	if !valid {
		logger.Log.Warn("Login failed: invalid password", zap.String("user_id", user.ID.String()))
		metrics.ObserveAuth("login", false)
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		logger.Log.Warn("Login failed: account deactivated", zap.String("user_id", user.ID.String()))
		metrics.ObserveAuth("login", false)
		return nil, nil, ErrAccountDeactivated
	}

	now := s.now()
	user.LastSeen, user.LastActivity = now, now
	record := func() error { return s.users.Touch(ctx, user.ID, now) }
	if utils.NeedsRehash(user.PasswordHash) {
		if rehashed, err := utils.HashPassword(password); err == nil {
			user.PasswordHash = rehashed
			record = func() error { return s.users.Save(ctx, user) }
		}
	}
	if err := record(); err != nil {
		logger.Log.Warn("Failed to record login activity", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, nil, apperr.Internal("Failed to issue tokens", err)
	}

	metrics.ObserveAuth("login", true)
	logger.Log.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.Duration("verify_duration", verifyDuration),
		zap.Duration("total_duration", time.Since(start)),
	)
	return user, pair, nil
}

// Refresh rotates a verified refresh token into a new pair.
func (s *AuthService) Refresh(ctx context.Context, user *models.User, claims *utils.Claims) (*utils.TokenPair, error) {
	if err := s.tokenStore.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, apperr.Internal("Failed to rotate refresh token", err)
	}
	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to issue tokens", err)
	}
	metrics.ObserveAuth("refresh", true)
	logger.Log.Debug("Tokens refreshed", zap.String("user_id", user.ID.String()))
	return pair, nil
}

// Logout revokes the presented token where the token store supports it.
func (s *AuthService) Logout(ctx context.Context, claims *utils.Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.tokenStore.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperr.Internal("Failed to revoke token", err)
	}
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	ok, err := s.users.ConsumeVerificationToken(ctx, utils.DigestToken(token), s.now())
	if err != nil {
		return apperr.Internal("Failed to verify email", err)
	}
	if !ok {
		logger.Log.Warn("Email verification rejected")
		return ErrInvalidVerification
	}
	metrics.ObserveAuth("verify_email", true)
	logger.Log.Info("Email verified")
	return nil
}

// ResendVerification issues a fresh verification token, replacing any pending one.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return apperr.Internal("Failed to load user", err)
	}
	if user == nil {
		return apperr.NotFound("User not found")
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}

	raw, digest, err := utils.NewOneTimeToken()
	if err != nil {
		return apperr.Internal("Failed to generate verification token", err)
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, digest, s.now().Add(s.cfg.VerificationTTL)); err != nil {
		return apperr.Internal("Failed to store verification token", err)
	}

	s.sendVerification(ctx, user, raw)
	return nil
}

// ForgotPassword never reveals whether the address belongs to an account.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return apperr.Internal("Failed to load user", err)
	}
	if user == nil {
		logger.Log.Debug("Password reset requested for unknown email")
		return nil
	}

	raw, digest, err := utils.NewOneTimeToken()
	if err != nil {
		return apperr.Internal("Failed to generate reset token", err)
	}
	if err := s.users.SetResetToken(ctx, user.ID, digest, s.now().Add(s.cfg.ResetTTL)); err != nil {
		return apperr.Internal("Failed to store reset token", err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, raw, user.DisplayName); err != nil {
		logger.Log.Error("Failed to send password reset email", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	logger.Log.Info("Password reset requested", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal("Failed to hash password", err)
	}

	ok, err := s.users.ConsumeResetToken(ctx, utils.DigestToken(token), hash, s.now())
	if err != nil {
		return apperr.Internal("Failed to reset password", err)
	}
	if !ok {
		logger.Log.Warn("Password reset rejected")
		metrics.ObserveAuth("reset_password", false)
		return ErrInvalidReset
	}
	metrics.ObserveAuth("reset_password", true)
	logger.Log.Info("Password reset completed")
	return nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User, raw string) {
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, raw, user.DisplayName); err != nil {
		logger.Log.Error("Failed to send verification email",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}
}

func validateSignup(in SignupInput) error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validateUsername(in.Username); err != nil {
		return err
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if err := lengthBetween("Display name", in.DisplayName, minDisplayName, maxDisplayName); err != nil {
		return err
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
