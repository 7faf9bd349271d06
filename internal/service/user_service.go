package service

import (
	"context"
	"strings"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/audit"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileUpdate leaves nil fields unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
}

// UserService serves profiles and the admin account operations.
type UserService struct {
	users     *repository.UserRepository
	audit     audit.Recorder
	sanitizer *utils.Sanitizer
	now       func() time.Time
}

func NewUserService(users *repository.UserRepository, recorder audit.Recorder, sanitizer *utils.Sanitizer) *UserService {
	return &UserService{users: users, audit: recorder, sanitizer: sanitizer, now: utcNow}
}

func (s *UserService) SetClock(now func() time.Time) {
	s.now = now
}

// FindByID returns the user or nil. Used by the auth middleware.
func (s *UserService) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) Profile(ctx context.Context, username string) (*models.PublicProfile, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, apperr.Internal("Failed to load user", err)
	}
	if user == nil || !user.IsActive {
		return nil, apperr.NotFound("User not found")
	}
	profile := user.Public()
	return &profile, nil
}

func (s *UserService) TopUsers(ctx context.Context, limit int) ([]models.PublicProfile, error) {
	users, err := s.users.TopByReputation(ctx, limit)
	if err != nil {
		return nil, apperr.Internal("Failed to load users", err)
	}
	out := make([]models.PublicProfile, len(users))
	for i := range users {
		out[i] = users[i].Public()
	}
	return out, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, in ProfileUpdate) (*models.User, error) {
	if in.DisplayName != nil {
		name := s.sanitizer.Clean(*in.DisplayName)
		if err := lengthBetween("Display name", name, minDisplayName, maxDisplayName); err != nil {
			return nil, err
		}
		user.DisplayName = name
	}
	if in.Bio != nil {
		bio := s.sanitizer.Clean(*in.Bio)
		if err := maxLength("Bio", bio, maxBio); err != nil {
			return nil, err
		}
		user.Bio = bio
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, apperr.Internal("Failed to save profile", err)
	}
	return user, nil
}

// ListUsers returns every account, including deactivated ones.
func (s *UserService) ListUsers(ctx context.Context, page repository.Page) ([]models.User, int64, error) {
	users, total, err := s.users.List(ctx, page)
	if err != nil {
		return nil, 0, apperr.Internal("Failed to fetch users", err)
	}
	return users, total, nil
}

// SetActive deactivates or reactivates accounts. Admins cannot deactivate
// themselves.
func (s *UserService) SetActive(ctx context.Context, actor *models.User, ids []uuid.UUID, active bool, reason string) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("At least one user id is required")
	}
	if !active {
		for _, id := range ids {
			if id == actor.ID {
				return 0, apperr.Validation("You cannot deactivate your own account")
			}
		}
	}

	n, err := s.users.SetActive(ctx, ids, active)
	if err != nil {
		logger.Log.Error("Failed to update account status", zap.Int("count", len(ids)), zap.Error(err))
		return 0, apperr.Internal("Failed to update users", err)
	}

	action := audit.ActionDeactivate
	if active {
		action = audit.ActionReactivate
	}
	for _, id := range ids {
		s.record(action, actor, "user", id.String(), reason)
	}
	logger.Log.Info("Account status changed",
		zap.String("admin_id", actor.ID.String()),
		zap.Int("requested", len(ids)),
		zap.Int64("updated", n),
		zap.Bool("active", active),
	)
	return n, nil
}

// SetRole changes a user's role and resets their permissions to the role's
// defaults. Only super admins can grant or revoke admin roles.
func (s *UserService) SetRole(ctx context.Context, actor *models.User, userID uuid.UUID, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, apperr.Validation("Invalid role")
	}
	if userID == actor.ID {
		return nil, apperr.Validation("You cannot change your own role")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}
	if (role.IsStaff() || user.Role.IsStaff()) && actor.Role != models.RoleSuperAdmin {
		return nil, apperr.Authorization("Only a super admin can change admin roles")
	}

	previous := user.Role
	user.Role = role
	user.Permissions = models.DefaultPermissions(role)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, apperr.Internal("Failed to save user", err)
	}
	s.record(audit.ActionRoleChange, actor, "user", user.ID.String(), string(previous)+" -> "+string(role))
	return user, nil
}

func (s *UserService) record(action audit.Action, actor *models.User, targetType, targetID, detail string) {
	err := s.audit.Record(audit.Entry{
		Action:     action,
		ActorID:    actor.ID,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
		Timestamp:  s.now(),
	})
	if err != nil {
		logger.Log.Error("Failed to record admin action", zap.String("action", string(action)), zap.Error(err))
	}
}
