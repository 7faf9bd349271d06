package models

import (
	"slices"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role bypasses ownership checks.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

type Permission string

const (
	PermCreatePost      Permission = "create_post"
	PermEditOwnPost     Permission = "edit_own_post"
	PermDeleteOwnPost   Permission = "delete_own_post"
	PermVote            Permission = "vote"
	PermComment         Permission = "comment"
	PermModerateContent Permission = "moderate_content"
	PermManageUsers     Permission = "manage_users"
	PermManageSpaces    Permission = "manage_spaces"
	PermViewAnalytics   Permission = "view_analytics"
)

// DefaultPermissions returns the permission set granted with a role.
func DefaultPermissions(role Role) []Permission {
	perms := []Permission{PermCreatePost, PermEditOwnPost, PermDeleteOwnPost, PermVote, PermComment}
	switch role {
	case RoleModerator:
		perms = append(perms, PermModerateContent)
	case RoleAdmin, RoleSuperAdmin:
		perms = append(perms, PermModerateContent, PermManageUsers, PermManageSpaces, PermViewAnalytics)
	}
	return perms
}

const (
	MinReputation        = 1
	MaxReputationHistory = 100
)

type ReputationEntry struct {
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type User struct {
	ID                uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	Email             string                              `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	Username          string                              `gorm:"type:varchar(30);uniqueIndex;not null" json:"username"`
	PasswordHash      string                              `gorm:"type:varchar(255);not null" json:"-"` // Never expose password hash in JSON
	DisplayName       string                              `gorm:"type:varchar(50);not null" json:"display_name"`
	Bio               string                              `gorm:"type:varchar(500)" json:"bio"`
	Role              Role                                `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	Permissions       datatypes.JSONSlice[Permission]     `json:"permissions"`
	Reputation        int                                 `gorm:"not null;default:1;index" json:"reputation"`
	ReputationHistory datatypes.JSONSlice[ReputationEntry] `json:"-"`
	IsActive          bool                                `gorm:"not null" json:"is_active"`
	IsEmailVerified   bool                                `gorm:"not null" json:"is_email_verified"`

	// One-time tokens are stored as digests; expiry is set together with the token.
	EmailVerificationToken   *string    `gorm:"type:varchar(64);index" json:"-"`
	EmailVerificationExpires *time.Time `json:"-"`
	PasswordResetToken       *string    `gorm:"type:varchar(64);index" json:"-"`
	PasswordResetExpires     *time.Time `json:"-"`

	LastSeen     time.Time `json:"last_seen"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// HasPermission reports whether the user holds any of perms.
// Super admins hold every permission.
func (u *User) HasPermission(perms ...Permission) bool {
	if u.Role == RoleSuperAdmin {
		return true
	}
	for _, p := range perms {
		if slices.Contains(u.Permissions, p) {
			return true
		}
	}
	return false
}

// Validate checks the reputation invariants before a save.
func (u *User) Validate() error {
	if u.Reputation < MinReputation {
		return apperr.Validationf("Reputation cannot fall below %d", MinReputation)
	}
	if len(u.ReputationHistory) > MaxReputationHistory {
		return apperr.Validationf("Reputation history cannot exceed %d entries", MaxReputationHistory)
	}
	if !u.Role.Valid() {
		return apperr.Validation("Invalid role")
	}
	return nil
}

// PublicProfile is the projection of a user shown to other users.
type PublicProfile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	Role        Role      `json:"role"`
	Reputation  int       `json:"reputation"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		Role:        u.Role,
		Reputation:  u.Reputation,
		LastSeen:    u.LastSeen,
		CreatedAt:   u.CreatedAt,
	}
}
