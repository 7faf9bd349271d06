package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SpaceModerator struct {
	UserID  uuid.UUID `json:"user_id"`
	AddedBy uuid.UUID `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

type Space struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Slug        string    `gorm:"type:varchar(60);uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:varchar(500)" json:"description"`
	Rules       string    `gorm:"type:varchar(2000)" json:"rules"`

	IsPublic         bool `gorm:"not null" json:"is_public"`
	IsActive         bool `gorm:"not null" json:"is_active"`
	AllowQuestions   bool `gorm:"not null" json:"allow_questions"`
	AllowDiscussions bool `gorm:"not null" json:"allow_discussions"`

	MemberCount     int `gorm:"not null;default:0" json:"member_count"`
	PostCount       int `gorm:"not null;default:0" json:"post_count"`
	QuestionCount   int `gorm:"not null;default:0" json:"question_count"`
	DiscussionCount int `gorm:"not null;default:0" json:"discussion_count"`

	OwnerUserID uuid.UUID                           `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Moderators  datatypes.JSONSlice[SpaceModerator] `json:"moderators"`

	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Space) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

func (s *Space) OwnerID() uuid.UUID {
	return s.OwnerUserID
}

// CanModerate reports whether userID is the owner or a listed moderator.
func (s *Space) CanModerate(userID uuid.UUID) bool {
	if s.OwnerUserID == userID {
		return true
	}
	return slices.ContainsFunc(s.Moderators, func(m SpaceModerator) bool {
		return m.UserID == userID
	})
}

// SpaceMember records that a user joined a space.
type SpaceMember struct {
	SpaceID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"space_id"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
