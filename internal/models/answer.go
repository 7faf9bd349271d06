package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Answer struct {
	ID       uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Body     string        `gorm:"type:text;not null" json:"body"`
	BodyHTML string        `gorm:"type:text" json:"body_html"`
	PostID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"post_id"`
	AuthorID uuid.UUID     `gorm:"type:uuid;not null;index" json:"author_id"`
	Status   ContentStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	VoteTally
	CommentCount int `gorm:"not null;default:0" json:"comment_count"`

	IsAccepted bool       `gorm:"not null;index" json:"is_accepted"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy *uuid.UUID `gorm:"type:uuid" json:"accepted_by,omitempty"`

	IsLocked        bool   `gorm:"not null" json:"is_locked"`
	ModerationNotes string `gorm:"type:varchar(1000)" json:"moderation_notes,omitempty"`

	SoftDelete
	EditHistory  datatypes.JSONSlice[EditEntry] `json:"edit_history"`
	LastEditedAt *time.Time                     `json:"last_edited_at,omitempty"`
	LastEditedBy *uuid.UUID                     `gorm:"type:uuid" json:"last_edited_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

func (a *Answer) OwnerID() uuid.UUID {
	return a.AuthorID
}
