package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PostMode string

const (
	ModeQuestion   PostMode = "question"
	ModeDiscussion PostMode = "discussion"
)

func (m PostMode) Valid() bool {
	return m == ModeQuestion || m == ModeDiscussion
}

const MaxEditHistory = 10

type Post struct {
	ID       uuid.UUID                  `gorm:"type:uuid;primaryKey" json:"id"`
	Title    string                     `gorm:"type:varchar(300);not null" json:"title"`
	Body     string                     `gorm:"type:text;not null" json:"body"`
	BodyHTML string                     `gorm:"type:text" json:"body_html"`
	Mode     PostMode                   `gorm:"type:varchar(20);not null;index" json:"mode"`
	Status   ContentStatus              `gorm:"type:varchar(20);not null;index" json:"status"`
	AuthorID uuid.UUID                  `gorm:"type:uuid;not null;index" json:"author_id"`
	SpaceID  uuid.UUID                  `gorm:"type:uuid;not null;index" json:"space_id"`
	Tags     datatypes.JSONSlice[string] `json:"tags"`

	IsAnswered       bool       `gorm:"not null" json:"is_answered"`
	AcceptedAnswerID *uuid.UUID `gorm:"type:uuid" json:"accepted_answer_id,omitempty"`

	ViewCount    int `gorm:"not null;default:0" json:"view_count"`
	AnswerCount  int `gorm:"not null;default:0" json:"answer_count"`
	CommentCount int `gorm:"not null;default:0" json:"comment_count"`
	VoteTally
	HotScore float64 `gorm:"not null;default:0;index" json:"hot_score"`

	IsLocked        bool   `gorm:"not null" json:"is_locked"`
	IsPinned        bool   `gorm:"not null" json:"is_pinned"`
	IsFeatured      bool   `gorm:"not null" json:"is_featured"`
	ModerationNotes string `gorm:"type:varchar(1000)" json:"moderation_notes,omitempty"`

	SoftDelete
	EditHistory  datatypes.JSONSlice[EditEntry] `json:"edit_history"`
	LastEditedAt *time.Time                     `json:"last_edited_at,omitempty"`
	LastEditedBy *uuid.UUID                     `gorm:"type:uuid" json:"last_edited_by,omitempty"`

	LastActivity time.Time `gorm:"index" json:"last_activity"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (p *Post) OwnerID() uuid.UUID {
	return p.AuthorID
}
