package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment belongs to exactly one of a post or an answer.
type Comment struct {
	ID       uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Body     string        `gorm:"type:varchar(1000);not null" json:"body"`
	AuthorID uuid.UUID     `gorm:"type:uuid;not null;index" json:"author_id"`
	PostID   *uuid.UUID    `gorm:"type:uuid;index" json:"post_id,omitempty"`
	AnswerID *uuid.UUID    `gorm:"type:uuid;index" json:"answer_id,omitempty"`
	Status   ContentStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	SoftDelete

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

func (c *Comment) OwnerID() uuid.UUID {
	return c.AuthorID
}
