package models

import (
	"time"

	"github.com/google/uuid"
)

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&User{},
		&Space{},
		&SpaceMember{},
		&Post{},
		&Answer{},
		&Comment{},
		&Vote{},
	}
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

type ContentStatus string

const (
	StatusActive    ContentStatus = "active"
	StatusClosed    ContentStatus = "closed"
	StatusDeleted   ContentStatus = "deleted"
	StatusModerated ContentStatus = "moderated"
)

// VoteTally holds the vote counters derived from the vote ledger.
// Score is always UpvoteCount - DownvoteCount.
type VoteTally struct {
	VoteCount     int `gorm:"not null;default:0" json:"vote_count"`
	UpvoteCount   int `gorm:"not null;default:0" json:"upvote_count"`
	DownvoteCount int `gorm:"not null;default:0" json:"downvote_count"`
	Score         int `gorm:"not null;default:0;index" json:"score"`
}

// SoftDelete marks content as deleted while keeping the row.
type SoftDelete struct {
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *uuid.UUID `gorm:"type:uuid" json:"deleted_by,omitempty"`
}

func (s SoftDelete) IsDeleted() bool {
	return s.DeletedAt != nil
}

// EditEntry is a snapshot of content as it was before an edit.
type EditEntry struct {
	Title    string    `json:"title,omitempty"`
	Body     string    `json:"body"`
	Tags     []string  `json:"tags,omitempty"`
	EditedBy uuid.UUID `json:"edited_by"`
	EditedAt time.Time `json:"edited_at"`
	Reason   string    `json:"reason,omitempty"`
}
