package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VoteTarget string

const (
	TargetPost   VoteTarget = "post"
	TargetAnswer VoteTarget = "answer"
)

// Vote is one user's vote on one post or answer. The votes table is the
// ledger every vote tally is recomputed from.
type Vote struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_vote_user_target" json:"user_id"`
	TargetType VoteTarget `gorm:"type:varchar(10);not null;uniqueIndex:idx_vote_user_target;index:idx_vote_target" json:"target_type"`
	TargetID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_vote_user_target;index:idx_vote_target" json:"target_id"`
	Value      int        `gorm:"not null" json:"value"` // +1 or -1
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
