package repository

import (
	"context"

	"github.com/Baaaki/agora/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoteCounts is the aggregate of the ledger for one target.
type VoteCounts struct {
	Total int
	Up    int
	Down  int
}

type VoteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

func (r *VoteRepository) Find(ctx context.Context, userID uuid.UUID, target models.VoteTarget, targetID uuid.UUID) (*models.Vote, error) {
	return findOne[models.Vote](r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target, targetID))
}

// Put records value for (user, target). A zero value removes the vote.
func (r *VoteRepository) Put(ctx context.Context, existing *models.Vote, userID uuid.UUID, target models.VoteTarget, targetID uuid.UUID, value int) error {
	db := r.db.WithContext(ctx)
	switch {
	case existing == nil && value == 0:
		return nil
	case existing == nil:
		return db.Create(&models.Vote{UserID: userID, TargetType: target, TargetID: targetID, Value: value}).Error
	case value == 0:
		return db.Delete(&models.Vote{}, "id = ?", existing.ID).Error
	default:
		return db.Model(&models.Vote{}).Where("id = ?", existing.ID).Update("value", value).Error
	}
}

// Tally aggregates the ledger for one target.
func (r *VoteRepository) Tally(ctx context.Context, target models.VoteTarget, targetID uuid.UUID) (VoteCounts, error) {
	var counts VoteCounts
	err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN value = 1 THEN 1 ELSE 0 END), 0) AS up,
			COALESCE(SUM(CASE WHEN value = -1 THEN 1 ELSE 0 END), 0) AS down`).
		Where("target_type = ? AND target_id = ?", target, targetID).
		Scan(&counts).Error
	return counts, err
}

// ValuesFor returns the caller's votes on the given targets, keyed by target id.
func (r *VoteRepository) ValuesFor(ctx context.Context, userID uuid.UUID, target models.VoteTarget, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var votes []models.Vote
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id IN ?", userID, target, ids).
		Find(&votes).Error; err != nil {
		return nil, err
	}
	for _, v := range votes {
		out[v.TargetID] = v.Value
	}
	return out, nil
}
