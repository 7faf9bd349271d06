package repository

import (
	"context"

	"github.com/Baaaki/agora/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnswerSort string

const (
	AnswerSortVotes  AnswerSort = "votes"
	AnswerSortNewest AnswerSort = "newest"
	AnswerSortOldest AnswerSort = "oldest"
)

var answerOrder = map[AnswerSort]string{
	AnswerSortVotes:  "is_accepted DESC, score DESC, created_at ASC",
	AnswerSortNewest: "is_accepted DESC, created_at DESC",
	AnswerSortOldest: "is_accepted DESC, created_at ASC",
}

var answerDerived = append([]string{"comment_count"}, voteColumns...)

type AnswerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

func (r *AnswerRepository) Create(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Create(answer).Error
}

// Save writes the answer's own fields. Vote and comment counters are left
// untouched.
func (r *AnswerRepository) Save(ctx context.Context, answer *models.Answer) error {
	return saveOwned(r.db.WithContext(ctx), answer, answerDerived)
}

func (r *AnswerRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Answer, error) {
	return findOne[models.Answer](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *AnswerRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Answer, error) {
	return findOne[models.Answer](forUpdate(r.db.WithContext(ctx)).Where("id = ?", id))
}

// ListByPost returns the active answers of a post, the accepted one first.
func (r *AnswerRepository) ListByPost(ctx context.Context, postID uuid.UUID, sort AnswerSort, page Page) ([]models.Answer, error) {
	page = page.Normalize()
	order, ok := answerOrder[sort]
	if !ok {
		order = answerOrder[AnswerSortVotes]
	}
	var answers []models.Answer
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND status = ?", postID, models.StatusActive).
		Order(order).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&answers).Error
	return answers, err
}

func (r *AnswerRepository) UpdateTally(ctx context.Context, id uuid.UUID, tally models.VoteTally) error {
	return r.db.WithContext(ctx).Model(&models.Answer{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"vote_count":     tally.VoteCount,
		"upvote_count":   tally.UpvoteCount,
		"downvote_count": tally.DownvoteCount,
		"score":          tally.Score,
	}).Error
}

func (r *AnswerRepository) RecountComments(ctx context.Context, answerID uuid.UUID) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("answer_id = ? AND status = ?", answerID, models.StatusActive).
		Count(&n).Error; err != nil {
		return 0, err
	}
	err := r.db.WithContext(ctx).Model(&models.Answer{}).Where("id = ?", answerID).
		UpdateColumn("comment_count", n).Error
	return int(n), err
}
