package repository

import (
	"context"

	"github.com/Baaaki/agora/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *CommentRepository) Save(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Save(comment).Error
}

func (r *CommentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return findOne[models.Comment](r.db.WithContext(ctx).Where("id = ?", id))
}

// ListByPost returns active comments attached directly to a post, oldest first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID uuid.UUID, page Page) ([]models.Comment, error) {
	return r.list(ctx, "post_id = ?", postID, page)
}

func (r *CommentRepository) ListByAnswer(ctx context.Context, answerID uuid.UUID, page Page) ([]models.Comment, error) {
	return r.list(ctx, "answer_id = ?", answerID, page)
}

func (r *CommentRepository) list(ctx context.Context, cond string, id uuid.UUID, page Page) ([]models.Comment, error) {
	page = page.Normalize()
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Where(cond, id).
		Where("status = ?", models.StatusActive).
		Order("created_at ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&comments).Error
	return comments, err
}
