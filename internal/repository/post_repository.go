package repository

import (
	"context"
	"time"

	"github.com/Baaaki/agora/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostSort string

const (
	SortHot      PostSort = "hot"
	SortNewest   PostSort = "newest"
	SortVotes    PostSort = "votes"
	SortAnswers  PostSort = "answers"
	SortActivity PostSort = "activity"
)

var postOrder = map[PostSort]string{
	SortHot:      "is_pinned DESC, hot_score DESC, created_at DESC",
	SortNewest:   "is_pinned DESC, created_at DESC",
	SortVotes:    "is_pinned DESC, score DESC, created_at DESC",
	SortAnswers:  "is_pinned DESC, answer_count DESC, created_at DESC",
	SortActivity: "is_pinned DESC, last_activity DESC",
}

// PostFilter narrows post listings. Zero values mean no restriction.
type PostFilter struct {
	SpaceID    *uuid.UUID
	AuthorID   *uuid.UUID
	Mode       models.PostMode
	Tag        string
	Unanswered bool
	Since      *time.Time
}

// postDerived lists the post columns owned by UpdateTally, the recounts and
// IncrementViews.
var postDerived = append([]string{"hot_score", "answer_count", "comment_count", "view_count"}, voteColumns...)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// Save writes the post's own fields. Derived counters are left untouched.
func (r *PostRepository) Save(ctx context.Context, post *models.Post) error {
	return saveOwned(r.db.WithContext(ctx), post, postDerived)
}

// FindByID returns the post in any status, deleted included.
func (r *PostRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return findOne[models.Post](r.db.WithContext(ctx).Where("id = ?", id))
}

// LockByID loads the post and holds a row lock until the transaction ends.
func (r *PostRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return findOne[models.Post](forUpdate(r.db.WithContext(ctx)).Where("id = ?", id))
}

// UpdateTally writes the derived vote counters and hot score.
func (r *PostRepository) UpdateTally(ctx context.Context, id uuid.UUID, tally models.VoteTally, hotScore float64) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"vote_count":     tally.VoteCount,
		"upvote_count":   tally.UpvoteCount,
		"downvote_count": tally.DownvoteCount,
		"score":          tally.Score,
		"hot_score":      hotScore,
	}).Error
}

// RecountAnswers sets answer_count from the active answers of the post.
func (r *PostRepository) RecountAnswers(ctx context.Context, postID uuid.UUID) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Answer{}).
		Where("post_id = ? AND status = ?", postID, models.StatusActive).
		Count(&n).Error; err != nil {
		return 0, err
	}
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn("answer_count", n).Error
	return int(n), err
}

// RecountComments sets comment_count from the active comments on the post.
func (r *PostRepository) RecountComments(ctx context.Context, postID uuid.UUID) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ? AND status = ?", postID, models.StatusActive).
		Count(&n).Error; err != nil {
		return 0, err
	}
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn("comment_count", n).Error
	return int(n), err
}

func (r *PostRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

func (r *PostRepository) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		UpdateColumn("last_activity", at).Error
}

// List returns active and closed posts matching filter.
func (r *PostRepository) List(ctx context.Context, filter PostFilter, sort PostSort, page Page) ([]models.Post, int64, error) {
	page = page.Normalize()
	order, ok := postOrder[sort]
	if !ok {
		order = postOrder[SortHot]
	}

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("status IN ?", []models.ContentStatus{models.StatusActive, models.StatusClosed})
		if filter.SpaceID != nil {
			db = db.Where("space_id = ?", *filter.SpaceID)
		}
		if filter.AuthorID != nil {
			db = db.Where("author_id = ?", *filter.AuthorID)
		}
		if filter.Mode != "" {
			db = db.Where("mode = ?", filter.Mode)
		}
		if filter.Unanswered {
			db = db.Where("mode = ? AND is_answered = ?", models.ModeQuestion, false)
		}
		if filter.Since != nil {
			db = db.Where("created_at >= ?", *filter.Since)
		}
		if filter.Tag != "" {
			db = db.Where("CAST(tags AS TEXT) LIKE ?", `%"`+filter.Tag+`"%`)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	err := r.db.WithContext(ctx).Scopes(scope).
		Order(order).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&posts).Error
	return posts, total, err
}
