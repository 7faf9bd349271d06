package repository

import (
	"context"
	"time"

	"github.com/Baaaki/agora/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var spaceDerived = []string{"member_count", "post_count", "question_count", "discussion_count"}

type SpaceRepository struct {
	db *gorm.DB
}

func NewSpaceRepository(db *gorm.DB) *SpaceRepository {
	return &SpaceRepository{db: db}
}

func (r *SpaceRepository) Create(ctx context.Context, space *models.Space) error {
	return r.db.WithContext(ctx).Create(space).Error
}

// Save writes the space's settings. Counters are maintained by Recount.
func (r *SpaceRepository) Save(ctx context.Context, space *models.Space) error {
	return saveOwned(r.db.WithContext(ctx), space, spaceDerived)
}

func (r *SpaceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Space, error) {
	return findOne[models.Space](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *SpaceRepository) FindBySlug(ctx context.Context, slug string) (*models.Space, error) {
	return findOne[models.Space](r.db.WithContext(ctx).Where("slug = ?", slug))
}

// ExistsByNameOrSlug checks both unique columns, ignoring exceptID.
func (r *SpaceRepository) ExistsByNameOrSlug(ctx context.Context, name, slug string, exceptID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Space{}).
		Where("(name = ? OR slug = ?) AND id <> ?", name, slug, exceptID).
		Count(&n).Error
	return n > 0, err
}

// ListPublic returns active public spaces, busiest first.
func (r *SpaceRepository) ListPublic(ctx context.Context, page Page) ([]models.Space, int64, error) {
	page = page.Normalize()
	cond := "is_public = ? AND is_active = ?"

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Space{}).Where(cond, true, true).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var spaces []models.Space
	err := r.db.WithContext(ctx).
		Where(cond, true, true).
		Order("member_count DESC, post_count DESC, created_at ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&spaces).Error
	return spaces, total, err
}

// ViewTotals sums post views per space for the given spaces.
func (r *SpaceRepository) ViewTotals(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		SpaceID uuid.UUID
		Views   int
	}
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("space_id, COALESCE(SUM(view_count), 0) AS views").
		Where("space_id IN ? AND status <> ?", ids, models.StatusDeleted).
		Group("space_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.SpaceID] = row.Views
	}
	return out, nil
}

// AddMember reports false when the user already belongs to the space.
func (r *SpaceRepository) AddMember(ctx context.Context, spaceID, userID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SpaceMember{SpaceID: spaceID, UserID: userID, JoinedAt: at})
	return res.RowsAffected == 1, res.Error
}

// RemoveMember reports false when the user was not a member.
func (r *SpaceRepository) RemoveMember(ctx context.Context, spaceID, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("space_id = ? AND user_id = ?", spaceID, userID).
		Delete(&models.SpaceMember{})
	return res.RowsAffected == 1, res.Error
}

func (r *SpaceRepository) IsMember(ctx context.Context, spaceID, userID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.SpaceMember{}).
		Where("space_id = ? AND user_id = ?", spaceID, userID).
		Count(&n).Error
	return n > 0, err
}

// Recount recomputes the member and post counters from the source tables.
func (r *SpaceRepository) Recount(ctx context.Context, spaceID uuid.UUID) error {
	db := r.db.WithContext(ctx)

	var members int64
	if err := db.Model(&models.SpaceMember{}).Where("space_id = ?", spaceID).Count(&members).Error; err != nil {
		return err
	}

	var rows []struct {
		Mode models.PostMode
		N    int
	}
	if err := db.Model(&models.Post{}).
		Select("mode, COUNT(*) AS n").
		Where("space_id = ? AND status <> ?", spaceID, models.StatusDeleted).
		Group("mode").
		Scan(&rows).Error; err != nil {
		return err
	}

	counts := map[string]any{"member_count": members, "post_count": 0, "question_count": 0, "discussion_count": 0}
	total := 0
	for _, row := range rows {
		total += row.N
		switch row.Mode {
		case models.ModeQuestion:
			counts["question_count"] = row.N
		case models.ModeDiscussion:
			counts["discussion_count"] = row.N
		}
	}
	counts["post_count"] = total

	return r.db.WithContext(ctx).Model(&models.Space{}).Where("id = ?", spaceID).UpdateColumns(counts).Error
}

func (r *SpaceRepository) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Space{}).Where("id = ?", id).
		UpdateColumn("last_activity", at).Error
}
