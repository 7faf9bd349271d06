package repository

import (
	"context"
	"strings"
	"time"

	"github.com/Baaaki/agora/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// Save writes every column of user.
func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return findOne[models.User](r.db.WithContext(ctx).Where("id = ?", id))
}

// LockByID loads the user and holds a row lock until the transaction ends.
func (r *UserRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return findOne[models.User](forUpdate(r.db.WithContext(ctx)).Where("id = ?", id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return findOne[models.User](r.db.WithContext(ctx).Where("username = ?", username))
}

// FindByIdentifier looks a user up by email (case-insensitive) or username.
func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	return findOne[models.User](r.db.WithContext(ctx).
		Where("email = ? OR username = ?", normalizeEmail(identifier), identifier))
}

// SetVerificationToken stores a new verification digest, replacing any earlier one.
func (r *UserRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, digest string, expires time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"email_verification_token":   digest,
		"email_verification_expires": expires,
	}).Error
}

// ConsumeVerificationToken marks the owner of an unexpired digest as verified and
// clears the token in the same statement. It reports whether a row matched.
func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, digest string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email_verification_token = ? AND email_verification_expires > ?", digest, now).
		Updates(map[string]any{
			"is_email_verified":          true,
			"email_verification_token":   nil,
			"email_verification_expires": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, id uuid.UUID, digest string, expires time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"password_reset_token":   digest,
		"password_reset_expires": expires,
	}).Error
}

// ConsumeResetToken replaces the password of the owner of an unexpired digest and
// clears the token in the same statement. It reports whether a row matched.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, digest, passwordHash string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("password_reset_token = ? AND password_reset_expires > ?", digest, now).
		Updates(map[string]any{
			"password_hash":          passwordHash,
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *UserRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"last_seen": at, "last_activity": at}).Error
}

// List returns users newest first, including deactivated accounts.
func (r *UserRepository) List(ctx context.Context, page Page) ([]models.User, int64, error) {
	page = page.Normalize()
	var (
		users []models.User
		total int64
	)
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.WithContext(ctx).Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&users).Error
	return users, total, err
}

func (r *UserRepository) TopByReputation(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("reputation DESC, created_at ASC").
		Limit(Page{Limit: limit}.Normalize().Limit).
		Find(&users).Error
	return users, err
}

// SetActive activates or deactivates accounts. Users are never hard-deleted.
func (r *UserRepository) SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Update("is_active", active)
	return res.RowsAffected, res.Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
