package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/utils"
	"gorm.io/gorm"
)

// TestPassword is the password of every fixture user.
const TestPassword = "Test123456"

// fastHash keeps fixture hashing cheap; VerifyPassword reads the parameters
// back from the hash.
var fastHash = utils.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

// CreateTestUser inserts an active, verified user with TestPassword.
func CreateTestUser(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	hash, err := utils.HashPasswordWith(TestPassword, fastHash)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	now := time.Now().UTC()
	user := &models.User{
		Email:             strings.ToLower(username) + "@example.com",
		Username:          username,
		PasswordHash:      hash,
		DisplayName:       username,
		Role:              role,
		Permissions:       models.DefaultPermissions(role),
		Reputation:        models.MinReputation,
		ReputationHistory: []models.ReputationEntry{},
		IsActive:          true,
		IsEmailVerified:   true,
		LastSeen:          now,
		LastActivity:      now,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

// CreateTestSpace inserts a public space that allows both post modes.
func CreateTestSpace(t *testing.T, db *gorm.DB, owner *models.User, name string) *models.Space {
	t.Helper()
	space := &models.Space{
		Name:             name,
		Slug:             strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		IsPublic:         true,
		IsActive:         true,
		AllowQuestions:   true,
		AllowDiscussions: true,
		OwnerUserID:      owner.ID,
		Moderators:       []models.SpaceModerator{},
		LastActivity:     time.Now().UTC(),
	}
	if err := db.Create(space).Error; err != nil {
		t.Fatalf("Failed to create space %s: %v", name, err)
	}
	member := &models.SpaceMember{SpaceID: space.ID, UserID: owner.ID, JoinedAt: time.Now().UTC()}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("Failed to add space owner: %v", err)
	}
	return space
}

// CreateTestPost inserts an active post directly, bypassing the service.
func CreateTestPost(t *testing.T, db *gorm.DB, author *models.User, space *models.Space, mode models.PostMode) *models.Post {
	t.Helper()
	now := time.Now().UTC()
	post := &models.Post{
		Title:        "How do I test a gorm repository?",
		Body:         "I would like to run repository tests without a database server.",
		Mode:         mode,
		Status:       models.StatusActive,
		AuthorID:     author.ID,
		SpaceID:      space.ID,
		Tags:         []string{"go", "testing"},
		EditHistory:  []models.EditEntry{},
		LastActivity: now,
		CreatedAt:    now,
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("Failed to create post: %v", err)
	}
	return post
}

// CreateTestAnswer inserts an active answer on post.
func CreateTestAnswer(t *testing.T, db *gorm.DB, author *models.User, post *models.Post) *models.Answer {
	t.Helper()
	answer := &models.Answer{
		Body:        "Use an in-memory SQLite database with a private DSN per test.",
		PostID:      post.ID,
		AuthorID:    author.ID,
		Status:      models.StatusActive,
		EditHistory: []models.EditEntry{},
	}
	if err := db.Create(answer).Error; err != nil {
		t.Fatalf("Failed to create answer: %v", err)
	}
	return answer
}
