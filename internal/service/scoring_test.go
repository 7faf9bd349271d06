package service

import (
	"math"
	"testing"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTally(t *testing.T) {
	tally := ApplyTally(repository.VoteCounts{Total: 9, Up: 7, Down: 2})

	assert.Equal(t, models.VoteTally{VoteCount: 9, UpvoteCount: 7, DownvoteCount: 2, Score: 5}, tally)
}

func TestHotScore(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		score int
		age   time.Duration
		want  float64
	}{
		{"new post", 0, 0, 0},
		{"score magnitude", 100, 0, 2},
		{"negative uses magnitude", -10, 0, 1},
		{"age term", 1, 45000 * time.Hour, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HotScore(tt.score, created, created.Add(tt.age))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestVoteReputationDelta(t *testing.T) {
	tests := []struct {
		name     string
		target   models.VoteTarget
		previous int
		next     int
		want     int
	}{
		{"new post upvote", models.TargetPost, 0, 1, 10},
		{"new answer upvote", models.TargetAnswer, 0, 1, 15},
		{"post downvote", models.TargetPost, 0, -1, -2},
		{"flip post up to down", models.TargetPost, 1, -1, -12},
		{"flip answer down to up", models.TargetAnswer, -1, 1, 17},
		{"withdraw upvote", models.TargetAnswer, 1, 0, -15},
		{"withdraw downvote", models.TargetPost, -1, 0, 2},
		{"no change", models.TargetPost, 1, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VoteReputationDelta(tt.target, tt.previous, tt.next))
		})
	}
}

func TestAppendCapped_EvictsOldest(t *testing.T) {
	var history []int
	for i := 0; i < 15; i++ {
		history = appendCapped(history, i, 10)
	}

	assert.Len(t, history, 10)
	assert.Equal(t, 5, history[0])
	assert.Equal(t, 14, history[9])
}

func TestApplyReputation_Floor(t *testing.T) {
	at := time.Now().UTC()
	u := &models.User{Username: "floor", Role: models.RoleUser, Reputation: 3}

	require.NoError(t, ApplyReputation(u, -2, "Downvoted", at))
	assert.Equal(t, 1, u.Reputation)

	err := ApplyReputation(u, -2, "Downvoted", at)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, 1, u.Reputation, "a rejected change leaves the user untouched")
	assert.Len(t, u.ReputationHistory, 1)
}

func TestMarkAndUnmarkAccepted(t *testing.T) {
	post := &models.Post{ID: uuid.New()}
	answer := &models.Answer{ID: uuid.New(), PostID: post.ID}
	by := uuid.New()
	at := time.Now().UTC()

	MarkAccepted(post, answer, by, at)

	assert.True(t, post.IsAnswered)
	assert.Equal(t, answer.ID, *post.AcceptedAnswerID)
	assert.True(t, answer.IsAccepted)
	assert.Equal(t, by, *answer.AcceptedBy)

	UnmarkAccepted(post, answer)

	assert.False(t, post.IsAnswered)
	assert.Nil(t, post.AcceptedAnswerID)
	assert.False(t, answer.IsAccepted)
	assert.Nil(t, answer.AcceptedAt)
	assert.Nil(t, answer.AcceptedBy)
}

func TestNormalizeTags(t *testing.T) {
	got, err := normalizeTags([]string{" Go ", "go", "", "Testing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "testing"}, got)

	_, err = normalizeTags([]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Go Programming":    "go-programming",
		"  C++ & Rust  ":    "c-rust",
		"Machine--Learning": "machine-learning",
		"???":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestActivityScore(t *testing.T) {
	space := &models.Space{MemberCount: 10, PostCount: 4}

	assert.True(t, math.Abs(ActivityScore(space, 100)-4.0) < 1e-9)
}
