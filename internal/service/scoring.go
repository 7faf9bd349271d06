package service

import (
	"math"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/google/uuid"
)

// Reputation awarded per event.
const (
	PointsPostUpvoted     = 10
	PointsPostDownvoted   = -2
	PointsAnswerUpvoted   = 15
	PointsAnswerDownvoted = -2
	PointsAnswerAccepted  = 15
	PointsPostCreated     = 5
	PointsAnswerCreated   = 2
	PointsCommentCreated  = 1
)

// hotScoreAgeDivisor converts age in hours into the score's recency term.
const hotScoreAgeDivisor = 45000.0

// ApplyTally turns ledger counts into the derived counters.
func ApplyTally(counts repository.VoteCounts) models.VoteTally {
	return models.VoteTally{
		VoteCount:     counts.Total,
		UpvoteCount:   counts.Up,
		DownvoteCount: counts.Down,
		Score:         counts.Up - counts.Down,
	}
}

// HotScore is log10(max(|score|, 1)) plus the age in hours over 45000.
func HotScore(score int, createdAt, now time.Time) float64 {
	magnitude := math.Max(math.Abs(float64(score)), 1)
	ageHours := now.Sub(createdAt).Hours()
	return math.Log10(magnitude) + ageHours/hotScoreAgeDivisor
}

// votePoints is the reputation a single vote is worth to the content author.
func votePoints(target models.VoteTarget, value int) int {
	switch {
	case value > 0 && target == models.TargetPost:
		return PointsPostUpvoted
	case value > 0 && target == models.TargetAnswer:
		return PointsAnswerUpvoted
	case value < 0 && target == models.TargetPost:
		return PointsPostDownvoted
	case value < 0 && target == models.TargetAnswer:
		return PointsAnswerDownvoted
	}
	return 0
}

// VoteReputationDelta is the change in the author's reputation when a voter
// moves from previous to next (either may be 0 for no vote).
func VoteReputationDelta(target models.VoteTarget, previous, next int) int {
	return votePoints(target, next) - votePoints(target, previous)
}

// MarkAccepted flags answer as the accepted answer of post.
func MarkAccepted(post *models.Post, answer *models.Answer, by uuid.UUID, at time.Time) {
	id := answer.ID
	post.IsAnswered = true
	post.AcceptedAnswerID = &id

	answer.IsAccepted = true
	answer.AcceptedAt = &at
	answer.AcceptedBy = &by
}

// UnmarkAccepted clears the acceptance on both sides.
func UnmarkAccepted(post *models.Post, answer *models.Answer) {
	post.IsAnswered = false
	post.AcceptedAnswerID = nil

	if answer != nil {
		answer.IsAccepted = false
		answer.AcceptedAt = nil
		answer.AcceptedBy = nil
	}
}

// AppendReputation adds entry and evicts the oldest entries beyond the cap.
func AppendReputation(history []models.ReputationEntry, entry models.ReputationEntry) []models.ReputationEntry {
	return appendCapped(history, entry, models.MaxReputationHistory)
}

// AppendEdit adds a pre-edit snapshot and evicts the oldest beyond the cap.
func AppendEdit(history []models.EditEntry, entry models.EditEntry) []models.EditEntry {
	return appendCapped(history, entry, models.MaxEditHistory)
}

func appendCapped[T any](history []T, entry T, limit int) []T {
	out := make([]T, 0, min(len(history)+1, limit))
	if skip := len(history) + 1 - limit; skip > 0 {
		history = history[skip:]
	}
	out = append(out, history...)
	return append(out, entry)
}

// ApplyReputation adds points to the user's total and history. A change that
// would take the total below the floor is rejected and leaves u untouched.
func ApplyReputation(u *models.User, points int, reason string, at time.Time) error {
	next := u.Reputation + points
	if next < models.MinReputation {
		return apperr.Validationf("Reputation cannot fall below %d", models.MinReputation)
	}
	u.Reputation = next
	u.ReputationHistory = AppendReputation(u.ReputationHistory, models.ReputationEntry{
		Points:    points,
		Reason:    reason,
		Timestamp: at,
	})
	return u.Validate()
}

// SnapshotPost records the current title, body and tags before an edit.
func SnapshotPost(p *models.Post, by uuid.UUID, at time.Time, reason string) {
	p.EditHistory = AppendEdit(p.EditHistory, models.EditEntry{
		Title:    p.Title,
		Body:     p.Body,
		Tags:     append([]string(nil), p.Tags...),
		EditedBy: by,
		EditedAt: at,
		Reason:   reason,
	})
	p.LastEditedAt = &at
	p.LastEditedBy = &by
}

// SnapshotAnswer records the current body before an edit.
func SnapshotAnswer(a *models.Answer, by uuid.UUID, at time.Time, reason string) {
	a.EditHistory = AppendEdit(a.EditHistory, models.EditEntry{
		Body:     a.Body,
		EditedBy: by,
		EditedAt: at,
		Reason:   reason,
	})
	a.LastEditedAt = &at
	a.LastEditedBy = &by
}

// MarkDeleted soft-deletes content.
func MarkDeleted(sd *models.SoftDelete, status *models.ContentStatus, by uuid.UUID, at time.Time) {
	sd.DeletedAt = &at
	sd.DeletedBy = &by
	*status = models.StatusDeleted
}

// Restore undoes MarkDeleted.
func Restore(sd *models.SoftDelete, status *models.ContentStatus) {
	sd.DeletedAt = nil
	sd.DeletedBy = nil
	*status = models.StatusActive
}

// ActivityScore ranks spaces for the trending list.
func ActivityScore(s *models.Space, views int) float64 {
	return float64(s.MemberCount)*0.1 + float64(s.PostCount)*0.5 + float64(views)*0.01
}
