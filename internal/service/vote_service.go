package service

import (
	"context"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/metrics"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/notify"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidVote = apperr.Validation("Vote must be -1, 0 or 1")
	ErrSelfVote    = apperr.Validation("You cannot vote on your own content")
)

// VoteResult is the tally after a vote together with the caller's vote.
type VoteResult struct {
	TargetID uuid.UUID        `json:"target_id"`
	Tally    models.VoteTally `json:"tally"`
	HotScore float64          `json:"hot_score,omitempty"`
	UserVote int              `json:"user_vote"`
}

// votedEntity is what a vote needs to know about the entity it lands on.
type votedEntity struct {
	authorID uuid.UUID
	postID   uuid.UUID
}

// VotePost records the caller's vote on a post. A value of 0 withdraws it.
func (s *ContentService) VotePost(ctx context.Context, actor *models.User, postID uuid.UUID, value int) (*VoteResult, error) {
	return s.vote(ctx, actor, models.TargetPost, postID, value, func(tx *repository.Store) (votedEntity, func(models.VoteTally) (float64, error), error) {
		post, err := tx.Posts.LockByID(ctx, postID)
		if err != nil {
			return votedEntity{}, nil, apperr.Internal("Failed to load post", err)
		}
		if post == nil || post.Status == models.StatusDeleted {
			return votedEntity{}, nil, apperr.NotFound("Post not found")
		}
		if post.IsLocked {
			return votedEntity{}, nil, apperr.Validation("Post is locked")
		}
		write := func(tally models.VoteTally) (float64, error) {
			hot := HotScore(tally.Score, post.CreatedAt, s.now())
			return hot, tx.Posts.UpdateTally(ctx, post.ID, tally, hot)
		}
		return votedEntity{authorID: post.AuthorID, postID: post.ID}, write, nil
	})
}

// VoteAnswer records the caller's vote on an answer. A value of 0 withdraws it.
func (s *ContentService) VoteAnswer(ctx context.Context, actor *models.User, answerID uuid.UUID, value int) (*VoteResult, error) {
	return s.vote(ctx, actor, models.TargetAnswer, answerID, value, func(tx *repository.Store) (votedEntity, func(models.VoteTally) (float64, error), error) {
		answer, err := tx.Answers.LockByID(ctx, answerID)
		if err != nil {
			return votedEntity{}, nil, apperr.Internal("Failed to load answer", err)
		}
		if answer == nil || answer.Status == models.StatusDeleted {
			return votedEntity{}, nil, apperr.NotFound("Answer not found")
		}
		if answer.IsLocked {
			return votedEntity{}, nil, apperr.Validation("Answer is locked")
		}
		write := func(tally models.VoteTally) (float64, error) {
			return 0, tx.Answers.UpdateTally(ctx, answer.ID, tally)
		}
		return votedEntity{authorID: answer.AuthorID, postID: answer.PostID}, write, nil
	})
}

// vote changes the ledger and recomputes the entity's counters from it while
// the entity row is locked, so concurrent votes on one entity are serialized.
// Reputation and notifications follow the commit.
func (s *ContentService) vote(
	ctx context.Context,
	actor *models.User,
	target models.VoteTarget,
	targetID uuid.UUID,
	value int,
	lock func(tx *repository.Store) (votedEntity, func(models.VoteTally) (float64, error), error),
) (*VoteResult, error) {
	if value < -1 || value > 1 {
		return nil, ErrInvalidVote
	}

	var (
		entity   votedEntity
		previous int
		result   = &VoteResult{TargetID: targetID, UserVote: value}
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var (
			write func(models.VoteTally) (float64, error)
			err   error
		)
		if entity, write, err = lock(tx); err != nil {
			return err
		}
		if entity.authorID == actor.ID {
			return ErrSelfVote
		}

		existing, err := tx.Votes.Find(ctx, actor.ID, target, targetID)
		if err != nil {
			return apperr.Internal("Failed to load vote", err)
		}
		if existing != nil {
			previous = existing.Value
		}
		if err := tx.Votes.Put(ctx, existing, actor.ID, target, targetID, value); err != nil {
			return apperr.Internal("Failed to save vote", err)
		}

		counts, err := tx.Votes.Tally(ctx, target, targetID)
		if err != nil {
			return apperr.Internal("Failed to count votes", err)
		}
		result.Tally = ApplyTally(counts)
		if result.HotScore, err = write(result.Tally); err != nil {
			return apperr.Internal("Failed to save vote counts", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveVote(string(target), value)
	if previous == value {
		return result, nil
	}

	if delta := VoteReputationDelta(target, previous, value); delta != 0 {
		s.reputation.awardQuietly(ctx, entity.authorID, delta, "Vote on your "+string(target))
	}
	if value != 0 {
		typ := notify.PostVoted
		if target == models.TargetAnswer {
			typ = notify.AnswerVoted
		}
		s.fanout.DeliverToUser(ctx, entity.authorID, notify.NewNotification(typ, "Your "+string(target)+" received a vote",
			map[string]any{"target_id": targetID, "value": value, "score": result.Tally.Score}))
	}
	s.fanout.DeliverToRoom(ctx, notify.PostRoom(entity.postID), notify.Event{
		Name: notify.EventVoteUpdate,
		Data: map[string]any{"target": target, "target_id": targetID, "tally": result.Tally},
	}, actor.ID)

	logger.Log.Debug("Vote recorded",
		zap.String("target", string(target)),
		zap.String("target_id", targetID.String()),
		zap.Int("previous", previous),
		zap.Int("value", value),
		zap.Int("score", result.Tally.Score),
	)
	return result, nil
}

// UserVotes returns the caller's current votes on the given targets.
func (s *ContentService) UserVotes(ctx context.Context, userID uuid.UUID, target models.VoteTarget, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	votes, err := s.store.Votes.ValuesFor(ctx, userID, target, ids)
	if err != nil {
		return nil, apperr.Internal("Failed to load votes", err)
	}
	return votes, nil
}
