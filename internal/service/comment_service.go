package service

import (
	"context"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/audit"
	"github.com/Baaaki/agora/internal/metrics"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/notify"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommentTarget names what a comment is attached to. Exactly one of the
// ids is set.
type CommentTarget struct {
	PostID   *uuid.UUID
	AnswerID *uuid.UUID
}

func (s *ContentService) CreateComment(ctx context.Context, actor *models.User, target CommentTarget, body string) (*models.Comment, error) {
	if (target.PostID == nil) == (target.AnswerID == nil) {
		return nil, apperr.Validation("A comment belongs to either a post or an answer")
	}
	body = s.sanitizer.Clean(body)
	if err := lengthBetween("Comment", body, minComment, maxComment); err != nil {
		return nil, err
	}

	// Resolve the post the comment lives under and whose author is notified.
	var (
		post      *models.Post
		recipient uuid.UUID
		answerID  uuid.UUID
		err       error
	)
	if target.AnswerID != nil {
		answer, err := s.loadAnswer(ctx, *target.AnswerID)
		if err != nil {
			return nil, err
		}
		if answer.Status == models.StatusDeleted {
			return nil, apperr.NotFound("Answer not found")
		}
		answerID = answer.ID
		recipient = answer.AuthorID
		if post, err = s.loadPost(ctx, answer.PostID); err != nil {
			return nil, err
		}
	} else {
		if post, err = s.loadPost(ctx, *target.PostID); err != nil {
			return nil, err
		}
		recipient = post.AuthorID
	}
	if post.Status == models.StatusDeleted {
		return nil, apperr.NotFound("Post not found")
	}
	if post.IsLocked {
		return nil, apperr.Validation("Post is locked")
	}

	comment := &models.Comment{
		Body:      body,
		AuthorID:  actor.ID,
		PostID:    target.PostID,
		AnswerID:  target.AnswerID,
		Status:    models.StatusActive,
		CreatedAt: s.now(),
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Comments.Create(ctx, comment); err != nil {
			return err
		}
		return s.recountComments(ctx, tx, comment)
	})
	if err != nil {
		logger.Log.Error("Failed to create comment", zap.String("post_id", post.ID.String()), zap.Error(err))
		return nil, apperr.Internal("Failed to create comment", err)
	}

	s.reputation.awardQuietly(ctx, actor.ID, PointsCommentCreated, "Posted a comment")
	if recipient != actor.ID {
		data := map[string]any{"post_id": post.ID, "comment_id": comment.ID}
		if answerID != uuid.Nil {
			data["answer_id"] = answerID
		}
		s.fanout.DeliverToUser(ctx, recipient, notify.NewNotification(notify.NewComment, "New comment on your content", data))
	}
	s.fanout.DeliverToRoom(ctx, notify.PostRoom(post.ID), notify.Event{
		Name: notify.EventCommentUpdate,
		Data: map[string]any{"action": "created", "comment": comment},
	}, actor.ID)

	metrics.ObserveContentCreated("comment")
	return comment, nil
}

func (s *ContentService) recountComments(ctx context.Context, tx *repository.Store, c *models.Comment) error {
	if c.AnswerID != nil {
		_, err := tx.Answers.RecountComments(ctx, *c.AnswerID)
		return err
	}
	_, err := tx.Posts.RecountComments(ctx, *c.PostID)
	return err
}

func (s *ContentService) ListComments(ctx context.Context, target CommentTarget, page repository.Page) ([]models.Comment, error) {
	var (
		comments []models.Comment
		err      error
	)
	switch {
	case target.AnswerID != nil:
		comments, err = s.store.Comments.ListByAnswer(ctx, *target.AnswerID, page)
	case target.PostID != nil:
		comments, err = s.store.Comments.ListByPost(ctx, *target.PostID, page)
	default:
		return nil, apperr.Validation("A comment belongs to either a post or an answer")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to list comments", err)
	}
	return comments, nil
}

func (s *ContentService) DeleteComment(ctx context.Context, actor *models.User, comment *models.Comment) error {
	if comment.Status == models.StatusDeleted {
		return apperr.Validation("Comment is already deleted")
	}
	MarkDeleted(&comment.SoftDelete, &comment.Status, actor.ID, s.now())
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Comments.Save(ctx, comment); err != nil {
			return err
		}
		return s.recountComments(ctx, tx, comment)
	})
	if err != nil {
		return apperr.Internal("Failed to delete comment", err)
	}
	s.record(audit.ActionSoftDelete, actor, comment.AuthorID, "comment", comment.ID, "")
	return nil
}
