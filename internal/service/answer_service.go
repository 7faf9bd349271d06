package service

import (
	"context"
	"strings"

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

var (
	ErrNotAQuestion = apperr.Validation("Answers can only be added to questions")
	ErrPostClosed   = apperr.Validation("Post is not accepting answers")
)

func (s *ContentService) CreateAnswer(ctx context.Context, actor *models.User, postID uuid.UUID, body string) (*models.Answer, error) {
	body = strings.TrimSpace(body)
	if err := lengthBetween("Content", body, minBody, maxBody); err != nil {
		return nil, err
	}

	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Mode != models.ModeQuestion {
		return nil, ErrNotAQuestion
	}
	if post.Status != models.StatusActive || post.IsLocked {
		return nil, ErrPostClosed
	}

	now := s.now()
	answer := &models.Answer{
		Body:        body,
		BodyHTML:    s.sanitizer.Render(body),
		PostID:      post.ID,
		AuthorID:    actor.ID,
		Status:      models.StatusActive,
		EditHistory: []models.EditEntry{},
		CreatedAt:   now,
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Answers.Create(ctx, answer); err != nil {
			return err
		}
		if _, err := tx.Posts.RecountAnswers(ctx, post.ID); err != nil {
			return err
		}
		return tx.Posts.TouchActivity(ctx, post.ID, now)
	})
	if err != nil {
		logger.Log.Error("Failed to create answer", zap.String("post_id", post.ID.String()), zap.Error(err))
		return nil, apperr.Internal("Failed to create answer", err)
	}

	s.reputation.awardQuietly(ctx, actor.ID, PointsAnswerCreated, "Posted an answer")
	if post.AuthorID != actor.ID {
		s.fanout.DeliverToUser(ctx, post.AuthorID, notify.NewNotification(notify.NewAnswer,
			"Your question has a new answer", map[string]any{"post_id": post.ID, "answer_id": answer.ID}))
	}
	s.fanout.DeliverToRoom(ctx, notify.PostRoom(post.ID), notify.Event{
		Name: notify.EventAnswerUpdate,
		Data: map[string]any{"action": "created", "answer": answer},
	}, actor.ID)

	metrics.ObserveContentCreated("answer")
	logger.Log.Info("Answer created", zap.String("answer_id", answer.ID.String()), zap.String("post_id", post.ID.String()))
	return answer, nil
}

// ListAnswers returns the active answers of a post, accepted answer first.
func (s *ContentService) ListAnswers(ctx context.Context, postID uuid.UUID, sort repository.AnswerSort, page repository.Page) ([]models.Answer, error) {
	if _, err := s.loadPost(ctx, postID); err != nil {
		return nil, err
	}
	answers, err := s.store.Answers.ListByPost(ctx, postID, sort, page)
	if err != nil {
		return nil, apperr.Internal("Failed to list answers", err)
	}
	return answers, nil
}

func (s *ContentService) EditAnswer(ctx context.Context, actor *models.User, answer *models.Answer, body, reason string) (*models.Answer, error) {
	body = strings.TrimSpace(body)
	if err := lengthBetween("Content", body, minBody, maxBody); err != nil {
		return nil, err
	}

	var edited *models.Answer
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := lockAnswer(ctx, tx, answer.ID)
		if err != nil {
			return err
		}
		if current.Status == models.StatusDeleted {
			return apperr.Validation("Cannot edit a deleted answer")
		}
		if current.IsLocked && !actor.Role.IsStaff() {
			return apperr.Authorization("Answer is locked")
		}
		SnapshotAnswer(current, actor.ID, s.now(), reason)
		current.Body = body
		current.BodyHTML = s.sanitizer.Render(body)
		edited = current
		return tx.Answers.Save(ctx, current)
	})
	if err != nil {
		return nil, txFailure("Failed to save answer", err)
	}

	s.fanout.DeliverToRoom(ctx, notify.PostRoom(edited.PostID), notify.Event{
		Name: notify.EventAnswerUpdate,
		Data: map[string]any{"action": "edited", "answer": edited},
	}, actor.ID)
	return edited, nil
}

// DeleteAnswer soft-deletes an answer. An accepted answer loses its
// acceptance along with the bonus its author was awarded for it.
func (s *ContentService) DeleteAnswer(ctx context.Context, actor *models.User, answer *models.Answer) error {
	var (
		deleted   *models.Answer
		bonusLost bool
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		post, err := tx.Posts.LockByID(ctx, answer.PostID)
		if err != nil {
			return err
		}
		if deleted, err = lockAnswer(ctx, tx, answer.ID); err != nil {
			return err
		}
		if deleted.Status == models.StatusDeleted {
			return apperr.Validation("Answer is already deleted")
		}
		if post != nil && post.AcceptedAnswerID != nil && *post.AcceptedAnswerID == deleted.ID {
			UnmarkAccepted(post, deleted)
			if err := tx.Posts.Save(ctx, post); err != nil {
				return err
			}
			bonusLost = deleted.AuthorID != post.AuthorID
		}
		MarkDeleted(&deleted.SoftDelete, &deleted.Status, actor.ID, s.now())
		if err := tx.Answers.Save(ctx, deleted); err != nil {
			return err
		}
		_, err = tx.Posts.RecountAnswers(ctx, deleted.PostID)
		return err
	})
	if err != nil {
		return txFailure("Failed to delete answer", err)
	}

	if bonusLost {
		s.reputation.awardQuietly(ctx, deleted.AuthorID, -PointsAnswerAccepted, "Accepted answer was deleted")
	}
	s.record(audit.ActionSoftDelete, actor, deleted.AuthorID, "answer", deleted.ID, "")
	s.fanout.DeliverToRoom(ctx, notify.PostRoom(deleted.PostID), notify.Event{
		Name: notify.EventAnswerUpdate,
		Data: map[string]any{"action": "deleted", "answer_id": deleted.ID},
	}, uuid.Nil)
	return nil
}

func (s *ContentService) RestoreAnswer(ctx context.Context, actor *models.User, answer *models.Answer) (*models.Answer, error) {
	var restored *models.Answer
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if restored, err = lockAnswer(ctx, tx, answer.ID); err != nil {
			return err
		}
		if restored.Status != models.StatusDeleted {
			return apperr.Validation("Answer is not deleted")
		}
		Restore(&restored.SoftDelete, &restored.Status)
		if err := tx.Answers.Save(ctx, restored); err != nil {
			return err
		}
		_, err = tx.Posts.RecountAnswers(ctx, restored.PostID)
		return err
	})
	if err != nil {
		return nil, txFailure("Failed to restore answer", err)
	}
	s.record(audit.ActionRestore, actor, restored.AuthorID, "answer", restored.ID, "")
	return restored, nil
}

// AcceptAnswer marks answerID as the accepted answer of postID. Only the
// question author or staff may accept. A previously accepted answer is
// unaccepted in the same transaction, so at most one answer is accepted.
func (s *ContentService) AcceptAnswer(ctx context.Context, actor *models.User, postID, answerID uuid.UUID) (*models.Answer, error) {
	var (
		accepted *models.Answer
		previous *models.Answer
		post     *models.Post
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if post, err = tx.Posts.LockByID(ctx, postID); err != nil {
			return apperr.Internal("Failed to load post", err)
		}
		if post == nil || post.Status == models.StatusDeleted {
			return apperr.NotFound("Post not found")
		}
		if post.Mode != models.ModeQuestion {
			return ErrNotAQuestion
		}
		if post.AuthorID != actor.ID && !actor.Role.IsStaff() {
			return apperr.Authorization("Only the question author can accept an answer")
		}

		if accepted, err = tx.Answers.LockByID(ctx, answerID); err != nil {
			return apperr.Internal("Failed to load answer", err)
		}
		if accepted == nil || accepted.PostID != post.ID || accepted.Status == models.StatusDeleted {
			return apperr.NotFound("Answer not found")
		}
		if accepted.IsAccepted {
			return apperr.Validation("Answer is already accepted")
		}

		if post.AcceptedAnswerID != nil {
			if previous, err = tx.Answers.LockByID(ctx, *post.AcceptedAnswerID); err != nil {
				return apperr.Internal("Failed to load answer", err)
			}
			if previous != nil {
				UnmarkAccepted(post, previous)
				if err := tx.Answers.Save(ctx, previous); err != nil {
					return apperr.Internal("Failed to save answer", err)
				}
			}
		}

		MarkAccepted(post, accepted, actor.ID, s.now())
		if err := tx.Answers.Save(ctx, accepted); err != nil {
			return apperr.Internal("Failed to save answer", err)
		}
		if err := tx.Posts.Save(ctx, post); err != nil {
			return apperr.Internal("Failed to save post", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previous != nil && previous.AuthorID != post.AuthorID {
		s.reputation.awardQuietly(ctx, previous.AuthorID, -PointsAnswerAccepted, "Answer was unaccepted")
	}
	if accepted.AuthorID != post.AuthorID {
		s.reputation.awardQuietly(ctx, accepted.AuthorID, PointsAnswerAccepted, "Answer was accepted")
		s.fanout.DeliverToUser(ctx, accepted.AuthorID, notify.NewNotification(notify.AnswerAccepted,
			"Your answer was accepted", map[string]any{"post_id": post.ID, "answer_id": accepted.ID}))
	}
	s.fanout.DeliverToRoom(ctx, notify.PostRoom(post.ID), notify.Event{
		Name: notify.EventAnswerUpdate,
		Data: map[string]any{"action": "accepted", "answer_id": accepted.ID},
	}, uuid.Nil)

	logger.Log.Info("Answer accepted",
		zap.String("post_id", post.ID.String()),
		zap.String("answer_id", accepted.ID.String()),
		zap.Bool("replaced_previous", previous != nil),
	)
	return accepted, nil
}

// UnacceptAnswer clears the accepted answer of postID.
func (s *ContentService) UnacceptAnswer(ctx context.Context, actor *models.User, postID uuid.UUID) error {
	var (
		previous *models.Answer
		post     *models.Post
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if post, err = tx.Posts.LockByID(ctx, postID); err != nil {
			return apperr.Internal("Failed to load post", err)
		}
		if post == nil || post.Status == models.StatusDeleted {
			return apperr.NotFound("Post not found")
		}
		if post.AuthorID != actor.ID && !actor.Role.IsStaff() {
			return apperr.Authorization("Only the question author can unaccept an answer")
		}
		if post.AcceptedAnswerID == nil {
			return apperr.Validation("Post has no accepted answer")
		}
		if previous, err = tx.Answers.LockByID(ctx, *post.AcceptedAnswerID); err != nil {
			return apperr.Internal("Failed to load answer", err)
		}
		UnmarkAccepted(post, previous)
		if previous != nil {
			if err := tx.Answers.Save(ctx, previous); err != nil {
				return apperr.Internal("Failed to save answer", err)
			}
		}
		if err := tx.Posts.Save(ctx, post); err != nil {
			return apperr.Internal("Failed to save post", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if previous != nil && previous.AuthorID != post.AuthorID {
		s.reputation.awardQuietly(ctx, previous.AuthorID, -PointsAnswerAccepted, "Answer was unaccepted")
	}
	s.fanout.DeliverToRoom(ctx, notify.PostRoom(post.ID), notify.Event{
		Name: notify.EventAnswerUpdate,
		Data: map[string]any{"action": "unaccepted", "post_id": post.ID},
	}, uuid.Nil)
	return nil
}

// ModerateAnswer locks or annotates an answer.
func (s *ContentService) ModerateAnswer(ctx context.Context, actor *models.User, answerID uuid.UUID, notes string, locked *bool) (*models.Answer, error) {
	if !actor.HasPermission(models.PermModerateContent) {
		if _, err := s.loadAnswer(ctx, answerID); err != nil {
			return nil, err
		}
		return nil, apperr.Authorization("You do not have permission to moderate this answer")
	}
	if err := maxLength("Moderation notes", notes, maxModerationNotes); err != nil {
		return nil, err
	}

	var answer *models.Answer
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if answer, err = lockAnswer(ctx, tx, answerID); err != nil {
			return err
		}
		if notes != "" {
			answer.ModerationNotes = notes
		}
		if locked != nil {
			answer.IsLocked = *locked
		}
		return tx.Answers.Save(ctx, answer)
	})
	if err != nil {
		return nil, txFailure("Failed to save answer", err)
	}
	s.record(audit.ActionModerate, actor, answer.AuthorID, "answer", answer.ID, notes)
	return answer, nil
}
