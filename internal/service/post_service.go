package service

import (
	"context"
	"strconv"
	"strings"
	"time"

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

type CreatePostInput struct {
	SpaceID uuid.UUID
	Title   string
	Body    string
	Mode    models.PostMode
	Tags    []string
}

// EditPostInput leaves fields that are nil unchanged.
type EditPostInput struct {
	Title  *string
	Body   *string
	Tags   []string
	Reason string
}

type ModerateInput struct {
	Status models.ContentStatus
	Notes  string
	Locked *bool
	Pinned *bool
}

const trendingWindow = 24 * time.Hour

func (s *ContentService) CreatePost(ctx context.Context, actor *models.User, in CreatePostInput) (*models.Post, error) {
	start := time.Now()
	title := s.sanitizer.Clean(in.Title)
	body := strings.TrimSpace(in.Body)

	if err := lengthBetween("Title", title, minTitle, maxTitle); err != nil {
		return nil, err
	}
	if err := lengthBetween("Content", body, minBody, maxBody); err != nil {
		return nil, err
	}
	if !in.Mode.Valid() {
		return nil, apperr.Validation("Mode must be question or discussion")
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	space, err := s.store.Spaces.FindByID(ctx, in.SpaceID)
	if err != nil {
		return nil, apperr.Internal("Failed to load space", err)
	}
	if space == nil || !space.IsActive {
		return nil, apperr.NotFound("Space not found")
	}
	if in.Mode == models.ModeQuestion && !space.AllowQuestions {
		return nil, apperr.Validation("This space does not allow questions")
	}
	if in.Mode == models.ModeDiscussion && !space.AllowDiscussions {
		return nil, apperr.Validation("This space does not allow discussions")
	}

	now := s.now()
	post := &models.Post{
		Title:        title,
		Body:         body,
		BodyHTML:     s.sanitizer.Render(body),
		Mode:         in.Mode,
		Status:       models.StatusActive,
		AuthorID:     actor.ID,
		SpaceID:      space.ID,
		Tags:         tags,
		EditHistory:  []models.EditEntry{},
		LastActivity: now,
		CreatedAt:    now,
	}
	post.HotScore = HotScore(0, now, now)

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Posts.Create(ctx, post); err != nil {
			return err
		}
		if err := tx.Spaces.Recount(ctx, space.ID); err != nil {
			return err
		}
		return tx.Spaces.TouchActivity(ctx, space.ID, now)
	})
	if err != nil {
		logger.Log.Error("Failed to create post", zap.String("author_id", actor.ID.String()), zap.Error(err))
		return nil, apperr.Internal("Failed to create post", err)
	}

	s.reputation.awardQuietly(ctx, actor.ID, PointsPostCreated, "Created a post")
	s.fanout.DeliverToRoom(ctx, notify.SpaceRoom(space.ID), notify.Event{
		Name: notify.EventPostUpdate,
		Data: map[string]any{"action": "created", "post": post},
	}, actor.ID)

	metrics.ObserveContentCreated("post")
	logger.Log.Info("Post created",
		zap.String("post_id", post.ID.String()),
		zap.String("space_id", space.ID.String()),
		zap.String("mode", string(post.Mode)),
		zap.Duration("total_duration", time.Since(start)),
	)
	return post, nil
}

// GetPost returns a visible post and counts the view. Deleted posts are
// only visible to their author and staff.
func (s *ContentService) GetPost(ctx context.Context, id uuid.UUID, viewer *models.User) (*models.Post, error) {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status == models.StatusDeleted && (viewer == nil || !canManage(viewer, post.AuthorID)) {
		return nil, apperr.NotFound("Post not found")
	}

	if err := s.store.Posts.IncrementViews(ctx, post.ID); err != nil {
		logger.Log.Warn("Failed to count post view", zap.String("post_id", post.ID.String()), zap.Error(err))
	} else {
		post.ViewCount++
	}
	return post, nil
}

// EditPost applies the edit and keeps a snapshot of the previous version.
func (s *ContentService) EditPost(ctx context.Context, actor *models.User, post *models.Post, in EditPostInput) (*models.Post, error) {
	if in.Title == nil && in.Body == nil && in.Tags == nil {
		return nil, apperr.Validation("Nothing to update")
	}

	var title, body string
	if in.Title != nil {
		title = s.sanitizer.Clean(*in.Title)
		if err := lengthBetween("Title", title, minTitle, maxTitle); err != nil {
			return nil, err
		}
	}
	if in.Body != nil {
		body = strings.TrimSpace(*in.Body)
		if err := lengthBetween("Content", body, minBody, maxBody); err != nil {
			return nil, err
		}
	}
	var tags []string
	if in.Tags != nil {
		var err error
		if tags, err = normalizeTags(in.Tags); err != nil {
			return nil, err
		}
	}

	var edited *models.Post
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := lockPost(ctx, tx, post.ID)
		if err != nil {
			return err
		}
		if current.Status == models.StatusDeleted {
			return apperr.Validation("Cannot edit a deleted post")
		}
		if current.IsLocked && !actor.Role.IsStaff() {
			return apperr.Authorization("Post is locked")
		}

		now := s.now()
		SnapshotPost(current, actor.ID, now, in.Reason)
		if in.Title != nil {
			current.Title = title
		}
		if in.Body != nil {
			current.Body = body
			current.BodyHTML = s.sanitizer.Render(body)
		}
		if in.Tags != nil {
			current.Tags = tags
		}
		current.LastActivity = now
		edited = current
		return tx.Posts.Save(ctx, current)
	})
	if err != nil {
		return nil, txFailure("Failed to save post", err)
	}

	s.fanout.DeliverToRoom(ctx, notify.PostRoom(edited.ID), notify.Event{
		Name: notify.EventPostUpdate,
		Data: map[string]any{"action": "edited", "post": edited},
	}, actor.ID)
	logger.Log.Info("Post edited", zap.String("post_id", edited.ID.String()), zap.Int("revisions", len(edited.EditHistory)))
	return edited, nil
}

func (s *ContentService) DeletePost(ctx context.Context, actor *models.User, post *models.Post) error {
	deleted, err := s.mutatePost(ctx, post.ID, func(current *models.Post) error {
		if current.Status == models.StatusDeleted {
			return apperr.Validation("Post is already deleted")
		}
		MarkDeleted(&current.SoftDelete, &current.Status, actor.ID, s.now())
		return nil
	})
	if err != nil {
		return err
	}

	s.record(audit.ActionSoftDelete, actor, deleted.AuthorID, "post", deleted.ID, "")
	s.fanout.DeliverToRoom(ctx, notify.SpaceRoom(deleted.SpaceID), notify.Event{
		Name: notify.EventPostUpdate,
		Data: map[string]any{"action": "deleted", "post_id": deleted.ID},
	}, uuid.Nil)
	logger.Log.Info("Post deleted", zap.String("post_id", deleted.ID.String()), zap.String("by", actor.ID.String()))
	return nil
}

func (s *ContentService) RestorePost(ctx context.Context, actor *models.User, post *models.Post) (*models.Post, error) {
	restored, err := s.mutatePost(ctx, post.ID, func(current *models.Post) error {
		if current.Status != models.StatusDeleted {
			return apperr.Validation("Post is not deleted")
		}
		Restore(&current.SoftDelete, &current.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(audit.ActionRestore, actor, restored.AuthorID, "post", restored.ID, "")
	logger.Log.Info("Post restored", zap.String("post_id", restored.ID.String()))
	return restored, nil
}

// mutatePost applies change to the locked post row, saves it and recounts
// the space, all in one transaction.
func (s *ContentService) mutatePost(ctx context.Context, id uuid.UUID, change func(*models.Post) error) (*models.Post, error) {
	var post *models.Post
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if post, err = lockPost(ctx, tx, id); err != nil {
			return err
		}
		if err := change(post); err != nil {
			return err
		}
		if err := tx.Posts.Save(ctx, post); err != nil {
			return err
		}
		return tx.Spaces.Recount(ctx, post.SpaceID)
	})
	if err != nil {
		return nil, txFailure("Failed to save post", err)
	}
	return post, nil
}

// ModeratePost changes status, notes, lock or pin. Global moderators and
// the moderators of the post's space may do this.
func (s *ContentService) ModeratePost(ctx context.Context, actor *models.User, postID uuid.UUID, in ModerateInput) (*models.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	space, err := s.store.Spaces.FindByID(ctx, post.SpaceID)
	if err != nil {
		return nil, apperr.Internal("Failed to load space", err)
	}
	if !actor.HasPermission(models.PermModerateContent) && (space == nil || !space.CanModerate(actor.ID)) {
		return nil, apperr.Authorization("You do not have permission to moderate this post")
	}
	if err := maxLength("Moderation notes", in.Notes, maxModerationNotes); err != nil {
		return nil, err
	}

	switch in.Status {
	case "", models.StatusActive, models.StatusClosed, models.StatusModerated, models.StatusDeleted:
	default:
		return nil, apperr.Validation("Invalid status")
	}

	post, err = s.mutatePost(ctx, post.ID, func(current *models.Post) error {
		switch in.Status {
		case models.StatusActive, models.StatusClosed, models.StatusModerated:
			if current.Status == models.StatusDeleted && in.Status == models.StatusActive {
				Restore(&current.SoftDelete, &current.Status)
			}
			current.Status = in.Status
		case models.StatusDeleted:
			if current.Status != models.StatusDeleted {
				MarkDeleted(&current.SoftDelete, &current.Status, actor.ID, s.now())
			}
		}
		if in.Notes != "" {
			current.ModerationNotes = in.Notes
		}
		if in.Locked != nil {
			current.IsLocked = *in.Locked
		}
		if in.Pinned != nil {
			current.IsPinned = *in.Pinned
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(audit.ActionModerate, actor, post.AuthorID, "post", post.ID, strings.TrimSpace(string(post.Status)+" "+in.Notes))
	if in.Locked != nil {
		s.record(audit.ActionLock, actor, post.AuthorID, "post", post.ID, strconv.FormatBool(*in.Locked))
	}
	if in.Pinned != nil {
		s.record(audit.ActionPin, actor, post.AuthorID, "post", post.ID, strconv.FormatBool(*in.Pinned))
	}
	if actor.ID != post.AuthorID {
		s.fanout.DeliverToUser(ctx, post.AuthorID, notify.NewNotification(notify.PostModerated,
			"A moderator updated your post", map[string]any{"post_id": post.ID, "status": post.Status}))
	}
	logger.Log.Info("Post moderated",
		zap.String("post_id", post.ID.String()),
		zap.String("status", string(post.Status)),
		zap.String("moderator_id", actor.ID.String()),
	)
	return post, nil
}

func (s *ContentService) ListPosts(ctx context.Context, filter repository.PostFilter, sort repository.PostSort, page repository.Page) ([]models.Post, int64, error) {
	posts, total, err := s.store.Posts.List(ctx, filter, sort, page)
	if err != nil {
		return nil, 0, apperr.Internal("Failed to list posts", err)
	}
	return posts, total, nil
}

// TrendingPosts returns posts from the last 24 hours by hot score.
func (s *ContentService) TrendingPosts(ctx context.Context, limit int) ([]models.Post, error) {
	since := s.now().Add(-trendingWindow)
	posts, _, err := s.store.Posts.List(ctx, repository.PostFilter{Since: &since}, repository.SortHot, repository.Page{Page: 1, Limit: limit})
	if err != nil {
		return nil, apperr.Internal("Failed to load trending posts", err)
	}
	return posts, nil
}
