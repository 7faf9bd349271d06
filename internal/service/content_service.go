package service

import (
	"context"
	"errors"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/audit"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/notify"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContentService owns posts, answers, comments and votes, and keeps their
// derived counters in step with the source tables.
type ContentService struct {
	store      *repository.Store
	reputation *ReputationService
	fanout     notify.Fanout
	audit      audit.Recorder
	sanitizer  *utils.Sanitizer
	now        func() time.Time
}

func NewContentService(store *repository.Store, reputation *ReputationService, fanout notify.Fanout, recorder audit.Recorder, sanitizer *utils.Sanitizer) *ContentService {
	return &ContentService{
		store:      store,
		reputation: reputation,
		fanout:     fanout,
		audit:      recorder,
		sanitizer:  sanitizer,
		now:        utcNow,
	}
}

func (s *ContentService) SetClock(now func() time.Time) {
	s.now = now
}

// canManage reports whether actor may change content owned by ownerID.
func canManage(actor *models.User, ownerID uuid.UUID) bool {
	return actor.Role.IsStaff() || actor.ID == ownerID
}

// record writes a moderation entry. Authors deleting or restoring their own
// content are not recorded.
func (s *ContentService) record(action audit.Action, actor *models.User, ownerID uuid.UUID, targetType string, targetID uuid.UUID, detail string) {
	if actor.ID == ownerID && (action == audit.ActionSoftDelete || action == audit.ActionRestore) {
		return
	}
	err := s.audit.Record(audit.Entry{
		Action:     action,
		ActorID:    actor.ID,
		TargetType: targetType,
		TargetID:   targetID.String(),
		Detail:     detail,
		Timestamp:  s.now(),
	})
	if err != nil {
		logger.Log.Error("Failed to record moderation action", zap.String("action", string(action)), zap.Error(err))
	}
}

func (s *ContentService) loadPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	post, err := s.store.Posts.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load post", err)
	}
	if post == nil {
		return nil, apperr.NotFound("Post not found")
	}
	return post, nil
}

func (s *ContentService) loadAnswer(ctx context.Context, id uuid.UUID) (*models.Answer, error) {
	answer, err := s.store.Answers.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load answer", err)
	}
	if answer == nil {
		return nil, apperr.NotFound("Answer not found")
	}
	return answer, nil
}

// lockPost reloads a post inside tx and holds its row lock, so the write
// that follows starts from the committed row rather than an earlier copy.
func lockPost(ctx context.Context, tx *repository.Store, id uuid.UUID) (*models.Post, error) {
	post, err := tx.Posts.LockByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load post", err)
	}
	if post == nil {
		return nil, apperr.NotFound("Post not found")
	}
	return post, nil
}

func lockAnswer(ctx context.Context, tx *repository.Store, id uuid.UUID) (*models.Answer, error) {
	answer, err := tx.Answers.LockByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load answer", err)
	}
	if answer == nil {
		return nil, apperr.NotFound("Answer not found")
	}
	return answer, nil
}

// txFailure keeps client errors raised inside a transaction and wraps
// anything else as an internal failure.
func txFailure(msg string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.Internal(msg, err)
}

// FindPost returns a post in any status; used by ownership checks.
func (s *ContentService) FindPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.store.Posts.FindByID(ctx, id)
}

func (s *ContentService) FindAnswer(ctx context.Context, id uuid.UUID) (*models.Answer, error) {
	return s.store.Answers.FindByID(ctx, id)
}

func (s *ContentService) FindComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return s.store.Comments.FindByID(ctx, id)
}
