package service

import (
	"context"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/notify"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReputationService struct {
	store  *repository.Store
	fanout notify.Fanout
	now    func() time.Time
}

func NewReputationService(store *repository.Store, fanout notify.Fanout) *ReputationService {
	return &ReputationService{store: store, fanout: fanout, now: utcNow}
}

func (s *ReputationService) SetClock(now func() time.Time) {
	s.now = now
}

// Award adds points to a user's reputation. A change that would drop the
// total below the floor fails with a validation error and nothing is saved.
func (s *ReputationService) Award(ctx context.Context, userID uuid.UUID, points int, reason string) (*models.User, error) {
	if points == 0 {
		return nil, nil
	}

	var updated *models.User
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		user, err := tx.Users.LockByID(ctx, userID)
		if err != nil {
			return apperr.Internal("Failed to load user", err)
		}
		if user == nil {
			return apperr.NotFound("User not found")
		}
		if err := ApplyReputation(user, points, reason, s.now()); err != nil {
			return err
		}
		if err := tx.Users.Save(ctx, user); err != nil {
			return apperr.Internal("Failed to save reputation", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Debug("Reputation changed",
		zap.String("user_id", userID.String()),
		zap.Int("points", points),
		zap.Int("reputation", updated.Reputation),
		zap.String("reason", reason),
	)
	s.fanout.DeliverToUser(ctx, userID, notify.NewNotification(notify.ReputationChange, reason, map[string]any{
		"points":     points,
		"reputation": updated.Reputation,
	}))
	return updated, nil
}

// awardQuietly applies a side-effect award. Failures, including the floor,
// are logged and never fail the triggering operation.
func (s *ReputationService) awardQuietly(ctx context.Context, userID uuid.UUID, points int, reason string) {
	if _, err := s.Award(ctx, userID, points, reason); err != nil {
		logger.Log.Warn("Reputation change skipped",
			zap.String("user_id", userID.String()),
			zap.Int("points", points),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}
