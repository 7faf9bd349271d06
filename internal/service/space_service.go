package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/notify"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrSpaceExists = apperr.Conflict("A space with this name already exists")

type SpaceInput struct {
	Name             string
	Description      string
	Rules            string
	IsPublic         bool
	AllowQuestions   bool
	AllowDiscussions bool
}

// SpaceUpdate leaves nil fields unchanged.
type SpaceUpdate struct {
	Description      *string
	Rules            *string
	IsPublic         *bool
	AllowQuestions   *bool
	AllowDiscussions *bool
}

// SpaceActivity is a space with its trending score.
type SpaceActivity struct {
	models.Space
	ActivityScore float64 `json:"activity_score"`
}

type SpaceService struct {
	store     *repository.Store
	fanout    notify.Fanout
	sanitizer *utils.Sanitizer
	now       func() time.Time
}

func NewSpaceService(store *repository.Store, fanout notify.Fanout, sanitizer *utils.Sanitizer) *SpaceService {
	return &SpaceService{store: store, fanout: fanout, sanitizer: sanitizer, now: utcNow}
}

func (s *SpaceService) SetClock(now func() time.Time) {
	s.now = now
}

// Create makes actor the owner and first member of a new space.
func (s *SpaceService) Create(ctx context.Context, actor *models.User, in SpaceInput) (*models.Space, error) {
	name := s.sanitizer.Clean(in.Name)
	if err := lengthBetween("Space name", name, minSpaceName, maxSpaceName); err != nil {
		return nil, err
	}
	if err := maxLength("Description", in.Description, maxSpaceDescription); err != nil {
		return nil, err
	}
	if err := maxLength("Rules", in.Rules, maxSpaceRules); err != nil {
		return nil, err
	}
	if !in.AllowQuestions && !in.AllowDiscussions {
		return nil, apperr.Validation("A space must allow questions or discussions")
	}
	slug := Slugify(name)
	if slug == "" {
		return nil, apperr.Validation("Space name must contain letters or numbers")
	}

	exists, err := s.store.Spaces.ExistsByNameOrSlug(ctx, name, slug, uuid.Nil)
	if err != nil {
		return nil, apperr.Internal("Failed to check space name", err)
	}
	if exists {
		return nil, ErrSpaceExists
	}

	now := s.now()
	space := &models.Space{
		Name:             name,
		Slug:             slug,
		Description:      s.sanitizer.Clean(in.Description),
		Rules:            s.sanitizer.Clean(in.Rules),
		IsPublic:         in.IsPublic,
		IsActive:         true,
		AllowQuestions:   in.AllowQuestions,
		AllowDiscussions: in.AllowDiscussions,
		OwnerUserID:      actor.ID,
		Moderators:       []models.SpaceModerator{},
		LastActivity:     now,
		CreatedAt:        now,
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Spaces.Create(ctx, space); err != nil {
			return err
		}
		if _, err := tx.Spaces.AddMember(ctx, space.ID, actor.ID, now); err != nil {
			return err
		}
		return tx.Spaces.Recount(ctx, space.ID)
	})
	if repository.IsDuplicate(err) {
		return nil, ErrSpaceExists
	}
	if err != nil {
		return nil, apperr.Internal("Failed to create space", err)
	}
	space.MemberCount = 1

	logger.Log.Info("Space created", zap.String("space_id", space.ID.String()), zap.String("slug", slug))
	return space, nil
}

// Get looks a space up by slug. Private and inactive spaces are only
// visible to members and staff.
func (s *SpaceService) Get(ctx context.Context, slug string, viewer *models.User) (*models.Space, error) {
	space, err := s.store.Spaces.FindBySlug(ctx, strings.ToLower(slug))
	if err != nil {
		return nil, apperr.Internal("Failed to load space", err)
	}
	if space == nil {
		return nil, apperr.NotFound("Space not found")
	}
	visible, err := s.CanView(ctx, space, viewer)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, apperr.NotFound("Space not found")
	}
	return space, nil
}

// CanView reports whether viewer (nil for anonymous) may see the space.
func (s *SpaceService) CanView(ctx context.Context, space *models.Space, viewer *models.User) (bool, error) {
	if space.IsPublic && space.IsActive {
		return true, nil
	}
	if viewer == nil {
		return false, nil
	}
	if viewer.Role.IsStaff() || space.CanModerate(viewer.ID) {
		return true, nil
	}
	if !space.IsActive {
		return false, nil
	}
	member, err := s.store.Spaces.IsMember(ctx, space.ID, viewer.ID)
	if err != nil {
		return false, apperr.Internal("Failed to check membership", err)
	}
	return member, nil
}

func (s *SpaceService) load(ctx context.Context, id uuid.UUID) (*models.Space, error) {
	space, err := s.store.Spaces.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load space", err)
	}
	if space == nil {
		return nil, apperr.NotFound("Space not found")
	}
	return space, nil
}

// FindSpace returns a space by id, or nil; used by ownership checks.
func (s *SpaceService) FindSpace(ctx context.Context, id uuid.UUID) (*models.Space, error) {
	return s.store.Spaces.FindByID(ctx, id)
}

func (s *SpaceService) ListPublic(ctx context.Context, page repository.Page) ([]models.Space, int64, error) {
	spaces, total, err := s.store.Spaces.ListPublic(ctx, page)
	if err != nil {
		return nil, 0, apperr.Internal("Failed to list spaces", err)
	}
	return spaces, total, nil
}

// Trending ranks public spaces by members, posts and post views.
func (s *SpaceService) Trending(ctx context.Context, limit int) ([]SpaceActivity, error) {
	spaces, _, err := s.store.Spaces.ListPublic(ctx, repository.Page{Page: 1, Limit: repository.MaxPageSize})
	if err != nil {
		return nil, apperr.Internal("Failed to list spaces", err)
	}
	ids := make([]uuid.UUID, len(spaces))
	for i := range spaces {
		ids[i] = spaces[i].ID
	}
	views, err := s.store.Spaces.ViewTotals(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("Failed to load space views", err)
	}

	ranked := make([]SpaceActivity, len(spaces))
	for i := range spaces {
		ranked[i] = SpaceActivity{Space: spaces[i], ActivityScore: ActivityScore(&spaces[i], views[spaces[i].ID])}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ActivityScore > ranked[j].ActivityScore
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Update changes a space's settings. The owner and space managers may do this.
func (s *SpaceService) Update(ctx context.Context, actor *models.User, space *models.Space, in SpaceUpdate) (*models.Space, error) {
	if space.OwnerUserID != actor.ID && !actor.HasPermission(models.PermManageSpaces) {
		return nil, apperr.Authorization("Only the space owner can update this space")
	}
	if in.Description != nil {
		if err := maxLength("Description", *in.Description, maxSpaceDescription); err != nil {
			return nil, err
		}
		space.Description = s.sanitizer.Clean(*in.Description)
	}
	if in.Rules != nil {
		if err := maxLength("Rules", *in.Rules, maxSpaceRules); err != nil {
			return nil, err
		}
		space.Rules = s.sanitizer.Clean(*in.Rules)
	}
	if in.IsPublic != nil {
		space.IsPublic = *in.IsPublic
	}
	if in.AllowQuestions != nil {
		space.AllowQuestions = *in.AllowQuestions
	}
	if in.AllowDiscussions != nil {
		space.AllowDiscussions = *in.AllowDiscussions
	}
	if !space.AllowQuestions && !space.AllowDiscussions {
		return nil, apperr.Validation("A space must allow questions or discussions")
	}

	if err := s.store.Spaces.Save(ctx, space); err != nil {
		return nil, apperr.Internal("Failed to save space", err)
	}
	return space, nil
}

func (s *SpaceService) Join(ctx context.Context, actor *models.User, spaceID uuid.UUID) (*models.Space, error) {
	space, err := s.load(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if !space.IsActive {
		return nil, apperr.Validation("Space is not active")
	}
	if !space.IsPublic && !actor.Role.IsStaff() {
		return nil, apperr.Authorization("This space is private")
	}
	if err := s.changeMembership(ctx, space, actor.ID, true); err != nil {
		return nil, err
	}
	return s.load(ctx, spaceID)
}

// Leave removes actor from the space. The owner cannot leave.
func (s *SpaceService) Leave(ctx context.Context, actor *models.User, spaceID uuid.UUID) (*models.Space, error) {
	space, err := s.load(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if space.OwnerUserID == actor.ID {
		return nil, apperr.Validation("The space owner cannot leave the space")
	}
	if err := s.changeMembership(ctx, space, actor.ID, false); err != nil {
		return nil, err
	}
	return s.load(ctx, spaceID)
}

func (s *SpaceService) changeMembership(ctx context.Context, space *models.Space, userID uuid.UUID, join bool) error {
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		var (
			changed bool
			err     error
		)
		if join {
			changed, err = tx.Spaces.AddMember(ctx, space.ID, userID, s.now())
		} else {
			changed, err = tx.Spaces.RemoveMember(ctx, space.ID, userID)
		}
		if err != nil {
			return apperr.Internal("Failed to update membership", err)
		}
		switch {
		case !changed && join:
			return apperr.Conflict("Already a member of this space")
		case !changed:
			return apperr.Validation("Not a member of this space")
		}
		if err := tx.Spaces.Recount(ctx, space.ID); err != nil {
			return apperr.Internal("Failed to update membership", err)
		}
		return nil
	})
}

// AddModerator lists userID as a moderator of the space.
func (s *SpaceService) AddModerator(ctx context.Context, actor *models.User, spaceID, userID uuid.UUID) (*models.Space, error) {
	space, err := s.manageable(ctx, actor, spaceID)
	if err != nil {
		return nil, err
	}
	if space.CanModerate(userID) {
		return nil, apperr.Conflict("User already moderates this space")
	}
	target, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to load user", err)
	}
	if target == nil || !target.IsActive {
		return nil, apperr.NotFound("User not found")
	}

	space.Moderators = append(space.Moderators, models.SpaceModerator{UserID: userID, AddedBy: actor.ID, AddedAt: s.now()})
	if err := s.store.Spaces.Save(ctx, space); err != nil {
		return nil, apperr.Internal("Failed to save space", err)
	}
	s.fanout.DeliverToUser(ctx, userID, notify.NewNotification(notify.SpaceInvitation,
		"You are now a moderator of "+space.Name, map[string]any{"space_id": space.ID, "slug": space.Slug}))
	return space, nil
}

func (s *SpaceService) RemoveModerator(ctx context.Context, actor *models.User, spaceID, userID uuid.UUID) (*models.Space, error) {
	space, err := s.manageable(ctx, actor, spaceID)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(space.Moderators, func(m models.SpaceModerator) bool { return m.UserID == userID })
	if idx < 0 {
		return nil, apperr.NotFound("User is not a moderator of this space")
	}
	space.Moderators = slices.Delete(space.Moderators, idx, idx+1)
	if err := s.store.Spaces.Save(ctx, space); err != nil {
		return nil, apperr.Internal("Failed to save space", err)
	}
	return space, nil
}

func (s *SpaceService) manageable(ctx context.Context, actor *models.User, spaceID uuid.UUID) (*models.Space, error) {
	space, err := s.load(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if space.OwnerUserID != actor.ID && !actor.HasPermission(models.PermManageSpaces) {
		return nil, apperr.Authorization("Only the space owner can manage moderators")
	}
	return space, nil
}
