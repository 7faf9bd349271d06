package service_test

import (
	"context"
	"testing"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/audit"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/service"
	"github.com/Baaaki/agora/internal/testutil"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type UserServiceTestSuite struct {
	suite.Suite
	testDB   *testutil.TestDatabase
	users    *repository.UserRepository
	recorder *memoryRecorder
	service  *service.UserService
	ctx      context.Context

	user       *models.User
	admin      *models.User
	superAdmin *models.User
}

func (s *UserServiceTestSuite) SetupTest() {
	s.testDB = testutil.SetupTestDatabase(s.T())
	s.users = repository.NewUserRepository(s.testDB.DB)
	s.recorder = &memoryRecorder{}
	s.service = service.NewUserService(s.users, s.recorder, utils.NewSanitizer())
	s.ctx = context.Background()

	s.user = testutil.CreateTestUser(s.T(), s.testDB.DB, "regular", models.RoleUser)
	s.admin = testutil.CreateTestUser(s.T(), s.testDB.DB, "admin", models.RoleAdmin)
	s.superAdmin = testutil.CreateTestUser(s.T(), s.testDB.DB, "root", models.RoleSuperAdmin)
}

func (s *UserServiceTestSuite) TearDownTest() {
	s.testDB.Teardown(s.T())
}

func (s *UserServiceTestSuite) TestProfile_HidesDeactivatedUsers() {
	profile, err := s.service.Profile(s.ctx, "regular")
	s.Require().NoError(err)
	s.Equal("regular", profile.Username)

	_, err = s.service.SetActive(s.ctx, s.admin, []uuid.UUID{s.user.ID}, false, "spam")
	s.Require().NoError(err)

	_, err = s.service.Profile(s.ctx, "regular")
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *UserServiceTestSuite) TestUpdateProfile() {
	name, bio := "  Regular Person ", "Writes <b>Go</b>"

	updated, err := s.service.UpdateProfile(s.ctx, s.user, service.ProfileUpdate{DisplayName: &name, Bio: &bio})

	s.Require().NoError(err)
	s.Equal("Regular Person", updated.DisplayName)
	s.NotContains(updated.Bio, "<b>")

	short := "x"
	_, err = s.service.UpdateProfile(s.ctx, s.user, service.ProfileUpdate{DisplayName: &short})
	s.True(apperr.Is(err, apperr.KindValidation))
}

func (s *UserServiceTestSuite) TestSetActive_AuditsEachUser() {
	other := testutil.CreateTestUser(s.T(), s.testDB.DB, "other", models.RoleUser)

	n, err := s.service.SetActive(s.ctx, s.admin, []uuid.UUID{s.user.ID, other.ID}, false, "ring of sock puppets")

	s.Require().NoError(err)
	s.EqualValues(2, n)
	s.Require().Len(s.recorder.entries, 2)
	for _, e := range s.recorder.entries {
		s.Equal(audit.ActionDeactivate, e.Action)
		s.Equal(s.admin.ID, e.ActorID)
		s.Equal("ring of sock puppets", e.Detail)
	}
	stored, _ := s.users.FindByID(s.ctx, other.ID)
	s.False(stored.IsActive)
}

func (s *UserServiceTestSuite) TestSetActive_CannotDeactivateSelf() {
	_, err := s.service.SetActive(s.ctx, s.admin, []uuid.UUID{s.user.ID, s.admin.ID}, false, "")

	s.True(apperr.Is(err, apperr.KindValidation))
	stored, _ := s.users.FindByID(s.ctx, s.user.ID)
	s.True(stored.IsActive, "nothing changes when the request is rejected")
}

func (s *UserServiceTestSuite) TestSetRole() {
	tests := []struct {
		name  string
		actor func() *models.User
		role  models.Role
		kind  apperr.Kind
		ok    bool
	}{
		{"admin promotes to moderator", func() *models.User { return s.admin }, models.RoleModerator, 0, true},
		{"admin cannot grant admin", func() *models.User { return s.admin }, models.RoleAdmin, apperr.KindAuthorization, false},
		{"super admin grants admin", func() *models.User { return s.superAdmin }, models.RoleAdmin, 0, true},
		{"invalid role", func() *models.User { return s.superAdmin }, "owner", apperr.KindValidation, false},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			target := testutil.CreateTestUser(s.T(), s.testDB.DB, "t"+uuid.NewString()[:8], models.RoleUser)

			updated, err := s.service.SetRole(s.ctx, tt.actor(), target.ID, tt.role)

			if !tt.ok {
				s.True(apperr.Is(err, tt.kind), "got %v", err)
				return
			}
			s.Require().NoError(err)
			s.Equal(tt.role, updated.Role)
			s.ElementsMatch(models.DefaultPermissions(tt.role), []models.Permission(updated.Permissions))
		})
	}

	_, err := s.service.SetRole(s.ctx, s.superAdmin, s.superAdmin.ID, models.RoleUser)
	s.True(apperr.Is(err, apperr.KindValidation))
}

func (s *UserServiceTestSuite) TestTopUsers_ActiveByReputation() {
	s.Require().NoError(s.testDB.DB.Model(s.user).Update("reputation", 500).Error)
	s.Require().NoError(s.testDB.DB.Model(s.admin).Update("reputation", 50).Error)

	top, err := s.service.TopUsers(s.ctx, 2)

	s.Require().NoError(err)
	s.Require().Len(top, 2)
	s.Equal("regular", top[0].Username)
	s.Equal("admin", top[1].Username)
}

func TestUserServiceTestSuite(t *testing.T) {
	suite.Run(t, new(UserServiceTestSuite))
}
