package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Baaaki/agora/internal/audit"
	"github.com/Baaaki/agora/internal/handler"
	"github.com/Baaaki/agora/internal/middleware"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/service"
	"github.com/Baaaki/agora/internal/testutil"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

// apiSuite wires the full router against SQLite and miniredis.
type apiSuite struct {
	suite.Suite
	testDB  *testutil.TestDatabase
	redis   *testutil.TestRedis
	journal *audit.Journal
	mailer  *testutil.RecordingMailer
	fanout  *testutil.RecordingFanout
	tokens  *utils.TokenIssuer
	router  *gin.Engine
}

func (s *apiSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	s.testDB = testutil.SetupTestDatabase(s.T())
	s.redis = testutil.SetupTestRedis(s.T())

	journal, err := audit.Open(filepath.Join(s.T().TempDir(), "audit.jsonl"))
	s.Require().NoError(err)
	s.journal = journal

	s.mailer = &testutil.RecordingMailer{}
	s.fanout = &testutil.RecordingFanout{}
	s.tokens = utils.NewTokenIssuer(utils.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	tokenStore := utils.NewRedisTokenStore(s.redis.Client)

	store := repository.NewStore(s.testDB.DB)
	sanitizer := utils.NewSanitizer()
	authService := service.NewAuthService(store.Users, s.tokens, tokenStore, s.mailer, service.AuthConfig{
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	})
	reputation := service.NewReputationService(store, s.fanout)
	content := service.NewContentService(store, reputation, s.fanout, s.journal, sanitizer)
	spaces := service.NewSpaceService(store, s.fanout, sanitizer)
	users := service.NewUserService(store.Users, s.journal, sanitizer)
	bans := middleware.NewRateLimiter(s.redis.Client, middleware.RateLimiterConfig{
		Scope:       "general",
		MaxRequests: 1000,
		Window:      time.Minute,
		BlockTime:   time.Minute,
	})

	s.router = handler.NewRouter(
		handler.RouterConfig{CORSOrigin: "http://localhost:5173"},
		middleware.NewAuthenticator(s.tokens, tokenStore, users),
		handler.RateLimits{},
		content,
		handler.Handlers{
			Auth:     handler.NewAuthHandler(authService, false),
			Users:    handler.NewUserHandler(users),
			Spaces:   handler.NewSpaceHandler(spaces, content),
			Posts:    handler.NewPostHandler(content),
			Answers:  handler.NewAnswerHandler(content),
			Comments: handler.NewCommentHandler(content),
			Admin:    handler.NewAdminHandler(users, s.journal, bans),
		},
	)
}

func (s *apiSuite) TearDownTest() {
	_ = s.journal.Close()
	s.redis.Teardown(s.T())
	s.testDB.Teardown(s.T())
}

// tokenFor signs an access token for a fixture user without going through login.
func (s *apiSuite) tokenFor(user *models.User) string {
	pair, err := s.tokens.IssuePair(user.ID)
	s.Require().NoError(err)
	return pair.AccessToken
}

// do sends a JSON request and decodes the JSON response body.
func (s *apiSuite) do(method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var response map[string]any
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w, response
}

func (s *apiSuite) assertError(w *httptest.ResponseRecorder, response map[string]any, status int, code string) {
	s.Equal(status, w.Code, w.Body.String())
	s.Equal(code, response["code"])
	s.NotEmpty(response["message"])
}

func requireMap(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected JSON object, got %T", v)
	}
	return m
}
