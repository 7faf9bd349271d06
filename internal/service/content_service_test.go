package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/audit"
	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/notify"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/service"
	"github.com/Baaaki/agora/internal/testutil"
	"github.com/Baaaki/agora/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type memoryRecorder struct {
	entries []audit.Entry
}

func (m *memoryRecorder) Record(e audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

type ContentServiceTestSuite struct {
	suite.Suite
	testDB     *testutil.TestDatabase
	store      *repository.Store
	fanout     *testutil.RecordingFanout
	recorder   *memoryRecorder
	reputation *service.ReputationService
	content    *service.ContentService
	ctx        context.Context

	author *models.User
	voter  *models.User
	admin  *models.User
	space  *models.Space
}

func (s *ContentServiceTestSuite) SetupTest() {
	s.testDB = testutil.SetupTestDatabase(s.T())
	s.store = repository.NewStore(s.testDB.DB)
	s.fanout = &testutil.RecordingFanout{}
	s.recorder = &memoryRecorder{}
	s.reputation = service.NewReputationService(s.store, s.fanout)
	s.content = service.NewContentService(s.store, s.reputation, s.fanout, s.recorder, utils.NewSanitizer())
	s.ctx = context.Background()

	s.author = testutil.CreateTestUser(s.T(), s.testDB.DB, "author", models.RoleUser)
	s.voter = testutil.CreateTestUser(s.T(), s.testDB.DB, "voter", models.RoleUser)
	s.admin = testutil.CreateTestUser(s.T(), s.testDB.DB, "admin", models.RoleAdmin)
	s.space = testutil.CreateTestSpace(s.T(), s.testDB.DB, s.author, "Go Programming")
}

func (s *ContentServiceTestSuite) TearDownTest() {
	s.testDB.Teardown(s.T())
}

func (s *ContentServiceTestSuite) reload(user *models.User) *models.User {
	u, err := s.store.Users.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	return u
}

func (s *ContentServiceTestSuite) question() *models.Post {
	post, err := s.content.CreatePost(s.ctx, s.author, service.CreatePostInput{
		SpaceID: s.space.ID,
		Title:   "How do goroutines get scheduled?",
		Body:    "I am trying to understand how the runtime scheduler picks goroutines.",
		Mode:    models.ModeQuestion,
		Tags:    []string{"Go", "runtime", "go"},
	})
	s.Require().NoError(err)
	return post
}

func (s *ContentServiceTestSuite) answerBy(user *models.User, post *models.Post) *models.Answer {
	answer, err := s.content.CreateAnswer(s.ctx, user, post.ID, "The scheduler uses an M:N model with per-P run queues.")
	s.Require().NoError(err)
	return answer
}

func (s *ContentServiceTestSuite) TestCreatePost_SetsDerivedFields() {
	post := s.question()

	s.Equal([]string{"go", "runtime"}, []string(post.Tags))
	s.Contains(post.BodyHTML, "<p>")
	s.Equal(models.StatusActive, post.Status)

	space, err := s.store.Spaces.FindByID(s.ctx, s.space.ID)
	s.Require().NoError(err)
	s.Equal(1, space.PostCount)
	s.Equal(1, space.QuestionCount)
	s.Equal(1+service.PointsPostCreated, s.reload(s.author).Reputation)
	s.Contains(s.fanout.RoomEvents(notify.SpaceRoom(s.space.ID)), notify.EventPostUpdate)
}

func (s *ContentServiceTestSuite) TestCreatePost_Validation() {
	closed := testutil.CreateTestSpace(s.T(), s.testDB.DB, s.author, "Announcements")
	closed.AllowDiscussions = false
	s.Require().NoError(s.store.Spaces.Save(s.ctx, closed))

	tests := []struct {
		name string
		in   service.CreatePostInput
		kind apperr.Kind
	}{
		{"short title", service.CreatePostInput{SpaceID: s.space.ID, Title: "Short", Body: "A body that is long enough to pass.", Mode: models.ModeQuestion}, apperr.KindValidation},
		{"short body", service.CreatePostInput{SpaceID: s.space.ID, Title: "A perfectly fine title", Body: "too short", Mode: models.ModeQuestion}, apperr.KindValidation},
		{"bad mode", service.CreatePostInput{SpaceID: s.space.ID, Title: "A perfectly fine title", Body: "A body that is long enough to pass.", Mode: "poll"}, apperr.KindValidation},
		{"missing space", service.CreatePostInput{SpaceID: uuid.New(), Title: "A perfectly fine title", Body: "A body that is long enough to pass.", Mode: models.ModeQuestion}, apperr.KindNotFound},
		{"mode not allowed", service.CreatePostInput{SpaceID: closed.ID, Title: "A perfectly fine title", Body: "A body that is long enough to pass.", Mode: models.ModeDiscussion}, apperr.KindValidation},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.content.CreatePost(s.ctx, s.author, tt.in)
			s.True(apperr.Is(err, tt.kind), "got %v", err)
		})
	}
}

func (s *ContentServiceTestSuite) TestVotePost_RecomputesFromLedger() {
	// Arrange: seven upvotes and two downvotes from distinct users
	post := s.question()
	for i := 0; i < 9; i++ {
		u := testutil.CreateTestUser(s.T(), s.testDB.DB, fmt.Sprintf("v%02d", i), models.RoleUser)
		value := 1
		if i >= 7 {
			value = -1
		}
		_, err := s.content.VotePost(s.ctx, u, post.ID, value)
		s.Require().NoError(err)
	}

	// Act
	stored, err := s.store.Posts.FindByID(s.ctx, post.ID)

	// Assert
	s.Require().NoError(err)
	s.Equal(7, stored.UpvoteCount)
	s.Equal(2, stored.DownvoteCount)
	s.Equal(9, stored.VoteCount)
	s.Equal(5, stored.Score)
	s.InDelta(service.HotScore(5, stored.CreatedAt, time.Now().UTC()), stored.HotScore, 0.001)
}

func (s *ContentServiceTestSuite) TestVotePost_ChangeAndWithdraw() {
	post := s.question()
	start := s.reload(s.author).Reputation

	res, err := s.content.VotePost(s.ctx, s.voter, post.ID, 1)
	s.Require().NoError(err)
	s.Equal(1, res.Tally.Score)
	s.Equal(start+service.PointsPostUpvoted, s.reload(s.author).Reputation)

	res, err = s.content.VotePost(s.ctx, s.voter, post.ID, -1)
	s.Require().NoError(err)
	s.Equal(-1, res.Tally.Score)
	s.Equal(1, res.Tally.VoteCount, "a changed vote replaces the previous one")
	s.Equal(start+service.PointsPostDownvoted, s.reload(s.author).Reputation)

	res, err = s.content.VotePost(s.ctx, s.voter, post.ID, 0)
	s.Require().NoError(err)
	s.Equal(models.VoteTally{}, res.Tally)
	s.Equal(start, s.reload(s.author).Reputation)
}

func (s *ContentServiceTestSuite) TestVote_Rejections() {
	post := s.question()

	_, err := s.content.VotePost(s.ctx, s.author, post.ID, 1)
	s.ErrorIs(err, service.ErrSelfVote)

	_, err = s.content.VotePost(s.ctx, s.voter, post.ID, 2)
	s.ErrorIs(err, service.ErrInvalidVote)

	_, err = s.content.VotePost(s.ctx, s.voter, uuid.New(), 1)
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *ContentServiceTestSuite) TestVote_DownvoteAtFloorIsSkipped() {
	// Arrange: the author is back at the floor
	post := s.question()
	author := s.reload(s.author)
	author.Reputation = models.MinReputation
	s.Require().NoError(s.store.Users.Save(s.ctx, author))

	_, err := s.content.VotePost(s.ctx, s.voter, post.ID, -1)

	s.NoError(err, "the vote itself succeeds")
	s.Equal(models.MinReputation, s.reload(s.author).Reputation)
}

func (s *ContentServiceTestSuite) TestAcceptAnswer_PairsAndReplaces() {
	// Arrange
	post := s.question()
	first := s.answerBy(s.voter, post)
	other := testutil.CreateTestUser(s.T(), s.testDB.DB, "other", models.RoleUser)
	second := s.answerBy(other, post)

	// Act
	accepted, err := s.content.AcceptAnswer(s.ctx, s.author, post.ID, first.ID)

	// Assert
	s.Require().NoError(err)
	s.True(accepted.IsAccepted)
	storedPost, _ := s.store.Posts.FindByID(s.ctx, post.ID)
	s.True(storedPost.IsAnswered)
	s.Require().NotNil(storedPost.AcceptedAnswerID)
	s.Equal(first.ID, *storedPost.AcceptedAnswerID)
	storedFirst, _ := s.store.Answers.FindByID(s.ctx, first.ID)
	s.NotNil(storedFirst.AcceptedAt)
	s.Equal(s.author.ID, *storedFirst.AcceptedBy)
	s.Contains(s.fanout.Notifications(s.voter.ID), notify.AnswerAccepted)

	voterRep := s.reload(s.voter).Reputation

	// Accepting another answer moves the acceptance
	_, err = s.content.AcceptAnswer(s.ctx, s.author, post.ID, second.ID)
	s.Require().NoError(err)
	storedFirst, _ = s.store.Answers.FindByID(s.ctx, first.ID)
	s.False(storedFirst.IsAccepted)
	s.Nil(storedFirst.AcceptedAt)
	storedPost, _ = s.store.Posts.FindByID(s.ctx, post.ID)
	s.Equal(second.ID, *storedPost.AcceptedAnswerID)
	s.Equal(voterRep-service.PointsAnswerAccepted, s.reload(s.voter).Reputation)
}

func (s *ContentServiceTestSuite) TestAcceptAnswer_OnlyQuestionAuthorOrStaff() {
	post := s.question()
	answer := s.answerBy(s.voter, post)

	_, err := s.content.AcceptAnswer(s.ctx, s.voter, post.ID, answer.ID)
	s.True(apperr.Is(err, apperr.KindAuthorization))

	_, err = s.content.AcceptAnswer(s.ctx, s.admin, post.ID, answer.ID)
	s.NoError(err)
}

func (s *ContentServiceTestSuite) TestUnacceptAnswer_ClearsAllFields() {
	post := s.question()
	answer := s.answerBy(s.voter, post)
	_, err := s.content.AcceptAnswer(s.ctx, s.author, post.ID, answer.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.content.UnacceptAnswer(s.ctx, s.author, post.ID))

	storedPost, _ := s.store.Posts.FindByID(s.ctx, post.ID)
	storedAnswer, _ := s.store.Answers.FindByID(s.ctx, answer.ID)
	s.False(storedPost.IsAnswered)
	s.Nil(storedPost.AcceptedAnswerID)
	s.False(storedAnswer.IsAccepted)
	s.Nil(storedAnswer.AcceptedAt)
	s.Nil(storedAnswer.AcceptedBy)

	err = s.content.UnacceptAnswer(s.ctx, s.author, post.ID)
	s.True(apperr.Is(err, apperr.KindValidation))
}

func (s *ContentServiceTestSuite) TestCreateAnswer_Rules() {
	discussion, err := s.content.CreatePost(s.ctx, s.author, service.CreatePostInput{
		SpaceID: s.space.ID,
		Title:   "What is everyone building this week?",
		Body:    "Share what you are working on and what you learned.",
		Mode:    models.ModeDiscussion,
	})
	s.Require().NoError(err)
	_, err = s.content.CreateAnswer(s.ctx, s.voter, discussion.ID, "Answers are for questions only, not discussions.")
	s.ErrorIs(err, service.ErrNotAQuestion)

	post := s.question()
	locked := true
	_, err = s.content.ModeratePost(s.ctx, s.admin, post.ID, service.ModerateInput{Locked: &locked})
	s.Require().NoError(err)
	_, err = s.content.CreateAnswer(s.ctx, s.voter, post.ID, "This should be rejected because the post is locked.")
	s.ErrorIs(err, service.ErrPostClosed)
}

func (s *ContentServiceTestSuite) TestDeleteAcceptedAnswer_ClearsAcceptance() {
	post := s.question()
	answer := s.answerBy(s.voter, post)
	_, err := s.content.AcceptAnswer(s.ctx, s.author, post.ID, answer.ID)
	s.Require().NoError(err)
	answer, _ = s.store.Answers.FindByID(s.ctx, answer.ID)

	s.Require().NoError(s.content.DeleteAnswer(s.ctx, s.voter, answer))

	storedPost, _ := s.store.Posts.FindByID(s.ctx, post.ID)
	s.False(storedPost.IsAnswered)
	s.Nil(storedPost.AcceptedAnswerID)
	s.Equal(0, storedPost.AnswerCount)
}

// Mutations that start from a copy loaded before a vote or comment was
// recorded must leave the derived counters equal to the source tables.
func (s *ContentServiceTestSuite) TestMutationsFromStaleCopy_KeepDerivedCounters() {
	body := "An edited body that is comfortably long enough."
	pinned := true

	tests := []struct {
		name string
		act  func(post *models.Post, answer *models.Answer) error
	}{
		{"edit answer", func(_ *models.Post, answer *models.Answer) error {
			_, err := s.content.EditAnswer(s.ctx, s.voter, answer, body, "typo")
			return err
		}},
		{"moderate answer", func(_ *models.Post, answer *models.Answer) error {
			_, err := s.content.ModerateAnswer(s.ctx, s.admin, answer.ID, "Checked", nil)
			return err
		}},
		{"accept answer", func(post *models.Post, answer *models.Answer) error {
			_, err := s.content.AcceptAnswer(s.ctx, s.author, post.ID, answer.ID)
			return err
		}},
		{"delete and restore answer", func(_ *models.Post, answer *models.Answer) error {
			if err := s.content.DeleteAnswer(s.ctx, s.voter, answer); err != nil {
				return err
			}
			_, err := s.content.RestoreAnswer(s.ctx, s.admin, answer)
			return err
		}},
		{"edit post", func(post *models.Post, _ *models.Answer) error {
			_, err := s.content.EditPost(s.ctx, s.author, post, service.EditPostInput{Body: &body})
			return err
		}},
		{"moderate post", func(post *models.Post, _ *models.Answer) error {
			_, err := s.content.ModeratePost(s.ctx, s.admin, post.ID, service.ModerateInput{Pinned: &pinned})
			return err
		}},
		{"delete and restore post", func(post *models.Post, _ *models.Answer) error {
			if err := s.content.DeletePost(s.ctx, s.admin, post); err != nil {
				return err
			}
			_, err := s.content.RestorePost(s.ctx, s.admin, post)
			return err
		}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			// Arrange: copies taken before the vote, comment and view land
			post := s.question()
			answer := s.answerBy(s.voter, post)
			stalePost, err := s.content.FindPost(s.ctx, post.ID)
			s.Require().NoError(err)
			staleAnswer, err := s.content.FindAnswer(s.ctx, answer.ID)
			s.Require().NoError(err)

			_, err = s.content.VotePost(s.ctx, s.voter, post.ID, 1)
			s.Require().NoError(err)
			_, err = s.content.VoteAnswer(s.ctx, s.author, answer.ID, 1)
			s.Require().NoError(err)
			_, err = s.content.CreateComment(s.ctx, s.author, service.CommentTarget{AnswerID: &answer.ID}, "Thanks, this helped!")
			s.Require().NoError(err)
			_, err = s.content.CreateComment(s.ctx, s.voter, service.CommentTarget{PostID: &post.ID}, "Could you share a code sample?")
			s.Require().NoError(err)
			_, err = s.content.GetPost(s.ctx, post.ID, nil)
			s.Require().NoError(err)
			voted, err := s.store.Posts.FindByID(s.ctx, post.ID)
			s.Require().NoError(err)

			// Act
			s.Require().NoError(tt.act(stalePost, staleAnswer))

			// Assert
			storedPost, err := s.store.Posts.FindByID(s.ctx, post.ID)
			s.Require().NoError(err)
			postVotes, err := s.store.Votes.Tally(s.ctx, models.TargetPost, post.ID)
			s.Require().NoError(err)
			s.Equal(postVotes.Up, storedPost.UpvoteCount)
			s.Equal(postVotes.Up-postVotes.Down, storedPost.Score)
			s.Equal(postVotes.Total, storedPost.VoteCount)
			s.Equal(voted.HotScore, storedPost.HotScore)
			s.Equal(1, storedPost.CommentCount)
			s.Equal(1, storedPost.AnswerCount)
			s.Equal(1, storedPost.ViewCount)

			storedAnswer, err := s.store.Answers.FindByID(s.ctx, answer.ID)
			s.Require().NoError(err)
			answerVotes, err := s.store.Votes.Tally(s.ctx, models.TargetAnswer, answer.ID)
			s.Require().NoError(err)
			s.Equal(1, answerVotes.Up)
			s.Equal(answerVotes.Up, storedAnswer.UpvoteCount)
			s.Equal(answerVotes.Up-answerVotes.Down, storedAnswer.Score)
			s.Equal(1, storedAnswer.CommentCount)
		})
	}
}

// Undoing an acceptance takes back exactly the bonus the acceptance gave,
// which is nothing when the question author answered their own question.
func (s *ContentServiceTestSuite) TestAcceptanceUndo_ReputationSymmetric() {
	tests := []struct {
		name      string
		answerer  func() *models.User
		staleCopy bool
		undo      func(post *models.Post, answer *models.Answer, answerer *models.User) error
	}{
		{
			name:     "own answer deleted",
			answerer: func() *models.User { return s.author },
			undo: func(_ *models.Post, answer *models.Answer, answerer *models.User) error {
				return s.content.DeleteAnswer(s.ctx, answerer, answer)
			},
		},
		{
			name:     "own answer unaccepted",
			answerer: func() *models.User { return s.author },
			undo: func(post *models.Post, _ *models.Answer, _ *models.User) error {
				return s.content.UnacceptAnswer(s.ctx, s.author, post.ID)
			},
		},
		{
			name:     "other answer deleted",
			answerer: func() *models.User { return s.voter },
			undo: func(_ *models.Post, answer *models.Answer, answerer *models.User) error {
				return s.content.DeleteAnswer(s.ctx, answerer, answer)
			},
		},
		{
			name:      "other answer deleted from copy loaded before acceptance",
			answerer:  func() *models.User { return s.voter },
			staleCopy: true,
			undo: func(_ *models.Post, answer *models.Answer, answerer *models.User) error {
				return s.content.DeleteAnswer(s.ctx, answerer, answer)
			},
		},
		{
			name:     "other answer unaccepted",
			answerer: func() *models.User { return s.voter },
			undo: func(post *models.Post, _ *models.Answer, _ *models.User) error {
				return s.content.UnacceptAnswer(s.ctx, s.author, post.ID)
			},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			// Arrange
			answerer := tt.answerer()
			post := s.question()
			answer := s.answerBy(answerer, post)
			before := s.reload(answerer).Reputation

			_, err := s.content.AcceptAnswer(s.ctx, s.author, post.ID, answer.ID)
			s.Require().NoError(err)
			if !tt.staleCopy {
				answer, err = s.content.FindAnswer(s.ctx, answer.ID)
				s.Require().NoError(err)
			}
			bonus := 0
			if answerer.ID != s.author.ID {
				bonus = service.PointsAnswerAccepted
			}
			s.Equal(before+bonus, s.reload(answerer).Reputation)

			// Act
			s.Require().NoError(tt.undo(post, answer, answerer))

			// Assert
			s.Equal(before, s.reload(answerer).Reputation)
			storedPost, err := s.store.Posts.FindByID(s.ctx, post.ID)
			s.Require().NoError(err)
			s.False(storedPost.IsAnswered)
			s.Nil(storedPost.AcceptedAnswerID)
		})
	}
}

func (s *ContentServiceTestSuite) TestEditPost_HistoryCapped() {
	post := s.question()
	for i := 0; i < 12; i++ {
		body := fmt.Sprintf("Revision number %02d of a body that is long enough.", i)
		var err error
		post, err = s.content.EditPost(s.ctx, s.author, post, service.EditPostInput{Body: &body})
		s.Require().NoError(err)
	}

	stored, err := s.store.Posts.FindByID(s.ctx, post.ID)
	s.Require().NoError(err)
	s.Len(stored.EditHistory, models.MaxEditHistory)
	s.Equal("Revision number 01 of a body that is long enough.", stored.EditHistory[0].Body, "oldest snapshots are dropped first")
	s.Equal("Revision number 10 of a body that is long enough.", stored.EditHistory[9].Body)
	s.Equal("Revision number 11 of a body that is long enough.", stored.Body)
}

func (s *ContentServiceTestSuite) TestDeleteAndRestorePost() {
	post := s.question()

	s.Require().NoError(s.content.DeletePost(s.ctx, s.admin, post))

	_, err := s.content.GetPost(s.ctx, post.ID, s.voter)
	s.True(apperr.Is(err, apperr.KindNotFound), "deleted posts are hidden")
	visible, err := s.content.GetPost(s.ctx, post.ID, s.author)
	s.Require().NoError(err)
	s.True(visible.IsDeleted())
	space, _ := s.store.Spaces.FindByID(s.ctx, s.space.ID)
	s.Equal(0, space.PostCount)
	s.Require().Len(s.recorder.entries, 1)
	s.Equal(audit.ActionSoftDelete, s.recorder.entries[0].Action)

	restored, err := s.content.RestorePost(s.ctx, s.admin, visible)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, restored.Status)
	s.Nil(restored.DeletedAt)
}

func (s *ContentServiceTestSuite) TestGetPost_CountsViews() {
	post := s.question()

	_, err := s.content.GetPost(s.ctx, post.ID, nil)
	s.Require().NoError(err)
	got, err := s.content.GetPost(s.ctx, post.ID, nil)
	s.Require().NoError(err)

	s.Equal(2, got.ViewCount)
}

func (s *ContentServiceTestSuite) TestModeratePost_SpaceModerator() {
	post := s.question()
	mod := testutil.CreateTestUser(s.T(), s.testDB.DB, "spacemod", models.RoleUser)

	_, err := s.content.ModeratePost(s.ctx, mod, post.ID, service.ModerateInput{Status: models.StatusClosed})
	s.True(apperr.Is(err, apperr.KindAuthorization))

	s.space.Moderators = append(s.space.Moderators, models.SpaceModerator{UserID: mod.ID, AddedBy: s.author.ID, AddedAt: time.Now().UTC()})
	s.Require().NoError(s.store.Spaces.Save(s.ctx, s.space))

	moderated, err := s.content.ModeratePost(s.ctx, mod, post.ID, service.ModerateInput{Status: models.StatusClosed, Notes: "Duplicate"})
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, moderated.Status)
	s.Contains(s.fanout.Notifications(s.author.ID), notify.PostModerated)
}

func (s *ContentServiceTestSuite) TestComments() {
	post := s.question()
	answer := s.answerBy(s.voter, post)

	onPost, err := s.content.CreateComment(s.ctx, s.voter, service.CommentTarget{PostID: &post.ID}, "Could you share a code sample?")
	s.Require().NoError(err)
	_, err = s.content.CreateComment(s.ctx, s.author, service.CommentTarget{AnswerID: &answer.ID}, "Thanks, this helped!")
	s.Require().NoError(err)

	_, err = s.content.CreateComment(s.ctx, s.voter, service.CommentTarget{PostID: &post.ID, AnswerID: &answer.ID}, "both")
	s.True(apperr.Is(err, apperr.KindValidation))

	storedPost, _ := s.store.Posts.FindByID(s.ctx, post.ID)
	storedAnswer, _ := s.store.Answers.FindByID(s.ctx, answer.ID)
	s.Equal(1, storedPost.CommentCount)
	s.Equal(1, storedAnswer.CommentCount)
	s.Contains(s.fanout.Notifications(s.author.ID), notify.NewComment)
	s.Contains(s.fanout.Notifications(s.voter.ID), notify.NewComment)

	s.Require().NoError(s.content.DeleteComment(s.ctx, s.voter, onPost))
	storedPost, _ = s.store.Posts.FindByID(s.ctx, post.ID)
	s.Equal(0, storedPost.CommentCount)
	comments, err := s.content.ListComments(s.ctx, service.CommentTarget{PostID: &post.ID}, repository.Page{})
	s.Require().NoError(err)
	s.Empty(comments)
}

func (s *ContentServiceTestSuite) TestTrendingPosts_LastDayOnly() {
	recent := s.question()
	old := testutil.CreateTestPost(s.T(), s.testDB.DB, s.author, s.space, models.ModeQuestion)
	s.Require().NoError(s.testDB.DB.Model(old).Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)

	posts, err := s.content.TrendingPosts(s.ctx, 10)

	s.Require().NoError(err)
	s.Require().Len(posts, 1)
	s.Equal(recent.ID, posts[0].ID)
}

func TestContentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ContentServiceTestSuite))
}
