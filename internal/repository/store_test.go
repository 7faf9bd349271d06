package repository_test

import (
	"context"
	"testing"

	"github.com/Baaaki/agora/internal/models"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_LeavesDerivedCountersAlone(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	defer testDB.Teardown(t)

	ctx := context.Background()
	store := repository.NewStore(testDB.DB)
	author := testutil.CreateTestUser(t, testDB.DB, "author", models.RoleUser)
	space := testutil.CreateTestSpace(t, testDB.DB, author, "Go Programming")
	tally := models.VoteTally{VoteCount: 3, UpvoteCount: 2, DownvoteCount: 1, Score: 1}

	t.Run("post", func(t *testing.T) {
		// Arrange
		post := testutil.CreateTestPost(t, testDB.DB, author, space, models.ModeQuestion)
		stale, err := store.Posts.FindByID(ctx, post.ID)
		require.NoError(t, err)
		require.NoError(t, store.Posts.UpdateTally(ctx, post.ID, tally, 2.5))
		require.NoError(t, store.Posts.IncrementViews(ctx, post.ID))

		// Act
		stale.Title = "A title changed from an old copy"
		require.NoError(t, store.Posts.Save(ctx, stale))

		// Assert
		got, err := store.Posts.FindByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "A title changed from an old copy", got.Title)
		assert.Equal(t, tally, got.VoteTally)
		assert.InDelta(t, 2.5, got.HotScore, 0.0001)
		assert.Equal(t, 1, got.ViewCount)
	})

	t.Run("answer", func(t *testing.T) {
		post := testutil.CreateTestPost(t, testDB.DB, author, space, models.ModeQuestion)
		answer := testutil.CreateTestAnswer(t, testDB.DB, author, post)
		stale, err := store.Answers.FindByID(ctx, answer.ID)
		require.NoError(t, err)
		require.NoError(t, store.Answers.UpdateTally(ctx, answer.ID, tally))

		stale.IsLocked = true
		require.NoError(t, store.Answers.Save(ctx, stale))

		got, err := store.Answers.FindByID(ctx, answer.ID)
		require.NoError(t, err)
		assert.True(t, got.IsLocked)
		assert.Equal(t, tally, got.VoteTally)
	})

	t.Run("space", func(t *testing.T) {
		stale, err := store.Spaces.FindByID(ctx, space.ID)
		require.NoError(t, err)
		testutil.CreateTestPost(t, testDB.DB, author, space, models.ModeDiscussion)
		require.NoError(t, store.Spaces.Recount(ctx, space.ID))
		fresh, err := store.Spaces.FindByID(ctx, space.ID)
		require.NoError(t, err)

		stale.Description = "Edited from an old copy"
		require.NoError(t, store.Spaces.Save(ctx, stale))

		got, err := store.Spaces.FindByID(ctx, space.ID)
		require.NoError(t, err)
		assert.Equal(t, "Edited from an old copy", got.Description)
		assert.Equal(t, fresh.PostCount, got.PostCount)
		assert.Equal(t, fresh.DiscussionCount, got.DiscussionCount)
		assert.Equal(t, fresh.MemberCount, got.MemberCount)
	})
}
