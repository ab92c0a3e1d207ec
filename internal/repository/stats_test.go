package repository

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewStatsRepository(db)
	ctx := context.Background()
	prolific := testutil.CreateUser(t, db, "prolific")
	casual := testutil.CreateUser(t, db, "casual")

	hit := testutil.CreatePost(t, db, prolific, nil, testutil.WithCounters(9, 0, 100))
	testutil.CreatePost(t, db, prolific, nil, testutil.WithCounters(1, 0, 0))
	testutil.CreatePost(t, db, casual, nil, testutil.WithCounters(9, 0, 5))
	testutil.CreatePost(t, db, casual, nil, testutil.WithStatus(models.PostPending))
	testutil.CreatePost(t, db, casual, nil, testutil.WithStatus(models.PostRejected),
		testutil.WithCreatedAt(time.Now().Add(-30*24*time.Hour)))
	require.NoError(t, db.Create(&models.Comment{Content: "x", UserID: casual.ID, PostID: hit.ID, Flagged: true}).Error)

	o, err := repo.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), o.Users)
	assert.Equal(t, int64(5), o.Posts)
	assert.Equal(t, int64(3), o.ApprovedPosts)
	assert.Equal(t, int64(1), o.PendingPosts)
	assert.Equal(t, int64(1), o.RejectedPosts)
	assert.Equal(t, int64(1), o.Comments)
	assert.Equal(t, int64(1), o.FlaggedComments)

	top, err := repo.TopPosts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, hit.ID, top[0].ID, "views break like ties")

	authors, err := repo.TopAuthors(ctx, 5)
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, prolific.ID, authors[0].UserID)
	assert.Equal(t, int64(2), authors[0].PostCount)

	times, err := repo.PostTimesSince(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, times, 4)
}
