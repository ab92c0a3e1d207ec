package service

import (
	"context"
	"testing"

	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeService_TogglePostTwiceRestoresState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, h.db, "author")
	reader := testutil.CreateUser(t, h.db, "reader")
	post := testutil.CreatePost(t, h.db, author, nil)

	res, err := h.likes.TogglePost(ctx, reader.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.LikesCount)
	assert.Equal(t, int64(1), h.reloadPost(t, post.ID).LikesCount)

	res, err = h.likes.TogglePost(ctx, reader.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Zero(t, res.LikesCount)
	assert.Zero(t, h.reloadPost(t, post.ID).LikesCount)

	status, err := h.likes.PostStatus(ctx, reader.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, status.Liked)

	// Only the insert notifies.
	inbox := h.inbox(t, author.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationLike, inbox[0].Type)
	assert.Equal(t, reader.Username+" liked your post", inbox[0].Content)
	assert.Equal(t, []string{events.SubjectPostLiked}, h.pub.published())
}

func TestLikeService_TogglePostRescores(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, h.db, "author")
	reader := testutil.CreateUser(t, h.db, "reader")
	post := testutil.CreatePost(t, h.db, author, nil, testutil.WithScore(-100))

	_, err := h.likes.TogglePost(ctx, reader.ID, post.ID)
	require.NoError(t, err)
	assert.Greater(t, h.reloadPost(t, post.ID).TrendingScore, 1.0)
}

func TestLikeService_OwnPostDoesNotNotify(t *testing.T) {
	h := newHarness(t)
	author := testutil.CreateUser(t, h.db, "author")
	post := testutil.CreatePost(t, h.db, author, nil)

	res, err := h.likes.TogglePost(context.Background(), author.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Empty(t, h.inbox(t, author.ID))
}

func TestLikeService_PendingPostRejected(t *testing.T) {
	h := newHarness(t)
	author := testutil.CreateUser(t, h.db, "author")
	reader := testutil.CreateUser(t, h.db, "reader")
	post := testutil.CreatePost(t, h.db, author, nil, testutil.WithStatus(models.PostPending))

	_, err := h.likes.TogglePost(context.Background(), reader.ID, post.ID)
	assertValidationError(t, err)
}

func TestLikeService_MissingPost(t *testing.T) {
	h := newHarness(t)
	reader := testutil.CreateUser(t, h.db, "reader")
	_, err := h.likes.TogglePost(context.Background(), reader.ID, 4242)
	assertNotFoundError(t, err)
}

func TestLikeService_ToggleComment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, h.db, "author")
	commenter := testutil.CreateUser(t, h.db, "commenter")
	reader := testutil.CreateUser(t, h.db, "reader")
	post := testutil.CreatePost(t, h.db, author, nil)

	comment, err := h.comments.Create(ctx, CreateCommentInput{UserID: commenter.ID, PostID: post.ID, Content: "nice"})
	require.NoError(t, err)

	res, err := h.likes.ToggleComment(ctx, reader.ID, comment.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.LikesCount)

	inbox := h.inbox(t, commenter.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, reader.Username+" liked your comment", inbox[0].Content)
	require.NotNil(t, inbox[0].CommentID)
	assert.Equal(t, comment.ID, *inbox[0].CommentID)
	require.NotNil(t, inbox[0].PostID)
	assert.Equal(t, post.ID, *inbox[0].PostID)

	// A post like and a comment like by the same user coexist.
	_, err = h.likes.TogglePost(ctx, reader.ID, post.ID)
	require.NoError(t, err)
	status, err := h.likes.PostStatus(ctx, reader.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, status.Liked)

	require.NoError(t, h.comments.Delete(ctx, commenter.ID, comment.ID))
	_, err = h.likes.ToggleComment(ctx, reader.ID, comment.ID)
	assertNotFoundError(t, err)
}

// racedLikes behaves as if another request inserted the same like between
// the lookup and the insert.
type racedLikes struct {
	repository.LikeRepository
	count int64
}

func (r *racedLikes) Find(context.Context, uint, repository.LikeTarget) (*models.Like, error) {
	return nil, nil
}

func (r *racedLikes) Create(context.Context, *models.Like) error {
	return repository.ErrDuplicate
}

func (r *racedLikes) Count(context.Context, repository.LikeTarget) (int64, error) {
	return r.count, nil
}

func TestLikeService_DuplicateInsertCountsAsLiked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, h.db, "author")
	reader := testutil.CreateUser(t, h.db, "reader")
	post := testutil.CreatePost(t, h.db, author, nil)

	likes := NewLikeService(&racedLikes{count: 3}, h.postRepo, repository.NewCommentRepository(h.db),
		h.userRepo, h.notifications, NewScorer(nil), h.pub)

	res, err := likes.TogglePost(ctx, reader.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(3), res.LikesCount)
	assert.Equal(t, int64(3), h.reloadPost(t, post.ID).LikesCount)

	// The winning request already notified the author.
	assert.Empty(t, h.pusher.forUser(author.ID))
	assert.Empty(t, h.inbox(t, author.ID))
	assert.Empty(t, h.pub.published())
}
