package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_CreatePushesWithSender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, h.db, "alice")
	bob := testutil.CreateUser(t, h.db, "bob")
	post := testutil.CreatePost(t, h.db, bob, nil)

	n, err := h.notifications.Create(ctx, CreateNotificationInput{
		RecipientID: bob.ID,
		SenderID:    &alice.ID,
		Content:     "alice liked your post",
		Draft:       models.LikeNotification{PostID: post.ID},
	})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, models.NotificationLike, n.Type)
	require.NotNil(t, n.PostID)
	assert.Equal(t, post.ID, *n.PostID)

	pushes := h.pusher.forUser(bob.ID)
	require.Len(t, pushes, 1)
	require.NotNil(t, pushes[0].Sender)
	assert.Equal(t, alice.Username, pushes[0].Sender.Username)
	assert.Empty(t, pushes[0].Sender.Email)
}

func TestNotificationService_SelfNotificationSuppressed(t *testing.T) {
	h := newHarness(t)
	alice := testutil.CreateUser(t, h.db, "alice")

	n, err := h.notifications.Create(context.Background(), CreateNotificationInput{
		RecipientID: alice.ID,
		SenderID:    &alice.ID,
		Content:     "alice started following you",
		Draft:       models.FollowNotification{},
	})
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Empty(t, h.inbox(t, alice.ID))
	assert.Empty(t, h.pusher.forUser(alice.ID))
}

func TestNotificationService_MissingReferenceRejected(t *testing.T) {
	h := newHarness(t)
	alice := testutil.CreateUser(t, h.db, "alice")
	bob := testutil.CreateUser(t, h.db, "bob")

	_, err := h.notifications.Create(context.Background(), CreateNotificationInput{
		RecipientID: bob.ID,
		SenderID:    &alice.ID,
		Content:     "alice liked your post",
		Draft:       models.LikeNotification{},
	})
	require.Error(t, err)
	assert.Empty(t, h.inbox(t, bob.ID))
	assert.Empty(t, h.pusher.forUser(bob.ID))
}

func TestNotificationService_MarkAllThenMarkOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, h.db, "alice")
	bob := testutil.CreateUser(t, h.db, "bob")

	var ids []uint
	for i := 0; i < 3; i++ {
		n, err := h.notifications.Create(ctx, CreateNotificationInput{
			RecipientID: bob.ID,
			SenderID:    &alice.ID,
			Content:     "alice started following you",
			Draft:       models.FollowNotification{},
		})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	unread, err := h.notifications.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	marked, err := h.notifications.MarkAllAsRead(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)

	unread, err = h.notifications.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	assertNotFoundError(t, h.notifications.MarkAsRead(ctx, bob.ID, ids[0]))

	for _, n := range h.inbox(t, bob.ID) {
		assert.True(t, n.IsRead)
		assert.NotNil(t, n.ReadAt)
	}
}

func TestNotificationService_ScopedToRecipient(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, h.db, "alice")
	bob := testutil.CreateUser(t, h.db, "bob")

	n, err := h.notifications.Create(ctx, CreateNotificationInput{
		RecipientID: bob.ID,
		SenderID:    &alice.ID,
		Content:     "alice started following you",
		Draft:       models.FollowNotification{},
	})
	require.NoError(t, err)

	assertNotFoundError(t, h.notifications.MarkAsRead(ctx, alice.ID, n.ID))
	assertNotFoundError(t, h.notifications.Delete(ctx, alice.ID, n.ID))

	require.NoError(t, h.notifications.MarkAsRead(ctx, bob.ID, n.ID))
	require.NoError(t, h.notifications.Delete(ctx, bob.ID, n.ID))
	assert.Empty(t, h.inbox(t, bob.ID))
	assertNotFoundError(t, h.notifications.Delete(ctx, bob.ID, n.ID))
}

func TestNotificationService_TTLHidesExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bob := testutil.CreateUser(t, h.db, "bob")

	start := time.Now()
	h.notifications.now = fixedClock(start)
	_, err := h.notifications.Create(ctx, CreateNotificationInput{
		RecipientID: bob.ID,
		Content:     "maintenance tonight",
		Draft:       models.SystemNotification{},
		TTL:         time.Hour,
	})
	require.NoError(t, err)
	assert.Len(t, h.inbox(t, bob.ID), 1)

	h.notifications.now = fixedClock(start.Add(2 * time.Hour))
	assert.Empty(t, h.inbox(t, bob.ID))
	unread, err := h.notifications.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestNotificationService_ListPagination(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bob := testutil.CreateUser(t, h.db, "bob")
	for i := 0; i < 5; i++ {
		_, err := h.notifications.Create(ctx, CreateNotificationInput{
			RecipientID: bob.ID,
			Content:     "hello",
			Draft:       models.SystemNotification{},
		})
		require.NoError(t, err)
	}

	page, err := h.notifications.List(ctx, bob.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, int64(5), page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.Pages)
	assert.Equal(t, 2, page.Pagination.Page)

	empty, err := h.notifications.List(ctx, bob.ID, 9, 2)
	require.NoError(t, err)
	assert.NotNil(t, empty.Data)
	assert.Empty(t, empty.Data)
}

func TestNotificationService_FanOutToAdmins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, h.db, "writer")
	admin1 := testutil.CreateAdmin(t, h.db, "root")
	admin2 := testutil.CreateAdmin(t, h.db, "ops")
	post := testutil.CreatePost(t, h.db, author, nil, testutil.WithStatus(models.PostPending))

	n, err := h.notifications.FanOutToAdmins(ctx, &author.ID, "writer submitted a new post for review",
		models.NotificationMetadata{}, models.PostNotification{PostID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, h.inbox(t, admin1.ID), 1)
	assert.Len(t, h.inbox(t, admin2.ID), 1)
	assert.Empty(t, h.inbox(t, author.ID))
}

// failingNotificationRepo fails every write.
type failingNotificationRepo struct {
	repository.NotificationRepository
}

func (failingNotificationRepo) Create(context.Context, *models.Notification) error {
	return errors.New("disk full")
}

func TestNotificationService_PersistFailureSkipsPush(t *testing.T) {
	pusher := &recordingPusher{}
	svc := NewNotificationService(failingNotificationRepo{}, nil, pusher)

	_, err := svc.Create(context.Background(), CreateNotificationInput{
		RecipientID: 7,
		Content:     "hi",
		Draft:       models.SystemNotification{},
	})
	require.Error(t, err)
	assert.Empty(t, pusher.forUser(7))
}
