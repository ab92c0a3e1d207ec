package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingPusher captures realtime pushes.
type recordingPusher struct {
	mu     sync.Mutex
	pushed []pushed
}

type pushed struct {
	userID uint
	n      *models.Notification
}

func (p *recordingPusher) Push(userID uint, n *models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, pushed{userID: userID, n: n})
}

func (p *recordingPusher) forUser(userID uint) []*models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*models.Notification
	for _, e := range p.pushed {
		if e.userID == userID {
			out = append(out, e.n)
		}
	}
	return out
}

// recordingPublisher captures domain events.
type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return p.err
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

// harness wires every service over one in-memory database.
type harness struct {
	db     *gorm.DB
	pusher *recordingPusher
	pub    *recordingPublisher

	userRepo  repository.UserRepository
	postRepo  repository.PostRepository
	likeRepo  repository.LikeRepository
	tagRepo   repository.TagRepository
	notifRepo repository.NotificationRepository

	notifications *NotificationService
	tags          *TagService
	likes         *LikeService
	feed          *FeedService
	posts         *PostService
	comments      *CommentService
	messages      *MessageService
	users         *UserService
	search        *SearchService
	admin         *AdminService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	h := &harness{
		db:        db,
		pusher:    &recordingPusher{},
		pub:       &recordingPublisher{},
		userRepo:  repository.NewUserRepository(db),
		postRepo:  repository.NewPostRepository(db),
		likeRepo:  repository.NewLikeRepository(db),
		tagRepo:   repository.NewTagRepository(db),
		notifRepo: repository.NewNotificationRepository(db),
	}
	commentRepo := repository.NewCommentRepository(db)
	scorer := NewScorer(nil)
	isAdmin := AdminCheck(h.userRepo)

	h.notifications = NewNotificationService(h.notifRepo, h.userRepo, h.pusher)
	h.tags = NewTagService(h.tagRepo, 0)
	h.likes = NewLikeService(h.likeRepo, h.postRepo, commentRepo, h.userRepo, h.notifications, scorer, h.pub)
	h.feed = NewFeedService(h.postRepo, h.likeRepo, h.tags, FeedConfig{})
	h.posts = NewPostService(h.postRepo, h.likeRepo, h.userRepo, h.tags, h.notifications, scorer, h.pub, isAdmin)
	h.comments = NewCommentService(commentRepo, h.postRepo, h.likeRepo, h.userRepo, h.notifications, scorer, isAdmin)
	h.messages = NewMessageService(repository.NewMessageRepository(db), h.userRepo, h.notifications)
	h.users = NewUserService(h.userRepo, h.notifications)
	h.search = NewSearchService(h.feed, h.userRepo, h.tagRepo)
	h.admin = NewAdminService(repository.NewStatsRepository(db), isAdmin)
	return h
}

// inbox returns every visible notification for userID, newest first.
func (h *harness) inbox(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	page, err := h.notifications.List(context.Background(), userID, 1, 100)
	require.NoError(t, err)
	return page.Data
}

func (h *harness) reloadPost(t *testing.T, id uint) *models.Post {
	t.Helper()
	var p models.Post
	require.NoError(t, h.db.First(&p, id).Error)
	return &p
}

func (h *harness) reloadTag(t *testing.T, id uint) models.Tag {
	t.Helper()
	var tag models.Tag
	require.NoError(t, h.db.First(&tag, id).Error)
	return tag
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeForbidden)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeNotFound)
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func uintPtr(v uint) *uint { return &v }

func tagsOf(tags ...models.Tag) []models.Tag { return tags }
