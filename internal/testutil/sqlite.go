// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens an in-memory database with the full schema.
// A single connection is used, otherwise every pooled connection would see
// its own empty database.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

var seq atomic.Uint64

// CreateUser inserts a user with a unique username derived from name.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	n := seq.Add(1)
	u := &models.User{
		Username: fmt.Sprintf("%s%d", name, n),
		Email:    fmt.Sprintf("%s%d@example.com", name, n),
		Password: "x",
		Name:     name,
		Role:     models.RoleUser,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateAdmin inserts a user with the admin role.
func CreateAdmin(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := CreateUser(t, db, name)
	require.NoError(t, db.Model(u).Update("role", models.RoleAdmin).Error)
	u.Role = models.RoleAdmin
	return u
}

// PostOption tweaks a fixture post before insert.
type PostOption func(*models.Post)

func WithStatus(s models.PostStatus) PostOption {
	return func(p *models.Post) { p.Status = s }
}

func WithCreatedAt(ts time.Time) PostOption {
	return func(p *models.Post) { p.CreatedAt = ts }
}

func WithCounters(likes, comments, views int64) PostOption {
	return func(p *models.Post) {
		p.LikesCount = likes
		p.CommentsCount = comments
		p.ViewsCount = views
	}
}

func WithTitle(title string) PostOption {
	return func(p *models.Post) { p.Title = title }
}

func WithScore(score float64) PostOption {
	return func(p *models.Post) { p.TrendingScore = score }
}

// CreatePost inserts an approved post by author, linked to tags.
func CreatePost(t testing.TB, db *gorm.DB, author *models.User, tags []models.Tag, opts ...PostOption) *models.Post {
	t.Helper()
	n := seq.Add(1)
	p := &models.Post{
		Title:  fmt.Sprintf("post %d", n),
		Body:   fmt.Sprintf("body of post %d", n),
		UserID: author.ID,
		Status: models.PostApproved,
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, db.Omit("Author", "Tags").Create(p).Error)
	for _, tag := range tags {
		require.NoError(t, db.Exec("INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)", p.ID, tag.ID).Error)
	}
	p.Tags = tags
	return p
}

// CreateTag inserts a tag with the given post counter.
func CreateTag(t testing.TB, db *gorm.DB, name string, postCount int64) models.Tag {
	t.Helper()
	tag := models.Tag{Name: name, PostCount: postCount}
	require.NoError(t, db.Create(&tag).Error)
	return tag
}

// FollowTag links user to tag as a follower.
func FollowTag(t testing.TB, db *gorm.DB, user *models.User, tag models.Tag) {
	t.Helper()
	require.NoError(t, db.Exec("INSERT INTO tag_followers (tag_id, user_id) VALUES (?, ?)", tag.ID, user.ID).Error)
}
