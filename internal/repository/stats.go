package repository

import (
	"context"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// Overview holds site-wide totals for the admin dashboard.
type Overview struct {
	Users           int64 `json:"users"`
	Posts           int64 `json:"posts"`
	ApprovedPosts   int64 `json:"approvedPosts"`
	PendingPosts    int64 `json:"pendingPosts"`
	RejectedPosts   int64 `json:"rejectedPosts"`
	Comments        int64 `json:"comments"`
	FlaggedComments int64 `json:"flaggedComments"`
}

// AuthorStat is an author ranked by approved post count.
type AuthorStat struct {
	UserID    uint   `json:"userId"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	PostCount int64  `json:"postCount"`
}

type StatsRepository interface {
	Overview(ctx context.Context) (*Overview, error)
	TopPosts(ctx context.Context, limit int) ([]models.Post, error)
	TopAuthors(ctx context.Context, limit int) ([]AuthorStat, error)
	PostTimesSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

type statsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Overview(ctx context.Context) (*Overview, error) {
	db := r.db.WithContext(ctx)
	var o Overview
	if err := db.Model(&models.User{}).Count(&o.Users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var byStatus []struct {
		Status models.PostStatus
		N      int64
	}
	if err := db.Model(&models.Post{}).Select("status, COUNT(*) AS n").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range byStatus {
		o.Posts += row.N
		switch row.Status {
		case models.PostApproved:
			o.ApprovedPosts = row.N
		case models.PostPending:
			o.PendingPosts = row.N
		case models.PostRejected:
			o.RejectedPosts = row.N
		}
	}

	if err := db.Model(&models.Comment{}).Where("is_deleted = ?", false).Count(&o.Comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := db.Model(&models.Comment{}).Where("is_deleted = ? AND flagged = ?", false, true).Count(&o.FlaggedComments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &o, nil
}

func (r *statsRepository) TopPosts(ctx context.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("status = ?", models.PostApproved).
		Order("likes_count DESC").
		Order("views_count DESC").
		Order("id DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, internal(err)
}

func (r *statsRepository) TopAuthors(ctx context.Context, limit int) ([]AuthorStat, error) {
	var rows []AuthorStat
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("users.id AS user_id, users.username, users.name, COUNT(posts.id) AS post_count").
		Joins("JOIN users ON users.id = posts.user_id").
		Where("posts.status = ?", models.PostApproved).
		Group("users.id, users.username, users.name").
		Order("post_count DESC").
		Order("users.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, internal(err)
}

// PostTimesSince returns creation times so bucketing can happen in Go.
func (r *statsRepository) PostTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Pluck("created_at", &times).Error
	return times, internal(err)
}
