package service

import (
	"context"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// DayCount is one bucket of the posts-per-day series.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AdminStats struct {
	Overview    repository.Overview     `json:"overview"`
	TopPosts    []models.Post           `json:"topPosts"`
	TopAuthors  []repository.AuthorStat `json:"topAuthors"`
	PostsByDate []DayCount              `json:"postsByDate"`
}

type AdminService struct {
	stats   repository.StatsRepository
	isAdmin func(ctx context.Context, userID uint) (bool, error)
	now     func() time.Time
}

func NewAdminService(stats repository.StatsRepository, isAdmin func(ctx context.Context, userID uint) (bool, error)) *AdminService {
	return &AdminService{stats: stats, isAdmin: isAdmin, now: time.Now}
}

// Stats builds the dashboard. Days are UTC calendar days ending today, oldest first.
func (s *AdminService) Stats(ctx context.Context, adminID uint, days int) (*AdminStats, error) {
	ok, err := s.isAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("Admin access required")
	}
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}

	overview, err := s.stats.Overview(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.stats.TopPosts(ctx, 5)
	if err != nil {
		return nil, err
	}
	authors, err := s.stats.TopAuthors(ctx, 5)
	if err != nil {
		return nil, err
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))
	times, err := s.stats.PostTimesSince(ctx, start)
	if err != nil {
		return nil, err
	}

	series := make([]DayCount, days)
	index := make(map[string]int, days)
	for i := range series {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		series[i] = DayCount{Date: d}
		index[d] = i
	}
	for _, t := range times {
		if i, ok := index[t.UTC().Format("2006-01-02")]; ok {
			series[i].Count++
		}
	}

	if top == nil {
		top = []models.Post{}
	}
	if authors == nil {
		authors = []repository.AuthorStat{}
	}
	return &AdminStats{Overview: *overview, TopPosts: top, TopAuthors: authors, PostsByDate: series}, nil
}
