package service

import (
	"context"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// Trending weights. Comments count 1.5x a like; a post loses half a point per hour.
const (
	likeWeight    = 2.0
	commentWeight = 3.0
	viewWeight    = 1.0
	hourlyDecay   = 0.5
)

// Scorer computes the linear-decay trending score.
type Scorer struct {
	now func() time.Time
}

// NewScorer returns a Scorer reading the clock from now, or time.Now when nil.
func NewScorer(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

func (s *Scorer) Score(likes, comments, views int64, createdAt time.Time) float64 {
	hours := s.now().Sub(createdAt).Hours()
	return float64(likes)*likeWeight +
		float64(comments)*commentWeight +
		float64(views)*viewWeight -
		hours*hourlyDecay
}

func (s *Scorer) ScorePost(p *models.Post) float64 {
	return s.Score(p.LikesCount, p.CommentsCount, p.ViewsCount, p.CreatedAt)
}

// Refresh recomputes p's score from its current counters and persists it.
func (s *Scorer) Refresh(ctx context.Context, posts repository.PostRepository, p *models.Post) error {
	p.TrendingScore = s.ScorePost(p)
	return posts.UpdateScore(ctx, p.ID, p.TrendingScore)
}
