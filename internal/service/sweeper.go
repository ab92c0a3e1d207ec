package service

import (
	"context"
	"log/slog"
	"time"

	"inkwell/internal/observability"
	"inkwell/internal/repository"
)

// TrendingSweeper periodically rescores approved posts so scores keep
// decaying for posts nobody touches.
type TrendingSweeper struct {
	posts    repository.PostRepository
	scorer   *Scorer
	interval time.Duration
	batch    int
}

func NewTrendingSweeper(posts repository.PostRepository, scorer *Scorer, interval time.Duration, batch int) *TrendingSweeper {
	if batch <= 0 {
		batch = 200
	}
	return &TrendingSweeper{posts: posts, scorer: scorer, interval: interval, batch: batch}
}

// Run sweeps on every tick until ctx is done. A non-positive interval disables it.
func (s *TrendingSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "trending sweep failed", slog.String("error", err.Error()), slog.Int("rescored", n))
				continue
			}
			slog.InfoContext(ctx, "trending sweep complete", slog.Int("rescored", n))
		}
	}
}

// SweepOnce rescores every approved post in id order and returns how many were updated.
func (s *TrendingSweeper) SweepOnce(ctx context.Context) (int, error) {
	var afterID uint
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		rows, err := s.posts.ScoreBatch(ctx, afterID, s.batch)
		if err != nil {
			return total, err
		}
		for _, row := range rows {
			score := s.scorer.Score(row.LikesCount, row.CommentsCount, row.ViewsCount, row.CreatedAt)
			if err := s.posts.UpdateScore(ctx, row.ID, score); err != nil {
				return total, err
			}
			total++
			observability.TrendingSweepPosts.Inc()
		}
		if len(rows) < s.batch {
			return total, nil
		}
		afterID = rows[len(rows)-1].ID
	}
}
