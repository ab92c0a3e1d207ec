package service

import (
	"context"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// FollowResult reports the follow state after a toggle.
type FollowResult struct {
	Following bool `json:"following"`
}

// TagService maintains tag counters, popularity and per-user affinity.
type TagService struct {
	repo       repository.TagRepository
	popularTTL time.Duration
}

func NewTagService(repo repository.TagRepository, popularTTL time.Duration) *TagService {
	return &TagService{repo: repo, popularTTL: popularTTL}
}

// Attach resolves names to tags, bumping each tag's post count. The result
// keeps first-seen order and holds each tag once.
func (s *TagService) Attach(ctx context.Context, names []string) ([]models.Tag, error) {
	normalized := models.NormalizeTagNames(names)
	tags := make([]models.Tag, 0, len(normalized))
	seen := make(map[uint]struct{}, len(normalized))
	for _, name := range normalized {
		tag, err := s.repo.FindOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[tag.ID]; dup {
			// Two names collapsed onto one slug; undo the extra increment.
			if err := s.repo.Decrement(ctx, []uint{tag.ID}); err != nil {
				return nil, err
			}
			continue
		}
		seen[tag.ID] = struct{}{}
		tags = append(tags, *tag)
	}
	if len(tags) > 0 {
		cache.InvalidatePopularTags(ctx)
	}
	return tags, nil
}

// Detach decrements the post count of each tag, flooring at zero.
func (s *TagService) Detach(ctx context.Context, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	if err := s.repo.Decrement(ctx, ids); err != nil {
		return err
	}
	cache.InvalidatePopularTags(ctx)
	return nil
}

// Resolve returns the existing tags for already-normalized names.
func (s *TagService) Resolve(ctx context.Context, names []string) ([]models.Tag, error) {
	return s.repo.FindByNames(ctx, names)
}

func (s *TagService) TopByPopularity(ctx context.Context, limit int) ([]models.Tag, error) {
	var tags []models.Tag
	err := cache.Aside(ctx, cache.PopularTagsKey(limit), &tags, s.popularTTL, func() error {
		var err error
		tags, err = s.repo.TopByPopularity(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// AffinityFor returns the tags userID follows, most used first.
func (s *TagService) AffinityFor(ctx context.Context, userID uint, limit int) ([]models.Tag, error) {
	return s.repo.FollowedBy(ctx, userID, limit)
}

func (s *TagService) ToggleFollow(ctx context.Context, userID uint, slug string) (*FollowResult, error) {
	tag, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	following, err := s.repo.IsFollowing(ctx, userID, tag.ID)
	if err != nil {
		return nil, err
	}
	if following {
		err = s.repo.Unfollow(ctx, userID, tag.ID)
	} else {
		err = s.repo.Follow(ctx, userID, tag.ID)
	}
	if err != nil {
		return nil, err
	}
	return &FollowResult{Following: !following}, nil
}
