package service

import (
	"context"
	"strconv"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultFeedLimit = 10
	maxFeedLimit     = 100
)

// FeedQuery is the caller-facing feed request.
type FeedQuery struct {
	Search   string
	Tags     []string
	AuthorID uint
	SortBy   string
	Order    string
	Page     int
	Limit    int

	// UnverifiedViewer marks a viewer named only by a query parameter. Likes
	// are still annotated for it but the first page is not personalized.
	UnverifiedViewer bool
}

// FeedPage is the feed envelope. TotalPosts counts the base query, so it does
// not reflect how a personalized first page was assembled.
type FeedPage struct {
	Posts      []models.Post `json:"posts"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
	TotalPosts int64         `json:"totalPosts"`
}

// tagSource is what the feed needs from the tag index.
type tagSource interface {
	Resolve(ctx context.Context, names []string) ([]models.Tag, error)
	AffinityFor(ctx context.Context, userID uint, limit int) ([]models.Tag, error)
	TopByPopularity(ctx context.Context, limit int) ([]models.Tag, error)
}

type FeedConfig struct {
	AffinityTags int
	TrendingTags int
	// Personalize gates the personalized first page per viewer. Nil means always.
	Personalize func(userID uint) bool
}

// FeedService assembles approved-post pages, personalizing the first page for a viewer.
type FeedService struct {
	posts repository.PostRepository
	likes repository.LikeRepository
	tags  tagSource
	cfg   FeedConfig
}

func NewFeedService(posts repository.PostRepository, likes repository.LikeRepository, tags tagSource, cfg FeedConfig) *FeedService {
	if cfg.AffinityTags <= 0 {
		cfg.AffinityTags = 5
	}
	if cfg.TrendingTags <= 0 {
		cfg.TrendingTags = 5
	}
	return &FeedService{posts: posts, likes: likes, tags: tags, cfg: cfg}
}

func (s *FeedService) Assemble(ctx context.Context, q FeedQuery, viewerID *uint) (*FeedPage, error) {
	ctx, span := observability.StartSpan(ctx, "feed.assemble",
		attribute.String("feed.sort", q.SortBy),
		attribute.Bool("feed.has_viewer", viewerID != nil))
	page, err := s.assemble(ctx, q, viewerID)
	observability.EndSpan(span, err)
	return page, err
}

func (s *FeedService) assemble(ctx context.Context, q FeedQuery, viewerID *uint) (*FeedPage, error) {
	page, limit := normalizePage(q.Page, q.Limit, defaultFeedLimit, maxFeedLimit)
	empty := &FeedPage{Posts: []models.Post{}, Page: page, Limit: limit}

	base := repository.PostFilter{
		Status:   models.PostApproved,
		Search:   q.Search,
		AuthorID: q.AuthorID,
	}
	if names := models.NormalizeTagNames(q.Tags); len(names) > 0 {
		tags, err := s.tags.Resolve(ctx, names)
		if err != nil {
			return nil, err
		}
		if len(tags) == 0 {
			return empty, nil
		}
		base.TagIDs = tagIDs(tags)
	}
	sort := repository.PostSort{Mode: repository.ParseSortMode(q.SortBy), Ascending: q.Order == "asc"}

	total, err := s.posts.Count(ctx, base)
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	personalized := false
	if viewerID != nil && !q.UnverifiedViewer && page == 1 && s.personalizes(*viewerID) {
		posts, personalized, err = s.personalized(ctx, *viewerID, base, sort, limit)
	}
	if err != nil {
		return nil, err
	}
	if !personalized {
		posts, err = s.posts.List(ctx, base, sort, limit, offsetFor(page, limit))
		if err != nil {
			return nil, err
		}
	}
	observability.FeedRequests.WithLabelValues(string(sort.Mode), strconv.FormatBool(personalized)).Inc()

	if err := annotateLikes(ctx, s.likes, posts, viewerID); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &FeedPage{
		Posts:      posts,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
		TotalPosts: total,
	}, nil
}

func (s *FeedService) personalizes(userID uint) bool {
	return s.cfg.Personalize == nil || s.cfg.Personalize(userID)
}

// personalized picks posts carrying the viewer's affinity or trending tags and
// backfills from the base filter. ok is false when there is nothing to personalize on.
func (s *FeedService) personalized(ctx context.Context, viewerID uint, base repository.PostFilter, sort repository.PostSort, limit int) (posts []models.Post, ok bool, err error) {
	affinity, err := s.tags.AffinityFor(ctx, viewerID, s.cfg.AffinityTags)
	if err != nil {
		return nil, false, err
	}
	trending, err := s.tags.TopByPopularity(ctx, s.cfg.TrendingTags)
	if err != nil {
		return nil, false, err
	}
	union := unionTagIDs(affinity, trending)
	if len(union) == 0 {
		return nil, false, nil
	}

	withTags := base
	withTags.AlsoTagIDs = union
	posts, err = s.posts.List(ctx, withTags, sort, limit, 0)
	if err != nil {
		return nil, false, err
	}
	if len(posts) >= limit {
		return posts, true, nil
	}

	rest := base
	rest.ExcludeIDs = make([]uint, 0, len(posts))
	for _, p := range posts {
		rest.ExcludeIDs = append(rest.ExcludeIDs, p.ID)
	}
	backfill, err := s.posts.List(ctx, rest, sort, limit-len(posts), 0)
	if err != nil {
		return nil, false, err
	}
	return append(posts, backfill...), true, nil
}

// annotateLikes overwrites LikesCount from the ledger and sets LikedByCurrentUser.
// It issues a single query for the whole page.
func annotateLikes(ctx context.Context, likes repository.LikeRepository, posts []models.Post, viewerID *uint) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	rows, err := likes.ListForPosts(ctx, ids)
	if err != nil {
		return err
	}

	likers := make(map[uint][]uint, len(posts))
	for _, row := range rows {
		if row.PostID != nil {
			likers[*row.PostID] = append(likers[*row.PostID], row.UserID)
		}
	}
	for i := range posts {
		users := likers[posts[i].ID]
		posts[i].LikesCount = int64(len(users))
		posts[i].LikedByCurrentUser = false
		if viewerID == nil {
			continue
		}
		for _, u := range users {
			if u == *viewerID {
				posts[i].LikedByCurrentUser = true
				break
			}
		}
	}
	return nil
}

func tagIDs(tags []models.Tag) []uint {
	ids := make([]uint, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}

func unionTagIDs(sets ...[]models.Tag) []uint {
	seen := make(map[uint]struct{})
	var ids []uint
	for _, set := range sets {
		for _, t := range set {
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			ids = append(ids, t.ID)
		}
	}
	return ids
}
