package service

import (
	"context"
	"sort"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// SearchSection is one result group of a full search.
type SearchSection[T any] struct {
	Count int   `json:"count"`
	Total int64 `json:"total"`
	Data  []T   `json:"data"`
}

type SearchResult struct {
	Posts   SearchSection[models.Post]       `json:"posts"`
	Authors SearchSection[models.PublicUser] `json:"authors"`
	Tags    SearchSection[models.Tag]        `json:"tags"`
}

type PostSuggestion struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

type TagSuggestion struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Suggestions struct {
	Posts   []PostSuggestion    `json:"posts"`
	Authors []models.PublicUser `json:"authors"`
	Tags    []TagSuggestion     `json:"tags"`
}

// authorScanLimit caps how many candidate authors are ranked in memory.
const authorScanLimit = 200

type SearchService struct {
	feed  *FeedService
	users repository.UserRepository
	tags  repository.TagRepository
}

func NewSearchService(feed *FeedService, users repository.UserRepository, tags repository.TagRepository) *SearchService {
	return &SearchService{feed: feed, users: users, tags: tags}
}

func requireQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", models.NewValidationError("Search query is required")
	}
	return q, nil
}

// Search runs the query against posts (trending order), authors and tags.
func (s *SearchService) Search(ctx context.Context, q string, page, limit int, viewerID *uint) (*SearchResult, error) {
	q, err := requireQuery(q)
	if err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, defaultFeedLimit, maxFeedLimit)

	feed, err := s.feed.Assemble(ctx, FeedQuery{Search: q, SortBy: string(repository.SortTrending), Page: page, Limit: limit}, viewerID)
	if err != nil {
		return nil, err
	}

	authors, authorTotal, err := s.rankedAuthors(ctx, q, limit)
	if err != nil {
		return nil, err
	}

	tags, err := s.tags.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	tagTotal, err := s.tags.CountSearch(ctx, q)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []models.Tag{}
	}

	return &SearchResult{
		Posts:   SearchSection[models.Post]{Count: len(feed.Posts), Total: feed.TotalPosts, Data: feed.Posts},
		Authors: SearchSection[models.PublicUser]{Count: len(authors), Total: authorTotal, Data: authors},
		Tags:    SearchSection[models.Tag]{Count: len(tags), Total: tagTotal, Data: tags},
	}, nil
}

// rankedAuthors scores a name hit 2 and a username hit 1, then orders by score and username.
func (s *SearchService) rankedAuthors(ctx context.Context, q string, limit int) ([]models.PublicUser, int64, error) {
	total, err := s.users.CountAuthors(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	candidates, err := s.users.SearchAuthors(ctx, q, authorScanLimit)
	if err != nil {
		return nil, 0, err
	}

	needle := strings.ToLower(q)
	type scored struct {
		user  models.User
		score int
	}
	ranked := make([]scored, 0, len(candidates))
	for _, u := range candidates {
		score := 0
		if strings.Contains(strings.ToLower(u.Name), needle) {
			score += 2
		}
		if strings.Contains(strings.ToLower(u.Username), needle) {
			score++
		}
		ranked = append(ranked, scored{user: u, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].user.Username < ranked[j].user.Username
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]models.PublicUser, 0, len(ranked))
	for i := range ranked {
		out = append(out, ranked[i].user.Public())
	}
	return out, total, nil
}

// Suggest returns a few lightweight matches for type-ahead.
func (s *SearchService) Suggest(ctx context.Context, q string, limit int) (*Suggestions, error) {
	q, err := requireQuery(q)
	if err != nil {
		return nil, err
	}
	_, limit = normalizePage(1, limit, 5, 20)

	feed, err := s.feed.Assemble(ctx, FeedQuery{Search: q, SortBy: string(repository.SortTrending), Limit: limit}, nil)
	if err != nil {
		return nil, err
	}
	out := &Suggestions{
		Posts:   make([]PostSuggestion, 0, len(feed.Posts)),
		Authors: []models.PublicUser{},
		Tags:    []TagSuggestion{},
	}
	for _, p := range feed.Posts {
		out.Posts = append(out.Posts, PostSuggestion{ID: p.ID, Title: p.Title})
	}

	authors, _, err := s.rankedAuthors(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	out.Authors = append(out.Authors, authors...)

	tags, err := s.tags.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		out.Tags = append(out.Tags, TagSuggestion{ID: t.ID, Name: t.Name, Slug: t.Slug})
	}
	return out, nil
}
