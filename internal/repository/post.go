package repository

import (
	"context"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// SortMode selects the feed ordering.
type SortMode string

const (
	SortNew      SortMode = "new"
	SortTrending SortMode = "trending"
	SortPopular  SortMode = "popular"
)

// ParseSortMode falls back to SortNew for unknown input.
func ParseSortMode(s string) SortMode {
	switch SortMode(s) {
	case SortTrending:
		return SortTrending
	case SortPopular:
		return SortPopular
	default:
		return SortNew
	}
}

// PostSort is an ordering. Ascending only applies to SortNew.
type PostSort struct {
	Mode      SortMode
	Ascending bool
}

// PostFilter narrows a post query. Zero values mean "no constraint".
type PostFilter struct {
	Status   models.PostStatus
	Search   string
	AuthorID uint
	// TagIDs matches posts carrying at least one of the ids.
	TagIDs []uint
	// AlsoTagIDs is a second, independent any-of tag constraint.
	AlsoTagIDs []uint
	ExcludeIDs []uint
}

// ScoreInputs is the subset of a post the trending sweep needs.
type ScoreInputs struct {
	ID            uint
	LikesCount    int64
	CommentsCount int64
	ViewsCount    int64
	CreatedAt     time.Time
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, tagIDs []uint) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	UpdateContent(ctx context.Context, post *models.Post) error
	ReplaceTags(ctx context.Context, postID uint, tagIDs []uint) error
	UpdateModeration(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error

	List(ctx context.Context, filter PostFilter, sort PostSort, limit, offset int) ([]models.Post, error)
	Count(ctx context.Context, filter PostFilter) (int64, error)

	IncrementViews(ctx context.Context, id uint) error
	UpdateScore(ctx context.Context, id uint, score float64) error
	SetLikesCount(ctx context.Context, id uint, n int64) error
	AdjustCommentsCount(ctx context.Context, id uint, delta int) error
	ScoreBatch(ctx context.Context, afterID uint, limit int) ([]ScoreInputs, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func insertPostTags(tx *gorm.DB, postID uint, tagIDs []uint) error {
	for _, tagID := range tagIDs {
		if err := tx.Exec("INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)", postID, tagID).Error; err != nil {
			return err
		}
	}
	return nil
}

// Create inserts the post and its tag links in one transaction. tagIDs must be unique.
func (r *postRepository) Create(ctx context.Context, post *models.Post, tagIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author", "Tags").Create(post).Error; err != nil {
			return err
		}
		return insertPostTags(tx, post.ID, tagIDs)
	})
	return internal(err)
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags").
		First(&post, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) UpdateContent(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(&models.Post{ID: post.ID}).Updates(map[string]interface{}{
		"title":       post.Title,
		"body":        post.Body,
		"cover_image": post.CoverImage,
	}).Error
	return internal(err)
}

func (r *postRepository) ReplaceTags(ctx context.Context, postID uint, tagIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM post_tags WHERE post_id = ?", postID).Error; err != nil {
			return err
		}
		return insertPostTags(tx, postID, tagIDs)
	})
	return internal(err)
}

func (r *postRepository) UpdateModeration(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(&models.Post{ID: post.ID}).Updates(map[string]interface{}{
		"status":           post.Status,
		"approved_by_id":   post.ApprovedByID,
		"approved_at":      post.ApprovedAt,
		"rejected_by_id":   post.RejectedByID,
		"rejection_reason": post.RejectionReason,
	}).Error
	return internal(err)
}

// Delete removes the post with its likes, comments (and their likes) and tag links.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE post_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return nil
	})
	return internal(err)
}

const hasAnyTag = "EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = posts.id AND pt.tag_id IN ?)"

func (r *postRepository) filtered(ctx context.Context, f PostFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Post{})
	if f.Status != "" {
		q = q.Where("posts.status = ?", f.Status)
	}
	if f.Search != "" {
		pattern := containsPattern(f.Search)
		q = q.Where("(LOWER(posts.title) LIKE ? ESCAPE '\\' OR LOWER(posts.body) LIKE ? ESCAPE '\\')", pattern, pattern)
	}
	if f.AuthorID != 0 {
		q = q.Where("posts.user_id = ?", f.AuthorID)
	}
	if len(f.TagIDs) > 0 {
		q = q.Where(hasAnyTag, f.TagIDs)
	}
	if len(f.AlsoTagIDs) > 0 {
		q = q.Where(hasAnyTag, f.AlsoTagIDs)
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where("posts.id NOT IN ?", f.ExcludeIDs)
	}
	return q
}

func applySort(q *gorm.DB, s PostSort) *gorm.DB {
	switch s.Mode {
	case SortTrending:
		q = q.Order("posts.trending_score DESC").Order("posts.created_at DESC")
	case SortPopular:
		q = q.Order("posts.likes_count DESC").Order("posts.comments_count DESC")
	default:
		if s.Ascending {
			q = q.Order("posts.created_at ASC")
		} else {
			q = q.Order("posts.created_at DESC")
		}
	}
	return q.Order("posts.id DESC")
}

func (r *postRepository) List(ctx context.Context, filter PostFilter, sort PostSort, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	q := applySort(r.filtered(ctx, filter), sort).
		Preload("Author").
		Preload("Tags").
		Limit(limit)
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context, filter PostFilter) (int64, error) {
	var n int64
	err := r.filtered(ctx, filter).Count(&n).Error
	return n, internal(err)
}

func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.Post{ID: id}).
		UpdateColumn("views_count", gorm.Expr("views_count + 1")).Error
	return internal(err)
}

func (r *postRepository) UpdateScore(ctx context.Context, id uint, score float64) error {
	err := r.db.WithContext(ctx).Model(&models.Post{ID: id}).
		UpdateColumn("trending_score", score).Error
	return internal(err)
}

func (r *postRepository) SetLikesCount(ctx context.Context, id uint, n int64) error {
	err := r.db.WithContext(ctx).Model(&models.Post{ID: id}).
		UpdateColumn("likes_count", n).Error
	return internal(err)
}

// AdjustCommentsCount adds delta to the cached counter, clamping at zero.
func (r *postRepository) AdjustCommentsCount(ctx context.Context, id uint, delta int) error {
	expr := gorm.Expr("comments_count + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN comments_count + ? > 0 THEN comments_count + ? ELSE 0 END", delta, delta)
	}
	err := r.db.WithContext(ctx).Model(&models.Post{ID: id}).
		UpdateColumn("comments_count", expr).Error
	return internal(err)
}

// ScoreBatch pages approved posts by id for the trending sweep.
func (r *postRepository) ScoreBatch(ctx context.Context, afterID uint, limit int) ([]ScoreInputs, error) {
	var rows []ScoreInputs
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("id, likes_count, comments_count, views_count, created_at").
		Where("status = ? AND id > ?", models.PostApproved, afterID).
		Order("id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, internal(err)
}
