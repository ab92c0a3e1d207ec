package repository

import (
	"context"
	"errors"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// LikeTarget names exactly one liked entity.
type LikeTarget struct {
	PostID    uint
	CommentID uint
}

func (t LikeTarget) where(q *gorm.DB) *gorm.DB {
	if t.PostID != 0 {
		return q.Where("post_id = ?", t.PostID)
	}
	return q.Where("comment_id = ?", t.CommentID)
}

// LikeRepository is the like ledger. Counts are always computed from rows.
type LikeRepository interface {
	Find(ctx context.Context, userID uint, target LikeTarget) (*models.Like, error)
	Create(ctx context.Context, like *models.Like) error
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context, target LikeTarget) (int64, error)
	ListForPosts(ctx context.Context, postIDs []uint) ([]models.Like, error)
	CountForComments(ctx context.Context, commentIDs []uint) (map[uint]int64, error)
}

type likeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Find returns nil, nil when the user has not liked the target.
func (r *likeRepository) Find(ctx context.Context, userID uint, target LikeTarget) (*models.Like, error) {
	var like models.Like
	err := target.where(r.db.WithContext(ctx).Where("user_id = ?", userID)).First(&like).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &like, nil
}

// Create returns ErrDuplicate when the (user, target) pair already exists.
func (r *likeRepository) Create(ctx context.Context, like *models.Like) error {
	if err := like.Validate(); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := r.db.WithContext(ctx).Create(like).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *likeRepository) Delete(ctx context.Context, id uint) error {
	return internal(r.db.WithContext(ctx).Delete(&models.Like{}, id).Error)
}

func (r *likeRepository) Count(ctx context.Context, target LikeTarget) (int64, error) {
	var n int64
	err := target.where(r.db.WithContext(ctx).Model(&models.Like{})).Count(&n).Error
	return n, internal(err)
}

// ListForPosts returns every like row for exactly the given posts.
func (r *likeRepository) ListForPosts(ctx context.Context, postIDs []uint) ([]models.Like, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var likes []models.Like
	err := r.db.WithContext(ctx).
		Select("id, user_id, post_id").
		Where("post_id IN ?", postIDs).
		Find(&likes).Error
	return likes, internal(err)
}

func (r *likeRepository) CountForComments(ctx context.Context, commentIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(commentIDs))
	if len(commentIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		CommentID uint
		N         int64
	}
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Select("comment_id, COUNT(*) AS n").
		Where("comment_id IN ?", commentIDs).
		Group("comment_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		counts[row.CommentID] = row.N
	}
	return counts, nil
}
