package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	SoftDelete(ctx context.Context, id uint) error
	SetFlagged(ctx context.Context, id uint, flagged bool) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return internal(r.db.WithContext(ctx).Omit("Author").Create(comment).Error)
}

// GetByID also returns soft-deleted comments; callers decide visibility.
func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ? AND is_deleted = ?", postID, false).
		Order("created_at DESC").
		Order("id DESC").
		Find(&comments).Error
	return comments, internal(err)
}

func (r *commentRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.setFlag(ctx, id, "is_deleted", true)
}

func (r *commentRepository) SetFlagged(ctx context.Context, id uint, flagged bool) error {
	return r.setFlag(ctx, id, "flagged", flagged)
}

func (r *commentRepository) setFlag(ctx context.Context, id uint, column string, v bool) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).UpdateColumn(column, v)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}
