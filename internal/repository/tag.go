package repository

import (
	"context"
	"errors"
	"fmt"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// TagRepository persists tags, their post counters and follower edges.
type TagRepository interface {
	FindByNames(ctx context.Context, names []string) ([]models.Tag, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tag, error)
	FindOrCreate(ctx context.Context, name string) (*models.Tag, error)
	Decrement(ctx context.Context, ids []uint) error
	TopByPopularity(ctx context.Context, limit int) ([]models.Tag, error)
	FollowedBy(ctx context.Context, userID uint, limit int) ([]models.Tag, error)
	IsFollowing(ctx context.Context, userID, tagID uint) (bool, error)
	Follow(ctx context.Context, userID, tagID uint) error
	Unfollow(ctx context.Context, userID, tagID uint) error
	Search(ctx context.Context, q string, limit int) ([]models.Tag, error)
	CountSearch(ctx context.Context, q string) (int64, error)
}

type tagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) FindByNames(ctx context.Context, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var tags []models.Tag
	err := r.db.WithContext(ctx).Where("name IN ?", names).Find(&tags).Error
	return tags, internal(err)
}

func (r *tagRepository) FindBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tag).Error; err != nil {
		return nil, notFoundOr(err, "Tag", slug)
	}
	return &tag, nil
}

func (r *tagRepository) lookup(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// maxSlugAttempts bounds the suffixes tried when distinct names share a slug.
const maxSlugAttempts = 50

// freeSlug returns the first unused slug candidate for name.
func (r *tagRepository) freeSlug(ctx context.Context, name string, from int) (int, string, error) {
	base := models.Slugify(name)
	var taken []string
	err := r.db.WithContext(ctx).Model(&models.Tag{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &taken).Error
	if err != nil {
		return 0, "", err
	}
	used := make(map[string]bool, len(taken))
	for _, slug := range taken {
		used[slug] = true
	}
	for n := from; n < from+maxSlugAttempts; n++ {
		if candidate := models.SlugCandidate(name, n); !used[candidate] {
			return n, candidate, nil
		}
	}
	return 0, "", fmt.Errorf("no free slug for tag %q", name)
}

// FindOrCreate bumps the post counter of the named tag, creating it with a
// count of one when it does not exist. name must already be normalized.
// Tags are resolved by name only; a new name whose slug is taken gets the
// next numbered slug.
func (r *tagRepository) FindOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	tag, err := r.lookup(ctx, name)
	if err == nil {
		return r.increment(ctx, tag)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewInternalError(err)
	}

	next := 1
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		n, slug, err := r.freeSlug(ctx, name, next)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		tag = &models.Tag{Name: name, Slug: slug, PostCount: 1}
		err = r.db.WithContext(ctx).Create(tag).Error
		if err == nil {
			return tag, nil
		}
		if !isUniqueConstraintError(err) {
			return nil, models.NewInternalError(err)
		}
		// Either a concurrent creator won the name, or someone took the slug.
		if existing, lerr := r.lookup(ctx, name); lerr == nil {
			return r.increment(ctx, existing)
		}
		next = n + 1
	}
	return nil, models.NewInternalError(fmt.Errorf("could not create tag %q", name))
}

func (r *tagRepository) increment(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	err := r.db.WithContext(ctx).Model(&models.Tag{ID: tag.ID}).
		UpdateColumn("post_count", gorm.Expr("post_count + 1")).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	tag.PostCount++
	return tag, nil
}

// Decrement lowers the post counter of each tag, never below zero.
func (r *tagRepository) Decrement(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&models.Tag{}).
		Where("id IN ?", ids).
		UpdateColumn("post_count", gorm.Expr("CASE WHEN post_count > 0 THEN post_count - 1 ELSE 0 END")).Error
	return internal(err)
}

func (r *tagRepository) TopByPopularity(ctx context.Context, limit int) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).
		Where("post_count > 0").
		Order("post_count DESC").
		Order("name ASC").
		Limit(limit).
		Find(&tags).Error
	return tags, internal(err)
}

// FollowedBy returns the user's followed tags, most used first.
func (r *tagRepository) FollowedBy(ctx context.Context, userID uint, limit int) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).
		Joins("JOIN tag_followers tf ON tf.tag_id = tags.id").
		Where("tf.user_id = ?", userID).
		Order("tags.post_count DESC").
		Order("tags.name ASC").
		Limit(limit).
		Find(&tags).Error
	return tags, internal(err)
}

func (r *tagRepository) IsFollowing(ctx context.Context, userID, tagID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Table("tag_followers").
		Where("user_id = ? AND tag_id = ?", userID, tagID).
		Count(&n).Error
	return n > 0, internal(err)
}

func (r *tagRepository) Follow(ctx context.Context, userID, tagID uint) error {
	err := r.db.WithContext(ctx).
		Exec("INSERT INTO tag_followers (tag_id, user_id) VALUES (?, ?)", tagID, userID).Error
	if err != nil && !isUniqueConstraintError(err) {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *tagRepository) Unfollow(ctx context.Context, userID, tagID uint) error {
	err := r.db.WithContext(ctx).
		Exec("DELETE FROM tag_followers WHERE tag_id = ? AND user_id = ?", tagID, userID).Error
	return internal(err)
}

func (r *tagRepository) searchQuery(ctx context.Context, q string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Tag{}).
		Where("LOWER(name) LIKE ? ESCAPE '\\'", containsPattern(q))
}

func (r *tagRepository) Search(ctx context.Context, q string, limit int) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.searchQuery(ctx, q).Order("post_count DESC").Order("name ASC").Limit(limit).Find(&tags).Error
	return tags, internal(err)
}

func (r *tagRepository) CountSearch(ctx context.Context, q string) (int64, error) {
	var n int64
	err := r.searchQuery(ctx, q).Count(&n).Error
	return n, internal(err)
}
