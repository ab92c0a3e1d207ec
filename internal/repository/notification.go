package repository

import (
	"context"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository stores notifications. Rows are never physically deleted.
// now is passed in so expiry is evaluated against a single clock.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipientID uint, now time.Time, limit, offset int) ([]models.Notification, error)
	Count(ctx context.Context, recipientID uint, now time.Time) (int64, error)
	CountUnread(ctx context.Context, recipientID uint, now time.Time) (int64, error)
	MarkRead(ctx context.Context, recipientID, id uint, now time.Time) (int64, error)
	MarkAllRead(ctx context.Context, recipientID uint, now time.Time) (int64, error)
	SoftDelete(ctx context.Context, recipientID, id uint) (int64, error)
	SoftDeleteAll(ctx context.Context, recipientID uint) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return internal(r.db.WithContext(ctx).Omit("Sender").Create(n).Error)
}

func (r *notificationRepository) visible(ctx context.Context, recipientID uint, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_deleted = ?", recipientID, false).
		Where("(expires_at IS NULL OR expires_at > ?)", now)
}

func (r *notificationRepository) List(ctx context.Context, recipientID uint, now time.Time, limit, offset int) ([]models.Notification, error) {
	var rows []models.Notification
	q := r.visible(ctx, recipientID, now).
		Preload("Sender").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&rows).Error
	return rows, internal(err)
}

func (r *notificationRepository) Count(ctx context.Context, recipientID uint, now time.Time) (int64, error) {
	var n int64
	err := r.visible(ctx, recipientID, now).Count(&n).Error
	return n, internal(err)
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uint, now time.Time) (int64, error) {
	var n int64
	err := r.visible(ctx, recipientID, now).Where("is_read = ?", false).Count(&n).Error
	return n, internal(err)
}

func markRead(q *gorm.DB, now time.Time) (int64, error) {
	res := q.Where("is_read = ? AND is_deleted = ?", false, false).
		UpdateColumns(map[string]interface{}{"is_read": true, "read_at": now, "updated_at": now})
	return res.RowsAffected, internal(res.Error)
}

// MarkRead only transitions an unread, undeleted row owned by recipientID.
func (r *notificationRepository) MarkRead(ctx context.Context, recipientID, id uint, now time.Time) (int64, error) {
	return markRead(r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID), now)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint, now time.Time) (int64, error) {
	return markRead(r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ?", recipientID), now)
}

func softDelete(q *gorm.DB) (int64, error) {
	res := q.Where("is_deleted = ?", false).UpdateColumn("is_deleted", true)
	return res.RowsAffected, internal(res.Error)
}

func (r *notificationRepository) SoftDelete(ctx context.Context, recipientID, id uint) (int64, error) {
	return softDelete(r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID))
}

func (r *notificationRepository) SoftDeleteAll(ctx context.Context, recipientID uint) (int64, error) {
	return softDelete(r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ?", recipientID))
}
