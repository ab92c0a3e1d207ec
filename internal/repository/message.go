package repository

import (
	"context"
	"errors"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// MessageRepository persists direct messages and per-participant deletions.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	Conversation(ctx context.Context, userID, peerID uint, limit, offset int) ([]models.Message, error)
	CountConversation(ctx context.Context, userID, peerID uint) (int64, error)
	Visible(ctx context.Context, userID uint) ([]models.Message, error)
	MarkRead(ctx context.Context, id uint) error
	HideFor(ctx context.Context, msg *models.Message, userID uint) (purged bool, err error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	return internal(r.db.WithContext(ctx).Omit("Sender", "Receiver").Create(msg).Error)
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, notFoundOr(err, "Message", id)
	}
	return &msg, nil
}

const notHiddenFor = "NOT EXISTS (SELECT 1 FROM message_deletions md WHERE md.message_id = messages.id AND md.user_id = ?)"

func (r *messageRepository) conversation(ctx context.Context, userID, peerID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("(messages.sender_id = ? AND messages.receiver_id = ?) OR (messages.sender_id = ? AND messages.receiver_id = ?)",
			userID, peerID, peerID, userID).
		Where(notHiddenFor, userID)
}

// Conversation returns messages between the pair, oldest first, minus those userID hid.
func (r *messageRepository) Conversation(ctx context.Context, userID, peerID uint, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	q := r.conversation(ctx, userID, peerID).
		Preload("Sender").
		Preload("Receiver").
		Order("messages.created_at ASC").
		Order("messages.id ASC").
		Limit(limit)
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&msgs).Error
	return msgs, internal(err)
}

func (r *messageRepository) CountConversation(ctx context.Context, userID, peerID uint) (int64, error) {
	var n int64
	err := r.conversation(ctx, userID, peerID).Count(&n).Error
	return n, internal(err)
}

// Visible returns every message userID can still see, newest first.
func (r *messageRepository) Visible(ctx context.Context, userID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Where("messages.sender_id = ? OR messages.receiver_id = ?", userID, userID).
		Where(notHiddenFor, userID).
		Order("messages.created_at DESC").
		Order("messages.id DESC").
		Find(&msgs).Error
	return msgs, internal(err)
}

func (r *messageRepository) MarkRead(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		UpdateColumn("is_read", true).Error
	return internal(err)
}

var errAlreadyHidden = errors.New("message already hidden")

// HideFor records that userID deleted msg. Once both participants have, the
// message and its deletion rows are removed and purged is true.
func (r *messageRepository) HideFor(ctx context.Context, msg *models.Message, userID uint) (bool, error) {
	purged := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.MessageDeletion{}).
			Where("message_id = ? AND user_id = ?", msg.ID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errAlreadyHidden
		}
		if err := tx.Create(&models.MessageDeletion{MessageID: msg.ID, UserID: userID}).Error; err != nil {
			return err
		}

		var hiders int64
		if err := tx.Model(&models.MessageDeletion{}).
			Where("message_id = ? AND user_id IN ?", msg.ID, []uint{msg.SenderID, msg.ReceiverID}).
			Count(&hiders).Error; err != nil {
			return err
		}
		if hiders < 2 {
			return nil
		}
		if err := tx.Where("message_id = ?", msg.ID).Delete(&models.MessageDeletion{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Message{}, msg.ID).Error; err != nil {
			return err
		}
		purged = true
		return nil
	})
	if errors.Is(err, errAlreadyHidden) || isUniqueConstraintError(err) {
		return false, nil
	}
	return purged, internal(err)
}
