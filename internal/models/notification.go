package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// NotificationType discriminates notification variants.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationMention NotificationType = "mention"
	NotificationMessage NotificationType = "message"
	NotificationAdmin   NotificationType = "admin"
	NotificationSystem  NotificationType = "system"
	NotificationPost    NotificationType = "post"
)

// NotificationMetadata is free-form context stored alongside a notification.
type NotificationMetadata struct {
	TargetURL string            `json:"targetUrl,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Notification is the persisted row. Rows are only ever soft-deleted.
type Notification struct {
	ID          uint                 `gorm:"primaryKey" json:"id"`
	RecipientID uint                 `gorm:"not null;index:idx_notification_recipient" json:"recipientId"`
	SenderID    *uint                `json:"senderId,omitempty"`
	Sender      *User                `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Type        NotificationType     `gorm:"size:20;not null" json:"type"`
	PostID      *uint                `json:"postId,omitempty"`
	CommentID   *uint                `json:"commentId,omitempty"`
	MessageID   *uint                `json:"messageId,omitempty"`
	Content     string               `gorm:"type:text;not null" json:"content"`
	Metadata    NotificationMetadata `gorm:"serializer:json;type:text" json:"metadata"`
	IsRead      bool                 `gorm:"not null;default:false;index:idx_notification_recipient" json:"isRead"`
	ReadAt      *time.Time           `json:"readAt,omitempty"`
	IsDeleted   bool                 `gorm:"not null;default:false;index:idx_notification_recipient" json:"-"`
	ExpiresAt   *time.Time           `gorm:"index" json:"expiresAt,omitempty"`
	CreatedAt   time.Time            `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// NotificationDraft is one variant of the notification sum type. Each variant
// carries exactly the references its type requires.
type NotificationDraft interface {
	Type() NotificationType
	refs() notificationRefs
	validate() error
}

type notificationRefs struct {
	PostID, CommentID, MessageID uint
}

func missingRef(t NotificationType, what string) error {
	return NewValidationError(fmt.Sprintf("%s notification requires %s", t, what))
}

// LikeNotification is sent to the owner of a liked post or comment.
type LikeNotification struct {
	PostID    uint
	CommentID uint
}

func (LikeNotification) Type() NotificationType { return NotificationLike }
func (d LikeNotification) refs() notificationRefs {
	return notificationRefs{PostID: d.PostID, CommentID: d.CommentID}
}
func (d LikeNotification) validate() error {
	if d.PostID == 0 {
		return missingRef(NotificationLike, "a post")
	}
	return nil
}

// CommentNotification covers both top-level comments and replies.
type CommentNotification struct {
	PostID    uint
	CommentID uint
}

func (CommentNotification) Type() NotificationType { return NotificationComment }
func (d CommentNotification) refs() notificationRefs {
	return notificationRefs{PostID: d.PostID, CommentID: d.CommentID}
}
func (d CommentNotification) validate() error {
	if d.PostID == 0 {
		return missingRef(NotificationComment, "a post")
	}
	return nil
}

// FollowNotification tells a user they gained a follower.
type FollowNotification struct{}

func (FollowNotification) Type() NotificationType { return NotificationFollow }
func (FollowNotification) refs() notificationRefs { return notificationRefs{} }
func (FollowNotification) validate() error { return nil }

// MentionNotification needs a post, a comment, or both.
type MentionNotification struct {
	PostID    uint
	CommentID uint
}

func (MentionNotification) Type() NotificationType { return NotificationMention }
func (d MentionNotification) refs() notificationRefs {
	return notificationRefs{PostID: d.PostID, CommentID: d.CommentID}
}
func (d MentionNotification) validate() error {
	if d.PostID == 0 && d.CommentID == 0 {
		return missingRef(NotificationMention, "a post or comment")
	}
	return nil
}

// MessageNotification points at a direct message.
type MessageNotification struct {
	MessageID uint
}

func (MessageNotification) Type() NotificationType { return NotificationMessage }
func (d MessageNotification) refs() notificationRefs {
	return notificationRefs{MessageID: d.MessageID}
}
func (d MessageNotification) validate() error {
	if d.MessageID == 0 {
		return missingRef(NotificationMessage, "a message")
	}
	return nil
}

// AdminNotification reports a moderation action. PostID is zero when the post is gone.
type AdminNotification struct {
	PostID uint
}

func (AdminNotification) Type() NotificationType { return NotificationAdmin }
func (d AdminNotification) refs() notificationRefs { return notificationRefs{PostID: d.PostID} }
func (AdminNotification) validate() error { return nil }

// SystemNotification has no references and usually no sender.
type SystemNotification struct{}

func (SystemNotification) Type() NotificationType { return NotificationSystem }
func (SystemNotification) refs() notificationRefs { return notificationRefs{} }
func (SystemNotification) validate() error { return nil }

// PostNotification tells admins a post is waiting for review.
type PostNotification struct {
	PostID uint
}

func (PostNotification) Type() NotificationType { return NotificationPost }
func (d PostNotification) refs() notificationRefs { return notificationRefs{PostID: d.PostID} }
func (d PostNotification) validate() error {
	if d.PostID == 0 {
		return missingRef(NotificationPost, "a post")
	}
	return nil
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

// NewNotification validates draft and builds the row to persist.
func NewNotification(recipientID uint, senderID *uint, content string, meta NotificationMetadata, draft NotificationDraft) (*Notification, error) {
	if draft == nil {
		return nil, NewValidationError("notification draft is required")
	}
	if recipientID == 0 {
		return nil, NewValidationError("notification recipient is required")
	}
	if content == "" {
		return nil, NewValidationError("notification content is required")
	}
	if err := draft.validate(); err != nil {
		return nil, err
	}

	r := draft.refs()
	return &Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        draft.Type(),
		PostID:      optionalID(r.PostID),
		CommentID:   optionalID(r.CommentID),
		MessageID:   optionalID(r.MessageID),
		Content:     content,
		Metadata:    meta,
	}, nil
}

// ValidateRefs re-checks the per-type reference rules on a built row.
func (n *Notification) ValidateRefs() error {
	switch n.Type {
	case NotificationLike, NotificationComment, NotificationPost:
		if n.PostID == nil {
			return missingRef(n.Type, "a post")
		}
	case NotificationMessage:
		if n.MessageID == nil {
			return missingRef(n.Type, "a message")
		}
	case NotificationMention:
		if n.PostID == nil && n.CommentID == nil {
			return missingRef(n.Type, "a post or comment")
		}
	case NotificationFollow, NotificationAdmin, NotificationSystem:
	default:
		return NewValidationError(fmt.Sprintf("unknown notification type %q", n.Type))
	}
	return nil
}

// BeforeCreate keeps rows that skipped NewNotification from breaking the per-type rules.
func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	return n.ValidateRefs()
}
