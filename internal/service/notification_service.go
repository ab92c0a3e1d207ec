package service

import (
	"context"
	"log/slog"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Pusher delivers a persisted notification in real time. Push must not block
// and has no error to report: delivery is best effort.
type Pusher interface {
	Push(userID uint, n *models.Notification)
}

// Notifier is the write side of the notification engine used by producers.
type Notifier interface {
	Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error)
	FanOutToAdmins(ctx context.Context, senderID *uint, content string, meta models.NotificationMetadata, draft models.NotificationDraft) (int, error)
}

type CreateNotificationInput struct {
	RecipientID uint
	SenderID    *uint
	Content     string
	Metadata    models.NotificationMetadata
	Draft       models.NotificationDraft
	// TTL, when positive, hides the notification after it elapses.
	TTL time.Duration
}

// NotificationPage is the list envelope.
type NotificationPage struct {
	Data       []models.Notification `json:"data"`
	Pagination Pagination            `json:"pagination"`
}

// NotificationService is the only writer of notifications.
type NotificationService struct {
	repo   repository.NotificationRepository
	users  repository.UserRepository
	pusher Pusher
	now    func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, users: users, pusher: pusher, now: time.Now}
}

// Create persists a notification and hands it to the pusher. Self-notifications
// return (nil, nil) and write nothing.
func (s *NotificationService) Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	ctx, span := observability.StartSpan(ctx, "notifications.create",
		attribute.Int64("notification.recipient_id", int64(in.RecipientID)))
	n, err := s.create(ctx, in)
	observability.EndSpan(span, err)
	return n, err
}

func (s *NotificationService) create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	if in.SenderID != nil && *in.SenderID == in.RecipientID {
		observability.NotificationsSuppressed.WithLabelValues("self").Inc()
		return nil, nil
	}
	n, err := models.NewNotification(in.RecipientID, in.SenderID, in.Content, in.Metadata, in.Draft)
	if err != nil {
		return nil, err
	}
	if in.TTL > 0 {
		expires := s.now().Add(in.TTL)
		n.ExpiresAt = &expires
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	observability.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

	s.attachSender(ctx, n)
	if s.pusher != nil {
		s.pusher.Push(n.RecipientID, n)
	}
	return n, nil
}

// attachSender loads the public sender profile for the realtime payload.
func (s *NotificationService) attachSender(ctx context.Context, n *models.Notification) {
	if n.SenderID == nil || s.users == nil {
		return
	}
	sender, err := s.users.GetByID(ctx, *n.SenderID)
	if err != nil {
		slog.WarnContext(ctx, "notification sender lookup failed",
			slog.Uint64("sender_id", uint64(*n.SenderID)), slog.String("error", err.Error()))
		return
	}
	sender.Email = ""
	n.Sender = sender
}

// FanOutToAdmins creates one notification per admin and returns how many were written.
func (s *NotificationService) FanOutToAdmins(ctx context.Context, senderID *uint, content string, meta models.NotificationMetadata, draft models.NotificationDraft) (int, error) {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, admin := range admins {
		n, err := s.Create(ctx, CreateNotificationInput{
			RecipientID: admin.ID,
			SenderID:    senderID,
			Content:     content,
			Metadata:    meta,
			Draft:       draft,
		})
		if err != nil {
			return created, err
		}
		if n != nil {
			created++
		}
	}
	return created, nil
}

func (s *NotificationService) List(ctx context.Context, recipientID uint, page, limit int) (*NotificationPage, error) {
	page, limit = normalizePage(page, limit, 20, 100)
	now := s.now()
	total, err := s.repo.Count(ctx, recipientID, now)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, recipientID, now, limit, offsetFor(page, limit))
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return &NotificationPage{
		Data:       rows,
		Pagination: Pagination{Total: total, Page: page, Pages: totalPages(total, limit)},
	}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	return s.repo.CountUnread(ctx, recipientID, s.now())
}

// MarkAsRead fails with NOT_FOUND when the notification is missing, foreign or already read.
func (s *NotificationService) MarkAsRead(ctx context.Context, recipientID, id uint) error {
	n, err := s.repo.MarkRead(ctx, recipientID, id, s.now())
	if err != nil {
		return err
	}
	if n == 0 {
		return &models.AppError{Code: models.CodeNotFound, Message: "notification not found or already read"}
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, recipientID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, recipientID, s.now())
}

func (s *NotificationService) Delete(ctx context.Context, recipientID, id uint) error {
	n, err := s.repo.SoftDelete(ctx, recipientID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return &models.AppError{Code: models.CodeNotFound, Message: "notification not found"}
	}
	return nil
}

func (s *NotificationService) DeleteAll(ctx context.Context, recipientID uint) (int64, error) {
	return s.repo.SoftDeleteAll(ctx, recipientID)
}
