package service

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// MessagePage is a conversation envelope.
type MessagePage struct {
	Data       []models.Message `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// ChatSummary is the latest visible message with one peer.
type ChatSummary struct {
	Peer        models.PublicUser `json:"peer"`
	LastMessage models.Message    `json:"lastMessage"`
	Unread      int               `json:"unread"`
}

type MessageService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	notify   Notifier
}

func NewMessageService(messages repository.MessageRepository, users repository.UserRepository, notify Notifier) *MessageService {
	return &MessageService{messages: messages, users: users, notify: notify}
}

// Send requires the sender to follow the receiver.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uint, content, image string) (*models.Message, error) {
	if senderID == receiverID {
		return nil, models.NewValidationError("Cannot message yourself")
	}
	content = strings.TrimSpace(content)
	if content == "" && image == "" {
		return nil, models.NewValidationError("Message content or image is required")
	}
	if len(content) > maxCommentLen {
		return nil, models.NewValidationError("Message too long (max 10000 characters)")
	}

	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	follows, err := s.users.IsFollowing(ctx, senderID, receiver.ID)
	if err != nil {
		return nil, err
	}
	if !follows {
		return nil, models.NewForbiddenError("You can only message users you follow")
	}
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{SenderID: senderID, ReceiverID: receiverID, Content: content, Image: image}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	_, err = s.notify.Create(ctx, CreateNotificationInput{
		RecipientID: receiverID,
		SenderID:    &senderID,
		Content:     fmt.Sprintf("%s sent you a message", sender.Username),
		Metadata:    models.NotificationMetadata{TargetURL: fmt.Sprintf("/messages/%d", senderID)},
		Draft:       models.MessageNotification{MessageID: msg.ID},
	})
	if err != nil {
		return nil, err
	}
	msg.Sender = *sender
	msg.Receiver = *receiver
	return msg, nil
}

func (s *MessageService) Conversation(ctx context.Context, userID, peerID uint, page, limit int) (*MessagePage, error) {
	if _, err := s.users.GetByID(ctx, peerID); err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, 50, 200)
	total, err := s.messages.CountConversation(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.Conversation(ctx, userID, peerID, limit, offsetFor(page, limit))
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return &MessagePage{Data: msgs, Pagination: Pagination{Total: total, Page: page, Pages: totalPages(total, limit)}}, nil
}

// ChatList returns one entry per peer, most recent conversation first.
func (s *MessageService) ChatList(ctx context.Context, userID uint) ([]ChatSummary, error) {
	msgs, err := s.messages.Visible(ctx, userID)
	if err != nil {
		return nil, err
	}
	index := make(map[uint]int)
	out := make([]ChatSummary, 0)
	for _, m := range msgs {
		peerID := m.Peer(userID)
		i, ok := index[peerID]
		if !ok {
			peer := m.Sender
			if m.SenderID == userID {
				peer = m.Receiver
			}
			index[peerID] = len(out)
			out = append(out, ChatSummary{Peer: peer.Public(), LastMessage: m})
			i = len(out) - 1
		}
		if m.ReceiverID == userID && !m.IsRead {
			out[i].Unread++
		}
	}
	return out, nil
}

// MarkRead is receiver-only; the first transition notifies the sender.
func (s *MessageService) MarkRead(ctx context.Context, userID, messageID uint) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ReceiverID != userID {
		return nil, models.NewForbiddenError("Not authorized to mark this message")
	}
	if msg.IsRead {
		return msg, nil
	}
	if err := s.messages.MarkRead(ctx, messageID); err != nil {
		return nil, err
	}
	msg.IsRead = true

	reader, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	_, err = s.notify.Create(ctx, CreateNotificationInput{
		RecipientID: msg.SenderID,
		SenderID:    &userID,
		Content:     fmt.Sprintf("%s read your message", reader.Username),
		Draft:       models.MessageNotification{MessageID: msg.ID},
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// DeleteResult tells the caller whether the message is gone for both participants.
type DeleteResult struct {
	Purged bool `json:"purged"`
}

func (s *MessageService) Delete(ctx context.Context, userID, messageID uint) (*DeleteResult, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.Involves(userID) {
		return nil, models.NewForbiddenError("Not authorized to delete this message")
	}
	purged, err := s.messages.HideFor(ctx, msg, userID)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Purged: purged}, nil
}
