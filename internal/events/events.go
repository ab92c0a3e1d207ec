// Package events publishes domain events for out-of-process consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects published by the API.
const (
	SubjectPostCreated  = "post.created"
	SubjectPostApproved = "post.approved"
	SubjectPostLiked    = "post.liked"
	SubjectPostDeleted  = "post.deleted"
)

type PostCreated struct {
	PostID    uint      `json:"post_id"`
	AuthorID  uint      `json:"author_id"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Timestamp time.Time `json:"timestamp"`
}

type PostApproved struct {
	PostID     uint      `json:"post_id"`
	AuthorID   uint      `json:"author_id"`
	ApprovedBy uint      `json:"approved_by"`
	Timestamp  time.Time `json:"timestamp"`
}

type PostLiked struct {
	PostID    uint      `json:"post_id"`
	UserID    uint      `json:"user_id"`
	Likes     int64     `json:"likes"`
	Timestamp time.Time `json:"timestamp"`
}

type PostDeleted struct {
	PostID    uint      `json:"post_id"`
	DeletedBy uint      `json:"deleted_by"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits an event on subject. Implementations must not block for long.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("inkwell-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NATSPublisher publishes JSON-encoded events on a NATS connection.
type NATSPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, event any) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	return p.nc.Publish(subject, b)
}

// Subscribe registers handler for every post event.
func Subscribe(nc *nats.Conn, handler func(subject string, data []byte)) (*nats.Subscription, error) {
	return nc.Subscribe("post.*", func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
}
