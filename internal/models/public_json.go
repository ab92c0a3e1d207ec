package models

import "encoding/json"

// Rows that embed a User serialize it as a PublicUser, so email, role and
// ban state never leave through a feed, comment thread or message payload.

func publicPtr(u *User) *PublicUser {
	if u == nil || u.ID == 0 {
		return nil
	}
	p := u.Public()
	return &p
}

func (p Post) MarshalJSON() ([]byte, error) {
	type post Post
	return json.Marshal(struct {
		post
		Author PublicUser `json:"author"`
	}{post(p), p.Author.Public()})
}

func (c Comment) MarshalJSON() ([]byte, error) {
	type comment Comment
	return json.Marshal(struct {
		comment
		Author PublicUser `json:"author"`
	}{comment(c), c.Author.Public()})
}

func (m Message) MarshalJSON() ([]byte, error) {
	type message Message
	return json.Marshal(struct {
		message
		Sender   PublicUser `json:"sender"`
		Receiver PublicUser `json:"receiver"`
	}{message(m), m.Sender.Public(), m.Receiver.Public()})
}

func (n Notification) MarshalJSON() ([]byte, error) {
	type notification Notification
	return json.Marshal(struct {
		notification
		Sender *PublicUser `json:"sender,omitempty"`
	}{notification(n), publicPtr(n.Sender)})
}
