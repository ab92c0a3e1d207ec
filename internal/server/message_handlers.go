package server

import (
	"github.com/gofiber/fiber/v2"
)

// SendMessage handles POST /api/messages/:userId
func (s *Server) SendMessage(c *fiber.Ctx) error {
	receiverID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
		Image   string `json:"image"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	msg, err := s.messageService.Send(c.UserContext(), currentUserID(c), receiverID, req.Content, req.Image)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// GetConversation handles GET /api/messages/:userId
func (s *Server) GetConversation(c *fiber.Ctx) error {
	peerID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	page, limit := pageQuery(c)
	res, err := s.messageService.Conversation(c.UserContext(), currentUserID(c), peerID, page, limit)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(res)
}

// GetChatList handles GET /api/messages
func (s *Server) GetChatList(c *fiber.Ctx) error {
	chats, err := s.messageService.ChatList(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(chats)
}

// MarkMessageRead handles PATCH /api/messages/item/:id/read
func (s *Server) MarkMessageRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	msg, err := s.messageService.MarkRead(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(msg)
}

// DeleteMessage handles DELETE /api/messages/item/:id
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.messageService.Delete(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(res)
}
