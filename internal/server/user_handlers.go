package server

import (
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.Profile(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(profile)
}

// UpdateProfile handles PUT /api/users/me
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var in service.UpdateProfileInput
	if err := bindJSON(c, &in); err != nil {
		return nil
	}
	user, err := s.userService.UpdateProfile(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(user)
}

// ToggleFollow handles POST /api/users/:id/follow
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.userService.ToggleFollow(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(res)
}

// BanUser handles PATCH /api/admin/users/:id/ban
func (s *Server) BanUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if len(c.Body()) > 0 {
		if err := bindJSON(c, &req); err != nil {
			return nil
		}
	}
	if err := s.userService.Ban(c.UserContext(), currentUserID(c), id, req.Reason); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User banned"})
}

// UnbanUser handles PATCH /api/admin/users/:id/unban
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.userService.Unban(c.UserContext(), currentUserID(c), id); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User unbanned"})
}

// GetAdminStats handles GET /api/admin/stats?days=
func (s *Server) GetAdminStats(c *fiber.Ctx) error {
	stats, err := s.adminService.Stats(c.UserContext(), currentUserID(c), c.QueryInt("days", 7))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(stats)
}

// GetFeatureFlags handles GET /api/admin/features?userId=
// It evaluates the configured flags for userId, or for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if id := c.QueryInt("userId", 0); id > 0 {
		userID = uint(id)
	}
	return c.JSON(fiber.Map{"flags": s.featureFlags.Describe(userID)})
}
