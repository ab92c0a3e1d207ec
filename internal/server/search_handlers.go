package server

import (
	"github.com/gofiber/fiber/v2"
)

// Search handles GET /api/search?q=&page=&limit=
func (s *Server) Search(c *fiber.Ctx) error {
	page, limit := pageQuery(c)
	res, err := s.searchService.Search(c.UserContext(), c.Query("q"), page, limit, s.optionalUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(res)
}

// SearchSuggest handles GET /api/search/suggest?q=&limit=
func (s *Server) SearchSuggest(c *fiber.Ctx) error {
	res, err := s.searchService.Suggest(c.UserContext(), c.Query("q"), c.QueryInt("limit", 5))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(res)
}

// PopularTags handles GET /api/tags/popular?limit=
func (s *Server) PopularTags(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	if limit <= 0 || limit > maxPaginationLimit {
		limit = 10
	}
	tags, err := s.tagService.TopByPopularity(c.UserContext(), limit)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(tags)
}

// ToggleTagFollow handles POST /api/tags/:slug/follow
func (s *Server) ToggleTagFollow(c *fiber.Ctx) error {
	res, err := s.tagService.ToggleFollow(c.UserContext(), currentUserID(c), c.Params("slug"))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(res)
}
