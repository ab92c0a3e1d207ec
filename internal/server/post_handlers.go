package server

import (
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// splitList parses a comma separated query value.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetFeed handles GET /api/posts
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, limit := pageQuery(c)
	viewerID, verified := s.viewer(c)
	q := service.FeedQuery{
		Search:   strings.TrimSpace(c.Query("search")),
		Tags:     splitList(c.Query("tags")),
		AuthorID: uint(max(c.QueryInt("author", 0), 0)),
		SortBy:   c.Query("sortBy"),
		Order:    c.Query("order"),
		Page:     page,
		Limit:    limit,

		UnverifiedViewer: viewerID != nil && !verified,
	}

	feed, err := s.feedService.Assemble(c.UserContext(), q, viewerID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(feed)
}

// GetPost handles GET /api/posts/:id and counts a view.
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()

	post, err := s.postService.Get(ctx, id, s.optionalUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	if err := s.postService.RecordView(ctx, id); err != nil {
		middleware.Logger.WarnContext(ctx, "record view failed", "post_id", id, "error", err.Error())
	} else if post.IsApproved() {
		post.ViewsCount++
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.CreatePostInput
	if err := bindJSON(c, &in); err != nil {
		return nil
	}
	in.UserID = currentUserID(c)

	post, err := s.postService.Create(c.UserContext(), in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.UpdatePostInput
	if err := bindJSON(c, &in); err != nil {
		return nil
	}

	post, err := s.postService.Update(c.UserContext(), currentUserID(c), id, in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

// GetPendingPosts handles GET /api/admin/posts/pending
func (s *Server) GetPendingPosts(c *fiber.Ctx) error {
	page, limit := pageQuery(c)
	pending, err := s.postService.Pending(c.UserContext(), currentUserID(c), page, limit)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(pending)
}

// ApprovePost handles PATCH /api/admin/posts/:id/approve
func (s *Server) ApprovePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.Approve(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(post)
}

// RejectPost handles PATCH /api/admin/posts/:id/reject
func (s *Server) RejectPost(c *fiber.Ctx) error {
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

	post, err := s.postService.Reject(c.UserContext(), currentUserID(c), id, req.Reason)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(post)
}

// TogglePostLike handles POST /api/like/:postId
func (s *Server) TogglePostLike(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}
	res, err := s.likeService.TogglePost(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(res)
}

// LikeStatus handles GET /api/like/status/:postId
func (s *Server) LikeStatus(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}
	res, err := s.likeService.PostStatus(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(res)
}

// ToggleCommentLike handles POST /api/like/comment/:commentId
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	res, err := s.likeService.ToggleComment(c.UserContext(), currentUserID(c), commentID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(res)
}

