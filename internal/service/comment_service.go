package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
)

const maxCommentLen = 10000

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	likes    repository.LikeRepository
	users    repository.UserRepository
	notify   Notifier
	scorer   *Scorer
	isAdmin  func(ctx context.Context, userID uint) (bool, error)
}

type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	Content  string
	ParentID *uint
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	likes repository.LikeRepository,
	users repository.UserRepository,
	notify Notifier,
	scorer *Scorer,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		likes:    likes,
		users:    users,
		notify:   notify,
		scorer:   scorer,
		isAdmin:  isAdmin,
	}
}

func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !post.IsApproved() {
		return nil, models.NewValidationError("post not available")
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.comments.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, models.NewValidationError("parent comment not found")
		}
		if parent.IsDeleted {
			return nil, models.NewValidationError("parent comment not found")
		}
		if parent.PostID != post.ID {
			return nil, models.NewValidationError("parent comment must belong to the same post")
		}
	}

	author, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	comment := &models.Comment{
		Content:  content,
		UserID:   in.UserID,
		PostID:   post.ID,
		ParentID: in.ParentID,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.bumpCounter(ctx, post, 1)

	meta := models.NotificationMetadata{TargetURL: postURL(post.ID)}
	input := CreateNotificationInput{
		RecipientID: post.UserID,
		SenderID:    &in.UserID,
		Content:     fmt.Sprintf("%s commented on your post", author.Username),
		Metadata:    meta,
		Draft:       models.CommentNotification{PostID: post.ID, CommentID: comment.ID},
	}
	if parent != nil {
		input.RecipientID = parent.UserID
		input.Content = fmt.Sprintf("%s replied to your comment", author.Username)
	}
	if _, err := s.notify.Create(ctx, input); err != nil {
		return nil, err
	}

	comment.Author = *author
	return comment, nil
}

// bumpCounter adjusts the cached comment counter and rescores. Both are best effort.
func (s *CommentService) bumpCounter(ctx context.Context, post *models.Post, delta int) {
	if err := s.posts.AdjustCommentsCount(ctx, post.ID, delta); err != nil {
		slog.WarnContext(ctx, "comments counter update failed", slog.Uint64("post_id", uint64(post.ID)), slog.String("error", err.Error()))
		return
	}
	post.CommentsCount += int64(delta)
	if post.CommentsCount < 0 {
		post.CommentsCount = 0
	}
	if err := s.scorer.Refresh(ctx, s.posts, post); err != nil {
		slog.WarnContext(ctx, "trending rescore failed", slog.Uint64("post_id", uint64(post.ID)), slog.String("error", err.Error()))
	}
}

// ListForPost returns visible comments newest first, with ledger like counts.
func (s *CommentService) ListForPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(comments))
	for i := range comments {
		ids[i] = comments[i].ID
	}
	counts, err := s.likes.CountForComments(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].LikesCount = counts[comments[i].ID]
	}
	return comments, nil
}

// Tree returns the nested form of ListForPost.
func (s *CommentService) Tree(ctx context.Context, postID uint) ([]*models.Comment, error) {
	comments, err := s.ListForPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return models.BuildCommentTree(comments), nil
}

// Delete soft-deletes a comment. The comment author, the post author and admins may delete.
func (s *CommentService) Delete(ctx context.Context, userID, commentID uint) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.IsDeleted {
		return models.NewNotFoundError("Comment", commentID)
	}
	post, err := s.posts.GetByID(ctx, comment.PostID)
	if err != nil {
		return err
	}

	allowed := comment.UserID == userID || post.UserID == userID
	if !allowed && s.isAdmin != nil {
		allowed, err = s.isAdmin(ctx, userID)
		if err != nil {
			return err
		}
	}
	if !allowed {
		return models.NewForbiddenError("Not allowed to delete this comment")
	}

	if err := s.comments.SoftDelete(ctx, commentID); err != nil {
		return err
	}
	s.bumpCounter(ctx, post, -1)
	return nil
}

func (s *CommentService) Flag(ctx context.Context, adminID, commentID uint) error {
	if s.isAdmin == nil {
		return models.NewForbiddenError("Admin access required")
	}
	ok, err := s.isAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("Admin access required")
	}
	return s.comments.SetFlagged(ctx, commentID, true)
}
