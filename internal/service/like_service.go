package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
)

// LikeResult is the response of a toggle or status read. LikesCount always
// comes from the like ledger.
type LikeResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likesCount"`
}

type LikeService struct {
	likes    repository.LikeRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	notify   Notifier
	scorer   *Scorer
	events   events.Publisher
}

func NewLikeService(
	likes repository.LikeRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	notify Notifier,
	scorer *Scorer,
	publisher events.Publisher,
) *LikeService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &LikeService{
		likes:    likes,
		posts:    posts,
		comments: comments,
		users:    users,
		notify:   notify,
		scorer:   scorer,
		events:   publisher,
	}
}

// toggle flips the like and reports whether a new row was written.
func (s *LikeService) toggle(ctx context.Context, userID uint, target repository.LikeTarget) (liked, inserted bool, err error) {
	existing, err := s.likes.Find(ctx, userID, target)
	if err != nil {
		return false, false, err
	}
	if existing != nil {
		return false, false, s.likes.Delete(ctx, existing.ID)
	}

	like := &models.Like{UserID: userID}
	if target.PostID != 0 {
		like.PostID = &target.PostID
	} else {
		like.CommentID = &target.CommentID
	}
	err = s.likes.Create(ctx, like)
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent request inserted first.
		return true, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, true, nil
}

func action(liked bool) string {
	if liked {
		return "like"
	}
	return "unlike"
}

func (s *LikeService) TogglePost(ctx context.Context, userID, postID uint) (*LikeResult, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsApproved() {
		return nil, models.NewValidationError("post not available")
	}

	target := repository.LikeTarget{PostID: postID}
	liked, inserted, err := s.toggle(ctx, userID, target)
	if err != nil {
		return nil, err
	}
	count, err := s.likes.Count(ctx, target)
	if err != nil {
		return nil, err
	}
	observability.LikeToggles.WithLabelValues("post", action(liked)).Inc()

	// The cached counter only feeds sorting; failures here do not fail the toggle.
	post.LikesCount = count
	if err := s.posts.SetLikesCount(ctx, postID, count); err != nil {
		slog.WarnContext(ctx, "likes counter update failed", slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
	} else if err := s.scorer.Refresh(ctx, s.posts, post); err != nil {
		slog.WarnContext(ctx, "trending rescore failed", slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
	}

	if inserted {
		liker, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		_, err = s.notify.Create(ctx, CreateNotificationInput{
			RecipientID: post.UserID,
			SenderID:    &userID,
			Content:     fmt.Sprintf("%s liked your post", liker.Username),
			Metadata:    models.NotificationMetadata{TargetURL: postURL(postID)},
			Draft:       models.LikeNotification{PostID: postID},
		})
		if err != nil {
			return nil, err
		}
		publish(ctx, s.events, events.SubjectPostLiked, events.PostLiked{
			PostID: postID, UserID: userID, Likes: count, Timestamp: time.Now().UTC(),
		})
	}
	return &LikeResult{Liked: liked, LikesCount: count}, nil
}

func (s *LikeService) ToggleComment(ctx context.Context, userID, commentID uint) (*LikeResult, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.IsDeleted {
		return nil, models.NewNotFoundError("Comment", commentID)
	}

	target := repository.LikeTarget{CommentID: commentID}
	liked, inserted, err := s.toggle(ctx, userID, target)
	if err != nil {
		return nil, err
	}
	count, err := s.likes.Count(ctx, target)
	if err != nil {
		return nil, err
	}
	observability.LikeToggles.WithLabelValues("comment", action(liked)).Inc()

	if inserted {
		liker, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		_, err = s.notify.Create(ctx, CreateNotificationInput{
			RecipientID: comment.UserID,
			SenderID:    &userID,
			Content:     fmt.Sprintf("%s liked your comment", liker.Username),
			Metadata:    models.NotificationMetadata{TargetURL: postURL(comment.PostID)},
			Draft:       models.LikeNotification{PostID: comment.PostID, CommentID: commentID},
		})
		if err != nil {
			return nil, err
		}
	}
	return &LikeResult{Liked: liked, LikesCount: count}, nil
}

// PostStatus is read-only.
func (s *LikeService) PostStatus(ctx context.Context, userID, postID uint) (*LikeResult, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	target := repository.LikeTarget{PostID: postID}
	existing, err := s.likes.Find(ctx, userID, target)
	if err != nil {
		return nil, err
	}
	count, err := s.likes.Count(ctx, target)
	if err != nil {
		return nil, err
	}
	return &LikeResult{Liked: existing != nil, LikesCount: count}, nil
}

func postURL(postID uint) string {
	return fmt.Sprintf("/posts/%d", postID)
}

// publish emits a best-effort domain event.
func publish(ctx context.Context, p events.Publisher, subject string, event any) {
	if err := p.Publish(ctx, subject, event); err != nil {
		slog.WarnContext(ctx, "event publish failed", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
