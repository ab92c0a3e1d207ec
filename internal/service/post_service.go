package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

type PostService struct {
	posts   repository.PostRepository
	likes   repository.LikeRepository
	users   repository.UserRepository
	tags    *TagService
	notify  Notifier
	scorer  *Scorer
	events  events.Publisher
	isAdmin func(ctx context.Context, userID uint) (bool, error)
	now     func() time.Time
}

type CreatePostInput struct {
	UserID     uint     `json:"-"`
	Title      string   `json:"title" validate:"notblank,max=200"`
	Body       string   `json:"body" validate:"notblank,max=50000"`
	CoverImage string   `json:"coverImage" validate:"omitempty,max=2048"`
	Tags       []string `json:"tags" validate:"max=10"`
}

type UpdatePostInput struct {
	Title      string   `json:"title" validate:"notblank,max=200"`
	Body       string   `json:"body" validate:"notblank,max=50000"`
	CoverImage string   `json:"coverImage" validate:"omitempty,max=2048"`
	Tags       []string `json:"tags" validate:"max=10"`
}

// PendingPage lists posts awaiting moderation.
type PendingPage struct {
	Posts      []models.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

func NewPostService(
	posts repository.PostRepository,
	likes repository.LikeRepository,
	users repository.UserRepository,
	tags *TagService,
	notify Notifier,
	scorer *Scorer,
	publisher events.Publisher,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *PostService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &PostService{
		posts:   posts,
		likes:   likes,
		users:   users,
		tags:    tags,
		notify:  notify,
		scorer:  scorer,
		events:  publisher,
		isAdmin: isAdmin,
		now:     time.Now,
	}
}

func (s *PostService) requireAdmin(ctx context.Context, userID uint) error {
	if s.isAdmin == nil {
		return models.NewForbiddenError("Admin access required")
	}
	ok, err := s.isAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("Admin access required")
	}
	return nil
}

func (s *PostService) adminOrFalse(ctx context.Context, userID uint) bool {
	if s.isAdmin == nil {
		return false
	}
	ok, err := s.isAdmin(ctx, userID)
	return err == nil && ok
}

// Create stores a pending post and asks every admin to review it.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	author, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	tags, err := s.tags.Attach(ctx, in.Tags)
	if err != nil {
		return nil, err
	}
	post := &models.Post{
		Title:      strings.TrimSpace(in.Title),
		Body:       in.Body,
		CoverImage: in.CoverImage,
		UserID:     in.UserID,
		Status:     models.PostPending,
		CreatedAt:  s.now(),
	}
	post.TrendingScore = s.scorer.ScorePost(post)
	if err := s.posts.Create(ctx, post, tagIDs(tags)); err != nil {
		if detachErr := s.tags.Detach(ctx, tags); detachErr != nil {
			slog.WarnContext(ctx, "tag rollback failed", slog.String("error", detachErr.Error()))
		}
		return nil, err
	}
	post.Tags = tags
	post.Author = *author

	_, err = s.notify.FanOutToAdmins(ctx, &in.UserID,
		fmt.Sprintf("%s submitted a new post for review", author.Username),
		models.NotificationMetadata{TargetURL: postURL(post.ID)},
		models.PostNotification{PostID: post.ID})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.events, events.SubjectPostCreated, events.PostCreated{
		PostID: post.ID, AuthorID: post.UserID, Title: post.Title, Tags: tagNames(tags), Timestamp: post.CreatedAt.UTC(),
	})
	return post, nil
}

// Get hides unapproved posts from everyone but their author and admins.
func (s *PostService) Get(ctx context.Context, id uint, viewerID *uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsApproved() {
		visible := viewerID != nil && (*viewerID == post.UserID || s.adminOrFalse(ctx, *viewerID))
		if !visible {
			return nil, models.NewNotFoundError("Post", id)
		}
	}
	posts := []models.Post{*post}
	if err := annotateLikes(ctx, s.likes, posts, viewerID); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// RecordView bumps the view counter of an approved post and rescores it.
func (s *PostService) RecordView(ctx context.Context, id uint) error {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !post.IsApproved() {
		return nil
	}
	if err := s.posts.IncrementViews(ctx, id); err != nil {
		return err
	}
	post.ViewsCount++
	return s.scorer.Refresh(ctx, s.posts, post)
}

func (s *PostService) Update(ctx context.Context, userID, id uint, in UpdatePostInput) (*models.Post, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, models.NewForbiddenError("Only the author can edit this post")
	}

	post.Title = strings.TrimSpace(in.Title)
	post.Body = in.Body
	post.CoverImage = in.CoverImage
	if err := s.posts.UpdateContent(ctx, post); err != nil {
		return nil, err
	}
	if err := s.retag(ctx, post, in.Tags); err != nil {
		return nil, err
	}
	if err := s.scorer.Refresh(ctx, s.posts, post); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, id)
}

// retag attaches added names and detaches removed ones.
func (s *PostService) retag(ctx context.Context, post *models.Post, names []string) error {
	current := make(map[string]models.Tag, len(post.Tags))
	for _, t := range post.Tags {
		current[t.Name] = t
	}
	wanted := models.NormalizeTagNames(names)

	var added []string
	keep := make(map[string]struct{}, len(wanted))
	for _, name := range wanted {
		keep[name] = struct{}{}
		if _, ok := current[name]; !ok {
			added = append(added, name)
		}
	}
	var removed []models.Tag
	for name, t := range current {
		if _, ok := keep[name]; !ok {
			removed = append(removed, t)
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	attached, err := s.tags.Attach(ctx, added)
	if err != nil {
		return err
	}
	if err := s.tags.Detach(ctx, removed); err != nil {
		return err
	}

	final := make([]models.Tag, 0, len(wanted))
	seen := make(map[uint]struct{}, len(wanted))
	for _, t := range post.Tags {
		if _, ok := keep[t.Name]; ok {
			seen[t.ID] = struct{}{}
			final = append(final, t)
		}
	}
	for _, t := range attached {
		if _, dup := seen[t.ID]; dup {
			// A new name collapsed onto a tag the post already has.
			if err := s.tags.Detach(ctx, []models.Tag{t}); err != nil {
				return err
			}
			continue
		}
		seen[t.ID] = struct{}{}
		final = append(final, t)
	}
	if err := s.posts.ReplaceTags(ctx, post.ID, tagIDs(final)); err != nil {
		return err
	}
	post.Tags = final
	return nil
}

// Delete is allowed for the author and admins. An admin removing someone
// else's post notifies the author.
func (s *PostService) Delete(ctx context.Context, actorID, id uint) error {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	byAdmin := false
	if post.UserID != actorID {
		if !s.adminOrFalse(ctx, actorID) {
			return models.NewForbiddenError("Not allowed to delete this post")
		}
		byAdmin = true
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.tags.Detach(ctx, post.Tags); err != nil {
		slog.WarnContext(ctx, "tag detach failed", slog.Uint64("post_id", uint64(id)), slog.String("error", err.Error()))
	}

	if byAdmin {
		_, err = s.notify.Create(ctx, CreateNotificationInput{
			RecipientID: post.UserID,
			SenderID:    &actorID,
			Content:     fmt.Sprintf("Your post %q was removed by an admin", post.Title),
			Draft:       models.AdminNotification{},
		})
		if err != nil {
			return err
		}
	}
	publish(ctx, s.events, events.SubjectPostDeleted, events.PostDeleted{PostID: id, DeletedBy: actorID, Timestamp: s.now().UTC()})
	return nil
}

func (s *PostService) Approve(ctx context.Context, adminID, id uint) (*models.Post, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostApproved {
		return nil, models.NewConflictError("Post is already approved")
	}
	at := s.now()
	post.Status = models.PostApproved
	post.ApprovedByID = &adminID
	post.ApprovedAt = &at
	post.RejectedByID = nil
	post.RejectionReason = ""
	if err := s.posts.UpdateModeration(ctx, post); err != nil {
		return nil, err
	}
	if err := s.scorer.Refresh(ctx, s.posts, post); err != nil {
		return nil, err
	}

	_, err = s.notify.Create(ctx, CreateNotificationInput{
		RecipientID: post.UserID,
		SenderID:    &adminID,
		Content:     fmt.Sprintf("Your post %q was approved", post.Title),
		Metadata:    models.NotificationMetadata{TargetURL: postURL(post.ID)},
		Draft:       models.AdminNotification{PostID: post.ID},
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, events.SubjectPostApproved, events.PostApproved{
		PostID: post.ID, AuthorID: post.UserID, ApprovedBy: adminID, Timestamp: at.UTC(),
	})
	return post, nil
}

func (s *PostService) Reject(ctx context.Context, adminID, id uint, reason string) (*models.Post, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("Rejection reason is required")
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostRejected {
		return nil, models.NewConflictError("Post is already rejected")
	}
	post.Status = models.PostRejected
	post.RejectedByID = &adminID
	post.RejectionReason = reason
	post.ApprovedByID = nil
	post.ApprovedAt = nil
	if err := s.posts.UpdateModeration(ctx, post); err != nil {
		return nil, err
	}
	if err := s.scorer.Refresh(ctx, s.posts, post); err != nil {
		return nil, err
	}

	_, err = s.notify.Create(ctx, CreateNotificationInput{
		RecipientID: post.UserID,
		SenderID:    &adminID,
		Content:     fmt.Sprintf("Your post %q was rejected: %s", post.Title, reason),
		Metadata:    models.NotificationMetadata{TargetURL: postURL(post.ID)},
		Draft:       models.AdminNotification{PostID: post.ID},
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Pending lists posts awaiting review, oldest first.
func (s *PostService) Pending(ctx context.Context, adminID uint, page, limit int) (*PendingPage, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, 20, 100)
	filter := repository.PostFilter{Status: models.PostPending}
	total, err := s.posts.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.List(ctx, filter, repository.PostSort{Mode: repository.SortNew, Ascending: true}, limit, offsetFor(page, limit))
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &PendingPage{Posts: posts, Pagination: Pagination{Total: total, Page: page, Pages: totalPages(total, limit)}}, nil
}

func tagNames(tags []models.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}
