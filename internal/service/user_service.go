package service

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

const welcomeMessage = "Welcome to Inkwell! Your profile is complete."

// AdminCheck adapts the user store to the isAdmin hook the other services take.
func AdminCheck(users repository.UserRepository) func(ctx context.Context, userID uint) (bool, error) {
	return func(ctx context.Context, userID uint) (bool, error) {
		u, err := users.GetByID(ctx, userID)
		if err != nil {
			return false, err
		}
		return u.IsAdmin() && !u.IsBanned, nil
	}
}

// Profile is a user with follow counters and the viewer's relationship.
type Profile struct {
	User        models.User `json:"user"`
	Followers   int64       `json:"followersCount"`
	Following   int64       `json:"followingCount"`
	IsFollowing bool        `json:"isFollowing"`
}

type UpdateProfileInput struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
	Avatar   *string `json:"avatar" validate:"omitempty,max=500"`
}

type UserService struct {
	users  repository.UserRepository
	notify Notifier
}

func NewUserService(users repository.UserRepository, notify Notifier) *UserService {
	return &UserService{users: users, notify: notify}
}

func (s *UserService) Profile(ctx context.Context, id uint, viewerID *uint) (*Profile, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	followers, following, err := s.users.FollowCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	p := &Profile{User: *u, Followers: followers, Following: following}
	if viewerID == nil || *viewerID != id {
		p.User.Email = ""
	}
	if viewerID != nil && *viewerID != id {
		p.IsFollowing, err = s.users.IsFollowing(ctx, *viewerID, id)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// UpdateProfile applies the non-nil fields. The welcome notification fires once,
// when name, bio and avatar first become all set.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated := *u
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		updated.Username = name
	}
	if in.Name != nil {
		updated.Name = strings.TrimSpace(*in.Name)
	}
	if in.Bio != nil {
		updated.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Avatar != nil {
		updated.Avatar = strings.TrimSpace(*in.Avatar)
	}

	completed := updated.Name != "" && updated.Bio != "" && updated.Avatar != ""
	justCompleted := completed && !u.ProfileCompleted
	updated.ProfileCompleted = completed

	if err := s.users.UpdateProfile(ctx, &updated); err != nil {
		return nil, err
	}
	if justCompleted {
		_, err := s.notify.Create(ctx, CreateNotificationInput{
			RecipientID: userID,
			Content:     welcomeMessage,
			Draft:       models.SystemNotification{},
		})
		if err != nil {
			return nil, err
		}
	}
	return &updated, nil
}

// ToggleFollow flips the follow edge and returns the new state.
func (s *UserService) ToggleFollow(ctx context.Context, followerID, targetID uint) (*FollowResult, error) {
	if followerID == targetID {
		return nil, models.NewValidationError("Cannot follow yourself")
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	following, err := s.users.IsFollowing(ctx, followerID, target.ID)
	if err != nil {
		return nil, err
	}
	if following {
		if err := s.users.Unfollow(ctx, followerID, target.ID); err != nil {
			return nil, err
		}
		return &FollowResult{Following: false}, nil
	}

	if err := s.users.Follow(ctx, followerID, target.ID); err != nil {
		return nil, err
	}
	follower, err := s.users.GetByID(ctx, followerID)
	if err != nil {
		return nil, err
	}
	_, err = s.notify.Create(ctx, CreateNotificationInput{
		RecipientID: target.ID,
		SenderID:    &followerID,
		Content:     fmt.Sprintf("%s started following you", follower.Username),
		Metadata:    models.NotificationMetadata{TargetURL: fmt.Sprintf("/users/%d", followerID)},
		Draft:       models.FollowNotification{},
	})
	if err != nil {
		return nil, err
	}
	return &FollowResult{Following: true}, nil
}

func (s *UserService) Ban(ctx context.Context, adminID, userID uint, reason string) error {
	target, err := s.requireAdminOver(ctx, adminID, userID)
	if err != nil {
		return err
	}
	if target.IsAdmin() {
		return models.NewForbiddenError("Cannot ban an admin")
	}
	return s.users.SetBan(ctx, userID, true, strings.TrimSpace(reason))
}

func (s *UserService) Unban(ctx context.Context, adminID, userID uint) error {
	if _, err := s.requireAdminOver(ctx, adminID, userID); err != nil {
		return err
	}
	return s.users.SetBan(ctx, userID, false, "")
}

func (s *UserService) requireAdminOver(ctx context.Context, adminID, userID uint) (*models.User, error) {
	ok, err := AdminCheck(s.users)(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("Admin access required")
	}
	return s.users.GetByID(ctx, userID)
}
