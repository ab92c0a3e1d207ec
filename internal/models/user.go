// Package models contains data structures for the application's domain models.
package models

import "time"

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account on the platform. Avatar is an opaque media URL.
type User struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Username         string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email            string     `gorm:"uniqueIndex;size:255;not null" json:"email,omitempty"`
	Password         string     `gorm:"not null" json:"-"`
	Name             string     `gorm:"size:100" json:"name"`
	Bio              string     `gorm:"type:text" json:"bio"`
	Avatar           string     `json:"avatar"`
	Role             string     `gorm:"size:20;not null;default:user;index" json:"role"`
	IsBanned         bool       `gorm:"not null;default:false" json:"isBanned"`
	BanReason        string     `json:"banReason,omitempty"`
	BannedAt         *time.Time `json:"bannedAt,omitempty"`
	ProfileCompleted bool       `gorm:"not null;default:false" json:"profileCompleted"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PublicUser is the author shape embedded in feeds and search results.
type PublicUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// Public strips private fields.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar}
}

// Follow is a directed follower -> following edge.
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_follow_pair" json:"followerId"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_follow_pair;index" json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`
}
