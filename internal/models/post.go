package models

import "time"

// PostStatus is the moderation lifecycle state of a post.
type PostStatus string

const (
	PostPending  PostStatus = "pending"
	PostApproved PostStatus = "approved"
	PostRejected PostStatus = "rejected"
)

// Post is a blog entry. LikesCount and CommentsCount are cached counters used for
// sorting only; values returned to clients come from the like ledger.
type Post struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"size:200;not null" json:"title"`
	Body            string     `gorm:"type:text;not null" json:"body"`
	CoverImage      string     `json:"coverImage,omitempty"`
	UserID          uint       `gorm:"not null;index" json:"authorId"`
	Author          User       `gorm:"foreignKey:UserID" json:"author"`
	Tags            []Tag      `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE" json:"tags"`
	Status          PostStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	ApprovedByID    *uint      `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectedByID    *uint      `json:"rejectedBy,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	ViewsCount      int64      `gorm:"not null;default:0" json:"viewsCount"`
	LikesCount      int64      `gorm:"not null;default:0;index" json:"likesCount"`
	CommentsCount   int64      `gorm:"not null;default:0" json:"commentsCount"`
	TrendingScore   float64    `gorm:"not null;default:0;index" json:"trendingScore"`
	CreatedAt       time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	// LikedByCurrentUser is computed per request.
	LikedByCurrentUser bool `gorm:"-" json:"likedByCurrentUser"`
}

// IsApproved reports whether the post is visible in feeds.
func (p *Post) IsApproved() bool {
	return p.Status == PostApproved
}

// TagIDs returns the ids of the attached tags.
func (p *Post) TagIDs() []uint {
	ids := make([]uint, 0, len(p.Tags))
	for _, t := range p.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}
