package models

import "time"

// Comment is stored flat; ParentID forms an adjacency list of unbounded depth.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UserID    uint      `gorm:"not null;index" json:"authorId"`
	Author    User      `gorm:"foreignKey:UserID" json:"author"`
	PostID    uint      `gorm:"not null;index" json:"postId"`
	ParentID  *uint     `gorm:"index" json:"parentId"`
	IsDeleted bool      `gorm:"not null;default:false;index" json:"-"`
	Flagged   bool      `gorm:"not null;default:false" json:"flagged"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	LikesCount int64      `gorm:"-" json:"likesCount"`
	Replies    []*Comment `gorm:"-" json:"replies,omitempty"`
}

// BuildCommentTree nests comments under their parents. Roots keep input order,
// as do the children of each node. Replies whose parent is absent (deleted or
// filtered out) are dropped along with their subtree.
func BuildCommentTree(comments []Comment) []*Comment {
	nodes := make(map[uint]*Comment, len(comments))
	for i := range comments {
		c := comments[i]
		c.Replies = nil
		nodes[c.ID] = &c
	}

	children := make(map[uint][]*Comment)
	roots := make([]*Comment, 0)
	for i := range comments {
		node := nodes[comments[i].ID]
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		children[*node.ParentID] = append(children[*node.ParentID], node)
	}

	var attach func(n *Comment)
	attach = func(n *Comment) {
		n.Replies = children[n.ID]
		for _, child := range n.Replies {
			attach(child)
		}
	}
	for _, r := range roots {
		attach(r)
	}
	return roots
}
