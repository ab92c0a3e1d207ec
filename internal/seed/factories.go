// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"inkwell/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	hash string
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. A zero opts.RandSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seedValue := opts.RandSeed
	if seedValue == 0 {
		seedValue = time.Now().UnixNano()
	}
	gofakeit.Seed(seedValue)
	return &Factory{
		db:   db,
		opts: opts,
		// #nosec G404: acceptable for seeding
		rng:    rand.New(rand.NewSource(seedValue)),
		nextID: 1000,
	}
}

func (f *Factory) passwordHash() (string, error) {
	if f.opts.SkipBcrypt {
		return DefaultPassword, nil
	}
	if f.hash == "" {
		h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		f.hash = string(h)
	}
	return f.hash, nil
}

func (f *Factory) create(value any, label string) error {
	if f.opts.DryRun {
		log.Printf("[dry-run] %s (no DB write)", label)
		return nil
	}
	return f.db.Create(value).Error
}

func (f *Factory) fakeID() uint {
	f.nextID++
	return f.nextID
}

// pastTime spreads timestamps over the last opts.MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.rng.Intn(maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

// BuildUser constructs a user with a complete profile without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, gofakeit.Number(100, 9999)))
	user := &models.User{
		Username:         username,
		Email:            username + "@example.com",
		Password:         hash,
		Name:             first + " " + last,
		Bio:              gofakeit.Sentence(10),
		Avatar:           fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		Role:             models.RoleUser,
		ProfileCompleted: true,
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if f.opts.DryRun {
		user.ID = f.fakeID()
	}
	if err := f.create(user, "CreateUser "+user.Username); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateTag returns the tag named name, creating it when missing.
func (f *Factory) CreateTag(name, description string) (*models.Tag, error) {
	tag := &models.Tag{Name: name, Description: description}
	if f.opts.DryRun {
		tag.ID = f.fakeID()
		return tag, nil
	}
	err := f.db.Where(models.Tag{Name: models.NormalizeTagName(name)}).
		Attrs(models.Tag{Description: description}).
		FirstOrCreate(tag).Error
	return tag, err
}

// BuildPost constructs an approved post backdated within MaxDays without persisting it.
func (f *Factory) BuildPost(author *models.User, tags []models.Tag, overrides ...func(*models.Post)) *models.Post {
	createdAt := f.pastTime()
	approvedAt := createdAt.Add(time.Duration(f.rng.Intn(120)) * time.Minute)
	title := strings.TrimSuffix(gofakeit.Sentence(6), ".")
	post := &models.Post{
		Title:      title,
		Body:       gofakeit.Paragraph(3, 4, 12, "\n\n"),
		CoverImage: fmt.Sprintf("https://picsum.photos/seed/%s/1200/630", gofakeit.UUID()),
		UserID:     author.ID,
		Tags:       tags,
		Status:     models.PostApproved,
		ApprovedAt: &approvedAt,
		ViewsCount: int64(f.rng.Intn(500)),
		CreatedAt:  createdAt,
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost builds and persists a post with its tag links.
func (f *Factory) CreatePost(author *models.User, tags []models.Tag, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, tags, overrides...)
	if f.opts.DryRun {
		post.ID = f.fakeID()
		log.Printf("[dry-run] CreatePost: user=%d title=%q", post.UserID, post.Title)
		return post, nil
	}
	if err := f.db.Omit("Author").Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment on post, optionally replying to parent.
func (f *Factory) CreateComment(author *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	createdAt := post.CreatedAt.Add(time.Duration(f.rng.Intn(72*60)+1) * time.Minute)
	if createdAt.After(time.Now()) {
		createdAt = time.Now()
	}
	comment := &models.Comment{
		Content:   gofakeit.Sentence(12),
		UserID:    author.ID,
		PostID:    post.ID,
		CreatedAt: createdAt,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if f.opts.DryRun {
		comment.ID = f.fakeID()
		return comment, nil
	}
	if err := f.db.Omit("Author").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreatePostLike writes a ledger row for user liking post.
func (f *Factory) CreatePostLike(user *models.User, post *models.Post) error {
	return f.create(&models.Like{UserID: user.ID, PostID: &post.ID}, "CreatePostLike")
}

// CreateCommentLike writes a ledger row for user liking comment.
func (f *Factory) CreateCommentLike(user *models.User, comment *models.Comment) error {
	return f.create(&models.Like{UserID: user.ID, CommentID: &comment.ID}, "CreateCommentLike")
}

// CreateFollow persists a follower -> following edge.
func (f *Factory) CreateFollow(follower, following *models.User) error {
	return f.create(&models.Follow{FollowerID: follower.ID, FollowingID: following.ID}, "CreateFollow")
}

// FollowTag subscribes user to tag.
func (f *Factory) FollowTag(user *models.User, tag *models.Tag) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Exec("INSERT INTO tag_followers (tag_id, user_id) VALUES (?, ?)", tag.ID, user.ID).Error
}

// pick returns n distinct indexes in [0, size) in random order.
func (f *Factory) pick(size, n int) []int {
	if n > size {
		n = size
	}
	return f.rng.Perm(size)[:n]
}
