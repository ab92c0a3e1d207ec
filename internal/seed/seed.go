package seed

import (
	"context"
	"fmt"
	"log"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	Users        int
	PostsPerUser int
	// PendingRatio is the share of posts left awaiting moderation.
	PendingRatio float64
	MaxDays      int
	SkipBcrypt   bool
	DryRun       bool
	RandSeed     int64
}

// DefaultOptions is a small, browsable data set.
func DefaultOptions() Options {
	return Options{Users: 25, PostsPerUser: 4, PendingRatio: 0.15, MaxDays: 30}
}

// Summary reports what a run created.
type Summary struct {
	Admin    *models.User
	Users    int
	Tags     int
	Follows  int
	Posts    int
	Pending  int
	Likes    int
	Comments int
	Rescored int
}

// Seeder populates a database with a coherent social graph.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// tables in delete order, children first.
var tables = []string{
	"likes", "notifications", "message_deletions", "messages", "comments",
	"post_tags", "tag_followers", "posts", "tags", "follows", "users",
}

// ClearAll removes every row the seeder can create.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Run seeds tags, users, follows, posts, likes and comments, then brings
// counters and trending scores in line with the ledgers.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	f := s.factory

	var tags []models.Tag
	if s.opts.DryRun {
		for _, item := range BuiltInTags {
			tag, _ := f.CreateTag(item.Name, item.Description)
			tags = append(tags, *tag)
		}
	} else {
		var err error
		if tags, err = Tags(s.db); err != nil {
			return nil, err
		}
	}
	sum.Tags = len(tags)

	admin, err := f.CreateUser(func(u *models.User) {
		u.Username = "admin"
		u.Email = "admin@inkwell.local"
		u.Name = "Inkwell Admin"
		u.Role = models.RoleAdmin
	})
	if err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	sum.Admin = admin

	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users) + 1
	log.Printf("✓ %d users created (admin: %s)", sum.Users, admin.Email)

	if sum.Follows, err = s.seedFollows(users, tags); err != nil {
		return nil, err
	}

	posts, err := s.seedPosts(users, tags, sum)
	if err != nil {
		return nil, err
	}
	log.Printf("✓ %d posts created (%d pending review)", sum.Posts, sum.Pending)

	if err := s.seedEngagement(users, posts, sum); err != nil {
		return nil, err
	}
	log.Printf("✓ %d likes and %d comments created", sum.Likes, sum.Comments)

	if s.opts.DryRun {
		return sum, nil
	}
	if err := s.reconcileCounters(); err != nil {
		return nil, err
	}
	sweeper := service.NewTrendingSweeper(repository.NewPostRepository(s.db), service.NewScorer(nil), 0, 200)
	if sum.Rescored, err = sweeper.SweepOnce(ctx); err != nil {
		return nil, fmt.Errorf("rescore posts: %w", err)
	}
	log.Printf("✓ %d posts rescored", sum.Rescored)
	return sum, nil
}

func (s *Seeder) seedFollows(users []*models.User, tags []models.Tag) (int, error) {
	f := s.factory
	follows := 0
	for i, u := range users {
		for _, j := range f.pick(len(users), 1+f.rng.Intn(5)) {
			if j == i {
				continue
			}
			if err := f.CreateFollow(u, users[j]); err != nil {
				return follows, fmt.Errorf("create follow: %w", err)
			}
			follows++
		}
		for _, j := range f.pick(len(tags), 1+f.rng.Intn(3)) {
			if err := f.FollowTag(u, &tags[j]); err != nil {
				return follows, fmt.Errorf("follow tag: %w", err)
			}
		}
	}
	return follows, nil
}

func (s *Seeder) seedPosts(users []*models.User, tags []models.Tag, sum *Summary) ([]*models.Post, error) {
	f := s.factory
	var approved []*models.Post
	for _, u := range users {
		for n := 0; n < s.opts.PostsPerUser; n++ {
			var postTags []models.Tag
			for _, j := range f.pick(len(tags), 1+f.rng.Intn(3)) {
				postTags = append(postTags, tags[j])
			}
			pending := f.rng.Float64() < s.opts.PendingRatio
			post, err := f.CreatePost(u, postTags, func(p *models.Post) {
				if pending {
					p.Status = models.PostPending
					p.ApprovedAt = nil
				}
			})
			if err != nil {
				return nil, fmt.Errorf("create post: %w", err)
			}
			sum.Posts++
			if pending {
				sum.Pending++
				continue
			}
			approved = append(approved, post)
		}
	}
	return approved, nil
}

func (s *Seeder) seedEngagement(users []*models.User, posts []*models.Post, sum *Summary) error {
	f := s.factory
	for _, post := range posts {
		for _, j := range f.pick(len(users), f.rng.Intn(len(users)/2+1)) {
			if users[j].ID == post.UserID {
				continue
			}
			if err := f.CreatePostLike(users[j], post); err != nil {
				return fmt.Errorf("create like: %w", err)
			}
			sum.Likes++
		}

		for _, j := range f.pick(len(users), f.rng.Intn(5)) {
			root, err := f.CreateComment(users[j], post, nil)
			if err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
			for _, k := range f.pick(len(users), f.rng.Intn(3)) {
				if k == j {
					continue
				}
				if _, err := f.CreateComment(users[k], post, root); err != nil {
					return fmt.Errorf("create reply: %w", err)
				}
				sum.Comments++
			}
			if f.rng.Intn(2) == 0 && users[j].ID != post.UserID {
				author := &models.User{ID: post.UserID}
				if err := f.CreateCommentLike(author, root); err != nil {
					return fmt.Errorf("create comment like: %w", err)
				}
				sum.Likes++
			}
		}
	}
	return nil
}

// reconcileCounters derives the denormalized counters from the ledgers.
func (s *Seeder) reconcileCounters() error {
	stmts := []struct {
		name string
		sql  string
		args []any
	}{
		{"post likes", `UPDATE posts SET likes_count = (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id)`, nil},
		{"post comments", `UPDATE posts SET comments_count = (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_deleted = ?)`, []any{false}},
		{"tag posts", `UPDATE tags SET post_count = (SELECT COUNT(*) FROM post_tags WHERE post_tags.tag_id = tags.id)`, nil},
	}
	for _, st := range stmts {
		if err := s.db.Exec(st.sql, st.args...).Error; err != nil {
			return fmt.Errorf("reconcile %s: %w", st.name, err)
		}
	}
	return nil
}
