package seed

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"
)

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	opts := Options{Users: 8, PostsPerUser: 3, PendingRatio: 0.25, MaxDays: 10, SkipBcrypt: true, RandSeed: 42}

	sum, err := NewSeeder(db, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("seed run: %v", err)
	}
	if sum.Users != 9 {
		t.Fatalf("expected 9 users including admin, got %d", sum.Users)
	}
	if !sum.Admin.IsAdmin() {
		t.Fatal("expected the seeded admin to carry the admin role")
	}
	if sum.Posts != 24 {
		t.Fatalf("expected 24 posts, got %d", sum.Posts)
	}

	var pending int64
	if err := db.Model(&models.Post{}).Where("status = ?", models.PostPending).Count(&pending).Error; err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if int(pending) != sum.Pending {
		t.Fatalf("summary reports %d pending, table has %d", sum.Pending, pending)
	}
	if sum.Rescored != sum.Posts-sum.Pending {
		t.Fatalf("expected every approved post rescored, got %d of %d", sum.Rescored, sum.Posts-sum.Pending)
	}

	var posts []models.Post
	if err := db.Find(&posts).Error; err != nil {
		t.Fatalf("load posts: %v", err)
	}
	for _, p := range posts {
		var likes, comments int64
		db.Model(&models.Like{}).Where("post_id = ?", p.ID).Count(&likes)
		db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&comments)
		if p.LikesCount != likes || p.CommentsCount != comments {
			t.Fatalf("post %d counters %d/%d disagree with ledger %d/%d",
				p.ID, p.LikesCount, p.CommentsCount, likes, comments)
		}
		if p.Status == models.PostPending && (likes > 0 || comments > 0) {
			t.Fatalf("pending post %d has engagement", p.ID)
		}
	}

	var selfLikes int64
	db.Model(&models.Like{}).
		Joins("JOIN posts ON posts.id = likes.post_id").
		Where("posts.user_id = likes.user_id").
		Count(&selfLikes)
	if selfLikes != 0 {
		t.Fatalf("expected no self likes, got %d", selfLikes)
	}
}

func TestSeeder_ClearAll(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	s := NewSeeder(db, Options{Users: 3, PostsPerUser: 1, SkipBcrypt: true, RandSeed: 7})
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	if err := s.ClearAll(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	for _, model := range []any{&models.User{}, &models.Post{}, &models.Tag{}, &models.Like{}, &models.Comment{}} {
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			t.Fatalf("count %T: %v", model, err)
		}
		if n != 0 {
			t.Fatalf("expected %T empty after ClearAll, got %d", model, n)
		}
	}
}

func TestTags_Idempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	first, err := Tags(db)
	if err != nil {
		t.Fatalf("seed tags: %v", err)
	}
	second, err := Tags(db)
	if err != nil {
		t.Fatalf("reseed tags: %v", err)
	}
	if len(first) != len(BuiltInTags) || len(second) != len(BuiltInTags) {
		t.Fatalf("expected %d tags, got %d then %d", len(BuiltInTags), len(first), len(second))
	}

	var n int64
	db.Model(&models.Tag{}).Count(&n)
	if int(n) != len(BuiltInTags) {
		t.Fatalf("expected %d rows, got %d", len(BuiltInTags), n)
	}
	if second[1].Slug != "web-development" {
		t.Fatalf("unexpected slug %q", second[1].Slug)
	}
}

func TestFactory_DryRun(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, SkipBcrypt: true, MaxDays: 5, RandSeed: 1})
	user, err := f.CreateUser()
	if err != nil {
		t.Fatalf("dry-run user: %v", err)
	}
	if user.ID == 0 || !user.ProfileCompleted {
		t.Fatalf("expected a synthetic id and complete profile, got %+v", user)
	}
	post, err := f.CreatePost(user, nil)
	if err != nil {
		t.Fatalf("dry-run post: %v", err)
	}
	if post.UserID != user.ID || post.Status != models.PostApproved {
		t.Fatalf("unexpected post %+v", post)
	}
}
