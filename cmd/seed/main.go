// Command main runs the database seeder for Inkwell.
package main

import (
	"context"
	"flag"
	"log"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create (plus one admin)")
	postsPerUser := flag.Int("posts-per-user", defaults.PostsPerUser, "Posts written by each user")
	pending := flag.Float64("pending", defaults.PendingRatio, "Share of posts left pending review")
	maxDays := flag.Int("days", defaults.MaxDays, "Spread post dates over this many days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Store plain passwords instead of bcrypt hashes (dev only)")
	dryRun := flag.Bool("dry-run", false, "Log what would be created without writing")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = clock)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users x %d posts, clean=%v dry-run=%v\n", *numUsers, *postsPerUser, *shouldClean, *dryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		Users:        *numUsers,
		PostsPerUser: *postsPerUser,
		PendingRatio: *pending,
		MaxDays:      *maxDays,
		SkipBcrypt:   *fast,
		DryRun:       *dryRun,
		RandSeed:     *randSeed,
	})

	if *shouldClean && !*dryRun {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(context.Background())
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Seeded %d users, %d tags, %d posts (%d pending), %d likes, %d comments, %d follows",
		sum.Users, sum.Tags, sum.Posts, sum.Pending, sum.Likes, sum.Comments, sum.Follows)
	log.Printf("📧 All seeded users have the password: %s (admin: %s)", seed.DefaultPassword, sum.Admin.Email)
}
