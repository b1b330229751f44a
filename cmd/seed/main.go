// Command main runs the database seeder for Patronage.
package main

import (
	"context"
	"flag"
	"log"

	"patronage/internal/config"
	"patronage/internal/database"
	"patronage/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	numDonations := flag.Int("donations", 500, "Number of donations to record")
	anonymous := flag.Float64("anonymous", 0.15, "Share of users marked anonymous (0-1)")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = fixed default)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	summary, err := seed.Seed(ctx, db, seed.Options{
		NumUsers:       *numUsers,
		NumPosts:       *numPosts,
		NumDonations:   *numDonations,
		AnonymousRatio: *anonymous,
		RandomSeed:     *randomSeed,
		ShouldClean:    *shouldClean,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d users, %d posts, %d donations.", summary.Users, summary.Posts, summary.Donations)
}
