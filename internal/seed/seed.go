// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"

	"patronage/internal/models"
	"patronage/internal/repository"
	"patronage/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers       int
	NumPosts       int
	NumDonations   int
	AnonymousRatio float64
	RandomSeed     int64
	ShouldClean    bool
}

// Summary reports what a seeding run created.
type Summary struct {
	Users     int
	Posts     int
	Donations int
	Gross     int64
}

// Seed populates the database with demo users, posts and donations. Donations
// go through the support service so every cached aggregate is maintained the
// same way as in production.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	log.Printf("🌱 Seeding %d users, %d posts and %d donations...", opts.NumUsers, opts.NumPosts, opts.NumDonations)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Printf("⚠️  Warning: could not clear existing data: %v", err)
		}
	}

	f := NewFactory(opts)
	summary := &Summary{}

	users, err := createUsers(ctx, db, f, opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	summary.Users = len(users)
	log.Printf("✓ %d users created", len(users))

	posts, err := createPosts(ctx, db, f, users, opts.NumPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	summary.Posts = len(posts)
	log.Printf("✓ %d posts created", len(posts))

	if len(posts) > 0 && len(users) > 0 {
		support := service.NewSupportService(
			repository.NewDonationRepository(db),
			repository.NewPostRepository(db),
			repository.NewUserRepository(db),
			service.SupportConfig{},
		)
		for i := 0; i < opts.NumDonations; i++ {
			post := posts[f.Intn(len(posts))]
			supporter := users[f.Intn(len(users))]
			res, err := support.SubmitDonation(ctx, service.SubmitDonationInput{
				SupporterID: supporter.ID,
				PostID:      post.ID,
				Amount:      f.PickAmount(),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to record donation %d: %w", i, err)
			}
			summary.Donations++
			summary.Gross += res.Amount
		}
		log.Printf("✓ %d donations recorded (¥%d gross)", summary.Donations, summary.Gross)
	}

	log.Println("🎉 Database seeding completed successfully!")
	return summary, nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "sqlite" {
		for _, table := range []string{"author_earnings", "supporter_totals", "donations", "posts", "users"} {
			if err := db.Exec("DELETE FROM " + table).Error; err != nil {
				return err
			}
		}
		return nil
	}
	return db.Exec(`TRUNCATE TABLE author_earnings, supporter_totals, donations, posts, users RESTART IDENTITY CASCADE;`).Error
}

func createUsers(ctx context.Context, db *gorm.DB, f *Factory, count int) ([]models.User, error) {
	repo := repository.NewUserRepository(db)
	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		user := f.BuildUser(i)
		if err := repo.Create(ctx, user); err != nil {
			log.Printf("Failed to create user %s: %v", user.Username, err)
			continue
		}
		users = append(users, *user)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}
	return users, nil
}

func createPosts(ctx context.Context, db *gorm.DB, f *Factory, users []models.User, count int) ([]models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}
	repo := repository.NewPostRepository(db)
	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[f.Intn(len(users))]
		post := f.BuildPost(&author)
		if err := repo.Create(ctx, post); err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, nil
}
