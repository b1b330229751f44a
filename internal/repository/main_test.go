package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"patronage/internal/cache"
	"patronage/internal/database"
	"patronage/internal/ledger"
	"patronage/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// newTestDB opens an isolated in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := database.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// withRedis points the package cache at a fresh miniredis for the test.
// Callers must not run in parallel.
func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })
	return mr
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, DisplayName: username}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedPost(t *testing.T, db *gorm.DB, author *models.User, title string) *models.Post {
	t.Helper()
	p := &models.Post{Title: title, ImageURL: "https://img.example/" + title + ".png", UserID: author.ID}
	require.NoError(t, db.Omit("User").Create(p).Error)
	return p
}

func newDonation(t *testing.T, post *models.Post, supporterID uint, amount int64) *models.Donation {
	t.Helper()
	b, err := ledger.Split(amount)
	require.NoError(t, err)
	return &models.Donation{
		PostID:        post.ID,
		AuthorID:      post.UserID,
		SupporterID:   supporterID,
		Amount:        b.Amount,
		PlatformFee:   b.PlatformFee,
		AuthorEarning: b.AuthorEarning,
	}
}

func appendDonation(t *testing.T, repo DonationRepository, post *models.Post, supporterID uint, amount int64) *models.Donation {
	t.Helper()
	d := newDonation(t, post, supporterID, amount)
	require.NoError(t, repo.Append(context.Background(), d))
	return d
}
