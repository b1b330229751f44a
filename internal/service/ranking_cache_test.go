package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"patronage/internal/cache"
	"patronage/internal/database"
	"patronage/internal/featureflags"
	"patronage/internal/ledger"
	"patronage/internal/models"
	"patronage/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var cachedDBSeq atomic.Int64

type cachedStack struct {
	db      *gorm.DB
	support *SupportService
	users   *UserService
}

// newCachedStack wires both services to real sqlite repositories with the
// ranking cache on and the package cache pointed at miniredis.
func newCachedStack(t *testing.T) *cachedStack {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	db, err := database.OpenSQLite(fmt.Sprintf("file:svc_cache_%d?mode=memory&cache=shared", cachedDBSeq.Add(1)))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	userRepo := repository.NewUserRepository(db)
	return &cachedStack{
		db: db,
		support: NewSupportService(
			repository.NewDonationRepository(db),
			repository.NewPostRepository(db),
			userRepo,
			SupportConfig{TopN: 10, CacheTTL: time.Minute, Flags: featureflags.NewManager("ranking_cache=on")},
		),
		users: NewUserService(userRepo),
	}
}

func (s *cachedStack) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, DisplayName: name}
	require.NoError(t, s.db.Create(u).Error)
	return u
}

func (s *cachedStack) post(t *testing.T, author *models.User) *models.Post {
	t.Helper()
	p := &models.Post{Title: "piece", ImageURL: "https://img.example/piece.png", UserID: author.ID}
	require.NoError(t, s.db.Omit("User").Create(p).Error)
	return p
}

func TestGetRanking_PostRankingFollowsAuthorSettings(t *testing.T) {
	stack := newCachedStack(t)
	ctx := context.Background()

	author := stack.user(t, "author")
	fan := stack.user(t, "fan")
	post := stack.post(t, author)

	_, err := stack.support.SubmitDonation(ctx, SubmitDonationInput{SupporterID: fan.ID, PostID: post.ID, Amount: 1000})
	require.NoError(t, err)

	visible, err := stack.support.GetRanking(ctx, RankingQuery{PostID: post.ID})
	require.NoError(t, err)
	require.False(t, visible.Suppressed)
	require.Len(t, visible.Entries, 1)

	tests := []struct {
		name   string
		mode   models.RankingDisplayMode
		viewer uint
		reason ledger.Reason
	}{
		{name: "private for another viewer", mode: models.RankingPrivate, viewer: fan.ID, reason: ledger.ReasonOwnerOnly},
		{name: "hidden for everyone", mode: models.RankingHidden, viewer: 0, reason: ledger.ReasonHidden},
		{name: "hidden for the author", mode: models.RankingHidden, viewer: author.ID, reason: ledger.ReasonHidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := stack.users.UpdateRankingSettings(ctx, RankingSettingsInput{UserID: author.ID, RankingDisplayMode: tc.mode})
			require.NoError(t, err)

			got, err := stack.support.GetRanking(ctx, RankingQuery{PostID: post.ID, ViewerID: tc.viewer})
			require.NoError(t, err)
			assert.True(t, got.Suppressed)
			assert.Equal(t, tc.reason, got.Reason)
			assert.Empty(t, got.Entries)
		})
	}
}

func TestGetRanking_ReflectsProfileChanges(t *testing.T) {
	stack := newCachedStack(t)
	ctx := context.Background()

	author := stack.user(t, "author")
	alice := stack.user(t, "alice")
	post := stack.post(t, author)

	_, err := stack.support.SubmitDonation(ctx, SubmitDonationInput{SupporterID: alice.ID, PostID: post.ID, Amount: 500})
	require.NoError(t, err)

	queries := []RankingQuery{{}, {PostID: post.ID}, {AuthorID: author.ID}}
	for _, q := range queries {
		got, err := stack.support.GetRanking(ctx, q)
		require.NoError(t, err)
		require.Len(t, got.Entries, 1)
		assert.Equal(t, "alice", got.Entries[0].DisplayName)
	}

	anonymous := true
	_, err = stack.users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, IsAnonymous: &anonymous})
	require.NoError(t, err)

	for _, q := range queries {
		got, err := stack.support.GetRanking(ctx, q)
		require.NoError(t, err)
		require.Len(t, got.Entries, 1)
		assert.Equal(t, ledger.AnonymousLabel, got.Entries[0].DisplayName, "scope %+v", q)
	}

	showRank := true
	_, err = stack.users.UpdateRankingSettings(ctx, RankingSettingsInput{UserID: author.ID, ShowRankMode: &showRank})
	require.NoError(t, err)

	got, err := stack.support.GetRanking(ctx, RankingQuery{PostID: post.ID})
	require.NoError(t, err)
	assert.True(t, got.BadgeMode)
	require.Len(t, got.Entries, 1)
	assert.Nil(t, got.Entries[0].Amount)
}
