package service

import (
	"context"
	"strings"
	"testing"

	"patronage/internal/ledger"
	"patronage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestUserService_UpdateProfile_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input UpdateProfileInput
	}{
		{name: "display name too long", input: UpdateProfileInput{UserID: 1, DisplayName: ptr(strings.Repeat("名", 51))}},
		{name: "bio too long", input: UpdateProfileInput{UserID: 1, Bio: ptr(strings.Repeat("b", 501))}},
		{name: "avatar not a url", input: UpdateProfileInput{UserID: 1, Avatar: ptr("not a url")}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := noopUserRepo()
			repo.updateFn = func(context.Context, *models.User) error {
				t.Fatal("update must not be called for invalid input")
				return nil
			}
			_, err := NewUserService(repo).UpdateProfile(context.Background(), tc.input)
			assertValidationError(t, err)
		})
	}
}

func TestUserService_UpdateProfile_PartialUpdate(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, DisplayName: "Aoi", Avatar: "https://img.example/aoi.png", Bio: "painter"}, nil
	}
	var saved *models.User
	repo.updateFn = func(_ context.Context, u *models.User) error {
		saved = u
		return nil
	}

	user, err := NewUserService(repo).UpdateProfile(context.Background(), UpdateProfileInput{
		UserID:      3,
		DisplayName: ptr(" 葵 "),
		IsAnonymous: ptr(true),
	})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "葵", user.DisplayName)
	assert.True(t, user.IsAnonymous)
	assert.Equal(t, "https://img.example/aoi.png", user.Avatar, "omitted fields are kept")
	assert.Equal(t, "painter", user.Bio)

	user, err = NewUserService(repo).UpdateProfile(context.Background(), UpdateProfileInput{UserID: 3, Avatar: ptr("")})
	require.NoError(t, err)
	assert.Empty(t, user.Avatar, "an empty avatar clears it")
}

func TestUserService_UpdateRankingSettings(t *testing.T) {
	t.Parallel()

	t.Run("invalid mode", func(t *testing.T) {
		t.Parallel()
		_, err := NewUserService(noopUserRepo()).UpdateRankingSettings(context.Background(), RankingSettingsInput{
			UserID:             1,
			RankingDisplayMode: "friends",
		})
		assertValidationError(t, err)
	})

	t.Run("updates mode and badge mode", func(t *testing.T) {
		t.Parallel()
		repo := noopUserRepo()
		user, err := NewUserService(repo).UpdateRankingSettings(context.Background(), RankingSettingsInput{
			UserID:             1,
			RankingDisplayMode: models.RankingPrivate,
			ShowRankMode:       ptr(true),
		})
		require.NoError(t, err)
		assert.Equal(t, models.RankingPrivate, user.RankingDisplayMode)
		assert.True(t, user.ShowRankMode)
	})
}

func TestUserService_GetPublicProfile_Anonymous(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, Username: "secret", DisplayName: "Real Name", Avatar: "https://x/y.png", IsAnonymous: true}, nil
	}
	profile, err := NewUserService(repo).GetPublicProfile(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, ledger.AnonymousLabel, profile.DisplayName)
	assert.Empty(t, profile.Username)
	assert.Empty(t, profile.Avatar)
}

func TestUserService_SetAdmin(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	admins := map[uint]bool{}
	repo.setAdminFn = func(_ context.Context, id uint, admin bool) error {
		if id == 404 {
			return models.NewNotFoundError("User", id)
		}
		admins[id] = admin
		return nil
	}
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, IsAdmin: admins[id]}, nil
	}
	svc := NewUserService(repo)

	user, err := svc.SetAdmin(context.Background(), 2, true)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	ok, err := svc.IsAdmin(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.SetAdmin(context.Background(), 404, true)
	assertAppErrorCode(t, err, models.CodeNotFound)
}
