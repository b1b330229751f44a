package bootstrap

import (
	"context"
	"testing"

	"patronage/internal/config"
	"patronage/internal/database"
	"patronage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDevAdmin(t *testing.T) {
	db, err := database.OpenSQLite("file:bootstrap_test?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	ctx := context.Background()

	// Disabled outside development.
	require.NoError(t, EnsureDevAdmin(ctx, &config.Config{Env: "production", DevBootstrapAdmin: true}, db))
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	reserved := &config.Config{Env: "development", DevBootstrapAdmin: true, DevAdminUsername: "admin"}
	assert.Error(t, EnsureDevAdmin(ctx, reserved, db))

	cfg := &config.Config{Env: "development", DevBootstrapAdmin: true, DevAdminUsername: "ops"}
	require.NoError(t, EnsureDevAdmin(ctx, cfg, db))

	var admin models.User
	require.NoError(t, db.Where("username = ?", "ops").First(&admin).Error)
	assert.True(t, admin.IsAdmin)

	// Demoted admins are promoted again, not duplicated.
	require.NoError(t, db.Model(&admin).Update("is_admin", false).Error)
	require.NoError(t, EnsureDevAdmin(ctx, cfg, db))
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	require.NoError(t, db.First(&admin, admin.ID).Error)
	assert.True(t, admin.IsAdmin)
}
