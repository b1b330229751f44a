// Package bootstrap wires the runtime dependencies shared by the server and CLIs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"patronage/internal/cache"
	"patronage/internal/config"
	"patronage/internal/database"
	"patronage/internal/middleware"
	"patronage/internal/models"
	"patronage/internal/validation"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to the database, applies the schema and initializes
// Redis. A nil Redis client is returned when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	if err := EnsureDevAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}
	return db, cache.GetClient(), nil
}

// EnsureDevAdmin creates or promotes the configured development admin. It is
// a no-op outside APP_ENV=development or when DEV_BOOTSTRAP_ADMIN is off.
func EnsureDevAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapAdmin {
		return nil
	}

	username := strings.TrimSpace(cfg.DevAdminUsername)
	if username == "" {
		username = "patronage_admin"
	}
	if err := validation.ValidateUsername(username); err != nil {
		return fmt.Errorf("DEV_ADMIN_USERNAME: %w", err)
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admin models.User
		findErr := tx.Where("username = ?", username).First(&admin).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			admin = models.User{
				Username:    username,
				DisplayName: "Admin",
				IsAdmin:     true,
			}
			return tx.Omit("Posts").Create(&admin).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&models.User{}).Where("id = ?", admin.ID).Update("is_admin", true).Error
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development admin bootstrap ensured", "username", username)
	return nil
}
