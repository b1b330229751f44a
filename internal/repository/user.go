package repository

import (
	"context"

	"patronage/internal/cache"
	"patronage/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetAdmin(ctx context.Context, id uint, admin bool) error
	ListAdmins(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return translateError(r.db.WithContext(ctx).First(&user, id).Error, "User", id)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs loads the users that exist among ids. Missing ids are skipped.
func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translateError(err, "User", ids)
	}
	return users, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translateError(err, "User", username)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Omit("Posts").Create(user).Error; err != nil {
		return translateError(err, "User", user.Username)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).
		Select("display_name", "avatar", "bio", "is_anonymous", "ranking_display_mode", "show_rank_mode").
		Updates(user).Error
	if err != nil {
		return translateError(err, "User", user.ID)
	}
	r.invalidateProfile(ctx, user.ID)
	return nil
}

// invalidateProfile drops every cached view that embeds the user's name,
// avatar or ranking settings: the profile, their posts and all rankings.
func (r *userRepository) invalidateProfile(ctx context.Context, userID uint) {
	cache.InvalidateUser(ctx, userID)
	cache.BumpRankingVersion(ctx)
	if cache.GetClient() == nil {
		return
	}
	var postIDs []uint
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("user_id = ?", userID).Pluck("id", &postIDs).Error; err != nil {
		return
	}
	for _, id := range postIDs {
		cache.InvalidatePost(ctx, id)
	}
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_admin", admin)
	if res.Error != nil {
		return translateError(res.Error, "User", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := r.db.WithContext(ctx).Where("is_admin = ?", true).Order("id ASC").Find(&users).Error; err != nil {
		return nil, translateError(err, "User", 0)
	}
	return users, nil
}
