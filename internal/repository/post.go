package repository

import (
	"context"

	"patronage/internal/cache"
	"patronage/internal/models"

	"gorm.io/gorm"
)

// Gallery sort orders.
const (
	SortNew = "new"
	SortTop = "top"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int, sort string) ([]models.Post, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	post.TotalSupport = 0
	post.SupportCount = 0
	if err := r.db.WithContext(ctx).Omit("User").Create(post).Error; err != nil {
		return translateError(err, "User", post.UserID)
	}
	return nil
}

// GetByID loads a post with its author. Anonymous reads go through the cache;
// donations invalidate the entry.
func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return translateError(
			r.db.WithContext(ctx).Preload("User").First(&post, id).Error,
			"Post", id,
		)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int, sort string) ([]models.Post, error) {
	posts := []models.Post{}
	err := applySort(r.db.WithContext(ctx).Preload("User"), sort).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, translateError(err, "Post", 0)
	}
	return posts, nil
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error) {
	posts := []models.Post{}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, translateError(err, "User", userID)
	}
	return posts, nil
}

func applySort(q *gorm.DB, sort string) *gorm.DB {
	if sort == SortTop {
		return q.Order("total_support DESC").Order("id DESC")
	}
	return q.Order("created_at DESC").Order("id DESC")
}
