package service

import (
	"context"
	"strings"

	"patronage/internal/models"
	"patronage/internal/repository"
	"patronage/internal/validation"
)

type PostService struct {
	postRepo repository.PostRepository
}

type CreatePostInput struct {
	UserID      uint
	Title       string
	Description string
	ImageURL    string
}

type ListPostsInput struct {
	Limit  int
	Offset int
	Sort   string
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if err := validation.ValidateLength("Title", title, validation.MaxTitleLen); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLength("Description", in.Description, validation.MaxDescriptionLen); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if strings.TrimSpace(in.ImageURL) == "" {
		return nil, models.NewValidationError("image_url is required")
	}
	if err := validation.ValidateHTTPURL("image_url", in.ImageURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post := &models.Post{
		Title:       title,
		Description: in.Description,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		UserID:      in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]models.Post, error) {
	sort := in.Sort
	switch sort {
	case "", repository.SortNew:
		sort = repository.SortNew
	case repository.SortTop:
	default:
		return nil, models.NewValidationError("sort must be new or top")
	}
	return s.postRepo.List(ctx, in.Limit, in.Offset, sort)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

func (s *PostService) GetUserPosts(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error) {
	return s.postRepo.ListByUser(ctx, userID, limit, offset)
}
