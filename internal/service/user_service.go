package service

import (
	"context"
	"strings"

	"patronage/internal/ledger"
	"patronage/internal/models"
	"patronage/internal/repository"
	"patronage/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepository
}

// UpdateProfileInput uses pointers so that omitted fields keep their value.
type UpdateProfileInput struct {
	UserID      uint
	DisplayName *string
	Avatar      *string
	Bio         *string
	IsAnonymous *bool
}

type RankingSettingsInput struct {
	UserID             uint
	RankingDisplayMode models.RankingDisplayMode
	ShowRankMode       *bool
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetPublicProfile hides the identity of anonymous supporters.
func (s *UserService) GetPublicProfile(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsAnonymous {
		return &models.User{
			ID:                 user.ID,
			DisplayName:        ledger.AnonymousLabel,
			IsAnonymous:        true,
			RankingDisplayMode: user.DisplayMode(),
			CreatedAt:          user.CreatedAt,
		}, nil
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if err := validation.ValidateLength("Display name", name, validation.MaxDisplayNameLen); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.DisplayName = name
	}
	if in.Avatar != nil {
		avatar := strings.TrimSpace(*in.Avatar)
		if avatar != "" {
			if err := validation.ValidateHTTPURL("avatar", avatar); err != nil {
				return nil, models.NewValidationError(err.Error())
			}
		}
		user.Avatar = avatar
	}
	if in.Bio != nil {
		if err := validation.ValidateLength("Bio", *in.Bio, validation.MaxBioLen); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Bio = *in.Bio
	}
	if in.IsAnonymous != nil {
		user.IsAnonymous = *in.IsAnonymous
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateRankingSettings(ctx context.Context, in RankingSettingsInput) (*models.User, error) {
	if in.RankingDisplayMode != "" && !in.RankingDisplayMode.Valid() {
		return nil, models.NewValidationError("ranking_display_mode must be public, private or hidden")
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if in.RankingDisplayMode != "" {
		user.RankingDisplayMode = in.RankingDisplayMode
	}
	if in.ShowRankMode != nil {
		user.ShowRankMode = *in.ShowRankMode
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	if err := s.userRepo.SetAdmin(ctx, targetID, isAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListAdmins(ctx)
}
