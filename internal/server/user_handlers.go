package server

import (
	"patronage/internal/models"
	"patronage/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		DisplayName *string `json:"display_name"`
		Avatar      *string `json:"avatar"`
		Bio         *string `json:"bio"`
		IsAnonymous *bool   `json:"is_anonymous"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:      currentUserID(c),
		DisplayName: req.DisplayName,
		Avatar:      req.Avatar,
		Bio:         req.Bio,
		IsAnonymous: req.IsAnonymous,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(user)
}

// UpdateRankingSettings handles PUT /api/users/me/ranking-settings
func (s *Server) UpdateRankingSettings(c *fiber.Ctx) error {
	var req struct {
		RankingDisplayMode models.RankingDisplayMode `json:"ranking_display_mode"`
		ShowRankMode       *bool                     `json:"show_rank_mode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateRankingSettings(c.UserContext(), service.RankingSettingsInput{
		UserID:             currentUserID(c),
		RankingDisplayMode: req.RankingDisplayMode,
		ShowRankMode:       req.ShowRankMode,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"ranking_display_mode": user.DisplayMode(),
		"show_rank_mode":       user.ShowRankMode,
	})
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetPublicProfile(c.UserContext(), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(user)
}

// PromoteToAdmin handles POST /api/admin/users/:id/promote-admin
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, true)
}

// DemoteFromAdmin handles POST /api/admin/users/:id/demote-admin
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, false)
}

func (s *Server) setAdmin(c *fiber.Ctx, admin bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if !admin && id == currentUserID(c) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Admins cannot demote themselves"))
	}
	user, err := s.userService.SetAdmin(c.UserContext(), id, admin)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"id": user.ID, "is_admin": user.IsAdmin})
}
