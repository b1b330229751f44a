package server

import (
	"patronage/internal/models"
	"patronage/internal/service"

	"github.com/gofiber/fiber/v2"
)

type supportRequest struct {
	PostID uint  `json:"post_id"`
	Amount int64 `json:"amount"`
}

// SubmitPostSupport handles POST /api/posts/:id/support
func (s *Server) SubmitPostSupport(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req supportRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	req.PostID = postID
	return s.submitSupport(c, req)
}

// SubmitSupport handles POST /api/supports
func (s *Server) SubmitSupport(c *fiber.Ctx) error {
	var req supportRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	return s.submitSupport(c, req)
}

func (s *Server) submitSupport(c *fiber.Ctx, req supportRequest) error {
	res, err := s.supportService.SubmitDonation(c.UserContext(), service.SubmitDonationInput{
		SupporterID: currentUserID(c),
		PostID:      req.PostID,
		Amount:      req.Amount,
	})
	if err != nil {
		return models.Respond(c, err)
	}

	s.announceDonation(res)
	return c.Status(fiber.StatusCreated).JSON(res)
}

// GetRanking handles GET /api/rankings?post_id=&author_id=&limit=&period=
func (s *Server) GetRanking(c *fiber.Ctx) error {
	postID, err := s.parseQueryID(c, "post_id")
	if err != nil {
		return nil
	}
	authorID, err := s.parseQueryID(c, "author_id")
	if err != nil {
		return nil
	}
	return s.respondRanking(c, postID, authorID)
}

// GetPostRanking handles GET /api/posts/:id/ranking
func (s *Server) GetPostRanking(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.respondRanking(c, postID, 0)
}

// GetAuthorRanking handles GET /api/users/:id/ranking
func (s *Server) GetAuthorRanking(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.respondRanking(c, 0, authorID)
}

func (s *Server) respondRanking(c *fiber.Ctx, postID, authorID uint) error {
	resp, err := s.supportService.GetRanking(c.UserContext(), service.RankingQuery{
		PostID:   postID,
		AuthorID: authorID,
		Limit:    c.QueryInt("limit", 0),
		Period:   c.Query("period"),
		ViewerID: currentUserID(c),
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(resp)
}

// GetPostEarnings handles GET /api/posts/:id/earnings
func (s *Server) GetPostEarnings(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	earnings, err := s.supportService.GetAuthorEarnings(c.UserContext(), postID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"post_id": postID, "earnings": earnings})
}

// GetPostSupports handles GET /api/posts/:id/supports. Only the post's
// author may list individual donations.
func (s *Server) GetPostSupports(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)
	donations, err := s.supportService.ListPostDonations(c.UserContext(), postID, currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(donations)
}

// GetMySupports handles GET /api/users/me/supports
func (s *Server) GetMySupports(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	history, err := s.supportService.ListSupporterDonations(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(history)
}

// GetDashboard handles GET /api/dashboard
func (s *Server) GetDashboard(c *fiber.Ctx) error {
	dash, err := s.supportService.Dashboard(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(dash)
}

// GetSupportSummary handles GET /api/users/:id/support-summary
func (s *Server) GetSupportSummary(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	summary, err := s.supportService.SupportSummary(c.UserContext(), userID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(summary)
}
