package server

import (
	"patronage/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}

// ReconcileLedger handles POST /api/admin/ledger/reconcile
func (s *Server) ReconcileLedger(c *fiber.Ctx) error {
	report, err := s.supportService.Reconcile(c.UserContext())
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"drift":    report,
		"repaired": report.Any(),
	})
}
