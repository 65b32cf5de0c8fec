package controllers

import "github.com/gofiber/fiber/v2"

// HandleMagazineIndex lists the current issues. The route sits behind the
// subscription guard; the listing itself is intentionally minimal.
func HandleMagazineIndex(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data": []fiber.Map{
			{"slug": "issue-12", "title": "Vol. 12 — Slow Cities"},
			{"slug": "issue-11", "title": "Vol. 11 — The Paper Trail"},
			{"slug": "issue-10", "title": "Vol. 10 — Night Markets"},
		},
	})
}
