package controllers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/minsukang/gazette/internal/pkg/session"
	"github.com/minsukang/gazette/internal/pkg/usercontext"
)

// HandleSessionStatus reports the login state of the calling session.
func HandleSessionStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"logged_in": false,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"logged_in": true,
		"user": fiber.Map{
			"id":   userCtx.UserID,
			"name": userCtx.Username,
		},
	})
}

// HandleAuthLogout destroys the calling session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		// No session to destroy, treat as logged out.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
	}

	if err := sess.Destroy(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("logout failed: %v", err),
		})
	}

	c.Locals(usercontext.KeyFromProtected, false)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}
