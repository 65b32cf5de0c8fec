package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/minsukang/gazette/internal/pkg/subscription"
	"github.com/minsukang/gazette/internal/pkg/usercontext"
)

// RequireAPISessionAuth ensures a logged-in session for API routes and
// returns JSON 401 otherwise. Point-in-time check: the session can expire
// between this gate and the guarded action.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "login required",
		})
	}
	return c.Next()
}

// NewSubscriptionGuard builds a gate that blocks the wrapped route unless
// the caller currently has an active subscription. Like the auth gate it is
// a point-in-time check with no locking against the guarded action.
func NewSubscriptionGuard(svc *subscription.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userCtx := usercontext.GetUserContext(c)
		if !userCtx.IsLoggedIn {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "login required",
			})
		}

		status, err := svc.StatusForUser(c.Context(), userCtx.UserID, time.Now())
		if err != nil {
			log.Printf("middleware: subscription check failed for user %d: %v", userCtx.UserID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "subscription check failed",
			})
		}
		if !status.IsSubscribed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "subscription required",
			})
		}
		return c.Next()
	}
}
