package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/minsukang/gazette/internal/pkg/portone"
	"github.com/minsukang/gazette/internal/pkg/subscription"
)

var validate = validator.New()

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// paymentError maps service and provider errors onto the JSON failure
// envelope. Load-bearing provider failures keep the provider's status code
// and message.
func paymentError(c *fiber.Ctx, err error) error {
	var apiErr *portone.APIError
	switch {
	case errors.Is(err, portone.ErrMissingSecret):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "PORTONE_API_SECRET is not configured",
		})
	case errors.Is(err, subscription.ErrNoPriorPayment):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "no cancellable payment found",
		})
	case errors.Is(err, subscription.ErrAlreadyCancelled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "payment already cancelled",
		})
	case errors.As(err, &apiErr):
		return c.Status(apiErr.StatusCode).JSON(fiber.Map{
			"success": false,
			"error":   apiErr.Message,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
}
