package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type portoneWebhookRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// HandlePortoneWebhook processes PortOne v2 subscription webhooks. The
// payload only names a payment id and status; the authoritative payment
// state is always re-fetched from the provider before touching the ledger.
func HandlePortoneWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	var req portoneWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid JSON payload",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "required fields missing (payment_id, status)",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := paymentService.HandleWebhook(ctx, req.PaymentID, req.Status, string(rawBody))
	if err != nil {
		return paymentError(c, err)
	}

	resp := fiber.Map{"success": true}
	if result.Message != "" {
		resp["message"] = result.Message
	}
	if result.Duplicate {
		resp["duplicate"] = true
	}
	if result.Payment != nil {
		resp["payment"] = result.Payment
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
