package controllers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/minsukang/gazette/internal/pkg/portone"
	"github.com/minsukang/gazette/internal/pkg/subscription"
	"github.com/minsukang/gazette/internal/pkg/usercontext"
)

var (
	paymentService  *subscription.Service
	paymentProvider portone.API
)

// InitializePaymentControllers wires the payment and webhook handlers with
// their dependencies. Called once from the router during startup; tests
// initialize with fakes.
func InitializePaymentControllers(svc *subscription.Service, provider portone.API) {
	paymentService = svc
	paymentProvider = provider
}

type createPaymentRequest struct {
	BillingKey string `json:"billingKey" validate:"required"`
	OrderName  string `json:"orderName" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Customer   struct {
		ID string `json:"id"`
	} `json:"customer"`
}

type cancelPaymentRequest struct {
	TransactionKey string `json:"transactionKey" validate:"required"`
}

// HandleCreatePayment charges a stored billing key for the first
// subscription period. No ledger row is written here; that happens when
// the provider's Paid webhook arrives.
func HandleCreatePayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid JSON payload",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "required fields missing (billingKey, orderName, amount)",
		})
	}

	paymentID := newPaymentID()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// The customer id carried to the provider is the local user id; the
	// webhook resolves it back to bind the ledger row to its owner.
	result, err := paymentProvider.PayWithBillingKey(ctx, paymentID, portone.BillingKeyPayment{
		BillingKey: req.BillingKey,
		OrderName:  req.OrderName,
		Amount:     portone.Amount{Total: req.Amount},
		Customer:   portone.Customer{ID: strconv.FormatUint(uint64(userCtx.UserID), 10)},
	})
	if err != nil {
		return paymentError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":     true,
		"paymentId":   paymentID,
		"portoneData": result,
	})
}

// HandleCancelPayment cancels the caller's own charge and writes the
// reversal row synchronously, so the status endpoint reflects the
// cancellation without waiting for the provider's webhook round-trip.
func HandleCancelPayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req cancelPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid JSON payload",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "transactionKey is required",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	reversal, err := paymentService.CancelByUser(ctx, userCtx.UserID, req.TransactionKey)
	if err != nil {
		return paymentError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"payment": reversal,
	})
}

// HandlePaymentStatus reports whether the caller currently has an active
// subscription.
func HandlePaymentStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	status, err := paymentService.StatusForUser(c.Context(), userCtx.UserID, time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "payment status lookup failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    status,
	})
}

// newPaymentID builds a unique provider-side payment id for a first charge,
// e.g. payment_1716899000123_a1b2c3d4.
func newPaymentID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("payment_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
