package subscription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/minsukang/gazette/app/models"
	"github.com/minsukang/gazette/internal/pkg/portone"
)

// Webhook statuses as delivered by the provider. Note the ledger stores
// "Cancel", not the wire value "Cancelled".
const (
	WebhookStatusPaid      = "Paid"
	WebhookStatusCancelled = "Cancelled"
)

var (
	// ErrNoPriorPayment means a cancellation referenced a transaction key
	// with no cancellable ledger row.
	ErrNoPriorPayment = errors.New("no payment found for transaction key")
	// ErrAlreadyCancelled means the reversal for this charge was already
	// written, either by a webhook delivery or an earlier user request.
	ErrAlreadyCancelled = errors.New("payment already cancelled")
)

// Service implements the subscription lifecycle: webhook reconciliation,
// user-initiated cancellation and the status read side.
type Service struct {
	repo     Repository
	provider portone.API
}

// NewService creates a subscription service from injected dependencies.
func NewService(repo Repository, provider portone.API) *Service {
	return &Service{repo: repo, provider: provider}
}

// NewServiceFromDB creates a subscription service from a GORM DB handle,
// talking to the real PortOne API.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), portone.NewClientFromEnv())
}

// WebhookResult reports what a webhook delivery did.
type WebhookResult struct {
	Duplicate bool
	Ignored   bool
	Message   string
	Payment   *models.Payment
}

// IdempotencyToken derives the dedup key for a webhook delivery. The
// provider sends no delivery id, so the payment id + status pair stands in:
// each billing cycle uses a fresh payment id, making the pair unique per
// (charge, transition).
func IdempotencyToken(paymentID, status string) string {
	sum := sha256.Sum256([]byte(paymentID + "|" + status))
	return hex.EncodeToString(sum[:])
}

// HandleWebhook processes one provider webhook delivery. Duplicate
// deliveries are acknowledged without touching the ledger. On a processing
// failure the dedup row is removed again so the provider's retry is not
// swallowed.
func (s *Service) HandleWebhook(ctx context.Context, paymentID, status, rawPayload string) (*WebhookResult, error) {
	created, stored, err := s.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:    models.WebhookProviderPortone,
		EventID:     IdempotencyToken(paymentID, status),
		EventType:   status,
		PayloadJSON: rawPayload,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return &WebhookResult{Duplicate: true, Message: "duplicate delivery"}, nil
	}

	var result *WebhookResult
	switch status {
	case WebhookStatusPaid:
		result, err = s.handlePaid(ctx, paymentID)
	case WebhookStatusCancelled:
		result, err = s.handleCancelled(ctx, paymentID)
	default:
		// Unknown statuses are acknowledged as a no-op.
		if markErr := s.repo.MarkWebhookProcessed(stored.ID, ""); markErr != nil {
			log.Printf("subscription: failed to mark webhook %d processed: %v", stored.ID, markErr)
		}
		return &WebhookResult{Ignored: true, Message: fmt.Sprintf("ignored status %q", status)}, nil
	}

	if err != nil {
		if delErr := s.repo.DeleteWebhookEvent(stored.ID); delErr != nil {
			log.Printf("subscription: failed to release webhook event %d: %v", stored.ID, delErr)
		}
		return nil, err
	}
	if markErr := s.repo.MarkWebhookProcessed(stored.ID, ""); markErr != nil {
		log.Printf("subscription: failed to mark webhook %d processed: %v", stored.ID, markErr)
	}
	return result, nil
}

// handlePaid writes the charge row for a confirmed payment and, when the
// payment carries a billing key, registers next month's charge at the
// provider. Schedule registration failure is logged only; the ledger row
// is already written and is not rolled back.
func (s *Service) handlePaid(ctx context.Context, paymentID string) (*WebhookResult, error) {
	info, err := s.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	sched := ComputeSchedule(time.Now())
	row := &models.Payment{
		TransactionKey: info.ID,
		Amount:         info.Amount.Total,
		Status:         models.PaymentStatusPaid,
		StartAt:        sched.StartAt,
		EndAt:          sched.EndAt,
		EndGraceAt:     sched.EndGraceAt,
		NextScheduleAt: &sched.NextScheduleAt,
		NextScheduleID: sched.NextScheduleID,
		UserID:         userIDFromCustomer(info.Customer.ID),
	}
	if err := s.repo.InsertPayment(row); err != nil {
		return nil, err
	}

	if info.BillingKey != "" {
		scheduleErr := s.provider.SchedulePayment(ctx, sched.NextScheduleID, portone.SchedulePayment{
			BillingKey: info.BillingKey,
			OrderName:  info.OrderName,
			CustomerID: info.Customer.ID,
			Total:      info.Amount.Total,
			TimeToPay:  sched.NextScheduleAt,
		})
		if scheduleErr != nil {
			log.Printf("subscription: renewal schedule registration failed for %s: %v", info.ID, scheduleErr)
		}
	} else {
		log.Printf("subscription: payment %s has no billing key, skipping renewal schedule", info.ID)
	}

	return &WebhookResult{Message: "payment recorded", Payment: row}, nil
}

// handleCancelled appends the reversal row for the most recent charge of
// the transaction key, then tries to drop the pending renewal schedule at
// the provider. Fails when no prior row exists; the schedule cleanup is
// logged only.
func (s *Service) handleCancelled(ctx context.Context, paymentID string) (*WebhookResult, error) {
	info, err := s.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	prior, err := s.repo.LatestByTransactionKey(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoPriorPayment
		}
		return nil, err
	}

	reversal := prior.Reversal()
	if err := s.repo.InsertPayment(reversal); err != nil {
		return nil, err
	}

	s.cancelRenewalSchedule(ctx, info.BillingKey, prior)

	return &WebhookResult{Message: "cancellation recorded", Payment: reversal}, nil
}

// CancelByUser cancels the caller's own charge: it verifies ownership,
// cancels the payment at the provider, then writes the reversal row
// through the same path the webhook uses. The Cancelled event id is
// reserved first so the provider's follow-up webhook delivery
// deduplicates instead of writing a second reversal.
func (s *Service) CancelByUser(ctx context.Context, userID uint, transactionKey string) (*models.Payment, error) {
	prior, err := s.repo.LatestOwnedByTransactionKey(userID, transactionKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoPriorPayment
		}
		return nil, err
	}
	if prior.Status != models.PaymentStatusPaid {
		return nil, ErrNoPriorPayment
	}

	if err := s.provider.CancelPayment(ctx, transactionKey, "user requested cancellation"); err != nil {
		return nil, err
	}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:    models.WebhookProviderPortone,
		EventID:     IdempotencyToken(transactionKey, WebhookStatusCancelled),
		EventType:   WebhookStatusCancelled,
		PayloadJSON: fmt.Sprintf(`{"source":"cancel-api","transaction_key":%q}`, transactionKey),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrAlreadyCancelled
	}

	reversal := prior.Reversal()
	if err := s.repo.InsertPayment(reversal); err != nil {
		if delErr := s.repo.DeleteWebhookEvent(stored.ID); delErr != nil {
			log.Printf("subscription: failed to release webhook event %d: %v", stored.ID, delErr)
		}
		return nil, err
	}

	// Best-effort renewal cleanup; needs the billing key from the provider.
	if info, err := s.provider.GetPayment(ctx, transactionKey); err != nil {
		log.Printf("subscription: payment lookup for schedule cleanup failed for %s: %v", transactionKey, err)
	} else {
		s.cancelRenewalSchedule(ctx, info.BillingKey, prior)
	}

	if markErr := s.repo.MarkWebhookProcessed(stored.ID, ""); markErr != nil {
		log.Printf("subscription: failed to mark webhook %d processed: %v", stored.ID, markErr)
	}
	return reversal, nil
}

// StatusForUser reduces the caller's ledger to the current subscription
// status. No caching; every call scans the user's rows.
func (s *Service) StatusForUser(ctx context.Context, userID uint, now time.Time) (Status, error) {
	_ = ctx
	rows, err := s.repo.ListByUser(userID)
	if err != nil {
		return Status{State: StateFree}, err
	}
	return Reduce(rows, now), nil
}

// cancelRenewalSchedule looks up the pending renewal around the stored
// next_schedule_at and asks the provider to drop it. Every failure path is
// logged and swallowed; the ledger reversal is already the source of truth.
func (s *Service) cancelRenewalSchedule(ctx context.Context, billingKey string, prior *models.Payment) {
	if billingKey == "" || prior.NextScheduleID == "" || prior.NextScheduleAt == nil {
		log.Printf("subscription: no billing key or pending schedule for %s, skipping schedule cancel", prior.TransactionKey)
		return
	}

	from := prior.NextScheduleAt.AddDate(0, 0, -1)
	until := prior.NextScheduleAt.AddDate(0, 0, 1)
	items, err := s.provider.ListSchedules(ctx, billingKey, from, until)
	if err != nil {
		log.Printf("subscription: schedule lookup failed for %s: %v", prior.TransactionKey, err)
		return
	}

	for _, item := range items {
		if item.PaymentID != prior.NextScheduleID {
			continue
		}
		if err := s.provider.CancelSchedules(ctx, []string{item.ID}); err != nil {
			log.Printf("subscription: schedule cancel failed for %s: %v", prior.TransactionKey, err)
		} else {
			log.Printf("subscription: cancelled renewal schedule %s for %s", item.ID, prior.TransactionKey)
		}
		return
	}

	log.Printf("subscription: no pending schedule matched %s for %s", prior.NextScheduleID, prior.TransactionKey)
}

func userIDFromCustomer(customerID string) uint {
	n, err := strconv.ParseUint(customerID, 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}
