package models

import "time"

const (
	// PaymentStatusPaid marks a charge row written when the provider
	// confirms a subscription payment.
	PaymentStatusPaid = "Paid"
	// PaymentStatusCancel marks a reversal row. The webhook payload uses
	// "Cancelled" on the wire; the ledger stores "Cancel".
	PaymentStatusCancel = "Cancel"
)

// Payment is one row of the append-only subscription ledger. Rows are only
// ever inserted; a cancellation adds a reversal row with the amount negated
// instead of mutating the original. The most recent row per transaction key
// (by created_at) is authoritative for the current state of that charge.
type Payment struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	TransactionKey string     `gorm:"type:varchar(191);not null;index:idx_payments_tx_created,priority:1" json:"transaction_key"`
	Amount         int64      `gorm:"not null" json:"amount"`
	Status         string     `gorm:"type:varchar(16);not null;index" json:"status"`
	StartAt        time.Time  `gorm:"type:timestamp;not null" json:"start_at"`
	EndAt          time.Time  `gorm:"type:timestamp;not null" json:"end_at"`
	EndGraceAt     time.Time  `gorm:"type:timestamp;not null" json:"end_grace_at"`
	NextScheduleAt *time.Time `gorm:"type:timestamp;default:null" json:"next_schedule_at,omitempty"`
	NextScheduleID string     `gorm:"type:varchar(64);default:''" json:"next_schedule_id,omitempty"`
	UserID         uint       `gorm:"index" json:"user_id"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index:idx_payments_tx_created,priority:2" json:"created_at"`
}

// IsActiveAt reports whether this row, taken as the latest row of its
// transaction key, grants access at the given time.
func (p *Payment) IsActiveAt(now time.Time) bool {
	if p.Status != PaymentStatusPaid {
		return false
	}
	return !now.Before(p.StartAt) && !now.After(p.EndGraceAt)
}

// Reversal builds the compensating row for this charge. Amount is negated,
// status becomes Cancel, the period and schedule fields are carried over so
// the reversal documents which window it voids.
func (p *Payment) Reversal() *Payment {
	return &Payment{
		TransactionKey: p.TransactionKey,
		Amount:         -p.Amount,
		Status:         PaymentStatusCancel,
		StartAt:        p.StartAt,
		EndAt:          p.EndAt,
		EndGraceAt:     p.EndGraceAt,
		NextScheduleAt: p.NextScheduleAt,
		NextScheduleID: p.NextScheduleID,
		UserID:         p.UserID,
	}
}
