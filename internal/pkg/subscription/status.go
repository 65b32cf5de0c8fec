package subscription

import (
	"time"

	"github.com/minsukang/gazette/app/models"
)

const (
	StateSubscribed = "subscribed"
	StateFree       = "free"
)

// Status is the read-side reduction of a user's ledger rows.
type Status struct {
	IsSubscribed   bool   `json:"is_subscribed"`
	State          string `json:"status"`
	TransactionKey string `json:"transaction_key,omitempty"`
}

// Reduce folds ledger rows into a subscription status at the given time.
// Per transaction key only the row with the greatest created_at counts;
// the key is active when that row is a Paid charge whose window
// [start_at, end_grace_at] contains now. One or more active keys means
// subscribed, and the most recently created active row names the
// transaction key exposed for display and cancellation. Older rows never
// change the outcome.
func Reduce(rows []models.Payment, now time.Time) Status {
	latest := make(map[string]models.Payment, len(rows))
	for _, row := range rows {
		current, ok := latest[row.TransactionKey]
		if !ok || row.CreatedAt.After(current.CreatedAt) {
			latest[row.TransactionKey] = row
		}
	}

	var active *models.Payment
	for key := range latest {
		row := latest[key]
		if !row.IsActiveAt(now) {
			continue
		}
		if active == nil || row.CreatedAt.After(active.CreatedAt) {
			candidate := row
			active = &candidate
		}
	}

	if active == nil {
		return Status{IsSubscribed: false, State: StateFree}
	}
	return Status{
		IsSubscribed:   true,
		State:          StateSubscribed,
		TransactionKey: active.TransactionKey,
	}
}
