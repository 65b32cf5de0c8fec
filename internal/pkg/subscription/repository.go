package subscription

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minsukang/gazette/app/models"
)

// Repository provides the ledger and webhook-event DB operations used by
// the subscription service. Ledger rows are insert-only; the webhook event
// table is the only one that gets updated (processing metadata).
type Repository interface {
	InsertPayment(p *models.Payment) error
	LatestByTransactionKey(key string) (*models.Payment, error)
	LatestOwnedByTransactionKey(userID uint, key string) (*models.Payment, error)
	ListByUser(userID uint) ([]models.Payment, error)
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	DeleteWebhookEvent(id uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a subscription repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) InsertPayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) LatestByTransactionKey(key string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.
		Where("transaction_key = ?", key).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) LatestOwnedByTransactionKey(userID uint, key string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.
		Where("user_id = ? AND transaction_key = ?", userID, key).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) ListByUser(userID uint) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND event_id = ?", event.Provider, event.EventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) DeleteWebhookEvent(id uint) error {
	return r.db.Delete(&models.WebhookEvent{}, id).Error
}
