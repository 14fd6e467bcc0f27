package payment

import (
	"errors"
	"time"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the payment service. Settle is
// the only write that may credit tokens and it does so inside one
// transaction with the status flip.
type Repository interface {
	CreatePayment(p *models.Payment) error
	GetPaymentByID(id uint) (*models.Payment, error)
	GetPaymentByExternalID(externalID string) (*models.Payment, error)
	SettlePayment(externalID, newStatus string) (*models.Payment, bool, error)
	HasOpenAutoTopup(userID uint) (bool, error)
	CreateSubscription(sub *models.Subscription) error
	GetSubscriptionByID(id uint) (*models.Subscription, error)
	CancelSubscription(id uint) (*models.Subscription, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreatePayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) GetPaymentByID(id uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPaymentByExternalID(externalID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("external_payment_id = ?", externalID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SettlePayment transitions the payment into newStatus and, iff the new
// status is completed, applies the ledger effect in the same transaction.
// The guard in the WHERE clause makes the transition single-shot: once a
// payment is completed no further settle can touch it, so a webhook and a
// poll racing on the same payment credit at most once.
func (r *gormRepository) SettlePayment(externalID, newStatus string) (*models.Payment, bool, error) {
	var settled models.Payment
	applied := false

	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": newStatus}
		if newStatus == models.PaymentStatusCompleted {
			now := time.Now()
			updates["completed_at"] = &now
		}

		res := tx.Model(&models.Payment{}).
			Where("external_payment_id = ? AND status <> ?", externalID, models.PaymentStatusCompleted).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already completed (idempotent no-op) or unknown; the caller
			// resolved existence before settling.
			return nil
		}
		applied = true

		if err := tx.Where("external_payment_id = ?", externalID).First(&settled).Error; err != nil {
			return err
		}
		if newStatus != models.PaymentStatusCompleted {
			return nil
		}

		switch settled.Type {
		case models.PaymentTypeCreditPurchase:
			return creditTokensTx(tx, settled.UserID, settled.Tokens)
		case models.PaymentTypeSubscription:
			return activateSubscriptionTx(tx, &settled)
		default:
			return nil
		}
	})
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return nil, false, nil
	}
	return &settled, true, nil
}

func creditTokensTx(tx *gorm.DB, userID uint, tokens int64) error {
	if tokens <= 0 {
		return nil
	}
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("token_balance", gorm.Expr("token_balance + ?", tokens))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("credit target user missing")
	}
	return nil
}

// activateSubscriptionTx flips the pending subscription active, grants its
// bonus tokens keyed by the subscription id, and stamps the user's stored
// subscription fields.
func activateSubscriptionTx(tx *gorm.DB, p *models.Payment) error {
	if p.SubscriptionID == nil {
		return errors.New("subscription payment without subscription id")
	}

	var sub models.Subscription
	if err := tx.First(&sub, *p.SubscriptionID).Error; err != nil {
		return err
	}

	now := time.Now()
	end := now.AddDate(0, 0, sub.DurationDays)
	if err := tx.Model(&sub).Updates(map[string]interface{}{
		"status":     models.SubscriptionStatusActive,
		"start_date": &now,
		"end_date":   &end,
	}).Error; err != nil {
		return err
	}

	if err := tx.Model(&models.User{}).Where("id = ?", sub.UserID).Updates(map[string]interface{}{
		"subscription_status": sub.Tier,
		"subscription_expiry": &end,
	}).Error; err != nil {
		return err
	}

	return creditTokensTx(tx, sub.UserID, sub.BonusTokensGranted)
}

func (r *gormRepository) HasOpenAutoTopup(userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).
		Where("user_id = ? AND type = ? AND auto_topup = ? AND status IN ?",
			userID, models.PaymentTypeCreditPurchase, true,
			[]string{models.PaymentStatusPending, models.PaymentStatusProcessing}).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.First(&sub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription marks the record cancelled and disables renewal. The
// row stays; subscriptions are history, never deleted.
func (r *gormRepository) CancelSubscription(id uint) (*models.Subscription, error) {
	sub, err := r.GetSubscriptionByID(id)
	if err != nil {
		return nil, err
	}
	if err := r.db.Model(sub).Updates(map[string]interface{}{
		"status":     models.SubscriptionStatusCancelled,
		"auto_renew": false,
	}).Error; err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatusCancelled
	sub.AutoRenew = false
	return sub, nil
}
