package repository

import (
	"github.com/ManuelReschke/VelvetChat/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// autoTopupRepository implements the AutoTopupRepository interface
type autoTopupRepository struct {
	db *gorm.DB
}

// NewAutoTopupRepository creates a new auto-topup repository instance
func NewAutoTopupRepository(db *gorm.DB) AutoTopupRepository {
	return &autoTopupRepository{db: db}
}

// GetByUserID retrieves a user's auto-topup configuration
func (r *autoTopupRepository) GetByUserID(userID uint) (*models.AutoTopupSettings, error) {
	var settings models.AutoTopupSettings
	err := r.db.Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert creates or replaces a user's auto-topup configuration. One row per
// user, keyed on user_id.
func (r *autoTopupRepository) Upsert(settings *models.AutoTopupSettings) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled", "threshold_tokens", "package_id", "payment_method_id", "updated_at",
		}),
	}).Create(settings).Error
}
