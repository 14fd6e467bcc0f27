package quota

import (
	"errors"
	"time"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/ledger"
	"gorm.io/gorm"
)

// Repository provides the DB operations the quota gate relies on. The
// free-message increment and the unlock are conditional updates so repeated
// or concurrent calls cannot overshoot the cap or double-debit.
type Repository interface {
	GetOrCreateFreeUsage(userID uint) (*models.FreeMessageUsage, error)
	ResetFreeUsageWindow(userID uint, startedBefore time.Time) error
	ConsumeFreeMessage(userID uint, cap int) (bool, error)
	GetMessage(chatID, messageID uint) (*models.ChatMessage, error)
	GetChat(chatID uint) (*models.Chat, error)
	UnlockMessage(userID, messageID uint, price int64) (*models.ChatMessage, int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a quota repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrCreateFreeUsage(userID uint) (*models.FreeMessageUsage, error) {
	var usage models.FreeMessageUsage
	err := r.db.Where("user_id = ?", userID).First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		usage = models.FreeMessageUsage{UserID: userID, WindowStartedAt: time.Now()}
		if err := r.db.Create(&usage).Error; err != nil {
			return nil, err
		}
		return &usage, nil
	}
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

func (r *gormRepository) ResetFreeUsageWindow(userID uint, startedBefore time.Time) error {
	// The window guard sits in the WHERE clause so two racing resets only
	// apply once.
	return r.db.Model(&models.FreeMessageUsage{}).
		Where("user_id = ? AND window_started_at < ?", userID, startedBefore).
		Updates(map[string]interface{}{
			"used_count":        0,
			"window_started_at": time.Now(),
		}).Error
}

func (r *gormRepository) ConsumeFreeMessage(userID uint, cap int) (bool, error) {
	res := r.db.Model(&models.FreeMessageUsage{}).
		Where("user_id = ? AND used_count < ?", userID, cap).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) GetMessage(chatID, messageID uint) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.Where("id = ? AND chat_id = ?", messageID, chatID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *gormRepository) GetChat(chatID uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.First(&chat, chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// UnlockMessage flips the lock and debits the unlock price in one
// transaction. The lock flip is conditional on is_locked so a second call
// fails before any money moves; a failed debit rolls the flip back.
func (r *gormRepository) UnlockMessage(userID, messageID uint, price int64) (*models.ChatMessage, int64, error) {
	var (
		msg     models.ChatMessage
		balance int64
	)

	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.ChatMessage{}).
			Where("id = ? AND is_locked = ?", messageID, true).
			Updates(map[string]interface{}{
				"is_locked":   false,
				"unlocked_at": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyUnlocked
		}

		if price > 0 {
			debit := tx.Model(&models.User{}).
				Where("id = ? AND token_balance >= ?", userID, price).
				UpdateColumn("token_balance", gorm.Expr("token_balance - ?", price))
			if debit.Error != nil {
				return debit.Error
			}
			if debit.RowsAffected == 0 {
				return ledger.ErrInsufficientBalance
			}
		}

		if err := tx.First(&msg, messageID).Error; err != nil {
			return err
		}
		var user models.User
		if err := tx.Select("id", "token_balance").First(&user, userID).Error; err != nil {
			return err
		}
		balance = user.TokenBalance
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &msg, balance, nil
}
