package ledger

import (
	"context"
	"errors"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
)

// Repository provides the atomic balance operations used by the ledger
// service. Both mutations are single conditional updates at the storage
// layer; there is no read-then-write window.
type Repository interface {
	GetBalance(ctx context.Context, userID uint) (int64, error)
	AddTokens(ctx context.Context, userID uint, amount int64) (int64, error)
	SubtractTokens(ctx context.Context, userID uint, amount int64) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetBalance(ctx context.Context, userID uint) (int64, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("id", "token_balance").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.TokenBalance, nil
}

func (r *gormRepository) AddTokens(ctx context.Context, userID uint, amount int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("token_balance", gorm.Expr("token_balance + ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrUserNotFound
	}
	return r.GetBalance(ctx, userID)
}

func (r *gormRepository) SubtractTokens(ctx context.Context, userID uint, amount int64) (int64, error) {
	// The balance guard lives in the WHERE clause so two concurrent debits
	// can never both succeed when only one could be afforded.
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND token_balance >= ?", userID, amount).
		UpdateColumn("token_balance", gorm.Expr("token_balance - ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetBalance(ctx, userID); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientBalance
	}
	return r.GetBalance(ctx, userID)
}

// Service owns the per-user spendable token balance.
type Service struct {
	repo Repository
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// GetBalance returns the user's current token balance.
func (s *Service) GetBalance(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, ErrUserNotFound
	}
	return s.repo.GetBalance(ctx, userID)
}

// Credit adds tokens to a user's balance and returns the new balance. The
// reason is only logged; callers that need an audit trail key credits by
// payment or subscription id.
func (s *Service) Credit(ctx context.Context, userID uint, amount int64, reason string) (int64, error) {
	if userID == 0 {
		return 0, ErrUserNotFound
	}
	if amount <= 0 {
		return 0, ErrNonPositiveAmount
	}
	balance, err := s.repo.AddTokens(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	log.Infof("[Ledger] credit user=%d amount=%d reason=%s balance=%d", userID, amount, reason, balance)
	return balance, nil
}

// Debit removes tokens from a user's balance and returns the new balance.
// Debits that would go negative fail with ErrInsufficientBalance and are
// never clamped. No internal retries; callers decide retry policy.
func (s *Service) Debit(ctx context.Context, userID uint, amount int64) (int64, error) {
	if userID == 0 {
		return 0, ErrUserNotFound
	}
	if amount <= 0 {
		return 0, ErrNonPositiveAmount
	}
	balance, err := s.repo.SubtractTokens(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	log.Infof("[Ledger] debit user=%d amount=%d balance=%d", userID, amount, balance)
	return balance, nil
}
