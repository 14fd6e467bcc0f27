package topup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/cache"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/payment"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Store loads the auto-topup configuration and balances the monitor sweeps.
type Store interface {
	ListEnabled() ([]models.AutoTopupSettings, error)
	GetBalance(userID uint) (int64, error)
}

// Purchaser starts the actual purchase. *payment.Service satisfies this.
type Purchaser interface {
	InitiatePurchase(ctx context.Context, in payment.PurchaseInput) (*models.Payment, *payment.Checkout, error)
	HasOpenAutoTopup(ctx context.Context, userID uint) (bool, error)
}

// Guard rate-limits top-ups per user. The production guard is a Redis SETNX
// key with a TTL, so the cooldown holds across service instances.
type Guard interface {
	TryAcquire(userID uint, ttl time.Duration) bool
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a monitor store backed by GORM.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) ListEnabled() ([]models.AutoTopupSettings, error) {
	var rows []models.AutoTopupSettings
	if err := s.db.Where("enabled = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *gormStore) GetBalance(userID uint) (int64, error) {
	var user models.User
	if err := s.db.Select("id", "token_balance").First(&user, userID).Error; err != nil {
		return 0, err
	}
	return user.TokenBalance, nil
}

type redisGuard struct{}

// NewRedisGuard returns the cache-backed cooldown guard.
func NewRedisGuard() Guard {
	return redisGuard{}
}

func (redisGuard) TryAcquire(userID uint, ttl time.Duration) bool {
	ok, err := cache.SetNX(fmt.Sprintf("topup:inflight:%d", userID), 1, ttl)
	if err != nil {
		log.Errorf("[TopUp Monitor] Cooldown guard error for user %d: %v", userID, err)
		// Fail closed: a broken guard must not let charges repeat.
		return false
	}
	return ok
}

// Monitor periodically sweeps enabled auto-topup configurations and starts a
// purchase for every user whose balance fell below their threshold. An open
// in-flight purchase or an active cooldown skips the user.
type Monitor struct {
	store     Store
	purchaser Purchaser
	guard     Guard
	settings  func() *models.QuotaSettings
	interval  time.Duration

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewMonitor creates an auto-topup monitor sweeping at the given interval.
func NewMonitor(store Store, purchaser Purchaser, guard Guard, interval time.Duration) *Monitor {
	return &Monitor{
		store:     store,
		purchaser: purchaser,
		guard:     guard,
		settings:  models.GetQuotaSettings,
		interval:  interval,
	}
}

// WithSettings overrides the settings source (tests).
func (m *Monitor) WithSettings(src func() *models.QuotaSettings) *Monitor {
	m.settings = src
	return m
}

// Start starts the background sweep loop.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the monitor can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true

	log.Infof("[TopUp Monitor] Starting auto-topup sweep (interval: %s)", m.interval)

	m.ticker = time.NewTicker(m.interval)
	m.wg.Add(1)
	go m.sweepWorker()
}

// Stop stops the sweep loop and waits for the worker to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[TopUp Monitor] Stopping auto-topup sweep...")

	if m.ticker != nil {
		m.ticker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	log.Info("[TopUp Monitor] Stopped successfully")
}

// IsRunning returns whether the monitor is currently running
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) sweepWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[TopUp Monitor] Sweep worker stopping")
			return
		case <-m.ticker.C:
			if err := m.SweepOnce(context.Background()); err != nil {
				log.Errorf("[TopUp Monitor] Sweep error: %v", err)
			}
		}
	}
}

// SweepOnce runs one pass over all enabled configurations. Per-user failures
// are logged and do not abort the sweep.
func (m *Monitor) SweepOnce(ctx context.Context) error {
	rows, err := m.store.ListEnabled()
	if err != nil {
		return err
	}

	cooldown := m.settings().TopupCooldown()
	for i := range rows {
		if err := m.checkUser(ctx, &rows[i], cooldown); err != nil {
			log.Errorf("[TopUp Monitor] User %d: %v", rows[i].UserID, err)
		}
	}
	return nil
}

func (m *Monitor) checkUser(ctx context.Context, cfg *models.AutoTopupSettings, cooldown time.Duration) error {
	balance, err := m.store.GetBalance(cfg.UserID)
	if err != nil {
		return err
	}
	if balance >= cfg.ThresholdTokens {
		return nil
	}

	open, err := m.purchaser.HasOpenAutoTopup(ctx, cfg.UserID)
	if err != nil {
		return err
	}
	if open {
		log.Debugf("[TopUp Monitor] User %d already has an open top-up", cfg.UserID)
		return nil
	}

	if !m.guard.TryAcquire(cfg.UserID, cooldown) {
		log.Debugf("[TopUp Monitor] User %d is in cooldown", cfg.UserID)
		return nil
	}

	p, _, err := m.purchaser.InitiatePurchase(ctx, payment.PurchaseInput{
		UserID:          cfg.UserID,
		PackageID:       cfg.PackageID,
		PaymentMethodID: cfg.PaymentMethodID,
		AutoTopup:       true,
	})
	if err != nil {
		return err
	}

	log.Infof("[TopUp Monitor] Started top-up for user %d (balance %d < threshold %d, payment %d)",
		cfg.UserID, balance, cfg.ThresholdTokens, p.ID)
	return nil
}
