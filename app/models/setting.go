package models

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer, float
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	FreeMessagePolicyLifetime = "lifetime"
	FreeMessagePolicyWindow   = "window"
)

// QuotaSettings is the durable site-wide quota and pricing configuration.
// Values live in the settings table so every service instance observes the
// same state after an explicit LoadSettings refresh.
type QuotaSettings struct {
	FreeMessageCap         int    `json:"free_message_cap" validate:"gte=0"`
	FreeMessagePolicy      string `json:"free_message_policy" validate:"oneof=lifetime window"`
	FreeMessageWindowHours int    `json:"free_message_window_hours" validate:"gte=1"`
	DefaultUnlockPrice     int64  `json:"default_unlock_price" validate:"gte=0"`
	MessageCostTokens      int64  `json:"message_cost_tokens" validate:"gte=0"`
	TopupCooldownMinutes   int    `json:"topup_cooldown_minutes" validate:"gte=1"`
}

// Global settings instance
var (
	quotaSettings *QuotaSettings
	settingsMu    sync.RWMutex
)

// DefaultQuotaSettings returns the built-in fallback configuration.
func DefaultQuotaSettings() *QuotaSettings {
	return &QuotaSettings{
		FreeMessageCap:         10,
		FreeMessagePolicy:      FreeMessagePolicyWindow,
		FreeMessageWindowHours: 24,
		DefaultUnlockPrice:     25,
		MessageCostTokens:      5,
		TopupCooldownMinutes:   30,
	}
}

// GetQuotaSettings returns the currently loaded quota settings. Callers get
// the defaults when LoadSettings has not run yet.
func GetQuotaSettings() *QuotaSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	if quotaSettings == nil {
		return DefaultQuotaSettings()
	}
	return quotaSettings
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	qs := DefaultQuotaSettings()

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, setting := range settings {
		switch setting.Key {
		case "free_message_cap":
			if v, err := strconv.Atoi(setting.Value); err == nil {
				qs.FreeMessageCap = v
			}
		case "free_message_policy":
			if setting.Value == FreeMessagePolicyLifetime || setting.Value == FreeMessagePolicyWindow {
				qs.FreeMessagePolicy = setting.Value
			}
		case "free_message_window_hours":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				qs.FreeMessageWindowHours = v
			}
		case "default_unlock_price":
			if v, err := strconv.ParseInt(setting.Value, 10, 64); err == nil && v >= 0 {
				qs.DefaultUnlockPrice = v
			}
		case "message_cost_tokens":
			if v, err := strconv.ParseInt(setting.Value, 10, 64); err == nil && v >= 0 {
				qs.MessageCostTokens = v
			}
		case "topup_cooldown_minutes":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				qs.TopupCooldownMinutes = v
			}
		}
	}

	quotaSettings = qs
	return nil
}

// SaveSettings validates and writes the settings to the database, then swaps
// the in-memory snapshot.
func SaveSettings(db *gorm.DB, qs *QuotaSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if err := qs.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	settingsMap := map[string]string{
		"free_message_cap":          strconv.Itoa(qs.FreeMessageCap),
		"free_message_policy":       qs.FreeMessagePolicy,
		"free_message_window_hours": strconv.Itoa(qs.FreeMessageWindowHours),
		"default_unlock_price":      strconv.FormatInt(qs.DefaultUnlockPrice, 10),
		"message_cost_tokens":       strconv.FormatInt(qs.MessageCostTokens, 10),
		"topup_cooldown_minutes":    strconv.Itoa(qs.TopupCooldownMinutes),
	}

	for key, value := range settingsMap {
		var setting Setting
		err := db.Where("setting_key = ?", key).First(&setting).Error
		if err == gorm.ErrRecordNotFound {
			setting = Setting{Key: key, Value: value, Type: "string"}
			if err := db.Create(&setting).Error; err != nil {
				return err
			}
			continue
		} else if err != nil {
			return err
		}
		setting.Value = value
		if err := db.Save(&setting).Error; err != nil {
			return err
		}
	}

	quotaSettings = qs
	return nil
}

// Validate validates the settings struct
func (qs *QuotaSettings) Validate() error {
	v := validator.New()
	return v.Struct(qs)
}

// FreeMessageWindow returns the rolling window duration for the window policy.
func (qs *QuotaSettings) FreeMessageWindow() time.Duration {
	return time.Duration(qs.FreeMessageWindowHours) * time.Hour
}

// TopupCooldown returns how long the auto-topup guard holds off repeat charges.
func (qs *QuotaSettings) TopupCooldown() time.Duration {
	return time.Duration(qs.TopupCooldownMinutes) * time.Minute
}
