package repository

import (
	"github.com/ManuelReschke/VelvetChat/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
}

// PersonaRepository defines the interface for persona-related database operations
type PersonaRepository interface {
	Create(persona *models.Persona) error
	GetByID(id uint) (*models.Persona, error)
	GetActive() ([]models.Persona, error)
	List(offset, limit int) ([]models.Persona, error)
	Update(persona *models.Persona) error
	Delete(id uint) error
}

// ChatRepository defines the interface for chat and message operations
type ChatRepository interface {
	Create(chat *models.Chat) error
	GetByID(id uint) (*models.Chat, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Chat, error)
	CountByUserID(userID uint) (int64, error)
	Delete(id uint) error
	AddMessage(message *models.ChatMessage) error
	GetMessages(chatID uint, offset, limit int) ([]models.ChatMessage, error)
	CountMessages(chatID uint) (int64, error)
}

// AutoTopupRepository defines the interface for per-user auto-topup configuration
type AutoTopupRepository interface {
	GetByUserID(userID uint) (*models.AutoTopupSettings, error)
	Upsert(settings *models.AutoTopupSettings) error
}

// SettingRepository defines the interface for application settings
type SettingRepository interface {
	GetQuota() (*models.QuotaSettings, error)
	SaveQuota(settings *models.QuotaSettings) error
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User      UserRepository
	Persona   PersonaRepository
	Chat      ChatRepository
	AutoTopup AutoTopupRepository
	Setting   SettingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db),
		Persona:   NewPersonaRepository(db),
		Chat:      NewChatRepository(db),
		AutoTopup: NewAutoTopupRepository(db),
		Setting:   NewSettingRepository(db),
	}
}
