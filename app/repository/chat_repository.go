package repository

import (
	"github.com/ManuelReschke/VelvetChat/app/models"
	"gorm.io/gorm"
)

// chatRepository implements the ChatRepository interface
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository instance
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// Create creates a new chat in the database
func (r *chatRepository) Create(chat *models.Chat) error {
	return r.db.Create(chat).Error
}

// GetByID retrieves a chat by its ID including its persona
func (r *chatRepository) GetByID(id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.Preload("Persona").First(&chat, id).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetByUserID retrieves a user's chats, newest first
func (r *chatRepository) GetByUserID(userID uint, offset, limit int) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.Where("user_id = ?", userID).
		Preload("Persona").
		Order("updated_at DESC").
		Offset(offset).Limit(limit).
		Find(&chats).Error
	return chats, err
}

// CountByUserID counts a user's chats. Soft-deleted chats do not count
// against the chat limit.
func (r *chatRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Chat{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// Delete soft deletes a chat by its ID
func (r *chatRepository) Delete(id uint) error {
	return r.db.Delete(&models.Chat{}, id).Error
}

// AddMessage appends a message to a chat
func (r *chatRepository) AddMessage(message *models.ChatMessage) error {
	return r.db.Create(message).Error
}

// GetMessages retrieves a chat's messages in chronological order
func (r *chatRepository) GetMessages(chatID uint, offset, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&messages).Error
	return messages, err
}

// CountMessages counts the messages in a chat
func (r *chatRepository) CountMessages(chatID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ChatMessage{}).Where("chat_id = ?", chatID).Count(&count).Error
	return count, err
}
