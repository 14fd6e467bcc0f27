package repository

import (
	"github.com/ManuelReschke/VelvetChat/app/models"
	"gorm.io/gorm"
)

// personaRepository implements the PersonaRepository interface
type personaRepository struct {
	db *gorm.DB
}

// NewPersonaRepository creates a new persona repository instance
func NewPersonaRepository(db *gorm.DB) PersonaRepository {
	return &personaRepository{db: db}
}

// Create creates a new persona in the database
func (r *personaRepository) Create(persona *models.Persona) error {
	return r.db.Create(persona).Error
}

// GetByID retrieves a persona by its ID
func (r *personaRepository) GetByID(id uint) (*models.Persona, error) {
	var persona models.Persona
	err := r.db.First(&persona, id).Error
	if err != nil {
		return nil, err
	}
	return &persona, nil
}

// GetActive retrieves all personas users may start chats with
func (r *personaRepository) GetActive() ([]models.Persona, error) {
	var personas []models.Persona
	err := r.db.Where("status = ?", models.STATUS_ACTIVE).Order("name ASC").Find(&personas).Error
	return personas, err
}

// List retrieves a paginated list of personas
func (r *personaRepository) List(offset, limit int) ([]models.Persona, error) {
	var personas []models.Persona
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&personas).Error
	return personas, err
}

// Update updates an existing persona in the database
func (r *personaRepository) Update(persona *models.Persona) error {
	return r.db.Save(persona).Error
}

// Delete soft deletes a persona by its ID
func (r *personaRepository) Delete(id uint) error {
	return r.db.Delete(&models.Persona{}, id).Error
}
