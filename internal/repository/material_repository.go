package repository

import (
	"printshop/internal/models"

	"gorm.io/gorm"
)

type MaterialRepository interface {
	Create(material *models.Material) error
	GetByID(id uint) (*models.Material, error)
	GetActive() ([]models.Material, error)
	GetAll() ([]models.Material, error)
	Update(material *models.Material) error
	Delete(id uint) error
}

type materialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) MaterialRepository {
	return &materialRepository{db: db}
}

func (r *materialRepository) Create(material *models.Material) error {
	return r.db.Create(material).Error
}

func (r *materialRepository) GetByID(id uint) (*models.Material, error) {
	var material models.Material
	err := r.db.First(&material, id).Error
	if err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *materialRepository) GetActive() ([]models.Material, error) {
	var materials []models.Material
	err := r.db.Where("is_active = ?", true).Order("sort_order ASC, name ASC").Find(&materials).Error
	return materials, err
}

func (r *materialRepository) GetAll() ([]models.Material, error) {
	var materials []models.Material
	err := r.db.Order("sort_order ASC, name ASC").Find(&materials).Error
	return materials, err
}

func (r *materialRepository) Update(material *models.Material) error {
	return r.db.Save(material).Error
}

func (r *materialRepository) Delete(id uint) error {
	return r.db.Delete(&models.Material{}, id).Error
}
