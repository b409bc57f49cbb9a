package repository

import (
	"printshop/internal/models"

	"gorm.io/gorm"
)

type FinishingRepository interface {
	Create(option *models.FinishingOption) error
	GetByID(id uint) (*models.FinishingOption, error)
	GetActive() ([]models.FinishingOption, error)
	GetAll() ([]models.FinishingOption, error)
	Update(option *models.FinishingOption) error
	Delete(id uint) error
}

type finishingRepository struct {
	db *gorm.DB
}

func NewFinishingRepository(db *gorm.DB) FinishingRepository {
	return &finishingRepository{db: db}
}

func (r *finishingRepository) Create(option *models.FinishingOption) error {
	return r.db.Create(option).Error
}

func (r *finishingRepository) GetByID(id uint) (*models.FinishingOption, error) {
	var option models.FinishingOption
	err := r.db.First(&option, id).Error
	if err != nil {
		return nil, err
	}
	return &option, nil
}

func (r *finishingRepository) GetActive() ([]models.FinishingOption, error) {
	var options []models.FinishingOption
	err := r.db.Where("is_active = ?", true).Order("sort_order ASC, name ASC").Find(&options).Error
	return options, err
}

func (r *finishingRepository) GetAll() ([]models.FinishingOption, error) {
	var options []models.FinishingOption
	err := r.db.Order("sort_order ASC, name ASC").Find(&options).Error
	return options, err
}

func (r *finishingRepository) Update(option *models.FinishingOption) error {
	return r.db.Save(option).Error
}

func (r *finishingRepository) Delete(id uint) error {
	return r.db.Delete(&models.FinishingOption{}, id).Error
}
