package repository

import (
	"errors"
	"printshop/internal/models"

	"gorm.io/gorm"
)

type SettingsRepository interface {
	Get(key string) (*models.SiteSetting, error)
	GetAll() ([]models.SiteSetting, error)
	Upsert(setting *models.SiteSetting) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(key string) (*models.SiteSetting, error) {
	var setting models.SiteSetting
	err := r.db.Where("setting_key = ?", key).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *settingsRepository) GetAll() ([]models.SiteSetting, error) {
	var settings []models.SiteSetting
	err := r.db.Order("setting_key ASC").Find(&settings).Error
	return settings, err
}

func (r *settingsRepository) Upsert(setting *models.SiteSetting) error {
	var existing models.SiteSetting
	err := r.db.Where("setting_key = ?", setting.SettingKey).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(setting).Error
	}
	if err != nil {
		return err
	}
	setting.ID = existing.ID
	return r.db.Save(setting).Error
}
