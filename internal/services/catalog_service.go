package services

import (
	"time"

	"printshop/internal/models"
	"printshop/internal/repository"
)

const (
	cacheKeyMaterials = "materials"
	cacheKeyFinishing = "finishing"
)

// CatalogCache is the slice of the redis client the catalog service needs.
type CatalogCache interface {
	GetCatalog(key string, dest interface{}) error
	SetCatalog(key string, value interface{}, ttl time.Duration) error
	DeleteCatalog(keys ...string) error
}

type CatalogService interface {
	ListMaterials() ([]models.Material, error)
	ListFinishingOptions() ([]models.FinishingOption, error)
	GetMaterial(id uint) (*models.Material, error)
	GetFinishingOption(id uint) (*models.FinishingOption, error)
	SaveMaterial(material *models.Material) error
	SaveFinishingOption(option *models.FinishingOption) error
	DeleteMaterial(id uint) error
	DeleteFinishingOption(id uint) error
	Settings() ([]models.SiteSetting, error)
	UpdateSetting(setting *models.SiteSetting) error
}

type catalogService struct {
	materialRepo  repository.MaterialRepository
	finishingRepo repository.FinishingRepository
	settingsRepo  repository.SettingsRepository
	cache         CatalogCache
	cacheTTL      time.Duration
}

func NewCatalogService(
	materialRepo repository.MaterialRepository,
	finishingRepo repository.FinishingRepository,
	settingsRepo repository.SettingsRepository,
	cache CatalogCache,
	cacheTTL time.Duration,
) CatalogService {
	return &catalogService{
		materialRepo:  materialRepo,
		finishingRepo: finishingRepo,
		settingsRepo:  settingsRepo,
		cache:         cache,
		cacheTTL:      cacheTTL,
	}
}

// ListMaterials returns the active material catalog, served from cache
// when possible.
func (s *catalogService) ListMaterials() ([]models.Material, error) {
	if s.cache != nil {
		var cached []models.Material
		if err := s.cache.GetCatalog(cacheKeyMaterials, &cached); err == nil {
			return cached, nil
		}
	}

	materials, err := s.materialRepo.GetActive()
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetCatalog(cacheKeyMaterials, materials, s.cacheTTL)
	}
	return materials, nil
}

func (s *catalogService) ListFinishingOptions() ([]models.FinishingOption, error) {
	if s.cache != nil {
		var cached []models.FinishingOption
		if err := s.cache.GetCatalog(cacheKeyFinishing, &cached); err == nil {
			return cached, nil
		}
	}

	options, err := s.finishingRepo.GetActive()
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetCatalog(cacheKeyFinishing, options, s.cacheTTL)
	}
	return options, nil
}

func (s *catalogService) GetMaterial(id uint) (*models.Material, error) {
	return s.materialRepo.GetByID(id)
}

func (s *catalogService) GetFinishingOption(id uint) (*models.FinishingOption, error) {
	return s.finishingRepo.GetByID(id)
}

func (s *catalogService) SaveMaterial(material *models.Material) error {
	var err error
	if material.ID == 0 {
		err = s.materialRepo.Create(material)
	} else {
		err = s.materialRepo.Update(material)
	}
	if err != nil {
		return err
	}
	s.invalidate(cacheKeyMaterials)
	return nil
}

func (s *catalogService) SaveFinishingOption(option *models.FinishingOption) error {
	var err error
	if option.ID == 0 {
		err = s.finishingRepo.Create(option)
	} else {
		err = s.finishingRepo.Update(option)
	}
	if err != nil {
		return err
	}
	s.invalidate(cacheKeyFinishing)
	return nil
}

func (s *catalogService) DeleteMaterial(id uint) error {
	if err := s.materialRepo.Delete(id); err != nil {
		return err
	}
	s.invalidate(cacheKeyMaterials)
	return nil
}

func (s *catalogService) DeleteFinishingOption(id uint) error {
	if err := s.finishingRepo.Delete(id); err != nil {
		return err
	}
	s.invalidate(cacheKeyFinishing)
	return nil
}

func (s *catalogService) Settings() ([]models.SiteSetting, error) {
	return s.settingsRepo.GetAll()
}

func (s *catalogService) UpdateSetting(setting *models.SiteSetting) error {
	return s.settingsRepo.Upsert(setting)
}

func (s *catalogService) invalidate(key string) {
	if s.cache != nil {
		s.cache.DeleteCatalog(key)
	}
}
