package repository

import (
	"errors"
	"fmt"
	"printshop/internal/models"
	"time"

	"gorm.io/gorm"
)

// estimateNumberPrefix starts every estimate number; the full format is
// EST<YYYYMMDD>-<zero-padded daily sequence>.
const estimateNumberPrefix = "EST"

// numberAttempts bounds the retry loop around the generate+insert
// transaction when two same-day submissions race to the same number.
const numberAttempts = 3

type EstimateRepository interface {
	CreateWithItems(estimate *models.Estimate, items []models.EstimateItem) error
	GetByID(id uint) (*models.Estimate, error)
	GetByNumber(number string) (*models.Estimate, error)
	List(offset, limit int) ([]models.Estimate, int64, error)
	UpdateStatus(id uint, status string) error
	ReplaceItems(estimate *models.Estimate, items []models.EstimateItem) error
	Delete(id uint) error
}

type estimateRepository struct {
	db *gorm.DB
}

func NewEstimateRepository(db *gorm.DB) EstimateRepository {
	return &estimateRepository{db: db}
}

// CreateWithItems persists an estimate and its line items atomically.
// The estimate number is generated inside the same transaction as the
// inserts; the unique index on estimate_number is the backstop against
// concurrent same-day submissions reading the same count, and a duplicate
// key error retries the whole transaction with a fresh number.
func (r *estimateRepository) CreateWithItems(estimate *models.Estimate, items []models.EstimateItem) error {
	var lastErr error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		estimate.ID = 0
		err := r.db.Transaction(func(tx *gorm.DB) error {
			number, err := nextEstimateNumber(tx, time.Now())
			if err != nil {
				return err
			}
			estimate.EstimateNumber = number

			if err := tx.Create(estimate).Error; err != nil {
				return err
			}

			for i := range items {
				items[i].ID = 0
				items[i].EstimateID = estimate.ID
				items[i].DisplayOrder = i + 1
			}
			return tx.Create(&items).Error
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("estimate number conflict after %d attempts: %w", numberAttempts, lastErr)
}

// nextEstimateNumber counts today's estimates, soft-deleted ones included,
// and returns the next number in the daily sequence.
func nextEstimateNumber(tx *gorm.DB, now time.Time) (string, error) {
	var count int64
	prefix := estimateNumberPrefix + now.Format("20060102")
	err := tx.Unscoped().Model(&models.Estimate{}).
		Where("estimate_number LIKE ?", prefix+"-%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return formatEstimateNumber(now, int(count)+1), nil
}

func formatEstimateNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%s-%04d", estimateNumberPrefix, day.Format("20060102"), seq)
}

func (r *estimateRepository) GetByID(id uint) (*models.Estimate, error) {
	var estimate models.Estimate
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).First(&estimate, id).Error
	if err != nil {
		return nil, err
	}
	return &estimate, nil
}

func (r *estimateRepository) GetByNumber(number string) (*models.Estimate, error) {
	var estimate models.Estimate
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).Where("estimate_number = ?", number).First(&estimate).Error
	if err != nil {
		return nil, err
	}
	return &estimate, nil
}

func (r *estimateRepository) List(offset, limit int) ([]models.Estimate, int64, error) {
	var estimates []models.Estimate
	var total int64

	if err := r.db.Model(&models.Estimate{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).Order("created_at DESC").Offset(offset).Limit(limit).Find(&estimates).Error
	return estimates, total, err
}

// UpdateStatus writes the status column only, leaving the rest of the
// header and the item rows untouched.
func (r *estimateRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Estimate{}).Where("id = ?", id).Update("status", status).Error
}

// ReplaceItems swaps the full line-item set and overwrites the stored
// totals in one transaction. Partial item patching is not supported.
// The header is updated column-wise: saving the whole struct would also
// upsert its preloaded Items association and resurrect the rows deleted
// here.
func (r *estimateRepository) ReplaceItems(estimate *models.Estimate, items []models.EstimateItem) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("estimate_id = ?", estimate.ID).Delete(&models.EstimateItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ID = 0
			items[i].EstimateID = estimate.ID
			items[i].DisplayOrder = i + 1
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		return tx.Model(&models.Estimate{}).Where("id = ?", estimate.ID).
			Updates(map[string]interface{}{
				"subtotal":        estimate.Subtotal,
				"tax_rate":        estimate.TaxRate,
				"tax_amount":      estimate.TaxAmount,
				"discount_amount": estimate.DiscountAmount,
				"total_amount":    estimate.TotalAmount,
			}).Error
	})
	if err != nil {
		return err
	}
	estimate.Items = items
	return nil
}

func (r *estimateRepository) Delete(id uint) error {
	return r.db.Delete(&models.Estimate{}, id).Error
}
