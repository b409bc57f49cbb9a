package models

import "time"

// EstimateItem rows are replaced as a full set whenever an estimate is
// edited, so unlike estimates they are hard-deleted.
type EstimateItem struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	EstimateID   uint      `json:"estimate_id" gorm:"not null;index"`
	ItemType     string    `json:"item_type" gorm:"default:'custom'"` // material, custom, service
	ReferenceID  uint      `json:"reference_id"`                      // optional catalog item
	Description  string    `json:"description" gorm:"not null"`
	Quantity     float64   `json:"quantity" gorm:"not null"`
	Unit         string    `json:"unit"`
	UnitPrice    float64   `json:"unit_price" gorm:"not null"`
	LineTotal    float64   `json:"line_total" gorm:"not null"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type EstimateItemType string

const (
	ItemMaterial EstimateItemType = "material"
	ItemCustom   EstimateItemType = "custom"
	ItemService  EstimateItemType = "service"
)
