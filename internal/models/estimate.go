package models

import (
	"time"

	"gorm.io/gorm"
)

type Estimate struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	EstimateNumber  string         `json:"estimate_number" gorm:"uniqueIndex;not null"`
	CustomerName    string         `json:"customer_name" gorm:"not null"`
	CustomerEmail   string         `json:"customer_email" gorm:"not null"`
	CustomerPhone   string         `json:"customer_phone"`
	CustomerCompany string         `json:"customer_company"`
	Title           string         `json:"title" gorm:"not null"`
	Description     string         `json:"description" gorm:"type:text"`
	Subtotal        float64        `json:"subtotal" gorm:"not null"`
	TaxRate         float64        `json:"tax_rate"`
	TaxAmount       float64        `json:"tax_amount"`
	DiscountAmount  float64        `json:"discount_amount"`
	TotalAmount     float64        `json:"total_amount" gorm:"not null"`
	Currency        string         `json:"currency" gorm:"default:'USD'"`
	Status          string         `json:"status" gorm:"default:'pending'"` // draft, pending, sent, viewed, accepted, rejected
	Source          string         `json:"source"`                          // calculator, manual
	FileName        string         `json:"file_name"`
	FilePath        string         `json:"file_path"`
	CalculatorData  string         `json:"calculator_data" gorm:"type:json"`
	CreatedBy       uint           `json:"created_by"` // 0 for anonymous public submissions
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	Items           []EstimateItem `json:"items" gorm:"foreignKey:EstimateID"`
}

type EstimateStatus string

const (
	EstimateDraft    EstimateStatus = "draft"
	EstimatePending  EstimateStatus = "pending"
	EstimateSent     EstimateStatus = "sent"
	EstimateViewed   EstimateStatus = "viewed"
	EstimateAccepted EstimateStatus = "accepted"
	EstimateRejected EstimateStatus = "rejected"
)
