package models

import "time"

type SiteSetting struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	SettingKey   string    `json:"setting_key" gorm:"unique;not null"` // tax_rate, currency, company_email
	Value        string    `json:"value"`
	NumericValue float64   `json:"numeric_value"`
	UpdatedBy    uint      `json:"updated_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	SettingTaxRate  = "tax_rate"
	SettingCurrency = "currency"
)
