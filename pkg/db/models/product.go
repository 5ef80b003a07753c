package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a water-purifier model offered for rental and/or purchase.
type Product struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string          `gorm:"column:name;not null"`
	Description     string          `gorm:"column:description"`
	MonthlyRent     decimal.Decimal `gorm:"column:monthly_rent;type:numeric(12,2);not null"`
	SecurityDeposit decimal.Decimal `gorm:"column:security_deposit;type:numeric(12,2);not null"`
	BuyPrice        decimal.Decimal `gorm:"column:buy_price;type:numeric(12,2);not null"`
	RentalEnabled   bool            `gorm:"column:rental_enabled;not null"`
	PurchaseEnabled bool            `gorm:"column:purchase_enabled;not null"`
	IsActive        bool            `gorm:"column:is_active;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
