package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase statuses
const (
	PurchaseCompleted = "completed"
	PurchaseCancelled = "cancelled"
)

// Cashback statuses of a purchase
const (
	CashbackPending     = "pending"
	CashbackDistributed = "distributed"
	CashbackSkipped     = "skipped"
)

// Purchase Model (tenant database); doubles as the user's invoice
type Purchase struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"index;not null" json:"user_id"`
	ProductID      uint            `gorm:"index;not null" json:"product_id"`
	MerchantID     uint            `gorm:"index;not null" json:"merchant_id"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	Total          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total"`
	CashbackTotal  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"cashback_total"`
	Status         string          `gorm:"size:32;not null" json:"status"`
	CashbackStatus string          `gorm:"size:32;not null" json:"cashback_status"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
