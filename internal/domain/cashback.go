package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cashback beneficiaries
const (
	BeneficiaryConsumer = "consumer"
	BeneficiaryPlatform = "platform"
	BeneficiaryReferrer = "referrer"
	BeneficiaryUpline   = "upline"
)

// CashbackDistribution Model: one row per beneficiary of a purchase
type CashbackDistribution struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	PurchaseID  uint            `gorm:"uniqueIndex:idx_distribution_beneficiary;not null" json:"purchase_id"`
	Beneficiary string          `gorm:"size:16;uniqueIndex:idx_distribution_beneficiary;not null" json:"beneficiary"`
	UserID      *uint           `gorm:"index" json:"user_id,omitempty"` // Nil for the platform share
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}
