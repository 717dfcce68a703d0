package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeOrderStatus mirrors the on-chain order state
type ExchangeOrderStatus string

const (
	OrderOpen      ExchangeOrderStatus = "open"
	OrderFilled    ExchangeOrderStatus = "filled"
	OrderCancelled ExchangeOrderStatus = "cancelled"
	OrderExpired   ExchangeOrderStatus = "expired"
)

// Final reports whether the status can no longer change on-chain
func (s ExchangeOrderStatus) Final() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderExpired
}

// ExchangeContract Model: token exchange contract whose orders are mirrored locally
type ExchangeContract struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Address   string    `gorm:"size:64;uniqueIndex;not null" json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ExchangeOrder Model
type ExchangeOrder struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	ContractID uint                `gorm:"index;not null" json:"contract_id"`
	OnchainID  uint64              `gorm:"not null" json:"onchain_id"`
	UserID     uint                `gorm:"index" json:"user_id"`
	Side       string              `gorm:"size:8" json:"side"` // buy or sell
	Amount     decimal.Decimal     `gorm:"type:decimal(36,18)" json:"amount"`
	Price      decimal.Decimal     `gorm:"type:decimal(36,18)" json:"price"`
	Status     ExchangeOrderStatus `gorm:"size:16;index;not null" json:"status"`
	SyncedAt   *time.Time          `json:"synced_at,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Stake contract income types
const (
	IncomeFixed    = "fixed"
	IncomeVariable = "variable"
)

// StakeContract Model: an on-chain investment product users deposit tokens into.
// Fixed income products carry AnnualRate; variable ones are quoted as CDIPercent of CDI.
type StakeContract struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Name       string          `gorm:"not null" json:"name"`
	Address    string          `gorm:"size:64;index" json:"address"`
	IncomeType string          `gorm:"size:16;not null" json:"income_type"`
	CDIPercent decimal.Decimal `gorm:"type:decimal(7,2);default:0" json:"cdi_percent"`
	AnnualRate decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"annual_rate"`
	MinDeposit decimal.Decimal `gorm:"type:decimal(36,18);default:0" json:"min_deposit"`
	LockDays   int             `json:"lock_days"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
