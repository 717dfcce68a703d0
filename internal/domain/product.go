package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductName     = errors.New("product name is required")
	ErrProductPrice    = errors.New("price must be greater than zero")
	ErrProductStock    = errors.New("stock cannot be negative")
	ErrProductCashback = errors.New("cashback percentage must be between 0 and 100")
)

// Product Model (tenant database), listed by a merchant
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	MerchantID  uint            `gorm:"index;not null" json:"merchant_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	CashbackPct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"cashback_pct"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Validate enforces the catalog rules
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrProductName
	}
	if !p.Price.IsPositive() {
		return ErrProductPrice
	}
	if p.Stock < 0 {
		return ErrProductStock
	}
	if p.CashbackPct.IsNegative() || p.CashbackPct.GreaterThan(decimal.NewFromInt(100)) {
		return ErrProductCashback
	}
	return nil
}
