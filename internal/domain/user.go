package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User Model (tenant database)
type User struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Name            string          `gorm:"not null" json:"name"`
	Email           string          `gorm:"size:191;uniqueIndex;not null" json:"email"` // Unique per club
	Phone           string          `json:"phone"`
	Password        string          `gorm:"not null" json:"-"`                  // Hashed password
	Role            string          `gorm:"size:32;default:user" json:"role"`   // user or merchant
	ReferrerID      *uint           `gorm:"index" json:"referrer_id,omitempty"` // User who invited this one
	CashbackBalance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"cashback_balance"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
