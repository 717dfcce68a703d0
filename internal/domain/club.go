package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Money and percentages
)

// Module names that can be toggled per club
const (
	ModuleCashback      = "cashback"
	ModuleInvestments   = "investments"
	ModuleWhatsApp      = "whatsapp"
	ModuleNotifications = "notifications"
)

// Club Model (master database). A club is a tenant running its own branded instance.
type Club struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	Name                 string          `gorm:"not null" json:"name"`
	Slug                 string          `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	DatabaseURL          string          `json:"-"` // Overrides the tenant DSN template when set
	Active               bool            `json:"active"`
	CashbackEnabled      bool            `json:"cashback_enabled"`
	InvestmentsEnabled   bool            `json:"investments_enabled"`
	WhatsAppEnabled      bool            `json:"whatsapp_enabled"`
	NotificationsEnabled bool            `json:"notifications_enabled"`
	PlatformFeePct       decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"platform_fee_pct"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ModuleEnabled reports whether the named module is switched on for the club
func (c *Club) ModuleEnabled(module string) bool {
	switch module {
	case ModuleCashback:
		return c.CashbackEnabled
	case ModuleInvestments:
		return c.InvestmentsEnabled
	case ModuleWhatsApp:
		return c.WhatsAppEnabled
	case ModuleNotifications:
		return c.NotificationsEnabled
	}
	return false
}

// SetModule toggles a module; unknown names return false
func (c *Club) SetModule(module string, enabled bool) bool {
	switch module {
	case ModuleCashback:
		c.CashbackEnabled = enabled
	case ModuleInvestments:
		c.InvestmentsEnabled = enabled
	case ModuleWhatsApp:
		c.WhatsAppEnabled = enabled
	case ModuleNotifications:
		c.NotificationsEnabled = enabled
	default:
		return false
	}
	return true
}
