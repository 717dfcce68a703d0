package domain

import "time"

// Message directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// WhatsAppMessage Model (tenant database)
type WhatsAppMessage struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Phone             string    `gorm:"size:32;index;not null" json:"phone"`
	Direction         string    `gorm:"size:16;not null" json:"direction"`
	Body              string    `gorm:"type:text" json:"body"`
	ProviderMessageID string    `gorm:"size:128;index" json:"provider_message_id,omitempty"`
	Status            string    `gorm:"size:32" json:"status"` // sent, failed, received
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
}
