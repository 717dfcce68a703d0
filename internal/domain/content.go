package domain

import "time"

// Notification Model; a nil UserID is a broadcast to every user of the club
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	EmailSent bool      `json:"email_sent"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// FAQ Model: help content shown in the app
type FAQ struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Question  string    `gorm:"not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	Category  string    `gorm:"size:64;index" json:"category"`
	Position  int       `json:"position"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MasterModels lists the tables of the master database
func MasterModels() []any {
	return []any{&SuperAdmin{}, &Club{}, &ClubAdmin{}}
}

// TenantModels lists the tables of each club database
func TenantModels() []any {
	return []any{
		&User{}, &Product{}, &Purchase{}, &CashbackDistribution{},
		&WhatsAppMessage{}, &ExchangeContract{}, &ExchangeOrder{}, &StakeContract{},
		&Notification{}, &FAQ{},
	}
}
