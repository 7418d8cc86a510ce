package models

import (
	"time"

	"netbill/src/types"
)

// PPPoESubscription is a recurring PPPoE service purchased through a payment
// link. Period is a human readable string such as "1 month" or "30 days".
type PPPoESubscription struct {
	ID uint `gorm:"primarykey" json:"id"`

	PlatformID  uint       `gorm:"index" json:"platform_id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	PaymentLink string     `gorm:"index" json:"payment_link"`
	Period      string     `json:"period"`
	Active      bool       `json:"active"`
	Reminded    bool       `json:"reminded"`
	ExpiresAt   *time.Time `json:"expires_at"`

	types.Timestamps
}
