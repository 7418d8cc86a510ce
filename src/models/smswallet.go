package models

import "netbill/src/types"

// SMSWallet holds a platform's prepaid SMS credit. Balance is money, Count
// is the number of messages it still covers.
type SMSWallet struct {
	ID uint `gorm:"primarykey" json:"id"`

	PlatformID uint   `gorm:"uniqueIndex" json:"platform_id"`
	Balance    string `gorm:"type:numeric;default:0" json:"balance"`
	Count      int    `gorm:"default:0" json:"count"`

	types.Timestamps
}
