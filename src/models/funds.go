package models

import "netbill/src/types"

// FundsAccount tracks the running balance for a platform. Balance only moves
// on confirmed deposits (net of provider fees) and confirmed withdrawals.
type FundsAccount struct {
	ID uint `gorm:"primarykey" json:"id"`

	PlatformID       uint   `gorm:"uniqueIndex" json:"platform_id"`
	Balance          string `gorm:"type:numeric;default:0" json:"balance"`
	Deposits         string `gorm:"type:numeric;default:0" json:"deposits"`
	Withdrawals      string `gorm:"type:numeric;default:0" json:"withdrawals"`
	ShortCodeBalance string `json:"short_code_balance"`
	ShortIdentifier  string `json:"short_identifier"`

	types.Timestamps
}
