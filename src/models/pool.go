package models

import "netbill/src/types"

// C2BTransferPool accumulates sub-threshold C2B receipts per platform until
// the pooled amount is large enough to sweep out in one transfer.
type C2BTransferPool struct {
	ID uint `gorm:"primarykey" json:"id"`

	PlatformID           uint                  `gorm:"index" json:"platform_id"`
	DestinationType      types.DestinationType `json:"destination_type"`
	DestinationShortCode string                `json:"destination_short_code"`
	DestinationAccount   string                `json:"destination_account"`
	Amount               string                `gorm:"type:numeric;default:0" json:"amount"`

	types.Timestamps
}

// TableName keeps the digit-adjacent name from being split by the default
// pluralizer (c2_b_transfer_pools).
func (C2BTransferPool) TableName() string {
	return "c2b_transfer_pools"
}
