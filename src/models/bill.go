package models

import "netbill/src/types"

type Bill struct {
	ID uint `gorm:"primarykey" json:"id"`

	PlatformID uint   `gorm:"index" json:"platform_id"`
	Account    string `json:"account"`
	Amount     string `json:"amount"`
	Paid       bool   `json:"paid"`

	types.Timestamps
}
