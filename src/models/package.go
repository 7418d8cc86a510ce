package models

import "netbill/src/types"

// Package is a hotspot product: a price point and an access period in
// minutes (stored as a string, legacy of operator-entered data).
type Package struct {
	ID uint `gorm:"primarykey" json:"id"`

	PlatformID uint   `gorm:"index" json:"platform_id"`
	Name       string `json:"name"`
	Price      int    `json:"price"`
	Period     string `json:"period"`

	types.Timestamps
}
