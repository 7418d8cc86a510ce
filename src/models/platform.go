package models

import "netbill/src/types"

// Platform is a tenant: one ISP/WiFi operator with its own shortcode,
// credentials and feature flags.
type Platform struct {
	ID uint `gorm:"primarykey" json:"id"`

	Name           string                `json:"name"`
	ShortCode      string                `json:"short_code"`
	ShortCodeType  types.DestinationType `json:"short_code_type"`
	OfflineEnabled bool                  `json:"offline_enabled"`
	SmsEnabled     bool                  `json:"sms_enabled"`

	ConsumerKey       string `json:"-"`
	ConsumerSecret    string `json:"-"`
	Passkey           string `json:"-"`
	InitiatorName     string `json:"-"`
	InitiatorPassword string `json:"-"`

	types.Timestamps
}
