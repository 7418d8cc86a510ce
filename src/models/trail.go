package models

import (
	"netbill/src/types"

	"github.com/google/uuid"
)

// TrailLog is the audit trail. Credential alerts and payment lifecycle
// transitions land here alongside the realtime notification.
type TrailLog struct {
	ID         uuid.UUID    `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	PlatformID uint         `gorm:"index" json:"platform_id"`
	Type       string       `json:"type"`
	Message    string       `json:"message"`
	Metadata   *types.JSONB `gorm:"type:jsonb" json:"metadata"`

	types.Timestamps
}
