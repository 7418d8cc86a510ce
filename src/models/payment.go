package models

import (
	"netbill/src/types"
)

// PaymentRecord is the central ledger entity ("mpesa code"). ReqCode is the
// request-time correlation code (eg CheckoutRequestID) and never changes;
// Code starts equal to ReqCode and is overwritten with the provider's final
// settlement reference when the payment completes.
type PaymentRecord struct {
	ID uint `gorm:"primarykey" json:"id"`

	PlatformID    uint                `gorm:"index" json:"platform_id"`
	Code          string              `gorm:"uniqueIndex" json:"code"`
	ReqCode       string              `gorm:"uniqueIndex" json:"reqcode"`
	Amount        string              `json:"amount"`
	Phone         string              `json:"phone"`
	Status        types.PaymentStatus `gorm:"default:PENDING" json:"status"`
	Type          types.PaymentType   `json:"type"`
	Service       types.ServiceType   `json:"service"`
	PaymentMethod types.PaymentMethod `json:"payment_method"`
	Reason        string              `json:"reason"`
	ReferenceID   string              `json:"reference_id"`
	Till          string              `gorm:"default:null" json:"till"`
	Paybill       string              `gorm:"default:null" json:"paybill"`
	Account       string              `gorm:"default:null" json:"account"`
	FailedReason  string              `json:"failed_reason"`
	Mac           string              `json:"mac"`
	Reversed      *bool               `json:"reversed"`
	Verified      *bool               `json:"verified"`

	types.Timestamps
}
