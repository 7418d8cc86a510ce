package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type PaymentStatus string

const (
	PAYMENT_PENDING    PaymentStatus = "PENDING"
	PAYMENT_PROCESSING PaymentStatus = "PROCESSING"
	PAYMENT_COMPLETE   PaymentStatus = "COMPLETE"
	PAYMENT_FAILED     PaymentStatus = "FAILED"
)

type PaymentType string

const (
	PAYMENT_DEPOSIT    PaymentType = "deposit"
	PAYMENT_WITHDRAWAL PaymentType = "withdrawal"
	PAYMENT_B2B        PaymentType = "b2b transfer"
	PAYMENT_B2POCHI    PaymentType = "b2pochi transfer"
	PAYMENT_REVERSAL   PaymentType = "reversal"
	PAYMENT_BALANCE    PaymentType = "balance query"
)

type ServiceType string

const (
	SERVICE_HOTSPOT ServiceType = "hotspot"
	SERVICE_PPPOE   ServiceType = "pppoe"
	SERVICE_BILL    ServiceType = "bill"
	SERVICE_SMS     ServiceType = "sms"
	SERVICE_B2B     ServiceType = "Mpesa B2B"
	SERVICE_B2POCHI ServiceType = "Mpesa B2Pochi"
)

type PaymentMethod string

const (
	METHOD_STK     PaymentMethod = "stk"
	METHOD_C2B     PaymentMethod = "c2b"
	METHOD_GATEWAY PaymentMethod = "gateway"
)

type DestinationType string

const (
	DESTINATION_PAYBILL DestinationType = "paybill"
	DESTINATION_TILL    DestinationType = "till"
	DESTINATION_PHONE   DestinationType = "phone"
)

type CorrelationIntent string

const (
	INTENT_VERIFY       CorrelationIntent = "verify"
	INTENT_REVERSE      CorrelationIntent = "reverse"
	INTENT_C2B_POCHI    CorrelationIntent = "c2b-pochi"
	INTENT_B2B_TRANSFER CorrelationIntent = "b2b-transfer"
	INTENT_BALANCE      CorrelationIntent = "balance"
)

type DepositRequestBody struct {
	PlatformID uint   `json:"platform_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Phone      string `json:"phone" binding:"required,msisdn"`
	Service    string `json:"service" binding:"required,oneof=hotspot pppoe bill sms"`
	PackageID  string `json:"package_id,omitempty"`
	Reference  string `json:"reference,omitempty"`
	Mac        string `json:"mac,omitempty"`
}

type WithdrawRequestBody struct {
	PlatformID      uint   `json:"platform_id" binding:"required"`
	Amount          string `json:"amount" binding:"required"`
	DestinationType string `json:"destination_type" binding:"required,oneof=paybill till phone"`
	ShortCode       string `json:"short_code,omitempty"`
	Account         string `json:"account,omitempty"`
	Phone           string `json:"phone,omitempty"`
}

type ReversalRequestBody struct {
	PlatformID uint   `json:"platform_id" binding:"required"`
	Code       string `json:"code" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
}

type StatusCheckRequestBody struct {
	Code string `json:"code" binding:"required"`
	Mac  string `json:"mac,omitempty"`
}

// STKCallbackBody is the Daraja Lipa Na M-Pesa Online result payload.
type STKCallbackBody struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []CallbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// ResultCallbackBody is the generic Daraja result payload shared by the B2B,
// B2Pochi, balance, status and reversal commands.
type ResultCallbackBody struct {
	Result struct {
		ResultType               int    `json:"ResultType"`
		ResultCode               any    `json:"ResultCode"`
		ResultDesc               string `json:"ResultDesc"`
		OriginatorConversationID string `json:"OriginatorConversationID"`
		ConversationID           string `json:"ConversationID"`
		TransactionID            string `json:"TransactionID"`
		ResultParameters         struct {
			ResultParameter []ResultParameter `json:"ResultParameter"`
		} `json:"ResultParameters"`
	} `json:"Result"`
}

type ResultParameter struct {
	Key   string `json:"Key"`
	Value any    `json:"Value"`
}

type GatewayDepositCallbackBody struct {
	Challenge      string  `json:"challenge"`
	InvoiceID      string  `json:"invoice_id"`
	State          string  `json:"state"`
	NetAmount      float64 `json:"net_amount"`
	Account        string  `json:"account"`
	MpesaReference string  `json:"mpesa_reference"`
	FailedReason   string  `json:"failed_reason"`
}

type GatewayWithdrawalCallbackBody struct {
	Challenge    string `json:"challenge"`
	FileID       string `json:"file_id"`
	Transactions []struct {
		Status string  `json:"status"`
		Amount float64 `json:"amount"`
		Charge float64 `json:"charge"`
	} `json:"transactions"`
}
