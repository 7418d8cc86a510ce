package payments

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"netbill/src/db"
	"netbill/src/models"
	"netbill/src/types"
)

var ErrDuplicateRequest = errors.New("a payment with this request code already exists")

// CreatePayment inserts a new PENDING record. The request code must be
// unique; Code starts out equal to ReqCode for inbound flows and is
// overwritten with the settlement reference on completion.
func CreatePayment(record *models.PaymentRecord) error {
	d := db.GetDb()
	if record.Code == "" {
		record.Code = record.ReqCode
	}
	if record.Status == "" {
		record.Status = types.PAYMENT_PENDING
	}
	var count int64
	if err := d.Model(&models.PaymentRecord{}).Where("req_code = ?", record.ReqCode).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateRequest
	}
	if err := d.Create(record).Error; err != nil {
		log.Printf("[ledger] Error creating payment %s: %s\n", record.ReqCode, err.Error())
		return err
	}
	return nil
}

// FindPaymentByRequestCode locates the record a callback refers to. A
// missing record is a normal outcome for untracked callbacks, reported as
// gorm.ErrRecordNotFound.
func FindPaymentByRequestCode(reqcode string) (*models.PaymentRecord, error) {
	d := db.GetDb()
	var record models.PaymentRecord
	err := d.Where("req_code = ?", reqcode).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindPaymentByAnyCode tries the settlement code first, then the request
// code. Used by status-check endpoints where the client may hold either.
func FindPaymentByAnyCode(code string) (*models.PaymentRecord, error) {
	d := db.GetDb()
	var record models.PaymentRecord
	err := d.Where("code = ?", code).First(&record).Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = d.Where("req_code = ?", code).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CompletePayment transitions a record to COMPLETE and stores the final
// settlement reference. The update is conditional on the record not already
// being COMPLETE, which makes redelivered callbacks a no-op; the returned
// bool says whether this call performed the transition.
func CompletePayment(id uint, settlementCode string, amount string, ptype types.PaymentType) (bool, error) {
	d := db.GetDb()
	updates := map[string]any{
		"code":   settlementCode,
		"status": types.PAYMENT_COMPLETE,
	}
	if amount != "" {
		updates["amount"] = amount
	}
	if ptype != "" {
		updates["type"] = ptype
	}
	res := d.Model(&models.PaymentRecord{}).
		Where("id = ? AND status <> ?", id, types.PAYMENT_COMPLETE).
		Updates(updates)
	if res.Error != nil {
		log.Printf("[ledger] Error completing payment %d: %s\n", id, res.Error.Error())
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FailPayment marks a record FAILED and records why. COMPLETE records are
// left untouched, a late failure signal never demotes a settled payment.
func FailPayment(id uint, reason string, ptype types.PaymentType) error {
	d := db.GetDb()
	updates := map[string]any{
		"status":        types.PAYMENT_FAILED,
		"failed_reason": reason,
	}
	if ptype != "" {
		updates["type"] = ptype
	}
	res := d.Model(&models.PaymentRecord{}).
		Where("id = ? AND status <> ?", id, types.PAYMENT_COMPLETE).
		Updates(updates)
	if res.Error != nil {
		log.Printf("[ledger] Error failing payment %d: %s\n", id, res.Error.Error())
		return res.Error
	}
	return nil
}
