package payments

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"netbill/src/db"
	"netbill/src/lib"
	"netbill/src/models"
	"netbill/src/types"
)

// SettleDeposit drives a confirmed deposit through completion: the
// conditional status transition, the funds credit, the C2B sweep policy and
// the service activation, in that order. Redelivered confirmations stop at
// the status transition and return without side effects, which is what makes
// the whole pipeline idempotent.
func SettleDeposit(ctx context.Context, act *Activator, record *models.PaymentRecord, settlementCode string, netAmount string, transfer TransferFunc) (*ActivationResult, error) {
	applied, err := CompletePayment(record.ID, settlementCode, netAmount, "")
	if err != nil {
		return nil, err
	}
	if !applied {
		log.Printf("[settle] Payment %d already complete, ignoring redelivery\n", record.ID)
		return nil, nil
	}
	record.Status = types.PAYMENT_COMPLETE
	record.Code = settlementCode
	if netAmount != "" {
		record.Amount = netAmount
	}

	net, err := decimal.NewFromString(record.Amount)
	if err != nil {
		log.Printf("[settle] Unparsable amount %q on payment %d\n", record.Amount, record.ID)
		net = decimal.Zero
	}
	if net.IsPositive() {
		if err := CreditFunds(record.PlatformID, net); err != nil {
			// The record is COMPLETE; the reconciler and audit trail cover
			// the ledger gap, the customer still gets activated.
			log.Printf("[settle] Funds credit for payment %d failed: %s\n", record.ID, err.Error())
		}
	}

	if record.PaymentMethod == types.METHOD_C2B && transfer != nil {
		var platform models.Platform
		if err := db.GetDb().Where("id = ?", record.PlatformID).First(&platform).Error; err == nil {
			dest, shortCode, account := sweepDestination(&platform)
			if err := HandleC2BReceipt(ctx, &platform, net, dest, shortCode, account, transfer); err != nil {
				log.Printf("[settle] C2B sweep for payment %d failed: %s\n", record.ID, err.Error())
			}
		}
	}

	lib.PushPlatformEvent(record.PlatformID, "payment-complete", map[string]any{
		"code":   record.Code,
		"amount": record.Amount,
		"phone":  record.Phone,
	})

	result, err := act.Activate(ctx, record)
	if err != nil {
		// Money was captured; activation failure is its own state, never a
		// rollback trigger.
		log.Printf("[settle] Activation for payment %d failed: %s\n", record.ID, err.Error())
		return nil, err
	}
	return result, nil
}

// FailDeposit marks a payment FAILED with the normalized user message and
// notifies the platform.
func FailDeposit(record *models.PaymentRecord, rawReason string) error {
	reason := ToUserMessage(rawReason)
	if err := FailPayment(record.ID, reason, ""); err != nil {
		return err
	}
	lib.PushPlatformEvent(record.PlatformID, "payment-failed", map[string]any{
		"code":   record.ReqCode,
		"reason": reason,
	})
	return nil
}

// sweepDestination maps a platform's settlement configuration onto the sweep
// pool destination. Platforms settle onto the environment-wide collection
// account unless they carry their own shortcode.
func sweepDestination(platform *models.Platform) (types.DestinationType, string, string) {
	dest := platform.ShortCodeType
	if dest == "" {
		dest = types.DESTINATION_PAYBILL
	}
	return dest, platform.ShortCode, platform.Name
}
