package payments

import (
	"context"
	"log"
	"os"
	"time"

	"netbill/src/db"
	"netbill/src/lib"
	"netbill/src/models"
	"netbill/src/types"
)

// Records younger than this are left alone, the provider may still be
// delivering the callback.
const reconcileMinAge = 5 * time.Minute

// Records older than a week are abandoned rather than re-verified.
const reconcileMaxAge = 7 * 24 * time.Hour

// ReconcilePendingPayments re-verifies stale PENDING deposits against the
// provider so payments whose callback was lost still reach COMPLETE or
// FAILED. STK deposits are queried synchronously by CheckoutRequestID and
// settled in place; C2B deposits hold a real receipt in code, so they go
// through the asynchronous status query, with the request code carried in
// the correlation entry for the result handler. Gateway deposits are left
// to the gateway's own redelivery.
func ReconcilePendingPayments(ctx context.Context, act *Activator, transfer TransferFunc) {
	d := db.GetDb()
	now := time.Now()
	var stale []models.PaymentRecord
	err := d.Where("status = ? AND type = ? AND created_at < ? AND created_at > ?",
		types.PAYMENT_PENDING, types.PAYMENT_DEPOSIT, now.Add(-reconcileMinAge), now.Add(-reconcileMaxAge)).
		Limit(100).
		Find(&stale).Error
	if err != nil {
		log.Printf("[reconcile] Error listing stale payments: %s\n", err.Error())
		return
	}
	if len(stale) == 0 {
		return
	}
	log.Printf("[reconcile] Re-verifying %d stale payments\n", len(stale))
	for i := range stale {
		record := &stale[i]
		var platform models.Platform
		if err := d.Where("id = ?", record.PlatformID).First(&platform).Error; err != nil {
			continue
		}
		creds := CredentialsFor(&platform)
		switch record.PaymentMethod {
		case types.METHOD_STK:
			resp, err := lib.STKQuery(ctx, creds, record.ReqCode)
			if err != nil {
				// An in-flight transaction answers with an error body;
				// anything else waits for the next run.
				if diagnosis := DiagnoseCredentialError(err); diagnosis != "" {
					RaiseCredentialAlert(platform.ID, diagnosis, err)
				}
				continue
			}
			switch resp.ResultCode {
			case "":
				// Still processing.
			case "0":
				if _, err := SettleDeposit(ctx, act, record, record.Code, "", transfer); err != nil {
					log.Printf("[reconcile] Error settling payment %d: %s\n", record.ID, err.Error())
				}
			default:
				if err := FailDeposit(record, resp.ResultDesc); err != nil {
					log.Printf("[reconcile] Error failing payment %d: %s\n", record.ID, err.Error())
				}
			}
		case types.METHOD_C2B:
			securityCredential, err := PlatformSecurityCredential(&platform)
			if err != nil {
				log.Printf("[reconcile] No security credential for platform %d: %s\n", platform.ID, err.Error())
				continue
			}
			resp, err := lib.TransactionStatus(ctx, creds, securityCredential, record.Code, resultCallbackURL())
			if err != nil {
				if diagnosis := DiagnoseCredentialError(err); diagnosis != "" {
					RaiseCredentialAlert(platform.ID, diagnosis, err)
				}
				continue
			}
			entry := &CorrelationEntry{
				PlatformID: platform.ID,
				Type:       types.INTENT_VERIFY,
				ReqCode:    record.ReqCode,
			}
			if err := RegisterCorrelationEntry(ctx, resp.OriginatorConversationID, entry); err != nil {
				continue
			}
		}
	}
}

// CredentialsFor assembles the Daraja credentials for a platform, falling
// back to the environment-wide keys for platforms without their own.
func CredentialsFor(platform *models.Platform) *lib.DarajaCredentials {
	creds := &lib.DarajaCredentials{
		ConsumerKey:       platform.ConsumerKey,
		ConsumerSecret:    platform.ConsumerSecret,
		ShortCode:         platform.ShortCode,
		Passkey:           platform.Passkey,
		InitiatorName:     platform.InitiatorName,
		InitiatorPassword: platform.InitiatorPassword,
	}
	if creds.ConsumerKey == "" {
		creds.ConsumerKey = os.Getenv("DARAJA_CONSUMER_KEY")
		creds.ConsumerSecret = os.Getenv("DARAJA_CONSUMER_SECRET")
	}
	if creds.Passkey == "" {
		creds.Passkey = os.Getenv("DARAJA_PASSKEY")
	}
	if creds.InitiatorName == "" {
		creds.InitiatorName = os.Getenv("DARAJA_INITIATOR_NAME")
		creds.InitiatorPassword = os.Getenv("DARAJA_INITIATOR_PASSWORD")
	}
	return creds
}

// PlatformSecurityCredential encrypts the platform's initiator password with
// the provider certificate on disk.
func PlatformSecurityCredential(platform *models.Platform) (string, error) {
	certPEM, err := os.ReadFile(os.Getenv("DARAJA_CERT_PATH"))
	if err != nil {
		return "", err
	}
	creds := CredentialsFor(platform)
	return lib.SecurityCredential(creds.InitiatorPassword, certPEM)
}

func resultCallbackURL() string {
	return os.Getenv("API_BASE_URL") + "/api/v1/callbacks/result"
}
