package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"netbill/src/config"
	"netbill/src/db"
	"netbill/src/lib"
	"netbill/src/models"
	"netbill/src/payments"
	"netbill/src/types"
)

// Sentinel the provider uses for "transaction already reversed", treated as
// success for reversal flows.
const resultCodeAlreadyReversed = "R000001"

func callbackRoutes(g *gin.Engine, act *payments.Activator) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		POST("/callbacks/stk", func(ctx *gin.Context) {
			var body types.STKCallbackBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": err.Error()})
				return
			}
			cb := body.Body.StkCallback
			record, err := payments.FindPaymentByRequestCode(cb.CheckoutRequestID)
			if err != nil {
				// Untracked callback. Acknowledge so the provider stops
				// redelivering.
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					log.Printf("[callback] Error locating payment %s: %s\n", cb.CheckoutRequestID, err.Error())
				}
				ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
				return
			}
			if cb.ResultCode != 0 {
				if err := payments.FailDeposit(record, cb.ResultDesc); err != nil {
					log.Printf("[callback] Error failing payment %d: %s\n", record.ID, err.Error())
				}
				ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
				return
			}
			amount, receipt, phone := stkMetadata(cb.CallbackMetadata.Item)
			if receipt == "" {
				log.Printf("[callback] STK success for %s without a receipt number\n", cb.CheckoutRequestID)
				ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
				return
			}
			if phone != "" && phone != record.Phone {
				record.Phone = phone
				if err := db.GetDb().Model(&models.PaymentRecord{}).Where("id = ?", record.ID).Update("phone", phone).Error; err != nil {
					log.Printf("[callback] Error storing payer phone on payment %d: %s\n", record.ID, err.Error())
				}
			}
			if _, err := payments.SettleDeposit(ctx.Request.Context(), act, record, receipt, amount, darajaTransfer); err != nil {
				log.Printf("[callback] Error settling payment %d: %s\n", record.ID, err.Error())
			}
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		}).
		POST("/callbacks/result", func(ctx *gin.Context) {
			var body types.ResultCallbackBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": err.Error()})
				return
			}
			result := body.Result
			entry, err := payments.ResolveCorrelation(ctx.Request.Context(), result.OriginatorConversationID)
			if err != nil || entry == nil {
				// Expired or never registered; acknowledged and dropped.
				ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
				return
			}
			code := resultCodeString(result.ResultCode)
			params := result.ResultParameters.ResultParameter
			switch entry.Type {
			case types.INTENT_BALANCE:
				if n := payments.ExtractSettlementBalance(params); n != nil {
					if err := payments.RecordSettlementBalance(entry.PlatformID, *n); err != nil {
						log.Printf("[callback] Error recording settlement balance for platform %d: %s\n", entry.PlatformID, err.Error())
					}
				}
			case types.INTENT_VERIFY:
				handleVerifyResult(ctx, act, entry, code, result.ResultDesc, params)
			case types.INTENT_REVERSE:
				handleReversalResult(entry.PlatformID, code, result.TransactionID, params)
			case types.INTENT_B2B_TRANSFER, types.INTENT_C2B_POCHI:
				handleTransferResult(entry, result.OriginatorConversationID, result.TransactionID, code, result.ResultDesc, params)
			}
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		}).
		POST("/callbacks/confirmation", func(ctx *gin.Context) {
			raw, err := io.ReadAll(ctx.Request.Body)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "unreadable body"})
				return
			}
			handleOfflineConfirmation(ctx, act, raw)
		}).
		POST("/callbacks/validation", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		}).
		POST("/callbacks/timeout", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		}).
		POST("/callbacks/gateway/deposit", func(ctx *gin.Context) {
			var body types.GatewayDepositCallbackBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
				return
			}
			if body.Challenge != config.GetGatewayChallenge() {
				ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid challenge"})
				return
			}
			record, err := payments.FindPaymentByRequestCode(body.InvoiceID)
			if err != nil {
				ctx.JSON(http.StatusOK, gin.H{"success": true})
				return
			}
			switch strings.ToUpper(body.State) {
			case "COMPLETE", "COMPLETED":
				net := decimal.NewFromFloat(body.NetAmount).String()
				if _, err := payments.SettleDeposit(ctx.Request.Context(), act, record, body.MpesaReference, net, darajaTransfer); err != nil {
					log.Printf("[callback] Error settling gateway payment %d: %s\n", record.ID, err.Error())
				}
			case "FAILED":
				if err := payments.FailDeposit(record, body.FailedReason); err != nil {
					log.Printf("[callback] Error failing gateway payment %d: %s\n", record.ID, err.Error())
				}
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true})
		}).
		POST("/callbacks/gateway/withdrawal", func(ctx *gin.Context) {
			var body types.GatewayWithdrawalCallbackBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
				return
			}
			if body.Challenge != config.GetGatewayChallenge() {
				ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid challenge"})
				return
			}
			record, err := payments.FindPaymentByRequestCode(body.FileID)
			if err != nil {
				ctx.JSON(http.StatusOK, gin.H{"success": true})
				return
			}
			handleGatewayWithdrawal(record, &body)
			ctx.JSON(http.StatusOK, gin.H{"success": true})
		})
	return apiv1
}

func stkMetadata(items []types.CallbackItem) (amount string, receipt string, phone string) {
	for _, item := range items {
		switch item.Name {
		case "Amount":
			switch v := item.Value.(type) {
			case float64:
				amount = decimal.NewFromFloat(v).String()
			case string:
				amount = v
			}
		case "MpesaReceiptNumber":
			if v, ok := item.Value.(string); ok {
				receipt = v
			}
		case "PhoneNumber":
			switch v := item.Value.(type) {
			case float64:
				phone = decimal.NewFromFloat(v).String()
			case string:
				phone = v
			}
		}
	}
	return amount, receipt, phone
}

// resultCodeString normalizes a numeric or string ResultCode.
func resultCodeString(v any) string {
	switch code := v.(type) {
	case float64:
		return fmt.Sprintf("%.0f", code)
	case string:
		return code
	case nil:
		return ""
	default:
		return fmt.Sprint(code)
	}
}

func resultParamString(params []types.ResultParameter, key string) string {
	for _, p := range params {
		if p.Key != key {
			continue
		}
		switch v := p.Value.(type) {
		case string:
			return v
		case float64:
			return decimal.NewFromFloat(v).String()
		}
	}
	return ""
}

// handleVerifyResult applies a transaction-status answer from the stale
// payment reconciler. The reconciler stamps the payment's request code into
// the correlation entry, so the record is resolved from the entry; the
// provider receipt only becomes the settlement code.
func handleVerifyResult(ctx *gin.Context, act *payments.Activator, entry *payments.CorrelationEntry, code string, desc string, params []types.ResultParameter) {
	receipt := resultParamString(params, "ReceiptNo")
	if receipt == "" {
		receipt = resultParamString(params, "TransactionID")
	}
	var record *models.PaymentRecord
	var err error
	if entry.ReqCode != "" {
		record, err = payments.FindPaymentByRequestCode(entry.ReqCode)
	} else if receipt != "" {
		record, err = payments.FindPaymentByAnyCode(receipt)
	}
	if err != nil || record == nil {
		return
	}
	status := strings.ToLower(resultParamString(params, "TransactionStatus"))
	if code == "0" && status == "completed" {
		if receipt == "" {
			receipt = record.Code
		}
		amount := resultParamString(params, "Amount")
		if _, err := payments.SettleDeposit(ctx.Request.Context(), act, record, receipt, amount, darajaTransfer); err != nil {
			log.Printf("[callback] Error settling verified payment %d: %s\n", record.ID, err.Error())
		}
		verified := true
		if err := db.GetDb().Model(&models.PaymentRecord{}).Where("id = ?", record.ID).Update("verified", &verified).Error; err != nil {
			log.Printf("[callback] Error marking payment %d verified: %s\n", record.ID, err.Error())
		}
		return
	}
	if record.Status == types.PAYMENT_PENDING {
		if err := payments.FailDeposit(record, desc); err != nil {
			log.Printf("[callback] Error failing verified payment %d: %s\n", record.ID, err.Error())
		}
	}
}

func handleReversalResult(platformID uint, code string, transactionID string, params []types.ResultParameter) {
	// "Already reversed" is success as far as the ledger is concerned.
	if code != "0" && code != resultCodeAlreadyReversed {
		log.Printf("[callback] Reversal for platform %d failed with code %s\n", platformID, code)
		return
	}
	reference := resultParamString(params, "OriginalTransactionID")
	if reference == "" {
		reference = transactionID
	}
	if reference == "" {
		return
	}
	record, err := payments.FindPaymentByAnyCode(reference)
	if err != nil {
		return
	}
	reversed := true
	if err := db.GetDb().Model(&models.PaymentRecord{}).Where("id = ?", record.ID).Update("reversed", &reversed).Error; err != nil {
		log.Printf("[callback] Error marking payment %d reversed: %s\n", record.ID, err.Error())
	}
}

// handleTransferResult covers asynchronous results of outbound transfers.
// Tenant withdrawals carry a PaymentRecord keyed by the originator id and
// must finish their PENDING -> COMPLETE/FAILED transition here, with the
// reserved funds restored on failure. Pooled sweep transfers have no record;
// a failed sweep puts the money back in the pool so it rides out with the
// next sweep.
func handleTransferResult(entry *payments.CorrelationEntry, originatorID string, transactionID string, code string, desc string, params []types.ResultParameter) {
	if n := payments.ExtractSettlementBalance(params); n != nil {
		if err := payments.RecordSettlementBalance(entry.PlatformID, *n); err != nil {
			log.Printf("[callback] Error recording settlement balance for platform %d: %s\n", entry.PlatformID, err.Error())
		}
	}
	if record, err := payments.FindPaymentByRequestCode(originatorID); err == nil {
		finishWithdrawal(record, transactionID, code, desc, params)
		return
	}
	if code == "0" {
		return
	}
	log.Printf("[callback] Sweep transfer for platform %d failed: %s\n", entry.PlatformID, desc)
	amountParam := resultParamString(params, "Amount")
	if amountParam == "" {
		amountParam = resultParamString(params, "TransactionAmount")
	}
	amount, err := decimal.NewFromString(amountParam)
	if err != nil || !amount.IsPositive() {
		return
	}
	var platform models.Platform
	if err := db.GetDb().Where("id = ?", entry.PlatformID).First(&platform).Error; err != nil {
		return
	}
	if err := payments.RepoolFailedTransfer(&platform, amount); err != nil {
		log.Printf("[callback] Error re-pooling %s for platform %d: %s\n", amount.String(), platform.ID, err.Error())
	}
}

// finishWithdrawal lands the asynchronous outcome of a tenant withdrawal on
// its ledger record. The debit happened at request time, so a failure gives
// the reserved funds back.
func finishWithdrawal(record *models.PaymentRecord, transactionID string, code string, desc string, params []types.ResultParameter) {
	if code == "0" {
		settlement := transactionID
		if settlement == "" {
			settlement = resultParamString(params, "TransactionID")
		}
		if settlement == "" {
			settlement = record.ReqCode
		}
		applied, err := payments.CompletePayment(record.ID, settlement, "", "")
		if err != nil {
			log.Printf("[callback] Error completing withdrawal %d: %s\n", record.ID, err.Error())
			return
		}
		if applied {
			lib.PushPlatformEvent(record.PlatformID, "withdrawal-complete", map[string]any{
				"code":   settlement,
				"amount": record.Amount,
			})
		}
		return
	}
	reason := payments.ToUserMessage(desc)
	if err := payments.FailPayment(record.ID, reason, ""); err != nil {
		log.Printf("[callback] Error failing withdrawal %d: %s\n", record.ID, err.Error())
		return
	}
	gross, err := decimal.NewFromString(record.Amount)
	if err == nil && gross.IsPositive() {
		if err := payments.CreditFunds(record.PlatformID, gross); err != nil {
			log.Printf("[callback] Error refunding withdrawal %d: %s\n", record.ID, err.Error())
		}
	}
	lib.PushPlatformEvent(record.PlatformID, "withdrawal-failed", map[string]any{
		"code":   record.ReqCode,
		"reason": reason,
	})
}

// handleOfflineConfirmation processes a paybill C2B confirmation. Field
// names differ between provider products, so extraction goes through alias
// lists rather than a fixed struct.
func handleOfflineConfirmation(ctx *gin.Context, act *payments.Activator, raw []byte) {
	shortCode := firstGjson(raw, "BusinessShortCode", "ShortCode", "Shortcode", "PaybillNumber")
	account := firstGjson(raw, "BillRefNumber", "AccountNumber", "Account")
	amount := firstGjson(raw, "TransAmount", "Amount")
	phone := firstGjson(raw, "MSISDN", "PhoneNumber", "Phone")
	transID := firstGjson(raw, "TransID", "TransactionID", "TransactionId")
	if shortCode == "" || transID == "" {
		ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		return
	}
	var platform models.Platform
	if err := db.GetDb().Where("short_code = ?", shortCode).First(&platform).Error; err != nil {
		ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		return
	}
	if !platform.OfflineEnabled || platform.ShortCodeType != types.DESTINATION_PAYBILL {
		ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		return
	}
	// Dedup by transaction id: redelivery of a confirmation we already hold
	// is a success, not an error.
	if existing, err := payments.FindPaymentByAnyCode(transID); err == nil && existing != nil {
		ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		return
	}
	record := &models.PaymentRecord{
		PlatformID:    platform.ID,
		ReqCode:       transID,
		Amount:        amount,
		Phone:         phone,
		Type:          types.PAYMENT_DEPOSIT,
		Service:       types.SERVICE_HOTSPOT,
		PaymentMethod: types.METHOD_C2B,
		Reason:        account,
		Account:       account,
	}
	if err := payments.CreatePayment(record); err != nil {
		if !errors.Is(err, payments.ErrDuplicateRequest) {
			log.Printf("[callback] Error recording offline confirmation %s: %s\n", transID, err.Error())
		}
		ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		return
	}
	if _, err := payments.SettleDeposit(ctx.Request.Context(), act, record, transID, amount, darajaTransfer); err != nil {
		log.Printf("[callback] Error settling offline confirmation %s: %s\n", transID, err.Error())
	}
	ctx.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

func firstGjson(raw []byte, keys ...string) string {
	for _, key := range keys {
		if v := gjson.GetBytes(raw, key); v.Exists() {
			return v.String()
		}
	}
	return ""
}

func handleGatewayWithdrawal(record *models.PaymentRecord, body *types.GatewayWithdrawalCallbackBody) {
	failed := false
	total := decimal.Zero
	for _, txn := range body.Transactions {
		if !strings.EqualFold(txn.Status, "completed") && !strings.EqualFold(txn.Status, "successful") {
			failed = true
		}
		total = total.Add(decimal.NewFromFloat(txn.Amount)).Add(decimal.NewFromFloat(txn.Charge))
	}
	if failed {
		if err := payments.FailDeposit(record, "Withdrawal could not be delivered"); err != nil {
			log.Printf("[callback] Error failing withdrawal %d: %s\n", record.ID, err.Error())
			return
		}
		// Give the reserved funds back.
		gross, err := decimal.NewFromString(record.Amount)
		if err == nil && gross.IsPositive() {
			if err := payments.CreditFunds(record.PlatformID, gross); err != nil {
				log.Printf("[callback] Error refunding withdrawal %d: %s\n", record.ID, err.Error())
			}
		}
		return
	}
	applied, err := payments.CompletePayment(record.ID, body.FileID, total.String(), types.PAYMENT_WITHDRAWAL)
	if err != nil {
		log.Printf("[callback] Error completing withdrawal %d: %s\n", record.ID, err.Error())
		return
	}
	if applied {
		lib.PushPlatformEvent(record.PlatformID, "withdrawal-complete", map[string]any{
			"code":   record.ReqCode,
			"amount": record.Amount,
		})
	}
}
