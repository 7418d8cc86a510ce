package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"netbill/src/db"
	"netbill/src/lib"
	"netbill/src/models"
	"netbill/src/payments"
	"netbill/src/types"
)

func callbackURL(path string) string {
	return os.Getenv("API_BASE_URL") + "/api/v1/callbacks/" + path
}

// darajaTransfer is the TransferFunc the sweep pool uses to move pooled C2B
// receipts out. Pochi destinations carry the phone number in the shortcode
// slot.
func darajaTransfer(ctx context.Context, platform *models.Platform, destination types.DestinationType, shortCode string, account string, amount int) (string, error) {
	creds := payments.CredentialsFor(platform)
	securityCredential, err := payments.PlatformSecurityCredential(platform)
	if err != nil {
		return "", err
	}
	resultURL := callbackURL("result")
	if destination == types.DESTINATION_PHONE {
		resp, err := lib.B2PochiTransfer(ctx, creds, securityCredential, amount, shortCode, resultURL)
		if err != nil {
			return "", err
		}
		return resp.OriginatorConversationID, nil
	}
	resp, err := lib.B2BTransfer(ctx, creds, securityCredential, amount, shortCode, account, string(destination), resultURL)
	if err != nil {
		return "", err
	}
	return resp.OriginatorConversationID, nil
}

// sendWithdrawal dispatches the outbound transfer. Declared as a var so
// tests can swap it out.
var sendWithdrawal = func(ctx context.Context, platform *models.Platform, destination types.DestinationType, body *types.WithdrawRequestBody, net int) (*lib.CommandResponse, error) {
	creds := payments.CredentialsFor(platform)
	securityCredential, err := payments.PlatformSecurityCredential(platform)
	if err != nil {
		return nil, err
	}
	resultURL := callbackURL("result")
	if destination == types.DESTINATION_PHONE {
		return lib.B2PochiTransfer(ctx, creds, securityCredential, net, body.Phone, resultURL)
	}
	return lib.B2BTransfer(ctx, creds, securityCredential, net, body.ShortCode, body.Account, string(destination), resultURL)
}

func paymentHandlers(g *gin.RouterGroup, act *payments.Activator) *gin.RouterGroup {
	g.
		POST("/payments/deposit", func(ctx *gin.Context) {
			var body types.DepositRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var platform models.Platform
			if err := db.GetDb().Where("id = ?", body.PlatformID).First(&platform).Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown platform"})
				return
			}
			amount, err := decimal.NewFromString(body.Amount)
			if err != nil || !amount.IsPositive() {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "The amount entered is invalid."})
				return
			}
			creds := payments.CredentialsFor(&platform)
			if creds.ShortCode == "" || creds.Passkey == "" {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "platform payment configuration is incomplete"})
				return
			}
			resp, err := lib.STKPush(ctx.Request.Context(), creds, body.Phone, int(amount.IntPart()), platform.ShortCode, callbackURL("stk"))
			if err != nil {
				if diagnosis := payments.DiagnoseCredentialError(err); diagnosis != "" {
					payments.RaiseCredentialAlert(platform.ID, diagnosis, err)
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": payments.ToUserMessage(err.Error())})
				return
			}
			record := &models.PaymentRecord{
				PlatformID:    platform.ID,
				ReqCode:       resp.CheckoutRequestID,
				Amount:        amount.String(),
				Phone:         body.Phone,
				Type:          types.PAYMENT_DEPOSIT,
				Service:       types.ServiceType(body.Service),
				PaymentMethod: types.METHOD_STK,
				Reason:        body.PackageID,
				ReferenceID:   body.Reference,
				Mac:           body.Mac,
			}
			if err := payments.CreatePayment(record); err != nil {
				if errors.Is(err, payments.ErrDuplicateRequest) {
					ctx.JSON(http.StatusConflict, gin.H{"error": "A similar payment is already being processed. Wait for it to finish."})
					return
				}
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"reqcode": record.ReqCode,
				"message": resp.CustomerMessage,
			})
		}).
		POST("/payments/withdraw", func(ctx *gin.Context) {
			var body types.WithdrawRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var platform models.Platform
			if err := db.GetDb().Where("id = ?", body.PlatformID).First(&platform).Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown platform"})
				return
			}
			gross, err := decimal.NewFromString(body.Amount)
			if err != nil || !gross.IsPositive() {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "The amount entered is invalid."})
				return
			}
			destination := types.DestinationType(body.DestinationType)
			net, err := payments.NetWithdrawal(int(gross.IntPart()), destination)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "The amount is too small to withdraw after fees."})
				return
			}
			ok, err := payments.DebitFunds(platform.ID, gross)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if !ok {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "You have insufficient funds to withdraw this amount."})
				return
			}
			resp, sendErr := sendWithdrawal(ctx.Request.Context(), &platform, destination, &body, net)
			if sendErr != nil {
				// The debit already landed; put it back before reporting.
				if err := payments.CreditFunds(platform.ID, gross); err != nil {
					log.Printf("[withdraw] Error restoring funds for platform %d: %s\n", platform.ID, err.Error())
				}
				if diagnosis := payments.DiagnoseCredentialError(sendErr); diagnosis != "" {
					payments.RaiseCredentialAlert(platform.ID, diagnosis, sendErr)
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": payments.ToUserMessage(sendErr.Error())})
				return
			}
			service := types.SERVICE_B2B
			ptype := types.PAYMENT_B2B
			if destination == types.DESTINATION_PHONE {
				service = types.SERVICE_B2POCHI
				ptype = types.PAYMENT_B2POCHI
			}
			record := &models.PaymentRecord{
				PlatformID:    platform.ID,
				ReqCode:       resp.OriginatorConversationID,
				Amount:        gross.String(),
				Phone:         body.Phone,
				Type:          ptype,
				Service:       service,
				PaymentMethod: types.METHOD_GATEWAY,
			}
			switch destination {
			case types.DESTINATION_TILL:
				record.Till = body.ShortCode
			case types.DESTINATION_PAYBILL:
				record.Paybill = body.ShortCode
				record.Account = body.Account
			}
			if err := payments.CreatePayment(record); err != nil {
				log.Printf("[withdraw] Error recording withdrawal %s: %s\n", record.ReqCode, err.Error())
			}
			if err := payments.RegisterCorrelation(ctx.Request.Context(), resp.OriginatorConversationID, platform.ID, types.INTENT_B2B_TRANSFER); err != nil {
				log.Printf("[withdraw] Error registering correlation %s: %s\n", resp.OriginatorConversationID, err.Error())
			}
			ctx.JSON(http.StatusOK, gin.H{
				"reqcode": record.ReqCode,
				"net":     net,
			})
		}).
		POST("/payments/balance", func(ctx *gin.Context) {
			var body struct {
				PlatformID uint `json:"platform_id" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var platform models.Platform
			if err := db.GetDb().Where("id = ?", body.PlatformID).First(&platform).Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown platform"})
				return
			}
			creds := payments.CredentialsFor(&platform)
			securityCredential, err := payments.PlatformSecurityCredential(&platform)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "initiator credentials are not configured"})
				return
			}
			resp, err := lib.AccountBalance(ctx.Request.Context(), creds, securityCredential, callbackURL("result"))
			if err != nil {
				if diagnosis := payments.DiagnoseCredentialError(err); diagnosis != "" {
					payments.RaiseCredentialAlert(platform.ID, diagnosis, err)
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": payments.ToUserMessage(err.Error())})
				return
			}
			if err := payments.RegisterCorrelation(ctx.Request.Context(), resp.OriginatorConversationID, platform.ID, types.INTENT_BALANCE); err != nil {
				log.Printf("[balance] Error registering correlation %s: %s\n", resp.OriginatorConversationID, err.Error())
			}
			if err := payments.SetShortIdentifier(platform.ID, resp.ConversationID); err != nil {
				log.Printf("[balance] Error storing short identifier for platform %d: %s\n", platform.ID, err.Error())
			}
			ctx.JSON(http.StatusOK, gin.H{"conversation_id": resp.ConversationID})
		}).
		POST("/payments/reverse", func(ctx *gin.Context) {
			var body types.ReversalRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var platform models.Platform
			if err := db.GetDb().Where("id = ?", body.PlatformID).First(&platform).Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown platform"})
				return
			}
			amount, err := decimal.NewFromString(body.Amount)
			if err != nil || !amount.IsPositive() {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "The amount entered is invalid."})
				return
			}
			creds := payments.CredentialsFor(&platform)
			securityCredential, err := payments.PlatformSecurityCredential(&platform)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "initiator credentials are not configured"})
				return
			}
			resp, err := lib.ReverseTransaction(ctx.Request.Context(), creds, securityCredential, body.Code, int(amount.IntPart()), callbackURL("result"))
			if err != nil {
				if diagnosis := payments.DiagnoseCredentialError(err); diagnosis != "" {
					payments.RaiseCredentialAlert(platform.ID, diagnosis, err)
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": payments.ToUserMessage(err.Error())})
				return
			}
			if err := payments.RegisterCorrelation(ctx.Request.Context(), resp.OriginatorConversationID, platform.ID, types.INTENT_REVERSE); err != nil {
				log.Printf("[reverse] Error registering correlation %s: %s\n", resp.OriginatorConversationID, err.Error())
			}
			ctx.JSON(http.StatusOK, gin.H{"conversation_id": resp.ConversationID})
		})
	return g
}

// statusCheckRoute is polled by captive portals, so it sits outside the
// authenticated group.
func statusCheckRoute(g *gin.Engine, act *payments.Activator) {
	apiv1 := apiv1Group(g)
	apiv1.POST("/payments/status", func(ctx *gin.Context) {
		var body types.StatusCheckRequestBody
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		record, err := payments.FindPaymentByAnyCode(body.Code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "Could not find a payment with that code"})
				return
			}
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		switch record.Status {
		case types.PAYMENT_COMPLETE:
			if record.Type == types.PAYMENT_DEPOSIT && record.Service == types.SERVICE_HOTSPOT {
				// On-demand activation: Activate short-circuits when the
				// voucher already exists.
				result, err := act.Activate(ctx.Request.Context(), record)
				if err != nil {
					ctx.JSON(http.StatusOK, gin.H{
						"status":  record.Status,
						"message": "Payment received but activation failed. Contact support.",
					})
					return
				}
				ctx.JSON(http.StatusOK, gin.H{
					"status":     record.Status,
					"login_code": result.LoginCode,
					"token":      result.Token,
					"expires_at": result.ExpiresAt,
				})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"status": record.Status})
		case types.PAYMENT_FAILED:
			ctx.JSON(http.StatusOK, gin.H{
				"status":  record.Status,
				"message": payments.ToUserMessage(record.FailedReason),
			})
		default:
			ctx.JSON(http.StatusOK, gin.H{"status": record.Status})
		}
	})
}
