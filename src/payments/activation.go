package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"netbill/src/db"
	"netbill/src/lib"
	"netbill/src/models"
	"netbill/src/types"
)

// ProvisionParams is everything the network controller needs to admit a
// hotspot voucher.
type ProvisionParams struct {
	PlatformID uint
	Code       string
	Username   string
	Phone      string
	PackageID  string
	Minutes    int
}

// Provisioner is the network-provisioning collaborator. Implementations talk
// to the router controller; this package only sees success or failure.
type Provisioner interface {
	AddManualCode(ctx context.Context, params *ProvisionParams) error
	EnablePPPoE(ctx context.Context, platformID uint, username string) error
	FindLoginByCode(ctx context.Context, platformID uint, code string) (string, error)
}

// SMSSender posts a templated message to the phone that paid.
type SMSSender interface {
	Send(ctx context.Context, phone string, message string) error
}

var ErrActivationFailed = errors.New("payment received but activation failed")

// Activator drives the post-payment side effects per service. Activation is
// best effort: a completed payment stays COMPLETE even when provisioning
// gives up, the failure is surfaced for customer-care resolution instead.
type Activator struct {
	Provision     Provisioner
	SMS           SMSSender
	SendEmail     func(to string, subject string, body string) error
	TokenSecret   []byte
	RetryInterval time.Duration
	RetryWindow   time.Duration
}

type ActivationResult struct {
	LoginCode string    `json:"login_code"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewActivator(provision Provisioner, sms SMSSender, tokenSecret []byte) *Activator {
	return &Activator{
		Provision:     provision,
		SMS:           sms,
		SendEmail:     lib.SendReceiptEmail,
		TokenSecret:   tokenSecret,
		RetryInterval: time.Second,
		RetryWindow:   10 * time.Second,
	}
}

// Activate runs the service-specific handoff for a completed payment.
func (a *Activator) Activate(ctx context.Context, record *models.PaymentRecord) (*ActivationResult, error) {
	switch record.Service {
	case types.SERVICE_HOTSPOT:
		return a.activateHotspot(ctx, record)
	case types.SERVICE_PPPOE:
		return a.activatePPPoE(ctx, record)
	case types.SERVICE_BILL:
		return a.settleBill(record)
	case types.SERVICE_SMS:
		return a.topUpSMSWallet(record)
	case types.SERVICE_B2B, types.SERVICE_B2POCHI:
		// Outbound transfers have nothing to provision.
		return nil, nil
	}
	return nil, fmt.Errorf("unknown service %q on payment %d", record.Service, record.ID)
}

func (a *Activator) activateHotspot(ctx context.Context, record *models.PaymentRecord) (*ActivationResult, error) {
	d := db.GetDb()

	// A redelivered completion or a client status poll may land here after
	// the voucher already exists; hand back the existing login instead of
	// provisioning twice.
	if existing, err := a.Provision.FindLoginByCode(ctx, record.PlatformID, record.Code); err == nil && existing != "" {
		return &ActivationResult{LoginCode: existing}, nil
	}

	var platform models.Platform
	if err := d.Where("id = ?", record.PlatformID).First(&platform).Error; err != nil {
		return nil, err
	}
	pkg, err := resolvePackage(d, record)
	if err != nil {
		log.Printf("[activation] No package for payment %d (amount %s, reason %q): %s\n", record.ID, record.Amount, record.Reason, err.Error())
		return nil, err
	}
	duration := PackageDuration(pkg.Period)
	expiresAt := time.Now().Add(duration)

	token, err := a.mintVoucherToken(record, pkg, expiresAt)
	if err != nil {
		return nil, err
	}
	params := &ProvisionParams{
		PlatformID: record.PlatformID,
		Code:       record.Code,
		Username:   record.Code,
		Phone:      record.Phone,
		PackageID:  fmt.Sprint(pkg.ID),
		Minutes:    int(duration.Minutes()),
	}

	if err := a.provisionWithRetry(ctx, record, params); err != nil {
		lib.PushPlatformEvent(record.PlatformID, "activation-failed", map[string]any{
			"code":  record.Code,
			"phone": record.Phone,
		})
		return nil, ErrActivationFailed
	}

	result := &ActivationResult{LoginCode: record.Code, Token: token, ExpiresAt: expiresAt}
	lib.PushPlatformEvent(record.PlatformID, "activation-success", map[string]any{
		"code":       record.Code,
		"token":      token,
		"expires_at": expiresAt,
	})
	a.sendVoucherSMS(ctx, &platform, record, expiresAt)
	return result, nil
}

// provisionWithRetry tries the controller once, then keeps retrying on a
// fixed interval until the window closes. The window is the only built-in
// timeout, the payment itself is already settled by the time we get here.
func (a *Activator) provisionWithRetry(ctx context.Context, record *models.PaymentRecord, params *ProvisionParams) error {
	err := a.Provision.AddManualCode(ctx, params)
	if err == nil {
		return nil
	}
	log.Printf("[activation] First provisioning attempt for %s failed: %s\n", record.Code, err.Error())
	lib.PushPlatformEvent(record.PlatformID, "activation-connecting", map[string]any{
		"code": record.Code,
	})
	deadline := time.Now().Add(a.RetryWindow)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.RetryInterval):
		}
		if err = a.Provision.AddManualCode(ctx, params); err == nil {
			return nil
		}
	}
	log.Printf("[activation] Provisioning for %s gave up after %s: %s\n", record.Code, a.RetryWindow, err.Error())
	return err
}

func (a *Activator) mintVoucherToken(record *models.PaymentRecord, pkg *models.Package, expiresAt time.Time) (string, error) {
	claims := types.VoucherClaims{
		Phone:      record.Phone,
		Username:   record.Code,
		PackageID:  fmt.Sprint(pkg.ID),
		PlatformID: record.PlatformID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   record.Code,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.TokenSecret)
}

func (a *Activator) sendVoucherSMS(ctx context.Context, platform *models.Platform, record *models.PaymentRecord, expiresAt time.Time) {
	if !platform.SmsEnabled || a.SMS == nil {
		return
	}
	d := db.GetDb()
	var wallet models.SMSWallet
	if err := d.Where("platform_id = ?", platform.ID).First(&wallet).Error; err != nil {
		log.Printf("[activation] No SMS wallet for platform %d\n", platform.ID)
		return
	}
	balance, err := decimal.NewFromString(wallet.Balance)
	if err != nil || wallet.Count <= 0 || !balance.IsPositive() {
		log.Printf("[activation] SMS wallet for platform %d is empty, skipping SMS\n", platform.ID)
		return
	}
	message := fmt.Sprintf("Payment received. Your WiFi login code is %s, valid until %s.", record.Code, expiresAt.Format("02 Jan 2006 15:04"))
	if err := a.SMS.Send(ctx, record.Phone, message); err != nil {
		log.Printf("[activation] SMS to %s failed: %s\n", record.Phone, err.Error())
		return
	}
	res := d.Model(&models.SMSWallet{}).
		Where("platform_id = ? AND count > 0", platform.ID).
		Updates(map[string]any{
			"balance": gorm.Expr("balance - ?", smsUnitCost().String()),
			"count":   gorm.Expr("count - 1"),
		})
	if res.Error != nil {
		log.Printf("[activation] Error decrementing SMS wallet for platform %d: %s\n", platform.ID, res.Error.Error())
	}
}

func (a *Activator) activatePPPoE(ctx context.Context, record *models.PaymentRecord) (*ActivationResult, error) {
	d := db.GetDb()
	var sub models.PPPoESubscription
	if err := d.Where("payment_link = ?", record.Reason).First(&sub).Error; err != nil {
		log.Printf("[activation] No PPPoE subscription for link %q\n", record.Reason)
		return nil, err
	}
	// Single attempt. PPPoE sessions reconnect on their own schedule, a
	// failed enable is reported and handled by support.
	if err := a.Provision.EnablePPPoE(ctx, record.PlatformID, sub.Username); err != nil {
		lib.PushPlatformEvent(record.PlatformID, "activation-failed", map[string]any{
			"username": sub.Username,
			"code":     record.Code,
		})
		return nil, ErrActivationFailed
	}
	updates := map[string]any{
		"active":   true,
		"reminded": false,
	}
	var expiresAt time.Time
	base := time.Now()
	if sub.ExpiresAt != nil && sub.ExpiresAt.After(base) {
		base = *sub.ExpiresAt
	}
	if exp := AddPeriod(base, sub.Period); exp != nil {
		updates["expires_at"] = *exp
		expiresAt = *exp
	}
	if err := d.Model(&models.PPPoESubscription{}).Where("id = ?", sub.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	if sub.Email != "" && a.SendEmail != nil {
		body := fmt.Sprintf("We received your payment of %s. Your PPPoE service %s is active.", record.Amount, sub.Username)
		if err := a.SendEmail(sub.Email, "Payment received", body); err != nil {
			log.Printf("[activation] Receipt email to %s failed: %s\n", sub.Email, err.Error())
		}
	}
	return &ActivationResult{LoginCode: sub.Username, ExpiresAt: expiresAt}, nil
}

func (a *Activator) settleBill(record *models.PaymentRecord) (*ActivationResult, error) {
	d := db.GetDb()
	billID := record.ReferenceID
	if billID == "" {
		billID = record.Reason
	}
	res := d.Model(&models.Bill{}).
		Where("id = ? AND platform_id = ?", billID, record.PlatformID).
		Updates(map[string]any{"paid": true, "amount": "0"})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("no bill %q for platform %d", billID, record.PlatformID)
	}
	return &ActivationResult{LoginCode: record.Code}, nil
}

func (a *Activator) topUpSMSWallet(record *models.PaymentRecord) (*ActivationResult, error) {
	d := db.GetDb()
	amount, err := decimal.NewFromString(record.Amount)
	if err != nil {
		return nil, err
	}
	messages := amount.Div(smsUnitCost()).IntPart()
	res := d.Model(&models.SMSWallet{}).
		Where("id = ? AND platform_id = ?", record.Reason, record.PlatformID).
		Updates(map[string]any{
			"balance": gorm.Expr("balance + ?", amount.String()),
			"count":   gorm.Expr("count + ?", messages),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("no SMS wallet %q for platform %d", record.Reason, record.PlatformID)
	}
	return &ActivationResult{LoginCode: record.Code}, nil
}

func resolvePackage(d *gorm.DB, record *models.PaymentRecord) (*models.Package, error) {
	amount, err := decimal.NewFromString(record.Amount)
	if err != nil {
		return nil, err
	}
	price := int(amount.IntPart())
	var pkg models.Package
	if packageID, err := strconv.Atoi(record.Reason); err == nil {
		err := d.Where("platform_id = ? AND price = ? AND id = ?", record.PlatformID, price, packageID).First(&pkg).Error
		if err == nil {
			return &pkg, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if err := d.Where("platform_id = ? AND price = ?", record.PlatformID, price).First(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func smsUnitCost() decimal.Decimal {
	return decimal.NewFromInt(1)
}
