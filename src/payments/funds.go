package payments

import (
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"netbill/src/db"
	"netbill/src/models"
)

// CreditFunds adds a confirmed deposit (net of provider fees) to a
// platform's balance, creating the account on first deposit. The increment
// happens in the database so concurrent credits for the same platform never
// lose updates.
func CreditFunds(platformID uint, net decimal.Decimal) error {
	d := db.GetDb()
	account := models.FundsAccount{
		PlatformID: platformID,
		Balance:    net.String(),
		Deposits:   net.String(),
	}
	err := d.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":  gorm.Expr("funds_accounts.balance + ?", net.String()),
			"deposits": gorm.Expr("funds_accounts.deposits + ?", net.String()),
		}),
	}).Create(&account).Error
	if err != nil {
		log.Printf("[funds] Error crediting platform %d: %s\n", platformID, err.Error())
	}
	return err
}

// DebitFunds subtracts a confirmed withdrawal. The predicate rides along in
// the UPDATE so check and debit are one atomic statement; a false return
// means insufficient funds, not an error.
func DebitFunds(platformID uint, gross decimal.Decimal) (bool, error) {
	d := db.GetDb()
	res := d.Model(&models.FundsAccount{}).
		Where("platform_id = ? AND balance >= ?", platformID, gross.String()).
		Updates(map[string]any{
			"balance":     gorm.Expr("balance - ?", gross.String()),
			"withdrawals": gorm.Expr("withdrawals + ?", gross.String()),
		})
	if res.Error != nil {
		log.Printf("[funds] Error debiting platform %d: %s\n", platformID, res.Error.Error())
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecordSettlementBalance stores the provider-reported shortcode float.
// Dashboard data only, independent of deposit/withdrawal accounting.
func RecordSettlementBalance(platformID uint, value float64) error {
	d := db.GetDb()
	res := d.Model(&models.FundsAccount{}).
		Where("platform_id = ?", platformID).
		Update("short_code_balance", decimal.NewFromFloat(value).String())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		account := models.FundsAccount{
			PlatformID:       platformID,
			ShortCodeBalance: decimal.NewFromFloat(value).String(),
		}
		return d.Create(&account).Error
	}
	return nil
}

// SetShortIdentifier remembers the conversation id of the most recent
// balance query so the result callback can be matched on the dashboard.
func SetShortIdentifier(platformID uint, identifier string) error {
	d := db.GetDb()
	return d.Model(&models.FundsAccount{}).
		Where("platform_id = ?", platformID).
		Update("short_identifier", identifier).Error
}
