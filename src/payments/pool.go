package payments

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"netbill/src/db"
	"netbill/src/models"
	"netbill/src/types"
)

// Provider minimum-transfer threshold in currency units. Receipts below it
// are pooled and swept out later in one transfer.
var sweepThreshold = decimal.NewFromInt(10)

// TransferFunc attempts the outbound transfer and returns the provider's
// originator conversation id.
type TransferFunc func(ctx context.Context, platform *models.Platform, destination types.DestinationType, shortCode string, account string, amount int) (string, error)

// HandleC2BReceipt applies the sweep policy to a completed C2B deposit.
// Sub-threshold amounts are pooled and a flush is attempted immediately (a
// no-op while the pool is still under the threshold). Larger amounts go out
// directly; a failed direct transfer is re-pooled rather than lost.
func HandleC2BReceipt(ctx context.Context, platform *models.Platform, amount decimal.Decimal, destination types.DestinationType, shortCode string, account string, transfer TransferFunc) error {
	if amount.LessThan(sweepThreshold) {
		if err := addToPool(platform.ID, destination, shortCode, account, amount); err != nil {
			return err
		}
		_, _, err := FlushPool(ctx, platform, destination, shortCode, account, transfer)
		return err
	}
	// The provider moves whole currency units; any fractional remainder
	// stays pooled so no cent is ever dropped.
	whole := amount.Truncate(0)
	originatorID, err := transfer(ctx, platform, destination, shortCode, account, int(whole.IntPart()))
	if err != nil {
		log.Printf("[pool] Direct transfer of %s for platform %d failed, re-pooling: %s\n", amount.String(), platform.ID, err.Error())
		return addToPool(platform.ID, destination, shortCode, account, amount)
	}
	if frac := amount.Sub(whole); frac.IsPositive() {
		if err := addToPool(platform.ID, destination, shortCode, account, frac); err != nil {
			log.Printf("[pool] Error pooling remainder %s for platform %d: %s\n", frac.String(), platform.ID, err.Error())
		}
	}
	registerTransferCorrelation(ctx, platform.ID, destination, originatorID)
	return nil
}

// FlushPool attempts to sweep the pooled amount out. attempted is false when
// the pool is still under the threshold. On success the flushed amount is
// subtracted in the database (not zeroed, so a concurrent add is never
// clobbered); on failure the pool is left untouched.
func FlushPool(ctx context.Context, platform *models.Platform, destination types.DestinationType, shortCode string, account string, transfer TransferFunc) (attempted bool, success bool, err error) {
	d := db.GetDb()
	var pool models.C2BTransferPool
	err = d.Where(&models.C2BTransferPool{
		PlatformID:           platform.ID,
		DestinationType:      destination,
		DestinationShortCode: shortCode,
		DestinationAccount:   account,
	}).First(&pool).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, false, nil
		}
		return false, false, err
	}
	pooled, err := decimal.NewFromString(pool.Amount)
	if err != nil {
		log.Printf("[pool] Unparsable pooled amount %q for platform %d\n", pool.Amount, platform.ID)
		return false, false, err
	}
	if pooled.LessThan(sweepThreshold) {
		return false, false, nil
	}
	// Only whole units go out; the fraction stays behind in the pool, so
	// the subtraction must match the transferred amount exactly.
	whole := pooled.Truncate(0)
	originatorID, err := transfer(ctx, platform, destination, shortCode, account, int(whole.IntPart()))
	if err != nil {
		log.Printf("[pool] Flush of %s for platform %d failed: %s\n", whole.String(), platform.ID, err.Error())
		return true, false, nil
	}
	res := d.Model(&models.C2BTransferPool{}).
		Where("id = ?", pool.ID).
		Update("amount", gorm.Expr("amount - ?", whole.String()))
	if res.Error != nil {
		log.Printf("[pool] Error resetting pool %d after flush: %s\n", pool.ID, res.Error.Error())
		return true, true, res.Error
	}
	registerTransferCorrelation(ctx, platform.ID, destination, originatorID)
	return true, true, nil
}

func addToPool(platformID uint, destination types.DestinationType, shortCode string, account string, amount decimal.Decimal) error {
	d := db.GetDb()
	var pool models.C2BTransferPool
	err := d.Where(&models.C2BTransferPool{
		PlatformID:           platformID,
		DestinationType:      destination,
		DestinationShortCode: shortCode,
		DestinationAccount:   account,
	}).First(&pool).Error
	if err == gorm.ErrRecordNotFound {
		pool = models.C2BTransferPool{
			PlatformID:           platformID,
			DestinationType:      destination,
			DestinationShortCode: shortCode,
			DestinationAccount:   account,
			Amount:               amount.String(),
		}
		if err := d.Clauses(clause.OnConflict{DoNothing: true}).Create(&pool).Error; err != nil {
			return err
		}
		if pool.ID != 0 {
			return nil
		}
		// Lost the insert race, fall through to the increment.
	} else if err != nil {
		return err
	}
	res := d.Model(&models.C2BTransferPool{}).
		Where(&models.C2BTransferPool{
			PlatformID:           platformID,
			DestinationType:      destination,
			DestinationShortCode: shortCode,
			DestinationAccount:   account,
		}).
		Update("amount", gorm.Expr("amount + ?", amount.String()))
	if res.Error != nil {
		log.Printf("[pool] Error pooling %s for platform %d: %s\n", amount.String(), platformID, res.Error.Error())
		return res.Error
	}
	return nil
}

// RepoolFailedTransfer puts the amount of a sweep transfer that failed
// asynchronously back into the platform's pool, so the money rides out with
// the next sweep instead of being lost.
func RepoolFailedTransfer(platform *models.Platform, amount decimal.Decimal) error {
	destination, shortCode, account := sweepDestination(platform)
	return addToPool(platform.ID, destination, shortCode, account, amount)
}

func registerTransferCorrelation(ctx context.Context, platformID uint, destination types.DestinationType, originatorID string) {
	if originatorID == "" {
		return
	}
	intent := types.INTENT_B2B_TRANSFER
	if destination == types.DESTINATION_PHONE {
		intent = types.INTENT_C2B_POCHI
	}
	if err := RegisterCorrelation(ctx, originatorID, platformID, intent); err != nil {
		log.Printf("[pool] Error registering correlation %s: %s\n", originatorID, err.Error())
	}
}
