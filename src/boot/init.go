package boot

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"netbill/src/db"
	"netbill/src/lib"
	"netbill/src/models"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.Platform{},
		&models.PaymentRecord{},
		&models.FundsAccount{},
		&models.C2BTransferPool{},
		&models.Package{},
		&models.PPPoESubscription{},
		&models.Bill{},
		&models.SMSWallet{},
		&models.TrailLog{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler starts the stale-payment reconciler. Deposits stuck PENDING
// because a callback never arrived are re-verified against the provider.
// The job is passed in because the reconciler needs the activation and
// transfer wiring that lives with the handlers.
func InitScheduler(reconcile func(ctx context.Context)) {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Fatalf("error initializing scheduler: %s", err.Error())
	}
	_, err = lib.CreateCronJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		reconcile(ctx)
	}, 5*time.Minute)
	if err != nil {
		log.Fatalf("error scheduling reconciler: %s", err.Error())
	}
	sched.Start()
}
