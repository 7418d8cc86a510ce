package payments

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"netbill/src/models"
	"netbill/src/types"
)

func TestCreatePayment(t *testing.T) {
	t.Run("defaults code and status", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_records"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "payment_records"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		record := models.PaymentRecord{
			PlatformID: 3,
			ReqCode:    "ws_CO_1209",
			Amount:     "20",
			Type:       types.PAYMENT_DEPOSIT,
		}
		err := CreatePayment(&record)
		assert.Nil(t, err)
		assert.Equal(t, "ws_CO_1209", record.Code)
		assert.Equal(t, types.PAYMENT_PENDING, record.Status)
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a duplicate request code", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_records"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		record := models.PaymentRecord{PlatformID: 3, ReqCode: "ws_CO_1209"}
		err := CreatePayment(&record)
		assert.ErrorIs(t, err, ErrDuplicateRequest)
		assert.Nil(t, mock.ExpectationsWereMet())
	})
}

func TestCompletePaymentIdempotent(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payment_records" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := CompletePayment(12, "THX4Y7Q2", "20", types.PAYMENT_DEPOSIT)
	assert.Nil(t, err)
	assert.True(t, applied)

	// Redelivered callback: the guarded UPDATE matches no rows.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payment_records" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	applied, err = CompletePayment(12, "THX4Y7Q2", "20", types.PAYMENT_DEPOSIT)
	assert.Nil(t, err)
	assert.False(t, applied)

	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestFindPaymentByAnyCode(t *testing.T) {
	mock := newMockDB(t)

	columns := []string{"id", "platform_id", "req_code", "code", "status"}
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE code =`).
		WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE req_code =`).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(4, 3, "ws_CO_77", "ws_CO_77", "PENDING"))

	record, err := FindPaymentByAnyCode("ws_CO_77")
	assert.Nil(t, err)
	if assert.NotNil(t, record) {
		assert.Equal(t, uint(4), record.ID)
		assert.Equal(t, types.PAYMENT_PENDING, record.Status)
	}
	assert.Nil(t, mock.ExpectationsWereMet())
}
