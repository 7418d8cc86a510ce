package payments

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCreditFunds(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "funds_accounts" .+ ON CONFLICT \("platform_id"\) DO UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := CreditFunds(3, decimal.NewFromInt(18))
	assert.Nil(t, err)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestDebitFunds(t *testing.T) {
	t.Run("sufficient balance", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "funds_accounts" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := DebitFunds(3, decimal.NewFromInt(100))
		assert.Nil(t, err)
		assert.True(t, ok)
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance is not an error", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "funds_accounts" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		ok, err := DebitFunds(3, decimal.NewFromInt(1000000))
		assert.Nil(t, err)
		assert.False(t, ok)
		assert.Nil(t, mock.ExpectationsWereMet())
	})
}

func TestRecordSettlementBalance(t *testing.T) {
	t.Run("creates the account on first report", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "funds_accounts" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "funds_accounts"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		err := RecordSettlementBalance(3, 2561.5)
		assert.Nil(t, err)
		assert.Nil(t, mock.ExpectationsWereMet())
	})
}
