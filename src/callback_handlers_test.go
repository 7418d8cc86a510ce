package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"

	"netbill/src/db"
	"netbill/src/lib"
	"netbill/src/middlewares"
	"netbill/src/models"
	"netbill/src/payments"
	"netbill/src/types"
)

var paymentColumns = []string{
	"id", "platform_id", "code", "req_code", "amount", "phone", "status", "type", "service", "payment_method",
}

func capturePushEvents(t *testing.T) *[]string {
	t.Helper()
	var events []string
	original := lib.PushPlatformEvent
	lib.PushPlatformEvent = func(platformID uint, event string, data map[string]any) {
		events = append(events, event)
	}
	t.Cleanup(func() { lib.PushPlatformEvent = original })
	return &events
}

func testGinContext() *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	return c
}

func TestTransferResultFinishesWithdrawal(t *testing.T) {
	entry := &payments.CorrelationEntry{PlatformID: 3, Type: types.INTENT_B2B_TRANSFER}

	t.Run("success completes the withdrawal record", func(t *testing.T) {
		d, mock := NewMockDB()
		db.NewDB(d)
		events := capturePushEvents(t)

		mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE req_code =`).
			WillReturnRows(sqlmock.NewRows(paymentColumns).
				AddRow(7, 3, "AG_77", "AG_77", "1000", "254700000001", "PENDING", "b2b transfer", "Mpesa B2B", "gateway"))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "payment_records" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		handleTransferResult(entry, "AG_77", "TX999", "0", "The service request is processed successfully.", nil)

		assert.Contains(t, *events, "withdrawal-complete")
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("failure fails the record and refunds the debit", func(t *testing.T) {
		d, mock := NewMockDB()
		db.NewDB(d)
		events := capturePushEvents(t)

		mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE req_code =`).
			WillReturnRows(sqlmock.NewRows(paymentColumns).
				AddRow(7, 3, "AG_77", "AG_77", "1000", "254700000001", "PENDING", "b2b transfer", "Mpesa B2B", "gateway"))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "payment_records" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		// The gross debit goes back to the tenant's funds account.
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "funds_accounts"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		handleTransferResult(entry, "AG_77", "", "2001", "The initiator information is invalid.", nil)

		assert.Contains(t, *events, "withdrawal-failed")
		assert.Nil(t, mock.ExpectationsWereMet())
	})
}

func TestVerifyResultResolvesByRequestCode(t *testing.T) {
	d, mock := NewMockDB()
	db.NewDB(d)
	capturePushEvents(t)

	act := payments.NewActivator(noopProvisioner{}, noopSMSSender{}, []byte("test-secret"))
	entry := &payments.CorrelationEntry{PlatformID: 3, Type: types.INTENT_VERIFY, ReqCode: "ws_CO_55"}

	// The stale record still holds the request code in both code columns, so
	// the lookup must go through the entry's request code.
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE req_code =`).
		WillReturnRows(sqlmock.NewRows(paymentColumns).
			AddRow(5, 3, "ws_CO_55", "ws_CO_55", "50", "254700000001", "PENDING", "deposit", "hotspot", "stk"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payment_records" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	params := []types.ResultParameter{
		{Key: "TransactionStatus", Value: "Failed"},
	}
	handleVerifyResult(testGinContext(), act, entry, "1", "DS timeout user cannot be reached", params)

	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestSTKCallbackStoresPayerPhone(t *testing.T) {
	d, mock := NewMockDB()
	db.NewDB(d)
	capturePushEvents(t)
	gin.SetMode(gin.TestMode)

	act := payments.NewActivator(noopProvisioner{}, noopSMSSender{}, []byte("test-secret"))
	router := createRouter()
	callbackRoutes(router, act)

	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE req_code =`).
		WillReturnRows(sqlmock.NewRows(paymentColumns).
			AddRow(9, 3, "ws_CO_77", "ws_CO_77", "50", "254700000001", "PENDING", "deposit", "hotspot", "stk"))
	// The payer-side number from the callback replaces the request-time one.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payment_records" SET "phone"=`).
		WithArgs("254711111111", sqlmock.AnyArg(), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payment_records" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "funds_accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	body := map[string]any{
		"Body": map[string]any{
			"stkCallback": map[string]any{
				"CheckoutRequestID": "ws_CO_77",
				"ResultCode":        0,
				"CallbackMetadata": map[string]any{
					"Item": []map[string]any{
						{"Name": "Amount", "Value": 50},
						{"Name": "MpesaReceiptNumber", "Value": "THX4Y7Q2"},
						{"Name": "PhoneNumber", "Value": 254711111111},
					},
				},
			},
		},
	}
	sbody, _ := json.Marshal(&body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/callbacks/stk", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestWithdrawRecordsTillDestination(t *testing.T) {
	d, mock := NewMockDB()
	db.NewDB(d)
	capturePushEvents(t)
	gin.SetMode(gin.TestMode)

	rdb, rmock := redismock.NewClientMock()
	lib.NewRedisClient(rdb)
	rmock.Regexp().ExpectSet("correlation:AG_900", `.*`, payments.CorrelationTTL).SetVal("OK")

	originalAuth := middlewares.Authenticate
	middlewares.Authenticate = func(token string) (*middlewares.AuthResult, error) {
		return &middlewares.AuthResult{Success: true}, nil
	}
	t.Cleanup(func() { middlewares.Authenticate = originalAuth })

	originalSend := sendWithdrawal
	sendWithdrawal = func(ctx context.Context, platform *models.Platform, destination types.DestinationType, body *types.WithdrawRequestBody, net int) (*lib.CommandResponse, error) {
		return &lib.CommandResponse{OriginatorConversationID: "AG_900", ConversationID: "AG_900"}, nil
	}
	t.Cleanup(func() { sendWithdrawal = originalSend })

	act := payments.NewActivator(noopProvisioner{}, noopSMSSender{}, []byte("test-secret"))
	router := createRouter()
	authed := apiv1Group(router)
	authed.Use(middlewares.AuthMiddleware)
	paymentHandlers(authed, act)

	mock.ExpectQuery(`SELECT \* FROM "platforms"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "short_code"}).AddRow(3, "600100"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "funds_accounts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	// The destination till must land in the record's till column.
	mock.ExpectQuery(`INSERT INTO "payment_records" \(.+"till".+\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectCommit()

	payload := `{"platform_id":3,"amount":"5000","destination_type":"till","short_code":"832909"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/payments/withdraw", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer valid-token")
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Nil(t, mock.ExpectationsWereMet())
	assert.Nil(t, rmock.ExpectationsWereMet())
}
