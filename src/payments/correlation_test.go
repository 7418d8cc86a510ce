package payments

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"

	"netbill/src/lib"
	"netbill/src/types"
)

func TestCorrelationStore(t *testing.T) {
	ctx := context.Background()

	t.Run("register and resolve consumes the entry", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		lib.NewRedisClient(rdb)

		mock.Regexp().ExpectSet("correlation:AG_123", `.*`, CorrelationTTL).SetVal("OK")

		err := RegisterCorrelation(ctx, "AG_123", 7, types.INTENT_VERIFY)
		assert.Nil(t, err)

		entry := CorrelationEntry{PlatformID: 7, Type: types.INTENT_VERIFY, CreatedAt: time.Now()}
		raw, _ := json.Marshal(&entry)
		mock.ExpectGetDel("correlation:AG_123").SetVal(string(raw))

		got, err := ResolveCorrelation(ctx, "AG_123")
		assert.Nil(t, err)
		if assert.NotNil(t, got) {
			assert.Equal(t, uint(7), got.PlatformID)
			assert.Equal(t, types.INTENT_VERIFY, got.Type)
		}

		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("entry keeps the payment request code", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		lib.NewRedisClient(rdb)

		mock.Regexp().ExpectSet("correlation:AG_456", `.*`, CorrelationTTL).SetVal("OK")

		err := RegisterCorrelationEntry(ctx, "AG_456", &CorrelationEntry{
			PlatformID: 7,
			Type:       types.INTENT_VERIFY,
			ReqCode:    "ws_CO_1209",
		})
		assert.Nil(t, err)

		entry := CorrelationEntry{
			PlatformID: 7,
			Type:       types.INTENT_VERIFY,
			ReqCode:    "ws_CO_1209",
			CreatedAt:  time.Now(),
		}
		raw, _ := json.Marshal(&entry)
		mock.ExpectGetDel("correlation:AG_456").SetVal(string(raw))

		got, err := ResolveCorrelation(ctx, "AG_456")
		assert.Nil(t, err)
		if assert.NotNil(t, got) {
			assert.Equal(t, "ws_CO_1209", got.ReqCode)
		}
	})

	t.Run("second resolve returns nil", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		lib.NewRedisClient(rdb)

		mock.ExpectGetDel("correlation:AG_123").RedisNil()

		got, err := ResolveCorrelation(ctx, "AG_123")
		assert.Nil(t, err)
		assert.Nil(t, got)
	})

	t.Run("stale entry is treated as absent", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		lib.NewRedisClient(rdb)

		entry := CorrelationEntry{
			PlatformID: 7,
			Type:       types.INTENT_REVERSE,
			CreatedAt:  time.Now().Add(-CorrelationTTL - time.Minute),
		}
		raw, _ := json.Marshal(&entry)
		mock.ExpectGetDel("correlation:AG_999").SetVal(string(raw))

		got, err := ResolveCorrelation(ctx, "AG_999")
		assert.Nil(t, err)
		assert.Nil(t, got)
	})
}
