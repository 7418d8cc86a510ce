package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"netbill/src/types"
)

func TestParseBalance(t *testing.T) {
	t.Run("plain number", func(t *testing.T) {
		n := ParseBalance("1234.50")
		if assert.NotNil(t, n) {
			assert.Equal(t, 1234.50, *n)
		}
	})

	t.Run("prefers working account over utility", func(t *testing.T) {
		n := ParseBalance("Working Account|KES|500.00|0&Utility Account|KES|120.00|0")
		if assert.NotNil(t, n) {
			assert.Equal(t, 500.00, *n)
		}
	})

	t.Run("prefers merchant account over everything", func(t *testing.T) {
		n := ParseBalance("Utility Account|KES|120.00|0&Merchant Account|KES|980.25|0&Working Account|KES|500.00|0")
		if assert.NotNil(t, n) {
			assert.Equal(t, 980.25, *n)
		}
	})

	t.Run("falls back to the largest candidate", func(t *testing.T) {
		n := ParseBalance("Foo Account|KES|12.00|0&Bar Account|KES|44.50|0")
		if assert.NotNil(t, n) {
			assert.Equal(t, 44.50, *n)
		}
	})

	t.Run("scans for an embedded number", func(t *testing.T) {
		n := ParseBalance("balance is 78.25 KES")
		if assert.NotNil(t, n) {
			assert.Equal(t, 78.25, *n)
		}
	})

	t.Run("nil on garbage", func(t *testing.T) {
		assert.Nil(t, ParseBalance("garbage"))
		assert.Nil(t, ParseBalance(""))
	})
}

func TestExtractSettlementBalance(t *testing.T) {
	params := []types.ResultParameter{
		{Key: "TransactionID", Value: "ABC123"},
		{Key: "AccountBalance", Value: "Working Account|KES|310.00|0"},
		{Key: "UtilityAccountBalance", Value: "999.00"},
	}
	n := ExtractSettlementBalance(params)
	if assert.NotNil(t, n) {
		// AccountBalance sits earlier in the key order than
		// UtilityAccountBalance.
		assert.Equal(t, 310.00, *n)
	}

	assert.Nil(t, ExtractSettlementBalance([]types.ResultParameter{{Key: "Unrelated", Value: "x"}}))
}
