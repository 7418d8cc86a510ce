package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddPeriod(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("parses units with and without plural", func(t *testing.T) {
		out := AddPeriod(now, "30 minutes")
		if assert.NotNil(t, out) {
			assert.Equal(t, now.Add(30*time.Minute), *out)
		}
		out = AddPeriod(now, "1 hour")
		if assert.NotNil(t, out) {
			assert.Equal(t, now.Add(time.Hour), *out)
		}
		out = AddPeriod(now, "2 Days")
		if assert.NotNil(t, out) {
			assert.Equal(t, now.AddDate(0, 0, 2), *out)
		}
		out = AddPeriod(now, "6 months")
		if assert.NotNil(t, out) {
			assert.Equal(t, now.AddDate(0, 6, 0), *out)
		}
		out = AddPeriod(now, "1 year")
		if assert.NotNil(t, out) {
			assert.Equal(t, now.AddDate(1, 0, 0), *out)
		}
	})

	t.Run("nil on unparsable input", func(t *testing.T) {
		assert.Nil(t, AddPeriod(now, ""))
		assert.Nil(t, AddPeriod(now, "monthly"))
		assert.Nil(t, AddPeriod(now, "3 fortnights"))
		assert.Nil(t, AddPeriod(now, "x days"))
	})
}

func TestPackageDuration(t *testing.T) {
	assert.Equal(t, 60*time.Minute, PackageDuration("60"))
	assert.Equal(t, 24*time.Hour, PackageDuration(""))
	assert.Equal(t, 24*time.Hour, PackageDuration("abc"))
	assert.Equal(t, 24*time.Hour, PackageDuration("-5"))
}
