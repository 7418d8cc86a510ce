package payments

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var periodPattern = regexp.MustCompile(`^\s*(\d+)\s*([a-zA-Z]+?)s?\s*$`)

// AddPeriod advances now by a human-readable period such as "2 hours",
// "30 minutes", "1 Day", "6 months" or "1 year". Returns nil on anything it
// cannot parse; callers treat nil as "leave the expiry unchanged".
func AddPeriod(now time.Time, period string) *time.Time {
	m := periodPattern.FindStringSubmatch(period)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	var out time.Time
	switch strings.ToLower(m[2]) {
	case "minute":
		out = now.Add(time.Duration(n) * time.Minute)
	case "hour":
		out = now.Add(time.Duration(n) * time.Hour)
	case "day":
		out = now.AddDate(0, 0, n)
	case "month":
		out = now.AddDate(0, n, 0)
	case "year":
		out = now.AddDate(n, 0, 0)
	default:
		return nil
	}
	return &out
}

// PackageDuration converts a hotspot package period (numeric minutes, kept
// as a string) into a duration, falling back to 24 hours when the value is
// missing or unparsable.
func PackageDuration(period string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(period))
	if err != nil || n <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(n) * time.Minute
}
