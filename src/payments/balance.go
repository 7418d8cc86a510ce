package payments

import (
	"regexp"
	"strconv"
	"strings"

	"netbill/src/types"
)

var decimalPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Named account buckets in preference order. The merchant account is the
// settled float, the working account the operating one.
var preferredBuckets = []string{"merchant account", "working account", "utility account"}

// ParseBalance extracts a numeric balance out of the provider's balance
// strings. Plain numbers parse directly; composite "&"-joined segments of
// "|"-delimited fields are searched bucket by bucket, preferring the named
// accounts, then the largest candidate. Returns nil when nothing numeric is
// found.
func ParseBalance(value string) *float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return &n
	}
	if strings.Contains(trimmed, "|") {
		byBucket := map[string]float64{}
		var candidates []float64
		for _, segment := range strings.Split(trimmed, "&") {
			fields := strings.Split(segment, "|")
			if len(fields) < 3 {
				continue
			}
			n, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			if err != nil {
				continue
			}
			name := strings.ToLower(strings.TrimSpace(fields[0]))
			byBucket[name] = n
			candidates = append(candidates, n)
		}
		for _, bucket := range preferredBuckets {
			if n, ok := byBucket[bucket]; ok {
				return &n
			}
		}
		if len(candidates) > 0 {
			max := candidates[0]
			for _, n := range candidates[1:] {
				if n > max {
					max = n
				}
			}
			return &max
		}
	}
	if m := decimalPattern.FindString(trimmed); m != "" {
		if n, err := strconv.ParseFloat(m, 64); err == nil {
			return &n
		}
	}
	return nil
}

// Result-parameter keys that may carry a balance, in lookup order.
var balanceResultKeys = []string{
	"DebitAccountBalance",
	"AccountBalance",
	"CreditAccountBalance",
	"WorkingAccountBalance",
	"UtilityAccountBalance",
}

// ExtractSettlementBalance scans a Daraja result-parameter list for the
// first balance-bearing key and parses it.
func ExtractSettlementBalance(params []types.ResultParameter) *float64 {
	byKey := map[string]string{}
	for _, p := range params {
		if s, ok := p.Value.(string); ok {
			byKey[p.Key] = s
		}
	}
	for _, key := range balanceResultKeys {
		if raw, ok := byKey[key]; ok {
			if n := ParseBalance(raw); n != nil {
				return n
			}
		}
	}
	return nil
}
