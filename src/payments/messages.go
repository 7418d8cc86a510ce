package payments

import "strings"

// messageRule maps provider error text onto one friendly message. A rule
// fires when any of its keyword groups is fully present in the input.
// Rules are checked in order, multi-keyword rules sit above the generic
// single-keyword ones so "invalid amount" never falls into a bare "invalid"
// bucket and "ds timeout" is classified before plain "timeout".
type messageRule struct {
	groups  [][]string
	message string
}

const genericErrorMessage = "An error occurred. Please try again."

var messageRules = []messageRule{
	{
		groups:  [][]string{{"insufficient balance"}, {"insufficient funds"}},
		message: "You have insufficient funds on M-Pesa. Top up and try again.",
	},
	{
		groups:  [][]string{{"ds timeout"}, {"user unreachable"}},
		message: "We could not reach your phone. Make sure it is switched on and unlocked, then try again.",
	},
	{
		groups:  [][]string{{"invalid", "initiator"}, {"invalid", "security credential"}},
		message: "Payment failed: the M-Pesa initiator PIN is wrong. Contact support.",
	},
	{
		groups:  [][]string{{"unable to lock subscriber"}, {"transaction in process"}},
		message: "You have another M-Pesa transaction in progress. Wait a moment and try again.",
	},
	{
		groups:  [][]string{{"invalid msisdn"}, {"invalid phone"}},
		message: "The phone number entered is invalid. Check it and try again.",
	},
	{
		groups:  [][]string{{"invalid amount"}},
		message: "The amount entered is invalid.",
	},
	{
		groups:  [][]string{{"access token"}},
		message: "Payment could not be authorized with the provider. Contact support.",
	},
	{
		groups:  [][]string{{"shortcode"}},
		message: "The configured shortcode is invalid. Contact support.",
	},
	{
		groups:  [][]string{{"passkey"}},
		message: "The configured passkey is invalid. Contact support.",
	},
	{
		groups:  [][]string{{"callbackurl"}},
		message: "The configured callback URL is invalid. Contact support.",
	},
	{
		groups:  [][]string{{"duplicate", "request"}},
		message: "A similar payment is already being processed. Wait for it to finish.",
	},
	{
		groups:  [][]string{{"system busy"}, {"system error"}},
		message: "The payment provider is busy. Try again in a few minutes.",
	},
	{
		groups:  [][]string{{"timeout"}},
		message: "The payment prompt timed out before you entered your PIN. Try again.",
	},
}

// ToUserMessage translates a raw provider error into something an end user
// can act on. Unknown text is returned verbatim, empty input gets the
// generic fallback.
func ToUserMessage(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return genericErrorMessage
	}
	lower := strings.ToLower(raw)
	for _, rule := range messageRules {
		for _, group := range rule.groups {
			if containsAll(lower, group) {
				return rule.message
			}
		}
	}
	return raw
}

func containsAll(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(haystack, kw) {
			return false
		}
	}
	return true
}
