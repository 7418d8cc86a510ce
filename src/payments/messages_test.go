package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUserMessage(t *testing.T) {
	t.Run("maps insufficient balance", func(t *testing.T) {
		msg := ToUserMessage("insufficient balance on account")
		assert.Equal(t, "You have insufficient funds on M-Pesa. Top up and try again.", msg)

		msg = ToUserMessage("Insufficient Funds")
		assert.Equal(t, "You have insufficient funds on M-Pesa. Top up and try again.", msg)
	})

	t.Run("returns fallback on empty input", func(t *testing.T) {
		assert.Equal(t, genericErrorMessage, ToUserMessage(""))
		assert.Equal(t, genericErrorMessage, ToUserMessage("   "))
	})

	t.Run("returns unmapped text verbatim", func(t *testing.T) {
		assert.Equal(t, "some unmapped text", ToUserMessage("some unmapped text"))
	})

	t.Run("specific rules win over generic ones", func(t *testing.T) {
		// "invalid amount" must not fall into the msisdn or timeout buckets.
		assert.Equal(t, "The amount entered is invalid.", ToUserMessage("Invalid Amount"))
		// "ds timeout" means an unreachable phone, not a prompt timeout.
		assert.Equal(t,
			"We could not reach your phone. Make sure it is switched on and unlocked, then try again.",
			ToUserMessage("DS timeout user cannot be reached"))
		// bare "timeout" is the generic prompt timeout
		assert.Equal(t,
			"The payment prompt timed out before you entered your PIN. Try again.",
			ToUserMessage("Request timeout"))
	})

	t.Run("maps initiator and security credential to wrong PIN", func(t *testing.T) {
		expected := "Payment failed: the M-Pesa initiator PIN is wrong. Contact support."
		assert.Equal(t, expected, ToUserMessage("The initiator information is invalid"))
		assert.Equal(t, expected, ToUserMessage("The Security Credential supplied is invalid"))
	})

	t.Run("maps concurrency and provider errors", func(t *testing.T) {
		assert.Equal(t,
			"You have another M-Pesa transaction in progress. Wait a moment and try again.",
			ToUserMessage("Unable to lock subscriber, a transaction is already in process for the current subscriber"))
		assert.Equal(t,
			"The payment provider is busy. Try again in a few minutes.",
			ToUserMessage("System busy. Please try again"))
		assert.Equal(t,
			"A similar payment is already being processed. Wait for it to finish.",
			ToUserMessage("Duplicate request detected"))
	})

	t.Run("maps configuration errors", func(t *testing.T) {
		assert.Equal(t, "The configured shortcode is invalid. Contact support.", ToUserMessage("Bad Request - Invalid Shortcode"))
		assert.Equal(t, "The configured passkey is invalid. Contact support.", ToUserMessage("Bad Request - Invalid Passkey"))
		assert.Equal(t, "The configured callback URL is invalid. Contact support.", ToUserMessage("Bad Request - Invalid CallBackURL"))
		assert.Equal(t, "Payment could not be authorized with the provider. Contact support.", ToUserMessage("Invalid Access Token"))
	})
}
