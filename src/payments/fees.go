package payments

import (
	"errors"

	"netbill/src/types"
)

type feeTier struct {
	upTo int
	fee  int
}

// Provider transfer tariffs. Each tier applies to amounts up to and
// including its bound.
var phoneFeeTiers = []feeTier{
	{upTo: 100, fee: 10},
	{upTo: 1000, fee: 20},
	{upTo: 150000, fee: 100},
}

var shortCodeFeeTiers = []feeTier{
	{upTo: 100, fee: 10},
	{upTo: 1500, fee: 30},
	{upTo: 2500, fee: 50},
	{upTo: 3500, fee: 60},
	{upTo: 10000, fee: 80},
	{upTo: 20000, fee: 100},
	{upTo: 30000, fee: 120},
	{upTo: 35000, fee: 130},
	{upTo: 40000, fee: 140},
	{upTo: 150000, fee: 150},
	{upTo: 250000, fee: 200},
	{upTo: 500000, fee: 500},
}

// Flat fee above the top till/paybill tier.
const shortCodeTopFee = 500

var ErrAmountTooSmall = errors.New("amount is too small after fees")

// WithdrawalFee computes the provider fee for an outbound transfer.
func WithdrawalFee(amount int, destination types.DestinationType) int {
	tiers := shortCodeFeeTiers
	if destination == types.DESTINATION_PHONE {
		tiers = phoneFeeTiers
	}
	for _, t := range tiers {
		if amount <= t.upTo {
			return t.fee
		}
	}
	if destination == types.DESTINATION_PHONE {
		return phoneFeeTiers[len(phoneFeeTiers)-1].fee
	}
	return shortCodeTopFee
}

// NetWithdrawal returns the payout after fees, rejecting amounts the fee
// would consume entirely.
func NetWithdrawal(amount int, destination types.DestinationType) (int, error) {
	net := amount - WithdrawalFee(amount, destination)
	if net <= 0 {
		return 0, ErrAmountTooSmall
	}
	return net, nil
}
