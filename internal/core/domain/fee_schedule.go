package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RateScale is the number of fraction digits a fee rate may carry; the
// fee_schedules.rate column stores exactly this many.
const RateScale = 6

var (
	// MaxFeeRate is the highest percentage rate an administrator may set (10%).
	MaxFeeRate = decimal.RequireFromString("0.10")

	ErrFeeRateOutOfRange  = errors.New("rate must be between 0 and 0.10")
	ErrFeeMinimumNegative = errors.New("minimum fee must not be negative")
	ErrFeeBoundsOrder     = errors.New("maximum fee must be greater than minimum fee")
)

// FeeSchedule is the single active fee configuration.
type FeeSchedule struct {
	Rate       decimal.Decimal `json:"rate"`
	MinimumFee decimal.Decimal `json:"minimum_fee"`
	MaximumFee decimal.Decimal `json:"maximum_fee"`
	UpdatedAt  time.Time       `json:"updated_at"`
	UpdatedBy  string          `json:"updated_by,omitempty"`
}

// DefaultFeeSchedule is 2% clamped to [0.50, 100.00].
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Rate:       decimal.RequireFromString("0.02"),
		MinimumFee: decimal.RequireFromString("0.50"),
		MaximumFee: decimal.RequireFromString("100.00"),
	}
}

// Validate checks 0 <= rate <= 0.10, min >= 0 and max > min.
func (s FeeSchedule) Validate() error {
	if s.Rate.IsNegative() || s.Rate.GreaterThan(MaxFeeRate) {
		return ErrFeeRateOutOfRange
	}
	if s.MinimumFee.IsNegative() {
		return ErrFeeMinimumNegative
	}
	if !s.MaximumFee.GreaterThan(s.MinimumFee) {
		return ErrFeeBoundsOrder
	}
	return nil
}

// FeeMode decides whether the fee is carved out of or added on top of the amount.
type FeeMode string

const (
	// FeeModeIncluded: payer pays amount, merchant receives amount-fee.
	FeeModeIncluded FeeMode = "included"
	// FeeModeAdded: payer pays amount+fee, merchant receives amount. Legacy records only.
	FeeModeAdded FeeMode = "added"
)

// Valid reports whether m is a known mode.
func (m FeeMode) Valid() bool {
	return m == FeeModeIncluded || m == FeeModeAdded
}

// Split is the three-way money movement of one settlement.
type Split struct {
	PayerDebit         decimal.Decimal `json:"payer_debit"`
	MerchantCredit     decimal.Decimal `json:"merchant_credit"`
	FeeCollectorCredit decimal.Decimal `json:"fee_collector_credit"`
}

// SplitFor computes the movement for amount and fee under mode.
// In both modes PayerDebit == MerchantCredit + FeeCollectorCredit.
func (m FeeMode) SplitFor(amount, fee decimal.Decimal) Split {
	if m == FeeModeAdded {
		return Split{
			PayerDebit:         amount.Add(fee),
			MerchantCredit:     amount,
			FeeCollectorCredit: fee,
		}
	}
	return Split{
		PayerDebit:         amount,
		MerchantCredit:     amount.Sub(fee),
		FeeCollectorCredit: fee,
	}
}
