package service

import (
	"fmt"

	"wallet-ledger/config"
	"wallet-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// FeeQuote is the outcome of a fee computation, all in minor units.
type FeeQuote struct {
	Amount       int64 `json:"amount"`
	Fee          int64 `json:"fee"`
	Net          int64 `json:"net_amount"`    // payouts: what reaches the bank account
	TotalCharged int64 `json:"total_charged"` // top-ups: what the business pays
}

type feePolicy struct {
	rate      decimal.Decimal
	minFee    int64
	minAmount int64
	maxAmount int64
}

// fee returns max(round(amount*rate), minFee), rounding half away from zero.
func (p feePolicy) fee(amount int64) int64 {
	fee := decimal.NewFromInt(amount).Mul(p.rate).Round(0).IntPart()
	if fee < p.minFee {
		return p.minFee
	}
	return fee
}

// FeeCalculator is the pure, stateless fee policy for top-ups and payouts.
type FeeCalculator struct {
	topup  feePolicy
	payout feePolicy
}

// NewFeeCalculator builds the calculator from configured rates and bounds.
func NewFeeCalculator(cfg config.FeeConfig) (*FeeCalculator, error) {
	topupRate, err := decimal.NewFromString(cfg.TopupRate)
	if err != nil {
		return nil, fmt.Errorf("parsing topup rate %q: %w", cfg.TopupRate, err)
	}
	payoutRate, err := decimal.NewFromString(cfg.PayoutRate)
	if err != nil {
		return nil, fmt.Errorf("parsing payout rate %q: %w", cfg.PayoutRate, err)
	}
	if topupRate.IsNegative() || payoutRate.IsNegative() {
		return nil, fmt.Errorf("fee rates must not be negative")
	}

	return &FeeCalculator{
		topup: feePolicy{
			rate:      topupRate,
			minFee:    cfg.TopupMinFee,
			minAmount: cfg.TopupMinAmount,
			maxAmount: cfg.MaxAmount,
		},
		payout: feePolicy{
			rate:      payoutRate,
			minFee:    cfg.PayoutMinFee,
			minAmount: cfg.PayoutMinAmount,
			maxAmount: cfg.MaxAmount,
		},
	}, nil
}

// DefaultFeeConfig is the marketplace's published fee policy:
// top-ups 0.7% (min Rp 500), payouts 1% (min Rp 5,000).
func DefaultFeeConfig() config.FeeConfig {
	return config.FeeConfig{
		TopupRate:       "0.007",
		TopupMinFee:     500,
		TopupMinAmount:  500000,
		PayoutRate:      "0.01",
		PayoutMinFee:    5000,
		PayoutMinAmount: 100000,
		MaxAmount:       100000000,
	}
}

// TopupFee quotes a top-up. The fee is charged on top of amount.
func (c *FeeCalculator) TopupFee(amount int64) (FeeQuote, error) {
	if err := c.checkBounds(amount, c.topup, apperror.ErrTopupBelowMinimum); err != nil {
		return FeeQuote{}, err
	}
	fee := c.topup.fee(amount)
	return FeeQuote{Amount: amount, Fee: fee, Net: amount, TotalCharged: amount + fee}, nil
}

// PayoutFee quotes a payout. The fee is deducted from amount.
func (c *FeeCalculator) PayoutFee(amount int64) (FeeQuote, error) {
	if err := c.checkBounds(amount, c.payout, apperror.ErrPayoutBelowMinimum); err != nil {
		return FeeQuote{}, err
	}
	fee := c.payout.fee(amount)
	return FeeQuote{Amount: amount, Fee: fee, Net: amount - fee, TotalCharged: amount}, nil
}

func (c *FeeCalculator) checkBounds(amount int64, p feePolicy, belowMin func(int64) *apperror.AppError) error {
	switch {
	case amount <= 0:
		return apperror.ErrInvalidAmount()
	case amount < p.minAmount:
		return belowMin(p.minAmount)
	case p.maxAmount > 0 && amount > p.maxAmount:
		return apperror.ErrAmountAboveMaximum(p.maxAmount)
	}
	return nil
}
