package tally

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	DefaultTrackedChoice = "WBTC (Arbitrum)"
	DefaultExemptAddress = "0x0644141dd9c2c34802d28d334217bd2034206bf7"
)

var (
	DefaultMinThreshold       = decimal.RequireFromString("8.333")
	DefaultRatePerPercent     = decimal.NewFromInt(1000)
	DefaultWhaleThreshold     = decimal.NewFromInt(250_000)
	DefaultRedistributionRate = decimal.NewFromInt(20)
)

// Policy holds the bribe parameters of a run.
type Policy struct {
	// TrackedChoice is the label of the choice bribes are paid for.
	TrackedChoice string
	// MinThreshold is the minimum percentage of the vote the tracked choice's category must
	// reach, inclusive.
	MinThreshold decimal.Decimal
	// RatePerPercent is the pool size per percentage point won by the tracked choice.
	RatePerPercent     decimal.Decimal
	WhaleThreshold     decimal.Decimal
	WhaleExempt        []string
	RedistributionRate decimal.Decimal
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		TrackedChoice:      DefaultTrackedChoice,
		MinThreshold:       DefaultMinThreshold,
		RatePerPercent:     DefaultRatePerPercent,
		WhaleThreshold:     DefaultWhaleThreshold,
		WhaleExempt:        []string{DefaultExemptAddress},
		RedistributionRate: DefaultRedistributionRate,
	}
}

func (p Policy) Validate() error {
	if p.TrackedChoice == "" {
		return errors.New("tracked choice is required")
	}
	if _, err := ParseCategory(p.TrackedChoice); err != nil {
		return fmt.Errorf("invalid tracked choice: %w", err)
	}
	if p.MinThreshold.IsNegative() || p.MinThreshold.GreaterThan(hundred) {
		return errors.New("min threshold must be between 0 and 100")
	}
	if p.RatePerPercent.IsNegative() {
		return errors.New("rate per percent must not be negative")
	}
	if p.WhaleThreshold.IsNegative() {
		return errors.New("whale threshold must not be negative")
	}
	if p.RedistributionRate.IsNegative() || p.RedistributionRate.GreaterThan(hundred) {
		return errors.New("redistribution rate must be between 0 and 100")
	}
	return nil
}

// Whales returns the clawback part of the policy.
func (p Policy) Whales() WhalePolicy {
	return WhalePolicy{
		Threshold:          p.WhaleThreshold,
		Exempt:             p.WhaleExempt,
		RedistributionRate: p.RedistributionRate,
	}
}
