package tally

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PoolSize is the total bribe paid for a tracked choice that won trackedPct percent of the
// vote.
func PoolSize(trackedPct, ratePerPercent decimal.Decimal) decimal.Decimal {
	return trackedPct.Mul(ratePerPercent)
}

// Allocate splits pool among the voters that put weight on trackedID, in proportion to their
// contribution to trackedAmount. Votes with zero voting power are skipped.
//
// Records are keyed by voter address. When an address has several votes, the later vote
// replaces the earlier record; contributions are not merged.
func Allocate(votes []Vote, trackedID int, trackedAmount, pool decimal.Decimal) (Allocation, error) {
	alloc := make(Allocation)
	for _, v := range votes {
		if v.VotingPower.IsZero() {
			continue
		}
		if _, ok := v.ChoiceWeights[trackedID]; !ok {
			continue
		}
		totalWeight, err := v.totalWeight()
		if err != nil {
			return nil, err
		}
		pct := percentOf(v.share(trackedID, totalWeight), trackedAmount)
		alloc[v.Voter] = BribeRecord{
			Voter:            v.Voter,
			VotingPower:      v.VotingPower,
			ChoicePercentage: pct,
			RawBribe:         div(pool.Mul(pct), hundred),
		}
	}
	return alloc, nil
}

// WhalePolicy decides which voters lose their bribe and how much of it is handed back to the
// others.
type WhalePolicy struct {
	// Threshold is the voting power above which a voter is a whale.
	Threshold decimal.Decimal
	// Exempt addresses are never whales. Compared case-insensitively.
	Exempt []string
	// RedistributionRate is the percentage (0-100) of clawed back bribes given to non-whales.
	RedistributionRate decimal.Decimal
}

// IsWhale reports whether voter's bribe is clawed back.
func (p WhalePolicy) IsWhale(voter string, votingPower decimal.Decimal) bool {
	voter = strings.TrimSpace(voter)
	for _, addr := range p.Exempt {
		if strings.EqualFold(strings.TrimSpace(addr), voter) {
			return false
		}
	}
	return votingPower.GreaterThan(p.Threshold)
}

// Redistribute claws back whale bribes and hands RedistributionRate percent of them to the
// remaining voters.
//
// It runs two passes over alloc. The first sums the raw bribes of every whale; the second
// computes each record's adjustment from that sum. A non-whale receives
// ChoicePercentage/100 * clawedBack * RedistributionRate/100. ChoicePercentage is measured
// against the whole tracked vote, whales included, so the amount handed back is generally
// less than RedistributionRate percent of the clawed back total.
func Redistribute(alloc Allocation, trackedPct decimal.Decimal, p WhalePolicy) *Distribution {
	whales := make(map[string]bool, len(alloc))
	clawedBack := decimal.Zero
	for voter, r := range alloc {
		if p.IsWhale(voter, r.VotingPower) {
			whales[voter] = true
			clawedBack = clawedBack.Add(r.RawBribe)
		}
	}

	records := make(Allocation, len(alloc))
	total := decimal.Zero
	for voter, r := range alloc {
		if whales[voter] {
			r.Whale = true
			r.WhaleAdjustment = r.RawBribe.Neg()
		} else {
			r.WhaleAdjustment = div(r.ChoicePercentage.Mul(clawedBack).Mul(p.RedistributionRate), tenThousand)
		}
		r.FinalBribe = r.RawBribe.Add(r.WhaleAdjustment)
		r.EffectiveRatePerPercent = effectiveRate(r.FinalBribe, r.ChoicePercentage, trackedPct)
		records[voter] = r
		total = total.Add(r.FinalBribe)
	}

	return &Distribution{Records: records, ClawedBack: clawedBack, TotalBribes: total}
}

// effectiveRate is the bribe paid per percent of the overall vote the voter delivered.
func effectiveRate(finalBribe, choicePct, trackedPct decimal.Decimal) decimal.Decimal {
	delivered := choicePct.Mul(trackedPct)
	if delivered.IsZero() {
		return decimal.Zero
	}
	return div(finalBribe.Mul(hundred), delivered)
}
