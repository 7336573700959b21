// Package tally computes weighted multi-choice vote totals and the bribe distribution for a
// tracked choice.
//
// The pipeline is a sequence of pure folds: Aggregate, AggregateChains, CheckThreshold,
// PoolSize, Allocate and Redistribute. Pipeline wires them together and records how far a
// run got. All arithmetic uses decimal.Decimal; divisions round at Precision fractional
// digits and nothing is rounded for display here.
package tally

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits kept by every division in the pipeline.
const Precision int32 = 36

var (
	hundred     = decimal.NewFromInt(100)
	tenThousand = decimal.NewFromInt(10_000)
)

// Vote is a single weighted multi-choice vote. ChoiceWeights holds relative weights keyed by
// 1-based choice id; they are normalized by their sum.
type Vote struct {
	ID            string
	Voter         string
	VotingPower   decimal.Decimal
	ChoiceWeights map[int]decimal.Decimal
}

// choiceIDs returns the vote's choice ids in ascending order.
func (v Vote) choiceIDs() []int {
	ids := make([]int, 0, len(v.ChoiceWeights))
	for id := range v.ChoiceWeights {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// totalWeight validates the vote and returns the sum of its choice weights.
func (v Vote) totalWeight() (decimal.Decimal, error) {
	if v.VotingPower.IsNegative() {
		return decimal.Zero, &VoteError{VoteID: v.ID, Voter: v.Voter, Err: ErrInvalidVotingPower}
	}
	total := decimal.Zero
	for _, id := range v.choiceIDs() {
		w := v.ChoiceWeights[id]
		if w.IsNegative() {
			return decimal.Zero, &VoteError{VoteID: v.ID, Voter: v.Voter, ChoiceID: id, Err: ErrInvalidWeight}
		}
		total = total.Add(w)
	}
	if total.IsZero() {
		return decimal.Zero, &VoteError{VoteID: v.ID, Voter: v.Voter, Err: ErrZeroWeightVote}
	}
	return total, nil
}

// share is the part of the vote's power attributed to choiceID.
func (v Vote) share(choiceID int, totalWeight decimal.Decimal) decimal.Decimal {
	return div(v.VotingPower.Mul(v.ChoiceWeights[choiceID]), totalWeight)
}

// Choice is a proposal option. Labels look like "WBTC (Arbitrum)".
type Choice struct {
	ID    int
	Label string
}

// Choices maps choice id to choice.
type Choices map[int]Choice

// NewChoices builds Choices from labels in proposal order, numbering them from 1.
func NewChoices(labels []string) Choices {
	choices := make(Choices, len(labels))
	for i, label := range labels {
		choices[i+1] = Choice{ID: i + 1, Label: label}
	}
	return choices
}

// Lookup finds the choice with the given label. If several choices share the label the
// lowest id wins.
func (c Choices) Lookup(label string) (Choice, bool) {
	var (
		found Choice
		ok    bool
	)
	for id, choice := range c {
		if choice.Label != label {
			continue
		}
		if !ok || id < found.ID {
			found, ok = choice, true
		}
	}
	return found, ok
}

// VoteTotal is the accumulated voting power of one choice.
type VoteTotal struct {
	ChoiceID   int
	Label      string
	Amount     decimal.Decimal
	Percentage decimal.Decimal
}

// Tally is the output of Aggregate. Totals only contains choices that received weight and is
// ordered by amount descending, then choice id ascending.
type Tally struct {
	Totals    []VoteTotal
	TotalVote decimal.Decimal
}

// Total returns the total for a choice id.
func (t *Tally) Total(choiceID int) (VoteTotal, bool) {
	for _, vt := range t.Totals {
		if vt.ChoiceID == choiceID {
			return vt, true
		}
	}
	return VoteTotal{}, false
}

// ChainTotal is the summed percentage of all choices sharing a category tag.
type ChainTotal struct {
	Chain      string
	Percentage decimal.Decimal
}

// BribeRecord is the payout of one voter that backed the tracked choice.
type BribeRecord struct {
	Voter string
	Whale bool

	VotingPower             decimal.Decimal
	ChoicePercentage        decimal.Decimal // share of the tracked choice's vote, 0-100
	RawBribe                decimal.Decimal
	WhaleAdjustment         decimal.Decimal
	FinalBribe              decimal.Decimal
	EffectiveRatePerPercent decimal.Decimal
}

// Allocation maps voter address to its bribe record.
type Allocation map[string]BribeRecord

// Sorted returns the records ordered by raw bribe descending, then voter ascending.
func (a Allocation) Sorted() []BribeRecord {
	records := make([]BribeRecord, 0, len(a))
	for _, r := range a {
		records = append(records, r)
	}
	slices.SortFunc(records, func(x, y BribeRecord) int {
		if c := y.RawBribe.Cmp(x.RawBribe); c != 0 {
			return c
		}
		return strings.Compare(x.Voter, y.Voter)
	})
	return records
}

// Distribution is the output of Redistribute.
type Distribution struct {
	Records     Allocation
	ClawedBack  decimal.Decimal
	TotalBribes decimal.Decimal
}

func div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, Precision)
}

// percentOf returns part/whole*100, or zero when whole is zero.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return div(part.Mul(hundred), whole)
}
