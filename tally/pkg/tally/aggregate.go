package tally

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// Aggregate folds votes into per-choice totals and percentages of the overall vote.
//
// Each vote's power is split across its choices in proportion to its weights. Votes with zero
// voting power are accepted and contribute nothing. The result does not depend on the order
// of votes.
func Aggregate(votes []Vote, choices Choices) (*Tally, error) {
	amounts := make(map[int]decimal.Decimal)
	for _, v := range votes {
		totalWeight, err := v.totalWeight()
		if err != nil {
			return nil, err
		}
		for _, id := range v.choiceIDs() {
			if _, ok := choices[id]; !ok {
				return nil, &VoteError{VoteID: v.ID, Voter: v.Voter, ChoiceID: id, Err: ErrChoiceNotFound}
			}
			amounts[id] = amounts[id].Add(v.share(id, totalWeight))
		}
	}

	totalVote := decimal.Zero
	for _, amount := range amounts {
		totalVote = totalVote.Add(amount)
	}

	totals := make([]VoteTotal, 0, len(amounts))
	for id, amount := range amounts {
		totals = append(totals, VoteTotal{
			ChoiceID:   id,
			Label:      choices[id].Label,
			Amount:     amount,
			Percentage: percentOf(amount, totalVote),
		})
	}
	slices.SortFunc(totals, func(a, b VoteTotal) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.ChoiceID, b.ChoiceID)
	})

	return &Tally{Totals: totals, TotalVote: totalVote}, nil
}
