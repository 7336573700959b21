package tally

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseCategory returns the category tag of a choice label: the text between the first "("
// and its matching ")". "WBTC (Arbitrum)" has tag "Arbitrum".
func ParseCategory(label string) (string, error) {
	open := strings.IndexByte(label, '(')
	if open < 0 {
		return "", &LabelError{Label: label}
	}
	depth := 0
	for i := open; i < len(label); i++ {
		switch label[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth > 0 {
				continue
			}
			tag := label[open+1 : i]
			if strings.TrimSpace(tag) == "" {
				return "", &LabelError{Label: label}
			}
			return tag, nil
		}
	}
	return "", &LabelError{Label: label}
}

// AggregateChains sums choice percentages per category tag, ordered by percentage descending
// and then tag ascending.
func AggregateChains(t *Tally) ([]ChainTotal, error) {
	sums := make(map[string]decimal.Decimal)
	for _, vt := range t.Totals {
		chain, err := ParseCategory(vt.Label)
		if err != nil {
			return nil, &LabelError{ChoiceID: vt.ChoiceID, Label: vt.Label}
		}
		sums[chain] = sums[chain].Add(vt.Percentage)
	}

	chains := make([]ChainTotal, 0, len(sums))
	for chain, pct := range sums {
		chains = append(chains, ChainTotal{Chain: chain, Percentage: pct})
	}
	slices.SortFunc(chains, func(a, b ChainTotal) int {
		if c := b.Percentage.Cmp(a.Percentage); c != 0 {
			return c
		}
		return strings.Compare(a.Chain, b.Chain)
	})
	return chains, nil
}

// CheckThreshold gates the run on the tracked label's category. It returns the category total
// when it is at least minimum, and a *ThresholdError otherwise. A category nobody voted for has a
// total of zero.
func CheckThreshold(chains []ChainTotal, trackedLabel string, minimum decimal.Decimal) (ChainTotal, error) {
	chain, err := ParseCategory(trackedLabel)
	if err != nil {
		return ChainTotal{}, err
	}
	tracked := ChainTotal{Chain: chain}
	for _, ct := range chains {
		if ct.Chain == chain {
			tracked = ct
			break
		}
	}
	if tracked.Percentage.LessThan(minimum) {
		return tracked, &ThresholdError{Chain: chain, Achieved: tracked.Percentage, Threshold: minimum}
	}
	return tracked, nil
}
