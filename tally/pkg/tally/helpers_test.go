package tally

import (
	"testing"

	bribestesting "github.com/malbeclabs/bribes/utils/pkg/testing"
	"github.com/shopspring/decimal"
)

var d = decimal.RequireFromString

// weights builds a choice weight map from alternating id, weight pairs.
func weights(pairs ...any) map[int]decimal.Decimal {
	w := make(map[int]decimal.Decimal, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		w[pairs[i].(int)] = d(pairs[i+1].(string))
	}
	return w
}

func vote(id, voter, vp string, w map[int]decimal.Decimal) Vote {
	return Vote{ID: id, Voter: voter, VotingPower: d(vp), ChoiceWeights: w}
}

// scenarioChoices and scenarioVotes are the WBTC (Arbitrum) example: two backers of choice 2,
// one of them a whale, and one voter on choice 1.
func scenarioChoices() Choices {
	return NewChoices([]string{"A (Ethereum)", "WBTC (Arbitrum)", "C (Optimism)"})
}

func scenarioVotes() []Vote {
	return []Vote{
		vote("v1", "0xaaa1", "100000", weights(2, "1")),
		vote("v2", "0xbbb2", "300000", weights(2, "1")),
		vote("v3", "0xccc3", "50000", weights(1, "1")),
	}
}

// tolerance is well above the rounding error of a few thousand divisions at Precision digits.
var tolerance = decimal.New(1, -30)

func requireDecimal(t *testing.T, want string, got decimal.Decimal, places int32, msgAndArgs ...any) {
	t.Helper()
	bribestesting.RequireDecimal(t, want, got, places, msgAndArgs...)
}
