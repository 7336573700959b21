package tally

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBribes_Tally_PoolSize(t *testing.T) {
	t.Parallel()

	require.True(t, PoolSize(d("12.5"), d("1000")).Equal(d("12500")))
	require.True(t, PoolSize(decimal.Zero, d("1000")).IsZero())
}

func TestBribes_Tally_Allocate_ProportionalToContribution(t *testing.T) {
	t.Parallel()

	votes := []Vote{
		vote("v1", "0x1", "100", weights(2, "1")),
		vote("v2", "0x2", "300", weights(1, "1", 2, "2")),
		vote("v3", "0x3", "500", weights(1, "1")),
	}
	// Choice 2 receives 100 + 200.
	alloc, err := Allocate(votes, 2, d("300"), d("900"))
	require.NoError(t, err)
	require.Len(t, alloc, 2)

	r1 := alloc["0x1"]
	requireDecimal(t, "33.333333", r1.ChoicePercentage, 6)
	requireDecimal(t, "300.000000", r1.RawBribe, 6)
	require.True(t, r1.VotingPower.Equal(d("100")))

	r2 := alloc["0x2"]
	requireDecimal(t, "66.666667", r2.ChoicePercentage, 6)
	requireDecimal(t, "600.000000", r2.RawBribe, 6)

	_, ok := alloc["0x3"]
	require.False(t, ok, "voter without weight on the tracked choice gets no record")
}

func TestBribes_Tally_Allocate_SkipsZeroVotingPower(t *testing.T) {
	t.Parallel()

	votes := []Vote{
		vote("v1", "0x1", "0", weights(2, "1")),
		vote("v2", "0x2", "50", weights(2, "1")),
	}
	alloc, err := Allocate(votes, 2, d("50"), d("100"))
	require.NoError(t, err)
	require.Len(t, alloc, 1)
	require.True(t, alloc["0x2"].RawBribe.Equal(d("100")))
}

func TestBribes_Tally_Allocate_LastVoteWins(t *testing.T) {
	t.Parallel()

	votes := []Vote{
		vote("v1", "0x1", "40", weights(2, "1")),
		vote("v2", "0x2", "40", weights(2, "1")),
		vote("v3", "0x1", "20", weights(2, "1")),
	}
	alloc, err := Allocate(votes, 2, d("100"), d("1000"))
	require.NoError(t, err)
	require.Len(t, alloc, 2)

	r := alloc["0x1"]
	require.True(t, r.VotingPower.Equal(d("20")))
	require.True(t, r.ChoicePercentage.Equal(d("20")), "got %s", r.ChoicePercentage)
	require.True(t, r.RawBribe.Equal(d("200")), "got %s", r.RawBribe)
}

func TestBribes_Tally_Allocate_InvalidVote(t *testing.T) {
	t.Parallel()

	votes := []Vote{vote("v1", "0x1", "10", weights(2, "0"))}
	_, err := Allocate(votes, 2, d("10"), d("100"))
	require.ErrorIs(t, err, ErrZeroWeightVote)
}

func TestBribes_Tally_Allocation_Sorted(t *testing.T) {
	t.Parallel()

	alloc := Allocation{
		"0xc": {Voter: "0xc", RawBribe: d("10")},
		"0xa": {Voter: "0xa", RawBribe: d("30")},
		"0xb": {Voter: "0xb", RawBribe: d("10")},
	}
	var voters []string
	for _, r := range alloc.Sorted() {
		voters = append(voters, r.Voter)
	}
	require.Equal(t, []string{"0xa", "0xb", "0xc"}, voters)
}

func TestBribes_Tally_IsWhale(t *testing.T) {
	t.Parallel()

	p := WhalePolicy{
		Threshold: d("250000"),
		Exempt:    []string{" 0x0644141DD9C2C34802D28D334217BD2034206BF7 "},
	}

	require.True(t, p.IsWhale("0x1", d("250000.0001")))
	require.False(t, p.IsWhale("0x1", d("250000")), "threshold itself is not a whale")
	require.False(t, p.IsWhale("0x0644141dd9c2c34802d28d334217bd2034206bf7", d("9000000")))
}

func TestBribes_Tally_Redistribute_NoWhales(t *testing.T) {
	t.Parallel()

	alloc := Allocation{
		"0x1": {Voter: "0x1", VotingPower: d("10"), ChoicePercentage: d("40"), RawBribe: d("400")},
		"0x2": {Voter: "0x2", VotingPower: d("15"), ChoicePercentage: d("60"), RawBribe: d("600")},
	}
	dist := Redistribute(alloc, d("10"), WhalePolicy{Threshold: d("250000"), RedistributionRate: d("20")})

	require.True(t, dist.ClawedBack.IsZero())
	require.True(t, dist.TotalBribes.Equal(d("1000")))
	for voter, r := range dist.Records {
		require.False(t, r.Whale, voter)
		require.True(t, r.WhaleAdjustment.IsZero(), voter)
		require.True(t, r.FinalBribe.Equal(r.RawBribe), voter)
	}
	// 400 / (40% of 10%) = 100 per percent
	requireDecimal(t, "100.0000", dist.Records["0x1"].EffectiveRatePerPercent, 4)
}

func TestBribes_Tally_Redistribute_AllWhales(t *testing.T) {
	t.Parallel()

	alloc := Allocation{
		"0x1": {Voter: "0x1", VotingPower: d("300000"), ChoicePercentage: d("50"), RawBribe: d("500")},
		"0x2": {Voter: "0x2", VotingPower: d("300000"), ChoicePercentage: d("50"), RawBribe: d("500")},
	}
	dist := Redistribute(alloc, d("10"), WhalePolicy{Threshold: d("250000"), RedistributionRate: d("20")})

	require.True(t, dist.ClawedBack.Equal(d("1000")))
	require.True(t, dist.TotalBribes.IsZero())
	for _, r := range dist.Records {
		require.True(t, r.Whale)
		require.True(t, r.FinalBribe.IsZero())
		require.True(t, r.EffectiveRatePerPercent.IsZero())
	}
}

func TestBribes_Tally_Redistribute_AdjustmentFormula(t *testing.T) {
	t.Parallel()

	votes := []Vote{
		vote("v1", "0xwhale", "300000", weights(1, "1")),
		vote("v2", "0xa", "50000", weights(1, "1")),
		vote("v3", "0xb", "50000", weights(1, "1")),
	}
	alloc, err := Allocate(votes, 1, d("400000"), d("10000"))
	require.NoError(t, err)

	policy := WhalePolicy{Threshold: d("250000"), RedistributionRate: d("20")}
	dist := Redistribute(alloc, d("40"), policy)

	require.True(t, dist.Records["0xwhale"].Whale)
	require.True(t, dist.Records["0xwhale"].FinalBribe.IsZero())
	requireDecimal(t, "7500.000000", dist.ClawedBack, 6)

	sumRaw, sumAdj, sumFinal := decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range dist.Records {
		if r.Whale {
			continue
		}
		sumRaw = sumRaw.Add(r.RawBribe)
		sumAdj = sumAdj.Add(r.WhaleAdjustment)
		sumFinal = sumFinal.Add(r.FinalBribe)
	}
	require.True(t, sumFinal.Equal(sumRaw.Add(sumAdj)))

	// Non-whales hold 25% of the tracked vote, so they get 25% of 20% of the clawed back pool,
	// not 20% of all of it.
	requireDecimal(t, "375.000000", sumAdj, 6)
	require.False(t, sumAdj.Equal(dist.ClawedBack.Mul(d("0.2"))))
	requireDecimal(t, "2875.000000", dist.TotalBribes, 6)
	requireDecimal(t, "187.500000", dist.Records["0xa"].WhaleAdjustment, 6)
}
