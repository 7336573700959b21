// Package report turns a pipeline result into something people read: a terminal summary, a
// JSON document or a Slack message.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/malbeclabs/bribes/tally/pkg/snapshot"
	"github.com/malbeclabs/bribes/tally/pkg/tally"
	"github.com/shopspring/decimal"
)

const DefaultUnit = "QI"

// Sink receives the report of a run.
type Sink interface {
	Emit(ctx context.Context, r *Report) error
}

type Meta struct {
	RunID       string
	GeneratedAt time.Time
	Proposal    *snapshot.Proposal
	Policy      tally.Policy
	// Unit names the bribe token in rendered amounts.
	Unit string
}

type ProposalInfo struct {
	ID          string          `json:"id"`
	Title       string          `json:"title,omitempty"`
	Space       string          `json:"space,omitempty"`
	State       string          `json:"state,omitempty"`
	Type        string          `json:"type,omitempty"`
	ScoresTotal decimal.Decimal `json:"scores_total"`
}

type PolicyInfo struct {
	TrackedChoice      string          `json:"tracked_choice"`
	MinThreshold       decimal.Decimal `json:"min_threshold"`
	RatePerPercent     decimal.Decimal `json:"rate_per_percent"`
	WhaleThreshold     decimal.Decimal `json:"whale_threshold"`
	WhaleExempt        []string        `json:"whale_exempt"`
	RedistributionRate decimal.Decimal `json:"redistribution_rate"`
}

type ChoiceRow struct {
	ChoiceID   int             `json:"choice_id"`
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

type ChainRow struct {
	Chain      string          `json:"chain"`
	Percentage decimal.Decimal `json:"percentage"`
}

type TrackedRow struct {
	ChoiceID        int             `json:"choice_id"`
	Label           string          `json:"label"`
	Amount          decimal.Decimal `json:"amount"`
	Percentage      decimal.Decimal `json:"percentage"`
	Chain           string          `json:"chain"`
	ChainPercentage decimal.Decimal `json:"chain_percentage"`
}

type VoterRow struct {
	Voter                   string          `json:"voter"`
	Whale                   bool            `json:"whale"`
	VotingPower             decimal.Decimal `json:"voting_power"`
	ChoicePercentage        decimal.Decimal `json:"choice_percentage"`
	RawBribe                decimal.Decimal `json:"raw_bribe"`
	WhaleAdjustment         decimal.Decimal `json:"whale_adjustment"`
	FinalBribe              decimal.Decimal `json:"final_bribe"`
	EffectiveRatePerPercent decimal.Decimal `json:"effective_rate_per_percent"`
}

// Bribes is only present when the tracked category crossed the threshold.
type Bribes struct {
	Pool        decimal.Decimal `json:"pool"`
	ClawedBack  decimal.Decimal `json:"clawed_back"`
	TotalBribes decimal.Decimal `json:"total_bribes"`
	Voters      []VoterRow      `json:"voters"`
}

type Report struct {
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Unit        string       `json:"unit"`
	Proposal    ProposalInfo `json:"proposal"`
	Policy      PolicyInfo   `json:"policy"`

	Stage  string `json:"stage"`
	Passed bool   `json:"passed"`
	// Reason explains why no bribes are paid.
	Reason string `json:"reason,omitempty"`

	TotalVote decimal.Decimal `json:"total_vote"`
	Totals    []ChoiceRow     `json:"vote_totals"`
	Chains    []ChainRow      `json:"chain_totals"`
	Tracked   *TrackedRow     `json:"tracked,omitempty"`
	Bribes    *Bribes         `json:"bribes,omitempty"`
}

// New builds the report of a run. runErr is the error Pipeline.Run returned with res; only a
// threshold failure is reported as a reason, other errors abort the run before a report is
// built.
func New(res *tally.Result, runErr error, meta Meta) *Report {
	r := &Report{
		RunID:       meta.RunID,
		GeneratedAt: meta.GeneratedAt.UTC(),
		Unit:        meta.Unit,
		Policy: PolicyInfo{
			TrackedChoice:      meta.Policy.TrackedChoice,
			MinThreshold:       meta.Policy.MinThreshold,
			RatePerPercent:     meta.Policy.RatePerPercent,
			WhaleThreshold:     meta.Policy.WhaleThreshold,
			WhaleExempt:        meta.Policy.WhaleExempt,
			RedistributionRate: meta.Policy.RedistributionRate,
		},
		Stage:  res.Stage.String(),
		Passed: res.Passed(),
		Totals: []ChoiceRow{},
		Chains: []ChainRow{},
	}
	if r.Unit == "" {
		r.Unit = DefaultUnit
	}
	if p := meta.Proposal; p != nil {
		r.Proposal = ProposalInfo{
			ID:          p.ID,
			Title:       p.Title,
			Space:       p.Space.ID,
			State:       p.State,
			Type:        p.Type,
			ScoresTotal: p.ScoresTotal,
		}
	}
	var thresholdErr *tally.ThresholdError
	if errors.As(runErr, &thresholdErr) {
		r.Reason = thresholdErr.Error()
	}

	if res.Tally != nil {
		r.TotalVote = res.Tally.TotalVote
		for _, vt := range res.Tally.Totals {
			r.Totals = append(r.Totals, ChoiceRow(vt))
		}
	}
	for _, ct := range res.Chains {
		r.Chains = append(r.Chains, ChainRow(ct))
	}
	if res.Tracked.Label != "" {
		r.Tracked = &TrackedRow{
			ChoiceID:        res.Tracked.ChoiceID,
			Label:           res.Tracked.Label,
			Amount:          res.Tracked.Amount,
			Percentage:      res.Tracked.Percentage,
			Chain:           res.TrackedChain.Chain,
			ChainPercentage: res.TrackedChain.Percentage,
		}
	}

	if d := res.Distribution; d != nil {
		b := &Bribes{
			Pool:        res.Pool,
			ClawedBack:  d.ClawedBack,
			TotalBribes: d.TotalBribes,
			Voters:      make([]VoterRow, 0, len(d.Records)),
		}
		for _, rec := range d.Records.Sorted() {
			b.Voters = append(b.Voters, VoterRow{
				Voter:                   rec.Voter,
				Whale:                   rec.Whale,
				VotingPower:             rec.VotingPower,
				ChoicePercentage:        rec.ChoicePercentage,
				RawBribe:                rec.RawBribe,
				WhaleAdjustment:         rec.WhaleAdjustment,
				FinalBribe:              rec.FinalBribe,
				EffectiveRatePerPercent: rec.EffectiveRatePerPercent,
			})
		}
		r.Bribes = b
	}
	return r
}
