package tally

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Stage is how far a pipeline run got.
type Stage int

const (
	StageStart Stage = iota
	StageAggregated
	StageChainAggregated
	StageGatePassed
	StagePooled
	StageAllocated
	StageRedistributed
	StageDone
	StageAborted
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageAggregated:
		return "aggregated"
	case StageChainAggregated:
		return "chain_aggregated"
	case StageGatePassed:
		return "gate_passed"
	case StagePooled:
		return "pooled"
	case StageAllocated:
		return "allocated"
	case StageRedistributed:
		return "redistributed"
	case StageDone:
		return "done"
	case StageAborted:
		return "aborted"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

type PipelineConfig struct {
	Logger *slog.Logger
	Policy Policy
}

func (cfg *PipelineConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}

type Pipeline struct {
	log *slog.Logger
	cfg PipelineConfig
}

func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Result holds the output of every stage a run completed. Fields of stages that did not run
// are left at their zero value.
type Result struct {
	Stage Stage

	Tally  *Tally
	Chains []ChainTotal

	Tracked      VoteTotal
	TrackedChain ChainTotal
	Pool         decimal.Decimal
	Allocation   Allocation
	Distribution *Distribution
}

// Passed reports whether the run got past the threshold gate.
func (r *Result) Passed() bool {
	return r.Stage >= StageGatePassed && r.Stage != StageAborted
}

// Run executes the pipeline over a materialized set of votes.
//
// On error the returned Result still carries everything computed before the failing stage.
// A tracked category below the threshold moves the run to StageAborted and returns an error
// wrapping *ThresholdError.
func (p *Pipeline) Run(votes []Vote, choices Choices) (*Result, error) {
	policy := p.cfg.Policy
	res := &Result{Stage: StageStart}

	t, err := Aggregate(votes, choices)
	if err != nil {
		return res, fmt.Errorf("failed to aggregate votes: %w", err)
	}
	res.Tally, res.Stage = t, StageAggregated
	p.log.Debug("tally/pipeline: aggregated votes", "votes", len(votes), "choices", len(t.Totals), "total_vote", t.TotalVote.String())

	chains, err := AggregateChains(t)
	if err != nil {
		return res, fmt.Errorf("failed to aggregate chains: %w", err)
	}
	res.Chains, res.Stage = chains, StageChainAggregated
	p.log.Debug("tally/pipeline: aggregated chains", "chains", len(chains))

	tracked, ok := choices.Lookup(policy.TrackedChoice)
	if !ok {
		return res, &TrackedChoiceError{Label: policy.TrackedChoice}
	}
	res.Tracked = VoteTotal{ChoiceID: tracked.ID, Label: tracked.Label}
	if vt, ok := t.Total(tracked.ID); ok {
		res.Tracked = vt
	}

	res.TrackedChain, err = CheckThreshold(chains, policy.TrackedChoice, policy.MinThreshold)
	if err != nil {
		var thresholdErr *ThresholdError
		if errors.As(err, &thresholdErr) {
			res.Stage = StageAborted
			p.log.Info("tally/pipeline: threshold not met",
				"chain", thresholdErr.Chain,
				"achieved", thresholdErr.Achieved.String(),
				"threshold", thresholdErr.Threshold.String())
		}
		return res, err
	}
	res.Stage = StageGatePassed

	res.Pool, res.Stage = PoolSize(res.Tracked.Percentage, policy.RatePerPercent), StagePooled
	p.log.Debug("tally/pipeline: sized pool", "tracked_percentage", res.Tracked.Percentage.String(), "pool", res.Pool.String())

	alloc, err := Allocate(votes, tracked.ID, res.Tracked.Amount, res.Pool)
	if err != nil {
		return res, fmt.Errorf("failed to allocate bribes: %w", err)
	}
	res.Allocation, res.Stage = alloc, StageAllocated
	p.log.Debug("tally/pipeline: allocated bribes", "voters", len(alloc))

	res.Distribution = Redistribute(alloc, res.Tracked.Percentage, policy.Whales())
	res.Stage = StageRedistributed
	p.log.Debug("tally/pipeline: redistributed whale bribes",
		"clawed_back", res.Distribution.ClawedBack.String(),
		"total_bribes", res.Distribution.TotalBribes.String())

	res.Stage = StageDone
	return res, nil
}
