// Package runner executes one bribe run: load a proposal and its votes, tally them and hand
// the report to every sink.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/bribes/tally/pkg/metrics"
	"github.com/malbeclabs/bribes/tally/pkg/report"
	"github.com/malbeclabs/bribes/tally/pkg/snapshot"
	"github.com/malbeclabs/bribes/tally/pkg/tally"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// reconcileTolerance is the relative difference between our total vote and the hub's
// scores_total above which a warning is logged.
var reconcileTolerance = decimal.RequireFromString("0.0001")

// Source provides the proposal and votes of a run.
type Source interface {
	Proposal(ctx context.Context) (*snapshot.Proposal, error)
	Votes(ctx context.Context) ([]snapshot.Vote, error)
}

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Source Source
	Policy tally.Policy
	Sinks  []report.Sink

	// Unit names the bribe token in reports.
	Unit string
	// SaveInput, if set, is where the loaded proposal and votes are written before tallying.
	SaveInput string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("source is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

type Runner struct {
	log      *slog.Logger
	cfg      Config
	pipeline *tally.Pipeline
}

func New(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pipeline, err := tally.NewPipeline(tally.PipelineConfig{
		Logger: cfg.Logger,
		Policy: cfg.Policy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return &Runner{
		log:      cfg.Logger,
		cfg:      cfg,
		pipeline: pipeline,
	}, nil
}

// Run performs one run and returns its report.
//
// A tracked category below the threshold is not a failure of the run: the report is still
// built and emitted, and the returned error wraps tally.ErrThresholdNotMet.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	runID := uuid.NewString()
	log := r.log.With("run_id", runID)

	span := sentry.StartSpan(ctx, "bribes.run", sentry.WithDescription("bribe run"))
	span.SetTag("run_id", runID)
	defer span.Finish()
	ctx = span.Context()

	snap, err := r.load(ctx, log)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	span.SetData("proposal", snap.Proposal.ID)
	span.SetData("votes", len(snap.Votes))

	res, runErr := r.tally(snap)
	if runErr != nil && !errors.Is(runErr, tally.ErrThresholdNotMet) {
		span.Status = sentry.SpanStatusInternalError
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, runErr
	}
	r.reconcile(log, snap.Proposal, res)
	r.observe(res)

	rep := report.New(res, runErr, report.Meta{
		RunID:       runID,
		GeneratedAt: r.cfg.Clock.Now(),
		Proposal:    snap.Proposal,
		Policy:      r.cfg.Policy,
		Unit:        r.cfg.Unit,
	})

	var sinkErrs []error
	for _, sink := range r.cfg.Sinks {
		if err := sink.Emit(ctx, rep); err != nil {
			log.Error("runner: sink failed", "sink", fmt.Sprintf("%T", sink), "error", err)
			sinkErrs = append(sinkErrs, err)
		}
	}
	if len(sinkErrs) > 0 {
		span.Status = sentry.SpanStatusInternalError
		return rep, fmt.Errorf("failed to emit report: %w", errors.Join(sinkErrs...))
	}

	span.Status = sentry.SpanStatusOK
	log.Info("runner: run complete", "stage", res.Stage.String(), "passed", res.Passed())
	return rep, runErr
}

// load fetches the proposal and its votes concurrently.
func (r *Runner) load(ctx context.Context, log *slog.Logger) (*snapshot.Snapshot, error) {
	start := r.cfg.Clock.Now()

	var snap snapshot.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.cfg.Source.Proposal(gctx)
		if err != nil {
			return fmt.Errorf("failed to load proposal: %w", err)
		}
		snap.Proposal = p
		return nil
	})
	g.Go(func() error {
		votes, err := r.cfg.Source.Votes(gctx)
		if err != nil {
			return fmt.Errorf("failed to load votes: %w", err)
		}
		snap.Votes = votes
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	duration := r.cfg.Clock.Since(start)
	metrics.FetchDuration.Observe(duration.Seconds())
	metrics.VotesFetched.Set(float64(len(snap.Votes)))
	log.Info("runner: loaded proposal",
		"proposal", snap.Proposal.ID,
		"title", snap.Proposal.Title,
		"type", snap.Proposal.Type,
		"votes", len(snap.Votes),
		"duration", duration)

	if err := snap.Proposal.Validate(); err != nil {
		return nil, err
	}
	if r.cfg.SaveInput != "" {
		if err := snapshot.SaveFile(r.cfg.SaveInput, &snap); err != nil {
			return nil, err
		}
		log.Info("runner: saved input", "path", r.cfg.SaveInput)
	}
	return &snap, nil
}

func (r *Runner) tally(snap *snapshot.Snapshot) (*tally.Result, error) {
	votes, err := snapshot.TallyVotes(snap.Proposal, snap.Votes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode votes: %w", err)
	}
	return r.pipeline.Run(votes, snap.Proposal.TallyChoices())
}

// reconcile warns when our total vote drifts from the hub's own score total.
func (r *Runner) reconcile(log *slog.Logger, p *snapshot.Proposal, res *tally.Result) {
	if res.Tally == nil || p.ScoresTotal.IsZero() {
		return
	}
	diff := res.Tally.TotalVote.Sub(p.ScoresTotal).Abs()
	if diff.GreaterThan(p.ScoresTotal.Abs().Mul(reconcileTolerance)) {
		log.Warn("runner: total vote differs from hub scores_total",
			"total_vote", res.Tally.TotalVote.String(),
			"scores_total", p.ScoresTotal.String(),
			"diff", diff.String())
	}
}

func (r *Runner) observe(res *tally.Result) {
	metrics.TrackedChainPercentage.Set(res.TrackedChain.Percentage.InexactFloat64())
	if !res.Passed() {
		metrics.PipelineRunsTotal.WithLabelValues("threshold_not_met").Inc()
		return
	}
	metrics.PipelineRunsTotal.WithLabelValues("passed").Inc()
	metrics.PoolSize.Set(res.Pool.InexactFloat64())
	metrics.ClawedBack.Set(res.Distribution.ClawedBack.InexactFloat64())
	metrics.BribesDistributed.Set(res.Distribution.TotalBribes.InexactFloat64())
}
