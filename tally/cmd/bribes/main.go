package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/malbeclabs/bribes/tally/pkg/metrics"
	"github.com/malbeclabs/bribes/tally/pkg/report"
	"github.com/malbeclabs/bribes/tally/pkg/runner"
	"github.com/malbeclabs/bribes/tally/pkg/snapshot"
	"github.com/malbeclabs/bribes/tally/pkg/tally"
	"github.com/malbeclabs/bribes/utils/pkg/logger"
	flag "github.com/spf13/pflag"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	exitError        = 1
	exitNoBribes     = 2
	metricsJobName   = "bribes"
	sentryFlushAfter = 2 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, tally.ErrThresholdNotMet) {
			os.Exit(exitNoBribes)
		}
		os.Exit(exitError)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseOptions(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "bribes %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logger.New(stderr, opts.verbose, opts.noColor)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	if opts.sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              opts.sentryDSN,
			Release:          version,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(sentryFlushAfter)
	}

	runErr := execute(ctx, log, opts, stdout)
	if runErr != nil && !errors.Is(runErr, tally.ErrThresholdNotMet) && opts.sentryDSN != "" {
		sentry.CaptureException(runErr)
	}

	if opts.pushgatewayURL != "" {
		if err := metrics.Push(ctx, opts.pushgatewayURL, metricsJobName, opts.proposalID); err != nil {
			log.Warn("bribes: failed to push metrics", "error", err)
		}
	}
	return runErr
}

func execute(ctx context.Context, log *slog.Logger, opts *options, stdout io.Writer) error {
	source, err := newSource(log, opts)
	if err != nil {
		return err
	}

	sinks := []report.Sink{&report.WriterSink{W: stdout, Format: opts.format, NoColor: opts.noColor}}
	if opts.slackWebhookURL != "" {
		notifier, err := report.NewSlackNotifier(report.SlackConfig{
			Logger:     log,
			WebhookURL: opts.slackWebhookURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create slack notifier: %w", err)
		}
		sinks = append(sinks, notifier)
	}

	r, err := runner.New(runner.Config{
		Logger:    log,
		Source:    source,
		Policy:    opts.policy,
		Sinks:     sinks,
		Unit:      opts.unit,
		SaveInput: opts.saveInput,
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	_, err = r.Run(ctx)
	return err
}

func newSource(log *slog.Logger, opts *options) (runner.Source, error) {
	if opts.input != "" {
		src, err := snapshot.NewFileSource(opts.input)
		if err != nil {
			return nil, err
		}
		log.Debug("bribes: reading votes from file", "path", opts.input)
		return src, nil
	}

	client, err := snapshot.NewClient(snapshot.Config{
		Logger:            log,
		Endpoint:          opts.endpoint,
		ProposalID:        opts.proposalID,
		APIKey:            opts.apiKey,
		PageSize:          opts.pageSize,
		RequestsPerSecond: opts.requestsPerSecond,
		Timeout:           opts.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot client: %w", err)
	}
	return client, nil
}
