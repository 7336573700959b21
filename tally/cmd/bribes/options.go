package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/malbeclabs/bribes/tally/pkg/report"
	"github.com/malbeclabs/bribes/tally/pkg/snapshot"
	"github.com/malbeclabs/bribes/tally/pkg/tally"
	"github.com/shopspring/decimal"
	flag "github.com/spf13/pflag"
)

const (
	envPrefix      = "BRIBES"
	defaultEnvFile = ".env"
)

// decimalValue is a pflag.Value holding an exact decimal.
type decimalValue struct {
	d *decimal.Decimal
}

func newDecimalValue(def decimal.Decimal, p *decimal.Decimal) *decimalValue {
	*p = def
	return &decimalValue{d: p}
}

func (v *decimalValue) String() string {
	if v.d == nil {
		return ""
	}
	return v.d.String()
}

func (v *decimalValue) Set(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid decimal %q", s)
	}
	*v.d = d
	return nil
}

func (v *decimalValue) Type() string { return "decimal" }

// envOverrides are read from BRIBES_* variables and applied to flags not set on the command
// line. Values go through the flag's own parser.
type envOverrides struct {
	GraphQLEndpoint    string `envconfig:"GRAPHQL_ENDPOINT"`
	ProposalID         string `envconfig:"PROPOSAL_ID"`
	APIKey             string `envconfig:"API_KEY"`
	PageSize           string `envconfig:"PAGE_SIZE"`
	RequestsPerSecond  string `envconfig:"REQUESTS_PER_SECOND"`
	Timeout            string `envconfig:"TIMEOUT"`
	TrackedChoice      string `envconfig:"TRACKED_CHOICE"`
	MinThreshold       string `envconfig:"MIN_THRESHOLD"`
	RatePerPercent     string `envconfig:"RATE_PER_PERCENT"`
	WhaleThreshold     string `envconfig:"WHALE_THRESHOLD"`
	WhaleExempt        string `envconfig:"WHALE_EXEMPT"`
	RedistributionRate string `envconfig:"REDISTRIBUTION_RATE"`
	Unit               string `envconfig:"UNIT"`
	Format             string `envconfig:"FORMAT"`
	SlackWebhookURL    string `envconfig:"SLACK_WEBHOOK_URL"`
	PushgatewayURL     string `envconfig:"PUSHGATEWAY_URL"`
	SentryDSN          string `envconfig:"SENTRY_DSN"`
	Verbose            string `envconfig:"VERBOSE"`
	NoColor            string `envconfig:"NO_COLOR"`
}

func (e *envOverrides) byFlag() map[string]string {
	return map[string]string{
		"graphql-endpoint":    e.GraphQLEndpoint,
		"proposal-id":         e.ProposalID,
		"api-key":             e.APIKey,
		"page-size":           e.PageSize,
		"requests-per-second": e.RequestsPerSecond,
		"timeout":             e.Timeout,
		"tracked-choice":      e.TrackedChoice,
		"min-threshold":       e.MinThreshold,
		"rate-per-percent":    e.RatePerPercent,
		"whale-threshold":     e.WhaleThreshold,
		"whale-exempt":        e.WhaleExempt,
		"redistribution-rate": e.RedistributionRate,
		"unit":                e.Unit,
		"format":              e.Format,
		"slack-webhook-url":   e.SlackWebhookURL,
		"pushgateway-url":     e.PushgatewayURL,
		"sentry-dsn":          e.SentryDSN,
		"verbose":             e.Verbose,
		"no-color":            e.NoColor,
	}
}

type options struct {
	endpoint          string
	proposalID        string
	apiKey            string
	pageSize          int
	requestsPerSecond float64
	timeout           time.Duration

	policy tally.Policy

	input     string
	saveInput string
	format    report.Format
	unit      string
	noColor   bool

	slackWebhookURL string
	pushgatewayURL  string
	sentryDSN       string

	verbose bool
	version bool
}

// parseOptions reads flags from args, then fills unset flags from the env file and BRIBES_*
// environment variables.
func parseOptions(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("bribes", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{policy: tally.Policy{}}
	var format string

	fs.StringVar(&opts.endpoint, "graphql-endpoint", snapshot.DefaultEndpoint, "Snapshot hub GraphQL endpoint (or set BRIBES_GRAPHQL_ENDPOINT)")
	fs.StringVar(&opts.proposalID, "proposal-id", "", "Snapshot proposal id (or set BRIBES_PROPOSAL_ID)")
	fs.StringVar(&opts.apiKey, "api-key", "", "Snapshot hub API key (or set BRIBES_API_KEY)")
	fs.IntVar(&opts.pageSize, "page-size", snapshot.DefaultPageSize, "Votes fetched per request, at most 1000")
	fs.Float64Var(&opts.requestsPerSecond, "requests-per-second", snapshot.DefaultRequestsPerSecond, "Maximum hub requests per second, 0 for no limit")
	fs.DurationVar(&opts.timeout, "timeout", snapshot.DefaultTimeout, "Timeout of a single hub request")

	fs.StringVar(&opts.policy.TrackedChoice, "tracked-choice", tally.DefaultTrackedChoice, "Label of the choice bribes are paid for")
	fs.Var(newDecimalValue(tally.DefaultMinThreshold, &opts.policy.MinThreshold), "min-threshold", "Minimum percentage the tracked choice's chain must reach")
	fs.Var(newDecimalValue(tally.DefaultRatePerPercent, &opts.policy.RatePerPercent), "rate-per-percent", "Bribe pool per percentage point won by the tracked choice")
	fs.Var(newDecimalValue(tally.DefaultWhaleThreshold, &opts.policy.WhaleThreshold), "whale-threshold", "Voting power above which a voter is a whale")
	fs.StringSliceVar(&opts.policy.WhaleExempt, "whale-exempt", []string{tally.DefaultExemptAddress}, "Addresses never treated as whales (repeatable)")
	fs.Var(newDecimalValue(tally.DefaultRedistributionRate, &opts.policy.RedistributionRate), "redistribution-rate", "Percentage of clawed back bribes given to non-whales")

	fs.StringVar(&opts.input, "input", "", "Read the proposal and votes from a file saved with --save-input instead of the hub")
	fs.StringVar(&opts.saveInput, "save-input", "", "Write the loaded proposal and votes to this file")
	fs.StringVar(&format, "format", string(report.FormatText), "Report format: text or json")
	fs.StringVar(&opts.unit, "unit", report.DefaultUnit, "Bribe token symbol shown in reports")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	fs.StringVar(&opts.slackWebhookURL, "slack-webhook-url", "", "Post a summary to this Slack incoming webhook")
	fs.StringVar(&opts.pushgatewayURL, "pushgateway-url", "", "Push run metrics to this Prometheus Pushgateway")
	fs.StringVar(&opts.sentryDSN, "sentry-dsn", "", "Report errors to Sentry")

	envFile := fs.String("env-file", defaultEnvFile, "Load environment variables from this file")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose (debug) logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.version {
		return opts, nil
	}

	if err := godotenv.Load(*envFile); err != nil {
		if fs.Changed("env-file") || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", *envFile, err)
		}
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	for name, value := range env.byFlag() {
		if value == "" || fs.Changed(name) {
			continue
		}
		if err := fs.Set(name, value); err != nil {
			return nil, fmt.Errorf("invalid %s_%s: %w", envPrefix, envName(name), err)
		}
	}

	f, err := report.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	opts.format = f

	if opts.input == "" && opts.proposalID == "" {
		return nil, errors.New("--proposal-id is required unless --input is set")
	}
	if err := opts.policy.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// envName maps a flag name to its variable suffix: "page-size" becomes "PAGE_SIZE".
func envName(flagName string) string {
	return strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
