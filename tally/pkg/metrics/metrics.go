package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds every bribes metric. A run is a short-lived batch job, so the registry is
// pushed to a Pushgateway instead of being scraped.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	BuildInfo = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bribes_build_info",
			Help: "Build information of the bribes job",
		},
		[]string{"version", "commit", "date"},
	)

	HubRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bribes_hub_requests_total",
			Help: "Total number of requests to the Snapshot hub",
		},
		[]string{"status"},
	)

	HubRequestDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bribes_hub_request_duration_seconds",
			Help:    "Duration of requests to the Snapshot hub",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 0.05s to ~25s
		},
	)

	VotesFetched = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "bribes_votes_fetched",
			Help: "Number of votes loaded for the proposal",
		},
	)

	FetchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bribes_fetch_duration_seconds",
			Help:    "Duration of loading the proposal and all of its votes",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~410s
		},
	)

	PipelineRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bribes_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	TrackedChainPercentage = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "bribes_tracked_chain_percentage",
			Help: "Share of the vote won by the tracked choice's category",
		},
	)

	PoolSize = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "bribes_pool_size",
			Help: "Bribe pool before whale clawback",
		},
	)

	ClawedBack = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "bribes_clawed_back",
			Help: "Bribes clawed back from whales",
		},
	)

	BribesDistributed = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "bribes_distributed",
			Help: "Sum of final bribes paid to voters",
		},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
}

// Push sends the registry to the Pushgateway at url under the given job name, grouped by
// proposal.
func Push(ctx context.Context, url, job, proposalID string) error {
	err := push.New(url, job).
		Gatherer(Registry).
		Grouping("proposal", proposalID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
