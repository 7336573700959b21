package snapshot

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/malbeclabs/bribes/tally/pkg/metrics"
	"github.com/malbeclabs/bribes/utils/pkg/retry"
	"golang.org/x/time/rate"
)

// hubTransport paces, authenticates and retries requests to the hub. GraphQL requests are
// idempotent queries, so every attempt replays the body from GetBody.
type hubTransport struct {
	log     *slog.Logger
	base    http.RoundTripper
	limiter *rate.Limiter
	retry   retry.Config
	apiKey  string
}

func newHubTransport(cfg Config) *hubTransport {
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	t := &hubTransport{
		log:     cfg.Logger,
		base:    base,
		limiter: rate.NewLimiter(limit, 1),
		retry:   cfg.Retry,
		apiKey:  cfg.APIKey,
	}
	if t.retry.MaxAttempts == 0 {
		t.retry = retry.DefaultConfig()
	}
	if t.retry.OnRetry == nil {
		t.retry.OnRetry = func(attempt int, backoff time.Duration, err error) {
			t.log.Warn("snapshot/transport: retrying hub request", "attempt", attempt, "backoff", backoff, "error", err)
		}
	}
	return t
}

func (t *hubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	return retry.Value(ctx, t.retry, func() (*http.Response, error) {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		attempt := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attempt.Body = body
		}
		if t.apiKey != "" {
			attempt.Header.Set("x-api-key", t.apiKey)
		}

		start := time.Now()
		resp, err := t.base.RoundTrip(attempt)
		metrics.HubRequestDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.HubRequestsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.HubRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &retry.StatusError{
				Code:       resp.StatusCode,
				Body:       strings.TrimSpace(string(body)),
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}
		return resp, nil
	})
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
