package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBribes_Metrics_Push(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	PipelineRunsTotal.WithLabelValues("test_push").Inc()
	require.NoError(t, Push(context.Background(), srv.URL, "bribes", "0xprop"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "/metrics/job/bribes/proposal/0xprop", path)
	require.True(t, strings.Contains(body, "bribes_pipeline_runs_total"), "pushed body lacks pipeline counter")
}

func TestBribes_Metrics_PushError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := Push(context.Background(), srv.URL, "bribes", "0xprop")
	require.ErrorContains(t, err, "failed to push metrics")
}

func TestBribes_Metrics_Registered(t *testing.T) {
	t.Parallel()

	HubRequestsTotal.WithLabelValues("200").Add(2)

	families, err := Registry.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "bribes_hub_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetLabel()[0].GetValue() == "200" {
				found = true
				require.GreaterOrEqual(t, m.GetCounter().GetValue(), 2.0)
			}
		}
	}
	require.True(t, found, "hub request counter not gathered")
}
