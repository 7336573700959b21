package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/malbeclabs/bribes/tally/pkg/snapshot"
	"github.com/malbeclabs/bribes/tally/pkg/tally"
	bribestesting "github.com/malbeclabs/bribes/utils/pkg/testing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var d = decimal.RequireFromString

func testProposal() *snapshot.Proposal {
	return &snapshot.Proposal{
		ID:          "0xprop",
		Title:       "Round 12",
		Type:        snapshot.TypeWeighted,
		State:       "closed",
		Choices:     []string{"A (Ethereum)", "WBTC (Arbitrum)"},
		ScoresTotal: d("450000"),
		Space:       snapshot.Space{ID: "example.eth"},
	}
}

func runPipeline(t *testing.T, policy tally.Policy, votes []tally.Vote) (*tally.Result, error) {
	t.Helper()
	p, err := tally.NewPipeline(tally.PipelineConfig{Logger: bribestesting.NewLogger(), Policy: policy})
	require.NoError(t, err)
	return p.Run(votes, testProposal().TallyChoices())
}

func scenarioReport(t *testing.T) *Report {
	t.Helper()
	policy := tally.DefaultPolicy()
	policy.RatePerPercent = d("100")
	votes := []tally.Vote{
		{ID: "v1", Voter: "0xaaa1", VotingPower: d("100000"), ChoiceWeights: map[int]decimal.Decimal{2: d("1")}},
		{ID: "v2", Voter: "0xbbb2", VotingPower: d("300000"), ChoiceWeights: map[int]decimal.Decimal{2: d("1")}},
		{ID: "v3", Voter: "0xccc3", VotingPower: d("50000"), ChoiceWeights: map[int]decimal.Decimal{1: d("1")}},
	}
	res, err := runPipeline(t, policy, votes)
	require.NoError(t, err)
	return New(res, nil, Meta{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Proposal:    testProposal(),
		Policy:      policy,
	})
}

func abortedReport(t *testing.T) *Report {
	t.Helper()
	votes := []tally.Vote{
		{ID: "v1", Voter: "0x1", VotingPower: d("10"), ChoiceWeights: map[int]decimal.Decimal{2: d("1")}},
		{ID: "v2", Voter: "0x2", VotingPower: d("990"), ChoiceWeights: map[int]decimal.Decimal{1: d("1")}},
	}
	res, err := runPipeline(t, tally.DefaultPolicy(), votes)
	require.ErrorIs(t, err, tally.ErrThresholdNotMet)
	return New(res, err, Meta{RunID: "run-2", Proposal: testProposal(), Policy: tally.DefaultPolicy()})
}

func TestBribes_Report_New_Passed(t *testing.T) {
	t.Parallel()

	r := scenarioReport(t)
	require.True(t, r.Passed)
	require.Equal(t, "done", r.Stage)
	require.Equal(t, DefaultUnit, r.Unit)
	require.Equal(t, "example.eth", r.Proposal.Space)
	require.Len(t, r.Totals, 2)
	require.Equal(t, "WBTC (Arbitrum)", r.Totals[0].Label)
	require.Equal(t, "Arbitrum", r.Chains[0].Chain)

	require.NotNil(t, r.Tracked)
	require.Equal(t, 2, r.Tracked.ChoiceID)
	require.NotNil(t, r.Bribes)
	require.Len(t, r.Bribes.Voters, 2)
	require.Equal(t, "0xbbb2", r.Bribes.Voters[0].Voter, "ordered by raw bribe")
	require.True(t, r.Bribes.Voters[0].Whale)
	bribestesting.RequireDecimal(t, "2555.56", r.Bribes.TotalBribes, 2)
}

func TestBribes_Report_New_Aborted(t *testing.T) {
	t.Parallel()

	r := abortedReport(t)
	require.False(t, r.Passed)
	require.Equal(t, "aborted", r.Stage)
	require.Nil(t, r.Bribes)
	require.Contains(t, r.Reason, "no bribes, Arbitrum did not cross threshold")
	require.NotNil(t, r.Tracked)
	bribestesting.RequireDecimal(t, "1", r.Tracked.ChainPercentage, 4)
	require.Len(t, r.Totals, 2)
	require.Len(t, r.Chains, 2)
}

func TestBribes_Report_WriteText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, scenarioReport(t), true))
	out := buf.String()

	for _, want := range []string{
		"Proposal: Round 12 (0xprop)",
		"Current vote totals",
		"Vote totals by chain",
		"Clawed back whale bribes",
		"6666.67 QI",
		"Our bribes",
		"2555.56 QI",
		"Bribes by voter",
		"0xaaa1",
		"88.89",
		"QI per %",
	} {
		require.Contains(t, out, want)
	}
	require.NotContains(t, out, "\x1b[", "no escape codes without color")
}

func TestBribes_Report_WriteText_Aborted(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, abortedReport(t), true))
	out := buf.String()

	require.Contains(t, out, "Vote totals by chain")
	require.Contains(t, out, "no bribes, Arbitrum did not cross threshold: 1.0000% < 8.333%")
	require.NotContains(t, out, "Our bribes")
}

func TestBribes_Report_WriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, scenarioReport(t)))

	var doc struct {
		RunID  string `json:"run_id"`
		Passed bool   `json:"passed"`
		Bribes struct {
			TotalBribes string `json:"total_bribes"`
			Voters      []struct {
				Voter      string `json:"voter"`
				FinalBribe string `json:"final_bribe"`
			} `json:"voters"`
		} `json:"bribes"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "run-1", doc.RunID)
	require.True(t, doc.Passed)
	require.True(t, strings.HasPrefix(doc.Bribes.TotalBribes, "2555.5555555555"), "unrounded, got %s", doc.Bribes.TotalBribes)
	require.Len(t, doc.Bribes.Voters, 2)
}

func TestBribes_Report_WriterSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := &WriterSink{W: &buf, Format: FormatJSON}
	require.NoError(t, sink.Emit(context.Background(), abortedReport(t)))
	require.Contains(t, buf.String(), `"reason": "no bribes`)
	require.NotContains(t, buf.String(), `"bribes":`)
}

func TestBribes_Report_ParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("json")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)

	_, err = ParseFormat("yaml")
	require.ErrorContains(t, err, `unknown report format "yaml"`)
}

func TestBribes_Report_SlackNotifier(t *testing.T) {
	t.Parallel()

	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- b
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n, err := NewSlackNotifier(SlackConfig{Logger: bribestesting.NewLogger(), WebhookURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, n.Emit(context.Background(), scenarioReport(t)))

	var msg struct {
		Text   string            `json:"text"`
		Blocks []json.RawMessage `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(<-bodies, &msg))
	require.Equal(t, "Bribes for Round 12: 2555.56 QI paid to 2 voters.", msg.Text)
	require.Len(t, msg.Blocks, 3)
	require.Contains(t, string(msg.Blocks[1]), "Clawed back")
}

func TestBribes_Report_SlackNotifier_Error(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	n, err := NewSlackNotifier(SlackConfig{Logger: bribestesting.NewLogger(), WebhookURL: srv.URL})
	require.NoError(t, err)
	require.ErrorContains(t, n.Emit(context.Background(), abortedReport(t)), "failed to post slack webhook")

	_, err = NewSlackNotifier(SlackConfig{Logger: bribestesting.NewLogger()})
	require.EqualError(t, err, "webhook url is required")
}

func TestBribes_Report_SlackMessage_Aborted(t *testing.T) {
	t.Parallel()

	msg := SlackMessage(abortedReport(t))
	require.Contains(t, msg.Text, "did not cross threshold")
	require.Len(t, msg.Blocks.BlockSet, 3)
}
