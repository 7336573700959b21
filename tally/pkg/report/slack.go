package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

type SlackConfig struct {
	Logger     *slog.Logger
	WebhookURL string
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

func (cfg *SlackConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.WebhookURL == "" {
		return errors.New("webhook url is required")
	}
	return nil
}

// SlackNotifier posts a run summary to an incoming webhook.
type SlackNotifier struct {
	log *slog.Logger
	cfg SlackConfig
}

func NewSlackNotifier(cfg SlackConfig) (*SlackNotifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackNotifier{log: cfg.Logger, cfg: cfg}, nil
}

func (n *SlackNotifier) Emit(ctx context.Context, r *Report) error {
	msg := SlackMessage(r)
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.cfg.WebhookURL, n.cfg.HTTPClient, msg); err != nil {
		return fmt.Errorf("failed to post slack webhook: %w", err)
	}
	n.log.Debug("report/slack: posted summary", "run_id", r.RunID)
	return nil
}

// SlackMessage summarizes r as a webhook message. Text is the notification fallback.
func SlackMessage(r *Report) *slack.WebhookMessage {
	name := r.Proposal.Title
	if name == "" {
		name = r.Proposal.ID
	}
	header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "Bribes: "+name, false, false))

	var summary string
	var fields []*slack.TextBlockObject
	if r.Bribes == nil {
		summary = "No bribes this round."
		if r.Reason != "" {
			summary = r.Reason
		}
	} else {
		summary = fmt.Sprintf("%s %s paid to %d voters.", fixed(r.Bribes.TotalBribes), r.Unit, len(r.Bribes.Voters))
		fields = []*slack.TextBlockObject{
			mrkdwnField("Pool", fixed(r.Bribes.Pool)+" "+r.Unit),
			mrkdwnField("Clawed back", fixed(r.Bribes.ClawedBack)+" "+r.Unit),
			mrkdwnField("Our bribes", fixed(r.Bribes.TotalBribes)+" "+r.Unit),
		}
		if t := r.Tracked; t != nil {
			fields = append(fields, mrkdwnField(t.Chain, fixed(t.ChainPercentage)+"%"))
		}
	}
	section := slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, summary, false, false), fields, nil)
	footer := slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, "run `"+r.RunID+"`", false, false))

	return &slack.WebhookMessage{
		Text: fmt.Sprintf("Bribes for %s: %s", name, summary),
		Blocks: &slack.Blocks{
			BlockSet: []slack.Block{header, section, footer},
		},
	}
}

func mrkdwnField(name, value string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*%s*\n%s", name, value), false, false)
}
