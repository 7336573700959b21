package snapshot

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/malbeclabs/bribes/utils/pkg/retry"
)

const (
	DefaultEndpoint = "https://hub.snapshot.org/graphql"
	DefaultPageSize = 1000
	// DefaultRequestsPerSecond stays under the hub's limit for clients without an API key.
	DefaultRequestsPerSecond = 1.0
	DefaultTimeout           = 30 * time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Config struct {
	Logger     *slog.Logger `validate:"required"`
	Endpoint   string       `validate:"required,url"`
	ProposalID string       `validate:"required"`
	// APIKey is sent as x-api-key when set.
	APIKey   string
	PageSize int `validate:"gt=0,lte=1000"`
	// RequestsPerSecond paces requests to the hub. Zero disables pacing.
	RequestsPerSecond float64       `validate:"gte=0"`
	Timeout           time.Duration `validate:"gte=0"`

	Retry     retry.Config      `validate:"-"`
	Transport http.RoundTripper `validate:"-"` // defaults to http.DefaultTransport
}

func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid snapshot config: %w", err)
	}
	return nil
}
