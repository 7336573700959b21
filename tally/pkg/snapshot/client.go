package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	graphql "github.com/hasura/go-graphql-client"
)

const proposalQuery = `query Proposal($id: String!) {
  proposal(id: $id) {
    id
    title
    type
    state
    choices
    scores_total
    space {
      id
      name
    }
  }
}`

const votesQuery = `query Votes($proposal: String!, $first: Int!, $skip: Int!) {
  votes(
    first: $first
    skip: $skip
    where: {proposal: $proposal}
    orderBy: "created"
    orderDirection: desc
  ) {
    id
    voter
    vp
    created
    choice
  }
}`

// Client reads a proposal and its votes from a Snapshot hub.
type Client struct {
	log *slog.Logger
	cfg Config
	gql *graphql.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	httpClient := &http.Client{
		Transport: newHubTransport(cfg),
		Timeout:   cfg.Timeout,
	}
	return &Client{
		log: cfg.Logger,
		cfg: cfg,
		gql: graphql.NewClient(cfg.Endpoint, httpClient),
	}, nil
}

// Proposal fetches the configured proposal.
func (c *Client) Proposal(ctx context.Context) (*Proposal, error) {
	data, err := c.gql.ExecRaw(ctx, proposalQuery, map[string]any{"id": c.cfg.ProposalID}, graphql.OperationName("Proposal"))
	if err != nil {
		return nil, fmt.Errorf("failed to query proposal %s: %w", c.cfg.ProposalID, err)
	}

	var resp struct {
		Proposal *Proposal `json:"proposal"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode proposal %s: %w", c.cfg.ProposalID, err)
	}
	if resp.Proposal == nil {
		return nil, fmt.Errorf("%w: %s", ErrProposalNotFound, c.cfg.ProposalID)
	}

	c.log.Debug("snapshot/client: fetched proposal",
		"proposal", resp.Proposal.ID,
		"type", resp.Proposal.Type,
		"state", resp.Proposal.State,
		"choices", len(resp.Proposal.Choices))
	return resp.Proposal, nil
}

// Votes fetches every vote on the configured proposal, one page at a time, until the hub
// returns a page shorter than the page size.
func (c *Client) Votes(ctx context.Context) ([]Vote, error) {
	var votes []Vote
	for skip := 0; ; skip += c.cfg.PageSize {
		page, err := c.votesPage(ctx, skip)
		if err != nil {
			return nil, err
		}
		votes = append(votes, page...)
		c.log.Debug("snapshot/client: fetched votes page", "skip", skip, "page", len(page), "total", len(votes))
		if len(page) < c.cfg.PageSize {
			return votes, nil
		}
	}
}

func (c *Client) votesPage(ctx context.Context, skip int) ([]Vote, error) {
	vars := map[string]any{
		"proposal": c.cfg.ProposalID,
		"first":    c.cfg.PageSize,
		"skip":     skip,
	}
	data, err := c.gql.ExecRaw(ctx, votesQuery, vars, graphql.OperationName("Votes"))
	if err != nil {
		return nil, fmt.Errorf("failed to query votes (skip %d): %w", skip, err)
	}

	var resp struct {
		Votes []Vote `json:"votes"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode votes (skip %d): %w", skip, err)
	}
	return resp.Votes, nil
}
