package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/malbeclabs/bribes/tally/pkg/tally"
	"github.com/shopspring/decimal"
)

var (
	ErrProposalNotFound        = errors.New("proposal not found")
	ErrUnsupportedProposalType = errors.New("unsupported proposal type")
	ErrInvalidChoice           = errors.New("invalid vote choice")
)

// Voting systems as reported in a proposal's type field.
const (
	TypeSingleChoice = "single-choice"
	TypeBasic        = "basic"
	TypeApproval     = "approval"
	TypeWeighted     = "weighted"
	TypeQuadratic    = "quadratic"
	TypeRankedChoice = "ranked-choice"
)

type Space struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Proposal is the part of a Snapshot proposal a tally needs.
type Proposal struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Type        string          `json:"type"`
	State       string          `json:"state"`
	Choices     []string        `json:"choices"`
	ScoresTotal decimal.Decimal `json:"scores_total"`
	Space       Space           `json:"space"`
}

// TallyChoices numbers the proposal's choices from 1, in hub order.
func (p *Proposal) TallyChoices() tally.Choices {
	return tally.NewChoices(p.Choices)
}

// Vote is a vote as returned by the hub. Choice is kept raw because its shape depends on the
// proposal type.
type Vote struct {
	ID      string          `json:"id"`
	Voter   string          `json:"voter"`
	VP      decimal.Decimal `json:"vp"`
	Created int64           `json:"created"`
	Choice  json.RawMessage `json:"choice"`
}

// Snapshot is everything a run reads from the hub. It is also the format of saved input files.
type Snapshot struct {
	Proposal *Proposal `json:"proposal"`
	Votes    []Vote    `json:"votes"`
}

// DecodeChoice turns a raw choice into relative weights per choice id.
//
// Weighted and quadratic votes are objects mapping choice id to weight. Single-choice and basic
// votes are a bare choice id. Approval votes are a list of ids, each weighted equally. When the
// proposal type is unknown the shape of the value decides.
func DecodeChoice(proposalType string, raw json.RawMessage) (map[int]decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: empty", ErrInvalidChoice)
	}

	switch proposalType {
	case TypeRankedChoice:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProposalType, proposalType)
	case TypeWeighted, TypeQuadratic:
		return decodeWeighted(raw)
	case TypeSingleChoice, TypeBasic:
		return decodeSingle(raw)
	case TypeApproval:
		return decodeApproval(raw)
	}

	switch raw[0] {
	case '{':
		return decodeWeighted(raw)
	case '[':
		return decodeApproval(raw)
	default:
		return decodeSingle(raw)
	}
}

func decodeWeighted(raw json.RawMessage) (map[int]decimal.Decimal, error) {
	var m map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidChoice, err)
	}
	weights := make(map[int]decimal.Decimal, len(m))
	for k, w := range m {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: choice id %q", ErrInvalidChoice, k)
		}
		weights[id] = w
	}
	return weights, nil
}

func decodeSingle(raw json.RawMessage) (map[int]decimal.Decimal, error) {
	var id int
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidChoice, err)
	}
	return map[int]decimal.Decimal{id: decimal.NewFromInt(1)}, nil
}

func decodeApproval(raw json.RawMessage) (map[int]decimal.Decimal, error) {
	var ids []int
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidChoice, err)
	}
	weights := make(map[int]decimal.Decimal, len(ids))
	for _, id := range ids {
		weights[id] = decimal.NewFromInt(1)
	}
	return weights, nil
}

// TallyVotes converts hub votes of proposal p into tally votes.
func TallyVotes(p *Proposal, votes []Vote) ([]tally.Vote, error) {
	out := make([]tally.Vote, 0, len(votes))
	for _, v := range votes {
		weights, err := DecodeChoice(p.Type, v.Choice)
		if err != nil {
			return nil, fmt.Errorf("vote %s by %s: %w", v.ID, v.Voter, err)
		}
		out = append(out, tally.Vote{
			ID:            v.ID,
			Voter:         v.Voter,
			VotingPower:   v.VP,
			ChoiceWeights: weights,
		})
	}
	return out, nil
}

// Validate reports whether the proposal can be tallied.
func (p *Proposal) Validate() error {
	if p.Type == TypeRankedChoice {
		return fmt.Errorf("proposal %s: %w: %s", p.ID, ErrUnsupportedProposalType, p.Type)
	}
	if len(p.Choices) == 0 {
		return fmt.Errorf("proposal %s has no choices", p.ID)
	}
	return nil
}
