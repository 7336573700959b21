package tally

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrZeroWeightVote     = errors.New("vote choice weights sum to zero")
	ErrInvalidWeight      = errors.New("vote has a negative choice weight")
	ErrInvalidVotingPower = errors.New("vote has negative voting power")
	ErrMalformedLabel     = errors.New("choice label has no category tag")
	ErrChoiceNotFound     = errors.New("choice not found")
	ErrThresholdNotMet    = errors.New("category did not cross threshold")
)

// VoteError reports a vote record that cannot be tallied.
type VoteError struct {
	VoteID   string
	Voter    string
	ChoiceID int // set when the problem is tied to a single choice
	Err      error
}

func (e *VoteError) Error() string {
	if e.ChoiceID != 0 {
		return fmt.Sprintf("vote %s by %s, choice %d: %v", e.VoteID, e.Voter, e.ChoiceID, e.Err)
	}
	return fmt.Sprintf("vote %s by %s: %v", e.VoteID, e.Voter, e.Err)
}

func (e *VoteError) Unwrap() error { return e.Err }

// LabelError reports a choice label without a parsable category tag.
type LabelError struct {
	ChoiceID int
	Label    string
}

func (e *LabelError) Error() string {
	if e.ChoiceID != 0 {
		return fmt.Sprintf("choice %d %q: %v", e.ChoiceID, e.Label, ErrMalformedLabel)
	}
	return fmt.Sprintf("%q: %v", e.Label, ErrMalformedLabel)
}

func (e *LabelError) Unwrap() error { return ErrMalformedLabel }

// TrackedChoiceError reports a tracked choice label that is not one of the proposal's choices.
type TrackedChoiceError struct {
	Label string
}

func (e *TrackedChoiceError) Error() string {
	return fmt.Sprintf("tracked choice %q: %v", e.Label, ErrChoiceNotFound)
}

func (e *TrackedChoiceError) Unwrap() error { return ErrChoiceNotFound }

// ThresholdError reports a tracked category whose share of the vote is below the minimum.
type ThresholdError struct {
	Chain     string
	Achieved  decimal.Decimal
	Threshold decimal.Decimal
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("no bribes, %s did not cross threshold: %s%% < %s%%",
		e.Chain, e.Achieved.StringFixed(4), e.Threshold.String())
}

func (e *ThresholdError) Unwrap() error { return ErrThresholdNotMet }
