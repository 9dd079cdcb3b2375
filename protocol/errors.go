package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateSubmission is returned when a client submits twice in a round.
	ErrDuplicateSubmission = errors.New("duplicate submission")
	// ErrMalformedSubmission is returned for submissions with a broken shape.
	ErrMalformedSubmission = errors.New("malformed submission")
	// ErrInvalidState is returned when an operation does not fit the round state.
	ErrInvalidState = errors.New("invalid round state")
)

// EncodingError reports a client input that cannot be encoded or proven.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string { return "encoding error: " + e.Reason }

// ProofVerificationFailure identifies the client and block whose proof failed.
type ProofVerificationFailure struct {
	Client ClientID
	Block  int
	Reason string
}

func (e *ProofVerificationFailure) Error() string {
	return fmt.Sprintf("proof verification failed for client %s block %d: %s", e.Client, e.Block, e.Reason)
}

// EmptyAggregateError is returned when no submission survived verification.
type EmptyAggregateError struct {
	Round    RoundID
	Excluded int
}

func (e *EmptyAggregateError) Error() string {
	return fmt.Sprintf("round %s: empty aggregate (%d submissions excluded)", e.Round, e.Excluded)
}

// AggregateOverflowError is returned when the verified set is too large for
// its sum to be decoded without wrapping modulo T.
type AggregateOverflowError struct {
	Round   RoundID
	Clients int
	Max     int
}

func (e *AggregateOverflowError) Error() string {
	return fmt.Sprintf("round %s: %d verified submissions, at most %d fit the plaintext modulus", e.Round, e.Clients, e.Max)
}

// RoundClosedError is returned for submissions after the round stopped
// collecting.
type RoundClosedError struct {
	Round RoundID
	State string
}

func (e *RoundClosedError) Error() string {
	return fmt.Sprintf("round %s is closed (state %s)", e.Round, e.State)
}

// ThresholdNotMetError is returned when fewer than the threshold of valid
// decryption shares could be collected.
type ThresholdNotMetError struct {
	Round     RoundID
	Threshold int
	Valid     int
	Invalid   []ServerID
	Missing   []ServerID
}

func (e *ThresholdNotMetError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "round %s: %d valid decryption shares, threshold %d", e.Round, e.Valid, e.Threshold)
	if len(e.Invalid) > 0 {
		fmt.Fprintf(&b, "; invalid: %v", e.Invalid)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing: %v", e.Missing)
	}
	return b.String()
}
