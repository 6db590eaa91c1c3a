package domain

import "errors"

// Sentinel errors shared across the pipeline. Callers match them with
// errors.Is after wrapping with context via fmt.Errorf("%w", ...).
var (
	// ErrInvalidExchange indicates an Exchange that violates its structural
	// or stage-ordering invariants.
	ErrInvalidExchange = errors.New("invalid exchange")

	// ErrInvalidPatch indicates a stage patch that does not apply to the
	// exchange's current stage or fails its own validation.
	ErrInvalidPatch = errors.New("invalid stage patch")

	// ErrNoQuotes indicates the auction produced zero usable quotes, so no
	// council can be seated. Fatal for the run.
	ErrNoQuotes = errors.New("no usable quotes")

	// ErrAllBiddersFailed indicates every selected bidder failed to produce
	// a response, leaving nothing to aggregate. Fatal for the run.
	ErrAllBiddersFailed = errors.New("all bidders failed")

	// ErrMalformedChairmanOutput indicates chairman output that remained
	// unusable after the single repair attempt. Fatal for the run.
	ErrMalformedChairmanOutput = errors.New("malformed chairman output")

	// ErrUnknownBidder indicates an MCC mapping, decision, or communication
	// referencing a model outside the surviving bidder set.
	ErrUnknownBidder = errors.New("unknown bidder")

	// ErrNegativeMCC indicates a negative credit value in an MCC mapping.
	ErrNegativeMCC = errors.New("negative mcc value")

	// ErrMCCSumOutOfTolerance indicates an MCC mapping whose sum deviates
	// from 100 beyond the accepted tolerance.
	ErrMCCSumOutOfTolerance = errors.New("mcc sum out of tolerance")

	// ErrConversationNotFound indicates a lookup for a conversation ID the
	// store has never seen.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrExchangeNotFound indicates a lookup for an exchange ID the store
	// has never seen.
	ErrExchangeNotFound = errors.New("exchange not found")

	// ErrConversationBusy indicates a begin-run compare-and-set lost to an
	// exchange already processing on the conversation.
	ErrConversationBusy = errors.New("conversation already processing")

	// ErrEmptyQuery indicates a run requested with a blank user query.
	ErrEmptyQuery = errors.New("empty query")
)
