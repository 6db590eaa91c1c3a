// Package auction implements the token auction stage: every catalog
// candidate quotes an output token budget, quotes are priced at catalog
// rates, and the k cheapest quotes seat the council.
package auction

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-council/internal/catalog"
	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/pkg/activity"
)

// defaultQuoteTimeout bounds one candidate's quote call. Quotes are single
// integers; anything slower than this is effectively a failed candidate.
const defaultQuoteTimeout = 30 * time.Second

// quoteMaxTokens caps the quote completion itself.
const quoteMaxTokens = 50

// heartbeatEvery paces heartbeats while the quote fan-out is in flight.
const heartbeatEvery = 10 * time.Second

// Activities handles the auction stage's Temporal activity.
type Activities struct {
	activity.BaseActivities
	invoker      llm.Invoker
	catalog      catalog.Catalog
	quoteTimeout time.Duration
}

// NewActivities creates auction activities. quoteTimeout <= 0 selects the
// default per-candidate deadline.
func NewActivities(
	base activity.BaseActivities,
	invoker llm.Invoker,
	cat catalog.Catalog,
	quoteTimeout time.Duration,
) *Activities {
	if quoteTimeout <= 0 {
		quoteTimeout = defaultQuoteTimeout
	}
	return &Activities{
		BaseActivities: base,
		invoker:        invoker,
		catalog:        cat,
		quoteTimeout:   quoteTimeout,
	}
}

// quoteReply carries one candidate's outcome across the fan-out join.
type quoteReply struct {
	model   string
	content string
	err     error
}

// RunQuoteAuction asks every candidate for a token quote, prices the quotes
// at catalog rates, and seats the k cheapest as the council. When the input
// names no candidates the full catalog roster is auctioned, so callers never
// have to know the catalog.
//
// Failure semantics: a candidate whose call fails is excluded from the
// auction entirely; a candidate that answers with garbage is quoted at the
// default token count. The stage is fatal only when no candidate produced
// a usable quote.
func (a *Activities) RunQuoteAuction(
	ctx context.Context,
	input domain.RunQuoteAuctionInput,
) (*domain.RunQuoteAuctionOutput, error) {
	if len(input.Candidates) == 0 {
		input.Candidates = a.catalog.Candidates()
	}
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("RunQuoteAuction", err, "invalid input")
	}
	if len(input.Candidates) == 0 {
		return nil, nonRetryable("RunQuoteAuction", domain.ErrNoQuotes, "catalog has no candidates")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting RunQuoteAuction activity",
		"workflow_id", wfCtx.WorkflowID,
		"exchange_id", input.ExchangeID,
		"candidates", len(input.Candidates))

	replies := a.collectQuoteReplies(ctx, input)

	var quotes []domain.Quote
	var failed []string
	for _, model := range input.Candidates {
		reply := replies[model]
		if reply.err != nil {
			activity.SafeLogError(ctx, "Candidate excluded from auction",
				"model", model, "error", reply.err)
			failed = append(failed, model)
			continue
		}

		tokens := parseTokenCount(reply.content)
		inputRate, outputRate := a.catalog.Rates(model)
		quotes = append(quotes, domain.Quote{
			Model:                model,
			QuotedTokens:         tokens,
			InputCostPerMillion:  inputRate,
			OutputCostPerMillion: outputRate,
			EstimatedCostUSD:     a.catalog.EstimateCost(model, tokens),
		})
	}

	if len(quotes) == 0 {
		return nil, nonRetryable("RunQuoteAuction", domain.ErrNoQuotes, "every candidate failed to quote")
	}

	ranked, bidders := domain.SelectBidders(quotes, input.CouncilSize)
	basis := domain.SelectedValueBasis(ranked)
	if input.ValueBasisOverrideUSD > 0 {
		basis = input.ValueBasisOverrideUSD
	}
	sort.Strings(failed)
	result := domain.AuctionResult{
		Quotes:        ranked,
		Bidders:       bidders,
		ValueBasisUSD: basis,
		Failed:        failed,
	}
	if err := result.Validate(); err != nil {
		return nil, nonRetryable("RunQuoteAuction", err, "auction result failed validation")
	}

	activity.SafeLog(ctx, "RunQuoteAuction completed",
		"exchange_id", input.ExchangeID,
		"bidders", len(bidders),
		"value_basis_usd", result.ValueBasisUSD)

	return &domain.RunQuoteAuctionOutput{Result: result}, nil
}

// collectQuoteReplies fans the quote prompt out to every candidate with a
// per-call timeout and joins all outcomes. Candidate order in the result
// map is irrelevant; arrival-order tie-breaking uses input.Candidates.
func (a *Activities) collectQuoteReplies(
	ctx context.Context,
	input domain.RunQuoteAuctionInput,
) map[string]quoteReply {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	replies := make(map[string]quoteReply, len(input.Candidates))

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go func() {
		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatDone:
				return
			case <-ticker.C:
				a.RecordHeartbeat(ctx, "collecting quotes")
			}
		}
	}()

	for _, model := range input.Candidates {
		wg.Add(1)
		go func(model string) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, a.quoteTimeout)
			defer cancel()

			_, outputRate := a.catalog.Rates(model)
			resp, err := a.invoker.Invoke(callCtx, &llm.Request{
				Model:     model,
				Prompt:    quotePrompt(input.Query, len(input.Candidates), outputRate),
				MaxTokens: quoteMaxTokens,
			})

			reply := quoteReply{model: model, err: err}
			if err == nil {
				reply.content = resp.Content
			}

			mu.Lock()
			replies[model] = reply
			mu.Unlock()
		}(model)
	}
	wg.Wait()

	return replies
}

// PreviewQuotes runs the quoting fan-out without seating a council or
// touching any exchange. The HTTP API exposes it so users can inspect
// current market pricing for a prompt.
func (a *Activities) PreviewQuotes(ctx context.Context, query string, k int) (*domain.AuctionResult, []string, error) {
	input := domain.RunQuoteAuctionInput{
		Query:       query,
		Candidates:  a.catalog.Candidates(),
		CouncilSize: k,
	}
	if input.Query == "" {
		return nil, nil, domain.ErrEmptyQuery
	}
	if input.CouncilSize <= 0 {
		input.CouncilSize = domain.DefaultCouncilSize
	}

	replies := a.collectQuoteReplies(ctx, input)

	var quotes []domain.Quote
	var failed []string
	for _, model := range input.Candidates {
		reply := replies[model]
		if reply.err != nil {
			failed = append(failed, model)
			continue
		}
		tokens := parseTokenCount(reply.content)
		inputRate, outputRate := a.catalog.Rates(model)
		quotes = append(quotes, domain.Quote{
			Model:                model,
			QuotedTokens:         tokens,
			InputCostPerMillion:  inputRate,
			OutputCostPerMillion: outputRate,
			EstimatedCostUSD:     a.catalog.EstimateCost(model, tokens),
		})
	}
	sort.Strings(failed)

	if len(quotes) == 0 {
		return nil, failed, domain.ErrNoQuotes
	}

	ranked, bidders := domain.SelectBidders(quotes, input.CouncilSize)
	return &domain.AuctionResult{
		Quotes:        ranked,
		Bidders:       bidders,
		ValueBasisUSD: domain.SelectedValueBasis(ranked),
	}, failed, nil
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
