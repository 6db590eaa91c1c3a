// Package worker wires the council workflow and its activities into a
// Temporal worker. Registration happens once at startup; the worker then
// owns every external effect of a run.
package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-council/internal/auction"
	"github.com/ahrav/go-council/internal/bidders"
	"github.com/ahrav/go-council/internal/catalog"
	"github.com/ahrav/go-council/internal/chairman"
	"github.com/ahrav/go-council/internal/configuration"
	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/internal/pipeline"
	"github.com/ahrav/go-council/internal/settlement"
	"github.com/ahrav/go-council/internal/store"
	"github.com/ahrav/go-council/internal/workflow"
	"github.com/ahrav/go-council/pkg/activity"
	"github.com/ahrav/go-council/pkg/events"
)

// Dependencies carries everything RegisterAll needs that has its own
// lifecycle: the provider client, the store, and the event sink the
// activities publish to.
type Dependencies struct {
	Config  *configuration.Config
	Invoker llm.Invoker
	Store   store.Store
	Catalog catalog.Catalog
	Sink    events.EventSink
}

// RegisterAll registers the exchange workflow and every pipeline activity
// with the Temporal worker. Not thread-safe; call once during startup.
func RegisterAll(w sdkworker.Worker, deps Dependencies) {
	sink := deps.Sink
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}
	base := activity.NewBaseActivities(sink)

	cfg := deps.Config
	cat := deps.Catalog
	if cat == nil {
		cat = catalog.NewDefaultRegistry()
	}

	pipelineActivities := pipeline.NewActivities(base, deps.Store)
	auctionActivities := auction.NewActivities(base, deps.Invoker, cat, cfg.QuoteTimeout)
	bidderActivities := bidders.NewActivities(base, deps.Invoker, cfg.BidderTimeout, cfg.PenaltyRate)
	chairmanActivities := chairman.NewActivities(base, deps.Invoker, cfg.BidderTimeout, cfg.PenaltyRate)
	settlementActivities := settlement.NewActivities(base)

	w.RegisterWorkflow(workflow.ExchangeWorkflow)

	w.RegisterActivity(pipelineActivities.BeginRun)
	w.RegisterActivity(pipelineActivities.EmitStageStarted)
	w.RegisterActivity(pipelineActivities.Checkpoint)
	w.RegisterActivity(pipelineActivities.FinishRun)
	w.RegisterActivity(pipelineActivities.FailRun)

	w.RegisterActivity(auctionActivities.RunQuoteAuction)
	w.RegisterActivity(bidderActivities.CollectResponses)
	w.RegisterActivity(chairmanActivities.Aggregate)
	w.RegisterActivity(bidderActivities.CollectSelfEvaluations)
	w.RegisterActivity(chairmanActivities.Finalize)
	w.RegisterActivity(bidderActivities.CollectFinalClaims)
	w.RegisterActivity(settlementActivities.Settle)
}
