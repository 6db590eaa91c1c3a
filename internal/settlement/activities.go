package settlement

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/pkg/activity"
)

// Activities handles the settlement stage's Temporal activity.
type Activities struct {
	activity.BaseActivities
}

// NewActivities creates settlement activities over the shared base.
func NewActivities(base activity.BaseActivities) *Activities {
	return &Activities{BaseActivities: base}
}

// Settle validates coverage and computes the payment ledger. It makes no
// external calls; failures here are always non-retryable because they mean
// the preceding stages produced inconsistent data.
func (a *Activities) Settle(
	ctx context.Context,
	input domain.SettleInput,
) (*domain.SettleOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("Settle", err, "invalid input")
	}
	if err := verifyCoverage(input); err != nil {
		return nil, nonRetryable("Settle", err, "claims and decisions must cover every survivor")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting Settle activity",
		"workflow_id", wfCtx.WorkflowID,
		"exchange_id", input.ExchangeID,
		"claims", len(input.Claims))

	s := Settle(input)
	if err := s.Validate(); err != nil {
		return nil, nonRetryable("Settle", err, "settlement failed validation")
	}

	activity.SafeLog(ctx, "Settle completed",
		"exchange_id", input.ExchangeID,
		"chairman_net_usd", s.ChairmanNetUSD)

	return &domain.SettleOutput{Settlement: s}, nil
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
