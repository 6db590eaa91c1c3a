package chairman

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-council/internal/domain"
)

// aggregatePrompt asks the chairman for a synthesized answer plus an MCC
// split keyed by model name. Keying by name rather than seat position keeps
// the parse stable when bidders are dropped between stages.
func aggregatePrompt(query string, responses []domain.ModelResponse) string {
	var keys strings.Builder
	for _, r := range responses {
		fmt.Fprintf(&keys, "    %q: percentage value between 0 and 100,\n", r.Model)
	}

	return fmt.Sprintf(`You are the chairman of an LLM council.

Given the user prompt:
<prompt>
%s
</prompt>

And the following LLM answers:
%s

Produce a final aggregated answer that takes all the relevant information. And evaluate each answer based on its Marginal Churn Contribution (MCC) (probability of the user preferring a given LLM quote and answer instead of your aggregate quote and aggregate answer).

You will be paid the difference between 100 and the sum of MCCs, so the sum must be <= 100.

Answer in the following JSON format (no additional text):
{
  "aggregated_answer": "your comprehensive answer here",
  "mcc": {
%s  }
}

IMPORTANT: Return ONLY valid JSON, nothing else.`,
		query, formatAnswers(responses), keys.String())
}

// finalizePrompt shows the chairman its own initial split next to each
// bidder's counter-arguments and asks for final decisions and per-bidder
// communications, both keyed by model name. A bidder with no recorded
// self-evaluation is shown as having accepted the initial value.
func finalizePrompt(in *domain.FinalizeInput, penaltyRate float64) string {
	selfEvals := make(map[string]domain.SelfEvaluation, len(in.SelfEvaluations))
	for _, se := range in.SelfEvaluations {
		selfEvals[se.Model] = se
	}

	var comparison strings.Builder
	for _, model := range in.Survivors {
		if comparison.Len() > 0 {
			comparison.WriteString(",\n")
		}
		initial := in.InitialMCC[model]
		se, ok := selfEvals[model]
		if !ok {
			se = domain.SelfEvaluation{
				Model:     model,
				SelfMCC:   initial,
				Arguments: "(no self-evaluation submitted)",
			}
		}
		fmt.Fprintf(&comparison, `%q: {
  "Your MCC evaluation": %g,
  "LLM MCC auto-evaluation": {
    "arguments": %q,
    "MCC": %g
  }
}`, model, initial, truncate(se.Arguments, 200), se.SelfMCC)
	}

	var keys strings.Builder
	for _, model := range in.Survivors {
		fmt.Fprintf(&keys, "    %q: percentage from 0 to 100,\n", model)
	}

	return fmt.Sprintf(`For the following user prompt:
<prompt>
%s
</prompt>

And the following LLM answers:
%s

You gave this final aggregated answer:
<aggregated_answer>
%s
</aggregated_answer>

Here is your evaluation of each LLM Marginal Churn Contribution (probability of the user preferring a given LLM quote and answer instead of your aggregate quote and aggregate answer) and their auto-evaluation:
{
%s
}

Now you will need to submit a final decision per LLM. After your decision each LLM submits a final claim, and the value you will pay per LLM is the following:
- If the LLM claim is higher than your decision: the claim pays your decision minus %g times the gap (the LLM earns less than if it agreed)
- If the LLM claim is lower than or equal to your decision: the average of the two

You will also say to each LLM what was your decision, but you can choose to not say the actual decision.

Answer in the following JSON format (no additional text):
{
  "decisions": {
%s  },
  "communications": {
%s  }
}

IMPORTANT: Return ONLY valid JSON, nothing else.`,
		in.Query, formatAnswers(in.Responses), in.AggregatedAnswer,
		comparison.String(), penaltyRate, keys.String(), keys.String())
}

// formatAnswers renders the surviving answers for a chairman prompt.
func formatAnswers(responses []domain.ModelResponse) string {
	var b strings.Builder
	for i, r := range responses {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "LLM %d (%s):\n%s", i+1, r.Model, r.Content)
	}
	return b.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
