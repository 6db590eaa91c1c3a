package bidders

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-council/internal/domain"
)

// responsePrompt frames the user query with the incentive structure: unique
// information is worth more than what every bidder repeats.
func responsePrompt(query string, nBidders int) string {
	return fmt.Sprintf(`Answer to the following user prompt:
<prompt>
%s
</prompt>

Take into account that other %d LLMs are answering as well and you will be paid based on your Marginal Churn Contribution (probability of the user preferring your quote and answer instead of the aggregate quote and aggregate answer).

So you should both give a complete answer and bring to the table value that the other LLMs may not bring. Think of it as the stop game, information no other LLM mentions will be more valuable than what everyone else mentions.

IMPORTANT: Respond with just your answer to the user prompt`,
		query, nBidders-1)
}

// selfEvalPrompt shows a bidder its own answer, the rivals' answers, the
// aggregate, and the chairman's MCC for it, and asks for a counter-claim.
func selfEvalPrompt(
	query, ownAnswer, aggregatedAnswer string,
	otherAnswers string,
	nBidders int,
	chairmanMCC float64,
) string {
	return fmt.Sprintf(`For the given user prompt:
<prompt>
%s
</prompt>

You gave this answer:
<your_answer>
%s
</your_answer>

And other %d LLMs gave these answers:
%s

The final aggregated answer was:
<aggregated_answer>
%s
</aggregated_answer>

You now need to auto-evaluate your Marginal Churn Contribution (MCC) (probability of the user preferring your quote and answer instead of the aggregate quote and aggregate answer).

The aggregator evaluated your answer with an MCC of %g%%. You will be paid proportionally to your MCC, so you need to give arguments in favor of your evaluation.

Answer in the following JSON format (no additional text):
{
  "arguments": "what unique value your answer brings to the table",
  "MCC": percentage value between 0 and 100
}

IMPORTANT: Return ONLY valid JSON, nothing else.`,
		query, ownAnswer, nBidders-1, otherAnswers, aggregatedAnswer, chairmanMCC)
}

// acceptancePrompt discloses the communicated MCC and the penalty structure
// and asks for a bare final number.
func acceptancePrompt(query string, communicatedMCC float64, penaltyRate float64) string {
	return fmt.Sprintf(`For the following user prompt:
<prompt>
%s
</prompt>

The chairman of the council has read your arguments and says its final decision on your Marginal Churn Contribution is %g%%.

Now you will need to submit a final claim. The value you will be paid is the following:
- If your claim is higher than the chairman's private decision: you receive the decision minus %g times the gap (note it's less than if you agreed)
- If your claim is lower than or equal to the decision: you receive the average of the two

IMPORTANT: Answer with just your final MCC claim between 0 and 100 (only the number, no other text).`,
		query, communicatedMCC, penaltyRate)
}

// formatOtherAnswers renders every rival's answer for inclusion in a prompt.
func formatOtherAnswers(responses []domain.ModelResponse, exclude string) string {
	var b strings.Builder
	i := 0
	for _, r := range responses {
		if r.Model == exclude {
			continue
		}
		i++
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "LLM %d (%s):\n%s", i, r.Model, r.Content)
	}
	return b.String()
}
