package auction

import "fmt"

// quotePrompt asks one candidate for its token budget. The candidate knows
// its own rate and the council size; the reply must be a bare integer.
func quotePrompt(query string, nCandidates int, outputCostPerMillion float64) string {
	return fmt.Sprintf(`This user prompt:
<prompt>
%s
</prompt>

Is being answered by %d LLMs. Each LLM will make a quote that corresponds to the amount of tokens they want to use times the cost per million tokens.
Then the user will be charged the sum of all quotes and you will be paid that sum times your Marginal Churn Contribution (probability of the user preferring your quote and answer instead of the aggregate quote and aggregate answer).

Given your cost per million tokens is $%g and the complexity of the prompt, estimate how many tokens you should use in order to make a profit and answer with just that value.

IMPORTANT: Respond with ONLY a single integer number representing the token count. Do not include any other text, explanation, or formatting.`,
		query, nCandidates, outputCostPerMillion)
}
