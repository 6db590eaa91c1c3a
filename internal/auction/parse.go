package auction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ahrav/go-council/internal/domain"
)

var digitsRegex = regexp.MustCompile(`\d+`)

// parseTokenCount extracts a token quote from a candidate's reply. Garbage
// never drops a bidder at this stage: anything unparseable, or outside the
// sane range, falls back to the default quote.
func parseTokenCount(text string) int64 {
	if text == "" {
		return domain.DefaultQuotedTokens
	}

	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "tokens", "")
	cleaned = strings.ReplaceAll(cleaned, "token", "")

	match := digitsRegex.FindString(cleaned)
	if match == "" {
		return domain.DefaultQuotedTokens
	}

	n, err := strconv.ParseInt(match, 10, 64)
	if err != nil || n < domain.MinQuotedTokens || n > domain.MaxQuotedTokens {
		return domain.DefaultQuotedTokens
	}
	return n
}
