package llm

import (
	"regexp"
	"strings"
)

var unquotedKeyRegex = regexp.MustCompile(`(\{|,)\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)

// RepairJSON applies one-shot conservative repair for typical model output
// problems: markdown code fences, trailing commas, unquoted keys, and
// single-quoted strings. Returns the input unchanged when no repair applies,
// letting callers detect that the single repair attempt had nothing to try.
func RepairJSON(jsonStr string) string {
	original := jsonStr
	repaired := strings.TrimSpace(jsonStr)

	// Strip markdown code fences models often wrap around JSON.
	repaired = strings.TrimPrefix(repaired, "```json")
	repaired = strings.TrimPrefix(repaired, "```")
	repaired = strings.TrimSuffix(repaired, "```")

	// Trailing commas violate the JSON spec but are common in model output.
	repaired = strings.ReplaceAll(repaired, ",\n}", "\n}")
	repaired = strings.ReplaceAll(repaired, ",\r\n}", "\r\n}")
	repaired = strings.ReplaceAll(repaired, ", }", " }")
	repaired = strings.ReplaceAll(repaired, ",}", "}")

	// Quote bare property names.
	repaired = unquotedKeyRegex.ReplaceAllString(repaired, `$1"$2":`)

	// Normalize single quotes only when no double quotes exist; mixed
	// quoting is too ambiguous to repair safely.
	if !strings.Contains(repaired, `"`) && strings.Contains(repaired, `'`) {
		repaired = strings.ReplaceAll(repaired, `'`, `"`)
	}

	repaired = strings.TrimSpace(repaired)
	if repaired == original {
		return original
	}
	return repaired
}
